// Package addresscodec implements the XRPL base58 encodings: family seeds,
// classic addresses and public keys. All encodings share the XRPL alphabet
// and a 4-byte double-SHA256 checksum.
package addresscodec

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"

	"github.com/LeJamon/xrpltop/internal/crypto"
)

// xrplAlphabet is the base58 dictionary used by the XRP Ledger. It differs
// from Bitcoin's so that addresses start with 'r'.
const xrplAlphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

const (
	// classicAddressPrefix yields addresses starting with 'r'.
	classicAddressPrefix = 0x00
	// accountPublicKeyPrefix yields keys starting with 'a'.
	accountPublicKeyPrefix = 0x23
	// nodePublicKeyPrefix yields keys starting with 'n'.
	nodePublicKeyPrefix = 0x1C

	seedLength     = 16
	checksumLength = 4
)

var (
	ErrInvalidSeed    = errors.New("invalid seed")
	ErrInvalidAddress = errors.New("invalid classic address")
	ErrChecksum       = errors.New("checksum mismatch")
)

// EncodeSeed encodes a 16-byte seed with the family prefix of the given
// algorithm.
func EncodeSeed(seed []byte, algo crypto.Algorithm) (string, error) {
	if len(seed) != seedLength {
		return "", ErrInvalidSeed
	}
	return encodeChecked(algo.SeedPrefix(), seed), nil
}

// DecodeSeed decodes a family seed, returning the raw 16 bytes and the
// algorithm indicated by its prefix.
func DecodeSeed(encoded string) ([]byte, crypto.Algorithm, error) {
	payload, err := decodeChecked(encoded)
	if err != nil {
		return nil, nil, ErrInvalidSeed
	}

	for _, algo := range []crypto.Algorithm{crypto.ED25519(), crypto.SECP256K1()} {
		prefix := algo.SeedPrefix()
		if len(payload) == len(prefix)+seedLength && bytes.Equal(payload[:len(prefix)], prefix) {
			return payload[len(prefix):], algo, nil
		}
	}
	return nil, nil, ErrInvalidSeed
}

// EncodeAccountID encodes a 20-byte account ID as a classic address.
func EncodeAccountID(accountID []byte) (string, error) {
	if len(accountID) != crypto.AccountIDSize {
		return "", ErrInvalidAddress
	}
	return encodeChecked([]byte{classicAddressPrefix}, accountID), nil
}

// EncodeClassicAddressFromPublicKeyHex derives the classic address for a
// hex-encoded, prefixed public key.
func EncodeClassicAddressFromPublicKeyHex(publicKeyHex string) (string, error) {
	pubKey, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return "", ErrInvalidAddress
	}
	accountID := crypto.CalcAccountID(pubKey)
	return EncodeAccountID(accountID[:])
}

// DecodeClassicAddress decodes a classic address into its 20-byte account ID.
func DecodeClassicAddress(address string) ([]byte, error) {
	payload, err := decodeChecked(address)
	if err != nil {
		return nil, err
	}
	if len(payload) != 1+crypto.AccountIDSize || payload[0] != classicAddressPrefix {
		return nil, ErrInvalidAddress
	}
	return payload[1:], nil
}

// IsValidClassicAddress reports whether the address decodes cleanly.
func IsValidClassicAddress(address string) bool {
	_, err := DecodeClassicAddress(address)
	return err == nil
}

// EncodeAccountPublicKey encodes a 33-byte public key in the account key
// encoding (leading 'a').
func EncodeAccountPublicKey(publicKey []byte) (string, error) {
	if len(publicKey) != 33 {
		return "", errors.New("public key must be 33 bytes")
	}
	return encodeChecked([]byte{accountPublicKeyPrefix}, publicKey), nil
}

// EncodeNodePublicKey encodes a 33-byte public key in the node key encoding
// (leading 'n').
func EncodeNodePublicKey(publicKey []byte) (string, error) {
	if len(publicKey) != 33 {
		return "", errors.New("public key must be 33 bytes")
	}
	return encodeChecked([]byte{nodePublicKeyPrefix}, publicKey), nil
}

func checksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:checksumLength]
}

func encodeChecked(prefix, payload []byte) string {
	buf := make([]byte, 0, len(prefix)+len(payload)+checksumLength)
	buf = append(buf, prefix...)
	buf = append(buf, payload...)
	buf = append(buf, checksum(buf)...)
	return base58Encode(buf)
}

func decodeChecked(encoded string) ([]byte, error) {
	raw, err := base58Decode(encoded)
	if err != nil {
		return nil, err
	}
	if len(raw) < checksumLength+1 {
		return nil, ErrChecksum
	}

	payload := raw[:len(raw)-checksumLength]
	if !bytes.Equal(checksum(payload), raw[len(raw)-checksumLength:]) {
		return nil, ErrChecksum
	}
	return payload, nil
}

var base58Radix = big.NewInt(58)

func base58Encode(input []byte) string {
	num := new(big.Int).SetBytes(input)
	mod := new(big.Int)

	var out []byte
	for num.Sign() > 0 {
		num.DivMod(num, base58Radix, mod)
		out = append(out, xrplAlphabet[mod.Int64()])
	}

	// Leading zero bytes map to the zero digit.
	for _, b := range input {
		if b != 0 {
			break
		}
		out = append(out, xrplAlphabet[0])
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

func base58Decode(input string) ([]byte, error) {
	num := big.NewInt(0)
	for _, r := range input {
		idx := bytes.IndexByte([]byte(xrplAlphabet), byte(r))
		if idx < 0 {
			return nil, errors.New("invalid base58 character")
		}
		num.Mul(num, base58Radix)
		num.Add(num, big.NewInt(int64(idx)))
	}

	decoded := num.Bytes()

	// Restore leading zero bytes from leading zero digits.
	leadingZeros := 0
	for _, r := range input {
		if byte(r) != xrplAlphabet[0] {
			break
		}
		leadingZeros++
	}

	out := make([]byte, leadingZeros+len(decoded))
	copy(out[leadingZeros:], decoded)
	return out, nil
}
