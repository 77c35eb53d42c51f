// Package txblob implements the canonical binary serialization of Payment
// transactions: the signing payload, the signed blob submitted to the
// network, and the transaction hash. Fields are emitted in the canonical
// (type, field) order required by the XRPL binary format.
package txblob

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/LeJamon/xrpltop/internal/codec/addresscodec"
	"github.com/LeJamon/xrpltop/internal/crypto"
	"github.com/LeJamon/xrpltop/internal/xrpamount"
)

// Hash prefixes from the XRPL protocol.
const (
	signingPrefix = 0x53545800 // "STX\0" single-signer signing payload
	txIDPrefix    = 0x54584E00 // "TXN\0" transaction hash
)

// Field headers, precomputed from (type code, field code).
const (
	fieldTransactionType    = 0x12 // UInt16 2
	fieldFlags              = 0x22 // UInt32 2
	fieldSequence           = 0x24 // UInt32 4
	fieldLastLedgerSequence = 0x20 // UInt32, field code 27 follows
	fieldAmount             = 0x61 // Amount 1
	fieldFee                = 0x68 // Amount 8
	fieldSigningPubKey      = 0x73 // VL 3
	fieldTxnSignature       = 0x74 // VL 4
	fieldAccount            = 0x81 // AccountID 1
	fieldDestination        = 0x83 // AccountID 3
)

const paymentTransactionType = 0

// xrpAmountFlag marks a native (non-issued) positive amount.
const xrpAmountFlag = 0x4000000000000000

var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrMissingKey    = errors.New("signing public key required")
)

// Payment is the one transaction type this tool submits.
type Payment struct {
	Account            string
	Destination        string
	Amount             xrpamount.Amount
	Fee                xrpamount.Amount
	Sequence           uint32
	LastLedgerSequence uint32
	SigningPubKey      string
}

// SignResult carries the signed blob and its network transaction hash.
type SignResult struct {
	BlobHex string
	Hash    string
}

// Sign serializes the payment, signs it with the given algorithm and key,
// and returns the submittable blob plus the transaction hash the network
// will report for it.
func Sign(p Payment, algo crypto.Algorithm, privateKeyHex string) (SignResult, error) {
	payload, err := SigningPayload(p)
	if err != nil {
		return SignResult{}, err
	}

	signature, err := algo.Sign(payload, privateKeyHex)
	if err != nil {
		return SignResult{}, fmt.Errorf("signing payment: %w", err)
	}

	signed, err := serialize(p, signature)
	if err != nil {
		return SignResult{}, err
	}

	hashInput := make([]byte, 0, 4+len(signed))
	hashInput = binary.BigEndian.AppendUint32(hashInput, txIDPrefix)
	hashInput = append(hashInput, signed...)
	hash := crypto.Sha512Half(hashInput)

	return SignResult{
		BlobHex: strings.ToUpper(hex.EncodeToString(signed)),
		Hash:    strings.ToUpper(hex.EncodeToString(hash[:])),
	}, nil
}

// SigningPayload returns the prefixed serialization signed by the account
// key. Ed25519 signs this payload directly; secp256k1 signs its SHA512-half.
func SigningPayload(p Payment) ([]byte, error) {
	serialized, err := serialize(p, nil)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, 0, 4+len(serialized))
	payload = binary.BigEndian.AppendUint32(payload, signingPrefix)
	return append(payload, serialized...), nil
}

func serialize(p Payment, signature []byte) ([]byte, error) {
	if !p.Amount.IsPositive() || !p.Fee.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if p.SigningPubKey == "" {
		return nil, ErrMissingKey
	}

	pubKey, err := hex.DecodeString(p.SigningPubKey)
	if err != nil {
		return nil, fmt.Errorf("decoding signing public key: %w", err)
	}

	account, err := addresscodec.DecodeClassicAddress(p.Account)
	if err != nil {
		return nil, fmt.Errorf("decoding account: %w", err)
	}
	destination, err := addresscodec.DecodeClassicAddress(p.Destination)
	if err != nil {
		return nil, fmt.Errorf("decoding destination: %w", err)
	}

	var out []byte

	out = append(out, fieldTransactionType)
	out = binary.BigEndian.AppendUint16(out, paymentTransactionType)

	out = append(out, fieldSequence)
	out = binary.BigEndian.AppendUint32(out, p.Sequence)

	if p.LastLedgerSequence != 0 {
		out = append(out, fieldLastLedgerSequence, 27)
		out = binary.BigEndian.AppendUint32(out, p.LastLedgerSequence)
	}

	out = append(out, fieldAmount)
	out = binary.BigEndian.AppendUint64(out, xrpAmountFlag|uint64(p.Amount.Drops()))

	out = append(out, fieldFee)
	out = binary.BigEndian.AppendUint64(out, xrpAmountFlag|uint64(p.Fee.Drops()))

	out = append(out, fieldSigningPubKey)
	out = appendVL(out, pubKey)

	if signature != nil {
		out = append(out, fieldTxnSignature)
		out = appendVL(out, signature)
	}

	out = append(out, fieldAccount)
	out = appendVL(out, account)

	out = append(out, fieldDestination)
	out = appendVL(out, destination)

	return out, nil
}

// appendVL writes a variable-length prefix followed by the data. Lengths in
// this codec never exceed the two-byte range.
func appendVL(out, data []byte) []byte {
	n := len(data)
	switch {
	case n <= 192:
		out = append(out, byte(n))
	case n <= 12480:
		n -= 193
		out = append(out, byte(193+(n>>8)), byte(n&0xFF))
	default:
		panic("txblob: field too long")
	}
	return append(out, data...)
}
