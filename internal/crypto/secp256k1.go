package crypto

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// secp256k1KeyPrefix identifies secp256k1 private keys in XRPL hex form.
const secp256k1KeyPrefix = 0x00

type secp256k1Algorithm struct{}

var secp256k1Instance = &secp256k1Algorithm{}

// SECP256K1 returns the secp256k1 signature algorithm.
func SECP256K1() Algorithm {
	return secp256k1Instance
}

func (a *secp256k1Algorithm) Name() string {
	return "secp256k1"
}

func (a *secp256k1Algorithm) SeedPrefix() []byte {
	return []byte{0x21}
}

// DeriveKeypair performs rippled's two-step account key derivation:
// a root keypair is derived from the seed, then an intermediate scalar
// derived from the root public key is added to produce the account key.
// Node/root keys (validator == true) skip the second step.
func (a *secp256k1Algorithm) DeriveKeypair(seed []byte, validator bool) (string, string, error) {
	if len(seed) != 16 {
		return "", "", ErrInvalidSeedLength
	}

	rootScalar := deriveScalar(seed)
	rootPriv := secp256k1.NewPrivateKey(rootScalar)
	rootPub := rootPriv.PubKey().SerializeCompressed()

	accountScalar := rootScalar
	accountPub := rootPub
	if !validator {
		// Intermediate material: root public key, account family (0),
		// then the validity counter appended by deriveScalar.
		material := make([]byte, 0, len(rootPub)+4)
		material = append(material, rootPub...)
		material = append(material, 0, 0, 0, 0)

		intermediate := deriveScalar(material)
		accountScalar = new(secp256k1.ModNScalar).Set(rootScalar).Add(intermediate)
		accountPriv := secp256k1.NewPrivateKey(accountScalar)
		accountPub = accountPriv.PubKey().SerializeCompressed()
	}

	privBytes := secp256k1.NewPrivateKey(accountScalar).Serialize()
	prefixedPrivKey := append([]byte{secp256k1KeyPrefix}, privBytes...)

	private := strings.ToUpper(hex.EncodeToString(prefixedPrivKey))
	public := strings.ToUpper(hex.EncodeToString(accountPub))

	return private, public, nil
}

// deriveScalar hashes the material with an incrementing 32-bit counter
// until the result is a valid non-zero scalar on the curve. The input is
// never modified.
func deriveScalar(material []byte) *secp256k1.ModNScalar {
	buf := make([]byte, len(material)+4)
	copy(buf, material)

	for seq := uint32(0); ; seq++ {
		binary.BigEndian.PutUint32(buf[len(material):], seq)
		candidate := Sha512Half(buf)

		scalar := new(secp256k1.ModNScalar)
		overflow := scalar.SetByteSlice(candidate[:])
		if !overflow && !scalar.IsZero() {
			return scalar
		}
	}
}

func (a *secp256k1Algorithm) Sign(message []byte, privateKeyHex string) ([]byte, error) {
	privKeyBytes, err := decodeSecp256k1PrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}

	privKey := secp256k1.PrivKeyFromBytes(privKeyBytes)
	digest := Sha512Half(message)
	sig := secpecdsa.Sign(privKey, digest[:])
	return sig.Serialize(), nil
}

func (a *secp256k1Algorithm) Verify(message []byte, publicKeyHex string, signature []byte) bool {
	pubKeyBytes, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return false
	}

	pubKey, err := secp256k1.ParsePubKey(pubKeyBytes)
	if err != nil {
		return false
	}

	sig, err := secpecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}

	digest := Sha512Half(message)
	return sig.Verify(digest[:], pubKey)
}

func decodeSecp256k1PrivateKey(privateKeyHex string) ([]byte, error) {
	switch len(privateKeyHex) {
	case 66:
		if !strings.HasPrefix(privateKeyHex, "00") {
			return nil, ErrInvalidPrivateKey
		}
		privateKeyHex = privateKeyHex[2:]
	case 64:
		// Unprefixed form is accepted as-is.
	default:
		return nil, ErrInvalidPrivateKey
	}

	privKeyBytes, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, ErrInvalidPrivateKey
	}
	return privKeyBytes, nil
}
