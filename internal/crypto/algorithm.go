// Package crypto implements the key derivation and signing schemes used by
// the XRP Ledger. Both supported schemes derive account keypairs from a
// 16-byte seed and sign arbitrary messages; hashing conventions differ per
// scheme and are handled inside each Algorithm.
package crypto

import "errors"

var (
	ErrInvalidSeedLength = errors.New("seed must be exactly 16 bytes")
	ErrInvalidPrivateKey = errors.New("invalid private key format")
	ErrInvalidPublicKey  = errors.New("invalid public key format")
)

// Algorithm is a signature scheme supported by the XRP Ledger.
//
// DeriveKeypair returns hex-encoded private and public keys including the
// XRPL key prefixes. Sign takes the full message to sign; each scheme
// applies its own digest convention internally (ed25519 signs the message
// directly, secp256k1 signs its SHA512-half).
type Algorithm interface {
	Name() string
	SeedPrefix() []byte
	DeriveKeypair(seed []byte, validator bool) (privateKeyHex, publicKeyHex string, err error)
	Sign(message []byte, privateKeyHex string) ([]byte, error)
	Verify(message []byte, publicKeyHex string, signature []byte) bool
}
