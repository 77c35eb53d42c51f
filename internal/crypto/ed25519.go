package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"strings"
)

// ed25519KeyPrefix identifies ED25519 keys in XRPL. Both the public and
// private key hex forms carry it.
const ed25519KeyPrefix = 0xED

// ErrValidatorNotSupported is returned for validator keypair requests;
// validator keys cannot use Ed25519.
var ErrValidatorNotSupported = errors.New("validator keypairs cannot use Ed25519")

type ed25519Algorithm struct{}

var ed25519Instance = &ed25519Algorithm{}

// ED25519 returns the Ed25519 signature algorithm.
func ED25519() Algorithm {
	return ed25519Instance
}

func (a *ed25519Algorithm) Name() string {
	return "ed25519"
}

func (a *ed25519Algorithm) SeedPrefix() []byte {
	return []byte{0x01, 0xE1, 0x4B}
}

func (a *ed25519Algorithm) DeriveKeypair(seed []byte, validator bool) (string, string, error) {
	if validator {
		return "", "", ErrValidatorNotSupported
	}
	if len(seed) != 16 {
		return "", "", ErrInvalidSeedLength
	}

	keyMaterial := Sha512Half(seed)
	signingKey := ed25519.NewKeyFromSeed(keyMaterial[:])
	pubKey := signingKey.Public().(ed25519.PublicKey)

	prefixedPubKey := append([]byte{ed25519KeyPrefix}, pubKey...)
	prefixedPrivKey := append([]byte{ed25519KeyPrefix}, keyMaterial[:]...)

	public := strings.ToUpper(hex.EncodeToString(prefixedPubKey))
	private := strings.ToUpper(hex.EncodeToString(prefixedPrivKey))

	return private, public, nil
}

func (a *ed25519Algorithm) Sign(message []byte, privateKeyHex string) ([]byte, error) {
	privKeyBytes, err := hex.DecodeString(privateKeyHex)
	if err != nil || len(privKeyBytes) != 33 || privKeyBytes[0] != ed25519KeyPrefix {
		return nil, ErrInvalidPrivateKey
	}

	signingKey := ed25519.NewKeyFromSeed(privKeyBytes[1:])
	return ed25519.Sign(signingKey, message), nil
}

func (a *ed25519Algorithm) Verify(message []byte, publicKeyHex string, signature []byte) bool {
	pubKeyBytes, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(pubKeyBytes) != 33 || pubKeyBytes[0] != ed25519KeyPrefix {
		return false
	}

	return ed25519.Verify(ed25519.PublicKey(pubKeyBytes[1:]), message, signature)
}
