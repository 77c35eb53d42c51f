package crypto

import "crypto/sha512"

// Sha512Half computes SHA-512 and returns the first 256 bits, the standard
// XRPL hashing primitive.
func Sha512Half(data []byte) [32]byte {
	hash := sha512.Sum512(data)
	var half [32]byte
	copy(half[:], hash[:32])
	return half
}
