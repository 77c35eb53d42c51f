package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func masterpassphraseSeed() []byte {
	seedHash := Sha512Half([]byte("masterpassphrase"))
	return seedHash[:16]
}

func TestSha512Half(t *testing.T) {
	tt := []struct {
		description string
		input       []byte
		expected    [32]uint8
	}{
		{
			description: "hash of fakeRandomString",
			input:       []byte{102, 97, 107, 101, 82, 97, 110, 100, 111, 109, 83, 116, 114, 105, 110, 103},
			expected:    [32]uint8{0xbb, 0x3e, 0xca, 0x89, 0x85, 0xe1, 0x48, 0x4f, 0xa6, 0xa2, 0x8c, 0x4b, 0x30, 0xfb, 0x0, 0x42, 0xa2, 0xcc, 0x5d, 0xf3, 0xec, 0x8d, 0xc3, 0x7b, 0x5f, 0x3d, 0x12, 0x6d, 0xdf, 0xd3, 0xca, 0x14},
		},
	}

	for _, tc := range tt {
		t.Run(tc.description, func(t *testing.T) {
			got := Sha512Half(tc.input)
			require.Equal(t, tc.expected, got)
		})
	}
}

func TestDeriveKeypairDeterministic(t *testing.T) {
	for _, algo := range []Algorithm{ED25519(), SECP256K1()} {
		t.Run(algo.Name(), func(t *testing.T) {
			seed1 := masterpassphraseSeed()
			seed2 := masterpassphraseSeed()

			priv1, pub1, err := algo.DeriveKeypair(seed1, false)
			require.NoError(t, err)
			priv2, pub2, err := algo.DeriveKeypair(seed2, false)
			require.NoError(t, err)

			require.Equal(t, priv1, priv2)
			require.Equal(t, pub1, pub2)
			// The input seed must not be modified by derivation.
			require.Equal(t, masterpassphraseSeed(), seed1)
		})
	}
}

func TestDeriveKeypairKeyPrefixes(t *testing.T) {
	seed := masterpassphraseSeed()

	privEd, pubEd, err := ED25519().DeriveKeypair(seed, false)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(privEd, "ED"))
	require.True(t, strings.HasPrefix(pubEd, "ED"))

	privSecp, pubSecp, err := SECP256K1().DeriveKeypair(seed, false)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(privSecp, "00"))
	require.Len(t, pubSecp, 66)
}

func TestDeriveKeypairRejectsShortSeed(t *testing.T) {
	for _, algo := range []Algorithm{ED25519(), SECP256K1()} {
		_, _, err := algo.DeriveKeypair([]byte{1, 2, 3}, false)
		require.ErrorIs(t, err, ErrInvalidSeedLength)
	}
}

func TestEd25519ValidatorKeysUnsupported(t *testing.T) {
	_, _, err := ED25519().DeriveKeypair(masterpassphraseSeed(), true)
	require.ErrorIs(t, err, ErrValidatorNotSupported)
}

func TestSignAndVerify(t *testing.T) {
	message := []byte("test message for signing")

	for _, algo := range []Algorithm{ED25519(), SECP256K1()} {
		t.Run(algo.Name(), func(t *testing.T) {
			priv, pub, err := algo.DeriveKeypair(masterpassphraseSeed(), false)
			require.NoError(t, err)

			sig, err := algo.Sign(message, priv)
			require.NoError(t, err)
			require.NotEmpty(t, sig)

			require.True(t, algo.Verify(message, pub, sig))
			require.False(t, algo.Verify([]byte("tampered message"), pub, sig))
		})
	}
}

func TestSignRejectsMalformedPrivateKey(t *testing.T) {
	for _, algo := range []Algorithm{ED25519(), SECP256K1()} {
		_, err := algo.Sign([]byte("msg"), "not-hex")
		require.Error(t, err)
	}
}

func TestCalcAccountIDSize(t *testing.T) {
	_, pub, err := ED25519().DeriveKeypair(masterpassphraseSeed(), false)
	require.NoError(t, err)

	id := CalcAccountID([]byte(pub))
	require.Len(t, id[:], AccountIDSize)
}
