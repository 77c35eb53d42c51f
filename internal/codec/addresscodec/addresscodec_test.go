package addresscodec

import (
	"encoding/hex"
	"testing"

	"github.com/LeJamon/xrpltop/internal/crypto"
	"github.com/stretchr/testify/require"
)

// Seed encoding test vectors from the rippled reference implementation.
func TestSeedFromPassphraseRippledVectors(t *testing.T) {
	testcases := []struct {
		name         string
		passphrase   string
		expectedSeed string
	}{
		{
			name:         "masterpassphrase - genesis account seed",
			passphrase:   "masterpassphrase",
			expectedSeed: "snoPBrXtMeMyMHUVTgbuqAfg1SUTb",
		},
		{
			name:         "Non-Random Passphrase",
			passphrase:   "Non-Random Passphrase",
			expectedSeed: "snMKnVku798EnBwUfxeSD8953sLYA",
		},
		{
			name:         "cookies excitement hand public - BIP39 style passphrase",
			passphrase:   "cookies excitement hand public",
			expectedSeed: "sspUXGrmjQhq6mgc24jiRuevZiwKT",
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			seedHash := crypto.Sha512Half([]byte(tc.passphrase))
			encodedSeed, err := EncodeSeed(seedHash[:16], crypto.SECP256K1())
			require.NoError(t, err)
			require.Equal(t, tc.expectedSeed, encodedSeed)
		})
	}
}

func TestSeedDecode(t *testing.T) {
	testcases := []struct {
		name        string
		seed        string
		expectError bool
	}{
		{
			name:        "empty string should fail",
			seed:        "",
			expectError: true,
		},
		{
			name:        "too short seed should fail",
			seed:        "sspUXGrmjQhq6mgc24jiRuevZiwK",
			expectError: true,
		},
		{
			name:        "too long seed should fail",
			seed:        "sspUXGrmjQhq6mgc24jiRuevZiwKTT",
			expectError: true,
		},
		{
			name:        "valid masterpassphrase seed should succeed",
			seed:        "snoPBrXtMeMyMHUVTgbuqAfg1SUTb",
			expectError: false,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeSeed(tc.seed)
			if tc.expectError {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSeedRoundTripAllAlgorithms(t *testing.T) {
	passphrases := []string{
		"masterpassphrase",
		"Non-Random Passphrase",
		"cookies excitement hand public",
	}

	for _, passphrase := range passphrases {
		t.Run(passphrase, func(t *testing.T) {
			seedHash := crypto.Sha512Half([]byte(passphrase))
			original := seedHash[:16]

			for _, algo := range []crypto.Algorithm{crypto.SECP256K1(), crypto.ED25519()} {
				t.Run(algo.Name(), func(t *testing.T) {
					encoded, err := EncodeSeed(original, algo)
					require.NoError(t, err)

					decoded, decodedAlgo, err := DecodeSeed(encoded)
					require.NoError(t, err)
					require.Equal(t, original, decoded)
					require.Equal(t, algo, decodedAlgo)
				})
			}
		})
	}
}

// Full secp256k1 account key derivation against rippled test vectors for
// "masterpassphrase". These are the account keys, not node/root keys.
func TestSecp256k1KeyDerivationFromMasterpassphrase(t *testing.T) {
	expectedAccountAddress := "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	expectedAccountPublicKeyBase58 := "aBQG8RQAzjs1eTKFEAQXr2gS4utcDiEC9wmi7pfUPTi27VCahwgw"

	seedHash := crypto.Sha512Half([]byte("masterpassphrase"))
	seedBytes := seedHash[:16]

	encodedSeed, err := EncodeSeed(seedBytes, crypto.SECP256K1())
	require.NoError(t, err)
	require.Equal(t, "snoPBrXtMeMyMHUVTgbuqAfg1SUTb", encodedSeed)

	_, pubKeyHex, err := crypto.SECP256K1().DeriveKeypair(seedBytes, false)
	require.NoError(t, err)

	accountAddress, err := EncodeClassicAddressFromPublicKeyHex(pubKeyHex)
	require.NoError(t, err)
	require.Equal(t, expectedAccountAddress, accountAddress)

	pubKeyBytes, err := hex.DecodeString(pubKeyHex)
	require.NoError(t, err)
	accountPublicKeyBase58, err := EncodeAccountPublicKey(pubKeyBytes)
	require.NoError(t, err)
	require.Equal(t, expectedAccountPublicKeyBase58, accountPublicKeyBase58)
}

// Full ed25519 account key derivation against rippled test vectors for
// "masterpassphrase".
func TestED25519KeyDerivationFromMasterpassphrase(t *testing.T) {
	expectedAccountAddress := "rGWrZyQqhTp9Xu7G5Pkayo7bXjH4k4QYpf"
	expectedAccountPublicKeyBase58 := "aKGheSBjmCsKJVuLNKRAKpZXT6wpk2FCuEZAXJupXgdAxX5THCqR"
	expectedNodePublicKeyBase58 := "nHUeeJCSY2dM71oxM8Cgjouf5ekTuev2mwDpc374aLMxzDLXNmjf"

	seedHash := crypto.Sha512Half([]byte("masterpassphrase"))
	seedBytes := seedHash[:16]

	_, pubKeyHex, err := crypto.ED25519().DeriveKeypair(seedBytes, false)
	require.NoError(t, err)

	accountAddress, err := EncodeClassicAddressFromPublicKeyHex(pubKeyHex)
	require.NoError(t, err)
	require.Equal(t, expectedAccountAddress, accountAddress)

	pubKeyBytes, err := hex.DecodeString(pubKeyHex)
	require.NoError(t, err)
	accountPublicKeyBase58, err := EncodeAccountPublicKey(pubKeyBytes)
	require.NoError(t, err)
	require.Equal(t, expectedAccountPublicKeyBase58, accountPublicKeyBase58)

	nodePublicKeyBase58, err := EncodeNodePublicKey(pubKeyBytes)
	require.NoError(t, err)
	require.Equal(t, expectedNodePublicKeyBase58, nodePublicKeyBase58)
}

func TestClassicAddressRoundTrip(t *testing.T) {
	seedHash := crypto.Sha512Half([]byte("masterpassphrase"))
	_, pubKeyHex, err := crypto.ED25519().DeriveKeypair(seedHash[:16], false)
	require.NoError(t, err)

	address, err := EncodeClassicAddressFromPublicKeyHex(pubKeyHex)
	require.NoError(t, err)
	require.True(t, IsValidClassicAddress(address))

	accountID, err := DecodeClassicAddress(address)
	require.NoError(t, err)

	reencoded, err := EncodeAccountID(accountID)
	require.NoError(t, err)
	require.Equal(t, address, reencoded)
}

func TestDecodeClassicAddressRejectsGarbage(t *testing.T) {
	for _, addr := range []string{"", "rInvalid0OIl", "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTX"} {
		_, err := DecodeClassicAddress(addr)
		require.Error(t, err)
	}
}
