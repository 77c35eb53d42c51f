package txblob

import (
	"encoding/hex"
	"testing"

	"github.com/LeJamon/xrpltop/internal/codec/addresscodec"
	"github.com/LeJamon/xrpltop/internal/crypto"
	"github.com/LeJamon/xrpltop/internal/xrpamount"
	"github.com/stretchr/testify/require"
)

func testKeypair(t *testing.T, algo crypto.Algorithm) (privHex, pubHex, address string) {
	t.Helper()
	seedHash := crypto.Sha512Half([]byte("masterpassphrase"))
	priv, pub, err := algo.DeriveKeypair(seedHash[:16], false)
	require.NoError(t, err)
	addr, err := addresscodec.EncodeClassicAddressFromPublicKeyHex(pub)
	require.NoError(t, err)
	return priv, pub, addr
}

func testPayment(t *testing.T, algo crypto.Algorithm) (Payment, string) {
	t.Helper()
	priv, pub, addr := testKeypair(t, algo)
	return Payment{
		Account:            addr,
		Destination:        "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh",
		Amount:             xrpamount.FromDecimalXRP(10),
		Fee:                xrpamount.FromDrops(12),
		Sequence:           7,
		LastLedgerSequence: 1200,
		SigningPubKey:      pub,
	}, priv
}

func TestSigningPayloadPrefixAndOrder(t *testing.T) {
	p, _ := testPayment(t, crypto.ED25519())

	payload, err := SigningPayload(p)
	require.NoError(t, err)

	// "STX\0" signing prefix.
	require.Equal(t, []byte{0x53, 0x54, 0x58, 0x00}, payload[:4])
	// TransactionType header, then Payment (0).
	require.Equal(t, []byte{0x12, 0x00, 0x00}, payload[4:7])
	// Sequence header.
	require.Equal(t, byte(0x24), payload[7])
}

func TestSignProducesVerifiableSignature(t *testing.T) {
	for _, algo := range []crypto.Algorithm{crypto.ED25519(), crypto.SECP256K1()} {
		t.Run(algo.Name(), func(t *testing.T) {
			p, priv := testPayment(t, algo)

			result, err := Sign(p, algo, priv)
			require.NoError(t, err)
			require.NotEmpty(t, result.BlobHex)
			require.Len(t, result.Hash, 64)

			// The signature embedded in the blob must verify over the
			// signing payload.
			payload, err := SigningPayload(p)
			require.NoError(t, err)

			blob, err := hex.DecodeString(result.BlobHex)
			require.NoError(t, err)
			sig := extractSignature(t, blob)
			require.True(t, algo.Verify(payload, p.SigningPubKey, sig))
		})
	}
}

func TestSignDeterministicForEd25519(t *testing.T) {
	p, priv := testPayment(t, crypto.ED25519())

	first, err := Sign(p, crypto.ED25519(), priv)
	require.NoError(t, err)
	second, err := Sign(p, crypto.ED25519(), priv)
	require.NoError(t, err)

	require.Equal(t, first.BlobHex, second.BlobHex)
	require.Equal(t, first.Hash, second.Hash)
}

func TestSerializeRejectsBadInput(t *testing.T) {
	p, priv := testPayment(t, crypto.ED25519())

	bad := p
	bad.Amount = xrpamount.FromDrops(0)
	_, err := Sign(bad, crypto.ED25519(), priv)
	require.ErrorIs(t, err, ErrInvalidAmount)

	bad = p
	bad.SigningPubKey = ""
	_, err = Sign(bad, crypto.ED25519(), priv)
	require.ErrorIs(t, err, ErrMissingKey)

	bad = p
	bad.Destination = "not-an-address"
	_, err = Sign(bad, crypto.ED25519(), priv)
	require.Error(t, err)
}

// extractSignature walks the serialized fields to the TxnSignature VL field.
func extractSignature(t *testing.T, blob []byte) []byte {
	t.Helper()

	i := 0
	require.Equal(t, byte(0x12), blob[i])
	i += 3 // TransactionType
	require.Equal(t, byte(0x24), blob[i])
	i += 5 // Sequence
	require.Equal(t, byte(0x20), blob[i])
	require.Equal(t, byte(27), blob[i+1])
	i += 6 // LastLedgerSequence
	require.Equal(t, byte(0x61), blob[i])
	i += 9 // Amount
	require.Equal(t, byte(0x68), blob[i])
	i += 9 // Fee
	require.Equal(t, byte(0x73), blob[i])
	i++
	i += 1 + int(blob[i]) // SigningPubKey VL
	require.Equal(t, byte(0x74), blob[i])
	i++
	sigLen := int(blob[i])
	i++
	return blob[i : i+sigLen]
}
