package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LeJamon/xrpltop/internal/xrpamount"
)

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry(nil, nil, nil)

	err := r.Register(Wallet{
		Address: "rSourceAddress1",
		Balance: xrpamount.FromDecimalXRP(10),
		Source:  SourceFaucet,
	})
	require.NoError(t, err)

	w, ok := r.Get("rSourceAddress1")
	require.True(t, ok)
	require.Equal(t, SourceFaucet, w.Source)
	require.True(t, w.Balance.IsPositive())
	require.False(t, w.CreatedAt.IsZero())
	require.Equal(t, 1, r.Len())
}

func TestRegisterRejectsDuplicatesAndInvalid(t *testing.T) {
	r := NewRegistry(nil, nil, nil)

	require.NoError(t, r.Register(Wallet{Address: "rA", Balance: 1}))
	require.ErrorIs(t, r.Register(Wallet{Address: "rA", Balance: 1}), ErrDuplicateAddress)
	require.ErrorIs(t, r.Register(Wallet{Address: "", Balance: 1}), ErrEmptyAddress)
	require.ErrorIs(t, r.Register(Wallet{Address: "rB", Balance: -1}), ErrNegativeBalance)
	require.Equal(t, 1, r.Len())
}

func TestApplyBalanceUpdateUnknownAddressIgnored(t *testing.T) {
	changes := 0
	r := NewRegistry(nil, nil, func() { changes++ })

	require.False(t, r.ApplyBalanceUpdate("rUnknown", xrpamount.FromDrops(100)))
	require.Equal(t, 0, r.Len())
	require.Equal(t, 0, changes)
}

func TestApplyBalanceUpdateTracksPrevious(t *testing.T) {
	r := NewRegistry(nil, nil, nil)
	require.NoError(t, r.Register(Wallet{Address: "rA", Balance: xrpamount.FromDrops(500)}))

	require.True(t, r.ApplyBalanceUpdate("rA", xrpamount.FromDrops(800)))

	w, _ := r.Get("rA")
	change, ok := w.BalanceChange()
	require.True(t, ok)
	require.Equal(t, xrpamount.FromDrops(300), change)
}

func TestDebitClampsAtZero(t *testing.T) {
	r := NewRegistry(nil, nil, nil)
	require.NoError(t, r.Register(Wallet{Address: "rA", Balance: xrpamount.FromDrops(100)}))

	require.True(t, r.Debit("rA", xrpamount.FromDrops(40)))
	w, _ := r.Get("rA")
	require.Equal(t, xrpamount.FromDrops(60), w.Balance)

	require.True(t, r.Debit("rA", xrpamount.FromDrops(1000)))
	w, _ = r.Get("rA")
	require.True(t, w.Balance.IsZero())
	require.False(t, w.Balance.IsNegative())
}

func TestConcurrentRegistrationsYieldDistinctEntries(t *testing.T) {
	r := NewRegistry(nil, nil, nil)

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := r.Register(Wallet{
				Address: fmt.Sprintf("rAddr%02d", i),
				Balance: xrpamount.FromDecimalXRP(10),
				Source:  SourceFaucet,
			})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Equal(t, n, r.Len())
	seen := make(map[string]bool)
	for _, w := range r.List() {
		require.False(t, seen[w.Address])
		seen[w.Address] = true
	}
}

func TestListPreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry(nil, nil, nil)
	for _, addr := range []string{"rC", "rA", "rB"} {
		require.NoError(t, r.Register(Wallet{Address: addr, Balance: 1}))
	}

	list := r.List()
	require.Equal(t, []string{"rC", "rA", "rB"}, []string{list[0].Address, list[1].Address, list[2].Address})
}

func TestShortAddress(t *testing.T) {
	w := Wallet{Address: "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"}
	require.Equal(t, "rHb9CJ...tyTh", w.ShortAddress())
}

func TestFaucetClientProvisionWallet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, http.MethodPost, req.Method)
		json.NewEncoder(w).Encode(map[string]any{
			"account": map[string]any{
				"classicAddress": "rNewWallet",
				"secret":         "sEdTM1uX8pu2do5XvTnutH6HsouMaM2",
			},
			"amount": 10,
		})
	}))
	defer srv.Close()

	c := NewFaucetClient(srv.URL, 5*time.Second, nil)
	result, err := c.ProvisionWallet(context.Background())
	require.NoError(t, err)
	require.Equal(t, "rNewWallet", result.Address)
	require.Equal(t, "sEdTM1uX8pu2do5XvTnutH6HsouMaM2", result.Seed)
	require.Equal(t, xrpamount.FromDecimalXRP(10), result.Balance)
}

func TestFaucetClientSurfacesFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "over capacity", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewFaucetClient(srv.URL, 5*time.Second, nil)
	_, err := c.ProvisionWallet(context.Background())
	require.ErrorIs(t, err, ErrWalletCreationFailed)
}
