// Package wallet owns the set of managed wallets. Wallet identity is always
// established locally (faucet provisioning or seed import) before any network
// event can touch it; balance updates for unknown addresses are discarded.
package wallet

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/LeJamon/xrpltop/internal/metrics"
	"github.com/LeJamon/xrpltop/internal/xrpamount"
)

// Source records how a wallet was obtained.
type Source int

const (
	SourceFaucet Source = iota
	SourceImported
)

func (s Source) String() string {
	if s == SourceImported {
		return "imported"
	}
	return "faucet"
}

var (
	ErrDuplicateAddress = errors.New("wallet address already registered")
	ErrNegativeBalance  = errors.New("wallet balance cannot be negative")
	ErrEmptyAddress     = errors.New("wallet address is empty")
)

// Wallet is a managed wallet as exposed to the display layer. Key material
// lives in the engine's keyring, in memory only, and never appears in
// snapshots.
type Wallet struct {
	Address         string
	Balance         xrpamount.Amount
	PreviousBalance xrpamount.Amount
	HasPrevious     bool
	Label           string
	Source          Source
	CreatedAt       time.Time
}

// ShortAddress returns a shortened form for display.
func (w Wallet) ShortAddress() string {
	if len(w.Address) <= 10 {
		return w.Address
	}
	return w.Address[:6] + "..." + w.Address[len(w.Address)-4:]
}

// BalanceChange returns the delta since the previous balance update, and
// whether a previous balance exists.
func (w Wallet) BalanceChange() (xrpamount.Amount, bool) {
	if !w.HasPrevious {
		return 0, false
	}
	return w.Balance.Sub(w.PreviousBalance), true
}

// Registry is the single owner of wallet state. Every mutation runs to
// completion under the registry lock before the next is admitted; external
// calls such as faucet provisioning happen outside the lock.
type Registry struct {
	logger   *zap.Logger
	metrics  *metrics.Metrics
	onChange func()

	mu      sync.Mutex
	wallets map[string]*Wallet
	order   []string
}

// NewRegistry creates an empty registry. onChange, if non-nil, fires after
// every successful mutation except Debit, which leaves publishing to its
// caller.
func NewRegistry(logger *zap.Logger, m *metrics.Metrics, onChange func()) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:   logger,
		metrics:  m,
		onChange: onChange,
		wallets:  make(map[string]*Wallet),
	}
}

// Register adds a wallet. The address is immutable once assigned and must be
// unique.
func (r *Registry) Register(w Wallet) error {
	if w.Address == "" {
		return ErrEmptyAddress
	}
	if w.Balance.IsNegative() {
		return ErrNegativeBalance
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	if _, exists := r.wallets[w.Address]; exists {
		r.mu.Unlock()
		return ErrDuplicateAddress
	}
	stored := w
	r.wallets[w.Address] = &stored
	r.order = append(r.order, w.Address)
	r.mu.Unlock()

	r.metrics.WalletCreated(w.Source.String())
	r.logger.Info("wallet registered",
		zap.String("address", w.Address),
		zap.String("source", w.Source.String()),
		zap.Int64("balance_drops", w.Balance.Drops()))
	r.notify()
	return nil
}

// ApplyBalanceUpdate sets a wallet's balance from a network-sourced value.
// Updates for unregistered addresses are ignored: the registry never
// materializes a wallet from a network event. Returns whether a wallet was
// updated.
func (r *Registry) ApplyBalanceUpdate(address string, newBalance xrpamount.Amount) bool {
	if newBalance.IsNegative() {
		r.logger.Warn("ignoring negative balance update", zap.String("address", address))
		return false
	}

	r.mu.Lock()
	w, ok := r.wallets[address]
	if !ok {
		r.mu.Unlock()
		r.metrics.UnknownEvent("balance_update")
		r.logger.Debug("balance update for unknown address", zap.String("address", address))
		return false
	}
	if w.Balance == newBalance {
		r.mu.Unlock()
		return true
	}
	w.PreviousBalance = w.Balance
	w.HasPrevious = true
	w.Balance = newBalance
	r.mu.Unlock()

	r.notify()
	return true
}

// Debit reduces a wallet's balance by the given amount, used when an
// outgoing payment is validated. The balance never goes negative; a debit
// exceeding the balance clamps to zero and is logged, since the
// authoritative value arrives with the next network refresh. Debit does not
// fire onChange: it runs inside the validation commit and the caller
// publishes once both the transaction and the balance are updated.
func (r *Registry) Debit(address string, amount xrpamount.Amount) bool {
	r.mu.Lock()
	w, ok := r.wallets[address]
	if !ok {
		r.mu.Unlock()
		r.metrics.UnknownEvent("debit")
		return false
	}
	w.PreviousBalance = w.Balance
	w.HasPrevious = true
	newBalance := w.Balance.Sub(amount)
	if newBalance.IsNegative() {
		r.logger.Warn("debit exceeds balance, clamping to zero",
			zap.String("address", address),
			zap.Int64("balance_drops", w.Balance.Drops()),
			zap.Int64("debit_drops", amount.Drops()))
		newBalance = 0
	}
	w.Balance = newBalance
	r.mu.Unlock()
	return true
}

// Get returns a copy of the wallet for the address.
func (r *Registry) Get(address string) (Wallet, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[address]
	if !ok {
		return Wallet{}, false
	}
	return *w, true
}

// List returns copies of all wallets in registration order.
func (r *Registry) List() []Wallet {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Wallet, 0, len(r.order))
	for _, addr := range r.order {
		out = append(out, *r.wallets[addr])
	}
	return out
}

// Addresses returns all registered addresses in registration order.
func (r *Registry) Addresses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered wallets.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.wallets)
}

func (r *Registry) notify() {
	if r.onChange != nil {
		r.onChange()
	}
}
