// Package state aggregates the engine's sub-states into immutable, versioned
// snapshots for the display layer. A snapshot is built and swapped in as a
// whole: readers never observe a partially updated view.
package state

import (
	"sync"
	"time"

	"github.com/LeJamon/xrpltop/internal/ledger"
	"github.com/LeJamon/xrpltop/internal/metrics"
	"github.com/LeJamon/xrpltop/internal/tx"
	"github.com/LeJamon/xrpltop/internal/wallet"
)

// Snapshot is an immutable composite of all engine state. Slices are owned
// by the snapshot; consumers must not mutate them.
type Snapshot struct {
	Version      uint64
	Connection   string
	Ledger       ledger.State
	Wallets      []wallet.Wallet
	Transactions []tx.Transaction
	PublishedAt  time.Time
}

// Sources supplies consistent copies of each component's state.
type Sources struct {
	Ledger       func() ledger.State
	Wallets      func() []wallet.Wallet
	Transactions func() []tx.Transaction
	Connection   func() string
}

// Publisher owns snapshot construction. Publish collects all sources and
// swaps in a complete new snapshot; registered listeners observe every
// published version in order.
type Publisher struct {
	metrics *metrics.Metrics
	sources Sources

	// publishMu serializes collect-and-swap so versions are ordered.
	publishMu sync.Mutex

	mu        sync.RWMutex
	current   Snapshot
	listeners []func(Snapshot)
}

func NewPublisher(sources Sources, m *metrics.Metrics) *Publisher {
	return &Publisher{metrics: m, sources: sources}
}

// Current returns the latest published snapshot.
func (p *Publisher) Current() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// OnChange registers a listener invoked after every publish with the new
// snapshot. Listeners must not block and must not call Publish.
func (p *Publisher) OnChange(fn func(Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Publish builds a new snapshot from the sources and makes it current.
func (p *Publisher) Publish() Snapshot {
	p.publishMu.Lock()

	snap := Snapshot{PublishedAt: time.Now().UTC()}
	if p.sources.Ledger != nil {
		snap.Ledger = p.sources.Ledger()
	}
	// Transactions before wallets: a validation's balance debit is applied
	// before the validated status becomes readable, so reading in this order
	// never pairs a validated transaction with the pre-debit balance.
	if p.sources.Transactions != nil {
		snap.Transactions = p.sources.Transactions()
	}
	if p.sources.Wallets != nil {
		snap.Wallets = p.sources.Wallets()
	}
	if p.sources.Connection != nil {
		snap.Connection = p.sources.Connection()
	}

	p.mu.Lock()
	snap.Version = p.current.Version + 1
	p.current = snap
	listeners := make([]func(Snapshot), len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()

	p.metrics.SnapshotVersion(snap.Version)
	// Listeners run before publishMu is released so they observe versions
	// in publish order.
	for _, fn := range listeners {
		fn(snap)
	}

	p.publishMu.Unlock()
	return snap
}
