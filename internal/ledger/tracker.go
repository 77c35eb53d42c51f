// Package ledger tracks the progression of closed ledgers. Duplicate or
// out-of-order close events, which asynchronous push delivery allows, are
// discarded so the tracked index only ever moves forward.
package ledger

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/LeJamon/xrpltop/internal/metrics"
)

// rippleEpoch is 2000-01-01T00:00:00Z; ledger close times are seconds since
// this epoch.
const rippleEpoch = 946684800

// State is the most recently accepted ledger close.
type State struct {
	Index     uint32
	Hash      string
	CloseTime time.Time
	TxnCount  int
}

// Tracker applies ledger close events under a monotonic-index policy.
type Tracker struct {
	logger   *zap.Logger
	metrics  *metrics.Metrics
	onUpdate func(State)

	mu    sync.Mutex
	state State
}

// NewTracker creates a tracker. onUpdate, if non-nil, fires after every
// accepted event with a copy of the new state.
func NewTracker(logger *zap.Logger, m *metrics.Metrics, onUpdate func(State)) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{logger: logger, metrics: m, onUpdate: onUpdate}
}

// OnLedgerClosed applies a ledger close event. Events with an index at or
// below the current one are discarded and logged; the return value reports
// whether the event was accepted.
func (t *Tracker) OnLedgerClosed(index uint32, hash string, closeTime int64, txnCount int) bool {
	t.mu.Lock()
	if t.state.Index != 0 && index <= t.state.Index {
		current := t.state.Index
		t.mu.Unlock()
		t.metrics.StaleLedgerEvent()
		t.logger.Debug("discarding stale ledger close",
			zap.Uint32("index", index), zap.Uint32("current", current))
		return false
	}

	t.state = State{
		Index:     index,
		Hash:      hash,
		CloseTime: RippleTimeToUTC(closeTime),
		TxnCount:  txnCount,
	}
	state := t.state
	t.mu.Unlock()

	t.metrics.LedgerClosed()
	if t.onUpdate != nil {
		t.onUpdate(state)
	}
	return true
}

// State returns the most recently accepted ledger state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// RippleTimeToUTC converts seconds since the ripple epoch to UTC.
func RippleTimeToUTC(rippleTime int64) time.Time {
	return time.Unix(rippleEpoch+rippleTime, 0).UTC()
}
