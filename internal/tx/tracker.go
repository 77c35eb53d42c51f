// Package tx owns the lifecycle of outgoing payments. Each transaction moves
// through Submitted -> Pending -> Validated, with Failed reachable from
// Submitted (network rejection) or Pending (validation timeout). Terminal
// states are never left.
package tx

import (
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/LeJamon/xrpltop/internal/metrics"
	"github.com/LeJamon/xrpltop/internal/xrpamount"
)

// Status is a transaction lifecycle state.
type Status int

const (
	StatusSubmitted Status = iota
	StatusPending
	StatusValidated
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSubmitted:
		return "submitted"
	case StatusPending:
		return "pending"
	case StatusValidated:
		return "validated"
	default:
		return "failed"
	}
}

// Terminal reports whether the state can never transition again.
func (s Status) Terminal() bool {
	return s == StatusValidated || s == StatusFailed
}

// ReasonValidationTimeout marks a pending transaction whose validation event
// never arrived within the configured window.
const ReasonValidationTimeout = "validation timeout"

// Transaction is one tracked outgoing payment.
type Transaction struct {
	ID          string
	Hash        string
	Source      string
	Destination string
	Amount      xrpamount.Amount
	Fee         xrpamount.Amount
	Status      Status
	Reason      string
	SubmittedAt time.Time
	ValidatedAt time.Time
	LedgerIndex uint32
}

// ShortHash returns a shortened hash for display.
func (t Transaction) ShortHash() string {
	if len(t.Hash) <= 16 {
		return t.Hash
	}
	return t.Hash[:8] + "..." + t.Hash[len(t.Hash)-8:]
}

// seenHashCacheSize bounds the duplicate-validation suppression cache.
const seenHashCacheSize = 512

// Tracker correlates submission results and validation events with tracked
// transactions. All mutation entry points are safe for concurrent use.
type Tracker struct {
	logger            *zap.Logger
	metrics           *metrics.Metrics
	validationTimeout time.Duration
	maxRecent         int
	onChange          func()
	onValidated       func(Transaction)

	mu     sync.Mutex
	byID   map[string]*Transaction
	byHash map[string]string
	order  []string
	timers map[string]*time.Timer
	seen   *lru.Cache[string, struct{}]
	closed bool
}

// NewTracker creates a tracker. onValidated, if non-nil, fires with a copy
// of the transaction while the Validated state is being committed, before it
// becomes readable; the engine uses it to debit the source wallet so no
// reader sees the validated status with the pre-debit balance. It must not
// call back into the tracker. onChange fires after every successful
// mutation.
func NewTracker(validationTimeout time.Duration, maxRecent int, logger *zap.Logger, m *metrics.Metrics, onChange func(), onValidated func(Transaction)) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validationTimeout == 0 {
		validationTimeout = 20 * time.Second
	}
	if maxRecent == 0 {
		maxRecent = 50
	}
	seen, _ := lru.New[string, struct{}](seenHashCacheSize)
	return &Tracker{
		logger:            logger,
		metrics:           m,
		validationTimeout: validationTimeout,
		maxRecent:         maxRecent,
		onChange:          onChange,
		onValidated:       onValidated,
		byID:              make(map[string]*Transaction),
		byHash:            make(map[string]string),
		timers:            make(map[string]*time.Timer),
		seen:              seen,
	}
}

// Track records a new submission in Submitted state and returns it. The
// correlation id is locally generated and unique per submission.
func (tr *Tracker) Track(source, destination string, amount, fee xrpamount.Amount) Transaction {
	t := Transaction{
		ID:          uuid.NewString(),
		Source:      source,
		Destination: destination,
		Amount:      amount,
		Fee:         fee,
		Status:      StatusSubmitted,
		SubmittedAt: time.Now().UTC(),
	}

	tr.mu.Lock()
	stored := t
	tr.byID[t.ID] = &stored
	tr.order = append(tr.order, t.ID)
	tr.mu.Unlock()

	tr.metrics.TransactionStatus(StatusSubmitted.String())
	tr.notify()
	return t
}

// OnSubmitResult applies the network's answer to a submission. Accepted
// submissions move to Pending under the network-assigned hash and start the
// validation timeout; rejected ones move to Failed with the given reason.
// Results for unknown ids or transactions already past Submitted are no-ops.
func (tr *Tracker) OnSubmitResult(id string, accepted bool, hash, reason string) bool {
	tr.mu.Lock()
	t, ok := tr.byID[id]
	if !ok || t.Status != StatusSubmitted {
		tr.mu.Unlock()
		if !ok {
			tr.metrics.UnknownEvent("submit_result")
			tr.logger.Debug("submit result for unknown transaction", zap.String("id", id))
		}
		return false
	}

	if accepted {
		t.Status = StatusPending
		t.Hash = hash
		if hash != "" {
			tr.byHash[hash] = id
		}
		if !tr.closed {
			tr.timers[id] = time.AfterFunc(tr.validationTimeout, func() {
				tr.expire(id)
			})
		}
		tr.mu.Unlock()
		tr.logger.Info("transaction pending",
			zap.String("id", id), zap.String("hash", hash))
	} else {
		t.Status = StatusFailed
		t.Reason = reason
		tr.mu.Unlock()
		tr.metrics.TransactionStatus(StatusFailed.String())
		tr.logger.Warn("submission rejected",
			zap.String("id", id), zap.String("reason", reason))
	}

	tr.notify()
	return true
}

// OnValidationEvent applies a validation notification by transaction hash.
// Duplicate deliveries and hashes matching no Pending transaction are
// ignored. Returns whether a transaction was validated.
func (tr *Tracker) OnValidationEvent(hash string, ledgerIndex uint32) bool {
	if hash == "" {
		return false
	}

	tr.mu.Lock()
	if _, dup := tr.seen.Get(hash); dup {
		tr.mu.Unlock()
		return false
	}

	id, ok := tr.byHash[hash]
	if !ok {
		tr.mu.Unlock()
		tr.metrics.UnknownEvent("validation")
		tr.logger.Debug("validation event for untracked hash", zap.String("hash", hash))
		return false
	}

	t := tr.byID[id]
	if t.Status != StatusPending {
		tr.mu.Unlock()
		return false
	}

	t.Status = StatusValidated
	t.ValidatedAt = time.Now().UTC()
	t.LedgerIndex = ledgerIndex
	tr.seen.Add(hash, struct{}{})
	tr.stopTimerLocked(id)
	validated := *t
	// The debit happens before the lock is released so the validated status
	// and the balance change become readable together.
	if tr.onValidated != nil {
		tr.onValidated(validated)
	}
	tr.mu.Unlock()

	tr.metrics.TransactionStatus(StatusValidated.String())
	tr.logger.Info("transaction validated",
		zap.String("id", id),
		zap.String("hash", hash),
		zap.Uint32("ledger_index", ledgerIndex))

	tr.notify()
	return true
}

// expire marks a still-Pending transaction as Failed with the timeout
// reason. A timer that fires after the transaction reached a terminal state
// is a no-op.
func (tr *Tracker) expire(id string) {
	tr.mu.Lock()
	t, ok := tr.byID[id]
	if !ok || t.Status != StatusPending {
		tr.mu.Unlock()
		return
	}
	t.Status = StatusFailed
	t.Reason = ReasonValidationTimeout
	delete(tr.timers, id)
	tr.mu.Unlock()

	tr.metrics.TransactionStatus(StatusFailed.String())
	tr.logger.Warn("transaction validation timed out", zap.String("id", id))
	tr.notify()
}

// Get returns a copy of the transaction with the given correlation id.
func (tr *Tracker) Get(id string) (Transaction, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	t, ok := tr.byID[id]
	if !ok {
		return Transaction{}, false
	}
	return *t, true
}

// List returns copies of tracked transactions, most recent first, capped at
// the configured history size.
func (tr *Tracker) List() []Transaction {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	n := len(tr.order)
	limit := n
	if limit > tr.maxRecent {
		limit = tr.maxRecent
	}
	out := make([]Transaction, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *tr.byID[tr.order[i]])
	}
	return out
}

// Close cancels all outstanding validation timers.
func (tr *Tracker) Close() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.closed = true
	for id, timer := range tr.timers {
		timer.Stop()
		delete(tr.timers, id)
	}
}

func (tr *Tracker) stopTimerLocked(id string) {
	if timer, ok := tr.timers[id]; ok {
		timer.Stop()
		delete(tr.timers, id)
	}
}

func (tr *Tracker) notify() {
	if tr.onChange != nil {
		tr.onChange()
	}
}
