// Package engine wires the websocket session, wallet registry, ledger and
// transaction trackers, and the snapshot publisher into one state engine. A
// single dispatch loop drains the session's push queue, so events for the
// same entity are always applied in arrival order.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/LeJamon/xrpltop/internal/codec/addresscodec"
	"github.com/LeJamon/xrpltop/internal/codec/txblob"
	"github.com/LeJamon/xrpltop/internal/crypto"
	"github.com/LeJamon/xrpltop/internal/ledger"
	"github.com/LeJamon/xrpltop/internal/metrics"
	"github.com/LeJamon/xrpltop/internal/state"
	"github.com/LeJamon/xrpltop/internal/tx"
	"github.com/LeJamon/xrpltop/internal/wallet"
	"github.com/LeJamon/xrpltop/internal/ws"
	"github.com/LeJamon/xrpltop/internal/xrpamount"
)

// ErrUnknownSourceWallet rejects a payment whose source address has no
// registered wallet. No transaction record is created in that case.
var ErrUnknownSourceWallet = errors.New("source address has no registered wallet")

// Session is the engine's view of the network connection.
type Session interface {
	Connect(ctx context.Context) error
	Close() error
	Request(ctx context.Context, method string, params map[string]any) (json.RawMessage, error)
	Subscribe(ctx context.Context, streams, accounts []string) error
	Events() <-chan ws.Event
	Status() ws.Status
	SetOnStatus(ws.StatusFunc)
	TerminalErr() error
}

// Provisioner creates funded testnet wallets.
type Provisioner interface {
	ProvisionWallet(ctx context.Context) (wallet.FaucetResult, error)
}

// Config carries the engine tunables. Zero values fall back to defaults.
type Config struct {
	FeeDrops          xrpamount.Amount
	ValidationTimeout time.Duration
	MaxRecent         int
	// LedgerWindow is added to the current ledger index to form a payment's
	// LastLedgerSequence expiry.
	LedgerWindow uint32
}

func (c *Config) applyDefaults() {
	if c.FeeDrops == 0 {
		c.FeeDrops = xrpamount.FromDrops(12)
	}
	if c.ValidationTimeout == 0 {
		c.ValidationTimeout = 20 * time.Second
	}
	if c.MaxRecent == 0 {
		c.MaxRecent = 50
	}
	if c.LedgerWindow == 0 {
		c.LedgerWindow = 4
	}
}

// keyEntry is a wallet's signing material, kept out of published snapshots.
type keyEntry struct {
	algo          crypto.Algorithm
	privateKeyHex string
	publicKeyHex  string
}

// Engine owns all dashboard state and the operations that mutate it.
type Engine struct {
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	session Session
	faucet  Provisioner

	wallets   *wallet.Registry
	ledgers   *ledger.Tracker
	txs       *tx.Tracker
	publisher *state.Publisher

	keyMu sync.Mutex
	keys  map[string]keyEntry

	runMu  sync.Mutex
	runCtx context.Context
}

// New assembles an engine around the given session and faucet. Every state
// mutation in any component ends in a fresh published snapshot.
func New(cfg Config, session Session, faucet Provisioner, logger *zap.Logger, m *metrics.Metrics) *Engine {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		session: session,
		faucet:  faucet,
		keys:    make(map[string]keyEntry),
	}

	e.wallets = wallet.NewRegistry(logger, m, e.publish)
	e.ledgers = ledger.NewTracker(logger, m, func(ledger.State) { e.publish() })
	e.txs = tx.NewTracker(cfg.ValidationTimeout, cfg.MaxRecent, logger, m, e.publish, e.handleValidated)
	e.publisher = state.NewPublisher(state.Sources{
		Ledger:       e.ledgers.State,
		Wallets:      e.wallets.List,
		Transactions: e.txs.List,
		Connection:   func() string { return session.Status().String() },
	}, m)

	session.SetOnStatus(func(ws.Status) { e.publish() })
	return e
}

// Run connects the session, subscribes to the ledger stream, and dispatches
// push events until the context ends or the session terminates.
func (e *Engine) Run(ctx context.Context) error {
	e.runMu.Lock()
	e.runCtx = ctx
	e.runMu.Unlock()

	if err := e.session.Connect(ctx); err != nil {
		return fmt.Errorf("connecting session: %w", err)
	}
	defer e.txs.Close()

	if err := e.session.Subscribe(ctx, []string{"ledger"}, nil); err != nil {
		e.logger.Warn("ledger stream subscription failed", zap.Error(err))
	}
	e.publish()

	for {
		select {
		case <-ctx.Done():
			e.session.Close()
			return ctx.Err()
		case ev, ok := <-e.session.Events():
			if !ok {
				// The session stopped on its own; a terminal error such as
				// exhausted reconnection attempts must reach the caller.
				if err := e.session.TerminalErr(); err != nil {
					return fmt.Errorf("session terminated: %w", err)
				}
				return nil
			}
			e.handleEvent(ctx, ev)
		}
	}
}

// publish makes a fresh snapshot current; every component change funnels
// through here.
func (e *Engine) publish() {
	e.publisher.Publish()
}

// Snapshot returns the latest published state snapshot.
func (e *Engine) Snapshot() state.Snapshot {
	return e.publisher.Current()
}

// OnChange registers a snapshot listener; it observes every published
// version in order.
func (e *Engine) OnChange(fn func(state.Snapshot)) {
	e.publisher.OnChange(fn)
}

// CreateFaucetWallet provisions a funded wallet from the faucet, registers
// it, and subscribes to its account events. Any failure leaves the registry
// untouched.
func (e *Engine) CreateFaucetWallet(ctx context.Context, label string) (wallet.Wallet, error) {
	funded, err := e.faucet.ProvisionWallet(ctx)
	if err != nil {
		return wallet.Wallet{}, err
	}

	keys, address, err := deriveFromSeed(funded.Seed)
	if err != nil {
		return wallet.Wallet{}, fmt.Errorf("%w: deriving keys: %v", wallet.ErrWalletCreationFailed, err)
	}
	if funded.Address != "" && funded.Address != address {
		// The seed is authoritative: only the derived address is signable.
		e.logger.Warn("faucet-reported address differs from derived address",
			zap.String("reported", funded.Address), zap.String("derived", address))
	}

	w := wallet.Wallet{
		Address: address,
		Balance: funded.Balance,
		Label:   label,
		Source:  wallet.SourceFaucet,
	}
	if err := e.wallets.Register(w); err != nil {
		return wallet.Wallet{}, fmt.Errorf("%w: %v", wallet.ErrWalletCreationFailed, err)
	}
	e.storeKeys(address, keys)
	e.subscribeAccount(ctx, address)

	registered, _ := e.wallets.Get(address)
	return registered, nil
}

// ImportWallet registers a wallet from an existing seed. The balance starts
// at zero and is corrected by an asynchronous network refresh.
func (e *Engine) ImportWallet(ctx context.Context, seed, label string) (wallet.Wallet, error) {
	keys, address, err := deriveFromSeed(seed)
	if err != nil {
		return wallet.Wallet{}, fmt.Errorf("importing wallet: %w", err)
	}

	w := wallet.Wallet{
		Address: address,
		Label:   label,
		Source:  wallet.SourceImported,
	}
	if err := e.wallets.Register(w); err != nil {
		return wallet.Wallet{}, err
	}
	e.storeKeys(address, keys)
	e.subscribeAccount(ctx, address)
	go e.refreshBalance(e.background(), address)

	registered, _ := e.wallets.Get(address)
	return registered, nil
}

// SubmitPayment starts an XRP payment from a registered wallet. It returns
// the tracked transaction in Submitted state immediately; sequence lookup,
// signing, and submission proceed in the background and drive the record
// through its lifecycle.
func (e *Engine) SubmitPayment(ctx context.Context, source, destination string, amount xrpamount.Amount) (tx.Transaction, error) {
	if !amount.IsPositive() {
		return tx.Transaction{}, txblob.ErrInvalidAmount
	}
	keys, ok := e.lookupKeys(source)
	if !ok {
		e.logger.Warn("payment rejected, source wallet unknown", zap.String("source", source))
		return tx.Transaction{}, ErrUnknownSourceWallet
	}

	record := e.txs.Track(source, destination, amount, e.cfg.FeeDrops)
	go e.submit(e.background(), record, keys)
	return record, nil
}

// Close tears the engine down.
func (e *Engine) Close() error {
	e.txs.Close()
	return e.session.Close()
}

// submit performs the network half of a payment: sequence lookup, signing,
// and the submit call. Every failure path lands the record in Failed with a
// reason.
func (e *Engine) submit(ctx context.Context, record tx.Transaction, keys keyEntry) {
	seq, err := e.accountSequence(ctx, record.Source)
	if err != nil {
		e.txs.OnSubmitResult(record.ID, false, "", "sequence lookup failed: "+err.Error())
		return
	}

	payment := txblob.Payment{
		Account:       record.Source,
		Destination:   record.Destination,
		Amount:        record.Amount,
		Fee:           record.Fee,
		Sequence:      seq,
		SigningPubKey: keys.publicKeyHex,
	}
	if current := e.ledgers.State().Index; current != 0 {
		payment.LastLedgerSequence = current + e.cfg.LedgerWindow
	}

	signed, err := txblob.Sign(payment, keys.algo, keys.privateKeyHex)
	if err != nil {
		e.txs.OnSubmitResult(record.ID, false, "", "signing failed: "+err.Error())
		return
	}

	raw, err := e.session.Request(ctx, "submit", map[string]any{"tx_blob": signed.BlobHex})
	if err != nil {
		e.txs.OnSubmitResult(record.ID, false, "", err.Error())
		return
	}

	var result struct {
		EngineResult        string `json:"engine_result"`
		EngineResultMessage string `json:"engine_result_message"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		e.txs.OnSubmitResult(record.ID, false, "", "unparseable submit response")
		return
	}

	// terQUEUED submissions can still validate in a later ledger.
	accepted := result.EngineResult == "tesSUCCESS" || result.EngineResult == "terQUEUED"
	if accepted {
		e.txs.OnSubmitResult(record.ID, true, signed.Hash, "")
		return
	}
	reason := result.EngineResult
	if result.EngineResultMessage != "" {
		reason += ": " + result.EngineResultMessage
	}
	e.txs.OnSubmitResult(record.ID, false, "", reason)
}

// handleValidated debits the source wallet once a payment validates. It runs
// inside the tracker's validation commit, before the Validated status is
// readable, so no snapshot pairs the new status with the old balance. The
// debit is the immediate local estimate; the authoritative balance arrives
// with the account_info refresh triggered by the same push event.
func (e *Engine) handleValidated(t tx.Transaction) {
	e.wallets.Debit(t.Source, t.Amount.Add(t.Fee))
}

type ledgerClosedMsg struct {
	LedgerIndex uint32 `json:"ledger_index"`
	LedgerHash  string `json:"ledger_hash"`
	LedgerTime  int64  `json:"ledger_time"`
	TxnCount    int    `json:"txn_count"`
}

type txBody struct {
	Hash            string `json:"hash"`
	Account         string `json:"Account"`
	Destination     string `json:"Destination"`
	TransactionType string `json:"TransactionType"`
}

// transactionMsg covers both the legacy "transaction" and the newer
// "tx_json" push shapes.
type transactionMsg struct {
	Validated   bool   `json:"validated"`
	LedgerIndex uint32 `json:"ledger_index"`
	Hash        string `json:"hash"`
	Transaction txBody `json:"transaction"`
	TxJSON      txBody `json:"tx_json"`
}

func (m transactionMsg) body() txBody {
	b := m.Transaction
	if b.Account == "" && b.Hash == "" {
		b = m.TxJSON
	}
	if b.Hash == "" {
		b.Hash = m.Hash
	}
	return b
}

// handleEvent routes one push event to the component that owns its state.
func (e *Engine) handleEvent(ctx context.Context, ev ws.Event) {
	switch ev.Type {
	case "ledgerClosed":
		var msg ledgerClosedMsg
		if err := json.Unmarshal(ev.Raw, &msg); err != nil {
			e.logger.Warn("unparseable ledger close event", zap.Error(err))
			return
		}
		e.ledgers.OnLedgerClosed(msg.LedgerIndex, msg.LedgerHash, msg.LedgerTime, msg.TxnCount)

	case "transaction":
		var msg transactionMsg
		if err := json.Unmarshal(ev.Raw, &msg); err != nil {
			e.logger.Warn("unparseable transaction event", zap.Error(err))
			return
		}
		if !msg.Validated {
			return
		}
		body := msg.body()
		if body.Hash != "" {
			e.txs.OnValidationEvent(body.Hash, msg.LedgerIndex)
		}
		e.refreshTracked(ctx, body.Account, body.Destination)

	default:
		e.metrics.UnknownEvent("push")
		e.logger.Debug("unhandled push event", zap.String("type", ev.Type))
	}
}

// refreshTracked refreshes balances for whichever of the given addresses are
// registered wallets. Refreshes run off the dispatch loop so a slow server
// never stalls event handling.
func (e *Engine) refreshTracked(ctx context.Context, addresses ...string) {
	for _, addr := range addresses {
		if addr == "" {
			continue
		}
		if _, ok := e.wallets.Get(addr); !ok {
			continue
		}
		go e.refreshBalance(ctx, addr)
	}
}

// refreshBalance pulls the authoritative balance for one wallet.
func (e *Engine) refreshBalance(ctx context.Context, address string) {
	raw, err := e.session.Request(ctx, "account_info", map[string]any{
		"account":      address,
		"ledger_index": "validated",
	})
	if err != nil {
		e.logger.Debug("balance refresh failed",
			zap.String("address", address), zap.Error(err))
		return
	}

	var result struct {
		AccountData struct {
			Balance string `json:"Balance"`
		} `json:"account_data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		e.logger.Warn("unparseable account_info response", zap.Error(err))
		return
	}
	drops, err := strconv.ParseInt(result.AccountData.Balance, 10, 64)
	if err != nil {
		e.logger.Warn("unparseable account balance",
			zap.String("balance", result.AccountData.Balance))
		return
	}
	e.wallets.ApplyBalanceUpdate(address, xrpamount.FromDrops(drops))
}

// accountSequence fetches the next sequence number for an account.
func (e *Engine) accountSequence(ctx context.Context, address string) (uint32, error) {
	raw, err := e.session.Request(ctx, "account_info", map[string]any{
		"account":      address,
		"ledger_index": "current",
	})
	if err != nil {
		return 0, err
	}

	var result struct {
		AccountData struct {
			Sequence uint32 `json:"Sequence"`
		} `json:"account_data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, fmt.Errorf("parsing account_info: %w", err)
	}
	if result.AccountData.Sequence == 0 {
		return 0, errors.New("account_info response missing sequence")
	}
	return result.AccountData.Sequence, nil
}

// subscribeAccount registers the address on the account event feed.
// Subscription failures are logged, not fatal: the wallet still works, it
// just loses live inbound updates until the next reconnect resubscribe.
func (e *Engine) subscribeAccount(ctx context.Context, address string) {
	if err := e.session.Subscribe(ctx, nil, []string{address}); err != nil {
		e.logger.Warn("account subscription failed",
			zap.String("address", address), zap.Error(err))
	}
}

// deriveFromSeed turns an encoded seed into signing material and the classic
// address it controls.
func deriveFromSeed(seed string) (keyEntry, string, error) {
	seedBytes, algo, err := addresscodec.DecodeSeed(seed)
	if err != nil {
		return keyEntry{}, "", err
	}
	priv, pub, err := algo.DeriveKeypair(seedBytes, false)
	if err != nil {
		return keyEntry{}, "", err
	}
	address, err := addresscodec.EncodeClassicAddressFromPublicKeyHex(pub)
	if err != nil {
		return keyEntry{}, "", err
	}
	return keyEntry{algo: algo, privateKeyHex: priv, publicKeyHex: pub}, address, nil
}

func (e *Engine) storeKeys(address string, keys keyEntry) {
	e.keyMu.Lock()
	e.keys[address] = keys
	e.keyMu.Unlock()
}

func (e *Engine) lookupKeys(address string) (keyEntry, bool) {
	e.keyMu.Lock()
	defer e.keyMu.Unlock()
	keys, ok := e.keys[address]
	return keys, ok
}

func (e *Engine) background() context.Context {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.runCtx != nil {
		return e.runCtx
	}
	return context.Background()
}
