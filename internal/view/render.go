// Package view renders state snapshots as plain text for the terminal.
// Rendering reads only the snapshot it is handed, so it never contends with
// the engine.
package view

import (
	"fmt"
	"strings"

	"github.com/LeJamon/xrpltop/internal/state"
	"github.com/LeJamon/xrpltop/internal/tx"
)

// maxRenderedTxs bounds the transaction section of one frame.
const maxRenderedTxs = 10

// Render formats a snapshot as a multi-line status block.
func Render(snap state.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "xrpltop  [%s]  snapshot v%d\n", snap.Connection, snap.Version)

	if snap.Ledger.Index == 0 {
		b.WriteString("ledger: waiting for first close\n")
	} else {
		fmt.Fprintf(&b, "ledger: #%d  txns=%d  closed=%s\n",
			snap.Ledger.Index,
			snap.Ledger.TxnCount,
			snap.Ledger.CloseTime.Format("15:04:05"))
	}

	if len(snap.Wallets) == 0 {
		b.WriteString("wallets: none\n")
	} else {
		fmt.Fprintf(&b, "wallets (%d):\n", len(snap.Wallets))
		for _, w := range snap.Wallets {
			label := w.Label
			if label == "" {
				label = w.Source.String()
			}
			fmt.Fprintf(&b, "  %-14s %-10s %s", w.ShortAddress(), label, w.Balance.FormatXRP())
			if delta, ok := w.BalanceChange(); ok && !delta.IsZero() {
				sign := "+"
				if delta.IsNegative() {
					sign = ""
				}
				fmt.Fprintf(&b, "  (%s%s)", sign, delta.FormatXRP())
			}
			b.WriteByte('\n')
		}
	}

	if len(snap.Transactions) == 0 {
		b.WriteString("transactions: none\n")
	} else {
		fmt.Fprintf(&b, "transactions (%d):\n", len(snap.Transactions))
		for i, t := range snap.Transactions {
			if i == maxRenderedTxs {
				fmt.Fprintf(&b, "  ... %d more\n", len(snap.Transactions)-maxRenderedTxs)
				break
			}
			b.WriteString("  " + renderTx(t) + "\n")
		}
	}

	return b.String()
}

func renderTx(t tx.Transaction) string {
	hash := t.ShortHash()
	if hash == "" {
		hash = t.ID[:8]
	}
	line := fmt.Sprintf("%-9s %-19s %s -> %s  %s",
		t.Status, hash, shorten(t.Source), shorten(t.Destination), t.Amount.FormatXRP())
	switch t.Status {
	case tx.StatusValidated:
		line += fmt.Sprintf("  ledger #%d", t.LedgerIndex)
	case tx.StatusFailed:
		line += "  " + t.Reason
	}
	return line
}

func shorten(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
