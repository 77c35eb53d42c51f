package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LeJamon/xrpltop/internal/config"
	"github.com/LeJamon/xrpltop/internal/engine"
	"github.com/LeJamon/xrpltop/internal/metrics"
	"github.com/LeJamon/xrpltop/internal/view"
	"github.com/LeJamon/xrpltop/internal/wallet"
	"github.com/LeJamon/xrpltop/internal/ws"
	"github.com/LeJamon/xrpltop/internal/xrpamount"
)

var (
	// Dash flags
	walletCount int
	importSeeds []string
)

// dashCmd runs the dashboard (the default action).
var dashCmd = &cobra.Command{
	Use:   "dash",
	Short: "Run the ledger and account dashboard",
	Long: `Connect to the configured XRPL endpoint, subscribe to the ledger stream,
and keep a live state view. Commands are read from stdin:

  new [label]                     provision a faucet wallet
  import <seed> [label]           import a wallet from a seed
  send <source> <dest> <xrp>      submit an XRP payment
  quit                            shut down

This is the default command when no subcommand is specified.`,
	RunE: runDash,
}

func init() {
	rootCmd.AddCommand(dashCmd)

	// Running xrpltop with no subcommand starts the dashboard.
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runDash(cmd, args)
	}

	dashCmd.Flags().IntVar(&walletCount, "wallets", 1, "faucet wallets to provision at startup")
	dashCmd.Flags().StringSliceVar(&importSeeds, "import-seed", nil, "wallet seeds to import at startup")
}

func runDash(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logger, err := buildLogger()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	session := ws.NewSession(ws.Config{
		Endpoint:              cfg.Network.Endpoint,
		RequestTimeout:        cfg.Network.RequestTimeout,
		ReconnectInitialDelay: cfg.Network.ReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.Network.ReconnectMaxDelay,
		MaxReconnectAttempts:  cfg.Network.MaxReconnectAttempts,
		EventBuffer:           cfg.Network.EventBuffer,
	}, logger.Named("ws"), m, nil)

	faucet := wallet.NewFaucetClient(cfg.Wallet.FaucetURL, cfg.Wallet.FaucetTimeout, logger.Named("faucet"))

	eng := engine.New(engine.Config{
		FeeDrops:          xrpamount.FromDrops(cfg.Payment.FeeDrops),
		ValidationTimeout: cfg.Payment.ValidationTimeout,
		MaxRecent:         cfg.Payment.MaxRecent,
		LedgerWindow:      cfg.Payment.LedgerWindow,
	}, session, faucet, logger.Named("engine"), m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(ctx) })

	if cfg.Metrics.Enabled {
		srv := &http.Server{
			Addr:    cfg.Metrics.Listen,
			Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		}
		g.Go(func() error {
			logger.Info("metrics listening", zap.String("addr", cfg.Metrics.Listen))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		provisionStartupWallets(ctx, eng, logger)
		return nil
	})

	if !quiet {
		g.Go(func() error { return renderLoop(ctx, eng, cfg.Display.RefreshInterval) })
	}

	// Stdin is not cancelable, so the command loop lives outside the group.
	go commandLoop(ctx, stop, eng, logger)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildLogger() (*zap.Logger, error) {
	if quiet && !verbose {
		return zap.NewNop(), nil
	}
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// provisionStartupWallets creates the requested faucet wallets and imports
// the given seeds once the session is up. Failures are logged, not fatal.
func provisionStartupWallets(ctx context.Context, eng *engine.Engine, logger *zap.Logger) {
	waitConnected(ctx, eng, 30*time.Second)

	for i := 0; i < walletCount; i++ {
		if _, err := eng.CreateFaucetWallet(ctx, fmt.Sprintf("wallet-%d", i+1)); err != nil {
			logger.Warn("startup faucet wallet failed", zap.Error(err))
		}
	}
	for _, seed := range importSeeds {
		if _, err := eng.ImportWallet(ctx, seed, ""); err != nil {
			logger.Warn("startup seed import failed", zap.Error(err))
		}
	}
}

func waitConnected(ctx context.Context, eng *engine.Engine, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		if eng.Snapshot().Connection == "connected" {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// renderLoop prints a fresh frame whenever the snapshot version moved.
func renderLoop(ctx context.Context, eng *engine.Engine, interval time.Duration) error {
	if interval == 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastVersion uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap := eng.Snapshot()
			if snap.Version == lastVersion {
				continue
			}
			lastVersion = snap.Version
			fmt.Println(view.Render(snap))
		}
	}
}

// commandLoop reads dashboard commands from stdin until it closes or the
// context ends.
func commandLoop(ctx context.Context, stop func(), eng *engine.Engine, logger *zap.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		handleCommand(ctx, stop, eng, logger, scanner.Text())
	}
}

func handleCommand(ctx context.Context, stop func(), eng *engine.Engine, logger *zap.Logger, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "new":
		label := ""
		if len(fields) > 1 {
			label = fields[1]
		}
		go func() {
			if _, err := eng.CreateFaucetWallet(ctx, label); err != nil {
				logger.Warn("faucet wallet failed", zap.Error(err))
			}
		}()

	case "import":
		if len(fields) < 2 {
			fmt.Println("usage: import <seed> [label]")
			return
		}
		label := ""
		if len(fields) > 2 {
			label = fields[2]
		}
		if _, err := eng.ImportWallet(ctx, fields[1], label); err != nil {
			fmt.Printf("import failed: %v\n", err)
		}

	case "send":
		if len(fields) != 4 {
			fmt.Println("usage: send <source> <destination> <xrp>")
			return
		}
		xrp, err := strconv.ParseFloat(fields[3], 64)
		if err != nil || xrp <= 0 {
			fmt.Printf("invalid amount %q\n", fields[3])
			return
		}
		record, err := eng.SubmitPayment(ctx, fields[1], fields[2], xrpamount.FromDecimalXRP(xrp))
		if err != nil {
			fmt.Printf("send failed: %v\n", err)
			return
		}
		fmt.Printf("submitted %s\n", record.ID)

	case "quit", "exit":
		stop()

	default:
		fmt.Printf("unknown command %q\n", fields[0])
	}
}
