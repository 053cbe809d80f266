package internal

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/riskwatch/config"
	"github.com/vadiminshakov/riskwatch/dashboard"
	"github.com/vadiminshakov/riskwatch/internal/clients"
	"github.com/vadiminshakov/riskwatch/internal/domain"
	"github.com/vadiminshakov/riskwatch/internal/events"
	"github.com/vadiminshakov/riskwatch/internal/report"
	"github.com/vadiminshakov/riskwatch/internal/services/account"
	"github.com/vadiminshakov/riskwatch/internal/services/monitor"
	"github.com/vadiminshakov/riskwatch/internal/storage/equity"
	"github.com/vadiminshakov/riskwatch/internal/view"
	"github.com/vadiminshakov/riskwatch/pkg/retrier"
)

const snapshotFeedBuffer = 8

// RiskWatch wires the account reader, the refresh loop and the dashboard for one wallet.
type RiskWatch struct {
	Config  config.Config
	Monitor *monitor.Monitor

	store  *equity.WALStore
	feed   *events.Broadcaster[*domain.Snapshot]
	server *dashboard.Server
	logger *zap.Logger
}

type accountReader interface {
	GetAccountBalance(ctx context.Context) (*domain.Balance, error)
	GetOpenPositions(ctx context.Context) ([]domain.Position, error)
	GetTradeHistory(ctx context.Context, days int) ([]domain.Trade, error)
}

// newAccountReader connects to the exchange and returns the reader of the configured
// wallet together with its checksummed address and a logger scoped to it.
func newAccountReader(ctx context.Context, conf config.Config, logger *zap.Logger) (*account.Reader, string, *zap.Logger, error) {
	client, err := clients.NewHyperliquidClient(ctx, conf.PrivateKey, conf.WalletAddress, conf.Network.APIURL())
	if err != nil {
		return nil, "", nil, errors.Wrap(err, "failed to create hyperliquid client")
	}
	if client.IsAgentWallet() {
		logger.Info("signing with an agent wallet",
			zap.String("signer", client.SignerAddress()),
			zap.String("account", client.AccountAddress()))
	}

	rlogger := logger.With(zap.String("wallet", client.AccountAddress()), zap.String("network", conf.Network.String()))
	rt := retrier.New(retrier.WithOnRetry(func(attempt int, wait time.Duration, err error) {
		rlogger.Warn("exchange request failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
	}))
	reader := account.NewHyperliquidReader(client.Info(), client.AccountAddress(), rlogger,
		account.WithSymbols(conf.Symbols),
		account.WithRetrier(rt),
	)
	return reader, client.AccountAddress(), rlogger, nil
}

// NewRiskWatch connects to the exchange and assembles every component.
func NewRiskWatch(ctx context.Context, conf config.Config, logger *zap.Logger) (*RiskWatch, error) {
	reader, wallet, rlogger, err := newAccountReader(ctx, conf, logger)
	if err != nil {
		return nil, err
	}

	store, err := equity.NewWALStore(conf.WALDir, equity.WithAccount(wallet, conf.Network.String()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open equity store")
	}

	feed := events.NewBroadcaster[*domain.Snapshot](snapshotFeedBuffer)
	mon := monitor.New(reader, rlogger,
		monitor.WithInterval(conf.RefreshInterval),
		monitor.WithAccount(wallet, conf.Network.String()),
		monitor.WithEquityStore(store),
		monitor.WithPublisher(feed),
	)

	server := dashboard.NewServer(conf.ListenAddr, mon, logger,
		dashboard.WithEquityStore(store),
		dashboard.WithSnapshotFeed(feed),
		dashboard.WithDefaultDays(conf.TradeHistoryDays),
	)

	return &RiskWatch{
		Config:  conf,
		Monitor: mon,
		store:   store,
		feed:    feed,
		server:  server,
		logger:  rlogger,
	}, nil
}

// Close releases the equity store.
func (r *RiskWatch) Close() error {
	return r.store.Close()
}

// Run serves the dashboard and refreshes the account until ctx is cancelled.
func (r *RiskWatch) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := r.Monitor.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		if len(r.Config.TLSDomains) > 0 {
			return r.server.StartWithAutoTLS(gctx, r.Config.TLSDomains, r.Config.CertCacheDir)
		}
		return r.server.Start(gctx)
	})

	return g.Wait()
}

// Report fetches the account once and prints the tables to w. It never opens the
// equity WAL, so it is safe to run next to a serving instance.
func Report(ctx context.Context, conf config.Config, logger *zap.Logger, w io.Writer, filter domain.TradeFilter) error {
	reader, wallet, rlogger, err := newAccountReader(ctx, conf, logger)
	if err != nil {
		return err
	}
	return printReport(ctx, reader, wallet, conf, rlogger, w, filter)
}

func printReport(ctx context.Context, reader accountReader, wallet string, conf config.Config, logger *zap.Logger, w io.Writer, filter domain.TradeFilter) error {
	mon := monitor.New(reader, logger, monitor.WithAccount(wallet, conf.Network.String()))
	snap := mon.Refresh(ctx)
	if filter.Days == 0 {
		filter.Days = conf.TradeHistoryDays
	}
	page := view.Build(snap, filter, snap.FetchedAt, view.Options{})
	return report.Render(w, page)
}
