// Package monitor periodically refreshes the wallet snapshot shown by the dashboard.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/riskwatch/internal/domain"
)

const (
	// DefaultInterval between automatic refreshes.
	DefaultInterval     = 60 * time.Second
	defaultFetchTimeout = 30 * time.Second
)

type accountReader interface {
	GetAccountBalance(ctx context.Context) (*domain.Balance, error)
	GetOpenPositions(ctx context.Context) ([]domain.Position, error)
	GetTradeHistory(ctx context.Context, days int) ([]domain.Trade, error)
}

type equityStore interface {
	Save(point domain.EquityPoint) error
}

type snapshotPublisher interface {
	Publish(s *domain.Snapshot)
}

// Monitor owns the latest snapshot and the refresh schedule.
type Monitor struct {
	reader       accountReader
	store        equityStore
	publisher    snapshotPublisher
	logger       *zap.Logger
	wallet       string
	network      string
	interval     time.Duration
	fetchTimeout time.Duration
	now          func() time.Time

	refreshMu   sync.Mutex
	mu          sync.RWMutex
	latest      *domain.Snapshot
	autoRefresh atomic.Bool
	refreshReq  chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the automatic refresh interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithEquityStore persists an equity point after every successful balance read.
func WithEquityStore(s equityStore) Option {
	return func(m *Monitor) {
		m.store = s
	}
}

// WithPublisher receives every new snapshot.
func WithPublisher(p snapshotPublisher) Option {
	return func(m *Monitor) {
		m.publisher = p
	}
}

// WithAccount labels snapshots with the wallet and network.
func WithAccount(wallet, network string) Option {
	return func(m *Monitor) {
		m.wallet = wallet
		m.network = network
	}
}

// WithFetchTimeout bounds one refresh cycle.
func WithFetchTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.fetchTimeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// New creates a monitor over the reader. Auto refresh starts enabled.
func New(reader accountReader, logger *zap.Logger, opts ...Option) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Monitor{
		reader:       reader,
		logger:       logger,
		interval:     DefaultInterval,
		fetchTimeout: defaultFetchTimeout,
		now:          time.Now,
		refreshReq:   make(chan struct{}, 1),
	}
	m.autoRefresh.Store(true)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Interval returns the automatic refresh interval.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// Latest returns the last snapshot, nil before the first refresh.
func (m *Monitor) Latest() *domain.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// AutoRefresh reports whether timed refreshes are enabled.
func (m *Monitor) AutoRefresh() bool {
	return m.autoRefresh.Load()
}

// SetAutoRefresh enables or disables timed refreshes.
func (m *Monitor) SetAutoRefresh(enabled bool) {
	if m.autoRefresh.Swap(enabled) != enabled {
		m.logger.Info("auto refresh toggled", zap.Bool("enabled", enabled))
	}
}

// RefreshNow asks Run for an immediate refresh. Requests coalesce while one is pending;
// the return value reports whether a new request was queued.
func (m *Monitor) RefreshNow() bool {
	select {
	case m.refreshReq <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run refreshes once, then on schedule and on demand until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.Refresh(ctx)

	clog := cronLogger{logger: m.logger}
	c := cron.New(
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", m.interval), func() { m.tick(ctx) }); err != nil {
		return errors.Wrap(err, "schedule refresh")
	}
	c.Start()
	defer func() {
		<-c.Stop().Done()
	}()

	m.logger.Info("starting refresh loop", zap.String("wallet", m.wallet), zap.Duration("interval", m.interval))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("context done, stopping refresh loop")
			return ctx.Err()
		case <-m.refreshReq:
			m.logger.Debug("manual refresh requested")
			m.Refresh(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !m.AutoRefresh() {
		m.logger.Debug("auto refresh disabled, skipping tick")
		return
	}
	m.Refresh(ctx)
}

// Refresh runs one cycle: the three reads concurrently, each failure recorded in its
// section. The new snapshot replaces the previous one wholesale.
func (m *Monitor) Refresh(ctx context.Context) *domain.Snapshot {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
	defer cancel()

	started := m.now()
	snapshot := domain.NewSnapshot(m.wallet, m.network, started, domain.MaxTradeHistoryDays)
	logger := m.logger.With(zap.String("snapshot", snapshot.ID))

	var g errgroup.Group
	g.Go(func() error {
		balance, err := m.reader.GetAccountBalance(fetchCtx)
		if err != nil {
			logger.Error("failed to fetch balance", zap.Error(err))
			snapshot.BalanceErr = err.Error()
			return nil
		}
		snapshot.Balance = balance
		return nil
	})
	g.Go(func() error {
		positions, err := m.reader.GetOpenPositions(fetchCtx)
		if err != nil {
			logger.Error("failed to fetch positions", zap.Error(err))
			snapshot.PositionsErr = err.Error()
			return nil
		}
		snapshot.Positions = positions
		return nil
	})
	g.Go(func() error {
		trades, err := m.reader.GetTradeHistory(fetchCtx, snapshot.TradeWindowDays)
		if err != nil {
			logger.Error("failed to fetch trade history", zap.Error(err))
			snapshot.TradesErr = err.Error()
			return nil
		}
		snapshot.Trades = trades
		return nil
	})
	_ = g.Wait()

	if snapshot.Positions == nil {
		snapshot.Positions = []domain.Position{}
	}
	if snapshot.Trades == nil {
		snapshot.Trades = []domain.Trade{}
	}

	m.mu.Lock()
	m.latest = snapshot
	m.mu.Unlock()

	if m.publisher != nil {
		m.publisher.Publish(snapshot)
	}

	if point, ok := domain.NewEquityPoint(snapshot); ok && m.store != nil {
		if err := m.store.Save(point); err != nil {
			logger.Error("failed to save equity point", zap.Error(err))
		}
	}

	logger.Info("snapshot refreshed",
		zap.Bool("healthy", snapshot.Healthy()),
		zap.Int("positions", len(snapshot.Positions)),
		zap.Int("trades", len(snapshot.Trades)),
		zap.Duration("took", m.now().Sub(started)))

	return snapshot
}

// cronLogger routes scheduler logs to zap.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
