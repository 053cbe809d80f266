package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/riskwatch/internal/domain"
)

type fakeReader struct {
	balance    *domain.Balance
	balanceErr error
	positions  []domain.Position
	posErr     error
	trades     []domain.Trade
	tradesErr  error
	days       atomic.Int64
	calls      atomic.Int64
}

func (f *fakeReader) GetAccountBalance(context.Context) (*domain.Balance, error) {
	f.calls.Add(1)
	return f.balance, f.balanceErr
}

func (f *fakeReader) GetOpenPositions(context.Context) ([]domain.Position, error) {
	return f.positions, f.posErr
}

func (f *fakeReader) GetTradeHistory(_ context.Context, days int) ([]domain.Trade, error) {
	f.days.Store(int64(days))
	return f.trades, f.tradesErr
}

type fakeStore struct {
	mu     sync.Mutex
	points []domain.EquityPoint
	err    error
}

func (s *fakeStore) Save(p domain.EquityPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, p)
	return s.err
}

type fakePublisher struct {
	mu        sync.Mutex
	snapshots []*domain.Snapshot
}

func (p *fakePublisher) Publish(s *domain.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, s)
}

func newBalance() *domain.Balance {
	b := domain.NewBalance(decimal.NewFromInt(1000), decimal.NewFromInt(800), decimal.NewFromInt(200), true)
	return &b
}

func TestMonitor_Refresh(t *testing.T) {
	reader := &fakeReader{
		balance:   newBalance(),
		positions: []domain.Position{{Symbol: "BTC/USDC:USDC", UnrealizedPnL: decimal.NewFromInt(5)}},
		trades:    []domain.Trade{{Symbol: "BTC/USDC:USDC"}},
	}
	store := &fakeStore{}
	pub := &fakePublisher{}
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	m := New(reader, zap.NewNop(),
		WithAccount("0xabc", "testnet"),
		WithEquityStore(store),
		WithPublisher(pub),
		WithClock(func() time.Time { return now }))

	assert.Nil(t, m.Latest())

	s := m.Refresh(context.Background())
	require.NotNil(t, s)
	assert.True(t, s.Healthy())
	assert.Equal(t, "0xabc", s.Wallet)
	assert.Equal(t, "testnet", s.Network)
	assert.Equal(t, now, s.FetchedAt)
	assert.Len(t, s.Positions, 1)
	assert.Len(t, s.Trades, 1)
	assert.Equal(t, int64(domain.MaxTradeHistoryDays), reader.days.Load())
	assert.Same(t, s, m.Latest())

	require.Len(t, pub.snapshots, 1)
	assert.Same(t, s, pub.snapshots[0])

	require.Len(t, store.points, 1)
	assert.Equal(t, "1000.00", store.points[0].Total)
	assert.Equal(t, "5.00", store.points[0].UnrealizedPnL)
	assert.Equal(t, "0xabc", store.points[0].Wallet)
	assert.Equal(t, "testnet", store.points[0].Network)
}

func TestMonitor_Refresh_PartialFailure(t *testing.T) {
	reader := &fakeReader{
		balanceErr: errors.New("fetch balance: 502"),
		trades:     []domain.Trade{{Symbol: "ETH/USDC:USDC"}},
		posErr:     errors.New("fetch positions: timeout"),
	}
	store := &fakeStore{}
	m := New(reader, nil, WithEquityStore(store))

	s := m.Refresh(context.Background())

	assert.False(t, s.Healthy())
	assert.Nil(t, s.Balance)
	assert.Equal(t, "fetch balance: 502", s.BalanceErr)
	assert.Equal(t, "fetch positions: timeout", s.PositionsErr)
	assert.NotNil(t, s.Positions)
	assert.Len(t, s.Trades, 1)
	assert.Empty(t, store.points, "no balance, no equity point")
}

func TestMonitor_Refresh_StoreErrorIsNotFatal(t *testing.T) {
	m := New(&fakeReader{balance: newBalance()}, zap.NewNop(), WithEquityStore(&fakeStore{err: errors.New("disk full")}))
	s := m.Refresh(context.Background())
	assert.True(t, s.Healthy())
	assert.Same(t, s, m.Latest())
}

func TestMonitor_RefreshNowCoalesces(t *testing.T) {
	m := New(&fakeReader{}, zap.NewNop())
	assert.True(t, m.RefreshNow())
	assert.False(t, m.RefreshNow(), "pending request absorbs the second one")
}

func TestMonitor_AutoRefreshToggle(t *testing.T) {
	reader := &fakeReader{balance: newBalance()}
	m := New(reader, zap.NewNop())
	assert.True(t, m.AutoRefresh())

	m.SetAutoRefresh(false)
	assert.False(t, m.AutoRefresh())
	m.tick(context.Background())
	assert.Equal(t, int64(0), reader.calls.Load(), "tick skipped while disabled")

	m.SetAutoRefresh(true)
	m.tick(context.Background())
	assert.Equal(t, int64(1), reader.calls.Load())
}

func TestMonitor_Run(t *testing.T) {
	reader := &fakeReader{balance: newBalance()}
	m := New(reader, zap.NewNop(), WithInterval(time.Hour))
	assert.Equal(t, time.Hour, m.Interval())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return reader.calls.Load() == 1 }, time.Second, 5*time.Millisecond, "initial refresh")

	m.RefreshNow()
	require.Eventually(t, func() bool { return reader.calls.Load() == 2 }, time.Second, 5*time.Millisecond, "manual refresh")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
