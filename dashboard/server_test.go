package dashboard

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/riskwatch/internal/domain"
	"github.com/vadiminshakov/riskwatch/internal/events"
	"github.com/vadiminshakov/riskwatch/internal/services/monitor"
)

var fetchedAt = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fakeMonitor struct {
	mu        sync.Mutex
	latest    *domain.Snapshot
	auto      bool
	refreshes int
}

func (f *fakeMonitor) Latest() *domain.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest
}

func (f *fakeMonitor) RefreshNow() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return true
}

func (f *fakeMonitor) AutoRefresh() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auto
}

func (f *fakeMonitor) SetAutoRefresh(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auto = enabled
}

func (f *fakeMonitor) Interval() time.Duration {
	return time.Minute
}

type fakeReader struct {
	balance   *domain.Balance
	positions []domain.Position
	trades    []domain.Trade
	tradesErr error
}

func (f *fakeReader) GetAccountBalance(context.Context) (*domain.Balance, error) {
	return f.balance, nil
}

func (f *fakeReader) GetOpenPositions(context.Context) ([]domain.Position, error) {
	return f.positions, nil
}

func (f *fakeReader) GetTradeHistory(context.Context, int) ([]domain.Trade, error) {
	return f.trades, f.tradesErr
}

func mockReader(t *testing.T) *fakeReader {
	t.Helper()
	b := domain.NewBalance(dec("25000.5"), dec("20000"), dec("5000.5"), true)
	btc, err := domain.NewPositionFromSignedSize("BTC/USDC:USDC", dec("0.25"), dec("60000"), dec("64000"), dec("16000"), dec("1000"), dec("25"))
	require.NoError(t, err)
	eth, err := domain.NewPositionFromSignedSize("ETH/USDC:USDC", dec("-3"), dec("3000"), dec("2900"), dec("8700"), dec("300"), dec("10"))
	require.NoError(t, err)

	return &fakeReader{
		balance:   &b,
		positions: []domain.Position{btc, eth},
		trades: []domain.Trade{
			{Timestamp: fetchedAt.Add(-2 * time.Hour), Symbol: "BTC/USDC:USDC", Side: domain.TradeSideBuy, OrderID: "11", TradeID: "1", Amount: dec("0.25"), Price: dec("60000"), Cost: dec("15000"), Fee: dec("4.5"), ClosedPnL: decimal.Zero},
			{Timestamp: fetchedAt.Add(-26 * time.Hour), Symbol: "ETH/USDC:USDC", Side: domain.TradeSideSell, OrderID: "12", TradeID: "2", Amount: dec("3"), Price: dec("3000"), Cost: dec("9000"), Fee: dec("2.7"), ClosedPnL: dec("45")},
			{Timestamp: fetchedAt.Add(-4 * 24 * time.Hour), Symbol: "SOL/USDC:USDC", Side: domain.TradeSideBuy, TradeID: "3", Amount: dec("10"), Price: dec("150"), Cost: dec("1500"), Fee: dec("0.4"), ClosedPnL: decimal.Zero},
		},
	}
}

func newTestServer(t *testing.T, mon snapshotSource, opts ...Option) *httptest.Server {
	t.Helper()
	srv := NewServer(":0", mon, zap.NewNop(), append([]Option{WithLocation(time.UTC)}, opts...)...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestSnapshot_DisplaysWhatTheReaderReturned(t *testing.T) {
	reader := mockReader(t)
	mon := monitor.New(reader, zap.NewNop(),
		monitor.WithAccount("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", "mainnet"),
		monitor.WithClock(func() time.Time { return fetchedAt }),
	)
	mon.Refresh(context.Background())
	ts := newTestServer(t, mon)

	var got snapshotResponse
	status := getJSON(t, ts.URL+"/api/snapshot?days=7", &got)
	require.Equal(t, http.StatusOK, status)

	assert.True(t, got.Healthy)
	assert.True(t, got.Balance.Available)
	assert.Equal(t, "$25,000.50", got.Balance.Total)
	assert.Equal(t, len(reader.positions), got.Positions.Count)
	require.Len(t, got.Positions.Rows, len(reader.positions))
	for i, p := range reader.positions {
		assert.Equal(t, p.Symbol, got.Positions.Rows[i].Symbol)
		assert.Len(t, got.Positions.Rows[i].Details, 4)
	}

	require.Len(t, got.Trades.Rows, len(reader.trades))
	for i, tr := range reader.trades {
		row := got.Trades.Rows[i]
		assert.Equal(t, tr.Symbol, row.Symbol)
		assert.Equal(t, strings.ToUpper(tr.Side.String()), row.Side)
		assert.Equal(t, tr.Timestamp.Format("2006-01-02 15:04:05"), row.Time)
	}
	assert.Equal(t, "N/A", got.Trades.Rows[2].OID)
	assert.Equal(t, 60, got.RefreshIntervalSeconds)
	assert.True(t, got.AutoRefresh)
}

func TestSnapshot_PartialFailureStillRendersOtherSections(t *testing.T) {
	reader := mockReader(t)
	reader.tradesErr = context.DeadlineExceeded
	mon := monitor.New(reader, zap.NewNop(), monitor.WithClock(func() time.Time { return fetchedAt }))
	mon.Refresh(context.Background())
	ts := newTestServer(t, mon)

	var got snapshotResponse
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/snapshot", &got))

	assert.False(t, got.Healthy)
	assert.Equal(t, "$25,000.50", got.Balance.Total)
	assert.Equal(t, 2, got.Positions.Count)
	assert.NotEmpty(t, got.Trades.Error)
	assert.Empty(t, got.Trades.Rows)
}

func TestSnapshot_BeforeFirstRefresh(t *testing.T) {
	ts := newTestServer(t, &fakeMonitor{})

	var got errorResponse
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.URL+"/api/snapshot", &got))
	assert.Equal(t, ErrNoSnapshot.Error(), got.Error)
}

func TestSnapshot_Filters(t *testing.T) {
	snap := domain.NewSnapshot("0xabc", "testnet", fetchedAt, 7)
	snap.Trades = mockReader(t).trades
	ts := newTestServer(t, &fakeMonitor{latest: snap}, WithDefaultDays(2))

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantRows   int
	}{
		{"default window", "", http.StatusOK, 2},
		{"full window", "?days=7", http.StatusOK, 3},
		{"side filter", "?days=7&side=buy", http.StatusOK, 2},
		{"symbol filter", "?days=7&symbol=ETH/USDC:USDC", http.StatusOK, 1},
		{"days out of range", "?days=9", http.StatusBadRequest, 0},
		{"days not a number", "?days=abc", http.StatusBadRequest, 0},
		{"unknown side", "?side=hold", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got snapshotResponse
			resp, err := http.Get(ts.URL + "/api/snapshot" + tt.query)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus != http.StatusOK {
				return
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			assert.Len(t, got.Trades.Rows, tt.wantRows)
			assert.Equal(t, "TESTNET", got.Network)
		})
	}
}

func TestRefreshAndAutoRefresh(t *testing.T) {
	mon := &fakeMonitor{auto: true}
	ts := newTestServer(t, mon)

	resp, err := http.Post(ts.URL+"/api/refresh", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, 1, mon.refreshes)

	var state autoRefreshResponse
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/autorefresh", &state))
	assert.True(t, state.Enabled)

	resp, err = http.Post(ts.URL+"/api/autorefresh", "application/json", strings.NewReader(`{"enabled":false}`))
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, state.Enabled)
	assert.False(t, mon.AutoRefresh())

	resp, err = http.Post(ts.URL+"/api/autorefresh", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTradesCSV(t *testing.T) {
	snap := domain.NewSnapshot("0xabc", "mainnet", fetchedAt, 7)
	snap.Trades = mockReader(t).trades
	ts := newTestServer(t, &fakeMonitor{latest: snap})

	resp, err := http.Get(ts.URL + "/api/trades.csv?days=7&side=SELL")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "trades_sell_20250310_120000.csv")

	records, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "ETH/USDC:USDC", records[1][1])
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, &fakeMonitor{})

	var got healthResponse
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/healthz", &got))
	assert.Equal(t, "ok", got.Status)
	assert.Nil(t, got.LastRefresh)
}

func TestStaticIndex(t *testing.T) {
	ts := newTestServer(t, &fakeMonitor{})

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	scanner := bufio.NewScanner(resp.Body)
	require.True(t, scanner.Scan())
	assert.Contains(t, scanner.Text(), "<!DOCTYPE html>")

	var details bool
	for scanner.Scan() {
		if strings.Contains(scanner.Text(), "<summary>Position Details</summary>") {
			details = true
		}
	}
	assert.True(t, details, "page carries the position details block")
}

func TestSnapshotStream(t *testing.T) {
	feed := events.NewBroadcaster[*domain.Snapshot](4)
	first := domain.NewSnapshot("0xabc", "mainnet", fetchedAt, 7)
	mon := &fakeMonitor{latest: first}
	ts := newTestServer(t, mon, WithSnapshotFeed(feed))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/snapshot/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	id, event, _ := readEvent(t, reader)
	assert.Equal(t, first.ID, id)
	assert.Equal(t, "snapshot", event)

	second := domain.NewSnapshot("0xabc", "mainnet", fetchedAt.Add(time.Minute), 7)
	require.Eventually(t, func() bool { return feed.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
	feed.Publish(second)

	id, event, data := readEvent(t, reader)
	assert.Equal(t, second.ID, id)
	assert.Equal(t, "snapshot", event)

	var got snapshotResponse
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, "2025-03-10 12:01:00", got.LastUpdate)
}

type fakeEquity struct {
	records []domain.EquityPointRecord
}

func (f *fakeEquity) PointsAfter(index uint64) ([]domain.EquityPointRecord, error) {
	var out []domain.EquityPointRecord
	for _, r := range f.records {
		if r.Index > index {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestEquityStream_ResumesFromLastEventID(t *testing.T) {
	store := &fakeEquity{}
	for i := uint64(1); i <= 3; i++ {
		store.records = append(store.records, domain.EquityPointRecord{
			Index: i,
			Point: domain.EquityPoint{Timestamp: fetchedAt.Add(time.Duration(i) * time.Minute), Wallet: "0xabc", Total: "100.00"},
		})
	}
	ts := newTestServer(t, &fakeMonitor{}, WithEquityStore(store))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/equity/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	id, event, _ := readEvent(t, reader)
	assert.Equal(t, "2", id)
	assert.Equal(t, "equity", event)
	id, _, _ = readEvent(t, reader)
	assert.Equal(t, "3", id)
}

func TestEquityStream_NoData(t *testing.T) {
	ts := newTestServer(t, &fakeMonitor{}, WithEquityStore(&fakeEquity{}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/equity/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	_, event, _ := readEvent(t, bufio.NewReader(resp.Body))
	assert.Equal(t, "no_data", event)
}

func TestStreamsUnavailableWithoutBackends(t *testing.T) {
	ts := newTestServer(t, &fakeMonitor{})

	for _, p := range []string{"/snapshot/stream", "/equity/stream"} {
		resp, err := http.Get(ts.URL + p)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, p)
	}
}

func TestThinRecords(t *testing.T) {
	records := make([]int, 500)
	for i := range records {
		records[i] = i
	}

	thinned := thinRecords(records)

	assert.Less(t, len(thinned), len(records))
	assert.Equal(t, records[len(records)-thinningThreshold:], thinned[len(thinned)-thinningThreshold:])
	for i := 1; i < len(thinned); i++ {
		assert.Less(t, thinned[i-1], thinned[i])
	}
	assert.Equal(t, records[:50], thinRecords(records[:50]))
}

// readEvent reads one SSE event, skipping heartbeat comments.
func readEvent(t *testing.T, r *bufio.Reader) (id, event, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if event != "" {
				return id, event, data
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id: "):
			id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}
