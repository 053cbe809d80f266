// Package equity persists account equity points for the dashboard history chart.
package equity

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/riskwatch/internal/domain"
)

const (
	defaultDir       = "./wal/equity"
	segmentThreshold = 1000
	maxSegments      = 100
	keyPrefix        = "equity_point_"
)

// WALStore persists equity points in a WAL. A store scoped with WithAccount only
// returns the points of that wallet on that network.
type WALStore struct {
	wal      *gowal.Wal
	mu       sync.RWMutex
	scopeKey string
}

// Option configures a WALStore.
type Option func(*WALStore)

// WithAccount limits PointsAfter to one wallet on one network.
func WithAccount(wallet, network string) Option {
	return func(s *WALStore) {
		if wallet != "" {
			s.scopeKey = pointKey(wallet, network)
		}
	}
}

// NewWALStore initializes a WAL-backed equity store under the provided directory.
func NewWALStore(dir string, opts ...Option) (*WALStore, error) {
	if dir == "" {
		dir = defaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "equity_",
		SegmentThreshold: segmentThreshold,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init equity WAL")
	}

	s := &WALStore{wal: wal}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// pointKey identifies the account a point belongs to, e.g.
// equity_point_mainnet_0xabc.
func pointKey(wallet, network string) string {
	return keyPrefix + strings.ToLower(network) + "_" + strings.ToLower(wallet)
}

// Save appends the point to the WAL. Callers must ensure point.Wallet is set.
func (s *WALStore) Save(point domain.EquityPoint) error {
	if s == nil || s.wal == nil {
		return errors.New("equity store is not initialized")
	}
	if point.Wallet == "" {
		return errors.New("equity point wallet is required")
	}

	payload, err := json.Marshal(point)
	if err != nil {
		return errors.Wrap(err, "marshal equity point")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, pointKey(point.Wallet, point.Network), payload)
}

// PointsAfter returns the equity points written after the provided WAL index.
// Indexes of other accounts' points are skipped, so the result may have gaps.
func (s *WALStore) PointsAfter(index uint64) ([]domain.EquityPointRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("equity store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.EquityPointRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !s.matches(key) {
			continue
		}
		var point domain.EquityPoint
		if err := json.Unmarshal(payload, &point); err != nil {
			return nil, errors.Wrap(err, "decode equity point")
		}
		records = append(records, domain.EquityPointRecord{
			Index: idx,
			Point: point,
		})
	}

	return records, nil
}

func (s *WALStore) matches(key string) bool {
	if s.scopeKey != "" {
		return key == s.scopeKey
	}
	return strings.HasPrefix(key, keyPrefix)
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("equity store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
