package equity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/riskwatch/internal/domain"
)

func TestWALStore_SaveAndRead(t *testing.T) {
	dir := t.TempDir()
	store, err := NewWALStore(dir)
	require.NoError(t, err)

	ts := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	for i, total := range []string{"1000.00", "1010.50", "995.25"} {
		require.NoError(t, store.Save(domain.EquityPoint{
			Timestamp: ts.Add(time.Duration(i) * time.Minute),
			Wallet:    "0xABC",
			Network:   "mainnet",
			Total:     total,
		}))
	}
	assert.Equal(t, uint64(3), store.CurrentIndex())

	records, err := store.PointsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, uint64(1), records[0].Index)
	assert.Equal(t, "1000.00", records[0].Point.Total)
	assert.Equal(t, "995.25", records[2].Point.Total)

	tail, err := store.PointsAfter(2)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, uint64(3), tail[0].Index)

	none, err := store.PointsAfter(3)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, store.Close())
}

func TestWALStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewWALStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(domain.EquityPoint{Wallet: "0xabc", Total: "1"}))
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.PointsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1", records[0].Point.Total)
}

func TestWALStore_Validation(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	assert.Error(t, store.Save(domain.EquityPoint{Total: "1"}))

	var nilStore *WALStore
	assert.Error(t, nilStore.Save(domain.EquityPoint{Wallet: "x"}))
	assert.Equal(t, uint64(0), nilStore.CurrentIndex())
	_, err = nilStore.PointsAfter(0)
	assert.Error(t, err)
}

func TestWALStore_ScopedToAccount(t *testing.T) {
	dir := t.TempDir()
	store, err := NewWALStore(dir, WithAccount("0xAAA", "mainnet"))
	require.NoError(t, err)
	defer store.Close()

	points := []domain.EquityPoint{
		{Wallet: "0xAAA", Network: "mainnet", Total: "100.00"},
		{Wallet: "0xBBB", Network: "mainnet", Total: "99999.00"},
		{Wallet: "0xAAA", Network: "testnet", Total: "5.00"},
		{Wallet: "0xaaa", Network: "mainnet", Total: "101.00"},
	}
	for _, p := range points {
		require.NoError(t, store.Save(p))
	}
	assert.Equal(t, uint64(4), store.CurrentIndex())

	records, err := store.PointsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(1), records[0].Index)
	assert.Equal(t, "100.00", records[0].Point.Total)
	assert.Equal(t, uint64(4), records[1].Index)
	assert.Equal(t, "101.00", records[1].Point.Total)

	tail, err := store.PointsAfter(1)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, uint64(4), tail[0].Index)
}

func TestWALStore_Unscoped(t *testing.T) {
	store, err := NewWALStore(t.TempDir(), WithAccount("", "mainnet"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(domain.EquityPoint{Wallet: "0xAAA", Network: "mainnet", Total: "1"}))
	require.NoError(t, store.wal.Write(store.wal.CurrentIndex()+1, "other_record", []byte("{}")))
	require.NoError(t, store.Save(domain.EquityPoint{Wallet: "0xBBB", Network: "testnet", Total: "2"}))

	records, err := store.PointsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "1", records[0].Point.Total)
	assert.Equal(t, uint64(3), records[1].Index)
	assert.Equal(t, "2", records[1].Point.Total)
}
