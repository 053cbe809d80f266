package account

import (
	"context"
	"time"

	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"
)

// hyperliquidSource reads account state from the Hyperliquid public Info API.
type hyperliquidSource struct {
	info *hyperliquid.Info
}

func newHyperliquidSource(info *hyperliquid.Info) *hyperliquidSource {
	return &hyperliquidSource{info: info}
}

func (s *hyperliquidSource) MarginState(ctx context.Context, address string) (*marginState, error) {
	if s.info == nil {
		return nil, errors.New("hyperliquid info client is nil")
	}
	st, err := s.info.UserState(ctx, address)
	if err != nil {
		return nil, errors.Wrap(err, "get user state")
	}
	if st == nil {
		return nil, errors.New("hyperliquid API returned empty user state")
	}

	out := &marginState{
		AccountValue:    st.MarginSummary.AccountValue,
		TotalMarginUsed: st.MarginSummary.TotalMarginUsed,
		Withdrawable:    st.Withdrawable,
		Positions:       make([]assetPosition, 0, len(st.AssetPositions)),
	}
	for _, ap := range st.AssetPositions {
		p := assetPosition{
			Coin:           ap.Position.Coin,
			Szi:            ap.Position.Szi,
			PositionValue:  ap.Position.PositionValue,
			UnrealizedPnl:  ap.Position.UnrealizedPnl,
			ReturnOnEquity: ap.Position.ReturnOnEquity,
		}
		// entry price may be nil if position doesn't exist
		if ap.Position.EntryPx != nil {
			p.EntryPx = *ap.Position.EntryPx
		}
		out.Positions = append(out.Positions, p)
	}
	return out, nil
}

func (s *hyperliquidSource) FillsSince(ctx context.Context, address string, since time.Time) ([]fill, error) {
	if s.info == nil {
		return nil, errors.New("hyperliquid info client is nil")
	}
	fills, err := s.info.UserFillsByTime(ctx, address, since.UnixMilli(), nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "get user fills")
	}

	out := make([]fill, 0, len(fills))
	for _, f := range fills {
		out = append(out, fill{
			Coin:      f.Coin,
			Px:        f.Price,
			Sz:        f.Size,
			Side:      f.Side,
			Time:      f.Time,
			Oid:       f.Oid,
			Tid:       f.Tid,
			Fee:       f.Fee,
			ClosedPnl: f.ClosedPnl,
		})
	}
	return out, nil
}

func (s *hyperliquidSource) Mids(ctx context.Context) (map[string]string, error) {
	if s.info == nil {
		return nil, errors.New("hyperliquid info client is nil")
	}
	return s.info.AllMids(ctx)
}
