package account

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"
	"go.uber.org/zap"

	"github.com/vadiminshakov/riskwatch/internal/domain"
	"github.com/vadiminshakov/riskwatch/pkg/retrier"
)

var hundred = decimal.NewFromInt(100)

// Reader exposes the three read operations of the monitored wallet.
type Reader struct {
	src     source
	address string
	retrier *retrier.Retrier
	logger  *zap.Logger
	allowed map[string]struct{}
	now     func() time.Time
}

// Option configures a Reader.
type Option func(*Reader)

// WithSymbols restricts positions and trades to the given coins (e.g. BTC, ETH).
func WithSymbols(coins []string) Option {
	return func(r *Reader) {
		coins = lo.Filter(coins, func(c string, _ int) bool { return strings.TrimSpace(c) != "" })
		if len(coins) == 0 {
			r.allowed = nil
			return
		}
		r.allowed = lo.SliceToMap(coins, func(c string) (string, struct{}) {
			return strings.ToUpper(strings.TrimSpace(c)), struct{}{}
		})
	}
}

// WithRetrier overrides the retry policy for exchange calls.
func WithRetrier(rt *retrier.Retrier) Option {
	return func(r *Reader) {
		r.retrier = rt
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reader) {
		r.now = now
	}
}

// NewHyperliquidReader creates a reader over the SDK Info client for the given account.
func NewHyperliquidReader(info *hyperliquid.Info, address string, logger *zap.Logger, opts ...Option) *Reader {
	return newReader(newHyperliquidSource(info), address, logger, opts...)
}

func newReader(src source, address string, logger *zap.Logger, opts ...Option) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reader{
		src:     src,
		address: address,
		logger:  logger,
		now:     time.Now,
	}
	r.retrier = retrier.New(retrier.WithOnRetry(func(attempt int, wait time.Duration, err error) {
		r.logger.Warn("exchange call failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
	}))
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Address returns the monitored account address.
func (r *Reader) Address() string {
	return r.address
}

// GetAccountBalance returns the USDC collateral balance of the perp account.
func (r *Reader) GetAccountBalance(ctx context.Context) (*domain.Balance, error) {
	st, err := retrier.DoWithData(r.retrier, ctx, func(ctx context.Context) (*marginState, error) {
		return r.src.MarginState(ctx, r.address)
	})
	if err != nil {
		return nil, errors.Wrap(err, "fetch balance")
	}

	total, err := parseDecimal(st.AccountValue)
	if err != nil {
		return nil, errors.Wrap(err, "parse account value")
	}
	used, err := parseDecimal(st.TotalMarginUsed)
	if err != nil {
		return nil, errors.Wrap(err, "parse total margin used")
	}

	freeKnown := strings.TrimSpace(st.Withdrawable) != ""
	free := decimal.Zero
	if freeKnown {
		if free, err = parseDecimal(st.Withdrawable); err != nil {
			return nil, errors.Wrap(err, "parse withdrawable")
		}
	}

	b := domain.NewBalance(total, free, used, freeKnown)
	return &b, nil
}

// GetOpenPositions returns every position with non-zero size.
func (r *Reader) GetOpenPositions(ctx context.Context) ([]domain.Position, error) {
	st, err := retrier.DoWithData(r.retrier, ctx, func(ctx context.Context) (*marginState, error) {
		return r.src.MarginState(ctx, r.address)
	})
	if err != nil {
		return nil, errors.Wrap(err, "fetch positions")
	}

	var mids map[string]string
	positions := make([]domain.Position, 0, len(st.Positions))
	for _, ap := range st.Positions {
		if !r.isAllowed(ap.Coin) {
			continue
		}
		size, err := parseDecimal(ap.Szi)
		if err != nil {
			return nil, errors.Wrapf(err, "parse size of %s", ap.Coin)
		}
		if size.IsZero() {
			continue
		}

		entry, err := parseDecimal(ap.EntryPx)
		if err != nil {
			return nil, errors.Wrapf(err, "parse entry price of %s", ap.Coin)
		}
		notional, err := parseDecimal(ap.PositionValue)
		if err != nil {
			return nil, errors.Wrapf(err, "parse position value of %s", ap.Coin)
		}
		upnl, err := parseDecimal(ap.UnrealizedPnl)
		if err != nil {
			return nil, errors.Wrapf(err, "parse unrealized pnl of %s", ap.Coin)
		}

		mark := decimal.Zero
		if notional.IsPositive() {
			mark = notional.Div(size.Abs())
		} else {
			// fetch current mid as fallback
			if mids == nil {
				if mids, err = r.src.Mids(ctx); err != nil {
					r.logger.Warn("failed to fetch mid prices", zap.String("coin", ap.Coin), zap.Error(err))
					mids = map[string]string{}
				}
			}
			if m := mids[ap.Coin]; m != "" {
				mark, _ = decimal.NewFromString(m)
			}
			notional = mark.Mul(size.Abs())
		}

		pnlPercent, err := positionPnLPercent(ap.ReturnOnEquity, upnl, entry, size)
		if err != nil {
			return nil, errors.Wrapf(err, "parse return on equity of %s", ap.Coin)
		}

		pos, err := domain.NewPositionFromSignedSize(perpSymbol(ap.Coin), size, entry, mark, notional, upnl, pnlPercent)
		if err != nil {
			return nil, errors.Wrap(err, "build position")
		}
		positions = append(positions, pos)
	}

	return positions, nil
}

// GetTradeHistory returns fills of the last days (clamped to 1..7), newest first.
func (r *Reader) GetTradeHistory(ctx context.Context, days int) ([]domain.Trade, error) {
	days = domain.ClampDays(days)
	since := r.now().Add(-time.Duration(days) * 24 * time.Hour)

	fills, err := retrier.DoWithData(r.retrier, ctx, func(ctx context.Context) ([]fill, error) {
		return r.src.FillsSince(ctx, r.address, since)
	})
	if err != nil {
		return nil, errors.Wrap(err, "fetch trade history")
	}

	trades := make([]domain.Trade, 0, len(fills))
	for _, f := range fills {
		if !r.isAllowed(f.Coin) {
			continue
		}
		ts := time.UnixMilli(f.Time)
		if ts.Before(since) {
			continue
		}
		t, err := tradeFromFill(f)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}

	domain.SortTradesNewestFirst(trades)
	return trades, nil
}

func (r *Reader) isAllowed(coin string) bool {
	if r.allowed == nil {
		return true
	}
	_, ok := r.allowed[strings.ToUpper(coin)]
	return ok
}

func tradeFromFill(f fill) (domain.Trade, error) {
	side, ok := domain.ParseTradeSide(f.Side)
	if !ok {
		return domain.Trade{}, errors.Errorf("unknown fill side %q for %s", f.Side, f.Coin)
	}
	price, err := parseDecimal(f.Px)
	if err != nil {
		return domain.Trade{}, errors.Wrapf(err, "parse fill price of %s", f.Coin)
	}
	amount, err := parseDecimal(f.Sz)
	if err != nil {
		return domain.Trade{}, errors.Wrapf(err, "parse fill size of %s", f.Coin)
	}
	fee, err := parseDecimal(f.Fee)
	if err != nil {
		return domain.Trade{}, errors.Wrapf(err, "parse fill fee of %s", f.Coin)
	}
	closedPnl, err := parseDecimal(f.ClosedPnl)
	if err != nil {
		return domain.Trade{}, errors.Wrapf(err, "parse closed pnl of %s", f.Coin)
	}

	t := domain.Trade{
		Timestamp: time.UnixMilli(f.Time),
		Symbol:    perpSymbol(f.Coin),
		Side:      side,
		Amount:    amount,
		Price:     price,
		Cost:      amount.Mul(price),
		Fee:       fee,
		ClosedPnL: closedPnl,
	}
	if f.Oid != 0 {
		t.OrderID = strconv.FormatInt(f.Oid, 10)
	}
	if f.Tid != 0 {
		t.TradeID = strconv.FormatInt(f.Tid, 10)
	}
	return t, nil
}

func positionPnLPercent(roe string, upnl, entry, size decimal.Decimal) (decimal.Decimal, error) {
	if strings.TrimSpace(roe) != "" {
		d, err := decimal.NewFromString(roe)
		if err != nil {
			return decimal.Zero, err
		}
		return d.Mul(hundred), nil
	}
	cost := entry.Mul(size.Abs())
	if !cost.IsPositive() {
		return decimal.Zero, nil
	}
	return upnl.Div(cost).Mul(hundred), nil
}

// perpSymbol renders a coin in unified notation, e.g. BTC -> BTC/USDC:USDC.
// Spot (@N, PURR/USDC) and builder-deployed (dex:COIN) names are kept verbatim.
func perpSymbol(coin string) string {
	if coin == "" || strings.ContainsAny(coin, "/@:") {
		return coin
	}
	return coin + "/" + domain.SettlementCurrency + ":" + domain.SettlementCurrency
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
