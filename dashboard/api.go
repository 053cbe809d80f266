package dashboard

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/riskwatch/internal/domain"
	"github.com/vadiminshakov/riskwatch/internal/export"
	"github.com/vadiminshakov/riskwatch/internal/view"
)

// ErrNoSnapshot is returned until the first refresh completes.
var ErrNoSnapshot = errors.New("no snapshot yet, first refresh in progress")

type snapshotResponse struct {
	view.Page
	Healthy                bool `json:"healthy"`
	AutoRefresh            bool `json:"auto_refresh"`
	RefreshIntervalSeconds int  `json:"refresh_interval_seconds"`
}

type autoRefreshRequest struct {
	Enabled *bool `json:"enabled"`
}

type autoRefreshResponse struct {
	Enabled bool `json:"enabled"`
}

type refreshResponse struct {
	Queued bool `json:"queued"`
}

type healthResponse struct {
	Status      string     `json:"status"`
	LastRefresh *time.Time `json:"last_refresh,omitempty"`
	Healthy     bool       `json:"healthy"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	filter, err := s.parseFilter(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	snap := s.monitor.Latest()
	if snap == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: ErrNoSnapshot.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, s.buildResponse(snap, filter))
}

func (s *Server) buildResponse(snap *domain.Snapshot, filter domain.TradeFilter) snapshotResponse {
	return snapshotResponse{
		Page:                   view.Build(snap, filter, snap.FetchedAt, view.Options{Location: s.location}),
		Healthy:                snap.Healthy(),
		AutoRefresh:            s.monitor.AutoRefresh(),
		RefreshIntervalSeconds: int(s.monitor.Interval() / time.Second),
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	queued := s.monitor.RefreshNow()
	s.writeJSON(w, http.StatusAccepted, refreshResponse{Queued: queued})
}

func (s *Server) handleGetAutoRefresh(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, autoRefreshResponse{Enabled: s.monitor.AutoRefresh()})
}

func (s *Server) handleSetAutoRefresh(w http.ResponseWriter, r *http.Request) {
	var req autoRefreshRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}
	if req.Enabled == nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "field 'enabled' is required"})
		return
	}

	s.monitor.SetAutoRefresh(*req.Enabled)
	s.logger.Info("auto refresh toggled", zap.Bool("enabled", *req.Enabled))
	s.writeJSON(w, http.StatusOK, autoRefreshResponse{Enabled: s.monitor.AutoRefresh()})
}

func (s *Server) handleTradesCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := s.parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	snap := s.monitor.Latest()
	if snap == nil {
		http.Error(w, ErrNoSnapshot.Error(), http.StatusServiceUnavailable)
		return
	}

	trades := filter.Apply(snap.Trades, snap.FetchedAt)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(filter, snap.FetchedAt)+`"`)
	if err := export.WriteTradesCSV(w, trades, s.location); err != nil {
		s.logger.Warn("write trades csv", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if snap := s.monitor.Latest(); snap != nil {
		fetched := snap.FetchedAt
		resp.LastRefresh = &fetched
		resp.Healthy = snap.Healthy()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// parseFilter reads days, symbol and side from the query string.
func (s *Server) parseFilter(r *http.Request) (domain.TradeFilter, error) {
	q := r.URL.Query()
	filter := domain.TradeFilter{
		Days:   s.defaultDays,
		Symbol: strings.TrimSpace(q.Get("symbol")),
		Side:   strings.TrimSpace(q.Get("side")),
	}

	if v := strings.TrimSpace(q.Get("days")); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < domain.MinTradeHistoryDays || days > domain.MaxTradeHistoryDays {
			return domain.TradeFilter{}, errors.Errorf("days must be an integer between %d and %d", domain.MinTradeHistoryDays, domain.MaxTradeHistoryDays)
		}
		filter.Days = days
	}

	if filter.Side != "" && !strings.EqualFold(filter.Side, domain.FilterAll) {
		if _, ok := domain.ParseTradeSide(filter.Side); !ok {
			return domain.TradeFilter{}, errors.Errorf("side must be All, BUY or SELL, got %q", filter.Side)
		}
	}

	return filter, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}
