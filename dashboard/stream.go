package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/riskwatch/internal/domain"
)

const (
	thinningThreshold = 100
	thinningStep      = 12
)

func setStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

func writeEvent(w http.ResponseWriter, id, event string, payload []byte) {
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

// handleSnapshotStream pushes the rendered page every time a refresh completes.
// The query string carries the same filter as /api/snapshot.
func (s *Server) handleSnapshotStream(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		http.Error(w, "snapshot feed not available", http.StatusServiceUnavailable)
		return
	}
	filter, err := s.parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := s.feed.Subscribe()
	defer s.feed.Unsubscribe(ch)

	setStreamHeaders(w)
	w.WriteHeader(http.StatusOK)

	send := func(snap *domain.Snapshot) bool {
		payload, err := json.Marshal(s.buildResponse(snap, filter))
		if err != nil {
			s.logger.Warn("marshal snapshot event", zap.Error(err))
			return false
		}
		writeEvent(w, snap.ID, "snapshot", payload)
		flusher.Flush()
		return true
	}

	if snap := s.monitor.Latest(); snap != nil {
		send(snap)
	} else {
		writeEvent(w, "", "no_data", []byte("{}"))
		flusher.Flush()
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case snap, ok := <-ch:
			if !ok {
				return
			}
			send(snap)
		}
	}
}

// handleEquityStream replays the persisted equity history and follows new points.
// Clients resume with Last-Event-ID or the last_event_id query parameter.
func (s *Server) handleEquityStream(w http.ResponseWriter, r *http.Request) {
	if s.equity == nil {
		http.Error(w, "equity store not available", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	lastIndex := s.parseLastEventID(r.Header.Get("Last-Event-ID"), r.URL.Query().Get("last_event_id"))
	isFirstLoad := lastIndex == 0

	records, err := s.equity.PointsAfter(lastIndex)
	if err != nil {
		s.logger.Error("equity stream initial load", zap.Error(err))
		http.Error(w, "failed to load equity history", http.StatusInternalServerError)
		return
	}

	setStreamHeaders(w)
	w.WriteHeader(http.StatusOK)

	sendPoints := func(records []domain.EquityPointRecord) {
		if isFirstLoad && len(records) > thinningThreshold {
			records = thinRecords(records)
		}
		isFirstLoad = false
		for _, record := range records {
			payload, err := json.Marshal(record.Point)
			if err != nil {
				s.logger.Warn("marshal equity point", zap.Error(err))
				continue
			}
			writeEvent(w, strconv.FormatUint(record.Index, 10), "equity", payload)
			lastIndex = record.Index
		}
		flusher.Flush()
	}

	sendPoints(records)

	// tell the client there is no history yet so it can leave the loading state
	if lastIndex == 0 {
		writeEvent(w, "", "no_data", []byte("{}"))
		flusher.Flush()
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	poll := time.NewTicker(equityPollPeriod)
	defer poll.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-poll.C:
			records, err := s.equity.PointsAfter(lastIndex)
			if err != nil {
				s.logger.Warn("equity stream poll", zap.Error(err))
				continue
			}
			if len(records) > 0 {
				sendPoints(records)
			}
		}
	}
}

// parseLastEventID extracts an SSE event ID from either the Last-Event-ID header or a query parameter.
// The header is preferred; the query parameter allows manual reconnects to resume from a known index.
func (s *Server) parseLastEventID(headerVal, queryVal string) uint64 {
	idStr := strings.TrimSpace(headerVal)
	if idStr == "" {
		idStr = strings.TrimSpace(queryVal)
	}
	if idStr == "" {
		return 0
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		s.logger.Debug("invalid last event id", zap.String("id", idStr), zap.Error(err))
		return 0
	}
	return id
}

// thinRecords keeps the newest records intact and sends exponentially fewer of the older ones.
func thinRecords[T any](records []T) []T {
	if len(records) <= thinningThreshold {
		return records
	}

	older := records[:len(records)-thinningThreshold]
	var thinned []T

	skip := 1
	sent := 0
	for i := len(older) - 1; i >= 0; i -= skip + 1 {
		thinned = append(thinned, older[i])
		sent++
		if sent%thinningStep == 0 {
			skip *= 2
		}
	}
	// restore chronological order
	for i, j := 0, len(thinned)-1; i < j; i, j = i+1, j-1 {
		thinned[i], thinned[j] = thinned[j], thinned[i]
	}

	return append(thinned, records[len(records)-thinningThreshold:]...)
}
