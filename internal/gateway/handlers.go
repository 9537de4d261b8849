package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"StockWatch/internal/model"
	"StockWatch/internal/recorder"
	"StockWatch/internal/refresher"
	"StockWatch/internal/watchlist"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller is the part of the refresher exposed over HTTP.
type Controller interface {
	SetActiveSymbol(symbol string) error
	SetAutoRefresh(enabled bool)
	Status() refresher.Status
}

// SnapshotSource yields the latest published snapshot.
type SnapshotSource interface {
	Latest() (*model.Snapshot, bool)
}

// HistorySource reads archived snapshots, newest first.
type HistorySource interface {
	History(symbol string, limit int) ([]recorder.ArchivedSnapshot, error)
}

// Server bundles the collaborators behind the HTTP routes.
type Server struct {
	Hub       *Hub
	Refresher Controller
	Snapshots SnapshotSource
	Watchlist *watchlist.List
	History   HistorySource // nil disables /api/history
	Metrics   http.Handler  // nil disables /metrics
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Routes registers all HTTP routes on a new mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.Hub.logger.Warn().Err(err).Msg("ws upgrade error")
			return
		}
		s.Hub.HandleWSRequest(conn)
	})

	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Refresher.Status())
	})
	mux.HandleFunc("POST /api/symbol", s.handleSetSymbol)
	mux.HandleFunc("POST /api/autorefresh", s.handleAutoRefresh)

	mux.HandleFunc("GET /api/watchlist", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"symbols": s.Watchlist.Symbols()})
	})
	mux.HandleFunc("POST /api/watchlist", s.handleWatchlistAdd)
	mux.HandleFunc("DELETE /api/watchlist/{symbol}", s.handleWatchlistRemove)
	mux.HandleFunc("GET /api/samples", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"symbols": watchlist.SampleSymbols})
	})

	mux.HandleFunc("OPTIONS /api/", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ws_clients": s.Hub.ClientCount()})
	})
	if s.History != nil {
		mux.HandleFunc("GET /api/history/{symbol}", s.handleHistory)
	}
	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics)
	}
	return mux
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.Snapshots.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no snapshot published yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSetSymbol(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.Refresher.SetActiveSymbol(req.Symbol); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, model.ErrInvalidParameter):
			status = http.StatusBadRequest
		case errors.Is(err, refresher.ErrClosed):
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, s.Refresher.Status())
}

func (s *Server) handleAutoRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, `expected {"enabled": true|false}`)
		return
	}
	s.Refresher.SetAutoRefresh(*req.Enabled)
	writeJSON(w, http.StatusOK, s.Refresher.Status())
}

func (s *Server) handleWatchlistAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	added, err := s.Watchlist.Add(req.Symbol)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrInvalidParameter) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string][]string{"symbols": s.Watchlist.Symbols()})
}

func (s *Server) handleWatchlistRemove(w http.ResponseWriter, r *http.Request) {
	removed, err := s.Watchlist.Remove(r.PathValue("symbol"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrInvalidParameter) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "symbol not on watchlist")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"symbols": s.Watchlist.Symbols()})
}

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 500
)

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := refresher.NormalizeSymbol(r.PathValue("symbol"))
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	rows, err := s.History.History(symbol, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []recorder.ArchivedSnapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbol": symbol, "snapshots": rows})
}
