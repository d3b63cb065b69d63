// Package server bridges the in-process event bus and history store to an
// external window/tray UI over a loopback HTTP/WebSocket endpoint: events
// fan out over the socket, and history browsing and summarization are
// exposed as a small REST surface. The UI itself stays out of scope; this
// is only the wire it attaches to.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/voicedapp/voiced/internal/eventbus"
	"github.com/voicedapp/voiced/internal/frameproducer"
	"github.com/voicedapp/voiced/internal/history"
	"github.com/voicedapp/voiced/internal/sidecar"
	"github.com/voicedapp/voiced/internal/trace"
)

// HistoryStore is the subset of history.Store the REST surface reads and
// mutates through.
type HistoryStore interface {
	GetAll(ctx context.Context, limit, offset int) (history.Page, error)
	Search(ctx context.Context, query string, limit, offset int) (history.Page, error)
	Delete(ctx context.Context, id int64) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
	GetRecent(ctx context.Context, minutes int) ([]history.Entry, error)
}

// Summarizer is the subset of sidecar.Client the summarize endpoint calls.
type Summarizer interface {
	SummarizeTranscriptions(texts []sidecar.TimedText, languageHint, customPrompt string) (sidecar.SummaryResult, error)
}

// EventMessage is the wire shape of every event relayed over the
// WebSocket: the bus event's Type plus its typed payload, unwrapped verbatim.
type EventMessage struct {
	Type    eventbus.Type `json:"type"`
	Payload any           `json:"payload"`
}

// summarizeRequest is the body of POST /api/summarize.
type summarizeRequest struct {
	Minutes      int    `json:"minutes"`
	LanguageHint string `json:"language_hint,omitempty"`
	CustomPrompt string `json:"custom_prompt,omitempty"`
}

// Server exposes the event bus and history store to a UI process over
// HTTP and WebSocket.
type Server struct {
	bus        *eventbus.Bus
	history    HistoryStore
	summarizer Summarizer

	// Devices backs GET /api/devices for the UI's input-device picker.
	// Optional; the endpoint reports 503 when unset.
	Devices func() ([]frameproducer.Device, error)

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

// New constructs a Server. summarizer may be nil if the sidecar's
// postprocess LLM is not wired up; the summarize endpoint then reports 503.
func New(bus *eventbus.Bus, historyStore HistoryStore, summarizer Summarizer) *Server {
	s := &Server{
		bus:        bus,
		history:    historyStore,
		summarizer: summarizer,
		conns:      make(map[*websocket.Conn]struct{}),
	}
	if bus != nil {
		go s.broadcastEvents(bus.Subscribe())
	}
	return s
}

// Handler returns the HTTP handler serving both the WebSocket event
// bridge and the history/summarize REST surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/devices", s.handleDeviceList)
	mux.HandleFunc("GET /api/history", s.handleHistoryList)
	mux.HandleFunc("GET /api/history/search", s.handleHistorySearch)
	mux.HandleFunc("DELETE /api/history/{id}", s.handleHistoryDelete)
	mux.HandleFunc("DELETE /api/history", s.handleHistoryDeleteAll)
	mux.HandleFunc("POST /api/summarize", s.handleSummarize)

	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	log := trace.Logger(r.Context())
	log.Info("websocket connected", "remote", r.RemoteAddr)

	// The UI is a pure event listener; this loop only exists to notice the
	// connection closing (Read returns an error) so we can clean up conns.
	for {
		var discard json.RawMessage
		if err := wsjson.Read(r.Context(), conn, &discard); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}
	}
}

func (s *Server) broadcastEvents(events <-chan eventbus.Event) {
	for evt := range events {
		msg := EventMessage{Type: evt.Type, Payload: evt.Payload}

		s.mu.RLock()
		for conn := range s.conns {
			go func(c *websocket.Conn) {
				if err := wsjson.Write(context.Background(), c, msg); err != nil {
					slog.Debug("server: websocket write failed", "error", err)
				}
			}(conn)
		}
		s.mu.RUnlock()
	}
}

func (s *Server) handleDeviceList(w http.ResponseWriter, r *http.Request) {
	if s.Devices == nil {
		writeError(w, http.StatusServiceUnavailable, errDeviceListerUnavailable)
		return
	}
	devices, err := s.Devices()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string][]frameproducer.Device{"devices": devices})
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagingParams(r)
	page, err := s.history.GetAll(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, page)
}

func (s *Server) handleHistorySearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit, offset := pagingParams(r)
	page, err := s.history.Search(r.Context(), query, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, page)
}

func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	deleted, err := s.history.Delete(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]bool{"deleted": deleted})
}

func (s *Server) handleHistoryDeleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := s.history.DeleteAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]int64{"deleted": n})
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	if s.summarizer == nil {
		writeError(w, http.StatusServiceUnavailable, errSummarizerUnavailable)
		return
	}

	// An empty body means "summarize the default window".
	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Minutes <= 0 {
		req.Minutes = DefaultSummarizeWindowMinutes
	}

	entries, err := s.history.GetRecent(r.Context(), req.Minutes)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	texts := make([]sidecar.TimedText, len(entries))
	for i, e := range entries {
		texts[i] = sidecar.TimedText{Text: e.Text, CreatedAt: e.CreatedAt}
	}

	result, err := s.summarizer.SummarizeTranscriptions(texts, req.LanguageHint, req.CustomPrompt)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, result)
}

func pagingParams(r *http.Request) (limit, offset int) {
	limit = DefaultPageLimit
	offset = 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
