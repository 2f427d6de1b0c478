package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/pathflow"
	"github.com/aretw0/pathflow/internal/presentation/graph"
	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Controller is the part of *pathflow.Controller the server needs.
type Controller interface {
	Signals() []string
	Inspect(name string) (domain.Signal, bool)
	Warnings(name string) []pathflow.Warning
	Run(ctx context.Context, name string, payload any, opts ...pathflow.RunOption) (*domain.Result, error)
	LoadRun(ctx context.Context, runID string) (*domain.Result, error)
	ListRuns(ctx context.Context) ([]string, error)
	OnResult(fn pathflow.ResultListener) (remove func())
}

// Server exposes signal invocation over HTTP.
type Server struct {
	Controller Controller
	Streams    *StreamManager

	logger   *slog.Logger
	gatherer prometheus.Gatherer
	maxBody  int64
}

// DefaultMaxBodySize bounds the body of POST /signals/{name}.
const DefaultMaxBodySize = 1 << 20

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics serves the gatherer under GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithMaxBodySize overrides DefaultMaxBodySize. Non-positive values are ignored.
func WithMaxBodySize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// NewHandler creates a new HTTP handler for the controller.
// The returned stop function detaches the SSE stream from the controller.
func NewHandler(ctrl Controller, opts ...Option) (http.Handler, func()) {
	server := &Server{
		Controller: ctrl,
		Streams:    NewStreamManager(),
		logger:     slog.Default(),
		maxBody:    DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(server)
	}
	server.Streams.logger = server.logger

	stop := ctrl.OnResult(server.publish)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	r.Get("/signals", server.ListSignals)
	r.Get("/signals/{name}", server.GetSignal)
	r.Get("/signals/{name}/graph", server.GetGraph)
	r.Post("/signals/{name}", server.RunSignal)
	r.Get("/runs", server.ListRuns)
	r.Get("/runs/{id}", server.GetRun)
	r.Get("/events", server.SubscribeEvents)
	if server.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(server.gatherer, promhttp.HandlerOpts{}))
	}

	return enableCORS(r), stop
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RunRequest is the body of POST /signals/{name}. All fields are optional.
type RunRequest struct {
	RunID   string         `json:"run_id,omitempty"`
	Payload any            `json:"payload,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// SignalResponse is the body of GET /signals/{name}.
type SignalResponse struct {
	graph.View
	Warnings []pathflow.Warning `json:"warnings,omitempty"`
}

// RunSignal handles POST /signals/{name}.
// Failed runs answer 422 with the failed result as body. Bodies over the
// size limit answer 413 and a run ID already in flight answers 409.
func (s *Server) RunSignal(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var body RunRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			s.logger.Warn("RunSignal: request body too large", "signal", name, "limit", tooLarge.Limit)
			return
		}
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("RunSignal: Invalid request body", "signal", name, "error", err)
		return
	}

	var opts []pathflow.RunOption
	if body.RunID != "" {
		opts = append(opts, pathflow.WithRunID(body.RunID))
	}
	if body.Context != nil {
		opts = append(opts, pathflow.WithContext(body.Context))
	}

	result, err := s.Controller.Run(r.Context(), name, body.Payload, opts...)
	switch {
	case errors.Is(err, domain.ErrUnknownSignal):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, domain.ErrRunInFlight):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	status := http.StatusOK
	if err != nil {
		s.logger.Warn("RunSignal failed", "signal", name, "error", err)
		status = http.StatusUnprocessableEntity
		if result == nil {
			http.Error(w, fmt.Sprintf("Run error: %v", err), http.StatusInternalServerError)
			return
		}
	}
	s.writeJSON(w, status, result)
}

// ListSignals handles GET /signals.
func (s *Server) ListSignals(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Controller.Signals())
}

// GetSignal handles GET /signals/{name}.
func (s *Server) GetSignal(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	sig, ok := s.Controller.Inspect(name)
	if !ok {
		http.Error(w, fmt.Sprintf("%v: %s", domain.ErrUnknownSignal, name), http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, SignalResponse{
		View:     graph.Describe(sig),
		Warnings: s.Controller.Warnings(name),
	})
}

// GetGraph handles GET /signals/{name}/graph. With ?run_id the trace of
// that run is highlighted.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	sig, ok := s.Controller.Inspect(name)
	if !ok {
		http.Error(w, fmt.Sprintf("%v: %s", domain.ErrUnknownSignal, name), http.StatusNotFound)
		return
	}

	var overlay *graph.Overlay
	if runID := r.URL.Query().Get("run_id"); runID != "" {
		result, err := s.Controller.LoadRun(r.Context(), runID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		overlay = &graph.Overlay{Trace: result.Trace, Failed: result.Status == domain.StatusFailed}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, graph.GenerateMermaid(sig, overlay))
}

// ListRuns handles GET /runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Controller.ListRuns(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ids)
}

// GetRun handles GET /runs/{id}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	result, err := s.Controller.LoadRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "pathflow-http",
		"version": strings.TrimSpace(pathflow.Version),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrRunNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.logger.Error("request failed", "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// RunEvent is the SSE message sent for every finished run.
type RunEvent struct {
	RunID   string              `json:"run_id"`
	Signal  string              `json:"signal"`
	Status  domain.RunStatus    `json:"status"`
	Error   string              `json:"error,omitempty"`
	Trace   []domain.TraceEntry `json:"trace,omitempty"`
	Changed map[string]any      `json:"changed,omitempty"`
}

func (s *Server) publish(_ context.Context, result *domain.Result) {
	ev := RunEvent{
		RunID:  result.RunID,
		Signal: result.Signal,
		Status: result.Status,
		Error:  result.Error,
		Trace:  result.Trace,
	}
	if diff := domain.Diff(result.RunID, nil, result.Context); !diff.IsEmpty() {
		ev.Changed = diff.Changed
	}
	bytes, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("SSE: failed to encode run event", "run_id", result.RunID, "error", err)
		return
	}
	s.Streams.Broadcast(result.Signal, string(bytes))
}

// StreamManager handles active SSE connections
type StreamManager struct {
	logger      *slog.Logger
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // Signal -> Set of Channels; "" receives every signal
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		logger:      slog.Default(),
		subscribers: make(map[string]map[chan<- string]struct{}),
	}
}

// Subscribe registers a channel for runs of signal, or of every signal when
// signal is empty.
func (sm *StreamManager) Subscribe(signal string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[signal]; !ok {
		sm.subscribers[signal] = make(map[chan<- string]struct{})
	}
	sm.subscribers[signal][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[signal]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, signal)
			}
		}
	}
}

func (sm *StreamManager) Broadcast(signal string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sm.logger.Debug("StreamManager: Broadcasting", "signal", signal, "payload_size", len(msg))

	topics := []string{signal}
	if signal != "" {
		topics = append(topics, "")
	}
	for _, topic := range topics {
		for ch := range sm.subscribers[topic] {
			select {
			case ch <- msg:
			default:
				// Drop message if channel is full (slow client)
				sm.logger.Warn("SSE: Client buffer full, dropping message", "signal", signal)
			}
		}
	}
}

// SubscribeEvents handles the GET /events request (SSE).
// Optional ?signal= restricts the stream to one signal and ?status= to runs
// ending in the listed statuses.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	signal := r.URL.Query().Get("signal")
	var statuses []string
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, st := range strings.Split(raw, ",") {
			statuses = append(statuses, strings.TrimSpace(st))
		}
	}
	s.logger.Info("SSE: Subscribing to run events", "signal", signal)

	ch, cancel := s.Streams.Subscribe(signal)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(statuses) > 0 && !matchesStatus(msg, statuses) {
				continue
			}
			fmt.Fprintf(w, "event: run\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func matchesStatus(msg string, statuses []string) bool {
	var ev RunEvent
	if err := json.Unmarshal([]byte(msg), &ev); err != nil {
		return true
	}
	for _, st := range statuses {
		if string(ev.Status) == st {
			return true
		}
	}
	return false
}
