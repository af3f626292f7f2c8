package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
	"github.com/GriffinCanCode/screen-narrator/internal/orchestrator"
	"github.com/GriffinCanCode/screen-narrator/internal/orchestrator/screen"
	"github.com/GriffinCanCode/screen-narrator/internal/orchestrator/transcript"
	screencap "github.com/GriffinCanCode/screen-narrator/internal/screen"
	"github.com/GriffinCanCode/screen-narrator/internal/trace"
)

// Pipeline is the part of the orchestrator the server drives.
type Pipeline interface {
	TextEvents() <-chan transcript.TextEntry
	DialogEvents() <-chan transcript.DialogEntry
	FailureEvents() <-chan orchestrator.FailureEvent
	Text() []transcript.TextEntry
	Dialog() []transcript.DialogEntry
	CaptureNow(ctx context.Context) screen.TickResult
	LatestFrame() (screencap.Frame, bool)
	SetCapturing(enabled bool)
	Capturing() bool
	Region() (screencap.Region, bool)
	SetRegion(r screencap.Region) error
	ClearRegion() error
	Status() orchestrator.Status
	Export() (string, error)
}

// Message types.
type Message struct {
	Type    string `json:"type"`
	TraceID string `json:"trace_id,omitempty"`
}

type TextMessage struct {
	Type      string    `json:"type"`
	Lines     []string  `json:"lines"`
	Timestamp time.Time `json:"timestamp"`
	FrameID   uuid.UUID `json:"frame_id"`
}

type DialogMessage struct {
	Type      string    `json:"type"`
	Lines     []string  `json:"lines"`
	Timestamp time.Time `json:"timestamp"`
}

type FailureMessage struct {
	Type      string    `json:"type"`
	Component string    `json:"component"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type CaptureResultMessage struct {
	Type   string `json:"type"`
	Result string `json:"result"`
}

type RateLimitedMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
	now        func() time.Time
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if r.now != nil {
		now = r.now()
	}
	cutoff := now.Add(-RateLimitWindow)

	// Prune old timestamps
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	pipeline   Pipeline
	mu         sync.RWMutex
	conns      map[*websocket.Conn]struct{}
	rateLimits map[*websocket.Conn]*rateLimiter
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	handlers   sync.WaitGroup
	closed     bool
}

// New creates a new server and starts broadcasting pipeline events.
func New(pipeline Pipeline) *Server {
	s := &Server{
		pipeline:   pipeline,
		conns:      make(map[*websocket.Conn]struct{}),
		rateLimits: make(map[*websocket.Conn]*rateLimiter),
		stopCh:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.broadcastEvents()

	return s
}

// Close stops the broadcaster, drops every WebSocket connection, and waits
// for their handlers to return. http.Server.Shutdown does not touch hijacked
// connections, so call this before stopping the pipeline.
func (s *Server) Close() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.mu.Lock()
		s.closed = true
		for conn := range s.conns {
			_ = conn.CloseNow()
		}
		s.mu.Unlock()
	})
	s.wg.Wait()
	s.handlers.Wait()
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("GET /api/text", s.handleText)
	mux.HandleFunc("GET /api/dialog", s.handleDialog)
	mux.HandleFunc("GET /api/capture", s.handleCapture)
	mux.HandleFunc("POST /api/capture/start", s.handleCaptureStart)
	mux.HandleFunc("POST /api/capture/stop", s.handleCaptureStop)
	mux.HandleFunc("GET /api/region", s.handleGetRegion)
	mux.HandleFunc("PUT /api/region", s.handlePutRegion)
	mux.HandleFunc("DELETE /api/region", s.handleDeleteRegion)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/export", s.handleExport)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	s.handlers.Add(1)
	defer s.handlers.Done()
	s.conns[conn] = struct{}{}
	s.rateLimits[conn] = &rateLimiter{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		delete(s.rateLimits, conn)
		s.mu.Unlock()
	}()

	// Get trace context from HTTP upgrade request
	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		// Check rate limit
		s.mu.RLock()
		rl := s.rateLimits[conn]
		s.mu.RUnlock()

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(baseCtx, conn, RateLimitedMessage{
				Type:    "error",
				Message: "rate limit exceeded",
			})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		switch base.Type {
		case "capture":
			// Extract trace_id from message or create new trace context
			ctx := baseCtx
			if tc, ok := trace.ExtractFromJSON(msg); ok {
				ctx = trace.WithContext(ctx, tc)
			} else {
				ctx, _ = trace.EnsureContext(ctx)
			}
			s.handleForcedCapture(ctx, conn)
		}
	}
}

func (s *Server) handleForcedCapture(ctx context.Context, conn *websocket.Conn) {
	ctx, span := trace.StartSpan(ctx, "forced_capture")
	defer span.End()

	result := s.pipeline.CaptureNow(ctx)
	span.SetAttr("result", result.String())
	trace.Logger(ctx).Info("forced capture", "result", result.String())

	_ = wsjson.Write(ctx, conn, CaptureResultMessage{Type: "capture_result", Result: result.String()})
}

func (s *Server) broadcastEvents() {
	defer s.wg.Done()
	for {
		var msg any
		select {
		case <-s.stopCh:
			return
		case e := <-s.pipeline.TextEvents():
			msg = TextMessage{Type: "text", Lines: e.Lines, Timestamp: e.Timestamp, FrameID: e.FrameID}
		case e := <-s.pipeline.DialogEvents():
			msg = DialogMessage{Type: "dialog", Lines: e.Lines, Timestamp: e.Timestamp}
		case e := <-s.pipeline.FailureEvents():
			msg = FailureMessage{Type: "failure", Component: e.Component, Code: e.Code, Message: e.Message, Timestamp: e.Timestamp}
		}
		s.broadcast(msg)
	}
}

func (s *Server) broadcast(msg any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for conn := range s.conns {
		go func(c *websocket.Conn) {
			ctx, cancel := context.WithTimeout(context.Background(), BroadcastWriteTimeout)
			defer cancel()
			_ = wsjson.Write(ctx, c, msg)
		}(conn)
	}
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"entries": s.pipeline.Text()})
}

func (s *Server) handleDialog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"entries": s.pipeline.Dialog()})
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	frame, ok := s.pipeline.LatestFrame()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no frame captured yet"})
		return
	}
	w.Header().Set("Content-Type", frame.MIMEType())
	w.Header().Set("Content-Length", strconv.Itoa(len(frame.Image)))
	w.Header().Set("X-Frame-ID", frame.ID.String())
	w.Header().Set("Last-Modified", frame.CapturedAt.UTC().Format(http.TimeFormat))
	_, _ = w.Write(frame.Image)
}

func (s *Server) handleCaptureStart(w http.ResponseWriter, r *http.Request) {
	s.pipeline.SetCapturing(true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "capturing_started"})
}

func (s *Server) handleCaptureStop(w http.ResponseWriter, r *http.Request) {
	s.pipeline.SetCapturing(false)
	writeJSON(w, http.StatusOK, map[string]string{"status": "capturing_stopped"})
}

func (s *Server) handleGetRegion(w http.ResponseWriter, r *http.Request) {
	region, ok := s.pipeline.Region()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"region": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"region": region})
}

func (s *Server) handlePutRegion(w http.ResponseWriter, r *http.Request) {
	var region screencap.Region
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&region); err != nil {
		writeError(w, r, apperrors.Wrap(err, apperrors.CodeInvalid, "decode region"))
		return
	}
	if err := s.pipeline.SetRegion(region); err != nil {
		writeError(w, r, err)
		return
	}
	trace.Logger(r.Context()).Info("capture region set", "region", region.String())
	writeJSON(w, http.StatusOK, map[string]any{"region": region})
}

func (s *Server) handleDeleteRegion(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.ClearRegion(); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Status())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	path, err := s.pipeline.Export()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an error code onto an HTTP status.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case apperrors.CodeInvalid, apperrors.CodeRegionInvalid:
		status = http.StatusBadRequest
	case apperrors.CodeUnavailable:
		status = http.StatusServiceUnavailable
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		status = http.StatusRequestEntityTooLarge
	}
	if status >= http.StatusInternalServerError {
		trace.Logger(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"code": string(code), "error": err.Error()})
}
