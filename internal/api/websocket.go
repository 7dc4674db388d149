package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/careermate/internal/identity"
	"github.com/ashureev/careermate/internal/interview"
	"github.com/coder/websocket"
)

const wsWriteTimeout = 10 * time.Second

// SessionStream pushes engine state to the browser over a websocket.
type SessionStream struct {
	mgr            *interview.Manager
	allowedOrigins []string
	isDev          bool
	logger         *slog.Logger
}

// NewSessionStream creates the websocket handler.
func NewSessionStream(mgr *interview.Manager, allowedOrigins []string, isDev bool, logger *slog.Logger) *SessionStream {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStream{mgr: mgr, allowedOrigins: allowedOrigins, isDev: isDev, logger: logger}
}

type wsMessage struct {
	Type string `json:"type"`
}

// latestState keeps only the newest state delivered by the engine.
type latestState struct {
	mu     sync.Mutex
	state  interview.State
	have   bool
	notify chan struct{}
}

func (l *latestState) offer(st interview.State) {
	l.mu.Lock()
	if !l.have || st.Revision > l.state.Revision {
		l.state = st
		l.have = true
	}
	l.mu.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *latestState) take() (interview.State, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state, l.have
}

// ServeHTTP implements http.Handler for the websocket upgrade.
func (h *SessionStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	engine, release, err := h.mgr.Attach(r.Context(), userID, sessionID)
	if err != nil {
		h.logger.Error("Failed to load interview session", "error", err, "user_id", userID, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to load interview session")
		return
	}
	defer release()

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()
	h.logger.Info("Session stream connected", "user_id", userID, "session_id", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	latest := &latestState{notify: make(chan struct{}, 1)}
	unsubscribe := engine.Subscribe(latest.offer)
	defer unsubscribe()
	latest.offer(engine.State())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		h.readLoop(ctx, ws, userID)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		h.writeLoop(ctx, ws, latest, engine.Done(), userID)
	}()
	wg.Wait()
	h.logger.Info("Session stream ended", "user_id", userID, "session_id", sessionID)
}

func (h *SessionStream) readLoop(ctx context.Context, ws *websocket.Conn, userID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				h.logger.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			if err := writeJSON(ctx, ws, map[string]string{"type": "pong"}); err != nil {
				h.logger.Debug("Failed to send pong", "error", err)
				return
			}
		}
	}
}

// writeLoop ends when the engine is closed so the client reconnects to a
// fresh one.
func (h *SessionStream) writeLoop(ctx context.Context, ws *websocket.Conn, latest *latestState, engineDone <-chan struct{}, userID string) {
	var sent uint64
	first := true
	for {
		if st, ok := latest.take(); ok && (first || st.Revision > sent) {
			if err := writeJSON(ctx, ws, st); err != nil {
				if ctx.Err() == nil {
					h.logger.Debug("WebSocket write error", "error", err, "user_id", userID)
				}
				return
			}
			sent = st.Revision
			first = false
		}
		select {
		case <-ctx.Done():
			return
		case <-engineDone:
			h.logger.Info("Interview engine closed, ending stream", "user_id", userID)
			if err := ws.Close(websocket.StatusGoingAway, "interview session closed"); err != nil {
				h.logger.Debug("Failed to close websocket", "error", err, "user_id", userID)
			}
			return
		case <-latest.notify:
		}
	}
}

func (h *SessionStream) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin)
	return false
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
