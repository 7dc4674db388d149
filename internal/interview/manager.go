package interview

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/careermate/internal/domain"
)

// StorageFactory returns the storage scoped to one browser tab.
type StorageFactory func(userID, sessionID string) Storage

// CompletionHandler is called once each time a hosted interview settles:
// it is Completed, its report is stored and every evaluation has returned.
// Handlers run on the engine's notification path and must not block.
type CompletionHandler func(userID, sessionID string, st State)

type hostedEngine struct {
	engine      *Engine
	lastUsed    time.Time
	attached    int
	unsubscribe func()

	mu        sync.Mutex
	revision  uint64
	completed bool
}

// Manager hosts one engine per user and session.
type Manager struct {
	svc     Service
	storage StorageFactory
	opts    []Option
	now     func() time.Time

	mu      sync.Mutex
	engines map[string]map[string]*hostedEngine

	hmu      sync.RWMutex
	handlers []CompletionHandler
}

// NewManager creates a manager. opts apply to every engine it creates.
func NewManager(svc Service, storage StorageFactory, opts ...Option) *Manager {
	return &Manager{
		svc:     svc,
		storage: storage,
		opts:    opts,
		now:     time.Now,
		engines: make(map[string]map[string]*hostedEngine),
	}
}

// OnComplete registers a completion handler.
func (m *Manager) OnComplete(h CompletionHandler) {
	m.hmu.Lock()
	defer m.hmu.Unlock()
	m.handlers = append(m.handlers, h)
}

// Get returns the engine for a user and session, creating and restoring it
// on first use.
func (m *Manager) Get(ctx context.Context, userID, sessionID string) (*Engine, error) {
	h, err := m.hosted(ctx, userID, sessionID, false)
	if err != nil {
		return nil, err
	}
	return h.engine, nil
}

// Attach is Get for a long-lived subscriber such as a websocket stream.
// The engine is not swept until release is called.
func (m *Manager) Attach(ctx context.Context, userID, sessionID string) (*Engine, func(), error) {
	h, err := m.hosted(ctx, userID, sessionID, true)
	if err != nil {
		return nil, nil, err
	}
	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			h.attached--
			h.lastUsed = m.now()
		})
	}
	return h.engine, release, nil
}

func (m *Manager) lookupLocked(userID, sessionID string, attach bool) *hostedEngine {
	h, ok := m.engines[userID][sessionID]
	if !ok {
		return nil
	}
	h.lastUsed = m.now()
	if attach {
		h.attached++
	}
	return h
}

// hosted restores a new engine outside the lock so slow storage does not
// hold up other tabs. When two requests race for the same tab the first
// insert wins and the other engine is dropped.
func (m *Manager) hosted(ctx context.Context, userID, sessionID string, attach bool) (*hostedEngine, error) {
	m.mu.Lock()
	h := m.lookupLocked(userID, sessionID, attach)
	m.mu.Unlock()
	if h != nil {
		return h, nil
	}

	opts := append([]Option{WithLogger(slog.Default().With("user_id", userID, "session_id", sessionID))}, m.opts...)
	engine := New(m.svc, m.storage(userID, sessionID), opts...)
	if err := engine.Restore(ctx); err != nil {
		engine.Close()
		return nil, fmt.Errorf("restore interview for %s/%s: %w", userID, sessionID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing := m.lookupLocked(userID, sessionID, attach); existing != nil {
		engine.Close()
		return existing, nil
	}

	initial := engine.State()
	h = &hostedEngine{
		engine:    engine,
		lastUsed:  m.now(),
		revision:  initial.Revision,
		completed: initial.Settled(),
	}
	if attach {
		h.attached = 1
	}
	h.unsubscribe = engine.Subscribe(func(st State) {
		if h.observe(st) {
			m.notifyComplete(userID, sessionID, st)
		}
	})
	// Restore may have started background work that published before the
	// subscription existed.
	if st := engine.State(); h.observe(st) {
		go m.notifyComplete(userID, sessionID, st)
	}

	if _, ok := m.engines[userID]; !ok {
		m.engines[userID] = make(map[string]*hostedEngine)
	}
	m.engines[userID][sessionID] = h
	slog.Info("Interview engine created", "user_id", userID, "session_id", sessionID, "phase", initial.Phase)
	return h, nil
}

// Len returns the number of hosted engines.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, sessions := range m.engines {
		n += len(sessions)
	}
	return n
}

// CloseUser closes every engine belonging to userID.
func (m *Manager) CloseUser(userID string) {
	m.mu.Lock()
	sessions := m.engines[userID]
	delete(m.engines, userID)
	m.mu.Unlock()

	for sid, h := range sessions {
		h.close()
		slog.Info("Interview engine closed", "user_id", userID, "session_id", sid)
	}
}

// Sweep closes engines idle for longer than idle and returns how many
// were closed. Attached engines are never idle. Persisted snapshots are
// kept, so a later Get restores them.
func (m *Manager) Sweep(idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	var expired []*hostedEngine
	m.mu.Lock()
	for uid, sessions := range m.engines {
		for sid, h := range sessions {
			if h.attached == 0 && h.lastUsed.Before(cutoff) {
				expired = append(expired, h)
				delete(sessions, sid)
			}
		}
		if len(sessions) == 0 {
			delete(m.engines, uid)
		}
	}
	m.mu.Unlock()

	for _, h := range expired {
		h.close()
	}
	return len(expired)
}

// CloseAll closes every hosted engine.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	engines := m.engines
	m.engines = make(map[string]map[string]*hostedEngine)
	m.mu.Unlock()

	for _, sessions := range engines {
		for _, h := range sessions {
			h.close()
		}
	}
}

func (m *Manager) notifyComplete(userID, sessionID string, st State) {
	m.hmu.RLock()
	handlers := append([]CompletionHandler(nil), m.handlers...)
	m.hmu.RUnlock()
	for _, h := range handlers {
		h(userID, sessionID, st)
	}
}

// observe reports whether st is the first settled state of an interview.
// Deliveries older than the last one seen are ignored.
func (h *hostedEngine) observe(st State) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if st.Revision <= h.revision {
		return false
	}
	h.revision = st.Revision
	if st.Phase != domain.PhaseCompleted {
		h.completed = false
		return false
	}
	if h.completed || !st.Settled() {
		return false
	}
	h.completed = true
	return true
}

func (h *hostedEngine) close() {
	h.unsubscribe()
	h.engine.Close()
}

// StartSweeper periodically closes engines idle for longer than ttl until
// ctx is done.
func StartSweeper(ctx context.Context, m *Manager, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Interview sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				if n := m.Sweep(ttl); n > 0 {
					slog.Info("Interview sweeper closed idle engines", "count", n)
				}
			case <-ctx.Done():
				slog.Info("Interview sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
