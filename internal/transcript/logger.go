// Package transcript appends interview conversations to per-session NDJSON
// files without blocking the caller.
package transcript

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Config controls where transcripts are written.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Event is one NDJSON record.
type Event struct {
	Timestamp    time.Time `json:"ts"`
	UserID       string    `json:"user_id"`
	SessionID    string    `json:"session_id"`
	EventType    string    `json:"event_type"`
	Sender       string    `json:"sender,omitempty"`
	MessageID    string    `json:"message_id,omitempty"`
	Content      string    `json:"content,omitempty"`
	Questions    int       `json:"questions,omitempty"`
	AverageScore int       `json:"average_score,omitempty"`
}

// Event types.
const (
	EventMessage  = "message"
	EventComplete = "interview_completed"
)

// Logger writes events asynchronously.
type Logger interface {
	Log(event Event)
	Close() error
}

// Nop drops every event.
type Nop struct{}

// Log implements Logger.
func (Nop) Log(Event) {}

// Close implements Logger.
func (Nop) Close() error { return nil }

var unsafePath = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

type fileLogger struct {
	dir    string
	queue  chan Event
	logger *slog.Logger
	done   chan struct{}
	once   sync.Once

	mu     sync.Mutex
	closed bool
}

// New returns Nop when cfg is disabled.
func New(cfg Config, logger *slog.Logger) (Logger, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("transcript dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	l := &fileLogger{
		dir:    cfg.Dir,
		queue:  make(chan Event, size),
		logger: logger,
		done:   make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// Log enqueues an event. It drops the event when the queue is full.
func (l *fileLogger) Log(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- event:
	default:
		l.logger.Warn("Transcript queue full, dropping event",
			"user_id", event.UserID, "session_id", event.SessionID, "event_type", event.EventType)
	}
}

// Close drains the queue and waits for the writer.
func (l *fileLogger) Close() error {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.queue)
		l.mu.Unlock()
	})
	<-l.done
	return nil
}

func (l *fileLogger) run() {
	defer close(l.done)
	for event := range l.queue {
		if err := l.write(event); err != nil {
			l.logger.Warn("Failed to write transcript",
				"user_id", event.UserID, "session_id", event.SessionID, "error", err)
		}
	}
}

func (l *fileLogger) write(event Event) error {
	path := l.pathFor(event.UserID, event.SessionID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	line, err := json.Marshal(event)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (l *fileLogger) pathFor(userID, sessionID string) string {
	return filepath.Join(l.dir, safeName(userID, "anonymous"), safeName(sessionID, "default")+".ndjson")
}

func safeName(s, fallback string) string {
	s = strings.Trim(unsafePath.ReplaceAllString(s, "_"), "_")
	if s == "" {
		return fallback
	}
	return s
}
