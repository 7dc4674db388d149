// Package speech turns a spoken answer into an interview submission:
// microphone capture, WAV framing, transcription with fallback, and
// hand-off to the conversation engine.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/ashureev/careermate/internal/domain"
)

// Recorder opens the microphone.
type Recorder interface {
	Start(ctx context.Context) (Recording, error)
}

// Recording is a live PCM stream. Stop ends it and releases the device.
type Recording interface {
	io.Reader
	Stop() error
}

// Audio is an encoded clip handed to a transcriber.
type Audio struct {
	Data     []byte
	MimeType string
	Filename string
}

// Transcriber converts audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (string, error)
}

// TranscriberFunc adapts a function to Transcriber.
type TranscriberFunc func(ctx context.Context, audio Audio) (string, error)

// Transcribe calls f.
func (f TranscriberFunc) Transcribe(ctx context.Context, audio Audio) (string, error) {
	return f(ctx, audio)
}

// Submitter receives the final transcript.
type Submitter interface {
	AutoSubmit(ctx context.Context, transcript string) error
}

// Status is the capture controller state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusRecording  Status = "recording"
	StatusProcessing Status = "processing"
)

var (
	// ErrCaptureBusy is returned by Begin while a capture is active.
	ErrCaptureBusy = errors.New("capture already in progress")
	// ErrNotRecording is returned by End when nothing is being recorded.
	ErrNotRecording = errors.New("not recording")
)

// CaptureOption configures a Capture.
type CaptureOption func(*Capture)

// WithFormat sets the PCM format the recorder produces.
func WithFormat(sampleRate, channels int) CaptureOption {
	return func(c *Capture) {
		c.sampleRate = sampleRate
		c.channels = channels
	}
}

// WithCaptureLogger sets the logger.
func WithCaptureLogger(logger *slog.Logger) CaptureOption {
	return func(c *Capture) { c.log = logger }
}

// Capture owns the microphone for one session. Only one recording can be
// active at a time: idle → recording → processing → idle.
type Capture struct {
	rec        Recorder
	stt        Transcriber
	sub        Submitter
	log        *slog.Logger
	sampleRate int
	channels   int

	mu        sync.Mutex
	status    Status
	recording Recording
	buf       *bytes.Buffer
	pumpDone  chan struct{}
	cancel    context.CancelFunc
}

// NewCapture creates an idle capture controller.
func NewCapture(rec Recorder, stt Transcriber, sub Submitter, opts ...CaptureOption) *Capture {
	c := &Capture{
		rec:        rec,
		stt:        stt,
		sub:        sub,
		log:        slog.Default(),
		sampleRate: DefaultSampleRate,
		channels:   DefaultChannels,
		status:     StatusIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status returns the current capture state.
func (c *Capture) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Begin starts recording.
func (c *Capture) Begin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusIdle {
		return ErrCaptureBusy
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	recCtx, cancel := context.WithCancel(context.Background())
	recording, err := c.rec.Start(recCtx)
	if err != nil {
		cancel()
		if errors.Is(err, os.ErrPermission) && !errors.Is(err, domain.ErrPermissionDenied) {
			err = fmt.Errorf("%w: %w", domain.ErrPermissionDenied, err)
		}
		return fmt.Errorf("start recording: %w", err)
	}

	buf := &bytes.Buffer{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := io.Copy(buf, recording); err != nil {
			c.log.Debug("Audio pump stopped", "error", err)
		}
	}()

	c.status = StatusRecording
	c.recording = recording
	c.buf = buf
	c.pumpDone = done
	c.cancel = cancel
	c.log.Info("Recording started")
	return nil
}

// End stops recording, transcribes the clip and submits a non-empty
// transcript. The transcript is returned even when submission fails.
func (c *Capture) End(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.status != StatusRecording {
		c.mu.Unlock()
		return "", ErrNotRecording
	}
	c.status = StatusProcessing
	recording, buf, done, cancel := c.recording, c.buf, c.pumpDone, c.cancel
	c.recording, c.buf, c.pumpDone, c.cancel = nil, nil, nil, nil
	c.mu.Unlock()

	defer c.setIdle()

	if err := recording.Stop(); err != nil {
		c.log.Warn("Recorder stop failed", "error", err)
	}
	<-done
	cancel()

	pcm := buf.Bytes()
	if len(pcm) == 0 {
		return "", fmt.Errorf("%w: no audio captured", domain.ErrTranscriptionFailure)
	}
	c.log.Info("Recording stopped", "bytes", len(pcm))

	text, err := c.stt.Transcribe(ctx, Audio{
		Data:     EncodeWAV(pcm, c.sampleRate, c.channels),
		MimeType: "audio/wav",
		Filename: "recording.wav",
	})
	if err != nil {
		if !errors.Is(err, domain.ErrTranscriptionFailure) {
			err = fmt.Errorf("%w: %w", domain.ErrTranscriptionFailure, err)
		}
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty transcript", domain.ErrTranscriptionFailure)
	}

	if c.sub != nil {
		if err := c.sub.AutoSubmit(ctx, text); err != nil {
			return text, fmt.Errorf("submit transcript: %w", err)
		}
	}
	return text, nil
}

// Abort discards an active recording.
func (c *Capture) Abort() {
	c.mu.Lock()
	if c.status != StatusRecording {
		c.mu.Unlock()
		return
	}
	recording, done, cancel := c.recording, c.pumpDone, c.cancel
	c.recording, c.buf, c.pumpDone, c.cancel = nil, nil, nil, nil
	c.status = StatusIdle
	c.mu.Unlock()

	if err := recording.Stop(); err != nil {
		c.log.Debug("Recorder stop failed during abort", "error", err)
	}
	<-done
	cancel()
	c.log.Info("Recording discarded")
}

// Observe force-stops an active recording once the session is no longer
// waiting for an answer.
func (c *Capture) Observe(waitingForAnswer bool) {
	if !waitingForAnswer {
		c.Abort()
	}
}

// Close releases the microphone.
func (c *Capture) Close() {
	c.Abort()
}

func (c *Capture) setIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusIdle
}

// Chain returns a transcriber that tries primary, then each fallback in
// order, until one produces a non-empty transcript.
func Chain(primary Transcriber, fallbacks ...Transcriber) Transcriber {
	all := make([]Transcriber, 0, 1+len(fallbacks))
	for _, t := range append([]Transcriber{primary}, fallbacks...) {
		if t != nil {
			all = append(all, t)
		}
	}
	return chain(all)
}

type chain []Transcriber

func (ch chain) Transcribe(ctx context.Context, audio Audio) (string, error) {
	var errs []error
	for i, t := range ch {
		text, err := t.Transcribe(ctx, audio)
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text), nil
		}
		if err == nil {
			err = errors.New("empty transcript")
		}
		errs = append(errs, fmt.Errorf("recognizer %d: %w", i+1, err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("%w: no recognizer configured", domain.ErrTranscriptionFailure)
	}
	return "", fmt.Errorf("%w: %w", domain.ErrTranscriptionFailure, errors.Join(errs...))
}
