package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/ashureev/careermate/internal/domain"
)

// fakeRecording yields its data, then blocks until stopped.
type fakeRecording struct {
	data    *bytes.Reader
	stopped chan struct{}
	once    sync.Once
}

func newFakeRecording(pcm []byte) *fakeRecording {
	return &fakeRecording{data: bytes.NewReader(pcm), stopped: make(chan struct{})}
}

func (r *fakeRecording) Read(p []byte) (int, error) {
	if r.data.Len() > 0 {
		return r.data.Read(p)
	}
	<-r.stopped
	return 0, io.EOF
}

func (r *fakeRecording) Stop() error {
	r.once.Do(func() { close(r.stopped) })
	return nil
}

type fakeRecorder struct {
	pcm  []byte
	err  error
	last *fakeRecording
}

func (r *fakeRecorder) Start(context.Context) (Recording, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.last = newFakeRecording(r.pcm)
	return r.last, nil
}

type recordingSubmitter struct {
	mu   sync.Mutex
	got  []string
	fail error
}

func (s *recordingSubmitter) AutoSubmit(_ context.Context, transcript string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, transcript)
	return s.fail
}

func staticTranscriber(text string, err error) Transcriber {
	return TranscriberFunc(func(context.Context, Audio) (string, error) { return text, err })
}

func TestCaptureSubmitsTranscript(t *testing.T) {
	t.Parallel()

	var gotAudio Audio
	stt := TranscriberFunc(func(_ context.Context, a Audio) (string, error) {
		gotAudio = a
		return "  I led the migration.  ", nil
	})
	sub := &recordingSubmitter{}
	c := NewCapture(&fakeRecorder{pcm: []byte{1, 2, 3, 4}}, stt, sub)
	ctx := context.Background()

	if err := c.Begin(ctx); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if c.Status() != StatusRecording {
		t.Fatalf("status = %s, want recording", c.Status())
	}
	if err := c.Begin(ctx); !errors.Is(err, ErrCaptureBusy) {
		t.Fatalf("second Begin = %v, want ErrCaptureBusy", err)
	}

	text, err := c.End(ctx)
	if err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if text != "I led the migration." {
		t.Fatalf("transcript = %q", text)
	}
	if len(sub.got) != 1 || sub.got[0] != text {
		t.Fatalf("submitted = %v", sub.got)
	}
	if gotAudio.MimeType != "audio/wav" || len(gotAudio.Data) != 44+4 {
		t.Fatalf("unexpected audio payload: %s %d bytes", gotAudio.MimeType, len(gotAudio.Data))
	}
	if c.Status() != StatusIdle {
		t.Fatalf("status after End = %s, want idle", c.Status())
	}
}

func TestCaptureMapsDeniedMicrophone(t *testing.T) {
	t.Parallel()

	c := NewCapture(&fakeRecorder{err: fmt.Errorf("open /dev/snd: %w", os.ErrPermission)}, staticTranscriber("x", nil), nil)
	if err := c.Begin(context.Background()); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("Begin = %v, want ErrPermissionDenied", err)
	}

	c = NewCapture(&fakeRecorder{err: domain.ErrPermissionDenied}, staticTranscriber("x", nil), nil)
	err := c.Begin(context.Background())
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("Begin = %v, want ErrPermissionDenied", err)
	}
	if domain.UserMessage(err) != domain.MsgPermissionDenied {
		t.Fatalf("unexpected user message: %q", domain.UserMessage(err))
	}
	if c.Status() != StatusIdle {
		t.Fatal("failed Begin must leave the capture idle")
	}
}

func TestCaptureTranscriptionFailureLeavesSessionAlone(t *testing.T) {
	t.Parallel()

	sub := &recordingSubmitter{}
	stt := Chain(staticTranscriber("", errors.New("remote down")), staticTranscriber("", nil))
	c := NewCapture(&fakeRecorder{pcm: []byte{1, 2}}, stt, sub)

	if err := c.Begin(context.Background()); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	_, err := c.End(context.Background())
	if !errors.Is(err, domain.ErrTranscriptionFailure) {
		t.Fatalf("End = %v, want ErrTranscriptionFailure", err)
	}
	if len(sub.got) != 0 {
		t.Fatal("nothing should be submitted on failure")
	}
	if c.Status() != StatusIdle {
		t.Fatal("capture should return to idle")
	}
}

func TestCaptureObserveAbortsRecording(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{pcm: []byte{1, 2}}
	sub := &recordingSubmitter{}
	c := NewCapture(rec, staticTranscriber("hello", nil), sub)

	if err := c.Begin(context.Background()); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	c.Observe(true)
	if c.Status() != StatusRecording {
		t.Fatal("Observe(true) must not stop the recording")
	}
	c.Observe(false)
	if c.Status() != StatusIdle {
		t.Fatalf("status = %s, want idle", c.Status())
	}
	select {
	case <-rec.last.stopped:
	default:
		t.Fatal("recorder should be stopped")
	}
	if _, err := c.End(context.Background()); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("End after abort = %v, want ErrNotRecording", err)
	}
	if len(sub.got) != 0 {
		t.Fatal("aborted recording must not submit")
	}
}

func TestChainFallsBack(t *testing.T) {
	t.Parallel()

	var calls []string
	primary := TranscriberFunc(func(context.Context, Audio) (string, error) {
		calls = append(calls, "primary")
		return "", errors.New("quota")
	})
	fallback := TranscriberFunc(func(context.Context, Audio) (string, error) {
		calls = append(calls, "fallback")
		return "local text", nil
	})

	text, err := Chain(primary, nil, fallback).Transcribe(context.Background(), Audio{})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "local text" || len(calls) != 2 {
		t.Fatalf("text=%q calls=%v", text, calls)
	}

	if _, err := Chain(nil).Transcribe(context.Background(), Audio{}); !errors.Is(err, domain.ErrTranscriptionFailure) {
		t.Fatalf("empty chain = %v, want ErrTranscriptionFailure", err)
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	t.Parallel()

	wav := EncodeWAV(make([]byte, 32000), 16000, 1)
	if len(wav) != 44+32000 {
		t.Fatalf("len = %d", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Fatalf("bad header: %q", wav[:44])
	}
	// byte rate = 16000 * 2
	if got := uint32(wav[28]) | uint32(wav[29])<<8 | uint32(wav[30])<<16 | uint32(wav[31])<<24; got != 32000 {
		t.Fatalf("byte rate = %d", got)
	}
}
