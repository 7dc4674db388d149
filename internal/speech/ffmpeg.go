package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/careermate/internal/domain"
)

// FFMPEGRecorder streams microphone PCM audio using ffmpeg.
type FFMPEGRecorder struct {
	command    string
	format     string
	device     string
	sampleRate int
	channels   int
}

// NewFFMPEGRecorder creates a recorder. Empty values fall back to ffmpeg
// reading the default PulseAudio source.
func NewFFMPEGRecorder(command, format, device string) *FFMPEGRecorder {
	if command == "" {
		command = "ffmpeg"
	}
	if format == "" {
		format = "pulse"
	}
	if device == "" {
		device = "default"
	}
	return &FFMPEGRecorder{
		command:    command,
		format:     format,
		device:     device,
		sampleRate: DefaultSampleRate,
		channels:   DefaultChannels,
	}
}

// Start launches ffmpeg and returns once it is capturing.
func (r *FFMPEGRecorder) Start(ctx context.Context) (Recording, error) {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", r.format,
		"-i", r.device,
		"-ac", strconv.Itoa(r.channels),
		"-ar", strconv.Itoa(r.sampleRate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, r.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		msg := trimSpaceSafe(stderr.String())
		if deviceUnavailable(msg) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPermissionDenied, msg)
		}
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, msg)
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	return &ffmpegRecording{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

var deviceErrors = []string{
	"permission denied",
	"no such file or directory",
	"no such device",
	"device or resource busy",
	"connection refused",
	"input/output error",
}

func deviceUnavailable(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, marker := range deviceErrors {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

type ffmpegRecording struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegRecording) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

// Stop interrupts ffmpeg so it flushes, then kills it if it lingers.
func (s *ffmpegRecording) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, trimSpaceSafe(s.stderr.String()))
		}
	})

	return s.stopErr
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimSpaceSafe(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
