package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// FilePlaceholder is replaced by the clip path in a recognizer command line.
const FilePlaceholder = "{file}"

// CommandTranscriber runs a local speech recognizer, such as whisper.cpp,
// over a temporary WAV file and reads the transcript from stdout.
type CommandTranscriber struct {
	command string
	args    []string
}

// NewCommandTranscriber parses a command line like
// "whisper-cli -m model.bin -nt -f {file}". Without a placeholder the
// file path is appended.
func NewCommandTranscriber(commandLine string) (*CommandTranscriber, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, errors.New("recognizer command is empty")
	}
	args := fields[1:]
	hasPlaceholder := false
	for _, a := range args {
		if strings.Contains(a, FilePlaceholder) {
			hasPlaceholder = true
			break
		}
	}
	if !hasPlaceholder {
		args = append(args, FilePlaceholder)
	}
	return &CommandTranscriber{command: fields[0], args: args}, nil
}

// Transcribe implements Transcriber.
func (t *CommandTranscriber) Transcribe(ctx context.Context, audio Audio) (string, error) {
	f, err := os.CreateTemp("", "careermate-*.wav")
	if err != nil {
		return "", fmt.Errorf("create temp audio file: %w", err)
	}
	path := f.Name()
	defer func() { _ = os.Remove(path) }()

	if _, err := f.Write(audio.Data); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write temp audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp audio file: %w", err)
	}

	args := make([]string, len(t.args))
	for i, a := range t.args {
		args[i] = strings.ReplaceAll(a, FilePlaceholder, path)
	}

	cmd := exec.CommandContext(ctx, t.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("recognizer %s failed: %w: %s", t.command, err, trimSpaceSafe(stderr.String()))
	}

	text := strings.Join(strings.Fields(string(out)), " ")
	if text == "" {
		return "", errors.New("recognizer produced no text")
	}
	return text, nil
}
