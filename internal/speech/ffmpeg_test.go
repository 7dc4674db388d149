package speech

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/careermate/internal/domain"
)

func TestFFMPEGRecorderStartReadAndStop(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nprintf 'hello'\nsleep 2\n")
	rec := NewFFMPEGRecorder(script, "", "")

	recording, err := rec.Start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	buf := make([]byte, 8)
	n, readErr := recording.Read(buf)
	if n <= 0 {
		t.Fatalf("expected audio bytes, got n=%d err=%v", n, readErr)
	}
	if !strings.Contains(string(buf[:n]), "hello") {
		t.Fatalf("unexpected bytes: %q", string(buf[:n]))
	}

	if err := recording.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestFFMPEGRecorderEarlyExit(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'boom' 1>&2\nexit 1\n")
	rec := NewFFMPEGRecorder(script, "", "")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := rec.Start(ctx)
	if err == nil {
		t.Fatalf("expected early exit error")
	}
	if !strings.Contains(err.Error(), "exited before capture started") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFFMPEGRecorderDeniedDevice(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "denied.sh", "#!/usr/bin/env bash\necho 'default: Permission denied' 1>&2\nexit 1\n")
	_, err := NewFFMPEGRecorder(script, "alsa", "default").Start(context.Background())
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestNormalizeStopErrExitErrorIsIgnored(t *testing.T) {
	t.Parallel()

	err := exec.Command("bash", "-lc", "exit 1").Run()
	if err == nil {
		t.Fatalf("expected command to fail")
	}
	if got := normalizeStopErr(err); got != nil {
		t.Fatalf("expected nil for exit error, got %v", got)
	}
}

func TestCommandTranscriber(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "whisper.sh", "#!/usr/bin/env bash\ntest -s \"$2\" || exit 3\nprintf '  I built\\n  the pipeline.\\n'\n")
	tr, err := NewCommandTranscriber(script + " -f {file}")
	if err != nil {
		t.Fatalf("NewCommandTranscriber failed: %v", err)
	}

	text, err := tr.Transcribe(context.Background(), Audio{Data: EncodeWAV([]byte{1, 2}, 0, 0)})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "I built the pipeline." {
		t.Fatalf("text = %q", text)
	}

	if _, err := NewCommandTranscriber("   "); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestCommandTranscriberFailure(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "broken.sh", "#!/usr/bin/env bash\necho 'model missing' 1>&2\nexit 2\n")
	tr, err := NewCommandTranscriber(script)
	if err != nil {
		t.Fatalf("NewCommandTranscriber failed: %v", err)
	}
	_, err = tr.Transcribe(context.Background(), Audio{Data: []byte{0}})
	if err == nil || !strings.Contains(err.Error(), "model missing") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}
