package interview

import (
	"errors"
	"testing"
	"time"

	"github.com/ashureev/careermate/internal/domain"
)

func boolPtr(b bool) *bool { return &b }

func TestSnapshotSessionPhase(t *testing.T) {
	t.Parallel()

	turn := []domain.Turn{{Question: "Q1", Answer: "a"}}
	tests := []struct {
		name string
		snap Snapshot
		want domain.Phase
	}{
		{"empty snapshot shows intro", Snapshot{}, domain.PhaseAwaitingIntro},
		{"intro dismissed", Snapshot{ShowIntroPrompt: boolPtr(false)}, domain.PhaseNotStarted},
		{"started", Snapshot{InterviewStarted: true, ShowIntroPrompt: boolPtr(true)}, domain.PhaseInProgress},
		{"history implies started", Snapshot{ChatHistory: turn, ShowIntroPrompt: boolPtr(true)}, domain.PhaseInProgress},
		{"completed", Snapshot{InterviewStarted: true, InterviewCompleted: true}, domain.PhaseCompleted},
		{"completed flag without progress", Snapshot{InterviewCompleted: true}, domain.PhaseAwaitingIntro},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.snap.Session()
			if got.Phase != tt.want {
				t.Fatalf("phase = %s, want %s", got.Phase, tt.want)
			}
			if got.History == nil || got.Messages == nil {
				t.Fatal("restored slices must be non-nil")
			}
		})
	}
}

func TestSnapshotClearsWaitingOutsideInterview(t *testing.T) {
	t.Parallel()

	s := Snapshot{InterviewStarted: true, InterviewCompleted: true, WaitingForAnswer: true}.Session()
	if s.WaitingForAnswer {
		t.Fatal("completed session must not wait for an answer")
	}
}

func TestDecodeSnapshotVersions(t *testing.T) {
	t.Parallel()

	snap, err := DecodeSnapshot(`{"interviewStarted":true,"currentQuestion":"Q1"}`)
	if err != nil {
		t.Fatalf("unversioned snapshot should decode: %v", err)
	}
	if snap.Version != SnapshotVersion || snap.CurrentQuestion != "Q1" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	if _, err := DecodeSnapshot(`{"version":2}`); !errors.Is(err, errIncompatibleSnapshot) {
		t.Fatalf("expected incompatible version error, got %v", err)
	}
	if _, err := DecodeSnapshot(`{not json`); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestEncodeSnapshotIsStable(t *testing.T) {
	t.Parallel()

	score := 8.0
	session := domain.Session{
		Phase:           domain.PhaseInProgress,
		IntroText:       "Hello",
		CurrentQuestion: "Q2",
		History:         []domain.Turn{{Question: "Q1", Answer: "a", Score: &score}},
		Messages: []domain.ChatMessage{
			{ID: "m1", Role: domain.RoleBot, Content: "Q1", Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC)},
		},
		WaitingForAnswer: true,
	}

	raw, err := encodeSnapshot(session)
	if err != nil {
		t.Fatalf("encodeSnapshot failed: %v", err)
	}
	snap, err := DecodeSnapshot(raw)
	if err != nil {
		t.Fatalf("DecodeSnapshot failed: %v", err)
	}
	again, err := encodeSnapshot(snap.Session())
	if err != nil {
		t.Fatalf("encodeSnapshot failed: %v", err)
	}
	if again != raw {
		t.Fatalf("snapshot not stable:\n got: %s\nwant: %s", again, raw)
	}
}
