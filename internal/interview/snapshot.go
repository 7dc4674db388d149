package interview

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ashureev/careermate/internal/domain"
)

// SnapshotVersion is the schema version written with every snapshot.
const SnapshotVersion = 1

var errIncompatibleSnapshot = errors.New("incompatible snapshot version")

// Snapshot is the persisted form of a session. Phase is stored as the
// flags the restore protocol reads.
type Snapshot struct {
	Version            int                   `json:"version"`
	ShowIntroPrompt    *bool                 `json:"showIntroPrompt,omitempty"`
	InterviewStarted   bool                  `json:"interviewStarted"`
	InterviewCompleted bool                  `json:"interviewCompleted"`
	UserIntro          string                `json:"userIntro"`
	CurrentQuestion    string                `json:"currentQuestion"`
	ChatHistory        []domain.Turn         `json:"chatHistory"`
	ChatMessages       []domain.ChatMessage  `json:"chatMessages"`
	WaitingForAnswer   bool                  `json:"waitingForAnswer"`
	InterviewResults   *domain.ReportSummary `json:"interviewResults"`
	ClosingRemark      string                `json:"closingRemark,omitempty"`
}

func snapshotOf(s domain.Session) Snapshot {
	showIntro := s.Phase == domain.PhaseAwaitingIntro
	history := s.History
	if history == nil {
		history = []domain.Turn{}
	}
	messages := s.Messages
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	return Snapshot{
		Version:            SnapshotVersion,
		ShowIntroPrompt:    &showIntro,
		InterviewStarted:   s.Phase == domain.PhaseInProgress || s.Phase == domain.PhaseCompleted,
		InterviewCompleted: s.Phase == domain.PhaseCompleted,
		UserIntro:          s.IntroText,
		CurrentQuestion:    s.CurrentQuestion,
		ChatHistory:        history,
		ChatMessages:       messages,
		WaitingForAnswer:   s.WaitingForAnswer,
		InterviewResults:   s.Results,
		ClosingRemark:      s.ClosingRemark,
	}
}

// Session reconstructs the session. A started interview or any history
// skips the intro regardless of the persisted intro flag; otherwise the
// flag is honored and defaults to true.
func (snap Snapshot) Session() domain.Session {
	s := domain.Session{
		IntroText:        snap.UserIntro,
		CurrentQuestion:  snap.CurrentQuestion,
		History:          snap.ChatHistory,
		Messages:         snap.ChatMessages,
		WaitingForAnswer: snap.WaitingForAnswer,
		Results:          snap.InterviewResults,
		ClosingRemark:    snap.ClosingRemark,
	}
	if s.History == nil {
		s.History = []domain.Turn{}
	}
	if s.Messages == nil {
		s.Messages = []domain.ChatMessage{}
	}

	hasProgress := snap.InterviewStarted || len(snap.ChatHistory) > 0
	switch {
	case hasProgress && snap.InterviewCompleted:
		s.Phase = domain.PhaseCompleted
	case hasProgress:
		s.Phase = domain.PhaseInProgress
	case snap.ShowIntroPrompt == nil || *snap.ShowIntroPrompt:
		s.Phase = domain.PhaseAwaitingIntro
	default:
		s.Phase = domain.PhaseNotStarted
	}
	if s.Phase != domain.PhaseInProgress {
		s.WaitingForAnswer = false
	}
	return s
}

func encodeSnapshot(s domain.Session) (string, error) {
	data, err := json.Marshal(snapshotOf(s))
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return string(data), nil
}

// DecodeSnapshot parses a persisted snapshot. Snapshots without a version
// are read as version 1; newer versions are rejected.
func DecodeSnapshot(raw string) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version == 0 {
		snap.Version = SnapshotVersion
	}
	if snap.Version > SnapshotVersion {
		return Snapshot{}, fmt.Errorf("%w: %d", errIncompatibleSnapshot, snap.Version)
	}
	return snap, nil
}
