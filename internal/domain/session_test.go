package domain

import (
	"fmt"
	"testing"
	"time"
)

func score(v float64) *float64 { return &v }

func TestAverageScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		turns []Turn
		want  int
	}{
		{"all scored", []Turn{{Score: score(8)}, {Score: score(6)}, {Score: score(10)}}, 8},
		{"missing score excluded", []Turn{{Score: score(8)}, {}}, 8},
		{"no scores", []Turn{{}, {}}, 0},
		{"empty", nil, 0},
		{"rounds half up", []Turn{{Score: score(7)}, {Score: score(8)}}, 8},
		{"fractional", []Turn{{Score: score(6.5)}, {Score: score(7.1)}, {}}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AverageScore(tt.turns); got != tt.want {
				t.Fatalf("AverageScore() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewReportSummaryCopiesTurns(t *testing.T) {
	t.Parallel()

	turns := []Turn{{Question: "q1", Answer: "a1", Score: score(9)}, {Question: "q2", Answer: "a2"}}
	start := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	messages := []ChatMessage{{Timestamp: start}, {Timestamp: start.Add(12 * time.Minute)}}

	summary := NewReportSummary(turns, messages, start.Add(13*time.Minute))
	*turns[0].Score = 1

	if *summary.Answers[0].Score != 9 {
		t.Fatalf("summary shares score pointer with input turns")
	}
	if summary.AverageScore != 9 || summary.ScoredQuestions != 1 || summary.TotalQuestions != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Duration != "about 12 minutes" {
		t.Fatalf("unexpected duration: %q", summary.Duration)
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	t.Parallel()

	s := NewSession()
	s.History = append(s.History, Turn{Question: "q", Score: score(5)})
	s.Messages = append(s.Messages, ChatMessage{ID: "m1", Content: "hi"})

	c := s.Clone()
	*c.History[0].Score = 10
	c.Messages[0].Content = "changed"

	if *s.History[0].Score != 5 {
		t.Fatalf("clone shares turn score")
	}
	if s.Messages[0].Content != "hi" {
		t.Fatalf("clone shares messages")
	}
}

func TestUserMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("next question: %w", ErrQuotaExceeded), MsgQuotaExceeded},
		{fmt.Errorf("wrap: %w", ErrMissingPrerequisite), MsgMissingPrerequisite},
		{ErrPermissionDenied, MsgPermissionDenied},
		{ErrTranscriptionFailure, MsgTranscriptionFailure},
		{ErrMalformedResponse, MsgMalformedResponse},
		{ErrNetworkFailure, MsgNetworkFailure},
		{fmt.Errorf("boom"), MsgGenericFailure},
	}
	for _, tt := range tests {
		if got := UserMessage(tt.err); got != tt.want {
			t.Errorf("UserMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
