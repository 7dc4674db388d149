package domain

import (
	"fmt"
	"math"
	"time"
)

// Phase is the coarse lifecycle state of an interview.
type Phase string

const (
	PhaseAwaitingIntro Phase = "awaiting_intro"
	PhaseNotStarted    Phase = "not_started"
	PhaseInProgress    Phase = "in_progress"
	PhaseCompleted     Phase = "completed"
)

// Role identifies who authored a chat bubble.
type Role string

const (
	RoleBot  Role = "bot"
	RoleUser Role = "user"
)

// Turn is one question/answer unit. Score stays nil until evaluation returns.
type Turn struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Score    *float64 `json:"score,omitempty"`
}

// ChatMessage is one rendered bubble of the conversation.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsTyping  bool      `json:"isTyping"`
	Failed    bool      `json:"failed,omitempty"`
}

// Session is the aggregate interview state owned by a conversation engine.
type Session struct {
	Phase            Phase          `json:"phase"`
	IntroText        string         `json:"introText"`
	CurrentQuestion  string         `json:"currentQuestion"`
	History          []Turn         `json:"history"`
	Messages         []ChatMessage  `json:"messages"`
	WaitingForAnswer bool           `json:"waitingForAnswer"`
	Results          *ReportSummary `json:"results"`
	// ClosingRemark is the interviewer reply to the final answer. It is
	// never displayed and only feeds the report.
	ClosingRemark string `json:"closingRemark,omitempty"`
}

// NewSession returns a session at the start of the intro flow.
func NewSession() Session {
	return Session{
		Phase:    PhaseAwaitingIntro,
		History:  []Turn{},
		Messages: []ChatMessage{},
	}
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s Session) Clone() Session {
	out := s
	out.History = make([]Turn, len(s.History))
	for i, t := range s.History {
		out.History[i] = t.clone()
	}
	out.Messages = append(make([]ChatMessage, 0, len(s.Messages)), s.Messages...)
	if s.Results != nil {
		r := s.Results.Clone()
		out.Results = &r
	}
	return out
}

func (t Turn) clone() Turn {
	if t.Score != nil {
		score := *t.Score
		t.Score = &score
	}
	return t
}

// ReportSummary is the immutable result of a completed interview.
type ReportSummary struct {
	Answers         []Turn    `json:"answers"`
	AverageScore    int       `json:"averageScore"`
	ScoredQuestions int       `json:"scoredQuestions"`
	TotalQuestions  int       `json:"totalQuestions"`
	CompletedAt     time.Time `json:"completedAt"`
	Duration        string    `json:"duration"`
}

// Clone returns a deep copy.
func (r ReportSummary) Clone() ReportSummary {
	answers := make([]Turn, len(r.Answers))
	for i, t := range r.Answers {
		answers[i] = t.clone()
	}
	r.Answers = answers
	return r
}

// NewReportSummary snapshots the turns into a summary.
func NewReportSummary(turns []Turn, messages []ChatMessage, completedAt time.Time) ReportSummary {
	answers := make([]Turn, len(turns))
	scored := 0
	for i, t := range turns {
		answers[i] = t.clone()
		if t.Score != nil {
			scored++
		}
	}
	return ReportSummary{
		Answers:         answers,
		AverageScore:    AverageScore(turns),
		ScoredQuestions: scored,
		TotalQuestions:  len(turns),
		CompletedAt:     completedAt,
		Duration:        EstimateDuration(messages),
	}
}

// AverageScore returns the rounded mean of the recorded scores.
// Turns without a score are excluded from the denominator; with no
// scores at all the average is 0.
func AverageScore(turns []Turn) int {
	var sum float64
	n := 0
	for _, t := range turns {
		if t.Score == nil {
			continue
		}
		sum += *t.Score
		n++
	}
	if n == 0 {
		return 0
	}
	return int(math.Round(sum / float64(n)))
}

// EstimateDuration describes the time between the first and last bubble.
func EstimateDuration(messages []ChatMessage) string {
	if len(messages) < 2 {
		return "under a minute"
	}
	elapsed := messages[len(messages)-1].Timestamp.Sub(messages[0].Timestamp)
	minutes := int(math.Round(elapsed.Minutes()))
	switch {
	case minutes < 1:
		return "under a minute"
	case minutes == 1:
		return "about 1 minute"
	default:
		return fmt.Sprintf("about %d minutes", minutes)
	}
}
