package coach

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/ashureev/careermate/internal/domain"
)

var (
	fencedJSON    = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	bareJSON      = regexp.MustCompile(`(?s)(\{.*\})`)
	sentenceBreak = regexp.MustCompile(`([.!?])\s+`)
)

// extractJSON finds a JSON object in a model reply, inside a code fence
// or bare.
func extractJSON(text string) (string, bool) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil && json.Valid([]byte(m[1])) {
		return m[1], true
	}
	if m := bareJSON.FindStringSubmatch(text); m != nil && json.Valid([]byte(m[1])) {
		return m[1], true
	}
	return "", false
}

// truncateSentences keeps the first n sentences of s.
func truncateSentences(s string, n int) string {
	idx := sentenceBreak.FindAllStringIndex(s, -1)
	if len(idx) < n {
		return strings.TrimSpace(s)
	}
	// End after the punctuation of the nth sentence.
	return strings.TrimSpace(s[:idx[n-1][0]+1])
}

// parseEvaluation reads a model's evaluation reply. Anything that is not
// a JSON object with feedback yields a nil score and the raw reply as
// feedback.
func parseEvaluation(text string) domain.Evaluation {
	var parsed struct {
		Score             json.RawMessage `json:"score"`
		Feedback          *string         `json:"feedback"`
		Strengths         []string        `json:"strengths"`
		Improvements      []string        `json:"improvements"`
		FollowUpQuestions []string        `json:"followUpQuestions"`
	}
	raw, ok := extractJSON(text)
	if !ok || json.Unmarshal([]byte(raw), &parsed) != nil || parsed.Feedback == nil {
		return domain.Evaluation{Feedback: truncateSentences(strings.TrimSpace(text), 3)}
	}
	return domain.Evaluation{
		Score:             parseScore(parsed.Score),
		Feedback:          truncateSentences(*parsed.Feedback, 3),
		Strengths:         parsed.Strengths,
		Improvements:      parsed.Improvements,
		FollowUpQuestions: parsed.FollowUpQuestions,
	}
}

// parseScore accepts 7, 7.5, "7" or "7/10". Values outside [0, 10] are
// treated as missing.
func parseScore(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	s := strings.TrimSpace(string(raw))
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, "/10"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v > 10 {
		return nil
	}
	return &v
}
