// Package coach is the interview and career backend behind the REST API.
// It prompts an LLM when one is configured and falls back to a
// deterministic mock otherwise.
package coach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/careermate/internal/domain"
	"github.com/ashureev/careermate/internal/speech"
)

const (
	fallbackQuestion = "Can you tell me more about your experience?"
	fallbackAdvice   = "Sorry, I could not generate a response at this time."
)

// Generator produces a model reply for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Service implements the interview, career and résumé operations.
type Service struct {
	gen Generator
	stt speech.Transcriber
	log *slog.Logger
}

// New creates a service. A nil generator selects the mock provider; a nil
// transcriber disables speech-to-text.
func New(gen Generator, stt speech.Transcriber, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gen: gen, stt: stt, log: logger}
}

// Mock reports whether the service answers without an LLM.
func (s *Service) Mock() bool { return s.gen == nil }

// NextQuestion returns the interviewer's comment on the last answer
// followed by the next question.
func (s *Service) NextQuestion(ctx context.Context, req domain.NextQuestionRequest) (string, error) {
	if s.Mock() {
		return mockQuestion(req), nil
	}

	text, err := s.gen.Generate(ctx, nextQuestionPrompt(req))
	if err != nil {
		return "", fmt.Errorf("generate next question: %w", err)
	}
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(strings.Trim(strings.TrimSpace(l), "- ")); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return fallbackQuestion, nil
	}
	return strings.Join(lines, "\n"), nil
}

// Evaluate scores one answer. When the model reply cannot be parsed the
// score is nil and the reply becomes the feedback.
func (s *Service) Evaluate(ctx context.Context, req domain.EvaluateRequest) (domain.Evaluation, error) {
	if s.Mock() {
		return heuristicEvaluation(req.Answer), nil
	}

	text, err := s.gen.Generate(ctx, evaluatePrompt(req))
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("evaluate answer: %w", err)
	}
	ev := parseEvaluation(text)
	if ev.Score == nil {
		s.log.Debug("Evaluation reply had no usable score", "reply_length", len(text))
	}
	return ev, nil
}

// Report writes the final interview report.
func (s *Service) Report(ctx context.Context, req domain.ReportRequest) (string, error) {
	if s.Mock() {
		return mockReport(req), nil
	}

	text, err := s.gen.Generate(ctx, reportPrompt(req))
	if err != nil {
		return "", fmt.Errorf("generate report: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// CareerAdvice answers a career question in the context of a résumé and
// job description.
func (s *Service) CareerAdvice(ctx context.Context, req domain.CareerRequest) (string, error) {
	if s.Mock() {
		return mockAdvice(req), nil
	}

	text, err := s.gen.Generate(ctx, careerPrompt(req))
	if err != nil {
		return "", fmt.Errorf("generate career advice: %w", err)
	}
	if text = strings.TrimSpace(text); text == "" {
		return fallbackAdvice, nil
	}
	return text, nil
}

// AnalyzeResume returns an ATS-style review of extracted résumé text.
func (s *Service) AnalyzeResume(ctx context.Context, resumeText string) (domain.ResumeAnalysis, error) {
	if strings.TrimSpace(resumeText) == "" {
		return domain.ResumeAnalysis{}, fmt.Errorf("analyze resume: %w: no text could be extracted", domain.ErrMissingPrerequisite)
	}
	if s.Mock() {
		return mockAnalysis(resumeText), nil
	}

	text, err := s.gen.Generate(ctx, analysisPrompt(resumeText))
	if err != nil {
		return domain.ResumeAnalysis{}, fmt.Errorf("analyze resume: %w", err)
	}

	analysis := domain.ResumeAnalysis{ResumeText: resumeText}
	var parsed struct {
		ATSScore     json.Number `json:"atsScore"`
		Feedback     string      `json:"feedback"`
		Strengths    []string    `json:"strengths"`
		Improvements []string    `json:"improvements"`
		Keywords     []string    `json:"keywords"`
	}
	if raw, ok := extractJSON(text); ok && json.Unmarshal([]byte(raw), &parsed) == nil {
		if f, err := parsed.ATSScore.Float64(); err == nil {
			analysis.ATSScore = clampInt(int(f+0.5), 0, 100)
		}
		analysis.Feedback = parsed.Feedback
		analysis.Strengths = parsed.Strengths
		analysis.Improvements = parsed.Improvements
		analysis.Keywords = parsed.Keywords
	} else {
		analysis.Feedback = truncateSentences(strings.TrimSpace(text), 3)
	}
	if analysis.Strengths == nil {
		analysis.Strengths = []string{}
	}
	if analysis.Improvements == nil {
		analysis.Improvements = []string{}
	}
	return analysis, nil
}

// Transcribe converts a spoken clip into text.
func (s *Service) Transcribe(ctx context.Context, audio speech.Audio) (string, error) {
	if s.stt == nil {
		return "", fmt.Errorf("%w: speech recognition is not configured", domain.ErrTranscriptionFailure)
	}
	if len(audio.Data) == 0 {
		return "", errors.New("no audio provided")
	}
	text, err := s.stt.Transcribe(ctx, audio)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return text, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
