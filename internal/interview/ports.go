// Package interview implements the interview conversation engine: the
// intro → six question/answer turns → completion state machine, its
// persistence protocol, and hosting of one engine per browser tab.
package interview

import (
	"context"
	"errors"

	"github.com/ashureev/careermate/internal/domain"
)

// Service is the remote interview backend the engine talks to.
type Service interface {
	NextQuestion(ctx context.Context, req domain.NextQuestionRequest) (string, error)
	Evaluate(ctx context.Context, req domain.EvaluateRequest) (domain.Evaluation, error)
	Report(ctx context.Context, req domain.ReportRequest) (string, error)
}

// Storage is the persistence port: a key/value store scoped to one session.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Well-known storage keys.
const (
	KeySnapshot   = "interviewState"
	KeyResumeText = "resumeText"
	KeyReport     = "interviewReport"
	KeyResults    = "interviewResults"
)

// Engine state errors. None of them change the session.
var (
	ErrEmptyInput          = errors.New("input is empty")
	ErrInvalidPhase        = errors.New("action not allowed in the current phase")
	ErrNotAcceptingAnswers = errors.New("not waiting for an answer")
	ErrSubmissionInFlight  = errors.New("another submission is in flight")
	ErrNothingToRetry      = errors.New("nothing to retry")
	ErrReportNotReady      = errors.New("report not ready")
	ErrClosed              = errors.New("interview engine closed")
)
