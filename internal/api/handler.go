// Package api provides HTTP handlers for the CareerMate API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ashureev/careermate/internal/domain"
	"github.com/ashureev/careermate/internal/interview"
	"github.com/ashureev/careermate/internal/speech"
)

const maxJSONBody = 1 << 20

// Coach is the interview backend served over HTTP.
type Coach interface {
	interview.Service
	CareerAdvice(ctx context.Context, req domain.CareerRequest) (string, error)
	AnalyzeResume(ctx context.Context, resumeText string) (domain.ResumeAnalysis, error)
	Transcribe(ctx context.Context, audio speech.Audio) (string, error)
}

// badRequest is a client error whose message is shown verbatim.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

func errBadRequest(format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, domain.ErrorResponse{Error: message})
}

// WriteError maps err to its status code and user-facing message.
func WriteError(w http.ResponseWriter, err error) {
	Error(w, StatusFor(err), errorMessage(err))
}

var stateConflicts = []error{
	interview.ErrNotAcceptingAnswers,
	interview.ErrSubmissionInFlight,
	interview.ErrInvalidPhase,
	interview.ErrNothingToRetry,
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	var bad *badRequest
	switch {
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.As(err, &bad),
		errors.Is(err, domain.ErrMissingPrerequisite),
		errors.Is(err, interview.ErrEmptyInput):
		return http.StatusBadRequest
	case isStateConflict(err):
		return http.StatusConflict
	case errors.Is(err, interview.ErrReportNotReady):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTranscriptionFailure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrMalformedResponse), errors.Is(err, domain.ErrNetworkFailure):
		return http.StatusBadGateway
	case errors.Is(err, interview.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isStateConflict(err error) bool {
	for _, target := range stateConflicts {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func errorMessage(err error) string {
	var bad *badRequest
	if errors.As(err, &bad) {
		return bad.msg
	}
	for _, target := range append(stateConflicts, interview.ErrEmptyInput, interview.ErrReportNotReady, interview.ErrClosed) {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	if StatusFor(err) == http.StatusInternalServerError {
		return "Internal server error"
	}
	return domain.UserMessage(err)
}

// decodeJSON reads a JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errBadRequest("request body is required")
		}
		return errBadRequest("invalid request body")
	}
	return nil
}
