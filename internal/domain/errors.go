package domain

import "errors"

// Error taxonomy shared by the engine, the speech adapter and the remote
// service client. Callers classify with errors.Is.
var (
	// ErrMissingPrerequisite means no résumé text is available.
	ErrMissingPrerequisite = errors.New("missing prerequisite")
	// ErrNetworkFailure is a generic transport or backend failure.
	ErrNetworkFailure = errors.New("network failure")
	// ErrQuotaExceeded is an HTTP 429 from the LLM-backed service.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrPermissionDenied means microphone access was refused.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrTranscriptionFailure means every speech recognizer failed.
	ErrTranscriptionFailure = errors.New("transcription failure")
	// ErrMalformedResponse means a payload was missing an expected field.
	ErrMalformedResponse = errors.New("malformed response")
)

// User-facing messages for the taxonomy.
const (
	MsgMissingPrerequisite  = "Please upload and analyze your resume before starting the interview."
	MsgQuotaExceeded        = "AI service quota exceeded. Please try again later or upgrade your plan."
	MsgNetworkFailure       = "Error connecting to the backend. Please try again later."
	MsgPermissionDenied     = "Microphone access denied. Please allow microphone access and try again."
	MsgTranscriptionFailure = "Speech recognition failed. Please try again or type your answer."
	MsgMalformedResponse    = "The interview service returned an unexpected response."
	MsgGenericFailure       = "Something went wrong. Please try again."
)

// UserMessage returns the message shown to the user for err.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrQuotaExceeded):
		return MsgQuotaExceeded
	case errors.Is(err, ErrMissingPrerequisite):
		return MsgMissingPrerequisite
	case errors.Is(err, ErrPermissionDenied):
		return MsgPermissionDenied
	case errors.Is(err, ErrTranscriptionFailure):
		return MsgTranscriptionFailure
	case errors.Is(err, ErrMalformedResponse):
		return MsgMalformedResponse
	case errors.Is(err, ErrNetworkFailure):
		return MsgNetworkFailure
	default:
		return MsgGenericFailure
	}
}
