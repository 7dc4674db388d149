package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/careermate/internal/archive"
	"github.com/ashureev/careermate/internal/domain"
	"github.com/ashureev/careermate/internal/identity"
	"github.com/ashureev/careermate/internal/interview"
	"github.com/ashureev/careermate/internal/resume"
	"github.com/ashureev/careermate/internal/speech"
	"github.com/ashureev/careermate/internal/store"
	"github.com/go-chi/chi/v5"
)

// DefaultUploadLimit is the résumé size limit.
const DefaultUploadLimit = 5 << 20

const (
	audioLimit     = 25 << 20
	archiveTimeout = 30 * time.Second
)

// BackendHandler serves the stateless interview backend endpoints.
type BackendHandler struct {
	coach       Coach
	kv          store.KV
	archive     archive.Archive
	uploadLimit int64
	logger      *slog.Logger
}

// BackendOption configures a BackendHandler.
type BackendOption func(*BackendHandler)

// WithArchive stores every uploaded résumé in a.
func WithArchive(a archive.Archive) BackendOption {
	return func(h *BackendHandler) { h.archive = a }
}

// WithUploadLimit overrides the résumé size limit.
func WithUploadLimit(n int64) BackendOption {
	return func(h *BackendHandler) {
		if n > 0 {
			h.uploadLimit = n
		}
	}
}

// NewBackendHandler creates the handler. kv receives the extracted résumé
// text under the caller's scope.
func NewBackendHandler(coach Coach, kv store.KV, logger *slog.Logger, opts ...BackendOption) *BackendHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &BackendHandler{
		coach:       coach,
		kv:          kv,
		archive:     archive.Nop{},
		uploadLimit: DefaultUploadLimit,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers the backend routes.
func (h *BackendHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/interview/next-question", h.NextQuestion)
	r.Post("/api/interview/evaluate", h.Evaluate)
	r.Post("/api/interview/report", h.Report)
	r.Post("/api/speech-to-text", h.SpeechToText)
	r.Post("/api/analyze-resume", h.AnalyzeResume)
	r.Post("/api/career-assistant", h.CareerAssistant)
}

// NextQuestion returns the interviewer's next comment and question.
func (h *BackendHandler) NextQuestion(w http.ResponseWriter, r *http.Request) {
	var req domain.NextQuestionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if req.ChatHistory == nil {
		req.ChatHistory = []domain.Turn{}
	}
	question, err := h.coach.NextQuestion(r.Context(), req)
	if err != nil {
		h.fail(w, r, "next question", err)
		return
	}
	JSON(w, http.StatusOK, domain.NextQuestionResponse{Question: question})
}

// Evaluate scores one answer.
func (h *BackendHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req domain.EvaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Answer) == "" {
		Error(w, http.StatusBadRequest, "question and answer are required")
		return
	}
	ev, err := h.coach.Evaluate(r.Context(), req)
	if err != nil {
		h.fail(w, r, "evaluate", err)
		return
	}
	JSON(w, http.StatusOK, ev)
}

// Report generates the final interview report.
func (h *BackendHandler) Report(w http.ResponseWriter, r *http.Request) {
	var req domain.ReportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if len(req.InterviewData) == 0 {
		Error(w, http.StatusBadRequest, "interviewData is required")
		return
	}
	report, err := h.coach.Report(r.Context(), req)
	if err != nil {
		h.fail(w, r, "report", err)
		return
	}
	JSON(w, http.StatusOK, domain.ReportResponse{Report: report})
}

// CareerAssistant answers a free-form career question.
func (h *BackendHandler) CareerAssistant(w http.ResponseWriter, r *http.Request) {
	var req domain.CareerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}
	reply, err := h.coach.CareerAdvice(r.Context(), req)
	if err != nil {
		h.fail(w, r, "career assistant", err)
		return
	}
	JSON(w, http.StatusOK, domain.CareerResponse{Response: reply})
}

// SpeechToText transcribes an uploaded audio clip.
func (h *BackendHandler) SpeechToText(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r, "audio", audioLimit, "Audio file too large.")
	if err != nil {
		JSON(w, StatusFor(err), domain.SpeechResponse{Success: false, Error: errorMessage(err)})
		return
	}
	text, err := h.coach.Transcribe(r.Context(), speech.Audio{Data: up.Data, MimeType: up.MimeType, Filename: up.Filename})
	if err == nil && strings.TrimSpace(text) == "" {
		err = domain.ErrTranscriptionFailure
	}
	if err != nil {
		h.logger.Warn("Speech transcription failed", "error", err, "bytes", len(up.Data))
		JSON(w, StatusFor(err), domain.SpeechResponse{Success: false, Error: domain.UserMessage(err)})
		return
	}
	JSON(w, http.StatusOK, domain.SpeechResponse{Success: true, Text: strings.TrimSpace(text)})
}

// AnalyzeResume extracts, archives and scores an uploaded résumé. The
// extracted text becomes the caller's interview résumé.
func (h *BackendHandler) AnalyzeResume(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r, "resume", h.uploadLimit, msgFileTooLarge)
	if err != nil {
		WriteError(w, err)
		return
	}

	mime := resume.DetectMime(up.Filename, up.MimeType, up.Data)
	text, err := resume.ExtractText(mime, up.Data)
	if errors.Is(err, resume.ErrUnsupportedType) {
		Error(w, http.StatusBadRequest, msgFileTypeInvalid)
		return
	}
	if err != nil {
		h.logger.Warn("Resume extraction failed", "error", err, "mime", mime)
		Error(w, http.StatusBadRequest, "Could not read the uploaded resume.")
		return
	}
	if text == "" {
		Error(w, http.StatusBadRequest, "No text could be extracted from the resume.")
		return
	}

	h.archiveUpload(r.Context(), up, mime)

	analysis, err := h.coach.AnalyzeResume(r.Context(), text)
	if err != nil {
		h.fail(w, r, "analyze resume", err)
		return
	}

	userID := identity.UserIDFromContext(r.Context())
	if userID != "" && h.kv != nil {
		scoped := store.Scoped(h.kv, userID, identity.SessionIDFromContext(r.Context()))
		if err := scoped.Set(r.Context(), interview.KeyResumeText, text); err != nil {
			h.logger.Error("Failed to store resume text", "error", err, "user_id", userID)
			Error(w, http.StatusInternalServerError, "Internal server error")
			return
		}
	}
	JSON(w, http.StatusOK, analysis)
}

func (h *BackendHandler) archiveUpload(ctx context.Context, up upload, mime string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()
	location, err := h.archive.Put(ctx, up.Filename, up.Data, mime)
	if err != nil {
		h.logger.Warn("Failed to archive resume upload", "error", err, "filename", up.Filename)
		return
	}
	if location != "" {
		h.logger.Info("Resume upload archived", "location", location, "bytes", len(up.Data))
	}
}

func (h *BackendHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error("Backend request failed", "op", op, "error", err,
		"user_id", identity.UserIDFromContext(r.Context()))
	WriteError(w, err)
}
