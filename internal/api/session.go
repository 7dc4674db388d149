package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/careermate/internal/domain"
	"github.com/ashureev/careermate/internal/identity"
	"github.com/ashureev/careermate/internal/interview"
	"github.com/ashureev/careermate/internal/speech"
	"github.com/ashureev/careermate/internal/store"
	"github.com/go-chi/chi/v5"
)

// SessionHandler exposes the hosted interview engine of the caller's tab.
type SessionHandler struct {
	mgr    *interview.Manager
	kv     store.KV
	stt    speech.Transcriber
	logger *slog.Logger
}

// NewSessionHandler creates the handler. stt transcribes spoken answers.
func NewSessionHandler(mgr *interview.Manager, kv store.KV, stt speech.Transcriber, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{mgr: mgr, kv: kv, stt: stt, logger: logger}
}

// RegisterRoutes registers the hosted session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", h.GetState)
		r.Post("/resume", h.SetResume)
		r.Post("/intro", h.SubmitIntro)
		r.Post("/start", h.Start)
		r.Post("/answer", h.SubmitAnswer)
		r.Post("/speech", h.SubmitSpeech)
		r.Post("/retry", h.Retry)
		r.Post("/reset", h.Reset)
		r.Post("/report", h.ViewReport)
		r.Get("/report", h.GetReport)
	})
}

type resumeRequest struct {
	ResumeText string `json:"resumeText"`
}

type introRequest struct {
	Text string `json:"text"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type speechAnswerResponse struct {
	Text  string          `json:"text"`
	State interview.State `json:"state"`
}

func (h *SessionHandler) engine(w http.ResponseWriter, r *http.Request) (*interview.Engine, bool) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	sessionID := identity.SessionIDFromContext(r.Context())
	e, err := h.mgr.Get(r.Context(), userID, sessionID)
	if err != nil {
		h.logger.Error("Failed to load interview session", "error", err, "user_id", userID, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to load interview session")
		return nil, false
	}
	return e, true
}

// respond writes the engine state, or the mapped error when err is set.
func (h *SessionHandler) respond(w http.ResponseWriter, r *http.Request, e *interview.Engine, op string, err error) {
	if err != nil {
		if StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("Interview action failed", "op", op, "error", err,
				"user_id", identity.UserIDFromContext(r.Context()),
				"session_id", identity.SessionIDFromContext(r.Context()))
		}
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, e.State())
}

// GetState returns the current engine state.
func (h *SessionHandler) GetState(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, e.State())
}

// SetResume stores résumé text for the caller's tab.
func (h *SessionHandler) SetResume(w http.ResponseWriter, r *http.Request) {
	var req resumeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}
	text := strings.TrimSpace(req.ResumeText)
	if text == "" {
		WriteError(w, interview.ErrEmptyInput)
		return
	}
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	scoped := store.Scoped(h.kv, identity.UserIDFromContext(r.Context()), identity.SessionIDFromContext(r.Context()))
	if err := scoped.Set(r.Context(), interview.KeyResumeText, text); err != nil {
		h.respond(w, r, e, "set resume", err)
		return
	}
	JSON(w, http.StatusOK, e.State())
}

// SubmitIntro records the introduction and starts the interview.
func (h *SessionHandler) SubmitIntro(w http.ResponseWriter, r *http.Request) {
	var req introRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	h.respond(w, r, e, "intro", e.SubmitIntro(r.Context(), req.Text))
}

// Start begins the interview.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	h.respond(w, r, e, "start", e.Start(r.Context()))
}

// SubmitAnswer submits a typed answer.
func (h *SessionHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	h.respond(w, r, e, "answer", e.SubmitAnswer(r.Context(), req.Answer))
}

// SubmitSpeech transcribes an audio answer and submits it.
func (h *SessionHandler) SubmitSpeech(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	st := e.State()
	if st.Phase != domain.PhaseInProgress || !st.WaitingForAnswer {
		WriteError(w, interview.ErrNotAcceptingAnswers)
		return
	}
	if st.Submitting {
		WriteError(w, interview.ErrSubmissionInFlight)
		return
	}

	up, err := readUpload(w, r, "audio", audioLimit, "Audio file too large.")
	if err != nil {
		WriteError(w, err)
		return
	}
	if h.stt == nil {
		WriteError(w, domain.ErrTranscriptionFailure)
		return
	}
	text, err := h.stt.Transcribe(r.Context(), speech.Audio{Data: up.Data, MimeType: up.MimeType, Filename: up.Filename})
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = domain.ErrTranscriptionFailure
	}
	if err != nil {
		h.logger.Warn("Spoken answer transcription failed", "error", err,
			"user_id", identity.UserIDFromContext(r.Context()))
		WriteError(w, err)
		return
	}
	if err := e.AutoSubmit(r.Context(), text); err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, speechAnswerResponse{Text: text, State: e.State()})
}

// Retry re-issues a stalled question request.
func (h *SessionHandler) Retry(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	h.respond(w, r, e, "retry", e.Retry(r.Context()))
}

// Reset restarts the interview.
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	h.respond(w, r, e, "reset", e.Reset(r.Context()))
}

// ViewReport returns the interview summary, creating it on first call.
func (h *SessionHandler) ViewReport(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	summary, err := e.ViewReport(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, summary)
}

// GetReport returns the generated report text.
func (h *SessionHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	report, err := e.Report(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, domain.ReportResponse{Report: report})
}
