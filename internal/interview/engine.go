package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/careermate/internal/domain"
	"github.com/google/uuid"
)

const (
	msgNextQuestionFailed = "Error getting next question."
	msgReportFailed       = "Error generating report."

	storageTimeout = 5 * time.Second
)

// Config tunes the engine's quota and its timed transitions.
type Config struct {
	QuestionQuota  int
	TypingDelay    time.Duration
	AdvanceDelay   time.Duration
	SettleDelay    time.Duration
	RequestTimeout time.Duration
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		QuestionQuota:  6,
		TypingDelay:    1200 * time.Millisecond,
		AdvanceDelay:   1500 * time.Millisecond,
		SettleDelay:    time.Second,
		RequestTimeout: 60 * time.Second,
	}
}

// ReportStatus tracks final report generation.
type ReportStatus string

const (
	ReportNone    ReportStatus = ""
	ReportPending ReportStatus = "pending"
	ReportReady   ReportStatus = "ready"
	ReportFailed  ReportStatus = "failed"
)

// State is the render view of an engine.
type State struct {
	domain.Session
	Submitting   bool         `json:"submitting"`
	Restoring    bool         `json:"restoring"`
	Notice       string       `json:"notice,omitempty"`
	ReportStatus ReportStatus `json:"reportStatus"`
	AverageScore int          `json:"averageScore"`
	Evaluating   int          `json:"evaluating,omitempty"`
	Revision     uint64       `json:"revision"`
}

// Settled reports whether a completed interview has its report and no
// evaluation still in flight.
func (st State) Settled() bool {
	return st.Phase == domain.PhaseCompleted && st.ReportStatus == ReportReady && st.Evaluating == 0
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig overrides the default timings.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.log = logger }
}

// WithClock sets the time source for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator sets the message ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// Engine drives one interview session.
//
// Every mutation happens under mu. Goroutines and timers capture the epoch
// they were started in and are dropped once Reset or Close moves the epoch on.
type Engine struct {
	svc     Service
	storage Storage
	cfg     Config
	log     *slog.Logger
	now     func() time.Time
	newID   func() string

	mu         sync.Mutex
	session    domain.Session
	submitting bool
	restoring  bool
	notice     string
	report     ReportStatus
	evaluating int
	revision   uint64
	closed     bool
	done       chan struct{}
	epoch      uint64
	taskCtx    context.Context
	taskCancel context.CancelFunc
	timers     map[*time.Timer]struct{}

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// New creates an engine at the start of the intro flow.
func New(svc Service, storage Storage, opts ...Option) *Engine {
	e := &Engine{
		svc:     svc,
		storage: storage,
		cfg:     DefaultConfig(),
		log:     slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
		session: domain.NewSession(),
		timers:  make(map[*time.Timer]struct{}),
		subs:    make(map[int]func(State)),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.QuestionQuota <= 0 {
		e.cfg.QuestionQuota = DefaultConfig().QuestionQuota
	}
	if e.cfg.RequestTimeout <= 0 {
		e.cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	e.taskCtx, e.taskCancel = context.WithCancel(context.Background())
	return e
}

// State returns a copy of the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// Subscribe registers fn to receive the state after every change.
// Revisions increase monotonically; deliveries may arrive out of order.
func (e *Engine) Subscribe(fn func(State)) (unsubscribe func()) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	id := e.nextSub
	e.nextSub++
	if e.subs != nil {
		e.subs[id] = fn
	}
	return func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		delete(e.subs, id)
	}
}

// Restore loads the persisted snapshot, if any.
func (e *Engine) Restore(ctx context.Context) error {
	resume, hasResume, err := e.storage.Get(ctx, KeyResumeText)
	if err != nil {
		return fmt.Errorf("load resume text: %w", err)
	}
	raw, found, err := e.storage.Get(ctx, KeySnapshot)
	if err != nil {
		return fmt.Errorf("load interview snapshot: %w", err)
	}
	if !found {
		return nil
	}
	_, hasReport, err := e.storage.Get(ctx, KeyReport)
	if err != nil {
		return fmt.Errorf("load report: %w", err)
	}

	if !hasResume || strings.TrimSpace(resume) == "" {
		e.log.Info("No resume text found, clearing interview snapshot")
		if err := e.storage.Delete(ctx, KeySnapshot); err != nil {
			return fmt.Errorf("clear interview snapshot: %w", err)
		}
		return nil
	}

	snap, err := DecodeSnapshot(raw)
	if err != nil {
		e.log.Warn("Discarding unreadable interview snapshot", "error", err)
		if err := e.storage.Delete(ctx, KeySnapshot); err != nil {
			return fmt.Errorf("clear interview snapshot: %w", err)
		}
		return nil
	}

	return e.update(func() (bool, error) {
		e.session = snap.Session()
		e.restoring = true
		e.afterLocked(e.cfg.SettleDelay, e.epoch, func() {
			e.restoring = false
			e.persistLocked()
		})
		if e.session.Phase == domain.PhaseCompleted {
			if hasReport {
				e.report = ReportReady
			} else {
				// The report request did not finish before the last shutdown.
				e.requestReportLocked(resume)
			}
		}
		e.log.Info("Interview state restored",
			"phase", e.session.Phase,
			"turns", len(e.session.History),
			"messages", len(e.session.Messages),
			"report", e.report)
		return true, nil
	})
}

// SubmitIntro records the candidate's introduction and starts the interview.
func (e *Engine) SubmitIntro(ctx context.Context, text string) error {
	intro := strings.TrimSpace(text)
	if intro == "" {
		return ErrEmptyInput
	}
	resume, err := e.resumeText(ctx)
	if err != nil {
		return err
	}
	return e.update(func() (bool, error) {
		if e.session.Phase != domain.PhaseAwaitingIntro {
			return false, ErrInvalidPhase
		}
		e.session.IntroText = intro
		e.session.Phase = domain.PhaseNotStarted
		return e.startLocked(resume)
	})
}

// Start begins the interview from AwaitingIntro or NotStarted.
func (e *Engine) Start(ctx context.Context) error {
	resume, err := e.resumeText(ctx)
	if err != nil {
		return err
	}
	return e.update(func() (bool, error) {
		switch e.session.Phase {
		case domain.PhaseAwaitingIntro, domain.PhaseNotStarted:
		default:
			return false, ErrInvalidPhase
		}
		return e.startLocked(resume)
	})
}

// SubmitAnswer submits a typed answer to the current question.
func (e *Engine) SubmitAnswer(ctx context.Context, text string) error {
	return e.submit(ctx, text, "typed")
}

// AutoSubmit submits a transcribed spoken answer. It is rejected while
// another submission is in flight.
func (e *Engine) AutoSubmit(ctx context.Context, transcript string) error {
	return e.submit(ctx, transcript, "speech")
}

// Retry re-issues a stalled next-question request, or a failed report
// request once the interview is complete.
func (e *Engine) Retry(ctx context.Context) error {
	resume, err := e.resumeText(ctx)
	if err != nil {
		return err
	}
	return e.update(func() (bool, error) {
		if e.session.Phase == domain.PhaseCompleted {
			if e.report != ReportFailed {
				return false, ErrNothingToRetry
			}
			e.requestReportLocked(resume)
			e.log.Info("Retrying report generation")
			return true, nil
		}
		if e.session.Phase != domain.PhaseInProgress || e.submitting || e.session.WaitingForAnswer {
			return false, ErrNothingToRetry
		}
		n := len(e.session.Messages)
		if n == 0 || e.session.Messages[n-1].Role != domain.RoleBot {
			return false, ErrNothingToRetry
		}
		last := &e.session.Messages[n-1]

		if !last.Failed && !last.IsTyping {
			return e.resumeAdvanceLocked(last.Content)
		}

		if strings.TrimSpace(resume) == "" {
			e.notice = domain.MsgMissingPrerequisite
			return true, fmt.Errorf("retry: %w", domain.ErrMissingPrerequisite)
		}

		last.Content = ""
		last.IsTyping = true
		last.Failed = false
		last.Timestamp = e.now()
		e.submitting = true
		e.notice = ""
		e.persistLocked()

		if len(e.session.History) == 0 {
			e.fetchFirstLocked(resume, last.ID)
		} else {
			idx := len(e.session.History) - 1
			e.advanceLocked(resume, idx, last.ID, e.session.History[idx].Score == nil)
		}
		e.log.Info("Retrying next question", "turns", len(e.session.History))
		return true, nil
	})
}

// ViewReport returns the interview summary, creating it on first call.
func (e *Engine) ViewReport(ctx context.Context) (domain.ReportSummary, error) {
	var summary domain.ReportSummary
	err := e.update(func() (bool, error) {
		if e.session.Phase != domain.PhaseCompleted {
			return false, ErrInvalidPhase
		}
		if e.session.Results != nil {
			summary = e.session.Results.Clone()
			return false, nil
		}
		r := domain.NewReportSummary(e.session.History, e.session.Messages, e.now())
		e.session.Results = &r
		if data, err := json.Marshal(r); err == nil {
			if err := e.storage.Set(ctx, KeyResults, string(data)); err != nil {
				e.log.Warn("Failed to persist interview results", "error", err)
			}
		}
		e.persistLocked()
		summary = r.Clone()
		return true, nil
	})
	return summary, err
}

// Report returns the generated report text.
func (e *Engine) Report(ctx context.Context) (string, error) {
	if e.State().Phase != domain.PhaseCompleted {
		return "", ErrReportNotReady
	}
	text, ok, err := e.storage.Get(ctx, KeyReport)
	if err != nil {
		return "", fmt.Errorf("load report: %w", err)
	}
	if !ok {
		return "", ErrReportNotReady
	}
	return text, nil
}

// Reset clears all interview state and returns to AwaitingIntro.
// The résumé text is kept.
func (e *Engine) Reset(ctx context.Context) error {
	return e.update(func() (bool, error) {
		e.bumpEpochLocked()
		e.session = domain.NewSession()
		e.submitting = false
		e.restoring = false
		e.notice = ""
		e.report = ReportNone
		for _, key := range []string{KeySnapshot, KeyReport, KeyResults} {
			if err := e.storage.Delete(ctx, key); err != nil {
				e.log.Warn("Failed to clear interview storage", "key", key, "error", err)
			}
		}
		e.log.Info("Interview reset")
		return true, nil
	})
}

// Done is closed once the engine is closed.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Close tears the engine down. Pending timers and requests are abandoned.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.bumpEpochLocked()
	close(e.done)
	e.mu.Unlock()

	e.subMu.Lock()
	e.subs = nil
	e.subMu.Unlock()
}

func (e *Engine) submit(ctx context.Context, text, source string) error {
	answer := strings.TrimSpace(text)
	if answer == "" {
		return ErrEmptyInput
	}
	resume, err := e.resumeText(ctx)
	if err != nil {
		return err
	}
	return e.update(func() (bool, error) {
		if e.submitting {
			return false, ErrSubmissionInFlight
		}
		if e.session.Phase != domain.PhaseInProgress || !e.session.WaitingForAnswer ||
			len(e.session.History) >= e.cfg.QuestionQuota {
			return false, ErrNotAcceptingAnswers
		}
		if strings.TrimSpace(resume) == "" {
			e.notice = domain.MsgMissingPrerequisite
			return true, fmt.Errorf("submit answer: %w", domain.ErrMissingPrerequisite)
		}

		e.submitting = true
		e.session.WaitingForAnswer = false
		e.notice = ""
		e.session.History = append(e.session.History, domain.Turn{
			Question: e.session.CurrentQuestion,
			Answer:   answer,
		})
		idx := len(e.session.History) - 1
		e.appendMessageLocked(domain.RoleUser, answer)
		placeholder := e.appendTypingLocked()
		e.persistLocked()

		e.log.Info("Interview answer submitted", "turn", idx+1, "source", source, "answer_length", len(answer))
		e.advanceLocked(resume, idx, placeholder, true)
		return true, nil
	})
}

func (e *Engine) startLocked(resume string) (bool, error) {
	if strings.TrimSpace(resume) == "" {
		e.notice = domain.MsgMissingPrerequisite
		e.persistLocked()
		return true, fmt.Errorf("start interview: %w", domain.ErrMissingPrerequisite)
	}

	intro := e.session.IntroText
	e.session = domain.NewSession()
	e.session.IntroText = intro
	e.session.Phase = domain.PhaseInProgress
	e.submitting = true
	e.notice = ""
	e.report = ReportNone
	placeholder := e.appendTypingLocked()
	e.persistLocked()

	e.log.Info("Interview started", "intro_length", len(intro))
	e.fetchFirstLocked(resume, placeholder)
	return true, nil
}

// resumeAdvanceLocked finishes a turn whose reply was already displayed
// when the process stopped before the follow-up transition ran.
func (e *Engine) resumeAdvanceLocked(reply string) (bool, error) {
	if len(e.session.History) == 0 || reply == e.session.CurrentQuestion {
		return false, ErrNothingToRetry
	}
	if len(e.session.History) >= e.cfg.QuestionQuota {
		return false, ErrNothingToRetry
	}
	e.session.CurrentQuestion = reply
	e.session.WaitingForAnswer = true
	e.notice = ""
	e.persistLocked()
	return true, nil
}

func (e *Engine) fetchFirstLocked(resume, placeholder string) {
	epoch, ctx := e.epoch, e.taskCtx
	req := domain.NextQuestionRequest{
		ResumeText:  resume,
		ChatHistory: []domain.Turn{},
		UserIntro:   e.session.IntroText,
	}

	go func() {
		question, err := e.nextQuestion(ctx, req)
		e.apply(epoch, func() {
			if err != nil {
				e.failLocked(err, placeholder)
				return
			}
			e.replaceLocked(placeholder, question)
			e.session.CurrentQuestion = question
			e.session.WaitingForAnswer = true
			e.submitting = false
			e.persistLocked()
		})
	}()
}

// advanceLocked runs the critical next-question request for turn idx and,
// when evaluate is set, the best-effort evaluation next to it.
func (e *Engine) advanceLocked(resume string, idx int, placeholder string, evaluate bool) {
	epoch, ctx := e.epoch, e.taskCtx
	history := cloneTurns(e.session.History)
	turn := history[idx]
	final := len(history) >= e.cfg.QuestionQuota

	if evaluate {
		e.evaluating++
		go e.evaluate(ctx, epoch, idx, domain.EvaluateRequest{
			Question:   turn.Question,
			Answer:     turn.Answer,
			ResumeText: resume,
		})
	}

	go func() {
		next, err := e.nextQuestion(ctx, domain.NextQuestionRequest{
			ResumeText:  resume,
			ChatHistory: history,
		})
		e.apply(epoch, func() {
			if err != nil {
				e.failLocked(err, placeholder)
				return
			}
			e.afterLocked(e.cfg.TypingDelay, epoch, func() {
				if final {
					e.removeMessageLocked(placeholder)
					e.completeLocked(resume, next)
					return
				}
				e.replaceLocked(placeholder, next)
				e.persistLocked()
				e.afterLocked(e.cfg.AdvanceDelay, epoch, func() {
					e.session.CurrentQuestion = next
					e.session.WaitingForAnswer = true
					e.submitting = false
					e.persistLocked()
				})
			})
		})
	}()
}

func (e *Engine) nextQuestion(ctx context.Context, req domain.NextQuestionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()
	question, err := e.svc.NextQuestion(ctx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("next question: %w: empty question", domain.ErrMalformedResponse)
	}
	return question, nil
}

func (e *Engine) evaluate(ctx context.Context, epoch uint64, idx int, req domain.EvaluateRequest) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	var score *float64
	ev, err := e.svc.Evaluate(ctx, req)
	switch {
	case err != nil:
		e.log.Debug("Answer evaluation failed", "turn", idx+1, "error", err)
	case ev.Score == nil:
		e.log.Debug("Answer evaluation returned no score", "turn", idx+1)
	default:
		v := *ev.Score
		score = &v
	}
	e.apply(epoch, func() {
		e.evaluating--
		if score == nil || idx >= len(e.session.History) {
			return
		}
		e.session.History[idx].Score = score
		e.persistLocked()
	})
}

func (e *Engine) completeLocked(resume, closing string) {
	e.session.Phase = domain.PhaseCompleted
	e.session.WaitingForAnswer = false
	e.session.ClosingRemark = closing
	e.submitting = false
	e.persistLocked()

	e.log.Info("Interview completed",
		"turns", len(e.session.History),
		"average_score", domain.AverageScore(e.session.History))
	e.requestReportLocked(resume)
}

// requestReportLocked generates the final report in the background and
// stores it under KeyReport.
func (e *Engine) requestReportLocked(resume string) {
	e.report = ReportPending
	e.notice = ""
	req := e.reportRequestLocked(resume, e.session.ClosingRemark)
	epoch, ctx := e.epoch, e.taskCtx

	go func() {
		reqCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
		defer cancel()
		text, err := e.svc.Report(reqCtx, req)
		if err == nil && strings.TrimSpace(text) == "" {
			err = fmt.Errorf("report: %w: empty report", domain.ErrMalformedResponse)
		}
		e.apply(epoch, func() {
			if err == nil {
				storeCtx, cancel := context.WithTimeout(context.Background(), storageTimeout)
				err = e.storage.Set(storeCtx, KeyReport, text)
				cancel()
			}
			if err != nil {
				e.log.Warn("Report generation failed", "error", err)
				e.report = ReportFailed
				e.notice = msgReportFailed
				return
			}
			e.report = ReportReady
		})
	}()
}

// reportRequestLocked pairs each turn with the interviewer reply that
// followed its answer. The last turn's reply was never displayed, so it
// is passed in as closing.
func (e *Engine) reportRequestLocked(resume, closing string) domain.ReportRequest {
	items := make([]domain.InterviewItem, len(e.session.History))
	for i, t := range e.session.History {
		items[i] = domain.InterviewItem{Question: t.Question, Answer: t.Answer}
	}

	answered := -1
	for _, m := range e.session.Messages {
		switch {
		case m.Role == domain.RoleUser:
			answered++
		case m.IsTyping || m.Failed || answered < 0 || answered >= len(items):
		case items[answered].Feedback == "":
			items[answered].Feedback = m.Content
		}
	}
	if n := len(items); n > 0 && items[n-1].Feedback == "" {
		items[n-1].Feedback = closing
	}

	return domain.ReportRequest{
		InterviewData: items,
		UserName:      UserName(resume),
		ResumeText:    resume,
	}
}

func (e *Engine) failLocked(err error, placeholder string) {
	content := msgNextQuestionFailed
	if errors.Is(err, domain.ErrQuotaExceeded) {
		content = domain.MsgQuotaExceeded
	}
	if i := e.messageIndexLocked(placeholder); i >= 0 {
		m := &e.session.Messages[i]
		m.Content = content
		m.IsTyping = false
		m.Failed = true
	} else {
		id := e.appendMessageLocked(domain.RoleBot, content)
		e.session.Messages[e.messageIndexLocked(id)].Failed = true
	}
	e.session.WaitingForAnswer = false
	e.submitting = false
	e.notice = domain.UserMessage(err)
	e.persistLocked()
	e.log.Warn("Next question request failed", "turns", len(e.session.History), "error", err)
}

func (e *Engine) appendMessageLocked(role domain.Role, content string) string {
	id := e.newID()
	e.session.Messages = append(e.session.Messages, domain.ChatMessage{
		ID:        id,
		Role:      role,
		Content:   content,
		Timestamp: e.now(),
	})
	return id
}

func (e *Engine) appendTypingLocked() string {
	id := e.appendMessageLocked(domain.RoleBot, "")
	e.session.Messages[len(e.session.Messages)-1].IsTyping = true
	return id
}

func (e *Engine) replaceLocked(id, content string) {
	if i := e.messageIndexLocked(id); i >= 0 {
		m := &e.session.Messages[i]
		m.Content = content
		m.IsTyping = false
		m.Failed = false
		return
	}
	e.appendMessageLocked(domain.RoleBot, content)
}

func (e *Engine) removeMessageLocked(id string) {
	if i := e.messageIndexLocked(id); i >= 0 {
		e.session.Messages = append(e.session.Messages[:i], e.session.Messages[i+1:]...)
	}
}

func (e *Engine) messageIndexLocked(id string) int {
	for i := len(e.session.Messages) - 1; i >= 0; i-- {
		if e.session.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked writes the snapshot unless a restore is settling.
// Failures are logged and never block the engine.
func (e *Engine) persistLocked() {
	if e.restoring || e.closed {
		return
	}
	raw, err := encodeSnapshot(e.session)
	if err != nil {
		e.log.Error("Failed to encode interview snapshot", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()
	if err := e.storage.Set(ctx, KeySnapshot, raw); err != nil {
		e.log.Warn("Failed to persist interview snapshot", "error", err)
	}
}

func (e *Engine) resumeText(ctx context.Context) (string, error) {
	text, _, err := e.storage.Get(ctx, KeyResumeText)
	if err != nil {
		return "", fmt.Errorf("load resume text: %w", err)
	}
	return text, nil
}

// update runs fn under the lock and publishes the state if fn changed it.
func (e *Engine) update(fn func() (bool, error)) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	changed, err := fn()
	if !changed {
		e.mu.Unlock()
		return err
	}
	e.revision++
	st := e.stateLocked()
	e.mu.Unlock()
	e.publish(st)
	return err
}

// apply runs fn for a task started in epoch, unless the engine has since
// been reset or closed.
func (e *Engine) apply(epoch uint64, fn func()) {
	e.mu.Lock()
	if e.closed || e.epoch != epoch {
		e.mu.Unlock()
		return
	}
	fn()
	e.revision++
	st := e.stateLocked()
	e.mu.Unlock()
	e.publish(st)
}

func (e *Engine) afterLocked(d time.Duration, epoch uint64, fn func()) {
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		e.mu.Lock()
		delete(e.timers, t)
		e.mu.Unlock()
		e.apply(epoch, fn)
	})
	e.timers[t] = struct{}{}
}

func (e *Engine) bumpEpochLocked() {
	e.epoch++
	e.evaluating = 0
	e.taskCancel()
	for t := range e.timers {
		t.Stop()
	}
	e.timers = make(map[*time.Timer]struct{})
	e.taskCtx, e.taskCancel = context.WithCancel(context.Background())
}

func (e *Engine) stateLocked() State {
	return State{
		Session:      e.session.Clone(),
		Submitting:   e.submitting,
		Restoring:    e.restoring,
		Notice:       e.notice,
		ReportStatus: e.report,
		AverageScore: domain.AverageScore(e.session.History),
		Evaluating:   e.evaluating,
		Revision:     e.revision,
	}
}

func (e *Engine) publish(st State) {
	e.subMu.Lock()
	fns := make([]func(State), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.subMu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

func cloneTurns(turns []domain.Turn) []domain.Turn {
	s := domain.Session{History: turns}
	return s.Clone().History
}

// UserName returns the first non-blank line of a résumé.
func UserName(resume string) string {
	for _, line := range strings.Split(resume, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
