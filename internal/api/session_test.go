package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/careermate/internal/coach"
	"github.com/ashureev/careermate/internal/domain"
	"github.com/ashureev/careermate/internal/identity"
	"github.com/ashureev/careermate/internal/interview"
	"github.com/ashureev/careermate/internal/speech"
	"github.com/ashureev/careermate/internal/store"
	"github.com/go-chi/chi/v5"
)

func fastInterview() interview.Config {
	return interview.Config{
		QuestionQuota:  2,
		TypingDelay:    time.Millisecond,
		AdvanceDelay:   time.Millisecond,
		SettleDelay:    10 * time.Millisecond,
		RequestTimeout: 2 * time.Second,
	}
}

type sessionFixture struct {
	router http.Handler
	mgr    *interview.Manager
	kv     *store.MemoryStore
}

func newSessionFixture(t *testing.T, stt speech.Transcriber) *sessionFixture {
	t.Helper()
	kv := store.NewMemory()
	mgr := interview.NewManager(coach.New(nil, nil, quietLogger), func(userID, sessionID string) interview.Storage {
		return store.Scoped(kv, userID, sessionID)
	}, interview.WithConfig(fastInterview()), interview.WithLogger(quietLogger))
	t.Cleanup(mgr.CloseAll)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sid := req.Header.Get(identity.SessionHeaderName)
			next.ServeHTTP(w, req.WithContext(identity.WithIdentity(req.Context(), "anon-test", sid)))
		})
	})
	NewSessionHandler(mgr, kv, stt, quietLogger).RegisterRoutes(r)
	r.Handle("/ws/session", NewSessionStream(mgr, []string{"*"}, true, quietLogger))
	return &sessionFixture{router: r, mgr: mgr, kv: kv}
}

func (f *sessionFixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, interview.State) {
	t.Helper()
	var rec *httptest.ResponseRecorder
	if body != nil {
		rec = postJSON(t, f.router, path, body)
	} else {
		req := httptest.NewRequest(method, path, nil)
		rec = httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
	}
	var st interview.State
	if rec.Code == http.StatusOK {
		_ = json.Unmarshal(rec.Body.Bytes(), &st)
	}
	return rec, st
}

func (f *sessionFixture) waitState(t *testing.T, desc string, cond func(interview.State) bool) interview.State {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		_, st := f.do(t, http.MethodGet, "/api/session", nil)
		if cond(st) {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s: phase=%s waiting=%v submitting=%v", desc, st.Phase, st.WaitingForAnswer, st.Submitting)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func answerable(st interview.State) bool {
	return st.Phase == domain.PhaseInProgress && st.WaitingForAnswer && !st.Submitting
}

func TestSessionIntroRequiresResume(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t, nil)
	rec, _ := f.do(t, http.MethodPost, "/api/session/intro", introRequest{Text: "Hi, I'm Jane."})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	_, st := f.do(t, http.MethodGet, "/api/session", nil)
	if st.Phase != domain.PhaseNotStarted || st.Notice != domain.MsgMissingPrerequisite {
		t.Fatalf("state = phase %s notice %q", st.Phase, st.Notice)
	}

	rec, _ = f.do(t, http.MethodPost, "/api/session/resume", resumeRequest{ResumeText: "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank resume status = %d", rec.Code)
	}
}

func TestSessionFullFlow(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t, nil)
	if rec, _ := f.do(t, http.MethodPost, "/api/session/resume", resumeRequest{ResumeText: "Jane Doe\nGo engineer"}); rec.Code != http.StatusOK {
		t.Fatalf("resume status = %d", rec.Code)
	}
	if rec, _ := f.do(t, http.MethodPost, "/api/session/answer", answerRequest{Answer: "early"}); rec.Code != http.StatusConflict {
		t.Fatalf("early answer status = %d", rec.Code)
	}
	if rec, _ := f.do(t, http.MethodPost, "/api/session/intro", introRequest{Text: "Hi, I'm Jane."}); rec.Code != http.StatusOK {
		t.Fatalf("intro status = %d body=%s", rec.Code, rec.Body.String())
	}

	for i := 0; i < fastInterview().QuestionQuota; i++ {
		f.waitState(t, "question", answerable)
		rec, _ := f.do(t, http.MethodPost, "/api/session/answer", answerRequest{Answer: "For example, I shipped project 42."})
		if rec.Code != http.StatusOK {
			t.Fatalf("answer %d status = %d body=%s", i, rec.Code, rec.Body.String())
		}
	}

	f.waitState(t, "completion", func(st interview.State) bool {
		return st.Phase == domain.PhaseCompleted && st.ReportStatus == interview.ReportReady
	})

	rec, _ := f.do(t, http.MethodGet, "/api/session/report", nil)
	var report domain.ReportResponse
	decodeBody(t, rec, &report)
	if rec.Code != http.StatusOK || !strings.Contains(report.Report, "Jane Doe") {
		t.Fatalf("report status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec, _ = f.do(t, http.MethodPost, "/api/session/report", nil)
	var summary domain.ReportSummary
	decodeBody(t, rec, &summary)
	if rec.Code != http.StatusOK || summary.TotalQuestions != 2 {
		t.Fatalf("summary status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec, st := f.do(t, http.MethodPost, "/api/session/reset", nil)
	if rec.Code != http.StatusOK || st.Phase != domain.PhaseAwaitingIntro {
		t.Fatalf("reset status=%d phase=%s", rec.Code, st.Phase)
	}
	if rec, _ := f.do(t, http.MethodGet, "/api/session/report", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("report after reset status = %d", rec.Code)
	}
}

func TestSessionRetryWithNothingPendingConflicts(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t, nil)
	if rec, _ := f.do(t, http.MethodPost, "/api/session/retry", nil); rec.Code != http.StatusConflict {
		t.Fatalf("retry status = %d", rec.Code)
	}
}

func TestSessionSpeechAnswer(t *testing.T) {
	t.Parallel()

	stt := speech.TranscriberFunc(func(context.Context, speech.Audio) (string, error) {
		return "I mostly write Go services.", nil
	})
	f := newSessionFixture(t, stt)

	rec := postFile(t, f.router, "/api/session/speech", "audio", "a.wav", "audio/wav", []byte("RIFF"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("speech before start status = %d", rec.Code)
	}

	f.do(t, http.MethodPost, "/api/session/resume", resumeRequest{ResumeText: "Jane Doe"})
	f.do(t, http.MethodPost, "/api/session/intro", introRequest{Text: "Hello"})
	f.waitState(t, "first question", answerable)

	rec = postFile(t, f.router, "/api/session/speech", "audio", "a.wav", "audio/wav", []byte("RIFF"))
	var resp speechAnswerResponse
	decodeBody(t, rec, &resp)
	if rec.Code != http.StatusOK || resp.Text != "I mostly write Go services." {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if len(resp.State.History) != 1 || resp.State.History[0].Answer != resp.Text {
		t.Fatalf("history = %+v", resp.State.History)
	}
}

func TestSessionsAreIsolatedPerTab(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t, nil)
	f.do(t, http.MethodPost, "/api/session/resume", resumeRequest{ResumeText: "Jane Doe"})

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set(identity.SessionHeaderName, "tab-2")
	f.router.ServeHTTP(httptest.NewRecorder(), req)

	if f.mgr.Len() != 2 {
		t.Fatalf("engines = %d, want 2", f.mgr.Len())
	}
	_, ok, _ := store.Scoped(f.kv, "anon-test", "tab-2").Get(context.Background(), interview.KeyResumeText)
	if ok {
		t.Fatal("resume leaked into another tab")
	}
}
