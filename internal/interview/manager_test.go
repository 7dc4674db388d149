package interview

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashureev/careermate/internal/domain"
)

type storageSet struct {
	mu    sync.Mutex
	tabs  map[string]*memStorage
	seedF func(*memStorage)
}

func (s *storageSet) factory(userID, sessionID string) Storage {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + "/" + sessionID
	if st, ok := s.tabs[key]; ok {
		return st
	}
	st := newMemStorage()
	if s.seedF != nil {
		s.seedF(st)
	}
	s.tabs[key] = st
	return st
}

func newStorageSet() *storageSet {
	return &storageSet{
		tabs: make(map[string]*memStorage),
		seedF: func(s *memStorage) {
			_ = s.Set(context.Background(), KeyResumeText, testResume)
		},
	}
}

func TestManagerReusesEnginePerTab(t *testing.T) {
	t.Parallel()

	m := NewManager(&fakeService{}, newStorageSet().factory, WithConfig(testConfig()))
	defer m.CloseAll()
	ctx := context.Background()

	a, err := m.Get(ctx, "anon_1", "tab-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	again, _ := m.Get(ctx, "anon_1", "tab-1")
	if a != again {
		t.Fatal("expected the same engine for the same tab")
	}
	b, _ := m.Get(ctx, "anon_1", "tab-2")
	if a == b {
		t.Fatal("expected separate engines per tab")
	}
	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}

	m.CloseUser("anon_1")
	if m.Len() != 0 {
		t.Fatalf("Len after CloseUser = %d, want 0", m.Len())
	}
	if err := a.Start(ctx); err != ErrClosed {
		t.Fatalf("closed engine Start = %v, want ErrClosed", err)
	}
}

func TestManagerSweepClosesIdleEngines(t *testing.T) {
	t.Parallel()

	m := NewManager(&fakeService{}, newStorageSet().factory, WithConfig(testConfig()))
	defer m.CloseAll()
	ctx := context.Background()

	now := time.Unix(1_700_000_000, 0)
	var mu sync.Mutex
	m.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}

	if _, err := m.Get(ctx, "anon_1", "old"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	advance(time.Hour)
	if _, err := m.Get(ctx, "anon_2", "fresh"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if n := m.Sweep(30 * time.Minute); n != 1 {
		t.Fatalf("Sweep closed %d engines, want 1", n)
	}
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
}

func TestManagerRestoresFromStorage(t *testing.T) {
	t.Parallel()

	set := newStorageSet()
	m := NewManager(&fakeService{}, set.factory, WithConfig(testConfig()))
	defer m.CloseAll()
	ctx := context.Background()

	e, err := m.Get(ctx, "anon_1", "tab-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, e, "first question", readyForAnswer)
	m.CloseUser("anon_1")

	restored, err := m.Get(ctx, "anon_1", "tab-1")
	if err != nil {
		t.Fatalf("Get after close failed: %v", err)
	}
	st := restored.State()
	if st.Phase != domain.PhaseInProgress || st.CurrentQuestion != "Q1" {
		t.Fatalf("unexpected restored state: phase=%s question=%q", st.Phase, st.CurrentQuestion)
	}
}

func TestManagerCompletionHandlerFiresOnce(t *testing.T) {
	t.Parallel()

	m := NewManager(&fakeService{}, newStorageSet().factory, WithConfig(testConfig()))
	defer m.CloseAll()

	var fired atomic.Int32
	var unscored atomic.Int32
	m.OnComplete(func(userID, sessionID string, st State) {
		if userID == "anon_1" && sessionID == "tab-1" && st.Phase == domain.PhaseCompleted {
			fired.Add(1)
		}
		for _, turn := range st.History {
			if turn.Score == nil {
				unscored.Add(1)
			}
		}
	})

	e, err := m.Get(context.Background(), "anon_1", "tab-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	completeInterview(t, e)
	if _, err := e.ViewReport(context.Background()); err != nil {
		t.Fatalf("ViewReport failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("completion handler fired %d times, want 1", got)
	}
	if n := unscored.Load(); n != 0 {
		t.Fatalf("completion reported %d unscored turns", n)
	}
}

func TestManagerCompletionWaitsForReportAfterReload(t *testing.T) {
	t.Parallel()

	set := newStorageSet()
	svc := &fakeService{reportGate: make(chan struct{})}
	m := NewManager(svc, set.factory, WithConfig(testConfig()))
	defer m.CloseAll()
	ctx := context.Background()

	var fired atomic.Int32
	m.OnComplete(func(string, string, State) { fired.Add(1) })

	e, err := m.Get(ctx, "anon_1", "tab-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	answerAll(t, e)
	m.CloseUser("anon_1")
	if got := fired.Load(); got != 0 {
		t.Fatalf("fired %d times before the report existed", got)
	}

	svc.mu.Lock()
	svc.reportGate = nil
	svc.mu.Unlock()

	restored, err := m.Get(ctx, "anon_1", "tab-1")
	if err != nil {
		t.Fatalf("Get after close failed: %v", err)
	}
	waitFor(t, restored, "report after reload", func(st State) bool { return st.Settled() })
	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if got := fired.Load(); got != 1 {
		t.Fatalf("completion handler fired %d times, want 1", got)
	}
}

func TestManagerAttachedEngineSurvivesSweep(t *testing.T) {
	t.Parallel()

	m := NewManager(&fakeService{}, newStorageSet().factory, WithConfig(testConfig()))
	defer m.CloseAll()
	ctx := context.Background()

	now := time.Unix(1_700_000_000, 0)
	var mu sync.Mutex
	m.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}

	streamed, release, err := m.Attach(ctx, "anon_1", "tab-1")
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	advance(time.Hour)
	if n := m.Sweep(30 * time.Minute); n != 0 {
		t.Fatalf("Sweep closed %d attached engines", n)
	}
	again, err := m.Get(ctx, "anon_1", "tab-1")
	if err != nil || again != streamed {
		t.Fatalf("Get returned a different engine (err=%v)", err)
	}

	frames := make(chan State, 16)
	unsubscribe := streamed.Subscribe(func(st State) {
		select {
		case frames <- st:
		default:
		}
	})
	defer unsubscribe()
	if err := again.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	select {
	case <-frames:
	case <-time.After(2 * time.Second):
		t.Fatal("attached subscriber received no state")
	}

	release()
	release()
	advance(time.Hour)
	if n := m.Sweep(30 * time.Minute); n != 1 {
		t.Fatalf("Sweep closed %d engines after release, want 1", n)
	}
	select {
	case <-streamed.Done():
	default:
		t.Fatal("swept engine not closed")
	}
}

// gatedStorage blocks reads until open is closed.
type gatedStorage struct {
	Storage
	open chan struct{}
}

func (g *gatedStorage) Get(ctx context.Context, key string) (string, bool, error) {
	<-g.open
	return g.Storage.Get(ctx, key)
}

func TestManagerRestoreDoesNotBlockOtherTabs(t *testing.T) {
	t.Parallel()

	set := newStorageSet()
	open := make(chan struct{})
	m := NewManager(&fakeService{}, func(userID, sessionID string) Storage {
		st := set.factory(userID, sessionID)
		if sessionID == "slow" {
			return &gatedStorage{Storage: st, open: open}
		}
		return st
	}, WithConfig(testConfig()))
	defer m.CloseAll()
	ctx := context.Background()

	type result struct {
		e   *Engine
		err error
	}
	slow := make(chan result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			e, err := m.Get(ctx, "anon_1", "slow")
			slow <- result{e, err}
		}()
	}

	done := make(chan error, 1)
	go func() {
		_, err := m.Get(ctx, "anon_2", "fast")
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Get for another tab blocked behind a slow restore")
	}

	close(open)
	a, b := <-slow, <-slow
	if a.err != nil || b.err != nil {
		t.Fatalf("slow Get failed: %v / %v", a.err, b.err)
	}
	if a.e != b.e {
		t.Fatal("racing Gets for one tab returned different engines")
	}
	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}
}
