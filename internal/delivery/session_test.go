package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/assessly/assessly-backend/internal/model"
)

// stubSink records saved attempts and can be told to fail first.
type stubSink struct {
	mu       sync.Mutex
	saved    []*model.Attempt
	failures int
}

func (s *stubSink) SaveAttempt(ctx context.Context, a *model.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("sink unavailable")
	}
	s.saved = append(s.saved, a)
	return nil
}

func (s *stubSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func (s *stubSink) last() *model.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) == 0 {
		return nil
	}
	return s.saved[len(s.saved)-1]
}

// stubScheduler hands the tick callback to the test instead of running it.
type stubScheduler struct {
	tick     func()
	canceled bool
}

func (s *stubScheduler) Schedule(interval time.Duration, tick func()) func() {
	s.tick = tick
	return func() { s.canceled = true }
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testPayload(allowReview bool) *model.AssessmentPayload {
	choices := json.RawMessage(`{
		"question": "pick one",
		"choices": [{"id": "a", "text": "A"}, {"id": "b", "text": "B"}]
	}`)
	return &model.AssessmentPayload{
		AssessmentID:    uuid.New(),
		Title:           "Unit Exam",
		DurationMinutes: 1,
		AllowReview:     allowReview,
		BrowserSecurity: model.BrowserSecurity{FullScreen: true, BlockRightClick: false},
		Questions: []model.QuestionForStudent{
			{ID: uuid.New(), Type: model.QuestionTypeSingleChoice, Content: choices, Points: 10, Order: 1},
			{ID: uuid.New(), Type: model.QuestionTypeEssay, Content: json.RawMessage(`{"question": "discuss"}`), Points: 20, Order: 2},
			{ID: uuid.New(), Type: model.QuestionTypeSingleChoice, Content: choices, Points: 10, Order: 3},
		},
	}
}

func newTestSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	if cfg.Payload == nil {
		cfg.Payload = testPayload(true)
	}
	if cfg.Sink == nil {
		cfg.Sink = &stubSink{}
	}
	cfg.Logger = zerolog.Nop()
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func TestNewSessionInitializesAttempt(t *testing.T) {
	payload := testPayload(true)
	s := newTestSession(t, Config{Payload: payload})

	if s.Status() != model.AttemptStatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", s.Status())
	}
	if got := s.RemainingSeconds(); got != 60 {
		t.Errorf("remaining = %d, want 60", got)
	}
	answers := s.Answers()
	if len(answers) != len(payload.Questions) {
		t.Fatalf("answers = %d, want %d", len(answers), len(payload.Questions))
	}
	for i, a := range answers {
		if a.QuestionID != payload.Questions[i].ID {
			t.Errorf("answer %d bound to %s, want %s", i, a.QuestionID, payload.Questions[i].ID)
		}
		if !a.Value.IsZero() {
			t.Errorf("answer %d must start unanswered", i)
		}
	}
}

func TestNewSessionRequiresQuestions(t *testing.T) {
	payload := testPayload(true)
	payload.Questions = nil
	_, err := NewSession(Config{Payload: payload, Sink: &stubSink{}, Logger: zerolog.Nop()})
	if !errors.Is(err, ErrNoQuestions) {
		t.Errorf("err = %v, want ErrNoQuestions", err)
	}
}

func TestNewSessionResumesCountdown(t *testing.T) {
	tests := []struct {
		name      string
		remaining int
		want      int
	}{
		{"resume below duration", 25, 25},
		{"override above duration is ignored", 9999, 60},
		{"zero means full duration", 0, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t, Config{RemainingSeconds: tt.remaining})
			if got := s.RemainingSeconds(); got != tt.want {
				t.Errorf("remaining = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSetAnswerValidatesAtTheBoundary(t *testing.T) {
	s := newTestSession(t, Config{})

	if err := s.SetAnswer(model.TextValue("a")); err != nil {
		t.Fatalf("valid answer rejected: %v", err)
	}
	if err := s.SetAnswer(model.TextValue("zz")); err == nil {
		t.Fatal("unknown choice must be rejected")
	}
	// the rejected value must not clobber the accepted one
	if got := s.Answers()[0].Value; got.Text != "a" {
		t.Errorf("answer = %q, want %q", got.Text, "a")
	}
}

func TestSetAnswerForUnknownQuestion(t *testing.T) {
	s := newTestSession(t, Config{})
	if err := s.SetAnswerFor(uuid.New(), model.TextValue("a")); err == nil {
		t.Error("answer for a foreign question id must be rejected")
	}
}

func TestTickAutoSubmitsExactlyOnce(t *testing.T) {
	sink := &stubSink{}
	s := newTestSession(t, Config{Sink: sink, RemainingSeconds: 2})

	s.Tick()
	if got := s.RemainingSeconds(); got != 1 {
		t.Fatalf("remaining = %d, want 1", got)
	}
	if sink.count() != 0 {
		t.Fatal("persisted before the countdown hit zero")
	}

	s.Tick()
	if sink.count() != 1 {
		t.Fatalf("saves = %d, want 1", sink.count())
	}
	if st := sink.last().Status; st != model.AttemptStatusTimedOut {
		t.Errorf("status = %s, want TIMED_OUT", st)
	}

	// ticks after the terminal transition are no-ops
	s.Tick()
	s.Tick()
	if sink.count() != 1 {
		t.Errorf("saves = %d after extra ticks, want 1", sink.count())
	}
}

func TestTerminalSessionRejectsAnswers(t *testing.T) {
	s := newTestSession(t, Config{RemainingSeconds: 1})
	s.Tick()

	if err := s.SetAnswer(model.TextValue("a")); !errors.Is(err, ErrAttemptFinished) {
		t.Errorf("err = %v, want ErrAttemptFinished", err)
	}
}

func TestSubmitIsIdempotent(t *testing.T) {
	sink := &stubSink{}
	s := newTestSession(t, Config{Sink: sink})

	first, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if first.Status != model.AttemptStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", first.Status)
	}

	second, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if second.Status != model.AttemptStatusCompleted {
		t.Errorf("second status = %s, want COMPLETED", second.Status)
	}
	if sink.count() != 1 {
		t.Errorf("saves = %d, want 1", sink.count())
	}
}

func TestSubmitRetainsAttemptWhenPersistFails(t *testing.T) {
	sink := &stubSink{failures: 1}
	s := newTestSession(t, Config{Sink: sink})

	if _, err := s.Submit(context.Background()); err == nil {
		t.Fatal("expected the first submit to surface the sink error")
	}
	if s.Status() != model.AttemptStatusCompleted {
		t.Errorf("status = %s, attempt must stay terminal after a failed persist", s.Status())
	}

	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if sink.count() != 1 {
		t.Errorf("saves = %d, want 1", sink.count())
	}
}

func TestSelectQuestionClampsWithReview(t *testing.T) {
	s := newTestSession(t, Config{Payload: testPayload(true)})

	if got := s.SelectQuestion(-5); got != 0 {
		t.Errorf("SelectQuestion(-5) = %d, want 0", got)
	}
	if got := s.SelectQuestion(99); got != 2 {
		t.Errorf("SelectQuestion(99) = %d, want 2", got)
	}
	if got := s.SelectQuestion(0); got != 0 {
		t.Errorf("SelectQuestion(0) = %d, want 0", got)
	}
	if got := s.CurrentIndex(); got != 0 {
		t.Errorf("CurrentIndex() = %d, want 0", got)
	}
}

func TestSelectQuestionAdjacencyWithoutReview(t *testing.T) {
	s := newTestSession(t, Config{Payload: testPayload(false)})

	if got := s.SelectQuestion(2); got != 0 {
		t.Errorf("jump ahead honored: got %d, want 0", got)
	}
	if got := s.SelectQuestion(1); got != 1 {
		t.Errorf("adjacent move refused: got %d, want 1", got)
	}
	if got := s.CurrentIndex(); got != 1 {
		t.Errorf("CurrentIndex() = %d, want 1", got)
	}
	if got := s.SelectQuestion(0); got != 0 {
		t.Errorf("step back refused: got %d, want 0", got)
	}
}

func TestViolationGating(t *testing.T) {
	feed := NewSignalFeed()
	// payload security: FullScreen on, BlockRightClick off
	s := newTestSession(t, Config{Signals: feed})

	feed.Emit(SignalHidden)
	feed.Emit(SignalRightClick)
	feed.Emit(SignalFullscreenExit)

	got := s.Violations()
	want := []model.ViolationType{model.ViolationTabSwitch, model.ViolationFullscreenExit}
	if len(got) != len(want) {
		t.Fatalf("violations = %d, want %d", len(got), len(want))
	}
	for i, v := range got {
		if v.Type != want[i] {
			t.Errorf("violation %d = %s, want %s", i, v.Type, want[i])
		}
	}
}

func TestViolationsStopAtTerminal(t *testing.T) {
	feed := NewSignalFeed()
	sink := &stubSink{}
	s := newTestSession(t, Config{Signals: feed, Sink: sink})

	feed.Emit(SignalHidden)
	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	feed.Emit(SignalHidden)

	if got := len(sink.last().Violations); got != 1 {
		t.Errorf("persisted violations = %d, want 1", got)
	}
	if got := len(s.Violations()); got != 1 {
		t.Errorf("violations after terminal = %d, want 1", got)
	}
}

func TestCloseCancelsCollaborators(t *testing.T) {
	sched := &stubScheduler{}
	s := newTestSession(t, Config{Scheduler: sched})

	s.Close()
	if !sched.canceled {
		t.Error("Close must cancel the scheduler")
	}
	if s.Status() != model.AttemptStatusInProgress {
		t.Errorf("Close must not transition the attempt, status = %s", s.Status())
	}
}

func TestSchedulerCanceledOnSubmit(t *testing.T) {
	sched := &stubScheduler{}
	s := newTestSession(t, Config{Scheduler: sched})

	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !sched.canceled {
		t.Error("terminal transition must cancel the scheduler")
	}
}

func TestFocusTimeAccounting(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	sink := &stubSink{}
	s := newTestSession(t, Config{Sink: sink, Clock: clk.Now})

	clk.Advance(7 * time.Second)
	s.SelectQuestion(1)
	clk.Advance(3 * time.Second)
	att, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if got := att.Answers[0].TimeSpentSeconds; got != 7 {
		t.Errorf("question 0 time = %d, want 7", got)
	}
	if got := att.Answers[1].TimeSpentSeconds; got != 3 {
		t.Errorf("question 1 time = %d, want 3", got)
	}
	if att.CompletedAt == nil || !att.CompletedAt.Equal(clk.Now()) {
		t.Errorf("completedAt = %v, want %v", att.CompletedAt, clk.Now())
	}
}

func TestMalformedQuestionDegradesNotFails(t *testing.T) {
	payload := testPayload(true)
	payload.Questions[0].Content = json.RawMessage(`{"broken`)

	s := newTestSession(t, Config{Payload: payload})
	// the degraded question rejects answers but the session still runs
	if err := s.SetAnswerFor(payload.Questions[0].ID, model.TextValue("a")); err == nil {
		t.Error("degraded question must reject answers")
	}
	if err := s.SetAnswerFor(payload.Questions[2].ID, model.TextValue("b")); err != nil {
		t.Errorf("healthy question rejected: %v", err)
	}
}
