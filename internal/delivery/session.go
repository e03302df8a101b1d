// Package delivery owns the in-memory lifecycle of one in-progress
// attempt: question focus, the answer set, the countdown, the violation
// log, and the single terminal transition that emits the finished attempt
// to a persistence collaborator.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/assessly/assessly-backend/internal/model"
	"github.com/assessly/assessly-backend/internal/qtype"
)

// Domain errors.
var (
	ErrAttemptFinished = errors.New("attempt already reached a terminal state")
	ErrNoQuestions     = errors.New("assessment payload has no questions")
)

// Sink receives the finished attempt exactly once per terminal
// transition. A failed save leaves the attempt retained in memory; the
// caller re-triggers the submit.
type Sink interface {
	SaveAttempt(ctx context.Context, attempt *model.Attempt) error
}

// Config wires a Session's collaborators.
type Config struct {
	Payload   *model.AssessmentPayload
	UserID    uuid.UUID
	Sink      Sink
	Scheduler Scheduler    // tick source; nil disables the countdown (tests drive Tick)
	Signals   SignalSource // optional integrity signal source
	Clock     func() time.Time
	Logger    zerolog.Logger
	IPAddress string
	UserAgent string

	// RemainingSeconds, when positive, resumes the countdown from that
	// value instead of the full duration. Used on reconnects so a dropped
	// connection never resets the timer.
	RemainingSeconds int
}

// Session is the attempt session controller. All state mutation happens
// through its methods; the countdown and signal callbacks are the only
// asynchronous entry points and both are canceled exactly once when the
// first terminal transition happens.
type Session struct {
	mu sync.Mutex

	payload  *model.AssessmentPayload
	variants []qtype.Variant
	attempt  model.Attempt

	idx       int
	remaining int
	focusedAt time.Time

	terminal  bool
	persisted bool
	emitting  bool

	cancelTick  func()
	unsubscribe func()

	sink  Sink
	clock func() time.Time
	log   zerolog.Logger
}

// NewSession initializes a session from a sanitized assessment payload:
// one empty answer per question in assessment order, remaining time of
// duration×60 seconds, an empty violation list, and a running countdown.
// Questions with malformed or unknown content degrade to the unsupported
// variant instead of failing the whole session.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Payload == nil || cfg.Sink == nil {
		return nil, errors.New("payload and sink are required")
	}
	if len(cfg.Payload.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	now := clock()

	remaining := cfg.Payload.DurationMinutes * 60
	if cfg.RemainingSeconds > 0 && cfg.RemainingSeconds < remaining {
		remaining = cfg.RemainingSeconds
	}

	s := &Session{
		payload:   cfg.Payload,
		remaining: remaining,
		focusedAt: now,
		sink:      cfg.Sink,
		clock:     clock,
		log: cfg.Logger.With().
			Str("component", "delivery_session").
			Str("assessment_id", cfg.Payload.AssessmentID.String()).
			Logger(),
	}

	s.variants = make([]qtype.Variant, len(cfg.Payload.Questions))
	answers := make([]model.AttemptAnswer, len(cfg.Payload.Questions))
	for i, q := range cfg.Payload.Questions {
		v, err := qtype.Parse(q.Type, q.Content)
		if err != nil {
			s.log.Warn().Err(err).Str("question_id", q.ID.String()).Msg("Malformed question content")
			v = qtype.Unsupported{Tag: string(q.Type)}
		}
		s.variants[i] = v
		answers[i] = model.AttemptAnswer{QuestionID: q.ID}
	}

	s.attempt = model.Attempt{
		ID:           uuid.New(),
		AssessmentID: cfg.Payload.AssessmentID,
		UserID:       cfg.UserID,
		StartedAt:    now,
		Status:       model.AttemptStatusInProgress,
		Answers:      answers,
		IPAddress:    cfg.IPAddress,
		UserAgent:    cfg.UserAgent,
		Violations:   []model.Violation{},
	}

	if cfg.Scheduler != nil {
		s.cancelTick = cfg.Scheduler.Schedule(time.Second, s.Tick)
	}
	if cfg.Signals != nil {
		s.unsubscribe = cfg.Signals.Subscribe(s.observe)
	}
	return s, nil
}

// AttemptID returns the attempt identifier assigned at session start.
func (s *Session) AttemptID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt.ID
}

// Status returns the attempt's current status.
func (s *Session) Status() model.AttemptStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt.Status
}

// RemainingSeconds returns the countdown value. It never goes below zero.
func (s *Session) RemainingSeconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// CurrentIndex returns the focused question index.
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx
}

// Answers returns a snapshot copy of the answer set.
func (s *Session) Answers() []model.AttemptAnswer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AttemptAnswer, len(s.attempt.Answers))
	copy(out, s.attempt.Answers)
	return out
}

// Violations returns a snapshot copy of the violation log.
func (s *Session) Violations() []model.Violation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Violation, len(s.attempt.Violations))
	copy(out, s.attempt.Violations)
	return out
}

// SelectQuestion moves focus to the given index and returns the resulting
// index. Out-of-range indexes are clamped. When the assessment disallows
// review, only moves to an adjacent question are honored; anything else
// is a no-op.
func (s *Session) SelectQuestion(index int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminal {
		return s.idx
	}

	if index < 0 {
		index = 0
	}
	if max := len(s.variants) - 1; index > max {
		index = max
	}
	if !s.payload.AllowReview && index != s.idx && index != s.idx-1 && index != s.idx+1 {
		return s.idx
	}
	if index != s.idx {
		s.flushFocusLocked(s.clock())
		s.idx = index
	}
	return s.idx
}

// SetAnswer overwrites the answer value for the focused question. The
// value shape is validated against the question type at this boundary;
// rejected values never mutate the answer set.
func (s *Session) SetAnswer(v model.AnswerValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setAnswerLocked(s.idx, v)
}

// SetAnswerFor overwrites the answer for a specific question id, leaving
// every other answer untouched.
func (s *Session) SetAnswerFor(questionID uuid.UUID, v model.AnswerValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.attempt.Answers {
		if s.attempt.Answers[i].QuestionID == questionID {
			return s.setAnswerLocked(i, v)
		}
	}
	return fmt.Errorf("question %s is not part of this assessment", questionID)
}

func (s *Session) setAnswerLocked(i int, v model.AnswerValue) error {
	if s.terminal {
		return ErrAttemptFinished
	}
	if err := s.variants[i].ValidateAnswer(v); err != nil {
		return err
	}
	s.attempt.Answers[i].Value = v
	return nil
}

// Tick advances the countdown by one second. At zero it stops the timer
// and submits the attempt as timed-out, exactly once. Production sessions
// are ticked by the configured Scheduler; tests call Tick directly.
func (s *Session) Tick() {
	s.mu.Lock()
	if s.terminal || s.remaining == 0 {
		s.mu.Unlock()
		return
	}
	s.remaining--
	if s.remaining > 0 {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if _, err := s.finish(context.Background(), model.AttemptStatusTimedOut); err != nil {
		s.log.Error().Err(err).Msg("Auto-submit persist failed, attempt retained")
	}
}

// observe receives environment signals from the SignalSource and appends
// violations. Strictly observational: it never blocks input, and nothing
// is recorded once the attempt is terminal.
func (s *Session) observe(sig Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminal {
		return
	}
	vt, ok := violationFor(sig, s.payload.BrowserSecurity)
	if !ok {
		return
	}
	s.attempt.Violations = append(s.attempt.Violations, model.Violation{
		Type:      vt,
		Timestamp: s.clock(),
	})
}

// Submit finishes the attempt as completed. Idempotent: after the first
// terminal transition further calls only retry a failed persist, or
// return the finished attempt unchanged.
func (s *Session) Submit(ctx context.Context) (*model.Attempt, error) {
	return s.finish(ctx, model.AttemptStatusCompleted)
}

// Abandon finishes the attempt as abandoned, with the same idempotency
// rule as Submit.
func (s *Session) Abandon(ctx context.Context) (*model.Attempt, error) {
	return s.finish(ctx, model.AttemptStatusAbandoned)
}

func (s *Session) finish(ctx context.Context, status model.AttemptStatus) (*model.Attempt, error) {
	s.mu.Lock()
	if !s.terminal {
		s.transitionLocked(status)
	}
	if s.persisted || s.emitting {
		att := s.snapshotLocked()
		s.mu.Unlock()
		return att, nil
	}
	s.emitting = true
	att := s.snapshotLocked()
	s.mu.Unlock()

	err := s.sink.SaveAttempt(ctx, att)

	s.mu.Lock()
	s.emitting = false
	if err == nil {
		s.persisted = true
	}
	s.mu.Unlock()

	if err != nil {
		return att, fmt.Errorf("save attempt: %w", err)
	}
	return att, nil
}

// transitionLocked performs the single terminal transition: status,
// completion timestamp, total time spent, and cancellation of the
// countdown and the signal subscription.
func (s *Session) transitionLocked(status model.AttemptStatus) {
	s.terminal = true
	now := s.clock()
	s.flushFocusLocked(now)

	s.attempt.Status = status
	s.attempt.CompletedAt = &now

	spent := s.payload.DurationMinutes*60 - s.remaining
	if spent < 0 {
		spent = 0
	}
	s.attempt.TimeSpentSeconds = spent

	s.teardownLocked()
}

// Close cancels the countdown and the signal subscription without
// transitioning the attempt. Safe to call multiple times; mandatory on
// teardown so no callback ever fires against a dead session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
}

func (s *Session) teardownLocked() {
	if s.cancelTick != nil {
		s.cancelTick()
		s.cancelTick = nil
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

func (s *Session) flushFocusLocked(now time.Time) {
	if elapsed := int(now.Sub(s.focusedAt).Seconds()); elapsed > 0 {
		s.attempt.Answers[s.idx].TimeSpentSeconds += elapsed
	}
	s.focusedAt = now
}

func (s *Session) snapshotLocked() *model.Attempt {
	att := s.attempt
	att.Answers = make([]model.AttemptAnswer, len(s.attempt.Answers))
	copy(att.Answers, s.attempt.Answers)
	att.Violations = make([]model.Violation, len(s.attempt.Violations))
	copy(att.Violations, s.attempt.Violations)
	return &att
}
