package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"time"

	"github.com/assessly/assessly-backend/internal/config"
	"github.com/assessly/assessly-backend/internal/grading"
	"github.com/assessly/assessly-backend/internal/model"
	"github.com/assessly/assessly-backend/internal/qtype"
	"github.com/assessly/assessly-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Domain errors.
var (
	ErrAssessmentNotAvailable = errors.New("assessment is not available")
	ErrAttemptNotFound        = errors.New("no active attempt")
	ErrAttemptFinished        = errors.New("attempt is already finished")
	ErrMaxAttemptsReached     = errors.New("maximum attempts reached for this assessment")
)

// answerJob is the persist_answers_queue item shape. The autosave worker
// decodes the same fields.
type answerJob struct {
	AttemptID    string `json:"attempt_id"`
	AssessmentID string `json:"assessment_id"`
	UserID       string `json:"user_id"`
	QuestionID   string `json:"question_id"`
	Value        string `json:"value"`
}

// violationJob is the persist_violations_queue item shape.
type violationJob struct {
	AttemptID string `json:"attempt_id"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Details   string `json:"details"`
}

// finalizeJob is the finalize_attempts_queue item shape: the full grading
// outcome plus the graded answers, so the worker needs no further reads.
type finalizeJob struct {
	AttemptID        string                 `json:"attempt_id"`
	AssessmentID     string                 `json:"assessment_id"`
	UserID           string                 `json:"user_id"`
	Status           string                 `json:"status"`
	CompletedAt      int64                  `json:"completed_at"`
	TimeSpentSeconds int                    `json:"time_spent_seconds"`
	Score            *float64               `json:"score"`
	Passed           *bool                  `json:"passed"`
	Answers          []finalizeJobAnswer    `json:"answers"`
	Violations       []finalizeJobViolation `json:"violations,omitempty"`
}

type finalizeJobAnswer struct {
	QuestionID       string   `json:"question_id"`
	Value            string   `json:"value"`
	Score            *float64 `json:"score"`
	TimeSpentSeconds int      `json:"time_spent_seconds"`
}

type finalizeJobViolation struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Details   string `json:"details"`
}

// AttemptService handles the student attempt lifecycle: start, autosave,
// violation logging, state reload and terminal submission with grading.
type AttemptService struct {
	attemptRepo    *repository.AttemptRepository
	assessmentRepo *repository.AssessmentRepository
	assessments    *AssessmentService
	rdb            *redis.Client
	grader         *grading.Grader
	log            zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attemptRepo *repository.AttemptRepository,
	assessmentRepo *repository.AssessmentRepository,
	assessments *AssessmentService,
	rdb *redis.Client,
	grader *grading.Grader,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attemptRepo:    attemptRepo,
		assessmentRepo: assessmentRepo,
		assessments:    assessments,
		rdb:            rdb,
		grader:         grader,
		log:            log.With().Str("component", "attempt_service").Logger(),
	}
}

// LobbyStatus represents the concrete state of an assessment in the lobby.
type LobbyStatus string

const (
	LobbyStatusAvailable  LobbyStatus = "AVAILABLE"
	LobbyStatusInProgress LobbyStatus = "IN_PROGRESS"
	LobbyStatusCompleted  LobbyStatus = "COMPLETED"
	LobbyStatusExhausted  LobbyStatus = "EXHAUSTED"
)

// LobbyAssessment is an assessment as displayed in the student lobby.
type LobbyAssessment struct {
	model.Assessment
	LobbyStatus   LobbyStatus          `json:"lobby_status"`
	AttemptStatus *model.AttemptStatus `json:"attempt_status,omitempty"`
	LastScore     *float64             `json:"last_score,omitempty"`
	AttemptsUsed  int                  `json:"attempts_used"`
}

// GetLobby returns published assessments with the student's attempt status
// overlaid.
func (s *AttemptService) GetLobby(ctx context.Context, userID uuid.UUID) ([]LobbyAssessment, error) {
	published, err := s.assessmentRepo.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("list published: %w", err)
	}

	attempts, _, err := s.attemptRepo.ListByUserPaginated(ctx, userID, 500, 0)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	latest := make(map[uuid.UUID]*model.Attempt, len(attempts))
	counts := make(map[uuid.UUID]int, len(attempts))
	for i := range attempts {
		a := &attempts[i]
		counts[a.AssessmentID]++
		if prev, ok := latest[a.AssessmentID]; !ok || a.StartedAt.After(prev.StartedAt) {
			latest[a.AssessmentID] = a
		}
	}

	lobby := make([]LobbyAssessment, 0, len(published))
	for i := range published {
		a := published[i]
		entry := LobbyAssessment{Assessment: a, AttemptsUsed: counts[a.ID]}

		if att, ok := latest[a.ID]; ok {
			entry.AttemptStatus = &att.Status
			entry.LastScore = att.Score
			if att.Status == model.AttemptStatusInProgress {
				entry.LobbyStatus = LobbyStatusInProgress
			} else if a.Settings.MaxAttempts > 0 && counts[a.ID] >= a.Settings.MaxAttempts {
				entry.LobbyStatus = LobbyStatusExhausted
			} else {
				entry.LobbyStatus = LobbyStatusCompleted
			}
		} else {
			entry.LobbyStatus = LobbyStatusAvailable
		}

		lobby = append(lobby, entry)
	}
	return lobby, nil
}

// Start begins an attempt. Idempotent: an existing IN_PROGRESS attempt is
// returned as-is with its cached start time refreshed, so a page reload
// never spawns a parallel attempt or resets the clock.
func (s *AttemptService) Start(ctx context.Context, assessmentID, userID uuid.UUID, ip, userAgent string) (*model.Attempt, error) {
	a, err := s.assessmentRepo.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	if a.Status != model.AssessmentStatusPublished {
		return nil, ErrAssessmentNotAvailable
	}

	existing, err := s.attemptRepo.GetActive(ctx, assessmentID, userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing attempt: %w", err)
	}
	if existing != nil {
		_ = s.rdb.Set(ctx, config.CacheKey.AttemptStartKey(assessmentID.String(), userID.String()), existing.StartedAt.Unix(), 0)
		return existing, nil
	}

	if a.Settings.MaxAttempts > 0 {
		used, err := s.attemptRepo.CountByUser(ctx, assessmentID, userID)
		if err != nil {
			return nil, fmt.Errorf("count attempts: %w", err)
		}
		if used >= a.Settings.MaxAttempts {
			return nil, ErrMaxAttemptsReached
		}
	}

	attempt := &model.Attempt{
		AssessmentID: assessmentID,
		UserID:       userID,
		StartedAt:    time.Now(),
		Status:       model.AttemptStatusInProgress,
		IPAddress:    ip,
		UserAgent:    userAgent,
	}
	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	// Cache the start time so the hot path never hits PostgreSQL. Use
	// attempt.StartedAt.Unix() to keep DB and Redis perfectly synced.
	startKey := config.CacheKey.AttemptStartKey(assessmentID.String(), userID.String())
	if err := s.rdb.Set(ctx, startKey, attempt.StartedAt.Unix(), 0).Err(); err != nil {
		// The fallback in GetState self-heals a missing key.
		s.log.Warn().Err(err).Msg("Failed to cache start time")
	}

	return attempt, nil
}

// VerifyActiveAttempt returns the student's IN_PROGRESS attempt or
// ErrAttemptNotFound.
func (s *AttemptService) VerifyActiveAttempt(ctx context.Context, assessmentID, userID uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.GetActive(ctx, assessmentID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	return attempt, nil
}

// GetPaper returns the sanitized paper for the student's active attempt.
// When the assessment enables shuffleQuestions the questions come back in
// a per-attempt order, stable across reloads and reconnects.
func (s *AttemptService) GetPaper(ctx context.Context, assessmentID, userID uuid.UUID) (*model.AssessmentPayload, error) {
	attempt, err := s.VerifyActiveAttempt(ctx, assessmentID, userID)
	if err != nil {
		return nil, err
	}

	payload, err := s.assessments.GetPayload(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	settings, err := s.assessments.GetSettings(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	payload.Questions = orderQuestions(payload.Questions, settings.ShuffleQuestions, attempt.ID)
	return payload, nil
}

// orderQuestions returns the paper order for one attempt: the authored
// order, or a shuffle seeded from the attempt id so every reload of the
// same attempt sees the same sequence.
func orderQuestions(questions []model.QuestionForStudent, shuffle bool, attemptID uuid.UUID) []model.QuestionForStudent {
	out := make([]model.QuestionForStudent, len(questions))
	copy(out, questions)
	if !shuffle {
		return out
	}

	h := fnv.New64a()
	h.Write(attemptID[:])
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// GetState rebuilds the reload view of an in-progress attempt: the
// autosaved answers plus the server-computed remaining time. Remaining
// time is anchored to the original start, never reset by a reload.
func (s *AttemptService) GetState(ctx context.Context, assessmentID, userID uuid.UUID) (*model.AttemptState, error) {
	attempt, err := s.VerifyActiveAttempt(ctx, assessmentID, userID)
	if err != nil {
		return nil, err
	}

	// 1. Autosaved answers from the Redis hash.
	answersKey := config.CacheKey.AttemptAnswersKey(assessmentID.String(), userID.String())
	raw, err := s.rdb.HGetAll(ctx, answersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("get autosaved answers: %w", err)
	}
	answers := make(map[string]model.AnswerValue, len(raw))
	for qid, encoded := range raw {
		var v model.AnswerValue
		if err := json.Unmarshal([]byte(encoded), &v); err != nil {
			s.log.Warn().Str("question_id", qid).Msg("Dropping malformed autosaved answer")
			continue
		}
		answers[qid] = v
	}

	// 2. Duration, with DB fallback + self-heal.
	durationMinutes, err := s.getDuration(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	// 3. Start time, with DB fallback + self-heal.
	startTimeUnix, err := s.getStartTime(ctx, assessmentID, userID, attempt)
	if err != nil {
		return nil, err
	}

	// 4. Remaining time.
	endTime := time.Unix(startTimeUnix, 0).Add(time.Duration(durationMinutes) * time.Minute)
	remaining := time.Until(endTime)
	if remaining < 0 {
		remaining = 0
	}

	return &model.AttemptState{
		AssessmentID:     assessmentID,
		AttemptID:        attempt.ID,
		AutosavedAnswers: answers,
		RemainingSeconds: remaining.Seconds(),
	}, nil
}

func (s *AttemptService) getDuration(ctx context.Context, assessmentID uuid.UUID) (int, error) {
	durationStr, err := s.rdb.Get(ctx, config.CacheKey.AssessmentDurationKey(assessmentID.String())).Result()
	if errors.Is(err, redis.Nil) {
		a, dbErr := s.assessmentRepo.GetByID(ctx, assessmentID)
		if dbErr != nil {
			return 0, fmt.Errorf("duration not found in cache or db: %w", dbErr)
		}
		_ = s.rdb.Set(ctx, config.CacheKey.AssessmentDurationKey(assessmentID.String()), strconv.Itoa(a.DurationMinutes), 0)
		return a.DurationMinutes, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get duration: %w", err)
	}
	minutes, err := strconv.Atoi(durationStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration format in cache: %w", err)
	}
	return minutes, nil
}

func (s *AttemptService) getStartTime(ctx context.Context, assessmentID, userID uuid.UUID, attempt *model.Attempt) (int64, error) {
	startKey := config.CacheKey.AttemptStartKey(assessmentID.String(), userID.String())
	val, err := s.rdb.Get(ctx, startKey).Result()

	if errors.Is(err, redis.Nil) {
		// Cache miss (evicted, or Redis restarted). The attempt row is the
		// source of truth; self-heal so the next read is fast.
		startUnix := attempt.StartedAt.Unix()
		_ = s.rdb.Set(ctx, startKey, startUnix, 0)
		return startUnix, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get start time: %w", err)
	}

	startUnix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid start time format in cache: %w", err)
	}
	return startUnix, nil
}

// SaveAnswer validates a submitted value against the question's type and
// autosaves it: Redis hash now, PostgreSQL via the persist queue. A value
// that fails validation is rejected without touching the stored answer.
func (s *AttemptService) SaveAnswer(ctx context.Context, assessmentID, userID, questionID uuid.UUID, value model.AnswerValue) error {
	attempt, err := s.VerifyActiveAttempt(ctx, assessmentID, userID)
	if err != nil {
		return err
	}

	entryRaw, err := s.rdb.HGet(ctx, config.CacheKey.AssessmentKeyKey(assessmentID.String()), questionID.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("question %s is not part of this assessment", questionID)
		}
		return fmt.Errorf("get key entry: %w", err)
	}
	var entry answerKeyEntry
	if err := json.Unmarshal([]byte(entryRaw), &entry); err != nil {
		return fmt.Errorf("unmarshal key entry: %w", err)
	}

	variant, err := qtype.Parse(entry.Type, entry.Content)
	if err != nil {
		variant = qtype.Unsupported{Tag: string(entry.Type)}
	}
	if err := variant.ValidateAnswer(value); err != nil {
		return err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}

	answersKey := config.CacheKey.AttemptAnswersKey(assessmentID.String(), userID.String())
	if err := s.rdb.HSet(ctx, answersKey, questionID.String(), string(encoded)).Err(); err != nil {
		return fmt.Errorf("autosave answer: %w", err)
	}

	job, err := json.Marshal(answerJob{
		AttemptID:    attempt.ID.String(),
		AssessmentID: assessmentID.String(),
		UserID:       userID.String(),
		QuestionID:   questionID.String(),
		Value:        string(encoded),
	})
	if err != nil {
		return err
	}
	if err := s.rdb.LPush(ctx, config.WorkerKey.PersistAnswersQueue, job).Err(); err != nil {
		// Redis hash still holds the value; finalize persists it anyway.
		s.log.Warn().Err(err).Msg("Failed to enqueue answer persist job")
	}
	return nil
}

// RecordViolation logs an integrity event if the assessment's security
// settings call for it. Returns true when the event was recorded.
// Tab-switch events are always recorded; right-click and fullscreen-exit
// only when the matching lockdown flag is enabled.
func (s *AttemptService) RecordViolation(ctx context.Context, assessmentID, userID uuid.UUID, vtype model.ViolationType, details string) (bool, error) {
	attempt, err := s.VerifyActiveAttempt(ctx, assessmentID, userID)
	if err != nil {
		return false, err
	}

	settings, err := s.assessments.GetSettings(ctx, assessmentID)
	if err != nil {
		return false, err
	}

	switch vtype {
	case model.ViolationTabSwitch:
		// Always recorded.
	case model.ViolationRightClick:
		if !settings.BrowserSecurity.BlockRightClick {
			return false, nil
		}
	case model.ViolationFullscreenExit:
		if !settings.BrowserSecurity.FullScreen {
			return false, nil
		}
	default:
		return false, fmt.Errorf("unknown violation type %q", vtype)
	}

	job, err := json.Marshal(violationJob{
		AttemptID: attempt.ID.String(),
		Type:      string(vtype),
		Timestamp: time.Now().Unix(),
		Details:   details,
	})
	if err != nil {
		return false, err
	}
	if err := s.rdb.LPush(ctx, config.WorkerKey.PersistViolationsQueue, job).Err(); err != nil {
		return false, fmt.Errorf("enqueue violation: %w", err)
	}
	return true, nil
}

// Finish submits or abandons the active attempt: grades the autosaved
// answers against the cached answer key and enqueues the finalize job.
// The graded attempt is returned immediately; the worker persists it.
func (s *AttemptService) Finish(ctx context.Context, assessmentID, userID uuid.UUID, status model.AttemptStatus) (*model.Attempt, *grading.Summary, error) {
	if !status.Terminal() {
		return nil, nil, fmt.Errorf("status %s is not terminal", status)
	}

	attempt, err := s.VerifyActiveAttempt(ctx, assessmentID, userID)
	if err != nil {
		return nil, nil, err
	}

	answers, err := s.loadAutosavedAnswers(ctx, assessmentID, userID)
	if err != nil {
		return nil, nil, err
	}

	attempt.Answers = answers
	return s.finalize(ctx, attempt, status, time.Now())
}

// loadAutosavedAnswers decodes the attempt's Redis autosave hash.
// Malformed entries are dropped, not fatal.
func (s *AttemptService) loadAutosavedAnswers(ctx context.Context, assessmentID, userID uuid.UUID) ([]model.AttemptAnswer, error) {
	answersKey := config.CacheKey.AttemptAnswersKey(assessmentID.String(), userID.String())
	raw, err := s.rdb.HGetAll(ctx, answersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("get autosaved answers: %w", err)
	}

	answers := make([]model.AttemptAnswer, 0, len(raw))
	for qidStr, encoded := range raw {
		qid, err := uuid.Parse(qidStr)
		if err != nil {
			continue
		}
		var v model.AnswerValue
		if err := json.Unmarshal([]byte(encoded), &v); err != nil {
			s.log.Warn().Str("question_id", qidStr).Msg("Dropping malformed autosaved answer")
			continue
		}
		answers = append(answers, model.AttemptAnswer{QuestionID: qid, Value: v})
	}
	return answers, nil
}

// ReapExpired finalizes IN_PROGRESS attempts whose deadline passed more
// than the grace window ago, grading whatever was autosaved. Safety net
// for attempts whose connection died without a server-side timer firing:
// the student still gets a graded TIMED_OUT result. The terminal write
// happens in the finalize worker under its IN_PROGRESS guard, so racing
// a late submit cannot finalize twice.
func (s *AttemptService) ReapExpired(ctx context.Context, grace time.Duration) (int, error) {
	stale, err := s.attemptRepo.ListStale(ctx, grace)
	if err != nil {
		return 0, fmt.Errorf("list stale attempts: %w", err)
	}

	reaped := 0
	for i := range stale {
		attempt := &stale[i]

		answers, err := s.loadAutosavedAnswers(ctx, attempt.AssessmentID, attempt.UserID)
		if err != nil {
			s.log.Warn().Err(err).
				Str("attempt_id", attempt.ID.String()).
				Msg("Skipping stale attempt, autosave read failed")
			continue
		}
		attempt.Answers = answers

		durationMinutes, err := s.getDuration(ctx, attempt.AssessmentID)
		if err != nil {
			s.log.Warn().Err(err).
				Str("attempt_id", attempt.ID.String()).
				Msg("Skipping stale attempt, duration unavailable")
			continue
		}
		deadline := attempt.StartedAt.Add(time.Duration(durationMinutes) * time.Minute)

		if _, _, err := s.finalize(ctx, attempt, model.AttemptStatusTimedOut, deadline); err != nil {
			s.log.Error().Err(err).
				Str("attempt_id", attempt.ID.String()).
				Msg("Stale attempt finalize failed")
			continue
		}
		reaped++
	}
	return reaped, nil
}

// SaveAttempt persists an attempt finished by a live delivery session.
// Implements the session sink: the session carries its own answers and
// violations, so no Redis reads are needed. When a DB attempt row already
// exists for the student (started over HTTP) it is finalized under that
// row's ID.
func (s *AttemptService) SaveAttempt(ctx context.Context, attempt *model.Attempt) error {
	existing, err := s.attemptRepo.GetActive(ctx, attempt.AssessmentID, attempt.UserID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check attempt row: %w", err)
	}
	if existing != nil {
		attempt.ID = existing.ID
	} else {
		row := &model.Attempt{
			ID:           attempt.ID,
			AssessmentID: attempt.AssessmentID,
			UserID:       attempt.UserID,
			StartedAt:    attempt.StartedAt,
			Status:       model.AttemptStatusInProgress,
			IPAddress:    attempt.IPAddress,
			UserAgent:    attempt.UserAgent,
		}
		if err := s.attemptRepo.Create(ctx, row); err != nil {
			return fmt.Errorf("create attempt row: %w", err)
		}
		attempt.ID = row.ID
	}

	completedAt := time.Now()
	if attempt.CompletedAt != nil {
		completedAt = *attempt.CompletedAt
	}
	_, _, err = s.finalize(ctx, attempt, attempt.Status, completedAt)
	return err
}

// finalize grades the attempt and enqueues the persistence job.
func (s *AttemptService) finalize(ctx context.Context, attempt *model.Attempt, status model.AttemptStatus, completedAt time.Time) (*model.Attempt, *grading.Summary, error) {
	assessmentID := attempt.AssessmentID

	key, err := s.assessments.GetAnswerKey(ctx, assessmentID)
	if err != nil {
		return nil, nil, fmt.Errorf("get answer key: %w", err)
	}
	settings, err := s.assessments.GetSettings(ctx, assessmentID)
	if err != nil {
		return nil, nil, fmt.Errorf("get settings: %w", err)
	}

	// Unanswered questions still count toward the available total, so pad
	// them in before scoring.
	answered := make(map[uuid.UUID]bool, len(attempt.Answers))
	for _, a := range attempt.Answers {
		answered[a.QuestionID] = true
	}
	for _, q := range key {
		if !answered[q.ID] {
			attempt.Answers = append(attempt.Answers, model.AttemptAnswer{QuestionID: q.ID})
		}
	}

	graded, summary := s.grader.ScoreAttempt(key, attempt.Answers, settings.PassingScore)

	durationMinutes, err := s.getDuration(ctx, assessmentID)
	if err != nil {
		return nil, nil, err
	}
	limit := durationMinutes * 60

	timeSpent := attempt.TimeSpentSeconds
	if timeSpent == 0 {
		timeSpent = int(completedAt.Sub(attempt.StartedAt).Seconds())
	}
	if timeSpent > limit {
		timeSpent = limit
	}
	if timeSpent < 0 {
		timeSpent = 0
	}

	score := summary.Percentage
	passed := summary.Passed

	attempt.Status = status
	attempt.CompletedAt = &completedAt
	attempt.TimeSpentSeconds = timeSpent
	attempt.Answers = graded
	attempt.Score = &score
	attempt.Passed = &passed

	job := finalizeJob{
		AttemptID:        attempt.ID.String(),
		AssessmentID:     assessmentID.String(),
		UserID:           attempt.UserID.String(),
		Status:           string(status),
		CompletedAt:      completedAt.Unix(),
		TimeSpentSeconds: timeSpent,
		Score:            attempt.Score,
		Passed:           attempt.Passed,
	}
	for _, ans := range graded {
		encoded, err := json.Marshal(ans.Value)
		if err != nil {
			continue
		}
		job.Answers = append(job.Answers, finalizeJobAnswer{
			QuestionID:       ans.QuestionID.String(),
			Value:            string(encoded),
			Score:            ans.Score,
			TimeSpentSeconds: ans.TimeSpentSeconds,
		})
	}
	for _, v := range attempt.Violations {
		job.Violations = append(job.Violations, finalizeJobViolation{
			Type:      string(v.Type),
			Timestamp: v.Timestamp.Unix(),
			Details:   v.Details,
		})
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal finalize job: %w", err)
	}
	if err := s.rdb.LPush(ctx, config.WorkerKey.FinalizeAttemptsQueue, raw).Err(); err != nil {
		return nil, nil, fmt.Errorf("enqueue finalize job: %w", err)
	}

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("status", string(status)).
		Float64("score", score).
		Msg("Attempt finalized")

	return attempt, &summary, nil
}

// GetResult returns a finished attempt with its answers and violations.
// Students may only read their own attempts; staff pass requireOwner=false.
func (s *AttemptService) GetResult(ctx context.Context, attemptID uuid.UUID, userID uuid.UUID, requireOwner bool) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if requireOwner && attempt.UserID != userID {
		return nil, ErrAttemptNotFound
	}

	answers, err := s.attemptRepo.ListAnswers(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	attempt.Answers = answers

	violations, err := s.attemptRepo.ListViolations(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	attempt.Violations = violations

	return attempt, nil
}

// ListResults returns the attempts on an assessment for the results view.
func (s *AttemptService) ListResults(ctx context.Context, assessmentID uuid.UUID, page, perPage int) ([]model.Attempt, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return s.attemptRepo.ListByAssessmentPaginated(ctx, assessmentID, perPage, (page-1)*perPage)
}

// ListHistory returns one student's attempt history.
func (s *AttemptService) ListHistory(ctx context.Context, userID uuid.UUID, page, perPage int) ([]model.Attempt, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return s.attemptRepo.ListByUserPaginated(ctx, userID, perPage, (page-1)*perPage)
}
