// Command seed populates a development database with sample accounts,
// one question of every supported type, and a published assessment.
package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/assessly/assessly-backend/internal/config"
	"github.com/assessly/assessly-backend/internal/database"
	"github.com/assessly/assessly-backend/internal/logger"
	"github.com/assessly/assessly-backend/internal/model"
	"github.com/assessly/assessly-backend/internal/repository"
	"github.com/assessly/assessly-backend/internal/service"
)

type seedQuestion struct {
	title   string
	qtype   string
	points  float64
	content interface{}
}

var seedQuestions = []seedQuestion{
	{
		title:  "Capital of France",
		qtype:  "single-choice",
		points: 2,
		content: map[string]interface{}{
			"question": "What is the capital of France?",
			"choices": []map[string]string{
				{"id": "a", "text": "Paris"},
				{"id": "b", "text": "Lyon"},
				{"id": "c", "text": "Marseille"},
			},
			"correctAnswer": "a",
		},
	},
	{
		title:  "Prime numbers",
		qtype:  "multi-response",
		points: 3,
		content: map[string]interface{}{
			"question": "Select every prime number.",
			"choices": []map[string]string{
				{"id": "a", "text": "2"},
				{"id": "b", "text": "4"},
				{"id": "c", "text": "7"},
				{"id": "d", "text": "9"},
			},
			"correctAnswers": []string{"a", "c"},
		},
	},
	{
		title:  "Reflection essay",
		qtype:  "essay",
		points: 5,
		content: map[string]interface{}{
			"question":  "Describe a project you are proud of.",
			"minLength": 100,
			"maxLength": 2000,
		},
	},
	{
		title:  "Deployment order",
		qtype:  "ordered-list",
		points: 3,
		content: map[string]interface{}{
			"question": "Put the release steps in order.",
			"choices": []map[string]string{
				{"id": "build", "text": "Build"},
				{"id": "test", "text": "Test"},
				{"id": "deploy", "text": "Deploy"},
			},
			"correctOrder": []string{"build", "test", "deploy"},
		},
	},
	{
		title:  "Team confidence",
		qtype:  "scale",
		points: 1,
		content: map[string]interface{}{
			"question":  "Rate your agreement.",
			"statement": "I feel confident presenting my work.",
		},
	},
	{
		title:  "Tool familiarity",
		qtype:  "grid",
		points: 2,
		content: map[string]interface{}{
			"question": "Rate your familiarity with each tool.",
			"rows": []map[string]string{
				{"id": "git", "text": "Git"},
				{"id": "sql", "text": "SQL"},
			},
			"columns": []map[string]string{
				{"id": "novice", "text": "Novice"},
				{"id": "comfortable", "text": "Comfortable"},
				{"id": "expert", "text": "Expert"},
			},
		},
	},
}

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	userRepo := repository.NewUserRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	assessmentRepo := repository.NewAssessmentRepository(pool)

	authService := service.NewAuthService(cfg, rdb)
	userService := service.NewUserService(userRepo, authService)
	questionService := service.NewQuestionService(questionRepo)
	assessmentService := service.NewAssessmentService(assessmentRepo, questionRepo, rdb, log)

	// ─── Accounts ──────────────────────────────────────────────────────
	accounts := []model.CreateUserRequest{
		{Email: "admin@assessly.dev", Name: "Admin", Role: model.RoleAdmin, Password: "admin123"},
		{Email: "instructor@assessly.dev", Name: "Ida Instructor", Role: model.RoleInstructor, Password: "teach123"},
		{Email: "student1@assessly.dev", Name: "Sam Student", Role: model.RoleStudent, Password: "learn123"},
		{Email: "student2@assessly.dev", Name: "Sasha Student", Role: model.RoleStudent, Password: "learn123"},
	}

	var instructor *model.User
	for i := range accounts {
		user, err := userService.Create(ctx, &accounts[i])
		if err != nil {
			log.Fatal().Err(err).Str("email", accounts[i].Email).Msg("Failed to create account")
		}
		if user.Role == model.RoleInstructor {
			instructor = user
		}
		fmt.Printf("Created %s account %s\n", user.Role, user.Email)
	}

	// ─── Questions ─────────────────────────────────────────────────────
	category := "general"
	refs := make([]model.AssessmentQuestionInput, 0, len(seedQuestions))
	for _, sq := range seedQuestions {
		raw, err := json.Marshal(sq.content)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to marshal question content")
		}
		q, err := questionService.Create(ctx, &model.CreateQuestionRequest{
			Title:    sq.title,
			Type:     sq.qtype,
			Content:  raw,
			Points:   sq.points,
			Category: category,
			Tags:     []string{"sample"},
		}, instructor.ID)
		if err != nil {
			log.Fatal().Err(err).Str("title", sq.title).Msg("Failed to create question")
		}
		refs = append(refs, model.AssessmentQuestionInput{QuestionID: q.ID, Points: q.Points})
		fmt.Printf("Created %s question %q\n", q.Type, q.Title)
	}

	// ─── Assessment ────────────────────────────────────────────────────
	settings := model.DefaultSettings()
	settings.MaxAttempts = 3
	settings.PassingScore = 60

	assessment, err := assessmentService.Create(ctx, &model.CreateAssessmentRequest{
		Title:           "Onboarding Assessment",
		Description:     "A sample assessment covering every question type.",
		Category:        category,
		Level:           "beginner",
		DurationMinutes: 30,
		Settings:        &settings,
		Tags:            []string{"sample"},
		Questions:       refs,
	}, instructor.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create assessment")
	}

	if err := assessmentService.Publish(ctx, assessment.ID, instructor.ID, false); err != nil {
		log.Fatal().Err(err).Msg("Failed to publish assessment")
	}

	fmt.Printf("Published assessment %q (%s)\n", assessment.Title, assessment.ID)
}
