package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/assessly/assessly-backend/internal/config"
	"github.com/assessly/assessly-backend/internal/handler"
	"github.com/assessly/assessly-backend/internal/middleware"
	"github.com/assessly/assessly-backend/internal/model"
	"github.com/assessly/assessly-backend/internal/response"
	"github.com/assessly/assessly-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	User          *handler.UserHandler
	Question      *handler.QuestionHandler
	Assessment    *handler.AssessmentHandler
	StudentPortal *handler.StudentPortalHandler
	WS            *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)

		// Authenticated profile routes, shared by every role. The
		// role-gated APIs live in the dedicated groups below.
		auth.GET("/me", middleware.RequireAnyJWT(authService), handlers.Auth.Me)
		auth.POST("/logout", middleware.RequireAnyJWT(authService), handlers.Auth.Logout)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.GET("/lobby", handlers.StudentPortal.GetLobby)
		studentAPI.GET("/history", handlers.StudentPortal.GetHistory)
		studentAPI.GET("/results/:attempt_id", handlers.StudentPortal.GetResult)

		studentAPI.POST("/assessments/:assessment_id/start", handlers.StudentPortal.StartAttempt)
		studentAPI.GET("/assessments/:assessment_id/paper", handlers.StudentPortal.GetPaper)
		studentAPI.GET("/assessments/:assessment_id/state", handlers.StudentPortal.GetState)
		studentAPI.POST("/assessments/:assessment_id/answer", handlers.StudentPortal.SaveAnswer)
		studentAPI.POST("/assessments/:assessment_id/violation", handlers.StudentPortal.RecordViolation)
		studentAPI.POST("/assessments/:assessment_id/submit", handlers.StudentPortal.SubmitAttempt)
		studentAPI.POST("/assessments/:assessment_id/abandon", handlers.StudentPortal.AbandonAttempt)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireStudentWSAuth(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		ws.GET("/student/assessments/:assessment_id/attempt", handlers.WS.AttemptChannel)
	}

	// ─── 4. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireStaffJWT(authService))
	{
		// Account management (admin only)
		usersGroup := adminAPI.Group("/users")
		usersGroup.Use(middleware.RequireRole(model.RoleAdmin))
		{
			usersGroup.GET("", handlers.User.List)
			usersGroup.GET("/:id", handlers.User.Get)
			usersGroup.POST("", handlers.User.Create)
			usersGroup.PUT("/:id", handlers.User.Update)
			usersGroup.DELETE("/:id", handlers.User.Delete)
			usersGroup.POST("/:id/reset-session", handlers.Auth.ResetStudentSession)
		}

		// Question bank (admins and instructors)
		adminAPI.GET("/questions", handlers.Question.List)
		adminAPI.GET("/questions/:id", handlers.Question.Get)
		adminAPI.POST("/questions", handlers.Question.Create)
		adminAPI.PUT("/questions/:id", handlers.Question.Update)
		adminAPI.DELETE("/questions/:id", handlers.Question.Delete)

		// Assessment authoring
		adminAPI.GET("/assessments", handlers.Assessment.List)
		adminAPI.GET("/assessments/:id", handlers.Assessment.Get)
		adminAPI.POST("/assessments", handlers.Assessment.Create)
		adminAPI.PUT("/assessments/:id", handlers.Assessment.Update)
		adminAPI.DELETE("/assessments/:id", handlers.Assessment.Delete)
		adminAPI.POST("/assessments/:id/publish", handlers.Assessment.Publish)
		adminAPI.POST("/assessments/:id/archive", handlers.Assessment.Archive)
		adminAPI.POST("/assessments/:id/refresh-cache", handlers.Assessment.RefreshCache)
		adminAPI.GET("/assessments/:id/results", handlers.Assessment.Results)
		adminAPI.GET("/attempts/:attempt_id", handlers.Assessment.GetResult)
	}

	return router
}
