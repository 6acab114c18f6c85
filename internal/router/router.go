package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/examgate/examgate-backend/internal/config"
	"github.com/examgate/examgate-backend/internal/handler"
	"github.com/examgate/examgate-backend/internal/middleware"
	"github.com/examgate/examgate-backend/internal/model"
	"github.com/examgate/examgate-backend/internal/response"
	"github.com/examgate/examgate-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Subject  *handler.SubjectHandler
	Question *handler.QuestionHandler
	Exam     *handler.ExamHandler
	Session  *handler.SessionHandler
	Attempt  *handler.AttemptHandler
	Proctor  *handler.ProctorHandler
	WS       *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

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

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Auth group (public login plus authenticated profile).
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.GET("/me", middleware.RequireJWT(authService), handlers.Auth.Me)
	}

	// Admin group.
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireJWT(authService), middleware.RequireRole(model.RoleAdmin))
	{
		adminAPI.DELETE("/logins/:userId", handlers.Auth.ResetLogin)
	}

	// Teacher group: authoring and session administration.
	teacherAPI := router.Group("/api/v1")
	teacherAPI.Use(middleware.RequireJWT(authService), middleware.RequireRole(model.RoleTeacher))
	{
		teacherAPI.POST("/subjects", handlers.Subject.Create)
		teacherAPI.GET("/subjects", handlers.Subject.List)
		teacherAPI.GET("/subjects/:subjectId", handlers.Subject.Get)
		teacherAPI.POST("/subjects/:subjectId/chapters", handlers.Subject.CreateChapter)
		teacherAPI.GET("/subjects/:subjectId/chapters", handlers.Subject.ListChapters)

		teacherAPI.POST("/subjects/:subjectId/questions", handlers.Question.Create)
		teacherAPI.GET("/subjects/:subjectId/chapters/:chapterId/questions", handlers.Question.ListByChapter)
		teacherAPI.GET("/questions/:questionId", handlers.Question.Get)

		teacherAPI.POST("/exams", handlers.Exam.Create)
		teacherAPI.GET("/subjects/:subjectId/exams", handlers.Exam.ListBySubject)
		teacherAPI.GET("/exams/:examId", handlers.Exam.Get)
		teacherAPI.PATCH("/exams/:examId", handlers.Exam.Update)
		teacherAPI.POST("/exams/:examId/sets", handlers.Exam.GenerateSets)
		teacherAPI.GET("/exams/:examId/sets", handlers.Exam.ListSets)
		teacherAPI.GET("/exams/:examId/sets/:setId/questions", handlers.Exam.ListSetQuestions)

		teacherAPI.POST("/sessions", handlers.Session.Create)
		teacherAPI.GET("/sessions", handlers.Session.List)
		teacherAPI.GET("/sessions/:sessionId", handlers.Session.Get)
		teacherAPI.PATCH("/sessions/:sessionId", handlers.Session.Reschedule)
		teacherAPI.POST("/sessions/:sessionId/cancel", handlers.Session.Cancel)
		teacherAPI.DELETE("/sessions/:sessionId", handlers.Session.Delete)
		teacherAPI.PUT("/sessions/:sessionId/proctor", handlers.Session.AssignProctor)
		teacherAPI.DELETE("/sessions/:sessionId/proctor", handlers.Session.UnassignProctor)
		teacherAPI.GET("/proctors", handlers.Session.ListEligibleProctors)
	}

	// Student group. RequireJWT already enforces the single-device check
	// for student tokens.
	studentAPI := router.Group("/api/v1/attempts")
	studentAPI.Use(middleware.RequireJWT(authService), middleware.RequireRole(model.RoleStudent))
	{
		studentAPI.POST("", handlers.Attempt.Start)
		studentAPI.GET("", handlers.Attempt.ListMine)
		studentAPI.GET("/:attemptId/paper", handlers.Attempt.GetPaper)
		studentAPI.PUT("/:attemptId/answers", handlers.Attempt.SetAnswer)
		studentAPI.POST("/:attemptId/answers", handlers.Attempt.AddAnswer)
		studentAPI.DELETE("/:attemptId/answers/:questionId", handlers.Attempt.RemoveAnswer)
		studentAPI.POST("/:attemptId/submit", handlers.Attempt.Submit)
		studentAPI.POST("/:attemptId/violations", handlers.Attempt.ReportViolation)
	}

	// Proctor group. Teachers may proctor their own sessions, so both
	// roles pass the gate; per-session assignment is checked in the service.
	proctorAPI := router.Group("/api/v1/proctoring")
	proctorAPI.Use(middleware.RequireJWT(authService), middleware.RequireRole(model.RoleProctor, model.RoleTeacher))
	{
		proctorAPI.GET("/sessions", handlers.Proctor.MySessions)
		proctorAPI.GET("/sessions/:sessionId/monitor", handlers.Proctor.Monitor)
		proctorAPI.GET("/sessions/:sessionId/violations", handlers.Proctor.ViolationsBySession)
		proctorAPI.POST("/violations", handlers.Proctor.RecordViolation)
		proctorAPI.POST("/attempts/lock", handlers.Proctor.LockAttempt)
		proctorAPI.POST("/attempts/:attemptId/score", handlers.Proctor.ScoreLocked)
		proctorAPI.GET("/attempts/:attemptId/violations", handlers.Proctor.ViolationsByAttempt)
	}

	// WebSocket group. Browsers cannot set an Authorization header on a
	// WebSocket dial, so the token rides in the query string.
	wsGroup := router.Group("/ws/v1")
	wsGroup.Use(middleware.RequireWSAuth(authService), middleware.RequireRole(model.RoleProctor, model.RoleTeacher))
	{
		wsGroup.GET("/proctoring/sessions/:sessionId/monitor", handlers.WS.MonitorStream)
	}

	return router
}
