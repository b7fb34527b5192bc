package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/examsecure/internal/config"
	"github.com/stemsi/examsecure/internal/handler"
	"github.com/stemsi/examsecure/internal/middleware"
	"github.com/stemsi/examsecure/internal/model"
	"github.com/stemsi/examsecure/internal/response"
	"github.com/stemsi/examsecure/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	StudentMgmt   *handler.StudentManagementHandler
	Exam          *handler.ExamHandler
	Roster        *handler.RosterHandler
	WS            *handler.WSHandler
	Monitor       *handler.MonitorHandler
	Dashboard     *handler.DashboardHandler
	Metrics       http.Handler
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

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	if handlers.Metrics != nil {
		router.GET("/metrics", gin.WrapH(handlers.Metrics))
	}

	// 30 requests per minute per IP on credential endpoints.
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group ─────────────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", authLimiter.Middleware(), handlers.Auth.Login)
		auth.POST("/register", authLimiter.Middleware(), handlers.Auth.Register)

		student := auth.Group("/student")
		student.Use(middleware.RequireStudentJWT(authService), middleware.CheckSingleDeviceSession(authService))
		{
			student.GET("/me", handlers.Auth.Me)
			student.PUT("/password", handlers.Auth.ChangePassword)
			student.POST("/logout", handlers.Auth.Logout)
		}

		admin := auth.Group("/admin")
		admin.Use(middleware.RequireAdminJWT(authService), middleware.CheckSingleDeviceSession(authService))
		{
			admin.GET("/me", handlers.Auth.Me)
			admin.PUT("/password", handlers.Auth.ChangePassword)
			admin.POST("/logout", handlers.Auth.Logout)
		}
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
		middleware.CacheControl("no-store"),
	)
	{
		studentAPI.POST("/exams/lookup", handlers.StudentPortal.LookupExam)
		studentAPI.POST("/attempts", handlers.StudentPortal.SubmitAttempt)
		studentAPI.GET("/attempts", handlers.StudentPortal.ListAttempts)
		studentAPI.GET("/attempts/:id", handlers.StudentPortal.GetAttempt)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireStudentWSAuth(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		ws.GET("/student/exams/:id/stream", handlers.WS.ExamStream)
	}

	// ─── 4. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(
		middleware.RequireAdminJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		adminAPI.GET("/dashboard",
			middleware.RequireAnyPermission(model.PermissionExamsRead, model.PermissionResultsRead),
			handlers.Dashboard.GetDashboardData,
		)

		// Exam authoring
		adminAPI.GET("/exams",
			middleware.RequirePermission(model.PermissionExamsRead),
			handlers.Exam.ListExams,
		)
		adminAPI.POST("/exams",
			middleware.RequirePermission(model.PermissionExamsWrite),
			handlers.Exam.CreateExam,
		)
		adminAPI.GET("/exams/:id",
			middleware.RequirePermission(model.PermissionExamsRead),
			handlers.Exam.GetExam,
		)
		adminAPI.PUT("/exams/:id",
			middleware.RequirePermission(model.PermissionExamsWrite),
			handlers.Exam.UpdateExam,
		)
		adminAPI.DELETE("/exams/:id",
			middleware.RequirePermission(model.PermissionExamsWrite),
			handlers.Exam.DeleteExam,
		)

		// Assignments
		adminAPI.GET("/exams/:id/assignments",
			middleware.RequirePermission(model.PermissionStudentsRead),
			handlers.Exam.ListAssignments,
		)
		adminAPI.POST("/exams/:id/assignments",
			middleware.RequirePermission(model.PermissionStudentsWrite),
			handlers.Exam.AssignStudent,
		)
		adminAPI.PUT("/exams/:id/assignments",
			middleware.RequirePermission(model.PermissionStudentsWrite),
			handlers.Exam.ReplaceAssignments,
		)

		// Results and proctoring
		adminAPI.GET("/results",
			middleware.RequirePermission(model.PermissionResultsRead),
			handlers.Exam.ListResults,
		)
		adminAPI.GET("/exams/:id/students/:student_id/violations",
			middleware.RequireAnyPermission(model.PermissionMonitor, model.PermissionResultsRead),
			handlers.Exam.ViolationHistory,
		)
		adminAPI.GET("/exams/:id/monitor",
			middleware.RequirePermission(model.PermissionMonitor),
			handlers.Monitor.MonitorExamSSE,
		)

		// Roster
		adminAPI.GET("/roster",
			middleware.RequirePermission(model.PermissionStudentsRead),
			handlers.Roster.List,
		)
		adminAPI.GET("/roster/check",
			middleware.RequirePermission(model.PermissionStudentsRead),
			handlers.Roster.Check,
		)
		adminAPI.GET("/roster/assignments",
			middleware.RequirePermission(model.PermissionStudentsRead),
			handlers.Roster.StudentAssignments,
		)
		adminAPI.PUT("/roster/assignments",
			middleware.RequirePermission(model.PermissionStudentsWrite),
			handlers.Roster.ReplaceStudentAssignments,
		)
		adminAPI.POST("/roster",
			middleware.RequirePermission(model.PermissionStudentsWrite),
			handlers.Roster.Add,
		)
		adminAPI.DELETE("/roster/:id",
			middleware.RequirePermission(model.PermissionStudentsWrite),
			handlers.Roster.Remove,
		)

		// Student accounts
		adminAPI.GET("/students",
			middleware.RequirePermission(model.PermissionStudentsRead),
			handlers.StudentMgmt.ListStudents,
		)
		adminAPI.PATCH("/students/:id/status",
			middleware.RequirePermission(model.PermissionStudentsWrite),
			handlers.StudentMgmt.UpdateStatus,
		)
		adminAPI.DELETE("/students/:id",
			middleware.RequirePermission(model.PermissionStudentsWrite),
			handlers.StudentMgmt.DeleteStudent,
		)
	}

	return router
}
