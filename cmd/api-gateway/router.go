package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarbridge-api/internal/handler"
	"github.com/noah-isme/scholarbridge-api/internal/middleware"
	"github.com/noah-isme/scholarbridge-api/internal/models"
	"github.com/noah-isme/scholarbridge-api/pkg/config"
	"github.com/noah-isme/scholarbridge-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/scholarbridge-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/scholarbridge-api/pkg/middleware/requestid"
)

type routerDeps struct {
	auth         *handler.AuthHandler
	navigation   *handler.NavigationHandler
	activities   *handler.ActivityHandler
	certificates *handler.CertificateHandler
	goals        *handler.GoalHandler
	events       *handler.EventHandler
	achievements *handler.AchievementHandler
	dashboard    *handler.DashboardHandler
	files        *handler.FileHandler
	health       *handler.HealthHandler
	live         *handler.LiveHandler

	verifier middleware.TokenVerifier
	audit    middleware.AuditRecorder
	metrics  middleware.RequestObserver
}

func newRouter(cfg *config.Config, logr *zap.Logger, d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(d.metrics))

	r.GET("/health", d.health.Health)
	r.GET("/ready", d.health.Ready)
	r.GET("/metrics", d.health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(d.audit, logr, action, resource)
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/live", d.live.Serve)
	api.GET("/files/:token", d.files.Download)
	api.GET("/navigation/resolve", d.navigation.Resolve)

	auth := api.Group("/auth")
	auth.POST("/register", d.auth.Register)
	auth.POST("/login", d.auth.Login)
	auth.POST("/refresh", d.auth.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(d.verifier))
	secured.GET("/auth/me", d.auth.Me)
	secured.POST("/auth/logout", d.auth.Logout)
	secured.POST("/auth/change-password", d.auth.ChangePassword)

	student := secured.Group("")
	student.Use(middleware.RequireRoles(models.RoleStudent))
	student.GET("/dashboard", d.dashboard.Summary)

	student.GET("/activities", d.activities.List)
	student.GET("/activities/export", d.activities.Export)
	student.POST("/activities", audit(models.AuditActionCreate, "activity"), d.activities.Create)
	student.PUT("/activities/:id", audit(models.AuditActionUpdate, "activity"), d.activities.Update)
	student.DELETE("/activities/:id", audit(models.AuditActionDelete, "activity"), d.activities.Delete)

	student.GET("/certificates", d.certificates.List)
	student.POST("/certificates", audit(models.AuditActionCreate, "certificate"), d.certificates.Upload)
	student.DELETE("/certificates/:id", audit(models.AuditActionDelete, "certificate"), d.certificates.Delete)
	student.POST("/certificates/:id/retry-delete", audit(models.AuditActionDelete, "certificate"), d.certificates.RetryDelete)

	student.GET("/goals", d.goals.List)
	student.POST("/goals", audit(models.AuditActionCreate, "goal"), d.goals.Create)
	student.PUT("/goals/:id", audit(models.AuditActionUpdate, "goal"), d.goals.Update)
	student.DELETE("/goals/:id", audit(models.AuditActionDelete, "goal"), d.goals.Delete)

	student.GET("/events", d.events.List)
	student.POST("/events", audit(models.AuditActionCreate, "event"), d.events.Create)

	student.GET("/achievements", d.achievements.List)
	student.POST("/achievements", audit(models.AuditActionCreate, "achievement"), d.achievements.Create)

	teacher := secured.Group("/teacher")
	teacher.Use(middleware.RequireRoles(models.RoleTeacher))
	teacher.GET("/certificates", d.certificates.TeacherList)
	teacher.GET("/achievements", d.achievements.List)

	return r
}
