package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-roster-api/api/swagger"
	"github.com/noah-isme/sma-roster-api/internal/handler"
	"github.com/noah-isme/sma-roster-api/internal/middleware"
	"github.com/noah-isme/sma-roster-api/internal/models"
	"github.com/noah-isme/sma-roster-api/internal/permission"
	"github.com/noah-isme/sma-roster-api/internal/service"
	"github.com/noah-isme/sma-roster-api/pkg/config"
)

type handlers struct {
	auth        *handler.AuthHandler
	permissions *handler.PermissionHandler
	settings    *handler.SettingsHandler
	classes     *handler.ClassHandler
	students    *handler.StudentHandler
	users       *handler.UserHandler
	metrics     *handler.MetricsHandler
}

type routeDeps struct {
	cfg         *config.Config
	logger      *zap.Logger
	metrics     *service.MetricsService
	audit       middleware.AuditWriter
	auth        middleware.TokenValidator
	permissions middleware.PermissionResolver
	handlers    handlers
}

var (
	adminScope   = permission.Options{AllowedRoles: []models.UserRole{models.RoleAdmin}}
	rosterScope  = permission.Options{AllowedRoles: []models.UserRole{models.RoleAdmin, models.RoleTeacher}}
	managerScope = permission.Options{RequiresAdmin: true}
)

func registerRoutes(r *gin.Engine, d routeDeps) {
	h := d.handlers

	r.Use(middleware.Metrics(d.metrics, "/health", "/ready", "/metrics"))
	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if d.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(d.cfg.APIPrefix, middleware.WithResponseMeta())

	auth := api.Group("/auth")
	auth.POST("/login", h.auth.Login)
	auth.POST("/refresh", h.auth.Refresh)

	api.GET("/me/permissions", middleware.OptionalJWT(d.auth), h.permissions.Me)

	secured := api.Group("", middleware.JWT(d.auth))
	secured.POST("/auth/logout", h.auth.Logout)
	secured.POST("/auth/change-password", h.auth.ChangePassword)
	secured.GET("/auth/me", h.auth.Me)
	secured.GET("/metrics/summary", middleware.RequireRoles(models.RoleAdmin), h.metrics.Summary)

	settings := secured.Group("/settings", middleware.PermissionScope(d.permissions, d.metrics, adminScope))
	settings.GET("", h.settings.Get)
	settings.PUT("/index-number", middleware.RequireRoles(models.RoleAdmin), h.settings.UpdateIndexNumber)
	settings.PUT("/lock", middleware.RequireRoles(models.RoleAdmin), h.settings.UpdateLock)

	classes := secured.Group("/classes", middleware.PermissionScope(d.permissions, d.metrics, adminScope))
	classes.GET("", h.classes.List)
	classes.GET("/:id", h.classes.Get)
	classes.POST("", h.classes.Create)
	classes.PUT("/:id", h.classes.Update)
	classes.DELETE("/:id", middleware.Guard(permission.CapabilityDelete, nil, d.metrics), h.classes.Delete)

	students := secured.Group("/students", middleware.PermissionScope(d.permissions, d.metrics, rosterScope))
	students.GET("", h.students.List)
	students.GET("/next-index-number", h.students.NextIndexNumber)
	students.GET("/export", middleware.Audit(d.audit, d.logger, models.AuditActionStudentExport, "students"), h.students.Export)
	students.POST("/import", middleware.Guard(permission.CapabilityAdd, nil, d.metrics), middleware.Audit(d.audit, d.logger, models.AuditActionStudentImport, "students"), h.students.Import)
	students.GET("/:id", h.students.Get)
	students.GET("/:id/history", h.students.History)
	students.POST("", middleware.Guard(permission.CapabilityAdd, nil, d.metrics), h.students.Create)
	students.PUT("/:id", h.students.Update)
	students.DELETE("/:id", middleware.Guard(permission.CapabilityDelete, nil, d.metrics), h.students.Delete)

	users := secured.Group("/users")
	users.GET("/:id", middleware.RequireRolesOrSelf(models.RoleAdmin), h.users.Get)
	managed := users.Group("", middleware.RequireRoles(models.RoleAdmin), middleware.PermissionScope(d.permissions, d.metrics, managerScope))
	managed.GET("", h.users.List)
	managed.POST("", h.users.Create)
	managed.PUT("/:id", h.users.Update)
	managed.PUT("/:id/access", h.users.UpdateAccess)
	managed.DELETE("/:id", middleware.Guard(permission.CapabilityDelete, nil, d.metrics), h.users.Delete)
}
