package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

type routeDeps struct {
	cfg       *config.Config
	logger    *zap.Logger
	metrics   *service.MetricsService
	auth      middleware.TokenValidator
	timetable *handler.TimetableHandler
	exports   *handler.TimetableExportHandler
	health    *handler.MetricsHandler
}

func registerRoutes(r *gin.Engine, deps routeDeps) {
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.logger))
	r.Use(corsmiddleware.New(deps.cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	r.GET("/health", deps.health.Health)
	r.GET("/ready", deps.health.Ready)
	r.GET("/metrics", deps.health.Prometheus)
	r.GET("/metrics/summary", deps.health.Summary)

	if deps.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(deps.cfg.APIPrefix)

	// Signed download links carry their own authorization.
	if deps.exports != nil {
		api.GET("/timetable/exports/download/:token", deps.exports.Download)
	}

	timetable := api.Group("/timetable")
	if deps.cfg.JWT.Enabled {
		timetable.Use(middleware.JWT(deps.auth), middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	} else {
		timetable.Use(middleware.OptionalJWT(deps.auth))
	}
	timetable.Use(middleware.Session())

	h := deps.timetable
	timetable.GET("/classes", h.Classes)
	timetable.POST("/reload", h.Reload)
	timetable.GET("/selection", h.Selection)
	timetable.PUT("/selection", h.SelectClass)
	timetable.POST("/generate", h.Generate)
	timetable.GET("/editor", h.Editor)
	timetable.POST("/editor/open", h.OpenCell)
	timetable.PUT("/editor/subject", h.EditSubject)
	timetable.PUT("/editor/teacher", h.EditTeacher)
	timetable.POST("/editor/save", h.SaveCell)
	timetable.POST("/editor/cancel", h.CancelEdit)
	timetable.POST("/reorder", h.Reorder)
	timetable.GET("/workload", h.Workload)
	timetable.POST("/save", h.Save)

	if deps.exports != nil {
		timetable.POST("/exports", deps.exports.CreateExport)
		timetable.GET("/exports/:id", deps.exports.ExportStatus)
	}
}
