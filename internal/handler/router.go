package handler

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-admin-console/internal/middleware"
	"github.com/noah-isme/campus-admin-console/internal/service"
	"github.com/noah-isme/campus-admin-console/internal/views"
	"github.com/noah-isme/campus-admin-console/pkg/config"
	"github.com/noah-isme/campus-admin-console/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-admin-console/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-admin-console/pkg/middleware/requestid"
)

type consoleSessions interface {
	middleware.SessionResolver
	sessionManager
}

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	Env            string
	APIPrefix      string
	Cookie         CookieConfig
	AllowedOrigins []string
}

// Dependencies are the services the routes are served from.
type Dependencies struct {
	Sessions   consoleSessions
	Workspaces workspaceProvider
	Exports    exportService
	Audit      auditLister
	Metrics    *service.MetricsService
	Checks     map[string]Pinger
	Templates  *template.Template
	Logger     *zap.Logger
}

// NewRouter registers the console pages, the JSON API, the live list and the operational
// endpoints on a new engine.
func NewRouter(cfg RouterConfig, deps Dependencies) (*gin.Engine, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Templates == nil {
		tmpl, err := views.Load()
		if err != nil {
			return nil, err
		}
		deps.Templates = tmpl
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.SetHTMLTemplate(deps.Templates)

	sessionHandler := NewSessionHandler(deps.Sessions, deps.Workspaces, cfg.Cookie, deps.Logger)
	consoleHandler := NewConsoleHandler(deps.Workspaces, deps.Logger)
	apiHandler := NewAPIHandler(deps.Workspaces, deps.Logger)
	exportHandler := NewExportHandler(deps.Workspaces, deps.Exports, deps.Logger)
	liveHandler := NewLiveHandler(deps.Workspaces, deps.Metrics, cfg.AllowedOrigins, deps.Logger)
	auditHandler := NewAuditHandler(deps.Audit)
	metricsHandler := NewMetricsHandler(deps.Metrics, deps.Checks)
	cookieName := sessionHandler.CookieName()

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/admin") })
	r.GET("/login", sessionHandler.LoginPage)
	r.POST("/login", sessionHandler.Login)
	r.POST("/logout", sessionHandler.Logout)
	r.GET("/exports/:token", exportHandler.Download)

	pages := r.Group("/admin", middleware.RequirePageSession(deps.Sessions, cookieName, "/login"))
	pages.GET("", consoleHandler.Index)
	pages.GET("/:entity", consoleHandler.List)
	pages.GET("/:entity/new", consoleHandler.New)
	pages.GET("/:entity/:id/edit", consoleHandler.Edit)
	pages.GET("/:entity/:id/confirm/:action", consoleHandler.RequestAction)
	pages.POST("/:entity/form", consoleHandler.SubmitForm)
	pages.POST("/:entity/confirm", consoleHandler.Confirm)
	pages.POST("/:entity/cancel", consoleHandler.Cancel)
	pages.POST("/:entity/export", exportHandler.Page)

	live := r.Group("/ws", middleware.RequireSession(deps.Sessions, cookieName))
	live.GET("/admin/:entity", liveHandler.Stream)

	api := r.Group(cfg.APIPrefix + "/console")
	api.POST("/session", sessionHandler.APILogin)
	api.DELETE("/session", sessionHandler.APILogout)

	secured := api.Group("", middleware.RequireSession(deps.Sessions, cookieName))
	secured.GET("/entities", apiHandler.Entities)
	secured.GET("/audit", auditHandler.List)
	secured.GET("/status", metricsHandler.Status)
	secured.GET("/:entity", apiHandler.List)
	secured.POST("/:entity", apiHandler.Create)
	secured.PUT("/:entity/:id", apiHandler.Update)
	secured.DELETE("/:entity/:id", apiHandler.Delete)
	secured.PATCH("/:entity/:id/activate", apiHandler.Activate)
	secured.PATCH("/:entity/:id/deactivate", apiHandler.Deactivate)
	secured.GET("/:entity/options/:field", apiHandler.Options)
	secured.POST("/:entity/export", exportHandler.API)

	return r, nil
}
