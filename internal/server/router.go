package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/landodeck/internal/config"
	"github.com/loykin/landodeck/internal/lando"
	"github.com/loykin/landodeck/internal/metrics"
	"github.com/loykin/landodeck/internal/operation"
	"github.com/loykin/landodeck/internal/process"
	"github.com/loykin/landodeck/internal/workflow"
)

// Deps are the services the HTTP handlers drive.
type Deps struct {
	Manager  *operation.Manager
	Workflow *workflow.Service
	Sites    *lando.Resolver
	Config   *config.Store       // nil disables the config endpoints
	Runner   lando.CommandRunner // used by config detect/verify
	Logger   *slog.Logger
}

// Router provides embeddable HTTP handlers for managing Lando sites.
// Endpoints (relative to basePath):
//
//	GET    /sites                          list sites
//	POST   /sites                          create a site
//	POST   /sites/:name/{start,stop,restart,rebuild}
//	POST   /sites/:name/migrate-database   (alias migrate-mysql)
//	DELETE /sites/:name                    destroy a site
//	GET    /sites/:name/info
//	GET    /operations
//	GET    /operations/:id/logs?since=N
//	POST   /operations/:id/cancel
//	GET    /config, POST /config, GET /config/detect, POST /config/verify
//
// Every mutating site endpoint answers at once with an operation id.
// /metrics and /healthz are served outside basePath.
type Router struct {
	deps     Deps
	basePath string
	log      *slog.Logger
}

// NewRouter constructs a new Router with configurable basePath.
func NewRouter(deps Deps, basePath string) *Router {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if deps.Runner == nil {
		deps.Runner = process.NewRunner(process.RunnerConfig{})
	}
	return &Router{deps: deps, basePath: sanitizeBase(basePath), log: log.With("component", "http")}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.CustomRecovery(r.recovered), requestID(), requestLogger(r.log), errorHandler(r.log))
	g.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "Route "+c.Request.URL.Path+" not found")
	})

	g.GET("/healthz", func(c *gin.Context) { writeJSON(c, http.StatusOK, gin.H{"success": true, "status": "ok"}) })
	g.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := g.Group(r.basePath)
	api.GET("/sites", r.handleListSites)
	api.POST("/sites", r.handleCreateSite)
	for _, a := range []workflow.Action{workflow.ActionStart, workflow.ActionStop, workflow.ActionRestart, workflow.ActionRebuild} {
		api.POST("/sites/:name/"+string(a), r.handleLifecycle(a))
	}
	api.POST("/sites/:name/migrate-database", r.handleMigrate)
	api.POST("/sites/:name/migrate-mysql", r.handleMigrate)
	api.DELETE("/sites/:name", r.handleDestroy)
	api.GET("/sites/:name/info", r.handleSiteInfo)

	api.GET("/operations", r.handleListOperations)
	api.GET("/operations/:id/logs", r.handleLogs)
	api.POST("/operations/:id/cancel", r.handleCancel)

	if r.deps.Config != nil {
		api.GET("/config", r.handleGetConfig)
		api.POST("/config", r.handleUpdateConfig)
		api.GET("/config/detect", r.handleDetectConfig)
		api.POST("/config/verify", r.handleVerifyConfig)
	}
	return g
}

func (r *Router) recovered(c *gin.Context, rec any) {
	r.log.Error("Handler panicked", "path", c.Request.URL.Path, "panic", rec)
	writeJSON(c, http.StatusInternalServerError, errorBody{Error: "Internal server error"})
	c.Abort()
}

// NewServer wraps handler in an http.Server for addr. Operations outlive
// requests, so write timeouts only bound the response itself.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
