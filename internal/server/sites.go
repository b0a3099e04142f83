package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/loykin/landodeck/internal/lando"
	"github.com/loykin/landodeck/internal/landofile"
	"github.com/loykin/landodeck/internal/operation"
	"github.com/loykin/landodeck/internal/workflow"
)

// Operation kinds as reported in operation summaries.
const (
	KindCreate  = "create"
	KindDestroy = "destroy"
	KindMigrate = "migrate-database"
)

type launchResp struct {
	Success     bool   `json:"success"`
	OperationID string `json:"operationId"`
}

func (r *Router) handleListSites(c *gin.Context) {
	sites, err := r.deps.Sites.List(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"success": true, "sites": sites})
}

func (r *Router) handleCreateSite(c *gin.Context) {
	var req workflow.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON body", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		failErr(c, err)
		return
	}
	dir, err := r.deps.Sites.SiteDir(req.Name)
	if err != nil {
		fail(c, http.StatusBadRequest, "Sites directory is not configured")
		return
	}
	if _, err := os.Stat(dir); err == nil {
		fail(c, http.StatusBadRequest, "Site already exists")
		return
	}
	r.launch(c, KindCreate, req.Name, r.deps.Workflow.Create(req, dir))
}

func (r *Router) handleLifecycle(action workflow.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		site, ok := r.resolve(c)
		if !ok {
			return
		}
		r.launch(c, string(action), site.Name, r.deps.Workflow.Lifecycle(action, site))
	}
}

func (r *Router) handleMigrate(c *gin.Context) {
	var req workflow.MigrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON body", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		failErr(c, err)
		return
	}
	site, ok := r.resolve(c)
	if !ok {
		return
	}
	r.launch(c, KindMigrate, site.Name, r.deps.Workflow.MigrateDatabase(site, req))
}

func (r *Router) handleDestroy(c *gin.Context) {
	site, ok := r.resolve(c)
	if !ok {
		return
	}
	r.launch(c, KindDestroy, site.Name, r.deps.Workflow.Destroy(site))
}

func (r *Router) handleSiteInfo(c *gin.Context) {
	site, ok := r.resolve(c)
	if !ok {
		return
	}
	raw, err := os.ReadFile(filepath.Join(site.Dir, landofile.FileName))
	if err != nil {
		failErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"success": true,
		"config":  string(raw),
		"info":    r.deps.Sites.Info(c.Request.Context(), site.Dir),
	})
}

// resolve looks up the :name site. It writes the error response itself.
func (r *Router) resolve(c *gin.Context) (lando.Binding, bool) {
	name := c.Param("name")
	if !isSafeName(name) {
		fail(c, http.StatusBadRequest, "Invalid site name")
		return lando.Binding{}, false
	}
	site, err := r.deps.Sites.Resolve(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, lando.ErrSiteNotFound) {
			fail(c, http.StatusNotFound, "Site "+name+" not found")
		} else {
			failErr(c, err)
		}
		return lando.Binding{}, false
	}
	return site, true
}

func (r *Router) launch(c *gin.Context, kind, site string, task operation.Task) {
	id, err := r.deps.Manager.Launch(kind, site, task)
	if err != nil {
		failErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, launchResp{Success: true, OperationID: id})
}
