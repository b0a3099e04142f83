package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loykin/landodeck/internal/config"
)

type verifyReq struct {
	LandoPath      string `json:"landoPath"`
	SitesDirectory string `json:"sitesDirectory"`
}

func (r *Router) handleGetConfig(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"success": true, "config": r.deps.Config.Get()})
}

func (r *Router) handleUpdateConfig(c *gin.Context) {
	var updates map[string]any
	if err := c.ShouldBindJSON(&updates); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON body", err.Error())
		return
	}
	if dir, ok := updates["sitesDirectory"].(string); ok && dir != "" && !isSafeAbsPath(dir) {
		fail(c, http.StatusBadRequest, "sitesDirectory must be an absolute path without traversal")
		return
	}
	cfg, err := r.deps.Config.Update(updates)
	if err != nil {
		failErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"success": true, "config": cfg})
}

func (r *Router) handleDetectConfig(c *gin.Context) {
	detected := config.Detect(c.Request.Context(), r.deps.Runner)
	writeJSON(c, http.StatusOK, gin.H{"success": true, "detected": detected})
}

func (r *Router) handleVerifyConfig(c *gin.Context) {
	var req verifyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON body", err.Error())
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"success":             true,
		"landoValid":          config.VerifyLando(c.Request.Context(), r.deps.Runner, req.LandoPath),
		"sitesDirectoryValid": config.VerifySitesDirectory(req.SitesDirectory),
	})
}
