package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/loykin/landodeck/internal/operation"
)

// logsResp is the polling view of one operation.
type logsResp struct {
	Success          bool     `json:"success"`
	Logs             []string `json:"logs"`
	Completed        bool     `json:"completed"`
	OperationSuccess *bool    `json:"operationSuccess"`
	Error            *string  `json:"error"`
	Cancelled        bool     `json:"cancelled"`
	Total            int      `json:"total"`
}

func (r *Router) handleListOperations(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"success": true, "operations": r.deps.Manager.Registry().List()})
}

func (r *Router) handleLogs(c *gin.Context) {
	id := c.Param("id")
	since := 0
	if s := c.Query("since"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			fail(c, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = n
	}
	snap, err := r.deps.Manager.Registry().SnapshotSince(id, since)
	if err != nil {
		r.operationError(c, id, err)
		return
	}
	logs := snap.Lines
	if logs == nil {
		logs = []string{}
	}
	writeJSON(c, http.StatusOK, logsResp{
		Success:          true,
		Logs:             logs,
		Completed:        snap.Completed,
		OperationSuccess: snap.Success,
		Error:            snap.Error,
		Cancelled:        snap.Cancelled,
		Total:            snap.Total,
	})
}

func (r *Router) handleCancel(c *gin.Context) {
	id := c.Param("id")
	if err := r.deps.Manager.Cancel(id); err != nil {
		r.operationError(c, id, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"success": true})
}

func (r *Router) operationError(c *gin.Context, id string, err error) {
	switch {
	case errors.Is(err, operation.ErrNotFound):
		fail(c, http.StatusNotFound, "Operation "+id+" not found")
	case errors.Is(err, operation.ErrCompleted):
		fail(c, http.StatusConflict, "Operation "+id+" already completed")
	default:
		failErr(c, err)
	}
}
