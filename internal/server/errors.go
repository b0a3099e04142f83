package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loykin/landodeck/internal/config"
	"github.com/loykin/landodeck/internal/lando"
	"github.com/loykin/landodeck/internal/operation"
	"github.com/loykin/landodeck/internal/workflow"
)

// apiError is a failure with the HTTP status it maps to.
type apiError struct {
	Status  int
	Message string
	Details string
}

func (e *apiError) Error() string { return e.Message }

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// fail records an apiError for errorHandler and stops the chain.
func fail(c *gin.Context, status int, message string, details ...string) {
	e := &apiError{Status: status, Message: message}
	if len(details) > 0 {
		e.Details = details[0]
	}
	_ = c.Error(e)
	c.Abort()
}

// failErr maps err to a status by its sentinel and records it.
func failErr(c *gin.Context, err error) {
	var ae *apiError
	if errors.As(err, &ae) {
		_ = c.Error(ae)
		c.Abort()
		return
	}
	fail(c, statusOf(err), err.Error())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, lando.ErrSiteNotFound), errors.Is(err, operation.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrInvalidRequest), errors.Is(err, config.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, operation.ErrCompleted):
		return http.StatusConflict
	case errors.Is(err, operation.ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorHandler renders the last recorded error as {success:false, error, details?}.
func errorHandler(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		var ae *apiError
		if !errors.As(err, &ae) {
			ae = &apiError{Status: http.StatusInternalServerError, Message: err.Error()}
		}
		if ae.Status >= http.StatusInternalServerError {
			log.Error("Request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "status", ae.Status, "error", ae.Message)
		}
		writeJSON(c, ae.Status, errorBody{Error: ae.Message, Details: ae.Details})
	}
}
