package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

// ContextSession is the gin context key holding the caller's *model.Session.
const ContextSession = "session"

type Response struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    interface{}            `json:"data,omitempty"`
	Errors  []apperrors.FieldError `json:"errors,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

// NewActionResponse wraps the result of a mutating command.
func NewActionResponse(result *model.ActionResult) *Response {
	resp := &Response{Status: "success", Message: result.Message}
	if result.ID != nil {
		resp.Data = gin.H{"id": result.ID}
	}
	return resp
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// SessionFrom returns the session resolved by the auth middleware, or nil.
func SessionFrom(c *gin.Context) *model.Session {
	if v, ok := c.Get(ContextSession); ok {
		if sess, ok := v.(*model.Session); ok {
			return sess
		}
	}
	return nil
}

// StatusOf maps an application error to its HTTP status.
func StatusOf(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrTenantNotFound:
		return http.StatusForbidden
	case apperrors.ErrValidation:
		return http.StatusUnprocessableEntity
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrBadRequest:
		return http.StatusBadRequest
	case apperrors.ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err in the response envelope. Causes of store and
// unexpected errors are logged, never sent to the client.
func RespondError(c *gin.Context, err error) {
	status := StatusOf(err)

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.NewStore(err)
	}

	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("request failed")
	}

	resp := NewErrorResponse(appErr.Message)
	resp.Errors = appErr.Fields
	c.AbortWithStatusJSON(status, resp)
}
