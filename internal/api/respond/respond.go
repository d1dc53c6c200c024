// Package respond writes the JSON envelope shared by every HTTP endpoint:
// {"success": true, "data": ...} or {"success": false, "message": ..., "error": <kind>}.
package respond

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/mehrbod2002/masjidmap/internal/apperrors"
)

type Envelope struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
	Error   apperrors.Kind    `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func OK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

// Error maps err onto its HTTP status. Internal failures are recorded on the
// context for the access log and answered with a generic message.
func Error(c *gin.Context, err error) {
	c.JSON(statusAndBody(c, err))
}

// Abort is Error for middleware: it also stops the handler chain.
func Abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusAndBody(c, err))
}

func statusAndBody(c *gin.Context, err error) (int, Envelope) {
	kind := apperrors.KindOf(err)
	body := Envelope{Success: false, Error: kind, Message: err.Error()}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if appErr, ok := e.(*apperrors.Error); ok && len(appErr.Fields) > 0 {
			body.Fields = appErr.Fields
			break
		}
	}
	if kind == apperrors.KindInternal {
		_ = c.Error(err)
		body.Message = "internal server error"
		body.Fields = nil
	}
	return kind.HTTPStatus(), body
}
