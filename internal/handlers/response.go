package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avelari/workbase-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondServiceError maps a service-layer error onto the wire. Errors
// carrying an apierr status use it; anything else is an opaque 500.
func RespondServiceError(c *gin.Context, err error) {
	if ae, ok := apierr.From(err); ok {
		RespondError(c, ae.Status, ae.Code, err)
		return
	}
	RespondError(c, http.StatusInternalServerError, "internal", err)
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
