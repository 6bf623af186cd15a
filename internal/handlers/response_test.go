package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelari/workbase-backend/internal/platform/apierr"
)

// Service failures must keep their HTTP status when one is attached,
// even through fmt.Errorf wrapping; only untyped errors fall back
// to 500.
func TestRespondServiceErrorMapsStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "bad request",
			err:        apierr.BadRequest("empty_update", fmt.Errorf("nothing to update")),
			wantStatus: http.StatusBadRequest,
			wantCode:   "empty_update",
		},
		{
			name:       "not found",
			err:        apierr.NotFound("task_not_found", fmt.Errorf("task not found")),
			wantStatus: http.StatusNotFound,
			wantCode:   "task_not_found",
		},
		{
			name:       "unauthorized",
			err:        apierr.Unauthorized("invalid_credentials", fmt.Errorf("invalid credentials")),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "invalid_credentials",
		},
		{
			name:       "conflict",
			err:        apierr.Conflict("email_taken", fmt.Errorf("email already registered")),
			wantStatus: http.StatusConflict,
			wantCode:   "email_taken",
		},
		{
			name: "status survives wrapping",
			err: fmt.Errorf("delete task: %w",
				apierr.NotFound("task_not_found", fmt.Errorf("task not found"))),
			wantStatus: http.StatusNotFound,
			wantCode:   "task_not_found",
		},
		{
			name:       "untyped error is a 500",
			err:        fmt.Errorf("connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			RespondServiceError(c, tc.err)

			assert.Equal(t, tc.wantStatus, w.Code)
			var envelope ErrorEnvelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
			assert.Equal(t, tc.wantCode, envelope.Error.Code)
			assert.NotEmpty(t, envelope.Error.Message)
		})
	}
}
