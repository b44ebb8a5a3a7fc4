package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/portal/internal/apperr"
)

func init() { gin.SetMode(gin.TestMode) }

func render(err error) (*httptest.ResponseRecorder, Body) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Error(c, err, "failed to do thing")
	var body Body
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"unauthenticated", apperr.ErrUnauthenticated, http.StatusUnauthorized},
		{"forbidden", apperr.ErrForbidden, http.StatusForbidden},
		{"not found", apperr.ErrNotFound, http.StatusNotFound},
		{"validation", apperr.Validation("content", "too long"), http.StatusBadRequest},
		{"rate limited", &apperr.RateLimitError{WaitSeconds: 4}, http.StatusTooManyRequests},
		{"store", &apperr.StoreError{Op: "insert", Err: errors.New("boom")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := render(tc.err)
			assert.Equal(t, tc.status, w.Code)
			assert.False(t, body.Success)
		})
	}
}

func TestErrorRateLimitCarriesWait(t *testing.T) {
	w, body := render(&apperr.RateLimitError{WaitSeconds: 7})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "7", w.Header().Get("Retry-After"))
	assert.Equal(t, 7, body.WaitSeconds)
}

func TestErrorHidesStoreDetails(t *testing.T) {
	_, body := render(&apperr.StoreError{Op: "insert", Err: errors.New("password=hunter2")})
	assert.Equal(t, "failed to do thing", body.Error)
}

func TestErrorValidationField(t *testing.T) {
	_, body := render(apperr.Validation("slowModeSeconds", "must be between 0 and 300"))
	assert.Equal(t, "slowModeSeconds", body.Field)
}
