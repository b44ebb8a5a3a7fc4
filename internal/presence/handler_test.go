package presence

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/portal/internal/auth"
)

func newHandlerRouter(tr *Tracker, onChange func()) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(tr, onChange)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if email := c.GetHeader("X-Test-Email"); email != "" {
			now := time.Now()
			auth.SetContext(c, auth.Session{Email: email, IssuedAt: now, ExpiresAt: now.Add(time.Hour)}, false)
		}
		c.Next()
	})
	r.POST("/session/ping", h.Ping)
	r.GET("/session/count", h.Count)
	return r
}

func doPing(r *gin.Engine, email, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/session/ping", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-Email", email)
	r.ServeHTTP(w, req)
	return w
}

func TestPingAndCount(t *testing.T) {
	tr, _, _ := newTestTracker()
	changes := 0
	r := newHandlerRouter(tr, func() { changes++ })

	require.Equal(t, http.StatusOK, doPing(r, "a@example.com", "").Code)
	require.Equal(t, http.StatusOK, doPing(r, "b@example.com", `{}`).Code)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/session/count", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":2`)

	require.Equal(t, http.StatusOK, doPing(r, "a@example.com", `{"disconnect":true}`).Code)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/session/count", nil))
	assert.Contains(t, w.Body.String(), `"count":1`)
	assert.Equal(t, 3, changes)
}

func TestPingRejectsMalformedBody(t *testing.T) {
	tr, _, _ := newTestTracker()
	r := newHandlerRouter(tr, nil)
	assert.Equal(t, http.StatusBadRequest, doPing(r, "a@example.com", `{"disconnect":"yes"}`).Code)
}
