package chat

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/portal/internal/auth"
	"github.com/aura-webinar/portal/internal/models"
)

func newHandlerRouter(e *Engine) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(e, NewModerator(e, adminSet{adminEmail: true}, nil))
	r := gin.New()
	r.Use(func(c *gin.Context) {
		email := c.GetHeader("X-Test-Email")
		auth.SetContext(c, auth.Session{Email: email, ExpiresAt: time.Now().Add(time.Hour)}, email == adminEmail)
		c.Next()
	})
	r.GET("/chat", h.List)
	r.POST("/chat", h.Submit)
	r.POST("/chat/moderate", h.Moderate)
	return r
}

func do(r *gin.Engine, method, path, email, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-Email", email)
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success     bool            `json:"success"`
	Data        json.RawMessage `json:"data"`
	Error       string          `json:"error"`
	Field       string          `json:"field"`
	WaitSeconds int             `json:"waitSeconds"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestHandlerSubmitAndList(t *testing.T) {
	e, _, _ := newTestEngine(10)
	r := newHandlerRouter(e)

	w := do(r, http.MethodPost, "/chat", "a@example.com", `{"content":"  hello  "}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var msg models.ChatMessage
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &msg))
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "a@example.com", msg.Email)

	w = do(r, http.MethodPost, "/chat", "a@example.com", `{"content":"again"}`)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "10", w.Header().Get("Retry-After"))
	assert.Equal(t, 10, decode(t, w).WaitSeconds)

	w = do(r, http.MethodPost, "/chat", "a@example.com", `{"content":"   "}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "content", decode(t, w).Field)

	w = do(r, http.MethodGet, "/chat", "b@example.com", "")
	require.Equal(t, http.StatusOK, w.Code)
	var hist History
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &hist))
	require.Len(t, hist.Messages, 1)
	assert.Nil(t, hist.Pinned)
}

func TestHandlerModerate(t *testing.T) {
	e, _, _ := newTestEngine(0)
	r := newHandlerRouter(e)
	w := do(r, http.MethodPost, "/chat", "a@example.com", `{"content":"pin me"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(r, http.MethodPost, "/chat/moderate", "a@example.com", `{"messageId":1,"action":"pin"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodPost, "/chat/moderate", adminEmail, `{"messageId":1,"action":"pin"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"messageId":1,"action":"pin"}`, string(decode(t, w).Data))

	w = do(r, http.MethodGet, "/chat", "a@example.com", "")
	var hist History
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &hist))
	require.NotNil(t, hist.Pinned)
	assert.Equal(t, int64(1), hist.Pinned.ID)

	w = do(r, http.MethodPost, "/chat/moderate", adminEmail, `{"messageId":42,"action":"delete"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/chat/moderate", adminEmail, `{"messageId":1,"action":"shout"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/chat/moderate", adminEmail, `{"action":"pin"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/chat/moderate", adminEmail, `{"message_id":1,"action":"unpin"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "snake_case key is not accepted")
}
