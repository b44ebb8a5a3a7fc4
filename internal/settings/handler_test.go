package settings

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHub struct {
	events []string
}

func (r *recordingHub) BroadcastAndPublish(event string, _ interface{}) {
	r.events = append(r.events, event)
}

func newHandlerRouter(store *memStore, hub *recordingHub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(NewService(store, nil), hub)
	r := gin.New()
	r.GET("/settings", h.Get)
	r.GET("/settings/public", h.GetPublic)
	r.POST("/admin/settings", h.Update)
	return r
}

func TestHandlerUpdateAndRead(t *testing.T) {
	store := &memStore{}
	hub := &recordingHub{}
	r := newHandlerRouter(store, hub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/settings", bytes.NewBufferString(`{"slowModeSeconds":20,"chatEnabled":true}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"settings"}, hub.events)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/settings", nil))
	assert.Contains(t, w.Body.String(), `"slowModeSeconds":20`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/settings/public", nil))
	assert.Contains(t, w.Body.String(), `"chatEnabled":true`)
	assert.NotContains(t, w.Body.String(), "slowModeSeconds")
}

func TestHandlerRejectsInvalid(t *testing.T) {
	store := &memStore{}
	hub := &recordingHub{}
	r := newHandlerRouter(store, hub)

	for _, body := range []string{`{"slowModeSeconds":500}`, `{"slowModeSeconds":"ten"}`, `{"slowModeSeconds":1.5}`} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/admin/settings", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Empty(t, hub.events)
	assert.Equal(t, 0, store.saves)
}
