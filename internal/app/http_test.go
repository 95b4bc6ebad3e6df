package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"inspira/internal/metrics"
)

type recordingHandler struct {
	updates chan tgbotapi.Update
}

func (h *recordingHandler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	h.updates <- update
}

func newTestRouter(webhook bool) (*gin.Engine, *recordingHandler) {
	gin.SetMode(gin.TestMode)
	h := &recordingHandler{updates: make(chan tgbotapi.Update, 1)}
	return NewRouter(context.Background(), h, metrics.NewRegistry(), webhook, zap.NewNop()), h
}

func TestRouter_HealthAndIndex(t *testing.T) {
	r, _ := newTestRouter(false)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), "mode: polling")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",path="/health",status="200"} 1`)
}

func TestRouter_WebhookOnlyInWebhookMode(t *testing.T) {
	r, _ := newTestRouter(false)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_WebhookDispatchesUpdates(t *testing.T) {
	r, h := newTestRouter(true)

	body := `{"update_id": 7, "message": {"message_id": 1, "text": "/start", "chat": {"id": 5}, "from": {"id": 5}}}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case u := <-h.updates:
		assert.Equal(t, 7, u.UpdateID)
		assert.Equal(t, "/start", u.Message.Text)
	case <-time.After(time.Second):
		t.Fatal("update was not dispatched")
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader("not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
