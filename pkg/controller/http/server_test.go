package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"
	httpctrl "github.com/secmon-lab/kokoro/pkg/controller/http"
	"github.com/secmon-lab/kokoro/pkg/usecase"
)

func TestServer_Health(t *testing.T) {
	srv := httpctrl.New(httpctrl.WithStats(func() usecase.Stats {
		return usecase.Stats{TurnsCompleted: 3, GenerateTimeoutRetries: 1}
	}))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	gt.Value(t, rec.Code).Equal(http.StatusOK)

	var resp struct {
		Status string         `json:"status"`
		Stats  map[string]int `json:"stats"`
	}
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp)).Required()
	gt.Value(t, resp.Status).Equal("ok")
	gt.Value(t, resp.Stats["turns_completed"]).Equal(3)
	gt.Value(t, resp.Stats["generate_timeout_retries"]).Equal(1)
}

func TestServer_SlackRoute(t *testing.T) {
	t.Run("not mounted without webhook", func(t *testing.T) {
		srv := httpctrl.New()
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hooks/slack/event", bytes.NewReader([]byte("{}"))))
		gt.Value(t, rec.Code).Equal(http.StatusNotFound)
	})

	t.Run("signature is required", func(t *testing.T) {
		srv := httpctrl.New(httpctrl.WithSlackWebhook(httpctrl.NewSlackWebhookHandler(newMockEventHandler()), signingSecret))

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hooks/slack/event", bytes.NewReader([]byte("{}"))))
		gt.Value(t, rec.Code).Equal(http.StatusUnauthorized)

		body := []byte(`{"type":"url_verification","challenge":"abc"}`)
		rec = httptest.NewRecorder()
		srv.ServeHTTP(rec, newSignedRequest(t, body))
		gt.Value(t, rec.Code).Equal(http.StatusOK)
		gt.Value(t, rec.Body.String()).Equal("abc")
	})
}
