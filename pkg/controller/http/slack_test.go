package http_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	httpctrl "github.com/secmon-lab/kokoro/pkg/controller/http"
	"github.com/slack-go/slack/slackevents"
)

const signingSecret = "test-signing-secret"

// computeSlackSignature computes the Slack signature for testing
func computeSlackSignature(secret, timestamp, body string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(fmt.Sprintf("v0:%s:%s", timestamp, body)))
	return "v0=" + hex.EncodeToString(h.Sum(nil))
}

func signedHeader(secret, timestamp, body string) http.Header {
	header := http.Header{}
	header.Set("X-Slack-Request-Timestamp", timestamp)
	header.Set("X-Slack-Signature", computeSlackSignature(secret, timestamp, body))
	return header
}

func newSignedRequest(t *testing.T, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/hooks/slack/event", bytes.NewReader(body))
	req.Header = signedHeader(signingSecret, strconv.FormatInt(time.Now().Unix(), 10), string(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type mockEventHandler struct {
	events chan *slackevents.EventsAPIEvent
}

func newMockEventHandler() *mockEventHandler {
	return &mockEventHandler{events: make(chan *slackevents.EventsAPIEvent, 1)}
}

func (m *mockEventHandler) HandleSlackEvent(ctx context.Context, event *slackevents.EventsAPIEvent) error {
	m.events <- event
	return nil
}

func TestVerifySlackSignature(t *testing.T) {
	body := []byte(`{"type":"url_verification","challenge":"test"}`)
	now := strconv.FormatInt(time.Now().Unix(), 10)

	t.Run("valid signature", func(t *testing.T) {
		gt.NoError(t, httpctrl.VerifySlackSignature(signingSecret, signedHeader(signingSecret, now, string(body)), body))
	})

	t.Run("wrong secret", func(t *testing.T) {
		gt.Error(t, httpctrl.VerifySlackSignature(signingSecret, signedHeader("wrong-secret", now, string(body)), body))
	})

	t.Run("different body", func(t *testing.T) {
		gt.Error(t, httpctrl.VerifySlackSignature(signingSecret, signedHeader(signingSecret, now, "different body"), body))
	})

	t.Run("timestamp too old", func(t *testing.T) {
		old := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)
		gt.Error(t, httpctrl.VerifySlackSignature(signingSecret, signedHeader(signingSecret, old, string(body)), body))
	})

	t.Run("missing headers", func(t *testing.T) {
		header := signedHeader(signingSecret, now, string(body))
		header.Del("X-Slack-Request-Timestamp")
		gt.Error(t, httpctrl.VerifySlackSignature(signingSecret, header, body))

		header = signedHeader(signingSecret, now, string(body))
		header.Del("X-Slack-Signature")
		gt.Error(t, httpctrl.VerifySlackSignature(signingSecret, header, body))
	})
}

func TestSlackSignatureMiddleware(t *testing.T) {
	body := []byte(`{"type":"url_verification","challenge":"test"}`)

	t.Run("restores request body for next handler", func(t *testing.T) {
		var received []byte
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var err error
			received, err = io.ReadAll(r.Body)
			gt.NoError(t, err)
			w.WriteHeader(http.StatusOK)
		})

		rec := httptest.NewRecorder()
		httpctrl.SlackSignatureMiddleware(signingSecret)(next).ServeHTTP(rec, newSignedRequest(t, body))

		gt.Value(t, rec.Code).Equal(http.StatusOK)
		gt.Value(t, string(received)).Equal(string(body))
	})

	t.Run("rejects invalid signature", func(t *testing.T) {
		nextCalled := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nextCalled = true
		})

		req := newSignedRequest(t, body)
		req.Header.Set("X-Slack-Signature", "v0=invalid_signature")
		rec := httptest.NewRecorder()
		httpctrl.SlackSignatureMiddleware(signingSecret)(next).ServeHTTP(rec, req)

		gt.Value(t, rec.Code).Equal(http.StatusUnauthorized)
		gt.Bool(t, nextCalled).False()
	})
}

func TestSlackWebhookHandler(t *testing.T) {
	t.Run("url verification echoes the challenge", func(t *testing.T) {
		handler := httpctrl.NewSlackWebhookHandler(newMockEventHandler())
		body, err := json.Marshal(map[string]any{
			"type":      "url_verification",
			"challenge": "test-challenge-token",
		})
		gt.NoError(t, err).Required()

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newSignedRequest(t, body))

		gt.Value(t, rec.Code).Equal(http.StatusOK)
		gt.Value(t, rec.Body.String()).Equal("test-challenge-token")
	})

	t.Run("callback is acknowledged and dispatched", func(t *testing.T) {
		mock := newMockEventHandler()
		handler := httpctrl.NewSlackWebhookHandler(mock)
		body, err := json.Marshal(map[string]any{
			"token":      "test-token",
			"team_id":    "T123",
			"api_app_id": "A123",
			"type":       "event_callback",
			"event": map[string]any{
				"type":         "message",
				"user":         "U123",
				"text":         "Hello from test",
				"ts":           "1234567890.123456",
				"channel":      "C123",
				"event_ts":     "1234567890.123456",
				"channel_type": "channel",
			},
		})
		gt.NoError(t, err).Required()

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newSignedRequest(t, body))
		gt.Value(t, rec.Code).Equal(http.StatusOK)

		select {
		case event := <-mock.events:
			msg, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
			if !ok {
				t.Fatalf("unexpected inner event %T", event.InnerEvent.Data)
			}
			gt.Value(t, msg.Channel).Equal("C123")
			gt.Value(t, msg.Text).Equal("Hello from test")
		case <-time.After(time.Second):
			t.Fatal("event was not dispatched")
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		handler := httpctrl.NewSlackWebhookHandler(newMockEventHandler())
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newSignedRequest(t, []byte("not json")))
		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
	})
}
