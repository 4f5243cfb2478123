package slack_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/kokoro/pkg/service/slack"
)

type fakeSlackAPI struct {
	userInfoCalls atomic.Int32
	mu            sync.Mutex
	posts         []map[string]string
}

func (f *fakeSlackAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		gt.NoError(t, json.NewEncoder(w).Encode(v))
	}

	mux.HandleFunc("/auth.test", func(w http.ResponseWriter, r *http.Request) {
		write(w, map[string]any{"ok": true, "user_id": "UBOT", "user": "kokoro"})
	})
	mux.HandleFunc("/users.info", func(w http.ResponseWriter, r *http.Request) {
		f.userInfoCalls.Add(1)
		gt.NoError(t, r.ParseForm())
		if r.Form.Get("user") == "U404" {
			write(w, map[string]any{"ok": false, "error": "user_not_found"})
			return
		}
		write(w, map[string]any{
			"ok": true,
			"user": map[string]any{
				"id":        r.Form.Get("user"),
				"name":      "alice.w",
				"real_name": "Alice Wonder",
				"profile":   map[string]any{"display_name": "alice"},
			},
		})
	})
	mux.HandleFunc("/chat.postMessage", func(w http.ResponseWriter, r *http.Request) {
		gt.NoError(t, r.ParseForm())
		f.mu.Lock()
		f.posts = append(f.posts, map[string]string{
			"channel":   r.Form.Get("channel"),
			"text":      r.Form.Get("text"),
			"thread_ts": r.Form.Get("thread_ts"),
		})
		f.mu.Unlock()
		write(w, map[string]any{"ok": true, "channel": r.Form.Get("channel"), "ts": "1700000000.000100"})
	})
	return mux
}

func newTestService(t *testing.T, opts ...slack.Option) (slack.Service, *fakeSlackAPI) {
	api := &fakeSlackAPI{}
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	svc, err := slack.New("xoxb-test", append([]slack.Option{slack.WithAPIURL(srv.URL + "/")}, opts...)...)
	gt.NoError(t, err).Required()
	return svc, api
}

func TestNew(t *testing.T) {
	t.Run("returns error when token is empty", func(t *testing.T) {
		_, err := slack.New("")
		gt.Value(t, err).NotNil()
	})

	t.Run("creates service when token is provided", func(t *testing.T) {
		svc, err := slack.New("test-token")
		gt.NoError(t, err).Required()
		gt.Value(t, svc).NotNil()
	})
}

func TestClient(t *testing.T) {
	ctx := context.Background()

	t.Run("bot user id", func(t *testing.T) {
		svc, _ := newTestService(t)
		id, err := svc.BotUserID(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, id).Equal("UBOT")
	})

	t.Run("user name prefers display name and is cached", func(t *testing.T) {
		svc, api := newTestService(t)

		for range 3 {
			name, err := svc.GetUserName(ctx, "U1")
			gt.NoError(t, err).Required()
			gt.Value(t, name).Equal("alice")
		}
		gt.Value(t, api.userInfoCalls.Load()).Equal(int32(1))
	})

	t.Run("expired cache entries are refreshed", func(t *testing.T) {
		svc, api := newTestService(t, slack.TestWithCacheTTL(time.Nanosecond))

		_, err := svc.GetUserName(ctx, "U1")
		gt.NoError(t, err).Required()
		time.Sleep(time.Millisecond)
		_, err = svc.GetUserName(ctx, "U1")
		gt.NoError(t, err).Required()
		gt.Value(t, api.userInfoCalls.Load()).Equal(int32(2))
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.GetUserName(ctx, "U404")
		gt.Error(t, err)
	})

	t.Run("post message and thread reply", func(t *testing.T) {
		svc, api := newTestService(t)
		gt.NoError(t, svc.PostMessage(ctx, "C1", "hello")).Required()
		gt.NoError(t, svc.PostThreadReply(ctx, "C1", "1.23", "in thread")).Required()

		api.mu.Lock()
		defer api.mu.Unlock()
		gt.Array(t, api.posts).Length(2).Required()
		gt.Value(t, api.posts[0]["text"]).Equal("hello")
		gt.Value(t, api.posts[0]["thread_ts"]).Equal("")
		gt.Value(t, api.posts[1]["thread_ts"]).Equal("1.23")
	})
}

func TestPreferredName(t *testing.T) {
	gt.Value(t, (&slack.User{Name: "a", RealName: "b", DisplayName: "c"}).PreferredName()).Equal("c")
	gt.Value(t, (&slack.User{Name: "a", RealName: "b"}).PreferredName()).Equal("b")
	gt.Value(t, (&slack.User{Name: "a"}).PreferredName()).Equal("a")
}

func TestIntegration(t *testing.T) {
	token := os.Getenv("TEST_SLACK_BOT_TOKEN")
	if token == "" {
		t.Skip("TEST_SLACK_BOT_TOKEN is not set")
	}

	ctx := context.Background()
	svc, err := slack.New(token)
	gt.NoError(t, err).Required()

	botID, err := svc.BotUserID(ctx)
	gt.NoError(t, err).Required()
	gt.String(t, botID).NotEqual("")

	user, err := svc.GetUserInfo(ctx, botID)
	gt.NoError(t, err).Required()
	gt.Bool(t, user.IsBot).True()
	t.Logf("bot user: %s (%s)", user.PreferredName(), user.ID)
}
