package errutil_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/kokoro/pkg/utils/errutil"
	"github.com/secmon-lab/kokoro/pkg/utils/logging"
)

func TestHandleLogsGoerrValues(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.With(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))

	err := goerr.New("boom", goerr.V("conversation_id", "c-1"))
	gt.Error(t, errutil.Handle(ctx, err, "turn failed")).Is(err)

	gt.String(t, buf.String()).Contains("turn failed")
	gt.String(t, buf.String()).Contains("c-1")
}

func TestHandleNil(t *testing.T) {
	gt.NoError(t, errutil.Handle(context.Background(), nil, "nothing"))
}

func TestHandleHTTPWritesStatus(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.With(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))

	w := httptest.NewRecorder()
	errutil.HandleHTTP(ctx, w, goerr.New("bad body"), http.StatusBadRequest)

	gt.Value(t, w.Code).Equal(http.StatusBadRequest)
	gt.String(t, w.Body.String()).Contains("bad body")
}
