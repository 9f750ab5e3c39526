package echoapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admissions/core/wizard"
)

func Test_formsApi_events(t *testing.T) {
	srv, _ := setup(t)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	sess := openSession(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + sessionPath(sess.ID, "events")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	rec := do(srv, http.MethodPost, sessionPath(sess.ID, "next"))
	require.Equal(t, http.StatusOK, rec.Code)

	var ev wizard.Event
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, wizard.EventValidationFailed, ev.Kind)
	assert.Equal(t, "test", ev.Form)
	assert.Equal(t, 1, ev.Step)
	assert.Contains(t, ev.Errors, "name")

	advance(t, srv, sess.ID, identity)
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, wizard.EventStepEntered, ev.Kind)
	assert.Equal(t, 2, ev.Step)

	// closing the session ends the stream
	rec = do(srv, http.MethodDelete, sessionPath(sess.ID))
	require.Equal(t, http.StatusNoContent, rec.Code)
	_, _, err = conn.Read(ctx)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}

func Test_formsApi_events_unknownSession(t *testing.T) {
	srv, _ := setup(t)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + sessionPath("00000000-0000-0000-0000-000000000000", "events")
	_, resp, err := websocket.Dial(ctx, wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func Test_originPatterns(t *testing.T) {
	assert.Equal(t,
		[]string{"localhost:3000", "admissions.school.rw", "*"},
		originPatterns([]string{"http://localhost:3000", "https://admissions.school.rw", "*"}),
	)
}
