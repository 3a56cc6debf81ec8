package wsdiff

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockdiff/internal/diff"
)

type failingDiffer struct{}

func (failingDiffer) Diff(context.Context, string, string) (diff.Result, error) {
	return diff.Result{}, errors.New("git not found")
}

func serve(t *testing.T, d diff.Differ) string {
	t.Helper()
	srv := httptest.NewServer(NewHandler(d, nil))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientRoundTrip(t *testing.T) {
	c := NewClient(serve(t, diff.Local{}))
	res, err := c.Diff(context.Background(), "a\nb\nc", "a\nB\nc")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, " a\n-b\n+B\n c", res.Diffed)
}

func TestClientIdenticalTexts(t *testing.T) {
	c := NewClient(serve(t, diff.Local{}))
	res, err := c.Diff(context.Background(), "move 10 steps", "move 10 steps")
	require.NoError(t, err)
	assert.Equal(t, "", res.Diffed)
}

func TestClientServiceError(t *testing.T) {
	c := NewClient(serve(t, failingDiffer{}))
	_, err := c.Diff(context.Background(), "a", "b")
	assert.ErrorIs(t, err, diff.ErrUnavailable)
	assert.Contains(t, err.Error(), "git not found")
}

func TestClientDialFailure(t *testing.T) {
	srv := httptest.NewServer(NewHandler(diff.Local{}, nil))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	c := NewClient(url)
	c.Timeout = time.Second
	_, err := c.Diff(context.Background(), "a", "b")
	assert.ErrorIs(t, err, diff.ErrUnavailable)
}

func TestHandlerAnswersUnknownCommandsWithEmptyObject(t *testing.T) {
	conn, _, err := websocket.DefaultDialer.Dial(serve(t, diff.Local{}), nil)
	require.NoError(t, err)
	defer conn.Close()

	for _, msg := range []string{
		`{"command":"push","data":{"Project":{"project_name":"x"}}}`,
		`{"command":"diff"}`,
		`{"command":"diff","data":{}}`,
	} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
		_, reply, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, string(reply), "request %s", msg)
	}
}

func TestHandlerServesSeveralRequestsPerConnection(t *testing.T) {
	conn, _, err := websocket.DefaultDialer.Dial(serve(t, diff.Local{}), nil)
	require.NoError(t, err)
	defer conn.Close()

	for _, tc := range []struct{ old, new, want string }{
		{"x", "y", "-x\n+y"},
		{"", "when flag clicked", "+when flag clicked"},
	} {
		req, err := NewDiffRequest(tc.old, tc.new)
		require.NoError(t, err)
		require.NoError(t, conn.WriteJSON(req))
		var resp Response
		require.NoError(t, conn.ReadJSON(&resp))
		assert.Equal(t, tc.want, resp.Diffed)
		assert.Empty(t, resp.Error)
	}
}

func TestDiffRequestWireFormat(t *testing.T) {
	req, err := NewDiffRequest("old", "new")
	require.NoError(t, err)
	assert.Equal(t, CommandDiff, req.Command)
	assert.JSONEq(t, `{"GitDiff":{"old_content":"old","new_content":"new"}}`, string(req.Data))
}
