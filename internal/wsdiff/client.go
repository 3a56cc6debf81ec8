package wsdiff

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"blockdiff/internal/diff"
)

// Client is a diff.Differ backed by a remote diff service. Every request
// uses its own connection.
type Client struct {
	URL    string
	Dialer *websocket.Dialer
	// Timeout bounds one request when ctx has no deadline; 0 means none.
	Timeout time.Duration
}

// NewClient returns a client for the service at url.
func NewClient(url string) *Client {
	return &Client{URL: url, Dialer: websocket.DefaultDialer}
}

var _ diff.Differ = (*Client)(nil)

// Diff sends one diff command and waits for the reply. Transport and
// protocol failures wrap diff.ErrUnavailable.
func (c *Client) Diff(ctx context.Context, oldText, newText string) (diff.Result, error) {
	if c.Timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.Timeout)
			defer cancel()
		}
	}
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return diff.Result{}, fmt.Errorf("%w: dial %s: %v", diff.ErrUnavailable, c.URL, err)
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(dl)
		_ = conn.SetWriteDeadline(dl)
	}

	req, err := NewDiffRequest(oldText, newText)
	if err != nil {
		return diff.Result{}, fmt.Errorf("%w: %v", diff.ErrUnavailable, err)
	}
	if err := conn.WriteJSON(req); err != nil {
		return diff.Result{}, fmt.Errorf("%w: write: %v", diff.ErrUnavailable, err)
	}
	var resp Response
	if err := conn.ReadJSON(&resp); err != nil {
		return diff.Result{}, fmt.Errorf("%w: read: %v", diff.ErrUnavailable, err)
	}
	if resp.Error != "" {
		return diff.Result{}, fmt.Errorf("%w: service: %s", diff.ErrUnavailable, resp.Error)
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return diff.Result{Added: resp.Added, Removed: resp.Removed, Diffed: resp.Diffed}, nil
}
