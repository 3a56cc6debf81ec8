package wsdiff

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"blockdiff/internal/diff"
)

// Handler serves the diff protocol. A connection may carry any number of
// requests; each is answered in order.
type Handler struct {
	Differ   diff.Differ
	Logger   *slog.Logger
	Upgrader websocket.Upgrader
}

// NewHandler returns a handler accepting connections from any origin, as
// the editor add-on runs on a foreign page.
func NewHandler(d diff.Differ, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		Differ: d,
		Logger: log,
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	h.Logger.Debug("client connected", "remote", r.RemoteAddr)

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.Logger.Debug("client disconnected", "error", err)
			}
			return
		}
		if err := conn.WriteJSON(h.reply(r, req)); err != nil {
			h.Logger.Warn("write reply failed", "error", err)
			return
		}
	}
}

func (h *Handler) reply(r *http.Request, req Request) any {
	if req.Command != CommandDiff {
		h.Logger.Debug("unknown command", "command", req.Command)
		return struct{}{}
	}
	var data DiffData
	if err := json.Unmarshal(req.Data, &data); err != nil || data.GitDiff == nil {
		h.Logger.Debug("malformed diff payload", "error", err)
		return struct{}{}
	}
	res, err := h.Differ.Diff(r.Context(), data.GitDiff.OldContent, data.GitDiff.NewContent)
	if err != nil {
		h.Logger.Warn("diff failed", "error", err)
		return Response{Error: err.Error()}
	}
	return Response{Added: res.Added, Removed: res.Removed, Diffed: res.Diffed}
}
