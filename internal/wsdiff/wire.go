// Package wsdiff carries diff requests to a companion diff service over a
// websocket, and serves that protocol over any diff.Differ.
//
// A request is a command envelope:
//
//	{"command":"diff","data":{"GitDiff":{"old_content":"...","new_content":"..."}}}
//
// and the reply is {"added":n,"removed":n,"diffed":"..."}. Commands the
// service does not know are answered with {}.
package wsdiff

import "encoding/json"

// CommandDiff is the only command the diff service handles.
const CommandDiff = "diff"

// Request is a command envelope.
type Request struct {
	Command string          `json:"command"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// DiffData is the payload of a diff command.
type DiffData struct {
	GitDiff *GitDiff `json:"GitDiff,omitempty"`
}

// GitDiff holds the two texts to compare.
type GitDiff struct {
	OldContent string `json:"old_content"`
	NewContent string `json:"new_content"`
}

// Response is the reply to a diff command. Error is set when the service
// could not diff the texts.
type Response struct {
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
	Diffed  string `json:"diffed"`
	Error   string `json:"error,omitempty"`
}

// NewDiffRequest builds the envelope for one diff.
func NewDiffRequest(oldText, newText string) (Request, error) {
	data, err := json.Marshal(DiffData{GitDiff: &GitDiff{OldContent: oldText, NewContent: newText}})
	if err != nil {
		return Request{}, err
	}
	return Request{Command: CommandDiff, Data: data}, nil
}
