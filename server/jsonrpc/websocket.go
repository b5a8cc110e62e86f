// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package jsonrpc

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-json-experiment/json"

	"github.com/go-a2a/jokeagent/a2a"
)

// handleTaskSocket streams the events of a task over a WebSocket, the same
// way tasks/resubscribe does over server-sent events. Every message is a
// JSON-RPC response with a null id.
func (s *Server) handleTaskSocket(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		// Accept already answered the request.
		return
	}
	defer conn.CloseNow()

	// Clients only listen; reading detects when they leave.
	ctx := withCallContext(conn.CloseRead(authCtx), r, "websocket")
	taskID := r.PathValue("id")

	for ev, err := range s.handler.OnResubscribeToTask(ctx, &a2a.TaskIDParams{ID: taskID}) {
		var resp *Response
		if err != nil {
			resp = newError(nil, err)
		} else if resp, err = newResult(nil, ev); err != nil {
			resp = newError(nil, &a2a.InternalError{Err: err})
		}

		b, err := json.Marshal(resp)
		if err != nil {
			_ = conn.Close(websocket.StatusInternalError, "encoding failed")
			return
		}
		if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
			s.logger.DebugContext(ctx, "websocket client went away",
				slog.String("task_id", taskID),
				slog.Any("error", err))
			return
		}
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}
