// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package handler binds caller requests to tasks: it creates and resumes
// tasks, runs the agent executor, persists the events it produces and relays
// them to callers, streaming subscribers and push notification webhooks.
package handler

import (
	"context"
	"iter"

	"github.com/go-a2a/jokeagent/a2a"
)

// RequestHandler is the transport independent surface of an agent server.
//
// Errors returned by every method are *a2a error types implementing
// [a2a.CodedError], or context errors.
type RequestHandler interface {
	// OnMessageSend sends a message and waits, unless configured not to
	// block, until the invocation ends. The result is a *a2a.Task, or the
	// *a2a.Message the agent answered with.
	OnMessageSend(ctx context.Context, params *a2a.MessageSendParams) (a2a.Event, error)

	// OnMessageSendStream sends a message and yields the events of the
	// invocation as they are produced, starting with the task snapshot.
	OnMessageSendStream(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error]

	// OnResubscribeToTask yields the events of the task's live invocation,
	// replaying those already produced.
	OnResubscribeToTask(ctx context.Context, params *a2a.TaskIDParams) iter.Seq2[a2a.Event, error]

	// OnGetTask returns the stored task.
	OnGetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error)

	// OnCancelTask cancels an active task and returns it in its canceled state.
	OnCancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error)

	// OnSetTaskPushNotificationConfig registers a webhook for a task.
	OnSetTaskPushNotificationConfig(ctx context.Context, params *a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error)

	// OnGetTaskPushNotificationConfig returns one webhook of a task.
	OnGetTaskPushNotificationConfig(ctx context.Context, params *a2a.GetTaskPushNotificationConfigParams) (*a2a.TaskPushNotificationConfig, error)

	// OnListTaskPushNotificationConfig returns every webhook of a task.
	OnListTaskPushNotificationConfig(ctx context.Context, params *a2a.TaskIDParams) ([]*a2a.TaskPushNotificationConfig, error)

	// OnDeleteTaskPushNotificationConfig removes one webhook of a task.
	OnDeleteTaskPushNotificationConfig(ctx context.Context, params *a2a.DeleteTaskPushNotificationConfigParams) error
}
