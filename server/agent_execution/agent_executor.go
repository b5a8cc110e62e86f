// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent_execution defines the contract between the request handler
// and the agent logic it runs: the [AgentExecutor] interface and the
// [RequestContext] an executor is given for one invocation.
package agent_execution

import (
	"context"

	"github.com/go-a2a/jokeagent/server/event"
)

// AgentExecutor performs the work of a task.
//
// Implementations publish everything they produce to queue, usually through
// a task.TaskUpdater, and never write to the task store themselves.
type AgentExecutor interface {
	// Execute runs one invocation of the task described by reqCtx.
	//
	// An executor should end the invocation with a final status update. When it
	// returns an error without having done so, the caller publishes a failed
	// status on its behalf. Execute must return promptly once ctx is done.
	Execute(ctx context.Context, reqCtx *RequestContext, queue event.Enqueuer) error

	// Cancel asks the executor to stop the task described by reqCtx and
	// publishes the canceled status to queue. Cancellation is cooperative: the
	// running Execute observes it through its context.
	Cancel(ctx context.Context, reqCtx *RequestContext, queue event.Enqueuer) error
}
