// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package joke implements an agent that tells jokes. The executor turns the
// chunks of a [Generator] into task status updates and a joke artifact.
package joke

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-a2a/jokeagent/a2a"
	"github.com/go-a2a/jokeagent/internal/pool"
	"github.com/go-a2a/jokeagent/server/agent_execution"
	"github.com/go-a2a/jokeagent/server/event"
	"github.com/go-a2a/jokeagent/server/task"
)

// ArtifactName names the artifact holding the generated joke.
const ArtifactName = "Joke generated"

// CancelMessage is the status message of a canceled task.
const CancelMessage = "Task has been cancelled."

// Executor is the [agent_execution.AgentExecutor] of the joke agent.
type Executor struct {
	gen    Generator
	logger *slog.Logger
}

var _ agent_execution.AgentExecutor = (*Executor)(nil)

// ExecutorOption configures an [Executor].
type ExecutorOption func(*Executor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor returns an executor telling jokes produced by gen.
func NewExecutor(gen Generator, opts ...ExecutorOption) *Executor {
	e := &Executor{gen: gen}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

func newUpdater(reqCtx *agent_execution.RequestContext, queue event.Enqueuer) (*task.TaskUpdater, error) {
	state := a2a.TaskStateSubmitted
	if cur := reqCtx.CurrentTask(); cur != nil {
		state = cur.Status.State
	}
	return task.NewTaskUpdater(task.TaskUpdaterConfig{
		TaskID:    reqCtx.TaskID(),
		ContextID: reqCtx.ContextID(),
		Queue:     queue,
		State:     state,
	})
}

func textMessage(u *task.TaskUpdater, text string) *a2a.Message {
	return u.NewAgentMessage(a2a.Parts{a2a.NewTextPart(text)})
}

// Execute implements [agent_execution.AgentExecutor].
//
// Every chunk that does not end the run is published as a working status.
// The last chunk completes the task with the whole joke as an artifact, or
// asks the caller for more input. A generator failure fails the task.
func (e *Executor) Execute(ctx context.Context, reqCtx *agent_execution.RequestContext, queue event.Enqueuer) error {
	u, err := newUpdater(reqCtx, queue)
	if err != nil {
		return &a2a.InternalError{Err: err}
	}
	query := reqCtx.GetUserInput("\n")
	user, _ := reqCtx.CallContext().GetState("user")
	e.logger.DebugContext(ctx, "executing joke request",
		slog.String("task_id", reqCtx.TaskID()),
		slog.String("context_id", reqCtx.ContextID()),
		slog.Any("user", user))

	joke := pool.String.Get()
	defer pool.String.Put(joke)

	for chunk, err := range e.gen.Stream(ctx, query, reqCtx.ContextID()) {
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return e.fail(ctx, u, err)
		}

		switch {
		case chunk.RequireUserInput:
			return e.quiet(ctx, u.RequiresInput(ctx, textMessage(u, chunk.Content), true))

		case !chunk.IsTaskComplete:
			joke.WriteString(chunk.Content)
			if err := u.StartWork(ctx, textMessage(u, chunk.Content)); err != nil {
				return e.quiet(ctx, err)
			}

		default:
			joke.WriteString(chunk.Content)
			if err := u.AddArtifact(ctx, a2a.Parts{a2a.NewTextPart(joke.String())}, task.WithArtifactName(ArtifactName)); err != nil {
				return e.quiet(ctx, err)
			}
			return e.quiet(ctx, u.Complete(ctx, nil))
		}
	}

	if ctx.Err() != nil {
		return nil
	}
	return e.fail(ctx, u, errors.New("generator ended without a final chunk"))
}

// quiet drops err when it only reports that ctx was canceled.
func (e *Executor) quiet(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

func (e *Executor) fail(ctx context.Context, u *task.TaskUpdater, cause error) error {
	e.logger.ErrorContext(ctx, "joke generation failed",
		slog.String("task_id", u.TaskID()),
		slog.Any("error", cause))
	if err := u.Failed(ctx, textMessage(u, a2a.GenericFailureMessage)); err != nil {
		e.logger.WarnContext(ctx, "failed to publish failed status",
			slog.String("task_id", u.TaskID()),
			slog.Any("error", err))
	}
	return &a2a.InternalError{Msg: a2a.GenericFailureMessage, Err: cause}
}

// Cancel implements [agent_execution.AgentExecutor].
func (e *Executor) Cancel(ctx context.Context, reqCtx *agent_execution.RequestContext, queue event.Enqueuer) error {
	if reqCtx.CurrentTask() == nil {
		return &a2a.InvalidParamsError{Msg: "No current task to cancel."}
	}
	u, err := newUpdater(reqCtx, queue)
	if err != nil {
		return &a2a.InternalError{Err: err}
	}
	return u.Cancel(ctx, textMessage(u, CancelMessage))
}
