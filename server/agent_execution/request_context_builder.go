// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent_execution

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-a2a/jokeagent/a2a"
	"github.com/go-a2a/jokeagent/server/task"
)

// RequestContextBuilder builds the [RequestContext] supplied to an [AgentExecutor].
type RequestContextBuilder interface {
	// Build creates a RequestContext. params is nil for a cancel request and
	// currentTask is nil when nothing is stored for the task yet.
	Build(ctx context.Context, params *a2a.MessageSendParams, taskID, contextID string, currentTask *a2a.Task) (*RequestContext, error)
}

// SimpleRequestContextBuilder is the default [RequestContextBuilder]. It can
// optionally load the other tasks of the same context from a task store.
type SimpleRequestContextBuilder struct {
	store                task.TaskStore
	populateRelatedTasks bool
}

var _ RequestContextBuilder = (*SimpleRequestContextBuilder)(nil)

// NewSimpleRequestContextBuilder creates a builder. When populateRelatedTasks
// is set, store must not be nil.
func NewSimpleRequestContextBuilder(store task.TaskStore, populateRelatedTasks bool) *SimpleRequestContextBuilder {
	return &SimpleRequestContextBuilder{
		store:                store,
		populateRelatedTasks: populateRelatedTasks,
	}
}

// Build implements [RequestContextBuilder].
func (b *SimpleRequestContextBuilder) Build(ctx context.Context, params *a2a.MessageSendParams, taskID, contextID string, currentTask *a2a.Task) (*RequestContext, error) {
	if params != nil {
		if err := params.Validate(); err != nil {
			return nil, err
		}
	}

	rc := NewRequestContext(params, taskID, contextID, currentTask, CallContextFrom(ctx))
	if err := rc.Validate(); err != nil {
		return nil, fmt.Errorf("built request context is invalid: %w", err)
	}

	if b.populateRelatedTasks {
		if b.store == nil {
			return nil, errors.New("related tasks requested without a task store")
		}
		related, err := b.store.List(ctx, task.ListOptions{ContextID: contextID})
		if err != nil {
			return nil, fmt.Errorf("populate related tasks: %w", err)
		}
		for _, t := range related {
			if t.ID != taskID {
				rc.AttachRelatedTask(t)
			}
		}
	}
	return rc, nil
}

// String implements [fmt.Stringer].
func (b *SimpleRequestContextBuilder) String() string {
	return fmt.Sprintf("SimpleRequestContextBuilder{populateRelatedTasks: %t}", b.populateRelatedTasks)
}
