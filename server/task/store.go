// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package task holds the server side of the task lifecycle: persistence of
// tasks and push notification configs, the updater used by agent executors,
// the manager that applies queued events to the store, and push delivery.
package task

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-a2a/jokeagent/a2a"
)

// TaskStore persists [a2a.Task] aggregates keyed by id.
//
// Implementations deep-copy values on the way in and out, so callers may
// mutate what they pass or receive.
type TaskStore interface {
	// Create assigns a fresh id to task and persists it. The task must not
	// carry an id already; ids are minted only here and never reused.
	Create(ctx context.Context, task *a2a.Task) error

	// Save persists task, inserting or replacing by id.
	Save(ctx context.Context, task *a2a.Task) error

	// Get retrieves a task by id.
	// Returns *a2a.TaskNotFoundError if the task doesn't exist.
	Get(ctx context.Context, taskID string) (*a2a.Task, error)

	// Delete removes a task.
	// Returns *a2a.TaskNotFoundError if the task doesn't exist.
	Delete(ctx context.Context, taskID string) error

	// List returns tasks matching opts in creation order.
	List(ctx context.Context, opts ListOptions) ([]*a2a.Task, error)

	// Count returns the number of tasks matching opts, ignoring Limit and Offset.
	Count(ctx context.Context, opts ListOptions) (int64, error)

	// Close releases the resources held by the store.
	Close(ctx context.Context) error
}

// ListOptions filter [TaskStore.List] and [TaskStore.Count].
type ListOptions struct {
	ContextID string
	// States keeps only tasks in one of the given states when non-empty.
	States []a2a.TaskState
	// StatusBefore keeps only tasks whose status timestamp is before it when non-zero.
	StatusBefore time.Time
	Limit        int
	Offset       int
}

func (o ListOptions) match(t *a2a.Task) bool {
	if o.ContextID != "" && t.ContextID != o.ContextID {
		return false
	}
	if len(o.States) > 0 && !slices.Contains(o.States, t.Status.State) {
		return false
	}
	if !o.StatusBefore.IsZero() && !t.Status.Timestamp.Before(o.StatusBefore) {
		return false
	}
	return true
}

func validateTask(task *a2a.Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if task.ID == "" {
		return NewTaskValidationError(task.ID, fmt.Errorf("task id is required"))
	}
	if task.ContextID == "" {
		return NewTaskValidationError(task.ID, fmt.Errorf("context id is required"))
	}
	if !task.Status.State.IsValid() {
		return NewTaskValidationError(task.ID, fmt.Errorf("invalid state %q", task.Status.State))
	}
	return nil
}
