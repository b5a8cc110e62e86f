// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/go-a2a/jokeagent/a2a"
	"github.com/go-a2a/jokeagent/server/event"
)

// TaskUpdaterConfig holds configuration for creating a [TaskUpdater].
type TaskUpdaterConfig struct {
	TaskID    string
	ContextID string
	Queue     event.Enqueuer
	// State is the state of the task when the updater is created. Transitions
	// are validated starting from it. It defaults to submitted.
	State a2a.TaskState
}

// TaskUpdater is the write facade an agent executor uses to publish status
// transitions and artifacts for one task during one invocation.
//
// Every call only enqueues an event; the task store is updated by whoever
// drains the queue. After a final status update the updater rejects further
// calls with [ErrUpdaterClosed].
type TaskUpdater struct {
	taskID    string
	contextID string
	queue     event.Enqueuer

	mu    sync.Mutex
	state a2a.TaskState
	final bool
}

// NewTaskUpdater creates a new TaskUpdater with the given configuration.
func NewTaskUpdater(config TaskUpdaterConfig) (*TaskUpdater, error) {
	if config.TaskID == "" {
		return nil, fmt.Errorf("task ID cannot be empty")
	}
	if config.ContextID == "" {
		return nil, fmt.Errorf("context ID cannot be empty")
	}
	if config.Queue == nil {
		return nil, fmt.Errorf("event queue cannot be nil")
	}
	state := config.State
	if state == "" {
		state = a2a.TaskStateSubmitted
	}

	return &TaskUpdater{
		taskID:    config.TaskID,
		contextID: config.ContextID,
		queue:     config.Queue,
		state:     state,
		final:     state.IsTerminal(),
	}, nil
}

// UpdateStatus validates the transition to state and enqueues a status update.
// Terminal states are always final.
func (u *TaskUpdater) UpdateStatus(ctx context.Context, state a2a.TaskState, msg *a2a.Message, final bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.final {
		return ErrUpdaterClosed
	}
	if !u.state.CanTransitionTo(state) {
		return &a2a.InvalidStateTransitionError{TaskID: u.taskID, From: u.state, To: state}
	}
	final = final || state.IsTerminal()

	ev := a2a.NewStatusUpdateEvent(u.taskID, u.contextID, state, msg, final)
	if err := u.queue.Enqueue(ctx, ev); err != nil {
		if errors.Is(err, event.ErrQueueFinalized) || errors.Is(err, event.ErrQueueClosed) {
			u.final = true
		}
		return fmt.Errorf("publish status update: %w", err)
	}

	u.state = state
	u.final = final
	return nil
}

type artifactOptions struct {
	id        string
	name      string
	append    bool
	lastChunk bool
	metadata  map[string]any
}

// ArtifactOption configures [TaskUpdater.AddArtifact].
type ArtifactOption func(*artifactOptions)

// WithArtifactID sets the artifact id. Appending chunks to an artifact
// requires reusing its id.
func WithArtifactID(id string) ArtifactOption {
	return func(o *artifactOptions) { o.id = id }
}

// WithArtifactName sets the artifact name.
func WithArtifactName(name string) ArtifactOption {
	return func(o *artifactOptions) { o.name = name }
}

// WithAppend marks the parts as a continuation of an existing artifact.
func WithAppend(v bool) ArtifactOption {
	return func(o *artifactOptions) { o.append = v }
}

// WithLastChunk marks the parts as the last chunk of the artifact.
func WithLastChunk(v bool) ArtifactOption {
	return func(o *artifactOptions) { o.lastChunk = v }
}

// WithArtifactMetadata attaches metadata to the artifact.
func WithArtifactMetadata(metadata map[string]any) ArtifactOption {
	return func(o *artifactOptions) { o.metadata = metadata }
}

// AddArtifact enqueues an artifact update carrying parts. It does not change
// the task state.
func (u *TaskUpdater) AddArtifact(ctx context.Context, parts a2a.Parts, opts ...ArtifactOption) error {
	if len(parts) == 0 {
		return fmt.Errorf("artifact must have at least one part")
	}
	var o artifactOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.final {
		return ErrUpdaterClosed
	}

	ev := &a2a.TaskArtifactUpdateEvent{
		Kind:      a2a.KindArtifactUpdate,
		TaskID:    u.taskID,
		ContextID: u.contextID,
		Artifact: &a2a.Artifact{
			ArtifactID: o.id,
			Name:       o.name,
			Parts:      parts,
			Metadata:   o.metadata,
		},
		Append:    o.append,
		LastChunk: o.lastChunk,
	}
	if err := u.queue.Enqueue(ctx, ev); err != nil {
		if errors.Is(err, event.ErrQueueFinalized) || errors.Is(err, event.ErrQueueClosed) {
			u.final = true
		}
		return fmt.Errorf("publish artifact update: %w", err)
	}
	return nil
}

// Submit marks the task as submitted.
func (u *TaskUpdater) Submit(ctx context.Context, msg *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.TaskStateSubmitted, msg, false)
}

// StartWork marks the task as working.
func (u *TaskUpdater) StartWork(ctx context.Context, msg *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.TaskStateWorking, msg, false)
}

// Complete marks the task as completed.
func (u *TaskUpdater) Complete(ctx context.Context, msg *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.TaskStateCompleted, msg, true)
}

// Failed marks the task as failed.
func (u *TaskUpdater) Failed(ctx context.Context, msg *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.TaskStateFailed, msg, true)
}

// Reject marks the task as rejected.
func (u *TaskUpdater) Reject(ctx context.Context, msg *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.TaskStateRejected, msg, true)
}

// Cancel marks the task as canceled.
func (u *TaskUpdater) Cancel(ctx context.Context, msg *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.TaskStateCanceled, msg, true)
}

// RequiresInput marks the task as waiting for the caller. With final set the
// current invocation ends and the caller resumes it by sending another message.
func (u *TaskUpdater) RequiresInput(ctx context.Context, msg *a2a.Message, final bool) error {
	return u.UpdateStatus(ctx, a2a.TaskStateInputRequired, msg, final)
}

// RequiresAuth marks the task as waiting for authentication.
func (u *TaskUpdater) RequiresAuth(ctx context.Context, msg *a2a.Message, final bool) error {
	return u.UpdateStatus(ctx, a2a.TaskStateAuthRequired, msg, final)
}

// NewAgentMessage returns an agent message bound to the updater's task.
func (u *TaskUpdater) NewAgentMessage(parts a2a.Parts) *a2a.Message {
	return &a2a.Message{
		Kind:      a2a.KindMessage,
		MessageID: uuid.NewString(),
		Role:      a2a.RoleAgent,
		Parts:     parts,
		ContextID: u.contextID,
		TaskID:    u.taskID,
	}
}

// TaskID returns the task id the updater writes for.
func (u *TaskUpdater) TaskID() string { return u.taskID }

// ContextID returns the context id the updater writes for.
func (u *TaskUpdater) ContextID() string { return u.contextID }

// State returns the last state the updater published.
func (u *TaskUpdater) State() a2a.TaskState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// IsFinal reports whether the updater has published a final event.
func (u *TaskUpdater) IsFinal() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.final
}
