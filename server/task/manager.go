// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/go-a2a/jokeagent/a2a"
)

// ErrArtifactNotFound is returned by [ApplyEvent] for an append to an artifact
// the task does not have. The event is dropped.
var ErrArtifactNotFound = errors.New("artifact to append to not found")

// ApplyEvent folds ev into task in place.
//
// A status update replaces the status after moving the previous status message
// into the history. An artifact update replaces or adds an artifact, or extends
// an existing one when it is an append. A task snapshot replaces task wholesale
// and a message is appended to the history.
//
// Events that would move the task out of a terminal state are rejected with
// *a2a.InvalidStateTransitionError and leave task untouched.
func ApplyEvent(task *a2a.Task, ev a2a.Event) error {
	if id := ev.EventTaskID(); id != "" && id != task.ID {
		return fmt.Errorf("event for task %s applied to task %s", id, task.ID)
	}

	switch e := ev.(type) {
	case *a2a.Task:
		if task.Status.State.IsTerminal() && e.Status.State != task.Status.State {
			return &a2a.InvalidStateTransitionError{TaskID: task.ID, From: task.Status.State, To: e.Status.State}
		}
		*task = *e.Clone()

	case *a2a.TaskStatusUpdateEvent:
		if !task.Status.State.CanTransitionTo(e.Status.State) {
			return &a2a.InvalidStateTransitionError{TaskID: task.ID, From: task.Status.State, To: e.Status.State}
		}
		if task.Status.Message != nil {
			task.History = append(task.History, task.Status.Message)
		}
		task.Status = e.Status
		if len(e.Metadata) > 0 {
			if task.Metadata == nil {
				task.Metadata = make(map[string]any, len(e.Metadata))
			}
			maps.Copy(task.Metadata, e.Metadata)
		}

	case *a2a.TaskArtifactUpdateEvent:
		if task.Status.State.IsTerminal() {
			return &a2a.InvalidStateTransitionError{TaskID: task.ID, From: task.Status.State}
		}
		return applyArtifact(task, e)

	case *a2a.Message:
		if task.Status.State.IsTerminal() {
			return &a2a.InvalidStateTransitionError{TaskID: task.ID, From: task.Status.State}
		}
		task.History = append(task.History, e)

	default:
		return fmt.Errorf("unknown event type %T", ev)
	}
	return nil
}

func applyArtifact(task *a2a.Task, e *a2a.TaskArtifactUpdateEvent) error {
	if e.Artifact == nil {
		return fmt.Errorf("artifact update without artifact")
	}
	i := slices.IndexFunc(task.Artifacts, func(a *a2a.Artifact) bool { return a.ArtifactID == e.Artifact.ArtifactID })

	if !e.Append {
		if i >= 0 {
			task.Artifacts[i] = e.Artifact.Clone()
		} else {
			task.Artifacts = append(task.Artifacts, e.Artifact.Clone())
		}
		return nil
	}

	if i < 0 {
		return ErrArtifactNotFound
	}
	existing := task.Artifacts[i].Clone()
	existing.Parts = append(existing.Parts, e.Artifact.Parts...)
	if len(e.Artifact.Metadata) > 0 {
		if existing.Metadata == nil {
			existing.Metadata = make(map[string]any, len(e.Artifact.Metadata))
		}
		maps.Copy(existing.Metadata, e.Artifact.Metadata)
	}
	task.Artifacts[i] = existing
	return nil
}

// TaskManagerConfig holds configuration for creating a [TaskManager].
type TaskManagerConfig struct {
	TaskID string
	Store  TaskStore
	Logger *slog.Logger
}

// TaskManager applies the events of one task to the store. It is the single
// writer for that task while an invocation runs.
type TaskManager struct {
	taskID string
	store  TaskStore
	logger *slog.Logger

	mu   sync.Mutex
	task *a2a.Task
}

// NewTaskManager creates a new TaskManager with the given configuration.
func NewTaskManager(config TaskManagerConfig) (*TaskManager, error) {
	if config.TaskID == "" {
		return nil, fmt.Errorf("task ID cannot be empty")
	}
	if config.Store == nil {
		return nil, fmt.Errorf("task store cannot be nil")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskManager{
		taskID: config.TaskID,
		store:  config.Store,
		logger: logger,
	}, nil
}

// GetTask returns the current task, loading it from the store on first use.
func (m *TaskManager) GetTask(ctx context.Context) (*a2a.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.load(ctx); err != nil {
		return nil, err
	}
	return m.task.Clone(), nil
}

func (m *TaskManager) load(ctx context.Context) error {
	if m.task != nil {
		return nil
	}
	t, err := m.store.Get(ctx, m.taskID)
	if err != nil {
		return err
	}
	m.task = t
	return nil
}

// Process applies ev to the task and saves the result. It returns the task
// as stored after the event.
func (m *TaskManager) Process(ctx context.Context, ev a2a.Event) (*a2a.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.load(ctx); err != nil {
		return nil, NewTaskManagerError("load", m.taskID, err)
	}

	next := m.task.Clone()
	if err := ApplyEvent(next, ev); err != nil {
		if errors.Is(err, ErrArtifactNotFound) {
			m.logger.WarnContext(ctx, "dropping append to unknown artifact",
				slog.String("task_id", m.taskID),
				slog.String("artifact_id", ev.(*a2a.TaskArtifactUpdateEvent).Artifact.ArtifactID))
			return m.task.Clone(), nil
		}
		return nil, NewTaskManagerError("apply "+ev.EventKind(), m.taskID, err)
	}

	if err := m.store.Save(ctx, next); err != nil {
		return nil, NewTaskManagerError("save", m.taskID, err)
	}
	m.task = next
	return next.Clone(), nil
}
