// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"maps"
	"slices"
	"time"
)

// TaskState represents the lifecycle state of a [Task].
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateFailed        TaskState = "failed"
	TaskStateRejected      TaskState = "rejected"
	TaskStateAuthRequired  TaskState = "auth-required"
	TaskStateUnknown       TaskState = "unknown"
)

// String implements [fmt.Stringer].
func (s TaskState) String() string { return string(s) }

// IsTerminal reports whether no further transitions are accepted out of s.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateCanceled, TaskStateFailed, TaskStateRejected:
		return true
	default:
		return false
	}
}

// IsValid reports whether s is one of the known task states.
func (s TaskState) IsValid() bool {
	switch s {
	case TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired, TaskStateCompleted,
		TaskStateCanceled, TaskStateFailed, TaskStateRejected, TaskStateAuthRequired, TaskStateUnknown:
		return true
	default:
		return false
	}
}

// transitions lists the states reachable from each active state.
// Terminal states have no entry and therefore accept nothing.
var transitions = map[TaskState][]TaskState{
	TaskStateSubmitted: {
		TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired, TaskStateAuthRequired,
		TaskStateCompleted, TaskStateFailed, TaskStateCanceled, TaskStateRejected,
	},
	TaskStateWorking: {
		TaskStateWorking, TaskStateInputRequired, TaskStateAuthRequired,
		TaskStateCompleted, TaskStateFailed, TaskStateCanceled, TaskStateRejected,
	},
	TaskStateInputRequired: {
		TaskStateInputRequired, TaskStateWorking, TaskStateAuthRequired,
		TaskStateCompleted, TaskStateFailed, TaskStateCanceled, TaskStateRejected,
	},
	TaskStateAuthRequired: {
		TaskStateAuthRequired, TaskStateWorking, TaskStateInputRequired,
		TaskStateCompleted, TaskStateFailed, TaskStateCanceled, TaskStateRejected,
	},
	TaskStateUnknown: {
		TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired, TaskStateAuthRequired,
		TaskStateCompleted, TaskStateFailed, TaskStateCanceled, TaskStateRejected,
	},
}

// CanTransitionTo reports whether a task in state s may move to next.
func (s TaskState) CanTransitionTo(next TaskState) bool {
	return slices.Contains(transitions[s], next)
}

// TaskStatus is the current state of a task plus an optional status message.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Task is a trackable, stateful unit of agent work.
type Task struct {
	Kind      string         `json:"kind"`
	ID        string         `json:"id"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	History   []*Message     `json:"history,omitempty"`
	Artifacts []*Artifact    `json:"artifacts,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

var _ Event = (*Task)(nil)

// NewTask returns a submitted task for the given context whose history starts with msg.
// The id is left empty; it is assigned by the task store on creation.
func NewTask(contextID string, msg *Message) *Task {
	t := &Task{
		Kind:      KindTask,
		ContextID: contextID,
		Status: TaskStatus{
			State:     TaskStateSubmitted,
			Timestamp: time.Now().UTC(),
		},
	}
	if msg != nil {
		t.History = []*Message{msg}
	}
	return t
}

// EventKind implements [Event].
func (t *Task) EventKind() string { return KindTask }

// EventTaskID implements [Event].
func (t *Task) EventTaskID() string { return t.ID }

// Clone returns a copy of t that shares no mutable state with it.
// Messages are immutable once constructed and are shared.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.History = slices.Clone(t.History)
	if t.Artifacts != nil {
		c.Artifacts = make([]*Artifact, len(t.Artifacts))
		for i, a := range t.Artifacts {
			c.Artifacts[i] = a.Clone()
		}
	}
	c.Metadata = maps.Clone(t.Metadata)
	return &c
}

// TrimHistory returns a copy of t keeping only the last n history entries.
// A negative n keeps the full history.
func (t *Task) TrimHistory(n int) *Task {
	c := t.Clone()
	if n >= 0 && len(c.History) > n {
		c.History = c.History[len(c.History)-n:]
	}
	return c
}
