// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"fmt"
	"maps"
	"time"

	"github.com/go-json-experiment/json"
)

// Event kinds, used as the "kind" discriminator on the wire.
const (
	KindTask           = "task"
	KindMessage        = "message"
	KindStatusUpdate   = "status-update"
	KindArtifactUpdate = "artifact-update"
)

// Event is a value that flows through an event queue. It is one of
// [*Task], [*Message], [*TaskStatusUpdateEvent] or [*TaskArtifactUpdateEvent].
type Event interface {
	EventKind() string
	EventTaskID() string
}

// TaskStatusUpdateEvent reports a status transition of a task.
type TaskStatusUpdateEvent struct {
	Kind      string         `json:"kind"`
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	Final     bool           `json:"final"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

var _ Event = (*TaskStatusUpdateEvent)(nil)

// NewStatusUpdateEvent returns a status update event stamped with the current time.
func NewStatusUpdateEvent(taskID, contextID string, state TaskState, msg *Message, final bool) *TaskStatusUpdateEvent {
	return &TaskStatusUpdateEvent{
		Kind:      KindStatusUpdate,
		TaskID:    taskID,
		ContextID: contextID,
		Status: TaskStatus{
			State:     state,
			Message:   msg,
			Timestamp: time.Now().UTC(),
		},
		Final: final,
	}
}

// EventKind implements [Event].
func (e *TaskStatusUpdateEvent) EventKind() string { return KindStatusUpdate }

// EventTaskID implements [Event].
func (e *TaskStatusUpdateEvent) EventTaskID() string { return e.TaskID }

// String implements [fmt.Stringer].
func (e *TaskStatusUpdateEvent) String() string {
	return fmt.Sprintf("TaskStatusUpdateEvent{TaskID: %s, State: %s, Final: %t}", e.TaskID, e.Status.State, e.Final)
}

// TaskArtifactUpdateEvent reports a new or extended artifact.
type TaskArtifactUpdateEvent struct {
	Kind      string         `json:"kind"`
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Artifact  *Artifact      `json:"artifact"`
	Append    bool           `json:"append,omitempty"`
	LastChunk bool           `json:"lastChunk,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

var _ Event = (*TaskArtifactUpdateEvent)(nil)

// EventKind implements [Event].
func (e *TaskArtifactUpdateEvent) EventKind() string { return KindArtifactUpdate }

// EventTaskID implements [Event].
func (e *TaskArtifactUpdateEvent) EventTaskID() string { return e.TaskID }

// String implements [fmt.Stringer].
func (e *TaskArtifactUpdateEvent) String() string {
	id := ""
	if e.Artifact != nil {
		id = e.Artifact.ArtifactID
	}
	return fmt.Sprintf("TaskArtifactUpdateEvent{TaskID: %s, ArtifactID: %s, Append: %t}", e.TaskID, id, e.Append)
}

// IsFinalEvent reports whether ev ends the current invocation of a task:
// a status update flagged final, or a standalone message.
func IsFinalEvent(ev Event) bool {
	switch e := ev.(type) {
	case *TaskStatusUpdateEvent:
		return e.Final
	case *Message:
		return true
	default:
		return false
	}
}

// CloneEvent returns a copy of ev safe to hand to another consumer.
func CloneEvent(ev Event) Event {
	switch e := ev.(type) {
	case *Task:
		return e.Clone()
	case *TaskStatusUpdateEvent:
		c := *e
		c.Metadata = maps.Clone(e.Metadata)
		return &c
	case *TaskArtifactUpdateEvent:
		c := *e
		c.Artifact = e.Artifact.Clone()
		c.Metadata = maps.Clone(e.Metadata)
		return &c
	default:
		return ev
	}
}

// UnmarshalEvent decodes a task event by its "kind" discriminator.
func UnmarshalEvent(data []byte) (Event, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("unmarshal event kind: %w", err)
	}

	var ev Event
	switch probe.Kind {
	case KindTask:
		ev = new(Task)
	case KindMessage:
		ev = new(Message)
	case KindStatusUpdate:
		ev = new(TaskStatusUpdateEvent)
	case KindArtifactUpdate:
		ev = new(TaskArtifactUpdateEvent)
	default:
		return nil, fmt.Errorf("unknown event kind %q", probe.Kind)
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("unmarshal %s event: %w", probe.Kind, err)
	}
	return ev, nil
}
