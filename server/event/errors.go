// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueClosed is returned by Enqueue on a closed queue, and by Dequeue
	// once a closed queue has been drained. It marks the end of the stream.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrQueueFinalized is returned by Enqueue after a final event was enqueued.
	ErrQueueFinalized = errors.New("queue already holds a final event")

	// ErrNilEvent is returned when enqueueing a nil event.
	ErrNilEvent = errors.New("event cannot be nil")
)

// NoTaskQueueError reports that no queue is registered for a task.
type NoTaskQueueError struct {
	TaskID string
}

// Error returns the error message.
func (e *NoTaskQueueError) Error() string {
	return fmt.Sprintf("no task queue found for task ID: %s", e.TaskID)
}

// Is implements error matching for NoTaskQueueError.
func (e *NoTaskQueueError) Is(target error) bool {
	_, ok := target.(*NoTaskQueueError)
	return ok
}

// TaskQueueExistsError reports that a queue is already registered for a task.
type TaskQueueExistsError struct {
	TaskID string
}

// Error returns the error message.
func (e *TaskQueueExistsError) Error() string {
	return fmt.Sprintf("task queue already exists for task ID: %s", e.TaskID)
}

// Is implements error matching for TaskQueueExistsError.
func (e *TaskQueueExistsError) Is(target error) bool {
	_, ok := target.(*TaskQueueExistsError)
	return ok
}
