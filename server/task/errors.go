// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"errors"
	"fmt"
)

// ErrUpdaterClosed is returned by a [TaskUpdater] after it emitted a final event.
var ErrUpdaterClosed = errors.New("task updater is closed: a final event was already emitted")

// TaskStoreError represents an error from a storage backend.
type TaskStoreError struct {
	Operation string
	TaskID    string
	Err       error
}

// Error returns the error message.
func (e TaskStoreError) Error() string {
	return fmt.Sprintf("task store %s operation failed for task %s: %v", e.Operation, e.TaskID, e.Err)
}

// Unwrap returns the underlying error.
func (e TaskStoreError) Unwrap() error {
	return e.Err
}

// NewTaskStoreError creates a new TaskStoreError.
func NewTaskStoreError(operation, taskID string, err error) *TaskStoreError {
	return &TaskStoreError{Operation: operation, TaskID: taskID, Err: err}
}

// TaskValidationError represents an error when task validation fails.
type TaskValidationError struct {
	TaskID string
	Err    error
}

// Error returns the error message.
func (e TaskValidationError) Error() string {
	return fmt.Sprintf("task %s validation failed: %v", e.TaskID, e.Err)
}

// Unwrap returns the underlying error.
func (e TaskValidationError) Unwrap() error {
	return e.Err
}

// NewTaskValidationError creates a new TaskValidationError.
func NewTaskValidationError(taskID string, err error) *TaskValidationError {
	return &TaskValidationError{TaskID: taskID, Err: err}
}

// TaskManagerError represents an error applying an event to a stored task.
type TaskManagerError struct {
	Operation string
	TaskID    string
	Err       error
}

// Error returns the error message.
func (e TaskManagerError) Error() string {
	return fmt.Sprintf("task manager %s operation failed for task %s: %v", e.Operation, e.TaskID, e.Err)
}

// Unwrap returns the underlying error.
func (e TaskManagerError) Unwrap() error {
	return e.Err
}

// NewTaskManagerError creates a new TaskManagerError.
func NewTaskManagerError(operation, taskID string, err error) *TaskManagerError {
	return &TaskManagerError{Operation: operation, TaskID: taskID, Err: err}
}
