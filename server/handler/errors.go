// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-a2a/jokeagent/a2a"
)

// ErrHandlerClosed is wrapped by the errors of requests that arrive after
// [DefaultRequestHandler.Close].
var ErrHandlerClosed = errors.New("request handler is closed")

// StreamIdleTimeoutError ends a stream whose next event did not arrive in
// time. The task keeps running and can be resubscribed to.
type StreamIdleTimeoutError struct {
	TaskID  string
	Timeout time.Duration
}

var _ a2a.CodedError = (*StreamIdleTimeoutError)(nil)

// Error returns the error message.
func (e StreamIdleTimeoutError) Error() string {
	return fmt.Sprintf("no event for task %s within %s", e.TaskID, e.Timeout)
}

// Code returns the error code.
func (e StreamIdleTimeoutError) Code() int { return a2a.ErrorCodeInternalError }

// Message returns the error message.
func (e StreamIdleTimeoutError) Message() string { return "Stream idle timeout" }

func errHandlerClosed() error {
	return &a2a.InternalError{Msg: "request handler is closed", Err: ErrHandlerClosed}
}

func taskBusyError(taskID string) error {
	return &a2a.InvalidParamsError{Msg: fmt.Sprintf("task %s is already running", taskID)}
}
