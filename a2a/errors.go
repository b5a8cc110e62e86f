// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"errors"
	"fmt"
)

// JSON-RPC error codes.
const (
	ErrorCodeJSONParse                    = -32700
	ErrorCodeInvalidRequest               = -32600
	ErrorCodeMethodNotFound               = -32601
	ErrorCodeInvalidParams                = -32602
	ErrorCodeInternalError                = -32603
	ErrorCodeTaskNotFound                 = -32001
	ErrorCodeTaskNotCancelable            = -32002
	ErrorCodePushNotificationNotSupported = -32003
	ErrorCodeUnsupportedOperation         = -32004
)

// GenericFailureMessage is the status text reported to callers when an executor fails.
// The underlying error is logged, never returned.
const GenericFailureMessage = "An error occurred during execution."

// CodedError is an error that maps onto a JSON-RPC error code.
type CodedError interface {
	error
	Code() int
	Message() string
}

var (
	_ CodedError = (*TaskNotFoundError)(nil)
	_ CodedError = (*InvalidStateTransitionError)(nil)
	_ CodedError = (*InvalidParamsError)(nil)
	_ CodedError = (*InternalError)(nil)
	_ CodedError = (*UnsupportedOperationError)(nil)
	_ CodedError = (*PushNotificationNotSupportedError)(nil)
	_ CodedError = (*MethodNotFoundError)(nil)
	_ CodedError = (*InvalidRequestError)(nil)
	_ CodedError = (*JSONParseError)(nil)
)

// TaskNotFoundError reports an operation on an unknown task id.
type TaskNotFoundError struct {
	TaskID string
}

// Error returns the error message.
func (e TaskNotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.TaskID)
}

// Code returns the error code.
func (e TaskNotFoundError) Code() int { return ErrorCodeTaskNotFound }

// Message returns the error message.
func (e TaskNotFoundError) Message() string { return "Task not found" }

// InvalidStateTransitionError reports a transition the task state machine does not allow.
type InvalidStateTransitionError struct {
	TaskID string
	From   TaskState
	To     TaskState
}

// Error returns the error message.
func (e InvalidStateTransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("task %s is in terminal state %s", e.TaskID, e.From)
	}
	return fmt.Sprintf("task %s cannot transition from %s to %s", e.TaskID, e.From, e.To)
}

// Code returns the error code.
func (e InvalidStateTransitionError) Code() int { return ErrorCodeTaskNotCancelable }

// Message returns the error message.
func (e InvalidStateTransitionError) Message() string { return "Invalid task state transition" }

// InvalidParamsError reports a malformed request.
type InvalidParamsError struct {
	Msg string
}

// Error returns the error message.
func (e InvalidParamsError) Error() string {
	return fmt.Sprintf("invalid params: %s", e.Msg)
}

// Code returns the error code.
func (e InvalidParamsError) Code() int { return ErrorCodeInvalidParams }

// Message returns the error message.
func (e InvalidParamsError) Message() string { return "Invalid params" }

// InternalError reports an unexpected failure. Err is kept for logging and
// is never rendered to callers.
type InternalError struct {
	Msg string
	Err error
}

// Error returns the error message.
func (e InternalError) Error() string {
	if e.Msg == "" {
		return "internal error"
	}
	return fmt.Sprintf("internal error: %s", e.Msg)
}

// Unwrap returns the underlying error.
func (e InternalError) Unwrap() error { return e.Err }

// Code returns the error code.
func (e InternalError) Code() int { return ErrorCodeInternalError }

// Message returns the error message.
func (e InternalError) Message() string { return "Internal error" }

// UnsupportedOperationError reports a capability the agent does not implement.
type UnsupportedOperationError struct {
	Operation string
}

// Error returns the error message.
func (e UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported operation: %s", e.Operation)
}

// Code returns the error code.
func (e UnsupportedOperationError) Code() int { return ErrorCodeUnsupportedOperation }

// Message returns the error message.
func (e UnsupportedOperationError) Message() string { return "This operation is not supported" }

// PushNotificationNotSupportedError reports that no push notification config store is configured.
type PushNotificationNotSupportedError struct{}

// Error returns the error message.
func (e PushNotificationNotSupportedError) Error() string { return "push notifications are not supported" }

// Code returns the error code.
func (e PushNotificationNotSupportedError) Code() int { return ErrorCodePushNotificationNotSupported }

// Message returns the error message.
func (e PushNotificationNotSupportedError) Message() string { return "Push Notification is not supported" }

// MethodNotFoundError reports an unknown JSON-RPC method.
type MethodNotFoundError struct {
	Method string
}

// Error returns the error message.
func (e MethodNotFoundError) Error() string {
	return fmt.Sprintf("method not found: %s", e.Method)
}

// Code returns the error code.
func (e MethodNotFoundError) Code() int { return ErrorCodeMethodNotFound }

// Message returns the error message.
func (e MethodNotFoundError) Message() string { return "Method not found" }

// InvalidRequestError reports a request that is not valid JSON-RPC.
type InvalidRequestError struct {
	Msg string
}

// Error returns the error message.
func (e InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Msg)
}

// Code returns the error code.
func (e InvalidRequestError) Code() int { return ErrorCodeInvalidRequest }

// Message returns the error message.
func (e InvalidRequestError) Message() string { return "Invalid Request" }

// JSONParseError reports a body that is not valid JSON.
type JSONParseError struct {
	Msg string
}

// Error returns the error message.
func (e JSONParseError) Error() string {
	return fmt.Sprintf("JSON parse error: %s", e.Msg)
}

// Code returns the error code.
func (e JSONParseError) Code() int { return ErrorCodeJSONParse }

// Message returns the error message.
func (e JSONParseError) Message() string { return "Parse error" }

// AsCodedError returns err as a [CodedError], wrapping anything else in an [InternalError].
func AsCodedError(err error) CodedError {
	var coded CodedError
	if errors.As(err, &coded) {
		return coded
	}
	return &InternalError{Err: err}
}
