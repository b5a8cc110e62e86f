// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"errors"
	"fmt"

	"github.com/go-a2a/jokeagent/a2a"
	"github.com/go-a2a/jokeagent/server/jsonrpc"
)

// RPCError is an error object returned by the agent.
type RPCError struct {
	Code    int
	Message string
	Data    any
}

func newRPCError(e *jsonrpc.Error) *RPCError {
	return &RPCError{Code: e.Code, Message: e.Message, Data: e.Data}
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error: code = %d, message = %s, data = %v", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error: code = %d, message = %s", e.Code, e.Message)
}

// IsRPCError reports whether err is an [*RPCError] with the given code.
func IsRPCError(err error, code int) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == code
}

// IsTaskNotFoundError reports whether err is due to an unknown task.
func IsTaskNotFoundError(err error) bool {
	return IsRPCError(err, a2a.ErrorCodeTaskNotFound)
}

// IsTaskNotCancelableError reports whether err is due to a task that can no longer be canceled.
func IsTaskNotCancelableError(err error) bool {
	return IsRPCError(err, a2a.ErrorCodeTaskNotCancelable)
}

// IsPushNotificationNotSupportedError reports whether the agent does not keep push configs.
func IsPushNotificationNotSupportedError(err error) bool {
	return IsRPCError(err, a2a.ErrorCodePushNotificationNotSupported)
}
