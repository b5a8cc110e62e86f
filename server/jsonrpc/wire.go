// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package jsonrpc

import (
	"context"
	"errors"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/go-a2a/jokeagent/a2a"
)

// Version is the JSON-RPC protocol version.
const Version = "2.0"

// Methods served by [Server].
const (
	MethodMessageSend      = "message/send"
	MethodMessageStream    = "message/stream"
	MethodTasksGet         = "tasks/get"
	MethodTasksCancel      = "tasks/cancel"
	MethodTasksResubscribe = "tasks/resubscribe"
	MethodPushConfigSet    = "tasks/pushNotificationConfig/set"
	MethodPushConfigGet    = "tasks/pushNotificationConfig/get"
	MethodPushConfigList   = "tasks/pushNotificationConfig/list"
	MethodPushConfigDelete = "tasks/pushNotificationConfig/delete"
)

var nullID = jsontext.Value("null")

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      jsontext.Value `json:"id,omitzero"`
	Method  string         `json:"method"`
	Params  jsontext.Value `json:"params,omitzero"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements [error].
func (e *Error) Error() string { return e.Message }

// Response is a JSON-RPC 2.0 response. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      jsontext.Value `json:"id"`
	Result  jsontext.Value `json:"result,omitzero"`
	Error   *Error         `json:"error,omitempty"`
}

func newResult(id jsontext.Value, result any) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Response{JSONRPC: Version, ID: responseID(id), Result: raw}, nil
}

func newError(id jsontext.Value, err error) *Response {
	return &Response{JSONRPC: Version, ID: responseID(id), Error: toError(err)}
}

func responseID(id jsontext.Value) jsontext.Value {
	if len(id) == 0 {
		return nullID
	}
	return id
}

// toError maps err onto the a2a error taxonomy. Internal details never leave
// the process.
func toError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Code: a2a.ErrorCodeInternalError, Message: "Request canceled"}
	}
	coded := a2a.AsCodedError(err)
	e := &Error{Code: coded.Code(), Message: coded.Message()}
	switch coded.(type) {
	case *a2a.InternalError, a2a.InternalError:
	default:
		e.Data = coded.Error()
	}
	return e
}
