// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent_execution

import (
	"fmt"

	"github.com/go-a2a/jokeagent/a2a"
)

// RequestContext describes one invocation of a task: the incoming message,
// the ids it is bound to and the task as stored when the invocation began.
type RequestContext struct {
	params       *a2a.MessageSendParams
	taskID       string
	contextID    string
	currentTask  *a2a.Task
	relatedTasks []*a2a.Task
	callContext  *CallContext
}

// NewRequestContext creates a RequestContext. params is nil for a cancel
// request, currentTask is nil when the task has no stored state yet.
func NewRequestContext(params *a2a.MessageSendParams, taskID, contextID string, currentTask *a2a.Task, callContext *CallContext) *RequestContext {
	if callContext == nil {
		callContext = NewCallContext(nil)
	}
	return &RequestContext{
		params:      params,
		taskID:      taskID,
		contextID:   contextID,
		currentTask: currentTask.Clone(),
		callContext: callContext,
	}
}

// Params returns the message send params, or nil for a cancel request.
func (rc *RequestContext) Params() *a2a.MessageSendParams { return rc.params }

// Message returns the incoming message, or nil for a cancel request.
func (rc *RequestContext) Message() *a2a.Message {
	if rc.params == nil {
		return nil
	}
	return rc.params.Message
}

// TaskID returns the id of the task being worked on.
func (rc *RequestContext) TaskID() string { return rc.taskID }

// ContextID returns the context id of the task being worked on.
func (rc *RequestContext) ContextID() string { return rc.contextID }

// CurrentTask returns a copy of the task as it was when the invocation began.
func (rc *RequestContext) CurrentTask() *a2a.Task { return rc.currentTask.Clone() }

// RelatedTasks returns the other tasks of the same context, if they were loaded.
func (rc *RequestContext) RelatedTasks() []*a2a.Task { return rc.relatedTasks }

// CallContext returns transport information about the call.
func (rc *RequestContext) CallContext() *CallContext { return rc.callContext }

// Configuration returns the send configuration, or nil.
func (rc *RequestContext) Configuration() *a2a.MessageSendConfiguration {
	if rc.params == nil {
		return nil
	}
	return rc.params.Configuration
}

// GetUserInput returns the text parts of the incoming message joined by delimiter.
func (rc *RequestContext) GetUserInput(delimiter string) string {
	return a2a.GetMessageText(rc.Message(), delimiter)
}

// AttachRelatedTask records another task of the same context.
func (rc *RequestContext) AttachRelatedTask(t *a2a.Task) {
	rc.relatedTasks = append(rc.relatedTasks, t)
}

// Validate reports whether the context is bound to a task.
func (rc *RequestContext) Validate() error {
	if rc.taskID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}
	if rc.contextID == "" {
		return fmt.Errorf("context ID cannot be empty")
	}
	if rc.currentTask != nil && rc.currentTask.ID != rc.taskID {
		return fmt.Errorf("current task %s does not match task ID %s", rc.currentTask.ID, rc.taskID)
	}
	return nil
}

// String implements [fmt.Stringer].
func (rc *RequestContext) String() string {
	return fmt.Sprintf("RequestContext{taskID: %s, contextID: %s, hasTask: %t}", rc.taskID, rc.contextID, rc.currentTask != nil)
}
