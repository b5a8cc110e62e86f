// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

// MessageSendConfiguration tunes how a sent message is processed.
type MessageSendConfiguration struct {
	AcceptedOutputModes []string `json:"acceptedOutputModes,omitempty"`
	// Blocking defaults to true when unset.
	Blocking               *bool                   `json:"blocking,omitempty"`
	HistoryLength          *int                    `json:"historyLength,omitempty"`
	PushNotificationConfig *PushNotificationConfig `json:"pushNotificationConfig,omitempty"`
}

// MessageSendParams are the parameters of message/send and message/stream.
type MessageSendParams struct {
	Message       *Message                  `json:"message"`
	Configuration *MessageSendConfiguration `json:"configuration,omitempty"`
	Metadata      map[string]any            `json:"metadata,omitempty"`
}

// Validate reports whether p can be processed.
func (p *MessageSendParams) Validate() error {
	if p == nil {
		return &InvalidParamsError{Msg: "params are required"}
	}
	if err := p.Message.Validate(); err != nil {
		return &InvalidParamsError{Msg: err.Error()}
	}
	if c := p.Configuration; c != nil {
		if c.HistoryLength != nil && *c.HistoryLength < 0 {
			return &InvalidParamsError{Msg: "historyLength must not be negative"}
		}
		if c.PushNotificationConfig != nil {
			if err := c.PushNotificationConfig.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// IsBlocking reports whether the caller waits for the task to settle.
func (p *MessageSendParams) IsBlocking() bool {
	if p.Configuration == nil || p.Configuration.Blocking == nil {
		return true
	}
	return *p.Configuration.Blocking
}

// HistoryLength returns the requested history length, or -1 for all of it.
func (p *MessageSendParams) HistoryLength() int {
	if p.Configuration == nil || p.Configuration.HistoryLength == nil {
		return -1
	}
	return *p.Configuration.HistoryLength
}

// TaskIDParams identify a task.
type TaskIDParams struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Validate reports whether p names a task.
func (p *TaskIDParams) Validate() error {
	if p == nil || p.ID == "" {
		return &InvalidParamsError{Msg: "task id is required"}
	}
	return nil
}

// TaskQueryParams identify a task and how much of its history to return.
type TaskQueryParams struct {
	ID            string         `json:"id"`
	HistoryLength *int           `json:"historyLength,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Validate reports whether p names a task.
func (p *TaskQueryParams) Validate() error {
	if p == nil || p.ID == "" {
		return &InvalidParamsError{Msg: "task id is required"}
	}
	if p.HistoryLength != nil && *p.HistoryLength < 0 {
		return &InvalidParamsError{Msg: "historyLength must not be negative"}
	}
	return nil
}

// PushNotificationAuthenticationInfo describes how to authenticate to a webhook.
type PushNotificationAuthenticationInfo struct {
	Schemes     []string `json:"schemes"`
	Credentials string   `json:"credentials,omitempty"`
}

// PushNotificationConfig is a webhook subscription for task updates.
type PushNotificationConfig struct {
	ID             string                              `json:"id,omitempty"`
	URL            string                              `json:"url"`
	Token          string                              `json:"token,omitempty"`
	Authentication *PushNotificationAuthenticationInfo `json:"authentication,omitempty"`
}

// Validate reports whether c has a usable webhook URL.
func (c *PushNotificationConfig) Validate() error {
	if c == nil || c.URL == "" {
		return &InvalidParamsError{Msg: "push notification url is required"}
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *PushNotificationConfig) Clone() *PushNotificationConfig {
	if c == nil {
		return nil
	}
	out := *c
	if c.Authentication != nil {
		auth := *c.Authentication
		auth.Schemes = append([]string(nil), c.Authentication.Schemes...)
		out.Authentication = &auth
	}
	return &out
}

// TaskPushNotificationConfig binds a [PushNotificationConfig] to a task.
type TaskPushNotificationConfig struct {
	TaskID                 string                  `json:"taskId"`
	PushNotificationConfig *PushNotificationConfig `json:"pushNotificationConfig"`
}

// GetTaskPushNotificationConfigParams select one config of a task.
// An empty PushNotificationConfigID selects the first registered config.
type GetTaskPushNotificationConfigParams struct {
	ID                       string `json:"id"`
	PushNotificationConfigID string `json:"pushNotificationConfigId,omitempty"`
}

// DeleteTaskPushNotificationConfigParams select the config to delete.
type DeleteTaskPushNotificationConfigParams struct {
	ID                       string `json:"id"`
	PushNotificationConfigID string `json:"pushNotificationConfigId"`
}
