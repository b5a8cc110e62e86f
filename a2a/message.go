// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"fmt"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/google/uuid"
)

// Role identifies the sender of a [Message].
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Message is a single turn of content. It is immutable once constructed.
type Message struct {
	Kind      string         `json:"kind"`
	MessageID string         `json:"messageId"`
	Role      Role           `json:"role"`
	Parts     Parts          `json:"parts"`
	ContextID string         `json:"contextId,omitempty"`
	TaskID    string         `json:"taskId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

var _ Event = (*Message)(nil)

// EventKind implements [Event].
func (m *Message) EventKind() string { return KindMessage }

// EventTaskID implements [Event].
func (m *Message) EventTaskID() string { return m.TaskID }

// Validate reports whether m is well formed enough to be processed.
func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("message is required")
	}
	switch m.Role {
	case RoleUser, RoleAgent:
	default:
		return fmt.Errorf("invalid message role %q", m.Role)
	}
	if len(m.Parts) == 0 {
		return fmt.Errorf("message must have at least one part")
	}
	for i, p := range m.Parts {
		if p == nil {
			return fmt.Errorf("message part %d is nil", i)
		}
	}
	return nil
}

// WithIDs returns a copy of m bound to the given task and context.
func (m *Message) WithIDs(taskID, contextID string) *Message {
	c := *m
	c.TaskID = taskID
	c.ContextID = contextID
	return &c
}

// NewAgentTextMessage returns an agent message with a single text part.
func NewAgentTextMessage(text, contextID, taskID string) *Message {
	return newTextMessage(RoleAgent, text, contextID, taskID)
}

// NewUserTextMessage returns a user message with a single text part.
func NewUserTextMessage(text, contextID, taskID string) *Message {
	return newTextMessage(RoleUser, text, contextID, taskID)
}

func newTextMessage(role Role, text, contextID, taskID string) *Message {
	return &Message{
		Kind:      KindMessage,
		MessageID: uuid.NewString(),
		Role:      role,
		Parts:     Parts{&TextPart{Kind: PartKindText, Text: text}},
		ContextID: contextID,
		TaskID:    taskID,
	}
}

// GetMessageText concatenates the text parts of msg separated by delimiter.
func GetMessageText(msg *Message, delimiter string) string {
	if msg == nil {
		return ""
	}
	return GetTextParts(msg.Parts, delimiter)
}

// GetTextParts concatenates the text parts in parts separated by delimiter.
func GetTextParts(parts Parts, delimiter string) string {
	var texts []string
	for _, p := range parts {
		if tp, ok := p.(*TextPart); ok {
			texts = append(texts, tp.Text)
		}
	}
	return strings.Join(texts, delimiter)
}

// Part kinds.
const (
	PartKindText = "text"
	PartKindData = "data"
	PartKindFile = "file"
)

// Part is one typed piece of content in a message or artifact.
// It is implemented by [*TextPart], [*DataPart] and [*FilePart].
type Part interface {
	PartKind() string
}

// TextPart carries plain text.
type TextPart struct {
	Kind     string         `json:"kind"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// PartKind implements [Part].
func (*TextPart) PartKind() string { return PartKindText }

// DataPart carries structured data.
type DataPart struct {
	Kind     string         `json:"kind"`
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// PartKind implements [Part].
func (*DataPart) PartKind() string { return PartKindData }

// FileContent references a file by URI or carries its base64 encoded bytes.
type FileContent struct {
	Name     string `json:"name,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
	URI      string `json:"uri,omitempty"`
	Bytes    string `json:"bytes,omitempty"`
}

// FilePart carries a file reference.
type FilePart struct {
	Kind     string         `json:"kind"`
	File     FileContent    `json:"file"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// PartKind implements [Part].
func (*FilePart) PartKind() string { return PartKindFile }

// NewTextPart returns a text part.
func NewTextPart(text string) *TextPart {
	return &TextPart{Kind: PartKindText, Text: text}
}

// Parts is an ordered list of [Part] values, encoded by their "kind" discriminator.
type Parts []Part

// UnmarshalJSON implements [json.Unmarshaler].
func (ps *Parts) UnmarshalJSON(data []byte) error {
	var raws []jsontext.Value
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("unmarshal parts: %w", err)
	}

	out := make(Parts, 0, len(raws))
	for i, raw := range raws {
		var probe struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return fmt.Errorf("unmarshal part %d kind: %w", i, err)
		}

		var p Part
		switch probe.Kind {
		case PartKindText:
			p = new(TextPart)
		case PartKindData:
			p = new(DataPart)
		case PartKindFile:
			p = new(FilePart)
		default:
			return fmt.Errorf("part %d: unknown kind %q", i, probe.Kind)
		}
		if err := json.Unmarshal(raw, p); err != nil {
			return fmt.Errorf("unmarshal %s part %d: %w", probe.Kind, i, err)
		}
		out = append(out, p)
	}
	*ps = out
	return nil
}
