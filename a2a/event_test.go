// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"testing"

	"github.com/go-json-experiment/json"
)

func TestUnmarshalEvent(t *testing.T) {
	tests := map[string]struct {
		ev   Event
		kind string
	}{
		"task": {
			ev:   NewTask("ctx-1", NewUserTextMessage("hi", "ctx-1", "")),
			kind: KindTask,
		},
		"message": {
			ev:   NewAgentTextMessage("hello", "ctx-1", "task-1"),
			kind: KindMessage,
		},
		"status": {
			ev:   NewStatusUpdateEvent("task-1", "ctx-1", TaskStateWorking, nil, false),
			kind: KindStatusUpdate,
		},
		"artifact": {
			ev: &TaskArtifactUpdateEvent{
				Kind:     KindArtifactUpdate,
				TaskID:   "task-1",
				Artifact: NewTextArtifact("Joke generated", "a joke"),
			},
			kind: KindArtifactUpdate,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			data, err := json.Marshal(tt.ev)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			got, err := UnmarshalEvent(data)
			if err != nil {
				t.Fatalf("UnmarshalEvent failed: %v", err)
			}
			if got.EventKind() != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, got.EventKind())
			}
			if got.EventTaskID() != tt.ev.EventTaskID() {
				t.Errorf("Expected task id %q, got %q", tt.ev.EventTaskID(), got.EventTaskID())
			}
		})
	}
}

func TestUnmarshalEventUnknownKind(t *testing.T) {
	if _, err := UnmarshalEvent([]byte(`{"kind":"heartbeat"}`)); err == nil {
		t.Error("Expected error for unknown kind, got nil")
	}
}
