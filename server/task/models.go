// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/go-json-experiment/json"

	"github.com/go-a2a/jokeagent/a2a"
)

// JSONColumn stores V as a JSON text column.
type JSONColumn[T any] struct {
	V T
}

// Value implements [driver.Valuer].
func (c JSONColumn[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(c.V)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return string(b), nil
}

// Scan implements [sql.Scanner].
func (c *JSONColumn[T]) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		var zero T
		c.V = zero
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into json column", src)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &c.V)
}

// GormDataType tells gorm which column type to migrate.
func (JSONColumn[T]) GormDataType() string { return "json" }

// TaskModel is the database row of a task.
type TaskModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	ContextID string `gorm:"size:64;not null;index"`
	State     string `gorm:"size:32;not null;index"`
	Status    JSONColumn[a2a.TaskStatus]
	History   JSONColumn[[]*a2a.Message]
	Artifacts JSONColumn[[]*a2a.Artifact]
	Metadata  JSONColumn[map[string]any]
	StatusAt  time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName implements gorm's tabler interface.
func (TaskModel) TableName() string { return "tasks" }

// NewTaskModel converts a task into its row.
func NewTaskModel(task *a2a.Task) *TaskModel {
	return &TaskModel{
		ID:        task.ID,
		ContextID: task.ContextID,
		State:     string(task.Status.State),
		Status:    JSONColumn[a2a.TaskStatus]{V: task.Status},
		History:   JSONColumn[[]*a2a.Message]{V: task.History},
		Artifacts: JSONColumn[[]*a2a.Artifact]{V: task.Artifacts},
		Metadata:  JSONColumn[map[string]any]{V: task.Metadata},
		StatusAt:  task.Status.Timestamp.UTC(),
	}
}

// ToTask converts the row back into a task.
func (m *TaskModel) ToTask() *a2a.Task {
	t := &a2a.Task{
		Kind:      a2a.KindTask,
		ID:        m.ID,
		ContextID: m.ContextID,
		Status:    m.Status.V,
		History:   m.History.V,
		Artifacts: m.Artifacts.V,
		Metadata:  m.Metadata.V,
	}
	if len(t.History) == 0 {
		t.History = nil
	}
	if len(t.Artifacts) == 0 {
		t.Artifacts = nil
	}
	if len(t.Metadata) == 0 {
		t.Metadata = nil
	}
	return t
}

// PushConfigModel is the database row of a push notification config.
type PushConfigModel struct {
	TaskID         string `gorm:"primaryKey;size:64"`
	ID             string `gorm:"primaryKey;size:64"`
	URL            string `gorm:"not null"`
	Token          string
	Authentication JSONColumn[*a2a.PushNotificationAuthenticationInfo]
	CreatedAt      time.Time `gorm:"index"`
}

// TableName implements gorm's tabler interface.
func (PushConfigModel) TableName() string { return "push_notification_configs" }

func newPushConfigModel(taskID string, c *a2a.PushNotificationConfig) *PushConfigModel {
	return &PushConfigModel{
		TaskID:         taskID,
		ID:             c.ID,
		URL:            c.URL,
		Token:          c.Token,
		Authentication: JSONColumn[*a2a.PushNotificationAuthenticationInfo]{V: c.Authentication},
	}
}

func (m *PushConfigModel) toConfig() *a2a.PushNotificationConfig {
	return &a2a.PushNotificationConfig{
		ID:             m.ID,
		URL:            m.URL,
		Token:          m.Token,
		Authentication: m.Authentication.V,
	}
}
