// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/go-a2a/jokeagent/a2a"
)

// DatabaseTaskStore is a [TaskStore] persisted with gorm.
type DatabaseTaskStore struct {
	db *gorm.DB
}

var _ TaskStore = (*DatabaseTaskStore)(nil)

// DatabaseTaskStoreConfig holds configuration for DatabaseTaskStore.
type DatabaseTaskStoreConfig struct {
	DB *gorm.DB
	// CreateTable migrates the tasks table on construction.
	CreateTable bool
}

// NewDatabaseTaskStore creates a new DatabaseTaskStore.
func NewDatabaseTaskStore(ctx context.Context, config DatabaseTaskStoreConfig) (*DatabaseTaskStore, error) {
	if config.DB == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}
	if config.CreateTable {
		if err := config.DB.WithContext(ctx).AutoMigrate(&TaskModel{}); err != nil {
			return nil, NewTaskStoreError("migrate", "", err)
		}
	}
	return &DatabaseTaskStore{db: config.DB}, nil
}

// Create implements [TaskStore].
func (s *DatabaseTaskStore) Create(ctx context.Context, task *a2a.Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if task.ID != "" {
		return NewTaskValidationError(task.ID, fmt.Errorf("task id is assigned by the store"))
	}

	task.ID = uuid.NewString()
	if err := validateTask(task); err != nil {
		task.ID = ""
		return err
	}
	if err := s.db.WithContext(ctx).Create(NewTaskModel(task)).Error; err != nil {
		id := task.ID
		task.ID = ""
		return NewTaskStoreError("create", id, err)
	}
	return nil
}

// Save implements [TaskStore].
func (s *DatabaseTaskStore) Save(ctx context.Context, task *a2a.Task) error {
	if err := validateTask(task); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"context_id", "state", "status", "history", "artifacts", "metadata", "status_at", "updated_at",
		}),
	}).Create(NewTaskModel(task)).Error
	if err != nil {
		return NewTaskStoreError("save", task.ID, err)
	}
	return nil
}

// Get implements [TaskStore].
func (s *DatabaseTaskStore) Get(ctx context.Context, taskID string) (*a2a.Task, error) {
	var model TaskModel
	if err := s.db.WithContext(ctx).Where("id = ?", taskID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &a2a.TaskNotFoundError{TaskID: taskID}
		}
		return nil, NewTaskStoreError("get", taskID, err)
	}
	return model.ToTask(), nil
}

// Delete implements [TaskStore].
func (s *DatabaseTaskStore) Delete(ctx context.Context, taskID string) error {
	result := s.db.WithContext(ctx).Where("id = ?", taskID).Delete(&TaskModel{})
	if result.Error != nil {
		return NewTaskStoreError("delete", taskID, result.Error)
	}
	if result.RowsAffected == 0 {
		return &a2a.TaskNotFoundError{TaskID: taskID}
	}
	return nil
}

func (s *DatabaseTaskStore) filter(ctx context.Context, opts ListOptions) *gorm.DB {
	db := s.db.WithContext(ctx).Model(&TaskModel{})
	if opts.ContextID != "" {
		db = db.Where("context_id = ?", opts.ContextID)
	}
	if len(opts.States) > 0 {
		states := make([]string, len(opts.States))
		for i, st := range opts.States {
			states[i] = string(st)
		}
		db = db.Where("state IN ?", states)
	}
	if !opts.StatusBefore.IsZero() {
		db = db.Where("status_at < ?", opts.StatusBefore.UTC())
	}
	return db
}

// List implements [TaskStore].
func (s *DatabaseTaskStore) List(ctx context.Context, opts ListOptions) ([]*a2a.Task, error) {
	db := s.filter(ctx, opts).Order("created_at").Order("id")
	if opts.Limit > 0 {
		db = db.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		db = db.Offset(opts.Offset)
	}

	var models []TaskModel
	if err := db.Find(&models).Error; err != nil {
		return nil, NewTaskStoreError("list", "", err)
	}

	tasks := make([]*a2a.Task, len(models))
	for i := range models {
		tasks[i] = models[i].ToTask()
	}
	return tasks, nil
}

// Count implements [TaskStore].
func (s *DatabaseTaskStore) Count(ctx context.Context, opts ListOptions) (int64, error) {
	var n int64
	if err := s.filter(ctx, opts).Count(&n).Error; err != nil {
		return 0, NewTaskStoreError("count", "", err)
	}
	return n, nil
}

// Close implements [TaskStore].
func (s *DatabaseTaskStore) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction runs fn inside a database transaction.
func (s *DatabaseTaskStore) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// DatabasePushNotificationConfigStore is a [PushNotificationConfigStore] persisted with gorm.
type DatabasePushNotificationConfigStore struct {
	db *gorm.DB
}

var _ PushNotificationConfigStore = (*DatabasePushNotificationConfigStore)(nil)

// NewDatabasePushNotificationConfigStore migrates the configs table and returns the store.
func NewDatabasePushNotificationConfigStore(ctx context.Context, db *gorm.DB) (*DatabasePushNotificationConfigStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}
	if err := db.WithContext(ctx).AutoMigrate(&PushConfigModel{}); err != nil {
		return nil, NewTaskStoreError("migrate", "", err)
	}
	return &DatabasePushNotificationConfigStore{db: db}, nil
}

// SetInfo implements [PushNotificationConfigStore].
func (s *DatabasePushNotificationConfigStore) SetInfo(ctx context.Context, taskID string, config *a2a.PushNotificationConfig) (*a2a.PushNotificationConfig, error) {
	c, err := prepareConfig(taskID, config)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "task_id"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"url", "token", "authentication"}),
	}).Create(newPushConfigModel(taskID, c)).Error
	if err != nil {
		return nil, NewTaskStoreError("set push config", taskID, err)
	}
	return c, nil
}

// GetInfo implements [PushNotificationConfigStore].
func (s *DatabasePushNotificationConfigStore) GetInfo(ctx context.Context, taskID string) ([]*a2a.PushNotificationConfig, error) {
	var models []PushConfigModel
	err := s.db.WithContext(ctx).Where("task_id = ?", taskID).Order("created_at").Order("id").Find(&models).Error
	if err != nil {
		return nil, NewTaskStoreError("get push configs", taskID, err)
	}

	out := make([]*a2a.PushNotificationConfig, len(models))
	for i := range models {
		out[i] = models[i].toConfig()
	}
	return out, nil
}

// GetConfig implements [PushNotificationConfigStore].
func (s *DatabasePushNotificationConfigStore) GetConfig(ctx context.Context, taskID, configID string) (*a2a.PushNotificationConfig, error) {
	var model PushConfigModel
	err := s.db.WithContext(ctx).Where("task_id = ? AND id = ?", taskID, configID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConfigNotFound
		}
		return nil, NewTaskStoreError("get push config", taskID, err)
	}
	return model.toConfig(), nil
}

// DeleteInfo implements [PushNotificationConfigStore].
func (s *DatabasePushNotificationConfigStore) DeleteInfo(ctx context.Context, taskID, configID string) error {
	db := s.db.WithContext(ctx).Where("task_id = ?", taskID)
	if configID != "" {
		db = db.Where("id = ?", configID)
	}
	if err := db.Delete(&PushConfigModel{}).Error; err != nil {
		return NewTaskStoreError("delete push config", taskID, err)
	}
	return nil
}

// Close implements [PushNotificationConfigStore]. The connection is owned by
// whoever opened it and is left open.
func (s *DatabasePushNotificationConfigStore) Close(ctx context.Context) error {
	return nil
}
