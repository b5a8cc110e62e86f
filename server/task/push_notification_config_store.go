// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/go-a2a/jokeagent/a2a"
)

// ErrConfigNotFound is returned when a push notification config does not exist.
var ErrConfigNotFound = errors.New("push notification config not found")

// PushNotificationConfigStore persists webhook subscriptions, zero or more per task.
type PushNotificationConfigStore interface {
	// SetInfo saves config for taskID, replacing a config with the same id.
	// A config without an id is given a new, time-ordered one.
	// The stored config is returned.
	SetInfo(ctx context.Context, taskID string, config *a2a.PushNotificationConfig) (*a2a.PushNotificationConfig, error)

	// GetInfo returns the configs of taskID in registration order.
	// It returns an empty slice when none are registered.
	GetInfo(ctx context.Context, taskID string) ([]*a2a.PushNotificationConfig, error)

	// GetConfig returns one config of taskID, or ErrConfigNotFound.
	GetConfig(ctx context.Context, taskID, configID string) (*a2a.PushNotificationConfig, error)

	// DeleteInfo removes one config of taskID, or all of them when configID is empty.
	// Deleting something that does not exist is not an error.
	DeleteInfo(ctx context.Context, taskID, configID string) error

	// Close releases the resources held by the store.
	Close(ctx context.Context) error
}

// NewConfigID returns a new push notification config id. Ids sort in creation order.
func NewConfigID() string {
	return ulid.Make().String()
}

func prepareConfig(taskID string, config *a2a.PushNotificationConfig) (*a2a.PushNotificationConfig, error) {
	if taskID == "" {
		return nil, fmt.Errorf("task ID cannot be empty")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	c := config.Clone()
	if c.ID == "" {
		c.ID = NewConfigID()
	}
	return c, nil
}

// InMemoryPushNotificationConfigStore is a [PushNotificationConfigStore] backed by a map.
type InMemoryPushNotificationConfigStore struct {
	mu      sync.RWMutex
	configs map[string][]*a2a.PushNotificationConfig
}

var _ PushNotificationConfigStore = (*InMemoryPushNotificationConfigStore)(nil)

// NewInMemoryPushNotificationConfigStore creates a new in-memory push notification config store.
func NewInMemoryPushNotificationConfigStore() *InMemoryPushNotificationConfigStore {
	return &InMemoryPushNotificationConfigStore{
		configs: make(map[string][]*a2a.PushNotificationConfig),
	}
}

// SetInfo implements [PushNotificationConfigStore].
func (s *InMemoryPushNotificationConfigStore) SetInfo(ctx context.Context, taskID string, config *a2a.PushNotificationConfig) (*a2a.PushNotificationConfig, error) {
	c, err := prepareConfig(taskID, config)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.configs[taskID]
	if i := slices.IndexFunc(list, func(x *a2a.PushNotificationConfig) bool { return x.ID == c.ID }); i >= 0 {
		list[i] = c
	} else {
		s.configs[taskID] = append(list, c)
	}
	return c.Clone(), nil
}

// GetInfo implements [PushNotificationConfigStore].
func (s *InMemoryPushNotificationConfigStore) GetInfo(ctx context.Context, taskID string) ([]*a2a.PushNotificationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.configs[taskID]
	out := make([]*a2a.PushNotificationConfig, len(list))
	for i, c := range list {
		out[i] = c.Clone()
	}
	return out, nil
}

// GetConfig implements [PushNotificationConfigStore].
func (s *InMemoryPushNotificationConfigStore) GetConfig(ctx context.Context, taskID, configID string) (*a2a.PushNotificationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.configs[taskID] {
		if c.ID == configID {
			return c.Clone(), nil
		}
	}
	return nil, ErrConfigNotFound
}

// DeleteInfo implements [PushNotificationConfigStore].
func (s *InMemoryPushNotificationConfigStore) DeleteInfo(ctx context.Context, taskID, configID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if configID == "" {
		delete(s.configs, taskID)
		return nil
	}

	list := slices.DeleteFunc(s.configs[taskID], func(c *a2a.PushNotificationConfig) bool { return c.ID == configID })
	if len(list) == 0 {
		delete(s.configs, taskID)
	} else {
		s.configs[taskID] = list
	}
	return nil
}

// Close implements [PushNotificationConfigStore].
func (s *InMemoryPushNotificationConfigStore) Close(ctx context.Context) error {
	return nil
}
