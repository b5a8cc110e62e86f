// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/go-a2a/jokeagent/a2a"
)

type memoryEntry struct {
	seq  uint64
	task *a2a.Task
}

// InMemoryTaskStore is a [TaskStore] backed by a map.
// Task data is lost when the process stops.
type InMemoryTaskStore struct {
	mu    sync.RWMutex
	seq   uint64
	tasks map[string]memoryEntry
}

var _ TaskStore = (*InMemoryTaskStore)(nil)

// NewInMemoryTaskStore creates a new InMemoryTaskStore.
func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{
		tasks: make(map[string]memoryEntry),
	}
}

// Create implements [TaskStore].
func (s *InMemoryTaskStore) Create(ctx context.Context, task *a2a.Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if task.ID != "" {
		return NewTaskValidationError(task.ID, fmt.Errorf("task id is assigned by the store"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	if _, taken := s.tasks[id]; taken {
		return NewTaskStoreError("create", id, fmt.Errorf("generated id already in use"))
	}
	task.ID = id
	if err := validateTask(task); err != nil {
		task.ID = ""
		return err
	}

	s.seq++
	s.tasks[id] = memoryEntry{seq: s.seq, task: task.Clone()}
	return nil
}

// Save implements [TaskStore].
func (s *InMemoryTaskStore) Save(ctx context.Context, task *a2a.Task) error {
	if err := validateTask(task); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tasks[task.ID]
	if !ok {
		s.seq++
		entry.seq = s.seq
	}
	entry.task = task.Clone()
	s.tasks[task.ID] = entry
	return nil
}

// Get implements [TaskStore].
func (s *InMemoryTaskStore) Get(ctx context.Context, taskID string) (*a2a.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.tasks[taskID]
	if !ok {
		return nil, &a2a.TaskNotFoundError{TaskID: taskID}
	}
	return entry.task.Clone(), nil
}

// Delete implements [TaskStore].
func (s *InMemoryTaskStore) Delete(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[taskID]; !ok {
		return &a2a.TaskNotFoundError{TaskID: taskID}
	}
	delete(s.tasks, taskID)
	return nil
}

// List implements [TaskStore].
func (s *InMemoryTaskStore) List(ctx context.Context, opts ListOptions) ([]*a2a.Task, error) {
	s.mu.RLock()
	matched := make([]memoryEntry, 0, len(s.tasks))
	for _, entry := range s.tasks {
		if opts.match(entry.task) {
			matched = append(matched, entry)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b memoryEntry) int { return cmp.Compare(a.seq, b.seq) })

	if opts.Offset > 0 {
		matched = matched[min(opts.Offset, len(matched)):]
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	tasks := make([]*a2a.Task, len(matched))
	for i, entry := range matched {
		tasks[i] = entry.task.Clone()
	}
	return tasks, nil
}

// Count implements [TaskStore].
func (s *InMemoryTaskStore) Count(ctx context.Context, opts ListOptions) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, entry := range s.tasks {
		if opts.match(entry.task) {
			n++
		}
	}
	return n, nil
}

// Close implements [TaskStore].
func (s *InMemoryTaskStore) Close(ctx context.Context) error {
	return nil
}

// Clear removes all tasks.
func (s *InMemoryTaskStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.tasks)
}

// Size returns the number of stored tasks.
func (s *InMemoryTaskStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
