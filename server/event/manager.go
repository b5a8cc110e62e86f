// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"fmt"
	"slices"
	"sync"
)

// QueueManager maps task ids to the queue of their live invocation.
type QueueManager interface {
	// Create registers a new queue for taskID.
	// It returns a *TaskQueueExistsError if one is already registered.
	Create(taskID string) (*Queue, error)

	// Get returns the queue registered for taskID, or nil.
	Get(taskID string) *Queue

	// Tap subscribes to the queue registered for taskID. With fromStart the
	// consumer replays the backlog first. It returns a *NoTaskQueueError if
	// no queue is registered.
	Tap(taskID string, fromStart bool) (*Consumer, error)

	// Close closes the queue for taskID and unregisters it. Consumers already
	// holding a cursor keep draining it.
	Close(taskID string) error

	// List returns the ids of all registered queues.
	List() []string
}

// InMemoryQueueManager is a [QueueManager] for a single process.
type InMemoryQueueManager struct {
	mu     sync.RWMutex
	queues map[string]*Queue
}

var _ QueueManager = (*InMemoryQueueManager)(nil)

// NewInMemoryQueueManager returns an empty manager.
func NewInMemoryQueueManager() *InMemoryQueueManager {
	return &InMemoryQueueManager{
		queues: make(map[string]*Queue),
	}
}

// Create implements [QueueManager].
func (m *InMemoryQueueManager) Create(taskID string) (*Queue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.queues[taskID]; ok {
		return nil, &TaskQueueExistsError{TaskID: taskID}
	}
	q := NewQueue(fmt.Sprintf("TaskQueue-%s", taskID))
	m.queues[taskID] = q
	return q, nil
}

// Get implements [QueueManager].
func (m *InMemoryQueueManager) Get(taskID string) *Queue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queues[taskID]
}

// Tap implements [QueueManager].
func (m *InMemoryQueueManager) Tap(taskID string, fromStart bool) (*Consumer, error) {
	q := m.Get(taskID)
	if q == nil {
		return nil, &NoTaskQueueError{TaskID: taskID}
	}
	if fromStart {
		return q.SubscribeFromStart(), nil
	}
	return q.Subscribe(), nil
}

// Close implements [QueueManager].
func (m *InMemoryQueueManager) Close(taskID string) error {
	m.mu.Lock()
	q, ok := m.queues[taskID]
	delete(m.queues, taskID)
	m.mu.Unlock()

	if !ok {
		return &NoTaskQueueError{TaskID: taskID}
	}
	return q.Close()
}

// List implements [QueueManager].
func (m *InMemoryQueueManager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.queues))
	for id := range m.queues {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
