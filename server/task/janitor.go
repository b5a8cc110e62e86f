// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/go-a2a/jokeagent/a2a"
	"github.com/go-a2a/jokeagent/server/event"
)

// terminalStates are the states a task is never resumed from.
var terminalStates = []a2a.TaskState{
	a2a.TaskStateCompleted,
	a2a.TaskStateCanceled,
	a2a.TaskStateFailed,
	a2a.TaskStateRejected,
}

// JanitorConfig holds configuration for creating a [Janitor].
type JanitorConfig struct {
	Store       TaskStore
	ConfigStore PushNotificationConfigStore
	// Queues, when set, is the request handler's queue manager. Tasks with a
	// registered queue are being written by an invocation and are skipped.
	Queues event.QueueManager
	// TTL is how long a task stays in the store after reaching a terminal state.
	TTL time.Duration
	// Schedule is a cron spec for the sweep. It defaults to "@every 10m".
	Schedule string
	Logger   *slog.Logger
}

// Janitor periodically deletes terminal tasks, and their push notification
// configs, once their last status is older than the configured TTL.
//
// The janitor writes outside the request handler's per task claim. It only
// touches terminal tasks, which no invocation resumes, and with Queues set it
// also leaves alone a task whose invocation is still winding down.
type Janitor struct {
	store       TaskStore
	configStore PushNotificationConfigStore
	queues      event.QueueManager
	ttl         time.Duration
	logger      *slog.Logger
	now         func() time.Time

	cron *cron.Cron
}

// NewJanitor creates a new Janitor with the given configuration.
func NewJanitor(config JanitorConfig) (*Janitor, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("task store cannot be nil")
	}
	if config.TTL <= 0 {
		return nil, fmt.Errorf("janitor TTL must be positive, got %s", config.TTL)
	}
	schedule := config.Schedule
	if schedule == "" {
		schedule = "@every 10m"
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	j := &Janitor{
		store:       config.Store,
		configStore: config.ConfigStore,
		queues:      config.Queues,
		ttl:         config.TTL,
		logger:      logger,
		now:         time.Now,
		cron:        cron.New(),
	}
	if _, err := j.cron.AddFunc(schedule, j.run); err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Start runs the sweep on its schedule in the background.
func (j *Janitor) Start() { j.cron.Start() }

// Stop stops scheduling sweeps and waits for a running one to finish or ctx to end.
func (j *Janitor) Stop(ctx context.Context) error {
	done := j.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Janitor) run() {
	ctx := context.Background()
	n, err := j.Sweep(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "task retention sweep failed", slog.Any("error", err))
		return
	}
	if n > 0 {
		j.logger.InfoContext(ctx, "task retention sweep", slog.Int("deleted", n))
	}
}

// Sweep deletes expired terminal tasks and returns how many were removed.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	expired, err := j.store.List(ctx, ListOptions{
		States:       terminalStates,
		StatusBefore: j.now().Add(-j.ttl),
	})
	if err != nil {
		return 0, fmt.Errorf("list expired tasks: %w", err)
	}

	var errs []error
	deleted := 0
	for _, t := range expired {
		if j.queues != nil && j.queues.Get(t.ID) != nil {
			continue
		}
		if err := j.store.Delete(ctx, t.ID); err != nil {
			var notFound *a2a.TaskNotFoundError
			if !errors.As(err, &notFound) {
				errs = append(errs, err)
			}
			continue
		}
		deleted++
		if j.configStore != nil {
			if err := j.configStore.DeleteInfo(ctx, t.ID, ""); err != nil && !errors.Is(err, ErrConfigNotFound) {
				errs = append(errs, err)
			}
		}
	}
	return deleted, errors.Join(errs...)
}
