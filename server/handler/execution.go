// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-a2a/jokeagent/a2a"
	"github.com/go-a2a/jokeagent/server/agent_execution"
	"github.com/go-a2a/jokeagent/server/event"
	"github.com/go-a2a/jokeagent/server/task"
)

// work is the executor hook an invocation runs: Execute or Cancel.
type work func(ctx context.Context, reqCtx *agent_execution.RequestContext, queue event.Enqueuer) error

// execution tracks one live invocation of a task. At most one exists per task
// id; holding it is what makes the handler the single writer of that task.
type execution struct {
	taskID string

	ready     chan struct{} // setup finished, successfully or not
	persisted chan struct{} // persistence loop ended
	execDone  chan struct{} // executor hook returned
	done      chan struct{} // execution released; the task may be claimed again

	// Written before ready is closed.
	setupErr  error
	queue     *event.Queue
	contextID string
	cancel    context.CancelFunc
	// failOnError publishes a failed status when the hook errors.
	failOnError bool

	mu      sync.Mutex
	latest  *a2a.Task
	message *a2a.Message
	err     error
	rawErr  error
}

func newExecution(taskID string) *execution {
	return &execution{
		taskID:    taskID,
		ready:     make(chan struct{}),
		persisted: make(chan struct{}),
		execDone:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// snapshot returns the task as last persisted.
func (ex *execution) snapshot() *a2a.Task {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.latest.Clone()
}

func (ex *execution) resultMessage() *a2a.Message {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.message
}

// execErr returns the error reported to callers, if the hook failed.
func (ex *execution) execErr() error {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.err
}

func (ex *execution) hookErr() error {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.rawErr
}

// wait blocks until the invocation ended and the task was released.
func (ex *execution) wait(ctx context.Context) error {
	select {
	case <-ex.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// live reports whether the invocation can still produce events. It must only
// be called once ready is closed.
func (ex *execution) live() bool {
	return ex.setupErr == nil && !ex.queue.IsFinalized() && !ex.queue.IsClosed()
}

// claim reserves taskID for a new invocation. It returns the live execution
// and false when the task is already claimed. Once the handler is closed no
// task can be claimed.
func (h *DefaultRequestHandler) claim(taskID string) (*execution, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, false, errHandlerClosed()
	}
	if ex, ok := h.running[taskID]; ok {
		return ex, false, nil
	}
	ex := newExecution(taskID)
	h.running[taskID] = ex
	// Held until release, so Close waits for executions still in setup.
	h.wg.Add(1)
	return ex, true, nil
}

// claimSettled claims taskID, first waiting out an invocation that is winding
// down. When a live invocation holds the task it is returned with false.
func (h *DefaultRequestHandler) claimSettled(ctx context.Context, taskID string) (*execution, bool, error) {
	for {
		ex, claimed, err := h.claim(taskID)
		if err != nil {
			return nil, false, err
		}
		if claimed {
			return ex, true, nil
		}
		select {
		case <-ex.ready:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
		if ex.live() {
			return ex, false, nil
		}
		if err := ex.wait(ctx); err != nil {
			return nil, false, err
		}
	}
}

// admitting reports an error once the handler no longer takes invocations.
func (h *DefaultRequestHandler) admitting() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errHandlerClosed()
	}
	return nil
}

func (h *DefaultRequestHandler) lookup(taskID string) *execution {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running[taskID]
}

// release ends the claim on ex. It is called exactly once per claimed execution.
func (h *DefaultRequestHandler) release(ex *execution) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running[ex.taskID] == ex {
		delete(h.running, ex.taskID)
	}
	h.wg.Done()
}

// abort gives up a claimed execution whose setup failed.
func (h *DefaultRequestHandler) abort(ex *execution, err error) {
	h.release(ex)
	ex.setupErr = err
	close(ex.ready)
	close(ex.persisted)
	close(ex.execDone)
	close(ex.done)
}

// run starts an invocation of t on a claimed execution: it opens the task's
// queue, publishes the starting snapshot and spawns the persistence loop, the
// push tap and the hook.
func (h *DefaultRequestHandler) run(ctx context.Context, ex *execution, t *a2a.Task, reqCtx *agent_execution.RequestContext, hook work, failOnError bool) error {
	q, err := h.queues.Create(t.ID)
	if err != nil {
		return &a2a.InternalError{Err: err}
	}
	persist := q.SubscribeFromStart()
	var tap *event.Consumer
	if h.pushSender != nil {
		tap = q.SubscribeFromStart()
	}
	if err := q.Enqueue(ctx, t.Clone()); err != nil {
		_ = h.queues.Close(t.ID)
		return &a2a.InternalError{Err: err}
	}

	bg := context.WithoutCancel(ctx)
	execCtx, cancel := context.WithCancel(bg)
	ex.queue = q
	ex.contextID = t.ContextID
	ex.cancel = cancel
	ex.failOnError = failOnError
	ex.latest = t.Clone()

	// Close cancels the executions it finds ready; one that becomes ready
	// after Close started cancels itself.
	h.mu.Lock()
	closed := h.closed
	close(ex.ready)
	h.mu.Unlock()
	if closed {
		cancel()
	}

	h.wg.Add(2)
	go h.persist(bg, ex, persist)
	go h.execute(execCtx, ex, reqCtx, hook)
	if tap != nil {
		h.wg.Add(1)
		go h.push(bg, t, tap)
	}
	return nil
}

// persist applies every event of the invocation to the store. It is the only
// writer of the task while the execution is claimed.
func (h *DefaultRequestHandler) persist(ctx context.Context, ex *execution, consumer *event.Consumer) {
	defer h.wg.Done()

	mgr, err := task.NewTaskManager(task.TaskManagerConfig{TaskID: ex.taskID, Store: h.store, Logger: h.logger})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create task manager", slog.String("task_id", ex.taskID), slog.Any("error", err))
	}
	for ev, err := range consumer.Events(ctx) {
		if err != nil || mgr == nil {
			break
		}
		snap, err := mgr.Process(ctx, ev)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to persist task event",
				slog.String("task_id", ex.taskID),
				slog.String("kind", ev.EventKind()),
				slog.Any("error", err))
			continue
		}
		ex.mu.Lock()
		ex.latest = snap
		if m, ok := ev.(*a2a.Message); ok {
			ex.message = m
		}
		ex.mu.Unlock()
	}
	close(ex.persisted)

	<-ex.execDone
	_ = h.queues.Close(ex.taskID)
	h.release(ex)
	close(ex.done)
}

// execute runs the hook and makes sure the invocation ends with a final event
// when it fails.
func (h *DefaultRequestHandler) execute(ctx context.Context, ex *execution, reqCtx *agent_execution.RequestContext, hook work) {
	defer h.wg.Done()
	defer close(ex.execDone)
	defer ex.cancel()

	err := runHook(ctx, reqCtx, ex.queue, hook)
	bg := context.WithoutCancel(ctx)

	switch {
	case err == nil:
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		// Canceled by OnCancelTask or Close; the final event is published below.
	case ex.queue.IsFinalized() && (errors.Is(err, event.ErrQueueFinalized) || errors.Is(err, task.ErrUpdaterClosed)):
		// Another producer, typically a cancel, ended the invocation first.
		h.logger.DebugContext(bg, "agent execution outlived its invocation",
			slog.String("task_id", ex.taskID),
			slog.Any("error", err))
	default:
		h.logger.ErrorContext(bg, "agent execution failed",
			slog.String("task_id", ex.taskID),
			slog.Any("error", err))
		ex.mu.Lock()
		ex.rawErr = err
		if ex.failOnError {
			ex.err = &a2a.InternalError{Msg: a2a.GenericFailureMessage, Err: err}
		}
		ex.mu.Unlock()

		if ex.failOnError {
			msg := a2a.NewAgentTextMessage(a2a.GenericFailureMessage, ex.contextID, ex.taskID)
			h.publishFinal(bg, ex, a2a.TaskStateFailed, msg)
		}
	}

	if ctx.Err() != nil && ex.failOnError {
		h.publishFinal(bg, ex, a2a.TaskStateCanceled, nil)
	}
	_ = ex.queue.Close()
}

// publishFinal enqueues a final status unless the invocation already has one.
func (h *DefaultRequestHandler) publishFinal(ctx context.Context, ex *execution, state a2a.TaskState, msg *a2a.Message) {
	if ex.queue.IsFinalized() {
		return
	}
	ev := a2a.NewStatusUpdateEvent(ex.taskID, ex.contextID, state, msg, true)
	if err := ex.queue.Enqueue(ctx, ev); err != nil && !errors.Is(err, event.ErrQueueFinalized) {
		h.logger.ErrorContext(ctx, "failed to publish final status",
			slog.String("task_id", ex.taskID),
			slog.String("state", state.String()),
			slog.Any("error", err))
	}
}

func runHook(ctx context.Context, reqCtx *agent_execution.RequestContext, q *event.Queue, hook work) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent executor panic: %v", r)
		}
	}()
	return hook(ctx, reqCtx, q)
}

// push rebuilds the task from the invocation's events and sends a
// notification for every status change.
func (h *DefaultRequestHandler) push(ctx context.Context, start *a2a.Task, consumer *event.Consumer) {
	defer h.wg.Done()

	snapshot := start.Clone()
	for ev, err := range consumer.Events(ctx) {
		if err != nil {
			return
		}
		prev := snapshot.Status.State
		if err := task.ApplyEvent(snapshot, ev); err != nil {
			continue
		}

		switch e := ev.(type) {
		case *a2a.TaskStatusUpdateEvent:
		case *a2a.Task:
			if e.Status.State == prev {
				continue
			}
		default:
			continue
		}
		if err := h.pushSender.SendNotification(ctx, snapshot.Clone()); err != nil {
			h.logger.WarnContext(ctx, "push notification dispatch failed",
				slog.String("task_id", snapshot.ID),
				slog.Any("error", err))
		}
	}
}
