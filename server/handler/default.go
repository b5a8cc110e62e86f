// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-a2a/jokeagent/a2a"
	"github.com/go-a2a/jokeagent/server/agent_execution"
	"github.com/go-a2a/jokeagent/server/event"
	"github.com/go-a2a/jokeagent/server/task"
)

const tracerName = "github.com/go-a2a/jokeagent/server/handler"

// DefaultRequestHandler implements [RequestHandler] on top of an
// [agent_execution.AgentExecutor], a [task.TaskStore] and an
// [event.QueueManager].
//
// Each invocation of a task gets its own event queue. A single persistence
// loop applies the queue's events to the store, so the handler is the only
// writer of a task while the task runs.
type DefaultRequestHandler struct {
	executor       agent_execution.AgentExecutor
	store          task.TaskStore
	queues         event.QueueManager
	pushConfigs    task.PushNotificationConfigStore
	pushSender     task.PushNotificationSender
	contextBuilder agent_execution.RequestContextBuilder
	logger         *slog.Logger
	tracer         trace.Tracer
	idleTimeout    time.Duration

	mu      sync.Mutex
	closed  bool
	running map[string]*execution
	wg      sync.WaitGroup
}

var _ RequestHandler = (*DefaultRequestHandler)(nil)

// DefaultRequestHandlerOption configures a [DefaultRequestHandler].
type DefaultRequestHandlerOption func(*DefaultRequestHandler)

// WithQueueManager sets the queue manager. The default keeps queues in memory.
func WithQueueManager(qm event.QueueManager) DefaultRequestHandlerOption {
	return func(h *DefaultRequestHandler) {
		h.queues = qm
	}
}

// WithPushConfigStore enables the push notification config operations.
func WithPushConfigStore(store task.PushNotificationConfigStore) DefaultRequestHandlerOption {
	return func(h *DefaultRequestHandler) {
		h.pushConfigs = store
	}
}

// WithPushSender sets the sender notified on every task status change.
func WithPushSender(sender task.PushNotificationSender) DefaultRequestHandlerOption {
	return func(h *DefaultRequestHandler) {
		h.pushSender = sender
	}
}

// WithRequestContextBuilder sets the builder of the contexts passed to the executor.
func WithRequestContextBuilder(b agent_execution.RequestContextBuilder) DefaultRequestHandlerOption {
	return func(h *DefaultRequestHandler) {
		h.contextBuilder = b
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) DefaultRequestHandlerOption {
	return func(h *DefaultRequestHandler) {
		h.logger = logger
	}
}

// WithTracer sets the tracer. The default uses the global tracer provider.
func WithTracer(tracer trace.Tracer) DefaultRequestHandlerOption {
	return func(h *DefaultRequestHandler) {
		h.tracer = tracer
	}
}

// WithStreamIdleTimeout ends streams with a [StreamIdleTimeoutError] when no
// event arrives within d. Zero disables the timeout.
func WithStreamIdleTimeout(d time.Duration) DefaultRequestHandlerOption {
	return func(h *DefaultRequestHandler) {
		h.idleTimeout = d
	}
}

// NewDefaultRequestHandler returns a handler running executor against store.
func NewDefaultRequestHandler(executor agent_execution.AgentExecutor, store task.TaskStore, opts ...DefaultRequestHandlerOption) (*DefaultRequestHandler, error) {
	if executor == nil {
		return nil, errors.New("agent executor is required")
	}
	if store == nil {
		return nil, errors.New("task store is required")
	}

	h := &DefaultRequestHandler{
		executor: executor,
		store:    store,
		running:  make(map[string]*execution),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.queues == nil {
		h.queues = event.NewInMemoryQueueManager()
	}
	if h.contextBuilder == nil {
		h.contextBuilder = agent_execution.NewSimpleRequestContextBuilder(store, false)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.tracer == nil {
		h.tracer = otel.Tracer(tracerName)
	}
	return h, nil
}

// Close stops admitting invocations, cancels the running ones and waits for
// them to wind down. Requests arriving afterwards fail with an
// [a2a.InternalError] wrapping [ErrHandlerClosed]. Close may be called more
// than once.
func (h *DefaultRequestHandler) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	for _, ex := range h.running {
		select {
		case <-ex.ready:
			if ex.cancel != nil {
				ex.cancel()
			}
		default:
		}
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *DefaultRequestHandler) startSpan(ctx context.Context, name, taskID string) (context.Context, trace.Span) {
	return h.tracer.Start(ctx, "a2a."+name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("a2a.task_id", taskID)))
}

func recordError(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// storeError passes through the a2a errors a store returns and wraps the rest.
func storeError(err error) error {
	var coded a2a.CodedError
	if errors.As(err, &coded) {
		return err
	}
	return &a2a.InternalError{Err: err}
}

// OnGetTask implements [RequestHandler].
func (h *DefaultRequestHandler) OnGetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	ctx, span := h.startSpan(ctx, "get_task", params.ID)
	defer span.End()

	t, err := h.store.Get(ctx, params.ID)
	if err != nil {
		return nil, recordError(span, storeError(err))
	}
	n := -1
	if params.HistoryLength != nil {
		n = *params.HistoryLength
	}
	return t.TrimHistory(n), nil
}

// OnCancelTask implements [RequestHandler].
//
// A running task is canceled through its executor and its invocation is
// stopped. An idle task (submitted or waiting for input) gets a cancel-only
// invocation. The task must reach the canceled state, otherwise an
// [a2a.InvalidStateTransitionError] is returned.
func (h *DefaultRequestHandler) OnCancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	ctx, span := h.startSpan(ctx, "cancel_task", params.ID)
	defer span.End()

	t, err := h.store.Get(ctx, params.ID)
	if err != nil {
		return nil, recordError(span, storeError(err))
	}
	if t.Status.State.IsTerminal() {
		return nil, recordError(span, &a2a.InvalidStateTransitionError{TaskID: t.ID, From: t.Status.State, To: a2a.TaskStateCanceled})
	}

	ex, claimed, err := h.claimSettled(ctx, t.ID)
	if err != nil {
		return nil, recordError(span, err)
	}
	var res *a2a.Task
	if claimed {
		res, err = h.cancelIdle(ctx, ex)
	} else {
		res, err = h.cancelLive(ctx, ex)
	}
	return res, recordError(span, err)
}

func (h *DefaultRequestHandler) cancelLive(ctx context.Context, ex *execution) (*a2a.Task, error) {
	reqCtx, err := h.contextBuilder.Build(ctx, nil, ex.taskID, ex.contextID, ex.snapshot())
	if err != nil {
		return nil, &a2a.InternalError{Err: err}
	}
	cancelErr := h.executor.Cancel(ctx, reqCtx, ex.queue)
	ex.cancel()

	select {
	case <-ex.persisted:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return cancelResult(ex, cancelErr)
}

func (h *DefaultRequestHandler) cancelIdle(ctx context.Context, ex *execution) (*a2a.Task, error) {
	// Re-read under the claim; an invocation may have finished in between.
	t, err := h.store.Get(ctx, ex.taskID)
	if err != nil {
		err = storeError(err)
		h.abort(ex, err)
		return nil, err
	}
	if t.Status.State.IsTerminal() {
		err := &a2a.InvalidStateTransitionError{TaskID: t.ID, From: t.Status.State, To: a2a.TaskStateCanceled}
		h.abort(ex, err)
		return nil, err
	}

	reqCtx, err := h.contextBuilder.Build(ctx, nil, t.ID, t.ContextID, t)
	if err != nil {
		err = &a2a.InternalError{Err: err}
		h.abort(ex, err)
		return nil, err
	}
	if err := h.run(ctx, ex, t, reqCtx, h.executor.Cancel, false); err != nil {
		h.abort(ex, err)
		return nil, err
	}
	if err := ex.wait(ctx); err != nil {
		return nil, err
	}
	return cancelResult(ex, ex.hookErr())
}

func cancelResult(ex *execution, cancelErr error) (*a2a.Task, error) {
	t := ex.snapshot()
	if t.Status.State == a2a.TaskStateCanceled {
		return t, nil
	}
	if cancelErr != nil &&
		!errors.Is(cancelErr, event.ErrQueueFinalized) &&
		!errors.Is(cancelErr, event.ErrQueueClosed) &&
		!errors.Is(cancelErr, task.ErrUpdaterClosed) {
		return nil, a2a.AsCodedError(cancelErr)
	}
	return nil, &a2a.InvalidStateTransitionError{TaskID: t.ID, From: t.Status.State, To: a2a.TaskStateCanceled}
}

func (h *DefaultRequestHandler) requirePushConfigs(ctx context.Context, taskID string) error {
	if h.pushConfigs == nil {
		return &a2a.PushNotificationNotSupportedError{}
	}
	if _, err := h.store.Get(ctx, taskID); err != nil {
		return storeError(err)
	}
	return nil
}

// OnSetTaskPushNotificationConfig implements [RequestHandler].
func (h *DefaultRequestHandler) OnSetTaskPushNotificationConfig(ctx context.Context, params *a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error) {
	if params == nil || params.TaskID == "" {
		return nil, &a2a.InvalidParamsError{Msg: "task id is required"}
	}
	if err := params.PushNotificationConfig.Validate(); err != nil {
		return nil, err
	}
	ctx, span := h.startSpan(ctx, "set_push_config", params.TaskID)
	defer span.End()

	if err := h.requirePushConfigs(ctx, params.TaskID); err != nil {
		return nil, recordError(span, err)
	}
	cfg, err := h.pushConfigs.SetInfo(ctx, params.TaskID, params.PushNotificationConfig)
	if err != nil {
		return nil, recordError(span, storeError(err))
	}
	return &a2a.TaskPushNotificationConfig{TaskID: params.TaskID, PushNotificationConfig: cfg}, nil
}

// OnGetTaskPushNotificationConfig implements [RequestHandler].
func (h *DefaultRequestHandler) OnGetTaskPushNotificationConfig(ctx context.Context, params *a2a.GetTaskPushNotificationConfigParams) (*a2a.TaskPushNotificationConfig, error) {
	if params == nil || params.ID == "" {
		return nil, &a2a.InvalidParamsError{Msg: "task id is required"}
	}
	ctx, span := h.startSpan(ctx, "get_push_config", params.ID)
	defer span.End()

	if err := h.requirePushConfigs(ctx, params.ID); err != nil {
		return nil, recordError(span, err)
	}

	var cfg *a2a.PushNotificationConfig
	if params.PushNotificationConfigID == "" {
		cfgs, err := h.pushConfigs.GetInfo(ctx, params.ID)
		if err != nil {
			return nil, recordError(span, storeError(err))
		}
		if len(cfgs) > 0 {
			cfg = cfgs[0]
		}
	} else {
		c, err := h.pushConfigs.GetConfig(ctx, params.ID, params.PushNotificationConfigID)
		switch {
		case errors.Is(err, task.ErrConfigNotFound):
		case err != nil:
			return nil, recordError(span, storeError(err))
		default:
			cfg = c
		}
	}
	if cfg == nil {
		return nil, recordError(span, &a2a.InvalidParamsError{Msg: "push notification config not found"})
	}
	return &a2a.TaskPushNotificationConfig{TaskID: params.ID, PushNotificationConfig: cfg}, nil
}

// OnListTaskPushNotificationConfig implements [RequestHandler].
func (h *DefaultRequestHandler) OnListTaskPushNotificationConfig(ctx context.Context, params *a2a.TaskIDParams) ([]*a2a.TaskPushNotificationConfig, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	ctx, span := h.startSpan(ctx, "list_push_configs", params.ID)
	defer span.End()

	if err := h.requirePushConfigs(ctx, params.ID); err != nil {
		return nil, recordError(span, err)
	}
	cfgs, err := h.pushConfigs.GetInfo(ctx, params.ID)
	if err != nil {
		return nil, recordError(span, storeError(err))
	}
	out := make([]*a2a.TaskPushNotificationConfig, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, &a2a.TaskPushNotificationConfig{TaskID: params.ID, PushNotificationConfig: c})
	}
	return out, nil
}

// OnDeleteTaskPushNotificationConfig implements [RequestHandler].
func (h *DefaultRequestHandler) OnDeleteTaskPushNotificationConfig(ctx context.Context, params *a2a.DeleteTaskPushNotificationConfigParams) error {
	if params == nil || params.ID == "" {
		return &a2a.InvalidParamsError{Msg: "task id is required"}
	}
	if params.PushNotificationConfigID == "" {
		return &a2a.InvalidParamsError{Msg: "push notification config id is required"}
	}
	ctx, span := h.startSpan(ctx, "delete_push_config", params.ID)
	defer span.End()

	if err := h.requirePushConfigs(ctx, params.ID); err != nil {
		return recordError(span, err)
	}
	if err := h.pushConfigs.DeleteInfo(ctx, params.ID, params.PushNotificationConfigID); err != nil {
		return recordError(span, storeError(err))
	}
	return nil
}
