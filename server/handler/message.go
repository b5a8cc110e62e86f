// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"errors"
	"iter"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/go-a2a/jokeagent/a2a"
	"github.com/go-a2a/jokeagent/server/event"
)

// OnMessageSend implements [RequestHandler].
func (h *DefaultRequestHandler) OnMessageSend(ctx context.Context, params *a2a.MessageSendParams) (a2a.Event, error) {
	ctx, span := h.startSpan(ctx, "message_send", "")
	defer span.End()

	ex, err := h.begin(ctx, params)
	if err != nil {
		return nil, recordError(span, err)
	}
	span.SetAttributes(attribute.String("a2a.task_id", ex.taskID))

	if !params.IsBlocking() {
		return ex.snapshot().TrimHistory(params.HistoryLength()), nil
	}
	if err := ex.wait(ctx); err != nil {
		return nil, recordError(span, err)
	}
	if err := ex.execErr(); err != nil {
		return nil, recordError(span, err)
	}
	if msg := ex.resultMessage(); msg != nil {
		return msg, nil
	}
	return ex.snapshot().TrimHistory(params.HistoryLength()), nil
}

// OnMessageSendStream implements [RequestHandler].
func (h *DefaultRequestHandler) OnMessageSendStream(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		ctx, span := h.startSpan(ctx, "message_stream", "")
		defer span.End()

		ex, err := h.begin(ctx, params)
		if err != nil {
			yield(nil, recordError(span, err))
			return
		}
		span.SetAttributes(attribute.String("a2a.task_id", ex.taskID))

		h.stream(ctx, ex, ex.queue.SubscribeFromStart(), params.HistoryLength(), yield)
	}
}

// OnResubscribeToTask implements [RequestHandler].
//
// Subscribers of a live invocation receive every event of that invocation
// from its starting snapshot. A task without a live invocation yields its
// stored snapshot only.
func (h *DefaultRequestHandler) OnResubscribeToTask(ctx context.Context, params *a2a.TaskIDParams) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		if err := params.Validate(); err != nil {
			yield(nil, err)
			return
		}
		ctx, span := h.startSpan(ctx, "resubscribe", params.ID)
		defer span.End()

		t, err := h.store.Get(ctx, params.ID)
		if err != nil {
			yield(nil, recordError(span, storeError(err)))
			return
		}

		if ex := h.lookup(params.ID); ex != nil {
			select {
			case <-ex.ready:
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			}
			if ex.setupErr == nil {
				consumer, err := h.queues.Tap(params.ID, true)
				if err == nil {
					h.stream(ctx, ex, consumer, -1, yield)
					return
				}
			}
		}
		yield(t, nil)
	}
}

// begin validates params, creates or resumes the addressed task and starts
// its invocation.
func (h *DefaultRequestHandler) begin(ctx context.Context, params *a2a.MessageSendParams) (*execution, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	var pushCfg *a2a.PushNotificationConfig
	if params.Configuration != nil {
		pushCfg = params.Configuration.PushNotificationConfig
	}
	if pushCfg != nil && h.pushConfigs == nil {
		return nil, &a2a.PushNotificationNotSupportedError{}
	}

	var (
		ex  *execution
		t   *a2a.Task
		err error
	)
	if params.Message.TaskID != "" {
		ex, t, err = h.resume(ctx, params.Message)
	} else {
		ex, t, err = h.create(ctx, params.Message)
	}
	if err != nil {
		return nil, err
	}

	if pushCfg != nil {
		if _, err := h.pushConfigs.SetInfo(ctx, t.ID, pushCfg); err != nil {
			err = storeError(err)
			h.abort(ex, err)
			return nil, err
		}
	}

	bound := *params
	bound.Message = t.History[len(t.History)-1]
	reqCtx, err := h.contextBuilder.Build(ctx, &bound, t.ID, t.ContextID, t)
	if err != nil {
		err = &a2a.InternalError{Err: err}
		h.abort(ex, err)
		return nil, err
	}
	if err := h.run(ctx, ex, t, reqCtx, h.executor.Execute, true); err != nil {
		h.abort(ex, err)
		return nil, err
	}
	return ex, nil
}

// create persists a new task for msg and claims it.
func (h *DefaultRequestHandler) create(ctx context.Context, msg *a2a.Message) (*execution, *a2a.Task, error) {
	if err := h.admitting(); err != nil {
		return nil, nil, err
	}
	contextID := msg.ContextID
	if contextID == "" {
		contextID = uuid.NewString()
	}
	t := a2a.NewTask(contextID, nil)
	if err := h.store.Create(ctx, t); err != nil {
		return nil, nil, storeError(err)
	}
	// The id is fresh, so the claim cannot be contended. It fails only once
	// the handler is closed; the task was never handed out then.
	ex, _, err := h.claim(t.ID)
	if err != nil {
		_ = h.store.Delete(ctx, t.ID)
		return nil, nil, err
	}

	t.History = []*a2a.Message{msg.WithIDs(t.ID, contextID)}
	if err := h.store.Save(ctx, t); err != nil {
		err = storeError(err)
		h.abort(ex, err)
		return nil, nil, err
	}
	return ex, t, nil
}

// resume claims the task msg addresses and appends msg to its history.
func (h *DefaultRequestHandler) resume(ctx context.Context, msg *a2a.Message) (*execution, *a2a.Task, error) {
	ex, claimed, err := h.claimSettled(ctx, msg.TaskID)
	if err != nil {
		return nil, nil, err
	}
	if !claimed {
		return nil, nil, taskBusyError(msg.TaskID)
	}

	t, err := h.store.Get(ctx, msg.TaskID)
	if err != nil {
		err = storeError(err)
		h.abort(ex, err)
		return nil, nil, err
	}
	if t.Status.State.IsTerminal() {
		err := &a2a.InvalidStateTransitionError{TaskID: t.ID, From: t.Status.State, To: a2a.TaskStateWorking}
		h.abort(ex, err)
		return nil, nil, err
	}
	if msg.ContextID != "" && msg.ContextID != t.ContextID {
		err := &a2a.InvalidParamsError{Msg: "message context id does not match the task"}
		h.abort(ex, err)
		return nil, nil, err
	}

	t.History = append(t.History, msg.WithIDs(t.ID, t.ContextID))
	if err := h.store.Save(ctx, t); err != nil {
		err = storeError(err)
		h.abort(ex, err)
		return nil, nil, err
	}
	return ex, t, nil
}

// stream relays the invocation's events from consumer until the final one,
// then reports the invocation's failure, if any.
func (h *DefaultRequestHandler) stream(ctx context.Context, ex *execution, consumer *event.Consumer, historyLength int, yield func(a2a.Event, error) bool) {
	for {
		ev, err := h.next(ctx, ex.taskID, consumer)
		if errors.Is(err, event.ErrQueueClosed) {
			break
		}
		if err != nil {
			yield(nil, err)
			return
		}

		out := a2a.CloneEvent(ev)
		if t, ok := ev.(*a2a.Task); ok {
			out = t.TrimHistory(historyLength)
		}
		if !yield(out, nil) {
			return
		}
		if a2a.IsFinalEvent(ev) {
			break
		}
	}

	if ex.wait(ctx) != nil {
		return
	}
	if err := ex.execErr(); err != nil {
		yield(nil, err)
	}
}

func (h *DefaultRequestHandler) next(ctx context.Context, taskID string, consumer *event.Consumer) (a2a.Event, error) {
	if h.idleTimeout <= 0 {
		return consumer.Dequeue(ctx)
	}
	dctx, cancel := context.WithTimeout(ctx, h.idleTimeout)
	defer cancel()

	ev, err := consumer.Dequeue(dctx)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, &StreamIdleTimeoutError{TaskID: taskID, Timeout: h.idleTimeout}
	}
	return ev, err
}
