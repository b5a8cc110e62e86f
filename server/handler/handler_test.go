// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"

	"github.com/go-a2a/jokeagent/a2a"
	"github.com/go-a2a/jokeagent/server/agent_execution"
	"github.com/go-a2a/jokeagent/server/event"
	"github.com/go-a2a/jokeagent/server/task"
)

// fakeExecutor runs run on Execute and cancels through a task updater.
type fakeExecutor struct {
	run    func(ctx context.Context, u *task.TaskUpdater) error
	cancel func(ctx context.Context, u *task.TaskUpdater) error
}

func updaterFor(reqCtx *agent_execution.RequestContext, q event.Enqueuer) (*task.TaskUpdater, error) {
	state := a2a.TaskStateSubmitted
	if cur := reqCtx.CurrentTask(); cur != nil {
		state = cur.Status.State
	}
	return task.NewTaskUpdater(task.TaskUpdaterConfig{
		TaskID:    reqCtx.TaskID(),
		ContextID: reqCtx.ContextID(),
		Queue:     q,
		State:     state,
	})
}

func (e *fakeExecutor) Execute(ctx context.Context, reqCtx *agent_execution.RequestContext, q event.Enqueuer) error {
	u, err := updaterFor(reqCtx, q)
	if err != nil {
		return err
	}
	return e.run(ctx, u)
}

func (e *fakeExecutor) Cancel(ctx context.Context, reqCtx *agent_execution.RequestContext, q event.Enqueuer) error {
	u, err := updaterFor(reqCtx, q)
	if err != nil {
		return err
	}
	if e.cancel != nil {
		return e.cancel(ctx, u)
	}
	return u.Cancel(ctx, u.NewAgentMessage(a2a.Parts{a2a.NewTextPart("Task has been cancelled.")}))
}

// jokeRun emits two working updates, a joke artifact and completes.
func jokeRun(ctx context.Context, u *task.TaskUpdater) error {
	for _, text := range []string{"Thinking...", "Almost there..."} {
		if err := u.StartWork(ctx, u.NewAgentMessage(a2a.Parts{a2a.NewTextPart(text)})); err != nil {
			return err
		}
	}
	if err := u.AddArtifact(ctx, a2a.Parts{a2a.NewTextPart("Why did the gopher cross the road?")}, task.WithArtifactName("Joke generated")); err != nil {
		return err
	}
	return u.Complete(ctx, nil)
}

func newTestHandler(t *testing.T, exec agent_execution.AgentExecutor, opts ...DefaultRequestHandlerOption) (*DefaultRequestHandler, *task.InMemoryTaskStore) {
	t.Helper()
	store := task.NewInMemoryTaskStore()
	h, err := NewDefaultRequestHandler(exec, store, opts...)
	if err != nil {
		t.Fatalf("Failed to create handler: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.Close(ctx); err != nil {
			t.Errorf("Failed to close handler: %v", err)
		}
	})
	return h, store
}

func sendParams(text string, blocking bool) *a2a.MessageSendParams {
	return &a2a.MessageSendParams{
		Message:       a2a.NewUserTextMessage(text, "", ""),
		Configuration: &a2a.MessageSendConfiguration{Blocking: &blocking},
	}
}

func label(ev a2a.Event) string {
	switch e := ev.(type) {
	case *a2a.Task:
		return "task:" + e.Status.State.String()
	case *a2a.TaskStatusUpdateEvent:
		return fmt.Sprintf("status:%s:%t", e.Status.State, e.Final)
	case *a2a.TaskArtifactUpdateEvent:
		return "artifact:" + e.Artifact.Name
	case *a2a.Message:
		return "message"
	default:
		return fmt.Sprintf("%T", ev)
	}
}

func collect(t *testing.T, seq iter.Seq2[a2a.Event, error]) ([]string, error) {
	t.Helper()
	var labels []string
	for ev, err := range seq {
		if err != nil {
			return labels, err
		}
		labels = append(labels, label(ev))
	}
	return labels, nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for condition")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func storedState(t *testing.T, store task.TaskStore, id string) a2a.TaskState {
	t.Helper()
	got, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Failed to get task %s: %v", id, err)
	}
	return got.Status.State
}

func TestNewDefaultRequestHandler_RequiresDependencies(t *testing.T) {
	if _, err := NewDefaultRequestHandler(nil, task.NewInMemoryTaskStore()); err == nil {
		t.Error("Expected error for nil executor")
	}
	if _, err := NewDefaultRequestHandler(&fakeExecutor{run: jokeRun}, nil); err == nil {
		t.Error("Expected error for nil store")
	}
}

func TestOnMessageSend_Blocking(t *testing.T) {
	h, store := newTestHandler(t, &fakeExecutor{run: jokeRun})

	res, err := h.OnMessageSend(t.Context(), sendParams("tell me a joke", true))
	if err != nil {
		t.Fatalf("OnMessageSend failed: %v", err)
	}
	got, ok := res.(*a2a.Task)
	if !ok {
		t.Fatalf("Expected *a2a.Task result, got %T", res)
	}
	if got.Status.State != a2a.TaskStateCompleted {
		t.Errorf("Expected state completed, got %s", got.Status.State)
	}
	if len(got.Artifacts) != 1 || got.Artifacts[0].Name != "Joke generated" {
		t.Errorf("Expected one 'Joke generated' artifact, got %+v", got.Artifacts)
	}
	if got.ContextID == "" {
		t.Error("Expected a generated context id")
	}
	if len(got.History) == 0 || got.History[0].Role != a2a.RoleUser || got.History[0].TaskID != got.ID {
		t.Errorf("Expected history to start with the user message bound to the task, got %+v", got.History)
	}

	if state := storedState(t, store, got.ID); state != a2a.TaskStateCompleted {
		t.Errorf("Expected stored state completed, got %s", state)
	}
}

func TestOnMessageSend_HistoryLength(t *testing.T) {
	h, _ := newTestHandler(t, &fakeExecutor{run: jokeRun})

	params := sendParams("tell me a joke", true)
	zero := 0
	params.Configuration.HistoryLength = &zero
	res, err := h.OnMessageSend(t.Context(), params)
	if err != nil {
		t.Fatalf("OnMessageSend failed: %v", err)
	}
	if got := res.(*a2a.Task); len(got.History) != 0 {
		t.Errorf("Expected empty history, got %d entries", len(got.History))
	}
}

func TestOnMessageSend_NonBlocking(t *testing.T) {
	release := make(chan struct{})
	h, store := newTestHandler(t, &fakeExecutor{run: func(ctx context.Context, u *task.TaskUpdater) error {
		<-release
		return jokeRun(ctx, u)
	}})

	res, err := h.OnMessageSend(t.Context(), sendParams("tell me a joke", false))
	if err != nil {
		t.Fatalf("OnMessageSend failed: %v", err)
	}
	got := res.(*a2a.Task)
	if got.Status.State != a2a.TaskStateSubmitted {
		t.Errorf("Expected state submitted, got %s", got.Status.State)
	}

	close(release)
	waitFor(t, func() bool { return storedState(t, store, got.ID) == a2a.TaskStateCompleted })
}

func TestOnMessageSend_AgentMessage(t *testing.T) {
	h, _ := newTestHandler(t, agentExecutorFunc(func(ctx context.Context, reqCtx *agent_execution.RequestContext, q event.Enqueuer) error {
		return q.Enqueue(ctx, a2a.NewAgentTextMessage("hello", reqCtx.ContextID(), reqCtx.TaskID()))
	}))

	res, err := h.OnMessageSend(t.Context(), sendParams("hi", true))
	if err != nil {
		t.Fatalf("OnMessageSend failed: %v", err)
	}
	msg, ok := res.(*a2a.Message)
	if !ok {
		t.Fatalf("Expected *a2a.Message result, got %T", res)
	}
	if got := a2a.GetMessageText(msg, ""); got != "hello" {
		t.Errorf("Expected message text 'hello', got %q", got)
	}
}

type agentExecutorFunc func(ctx context.Context, reqCtx *agent_execution.RequestContext, q event.Enqueuer) error

func (f agentExecutorFunc) Execute(ctx context.Context, reqCtx *agent_execution.RequestContext, q event.Enqueuer) error {
	return f(ctx, reqCtx, q)
}

func (f agentExecutorFunc) Cancel(context.Context, *agent_execution.RequestContext, event.Enqueuer) error {
	return &a2a.UnsupportedOperationError{}
}

func TestOnMessageSend_InvalidParams(t *testing.T) {
	h, _ := newTestHandler(t, &fakeExecutor{run: jokeRun})

	_, err := h.OnMessageSend(t.Context(), &a2a.MessageSendParams{})
	var invalid *a2a.InvalidParamsError
	if !errors.As(err, &invalid) {
		t.Errorf("Expected InvalidParamsError, got %v", err)
	}
}

func TestOnMessageSend_PushConfigWithoutStore(t *testing.T) {
	h, _ := newTestHandler(t, &fakeExecutor{run: jokeRun})

	params := sendParams("hi", true)
	params.Configuration.PushNotificationConfig = &a2a.PushNotificationConfig{URL: "http://example.com/hook"}
	_, err := h.OnMessageSend(t.Context(), params)
	var unsupported *a2a.PushNotificationNotSupportedError
	if !errors.As(err, &unsupported) {
		t.Errorf("Expected PushNotificationNotSupportedError, got %v", err)
	}
}

func TestOnMessageSend_ExecutorFailure(t *testing.T) {
	tests := map[string]func(ctx context.Context, u *task.TaskUpdater) error{
		"returns error": func(ctx context.Context, u *task.TaskUpdater) error {
			if err := u.StartWork(ctx, nil); err != nil {
				return err
			}
			return errors.New("model unavailable")
		},
		"publishes failed then returns error": func(ctx context.Context, u *task.TaskUpdater) error {
			msg := u.NewAgentMessage(a2a.Parts{a2a.NewTextPart(a2a.GenericFailureMessage)})
			if err := u.Failed(ctx, msg); err != nil {
				return err
			}
			return errors.New("model unavailable")
		},
		"panics": func(ctx context.Context, u *task.TaskUpdater) error {
			panic("boom")
		},
	}

	for name, run := range tests {
		t.Run(name, func(t *testing.T) {
			h, store := newTestHandler(t, &fakeExecutor{run: run})

			var (
				labels []string
				taskID string
				err    error
			)
			for ev, e := range h.OnMessageSendStream(t.Context(), sendParams("tell me a joke", true)) {
				if e != nil {
					err = e
					break
				}
				if tk, ok := ev.(*a2a.Task); ok {
					taskID = tk.ID
				}
				labels = append(labels, label(ev))
			}

			var internal *a2a.InternalError
			if !errors.As(err, &internal) {
				t.Fatalf("Expected InternalError after the stream, got %v", err)
			}
			if internal.Msg != a2a.GenericFailureMessage {
				t.Errorf("Expected generic failure message, got %q", internal.Msg)
			}

			failed := 0
			for _, l := range labels {
				if l == "status:failed:true" {
					failed++
				}
			}
			if failed != 1 {
				t.Errorf("Expected exactly one failed status, got %d in %v", failed, labels)
			}

			got, gerr := store.Get(t.Context(), taskID)
			if gerr != nil {
				t.Fatalf("Failed to get task: %v", gerr)
			}
			if got.Status.State != a2a.TaskStateFailed {
				t.Errorf("Expected stored state failed, got %s", got.Status.State)
			}
			if text := a2a.GetMessageText(got.Status.Message, ""); text != a2a.GenericFailureMessage {
				t.Errorf("Expected generic failure status message, got %q", text)
			}
		})
	}
}

func TestOnMessageSendStream_EventOrder(t *testing.T) {
	h, _ := newTestHandler(t, &fakeExecutor{run: jokeRun})

	labels, err := collect(t, h.OnMessageSendStream(t.Context(), sendParams("tell me a joke", true)))
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	want := []string{
		"task:submitted",
		"status:working:false",
		"status:working:false",
		"artifact:Joke generated",
		"status:completed:true",
	}
	if diff := cmp.Diff(want, labels); diff != "" {
		t.Errorf("Stream events mismatch (-want +got):\n%s", diff)
	}
}

func TestOnMessageSendStream_IdleTimeout(t *testing.T) {
	release := make(chan struct{})
	h, _ := newTestHandler(t, &fakeExecutor{run: func(ctx context.Context, u *task.TaskUpdater) error {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
		return jokeRun(ctx, u)
	}}, WithStreamIdleTimeout(50*time.Millisecond))
	defer close(release)

	labels, err := collect(t, h.OnMessageSendStream(t.Context(), sendParams("tell me a joke", true)))
	var timeout *StreamIdleTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("Expected StreamIdleTimeoutError, got %v", err)
	}
	if diff := cmp.Diff([]string{"task:submitted"}, labels); diff != "" {
		t.Errorf("Stream events mismatch (-want +got):\n%s", diff)
	}
}

func TestOnMessageSend_ResumeInputRequired(t *testing.T) {
	calls := 0
	h, _ := newTestHandler(t, &fakeExecutor{run: func(ctx context.Context, u *task.TaskUpdater) error {
		calls++
		if calls == 1 {
			return u.RequiresInput(ctx, u.NewAgentMessage(a2a.Parts{a2a.NewTextPart("About what?")}), true)
		}
		return jokeRun(ctx, u)
	}})

	res, err := h.OnMessageSend(t.Context(), sendParams("tell me a joke", true))
	if err != nil {
		t.Fatalf("First OnMessageSend failed: %v", err)
	}
	first := res.(*a2a.Task)
	if first.Status.State != a2a.TaskStateInputRequired {
		t.Fatalf("Expected state input-required, got %s", first.Status.State)
	}

	params := &a2a.MessageSendParams{Message: a2a.NewUserTextMessage("gophers", first.ContextID, first.ID)}
	res, err = h.OnMessageSend(t.Context(), params)
	if err != nil {
		t.Fatalf("Second OnMessageSend failed: %v", err)
	}
	second := res.(*a2a.Task)
	if second.ID != first.ID {
		t.Errorf("Expected same task id %s, got %s", first.ID, second.ID)
	}
	if second.Status.State != a2a.TaskStateCompleted {
		t.Errorf("Expected state completed, got %s", second.Status.State)
	}
	var userTexts []string
	for _, m := range second.History {
		if m.Role == a2a.RoleUser {
			userTexts = append(userTexts, a2a.GetMessageText(m, ""))
		}
	}
	if diff := cmp.Diff([]string{"tell me a joke", "gophers"}, userTexts); diff != "" {
		t.Errorf("User history mismatch (-want +got):\n%s", diff)
	}
}

func TestOnMessageSend_ResumeErrors(t *testing.T) {
	h, _ := newTestHandler(t, &fakeExecutor{run: jokeRun})

	res, err := h.OnMessageSend(t.Context(), sendParams("tell me a joke", true))
	if err != nil {
		t.Fatalf("OnMessageSend failed: %v", err)
	}
	done := res.(*a2a.Task)

	_, err = h.OnMessageSend(t.Context(), &a2a.MessageSendParams{Message: a2a.NewUserTextMessage("again", "", done.ID)})
	var transition *a2a.InvalidStateTransitionError
	if !errors.As(err, &transition) {
		t.Errorf("Expected InvalidStateTransitionError for a terminal task, got %v", err)
	}

	_, err = h.OnMessageSend(t.Context(), &a2a.MessageSendParams{Message: a2a.NewUserTextMessage("again", "", "missing")})
	var notFound *a2a.TaskNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Expected TaskNotFoundError for an unknown task, got %v", err)
	}
}

func TestOnMessageSend_BusyTask(t *testing.T) {
	release := make(chan struct{})
	h, _ := newTestHandler(t, &fakeExecutor{run: func(ctx context.Context, u *task.TaskUpdater) error {
		<-release
		return jokeRun(ctx, u)
	}})
	defer close(release)

	res, err := h.OnMessageSend(t.Context(), sendParams("tell me a joke", false))
	if err != nil {
		t.Fatalf("OnMessageSend failed: %v", err)
	}
	running := res.(*a2a.Task)

	_, err = h.OnMessageSend(t.Context(), &a2a.MessageSendParams{Message: a2a.NewUserTextMessage("hurry", "", running.ID)})
	var invalid *a2a.InvalidParamsError
	if !errors.As(err, &invalid) {
		t.Errorf("Expected InvalidParamsError for a running task, got %v", err)
	}
}

func TestOnGetTask(t *testing.T) {
	h, _ := newTestHandler(t, &fakeExecutor{run: jokeRun})

	res, err := h.OnMessageSend(t.Context(), sendParams("tell me a joke", true))
	if err != nil {
		t.Fatalf("OnMessageSend failed: %v", err)
	}
	id := res.(*a2a.Task).ID

	one := 1
	got, err := h.OnGetTask(t.Context(), &a2a.TaskQueryParams{ID: id, HistoryLength: &one})
	if err != nil {
		t.Fatalf("OnGetTask failed: %v", err)
	}
	if got.Status.State != a2a.TaskStateCompleted {
		t.Errorf("Expected state completed, got %s", got.Status.State)
	}
	if len(got.History) != 1 {
		t.Errorf("Expected one history entry, got %d", len(got.History))
	}

	_, err = h.OnGetTask(t.Context(), &a2a.TaskQueryParams{ID: "missing"})
	var notFound *a2a.TaskNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Expected TaskNotFoundError, got %v", err)
	}
}

func TestOnCancelTask_Running(t *testing.T) {
	started := make(chan struct{})
	h, store := newTestHandler(t, &fakeExecutor{run: func(ctx context.Context, u *task.TaskUpdater) error {
		if err := u.StartWork(ctx, nil); err != nil {
			return err
		}
		close(started)
		// Blocks like a generator that has not produced its first chunk yet.
		<-ctx.Done()
		return ctx.Err()
	}})

	res, err := h.OnMessageSend(t.Context(), sendParams("tell me a joke", false))
	if err != nil {
		t.Fatalf("OnMessageSend failed: %v", err)
	}
	id := res.(*a2a.Task).ID
	<-started

	got, err := h.OnCancelTask(t.Context(), &a2a.TaskIDParams{ID: id})
	if err != nil {
		t.Fatalf("OnCancelTask failed: %v", err)
	}
	if got.Status.State != a2a.TaskStateCanceled {
		t.Errorf("Expected state canceled, got %s", got.Status.State)
	}
	if len(got.Artifacts) != 0 {
		t.Errorf("Expected no artifacts, got %d", len(got.Artifacts))
	}
	if state := storedState(t, store, id); state != a2a.TaskStateCanceled {
		t.Errorf("Expected stored state canceled, got %s", state)
	}
}

func TestOnCancelTask_Idle(t *testing.T) {
	h, store := newTestHandler(t, &fakeExecutor{run: func(ctx context.Context, u *task.TaskUpdater) error {
		return u.RequiresInput(ctx, nil, true)
	}})

	res, err := h.OnMessageSend(t.Context(), sendParams("tell me a joke", true))
	if err != nil {
		t.Fatalf("OnMessageSend failed: %v", err)
	}
	id := res.(*a2a.Task).ID

	got, err := h.OnCancelTask(t.Context(), &a2a.TaskIDParams{ID: id})
	if err != nil {
		t.Fatalf("OnCancelTask failed: %v", err)
	}
	if got.Status.State != a2a.TaskStateCanceled {
		t.Errorf("Expected state canceled, got %s", got.Status.State)
	}
	if text := a2a.GetMessageText(got.Status.Message, ""); text != "Task has been cancelled." {
		t.Errorf("Expected cancel status message, got %q", text)
	}
	if state := storedState(t, store, id); state != a2a.TaskStateCanceled {
		t.Errorf("Expected stored state canceled, got %s", state)
	}
}

func TestOnCancelTask_Errors(t *testing.T) {
	h, _ := newTestHandler(t, &fakeExecutor{run: jokeRun})

	_, err := h.OnCancelTask(t.Context(), &a2a.TaskIDParams{ID: "missing"})
	var notFound *a2a.TaskNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Expected TaskNotFoundError, got %v", err)
	}

	res, err := h.OnMessageSend(t.Context(), sendParams("tell me a joke", true))
	if err != nil {
		t.Fatalf("OnMessageSend failed: %v", err)
	}
	_, err = h.OnCancelTask(t.Context(), &a2a.TaskIDParams{ID: res.(*a2a.Task).ID})
	var transition *a2a.InvalidStateTransitionError
	if !errors.As(err, &transition) {
		t.Fatalf("Expected InvalidStateTransitionError, got %v", err)
	}
	if transition.From != a2a.TaskStateCompleted {
		t.Errorf("Expected transition from completed, got %s", transition.From)
	}
}

func TestOnCancelTask_ExecutorError(t *testing.T) {
	h, _ := newTestHandler(t, &fakeExecutor{
		run: func(ctx context.Context, u *task.TaskUpdater) error {
			return u.RequiresInput(ctx, nil, true)
		},
		cancel: func(context.Context, *task.TaskUpdater) error {
			return &a2a.UnsupportedOperationError{}
		},
	})

	res, err := h.OnMessageSend(t.Context(), sendParams("tell me a joke", true))
	if err != nil {
		t.Fatalf("OnMessageSend failed: %v", err)
	}
	_, err = h.OnCancelTask(t.Context(), &a2a.TaskIDParams{ID: res.(*a2a.Task).ID})
	var unsupported *a2a.UnsupportedOperationError
	if !errors.As(err, &unsupported) {
		t.Errorf("Expected UnsupportedOperationError, got %v", err)
	}
}

func TestOnResubscribeToTask_ConsumersSeeSameOrder(t *testing.T) {
	release := make(chan struct{})
	h, _ := newTestHandler(t, &fakeExecutor{run: func(ctx context.Context, u *task.TaskUpdater) error {
		<-release
		return jokeRun(ctx, u)
	}})

	res, err := h.OnMessageSend(t.Context(), sendParams("tell me a joke", false))
	if err != nil {
		t.Fatalf("OnMessageSend failed: %v", err)
	}
	id := res.(*a2a.Task).ID

	results := make([][]string, 2)
	var wg sync.WaitGroup
	for i := range results {
		next, stop := iter.Pull2(h.OnResubscribeToTask(t.Context(), &a2a.TaskIDParams{ID: id}))
		// The first pull attaches the consumer before any event is produced.
		ev, err, ok := next()
		if !ok || err != nil {
			stop()
			t.Fatalf("Expected initial snapshot, got %v %v", ev, err)
		}
		results[i] = append(results[i], label(ev))

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer stop()
			for {
				ev, err, ok := next()
				if !ok {
					return
				}
				if err != nil {
					t.Errorf("Resubscribe failed: %v", err)
					return
				}
				results[i] = append(results[i], label(ev))
			}
		}()
	}

	close(release)
	wg.Wait()

	want := []string{
		"task:submitted",
		"status:working:false",
		"status:working:false",
		"artifact:Joke generated",
		"status:completed:true",
	}
	for i, got := range results {
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Consumer %d events mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestOnResubscribeToTask_Idle(t *testing.T) {
	h, _ := newTestHandler(t, &fakeExecutor{run: jokeRun})

	res, err := h.OnMessageSend(t.Context(), sendParams("tell me a joke", true))
	if err != nil {
		t.Fatalf("OnMessageSend failed: %v", err)
	}
	id := res.(*a2a.Task).ID
	waitFor(t, func() bool { return h.lookup(id) == nil })

	labels, err := collect(t, h.OnResubscribeToTask(t.Context(), &a2a.TaskIDParams{ID: id}))
	if err != nil {
		t.Fatalf("Resubscribe failed: %v", err)
	}
	if diff := cmp.Diff([]string{"task:completed"}, labels); diff != "" {
		t.Errorf("Resubscribe events mismatch (-want +got):\n%s", diff)
	}

	_, err = collect(t, h.OnResubscribeToTask(t.Context(), &a2a.TaskIDParams{ID: "missing"}))
	var notFound *a2a.TaskNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Expected TaskNotFoundError, got %v", err)
	}
}

// recordingSender records the state of every task it is asked to deliver.
type recordingSender struct {
	mu     sync.Mutex
	states []a2a.TaskState
}

func (s *recordingSender) SendNotification(_ context.Context, t *a2a.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, t.Status.State)
	return nil
}

func (s *recordingSender) Close() error { return nil }

func (s *recordingSender) count(state a2a.TaskState) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, st := range s.states {
		if st == state {
			n++
		}
	}
	return n
}

func TestPushNotifications_StatusChanges(t *testing.T) {
	sender := &recordingSender{}
	h, _ := newTestHandler(t, &fakeExecutor{run: jokeRun}, WithPushSender(sender))

	if _, err := h.OnMessageSend(t.Context(), sendParams("tell me a joke", true)); err != nil {
		t.Fatalf("OnMessageSend failed: %v", err)
	}
	if err := h.Close(t.Context()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if n := sender.count(a2a.TaskStateCompleted); n != 1 {
		t.Errorf("Expected one completed notification, got %d", n)
	}
	if n := sender.count(a2a.TaskStateSubmitted); n != 0 {
		t.Errorf("Expected no notification for the initial snapshot, got %d", n)
	}
	if n := sender.count(a2a.TaskStateWorking); n != 2 {
		t.Errorf("Expected two working notifications, got %d", n)
	}
}

func TestPushNotifications_FailureReachesEveryWebhook(t *testing.T) {
	var (
		mu    sync.Mutex
		calls = map[string][]a2a.TaskState{}
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var tk a2a.Task
		if err := json.Unmarshal(body, &tk); err != nil {
			t.Errorf("Failed to decode notification: %v", err)
		}
		mu.Lock()
		calls[r.URL.Path] = append(calls[r.URL.Path], tk.Status.State)
		mu.Unlock()
	}))
	defer server.Close()

	configs := task.NewInMemoryPushNotificationConfigStore()
	sender, err := task.NewHTTPPushSender(task.HTTPPushSenderConfig{ConfigStore: configs, Client: server.Client()})
	if err != nil {
		t.Fatalf("Failed to create push sender: %v", err)
	}
	defer sender.Close()

	release := make(chan struct{})
	h, _ := newTestHandler(t, &fakeExecutor{run: func(ctx context.Context, u *task.TaskUpdater) error {
		<-release
		return errors.New("model unavailable")
	}}, WithPushConfigStore(configs), WithPushSender(sender))

	params := sendParams("tell me a joke", false)
	params.Configuration.PushNotificationConfig = &a2a.PushNotificationConfig{URL: server.URL + "/a"}
	res, err := h.OnMessageSend(t.Context(), params)
	if err != nil {
		t.Fatalf("OnMessageSend failed: %v", err)
	}
	id := res.(*a2a.Task).ID

	_, err = h.OnSetTaskPushNotificationConfig(t.Context(), &a2a.TaskPushNotificationConfig{
		TaskID:                 id,
		PushNotificationConfig: &a2a.PushNotificationConfig{URL: server.URL + "/b"},
	})
	if err != nil {
		t.Fatalf("OnSetTaskPushNotificationConfig failed: %v", err)
	}

	close(release)
	if err := h.Close(t.Context()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := map[string][]a2a.TaskState{
		"/a": {a2a.TaskStateFailed},
		"/b": {a2a.TaskStateFailed},
	}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("Webhook deliveries mismatch (-want +got):\n%s", diff)
	}
}

func TestPushNotificationConfigOperations(t *testing.T) {
	h, _ := newTestHandler(t, &fakeExecutor{run: jokeRun}, WithPushConfigStore(task.NewInMemoryPushNotificationConfigStore()))

	res, err := h.OnMessageSend(t.Context(), sendParams("tell me a joke", true))
	if err != nil {
		t.Fatalf("OnMessageSend failed: %v", err)
	}
	id := res.(*a2a.Task).ID

	set, err := h.OnSetTaskPushNotificationConfig(t.Context(), &a2a.TaskPushNotificationConfig{
		TaskID:                 id,
		PushNotificationConfig: &a2a.PushNotificationConfig{URL: "http://example.com/hook", Token: "tok"},
	})
	if err != nil {
		t.Fatalf("OnSetTaskPushNotificationConfig failed: %v", err)
	}
	cfgID := set.PushNotificationConfig.ID
	if cfgID == "" {
		t.Fatal("Expected a generated config id")
	}

	got, err := h.OnGetTaskPushNotificationConfig(t.Context(), &a2a.GetTaskPushNotificationConfigParams{ID: id})
	if err != nil {
		t.Fatalf("OnGetTaskPushNotificationConfig failed: %v", err)
	}
	if diff := cmp.Diff(set, got); diff != "" {
		t.Errorf("Config mismatch (-want +got):\n%s", diff)
	}

	list, err := h.OnListTaskPushNotificationConfig(t.Context(), &a2a.TaskIDParams{ID: id})
	if err != nil {
		t.Fatalf("OnListTaskPushNotificationConfig failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("Expected one config, got %d", len(list))
	}

	if err := h.OnDeleteTaskPushNotificationConfig(t.Context(), &a2a.DeleteTaskPushNotificationConfigParams{ID: id, PushNotificationConfigID: cfgID}); err != nil {
		t.Fatalf("OnDeleteTaskPushNotificationConfig failed: %v", err)
	}
	_, err = h.OnGetTaskPushNotificationConfig(t.Context(), &a2a.GetTaskPushNotificationConfigParams{ID: id, PushNotificationConfigID: cfgID})
	var invalid *a2a.InvalidParamsError
	if !errors.As(err, &invalid) {
		t.Errorf("Expected InvalidParamsError after delete, got %v", err)
	}

	_, err = h.OnListTaskPushNotificationConfig(t.Context(), &a2a.TaskIDParams{ID: "missing"})
	var notFound *a2a.TaskNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Expected TaskNotFoundError, got %v", err)
	}
}

func TestPushNotificationConfigOperations_NotSupported(t *testing.T) {
	h, _ := newTestHandler(t, &fakeExecutor{run: jokeRun})

	_, err := h.OnListTaskPushNotificationConfig(t.Context(), &a2a.TaskIDParams{ID: "any"})
	var unsupported *a2a.PushNotificationNotSupportedError
	if !errors.As(err, &unsupported) {
		t.Errorf("Expected PushNotificationNotSupportedError, got %v", err)
	}
}

// blockingRun starts work and holds the invocation until it is canceled.
func blockingRun(ctx context.Context, u *task.TaskUpdater) error {
	if err := u.StartWork(ctx, nil); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestClose_CancelsAndRejectsInvocations(t *testing.T) {
	h, store := newTestHandler(t, &fakeExecutor{run: blockingRun})

	res, err := h.OnMessageSend(t.Context(), sendParams("tell me a joke", false))
	if err != nil {
		t.Fatalf("OnMessageSend failed: %v", err)
	}
	running := res.(*a2a.Task).ID

	const senders = 8
	var (
		wg     sync.WaitGroup
		start  = make(chan struct{})
		errs   = make([]error, senders)
		states = make([]a2a.TaskState, senders)
	)
	for i := range senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := h.OnMessageSend(t.Context(), sendParams("tell me a joke", true))
			errs[i] = err
			if err == nil {
				states[i] = res.(*a2a.Task).Status.State
			}
		}()
	}

	close(start)
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	if err := h.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	wg.Wait()

	for i := range senders {
		if errs[i] != nil {
			if !errors.Is(errs[i], ErrHandlerClosed) {
				t.Errorf("Send %d: expected ErrHandlerClosed, got %v", i, errs[i])
			}
			continue
		}
		if states[i] != a2a.TaskStateCanceled {
			t.Errorf("Send %d: expected state %s, got %s", i, a2a.TaskStateCanceled, states[i])
		}
	}

	got, err := store.Get(t.Context(), running)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status.State != a2a.TaskStateCanceled {
		t.Errorf("Expected running task to be %s, got %s", a2a.TaskStateCanceled, got.Status.State)
	}

	before := store.Size()
	_, err = h.OnMessageSend(t.Context(), sendParams("another joke", true))
	var internal *a2a.InternalError
	if !errors.As(err, &internal) || !errors.Is(err, ErrHandlerClosed) {
		t.Errorf("Expected InternalError wrapping ErrHandlerClosed, got %v", err)
	}
	if after := store.Size(); after != before {
		t.Errorf("Expected no task to be created after Close, got %d tasks, want %d", after, before)
	}
	if h.lookup(running) != nil {
		t.Errorf("Expected task %s to be released", running)
	}
}
