// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-a2a/jokeagent/a2a"
	"github.com/go-a2a/jokeagent/agent/joke"
	"github.com/go-a2a/jokeagent/client"
	"github.com/go-a2a/jokeagent/server/handler"
	"github.com/go-a2a/jokeagent/server/jsonrpc"
	"github.com/go-a2a/jokeagent/server/task"
)

func newAgent(t *testing.T, wrap func(http.Handler) http.Handler) *httptest.Server {
	t.Helper()

	gen := &joke.ScriptedGenerator{Chunks: []joke.Chunk{
		{Content: "Knock knock. "},
		{Content: "Who's there? Goroutine."},
		{IsTaskComplete: true},
	}}
	h, err := handler.NewDefaultRequestHandler(joke.NewExecutor(gen), task.NewInMemoryTaskStore(),
		handler.WithPushConfigStore(task.NewInMemoryPushNotificationConfigStore()))
	require.NoError(t, err)
	srv, err := jsonrpc.NewServer(h, joke.AgentCard("http://localhost/"))
	require.NoError(t, err)

	var hh http.Handler = srv
	if wrap != nil {
		hh = wrap(srv)
	}
	ts := httptest.NewServer(hh)
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.Close(ctx)
	})
	return ts
}

func sendJoke(t *testing.T, c *client.Client) *a2a.Task {
	t.Helper()
	ev, err := c.SendMessage(t.Context(), &a2a.MessageSendParams{
		Message: a2a.NewUserTextMessage("tell me a joke", "", ""),
	})
	require.NoError(t, err)
	tsk, ok := ev.(*a2a.Task)
	require.True(t, ok, "expected a task, got %T", ev)
	return tsk
}

func TestClient_SendMessage(t *testing.T) {
	ts := newAgent(t, nil)
	c := client.NewClient(ts.URL + "/")

	got := sendJoke(t, c)
	assert.Equal(t, a2a.TaskStateCompleted, got.Status.State)
	require.Len(t, got.Artifacts, 1)
	assert.Equal(t, "Knock knock. Who's there? Goroutine.", a2a.GetTextParts(got.Artifacts[0].Parts, ""))

	fetched, err := c.GetTask(t.Context(), &a2a.TaskQueryParams{ID: got.ID})
	require.NoError(t, err)
	assert.Equal(t, got.ID, fetched.ID)
	assert.Equal(t, a2a.TaskStateCompleted, fetched.Status.State)
}

func TestClient_Errors(t *testing.T) {
	ts := newAgent(t, nil)
	c := client.NewClient(ts.URL + "/")
	done := sendJoke(t, c)

	_, err := c.GetTask(t.Context(), &a2a.TaskQueryParams{ID: "missing"})
	assert.True(t, client.IsTaskNotFoundError(err), "got %v", err)

	_, err = c.CancelTask(t.Context(), &a2a.TaskIDParams{ID: done.ID})
	assert.True(t, client.IsTaskNotCancelableError(err), "got %v", err)

	_, err = c.SendMessage(t.Context(), &a2a.MessageSendParams{Message: &a2a.Message{Role: a2a.RoleUser}})
	assert.True(t, client.IsRPCError(err, a2a.ErrorCodeInvalidParams), "got %v", err)
}

func TestClient_SendMessageStream(t *testing.T) {
	ts := newAgent(t, nil)
	c := client.NewClient(ts.URL + "/")

	var got []string
	for ev, err := range c.SendMessageStream(t.Context(), &a2a.MessageSendParams{
		Message: a2a.NewUserTextMessage("tell me a joke", "", ""),
	}) {
		require.NoError(t, err)
		label := ev.EventKind()
		if su, ok := ev.(*a2a.TaskStatusUpdateEvent); ok {
			label += ":" + string(su.Status.State)
		}
		got = append(got, label)
	}
	want := []string{
		a2a.KindTask,
		"status-update:working",
		"status-update:working",
		a2a.KindArtifactUpdate,
		"status-update:completed",
	}
	assert.Equal(t, want, got)
}

func TestClient_Resubscribe(t *testing.T) {
	ts := newAgent(t, nil)
	c := client.NewClient(ts.URL + "/")
	done := sendJoke(t, c)

	var got []a2a.Event
	for ev, err := range c.Resubscribe(t.Context(), &a2a.TaskIDParams{ID: done.ID}) {
		require.NoError(t, err)
		got = append(got, ev)
	}
	require.Len(t, got, 1, "a finished task yields its snapshot")
	snap, ok := got[0].(*a2a.Task)
	require.True(t, ok)
	assert.Equal(t, a2a.TaskStateCompleted, snap.Status.State)
}

func TestClient_PushNotificationConfig(t *testing.T) {
	ts := newAgent(t, nil)
	c := client.NewClient(ts.URL + "/")
	done := sendJoke(t, c)
	ctx := t.Context()

	set, err := c.SetTaskPushNotificationConfig(ctx, &a2a.TaskPushNotificationConfig{
		TaskID:                 done.ID,
		PushNotificationConfig: &a2a.PushNotificationConfig{URL: "http://example.com/hook"},
	})
	require.NoError(t, err)
	id := set.PushNotificationConfig.ID
	require.NotEmpty(t, id)

	got, err := c.GetTaskPushNotificationConfig(ctx, &a2a.GetTaskPushNotificationConfigParams{
		ID:                       done.ID,
		PushNotificationConfigID: id,
	})
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/hook", got.PushNotificationConfig.URL)

	list, err := c.ListTaskPushNotificationConfig(ctx, &a2a.TaskIDParams{ID: done.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, c.DeleteTaskPushNotificationConfig(ctx, &a2a.DeleteTaskPushNotificationConfigParams{
		ID:                       done.ID,
		PushNotificationConfigID: id,
	}))
	list, err = c.ListTaskPushNotificationConfig(ctx, &a2a.TaskIDParams{ID: done.ID})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestClient_Interceptors(t *testing.T) {
	var (
		mu      sync.Mutex
		headers []http.Header
	)
	ts := newAgent(t, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			headers = append(headers, r.Header.Clone())
			mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})

	var order []string
	trace := func(name string) client.Interceptor {
		return func(ctx context.Context, req *http.Request, invoker client.Invoker) (*http.Response, error) {
			order = append(order, name)
			return invoker(ctx, req)
		}
	}
	c := client.NewClient(ts.URL+"/",
		client.WithUserAgent("joke-test"),
		client.WithInterceptors(trace("outer"), client.BearerTokenInterceptor("s3cret"), trace("inner")),
	)
	sendJoke(t, c)

	assert.Equal(t, []string{"outer", "inner"}, order)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, headers, 1)
	assert.Equal(t, "Bearer s3cret", headers[0].Get("Authorization"))
	assert.Equal(t, "joke-test", headers[0].Get("User-Agent"))
}

func TestCardResolver(t *testing.T) {
	ts := newAgent(t, nil)

	card, err := client.NewCardResolver(ts.URL, nil).GetAgentCard(t.Context(), "")
	require.NoError(t, err)
	assert.Equal(t, "Joke Agent", card.Name)
	require.Len(t, card.Skills, 1)
	assert.Equal(t, "say_joke", card.Skills[0].ID)
}

func TestCardResolver_LegacyFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+a2a.LegacyAgentCardWellKnownPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Legacy Agent","url":"http://localhost/","version":"0.1.0"}`))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	card, err := client.NewCardResolver(ts.URL+"/", ts.Client()).GetAgentCard(t.Context(), "")
	require.NoError(t, err)
	assert.Equal(t, "Legacy Agent", card.Name)

	_, err = client.NewCardResolver(ts.URL, nil).GetAgentCard(t.Context(), "/cards/missing.json")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "404"), "got %v", err)
}
