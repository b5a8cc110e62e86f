// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-a2a/jokeagent/a2a"
	"github.com/go-a2a/jokeagent/internal/config"
	"github.com/go-a2a/jokeagent/server/handler"
	"github.com/go-a2a/jokeagent/server/jsonrpc"
)

func TestLoadConfig_Flags(t *testing.T) {
	t.Setenv(config.EnvPort, "")
	t.Setenv(config.EnvStore, "")

	var f flags
	cmd := &cobra.Command{}
	f.bind(cmd)
	require.NoError(t, cmd.ParseFlags([]string{
		"--port", "8181",
		"--store", config.StoreSQLite,
		"--offline",
		"--env-file", filepath.Join(t.TempDir(), ".env"),
	}))

	cfg, err := loadConfig(cmd, &f)
	require.NoError(t, err)
	assert.Equal(t, 8181, cfg.Port)
	assert.Equal(t, "localhost", cfg.Host, "unchanged flags keep the configured value")
	assert.Equal(t, config.StoreSQLite, cfg.Store.Driver)
	assert.True(t, cfg.Offline)
}

func TestLoadConfig_Invalid(t *testing.T) {
	var f flags
	cmd := &cobra.Command{}
	f.bind(cmd)
	require.NoError(t, cmd.ParseFlags([]string{
		"--offline",
		"--store", "redis",
		"--env-file", filepath.Join(t.TempDir(), ".env"),
	}))

	_, err := loadConfig(cmd, &f)
	assert.ErrorContains(t, err, `unknown store driver "redis"`)
}

func newTestApp(t *testing.T, mutate func(*config.Config)) *httptest.Server {
	t.Helper()

	cfg := config.Default()
	cfg.Offline = true
	cfg.Retention.Enabled = true
	cfg.Retention.TTL = time.Hour
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := newApp(t.Context(), cfg, logger)
	require.NoError(t, err)
	a.Start()

	ts := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, a.Drain(ctx))
		ts.Close()
		assert.NoError(t, a.Close(ctx))
	})
	return ts
}

func TestApp_MessageSend(t *testing.T) {
	stores := map[string]config.StoreConfig{
		"memory": {Driver: config.StoreMemory},
		"sqlite": {Driver: config.StoreSQLite, DSN: filepath.Join(t.TempDir(), "tasks.db")},
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ts := newTestApp(t, func(c *config.Config) { c.Store = store })

			params, err := json.Marshal(&a2a.MessageSendParams{
				Message: a2a.NewUserTextMessage("tell me a joke", "", ""),
			})
			require.NoError(t, err)
			body, err := json.Marshal(jsonrpc.Request{
				JSONRPC: jsonrpc.Version,
				ID:      jsontext.Value(`"joke-1"`),
				Method:  jsonrpc.MethodMessageSend,
				Params:  params,
			})
			require.NoError(t, err)

			resp, err := http.Post(ts.URL+"/", "application/json", bytes.NewReader(body))
			require.NoError(t, err)
			defer resp.Body.Close()

			var rpcResp jsonrpc.Response
			require.NoError(t, json.UnmarshalRead(resp.Body, &rpcResp))
			require.Nil(t, rpcResp.Error)

			var got a2a.Task
			require.NoError(t, json.Unmarshal(rpcResp.Result, &got))
			assert.Equal(t, a2a.TaskStateCompleted, got.Status.State)
			require.Len(t, got.Artifacts, 1)
			assert.Equal(t, "Why do Go programmers prefer dark mode? Because light attracts bugs.",
				a2a.GetTextParts(got.Artifacts[0].Parts, ""))
		})
	}
}

func TestApp_WellKnown(t *testing.T) {
	ts := newTestApp(t, nil)

	for _, path := range []string{a2a.AgentCardWellKnownPath, jsonrpc.JWKSPath} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	require.NoError(t, cmd.ExecuteContext(t.Context()))
	return out.String()
}

func TestAskCommand(t *testing.T) {
	ts := newTestApp(t, nil)
	const punchline = "Why do Go programmers prefer dark mode? Because light attracts bugs."

	out := runCLI(t, "ask", "--url", ts.URL+"/", "tell", "me", "a", "joke")
	assert.Contains(t, out, ": completed\n")
	assert.Contains(t, out, "Joke generated: "+punchline)

	out = runCLI(t, "ask", "--stream", "--url", ts.URL+"/", "tell me a joke")
	assert.Contains(t, out, ": submitted\n")
	assert.Contains(t, out, "[working] Why do Go programmers prefer dark mode?")
	assert.Contains(t, out, "Joke generated: "+punchline)
	assert.Contains(t, out, "[completed]")
}

func TestCardCommand(t *testing.T) {
	ts := newTestApp(t, nil)

	out := runCLI(t, "card", "--url", ts.URL)
	var card a2a.AgentCard
	require.NoError(t, json.Unmarshal([]byte(out), &card))
	assert.Equal(t, "Joke Agent", card.Name)
	assert.Equal(t, a2a.ProtocolVersion, card.ProtocolVersion)
}

func TestAskCommand_Token(t *testing.T) {
	ts := newTestApp(t, func(c *config.Config) {
		c.Auth.Tokens = map[string]string{"s3cret": "alice"}
	})

	cmd := newRootCommand()
	cmd.SetArgs([]string{"ask", "--url", ts.URL + "/", "tell me a joke"})
	cmd.SetOut(io.Discard)
	err := cmd.ExecuteContext(t.Context())
	assert.ErrorContains(t, err, "401")

	out := runCLI(t, "ask", "--token", "s3cret", "--url", ts.URL+"/", "tell me a joke")
	assert.Contains(t, out, ": completed\n")
}

func TestShutdown(t *testing.T) {
	cfg := config.Default()
	cfg.Offline = true
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := newApp(t.Context(), cfg, logger)
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: a.Handler()}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(l) }()

	send := func() error {
		_, err := a.handler.OnMessageSend(t.Context(), &a2a.MessageSendParams{
			Message: a2a.NewUserTextMessage("tell me a joke", "", ""),
		})
		return err
	}
	require.NoError(t, send())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, shutdown(ctx, srv, a))
	assert.ErrorIs(t, <-serveErr, http.ErrServerClosed)

	assert.ErrorIs(t, send(), handler.ErrHandlerClosed, "no invocation is admitted once the app is closed")
	_, err = http.Get("http://" + l.Addr().String() + a2a.AgentCardWellKnownPath)
	assert.Error(t, err, "the listener is closed")
}
