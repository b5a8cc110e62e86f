// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package client calls an A2A agent over its JSON-RPC binding.
package client

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-a2a/jokeagent/a2a"
	"github.com/go-a2a/jokeagent/internal/pool"
	"github.com/go-a2a/jokeagent/server/jsonrpc"
)

const (
	instrumentationName = "github.com/go-a2a/jokeagent/client"
	defaultUserAgent    = "jokeagent-client"
)

// Client is a JSON-RPC client for a single agent endpoint.
type Client struct {
	httpClient   *http.Client
	url          string
	userAgent    string
	interceptors []Interceptor
	logger       *slog.Logger
	tracer       trace.Tracer

	invoker Invoker
	nextID  atomic.Int64
}

// NewClient returns a client posting to the agent endpoint at url.
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		url:        url,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(instrumentationName)
	}
	c.invoker = chainInterceptors(c.interceptors, func(_ context.Context, req *http.Request) (*http.Response, error) {
		return c.httpClient.Do(req)
	})
	return c
}

// NewClientFromCard returns a client for the endpoint advertised by card.
func NewClientFromCard(card *a2a.AgentCard, opts ...ClientOption) *Client {
	return NewClient(card.URL, opts...)
}

// SendMessage sends a message and returns the resulting [*a2a.Task] or [*a2a.Message].
func (c *Client) SendMessage(ctx context.Context, params *a2a.MessageSendParams) (a2a.Event, error) {
	var raw jsontext.Value
	if err := c.call(ctx, jsonrpc.MethodMessageSend, params, &raw); err != nil {
		return nil, err
	}
	return a2a.UnmarshalEvent(raw)
}

// SendMessageStream sends a message and streams the task events it produces.
func (c *Client) SendMessageStream(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error] {
	return c.stream(ctx, jsonrpc.MethodMessageStream, params)
}

// Resubscribe streams the events of a running task.
func (c *Client) Resubscribe(ctx context.Context, params *a2a.TaskIDParams) iter.Seq2[a2a.Event, error] {
	return c.stream(ctx, jsonrpc.MethodTasksResubscribe, params)
}

// GetTask returns the current snapshot of a task.
func (c *Client) GetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error) {
	var t a2a.Task
	if err := c.call(ctx, jsonrpc.MethodTasksGet, params, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CancelTask requests cancellation of a task and returns its final snapshot.
func (c *Client) CancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error) {
	var t a2a.Task
	if err := c.call(ctx, jsonrpc.MethodTasksCancel, params, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// SetTaskPushNotificationConfig registers a webhook for a task.
func (c *Client) SetTaskPushNotificationConfig(ctx context.Context, params *a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error) {
	var out a2a.TaskPushNotificationConfig
	if err := c.call(ctx, jsonrpc.MethodPushConfigSet, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTaskPushNotificationConfig returns one webhook of a task.
func (c *Client) GetTaskPushNotificationConfig(ctx context.Context, params *a2a.GetTaskPushNotificationConfigParams) (*a2a.TaskPushNotificationConfig, error) {
	var out a2a.TaskPushNotificationConfig
	if err := c.call(ctx, jsonrpc.MethodPushConfigGet, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTaskPushNotificationConfig returns every webhook of a task.
func (c *Client) ListTaskPushNotificationConfig(ctx context.Context, params *a2a.TaskIDParams) ([]*a2a.TaskPushNotificationConfig, error) {
	var out []*a2a.TaskPushNotificationConfig
	if err := c.call(ctx, jsonrpc.MethodPushConfigList, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteTaskPushNotificationConfig removes a webhook of a task.
func (c *Client) DeleteTaskPushNotificationConfig(ctx context.Context, params *a2a.DeleteTaskPushNotificationConfigParams) error {
	return c.call(ctx, jsonrpc.MethodPushConfigDelete, params, nil)
}

func (c *Client) startSpan(ctx context.Context, method string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "a2a.client "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("rpc.method", method)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// post sends one JSON-RPC request and returns the HTTP response.
func (c *Client) post(ctx context.Context, method string, params any, accept string) (*http.Response, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal %s params: %w", method, err)
	}

	buf := pool.Bytes.Get()
	defer pool.Bytes.Put(buf)
	err = json.MarshalWrite(buf, jsonrpc.Request{
		JSONRPC: jsonrpc.Version,
		ID:      jsontext.Value(strconv.FormatInt(c.nextID.Add(1), 10)),
		Method:  method,
		Params:  raw,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(bytes.Clone(buf.Bytes())))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.invoker(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%s: unexpected HTTP status %s", method, resp.Status)
	}
	return resp, nil
}

// call performs a unary request and decodes its result into out, which may be nil.
func (c *Client) call(ctx context.Context, method string, params, out any) (err error) {
	ctx, span := c.startSpan(ctx, method)
	defer func() { endSpan(span, err) }()

	resp, err := c.post(ctx, method, params, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var rpcResp jsonrpc.Response
	if err := json.UnmarshalRead(resp.Body, &rpcResp); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		c.logger.DebugContext(ctx, "agent returned an error",
			slog.String("method", method),
			slog.Int("code", rpcResp.Error.Code))
		return newRPCError(rpcResp.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// stream performs a streaming request. The sequence ends after the server
// closes the stream, or with the first error.
func (c *Client) stream(ctx context.Context, method string, params any) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		ctx, span := c.startSpan(ctx, method)
		var err error
		defer func() { endSpan(span, err) }()

		resp, err := c.post(ctx, method, params, "text/event-stream")
		if err != nil {
			yield(nil, err)
			return
		}
		defer resp.Body.Close()

		for data, readErr := range readEvents(resp.Body) {
			if readErr != nil {
				err = readErr
				yield(nil, err)
				return
			}
			var ev a2a.Event
			if ev, err = decodeStreamEvent(data); err != nil {
				yield(nil, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

func decodeStreamEvent(data []byte) (a2a.Event, error) {
	var resp jsonrpc.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode stream frame: %w", err)
	}
	if resp.Error != nil {
		return nil, newRPCError(resp.Error)
	}
	return a2a.UnmarshalEvent(resp.Result)
}
