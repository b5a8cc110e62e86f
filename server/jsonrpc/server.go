// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package jsonrpc serves a [handler.RequestHandler] over HTTP as JSON-RPC 2.0.
// Streaming methods answer with server-sent events. Task streams are also
// available over WebSocket.
package jsonrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-a2a/jokeagent/a2a"
	"github.com/go-a2a/jokeagent/auth"
	"github.com/go-a2a/jokeagent/internal/pool"
	"github.com/go-a2a/jokeagent/server/agent_execution"
	"github.com/go-a2a/jokeagent/server/handler"
)

const instrumentationName = "github.com/go-a2a/jokeagent/server/jsonrpc"

// JWKSPath is where the push notification signing keys are published.
const JWKSPath = "/.well-known/jwks.json"

const defaultMaxBodyBytes = 1 << 20

// Server implements the A2A JSON-RPC binding.
type Server struct {
	handler      handler.RequestHandler
	card         *a2a.AgentCard
	jwks         http.Handler
	auth         auth.Authenticator
	logger       *slog.Logger
	tracer       trace.Tracer
	meter        metric.Meter
	metrics      *metrics
	maxBodyBytes int64
	mux          *http.ServeMux
}

var _ http.Handler = (*Server)(nil)

// Option represents an option for configuring the [Server].
type Option func(*Server)

// WithLogger sets the [*slog.Logger] for the [Server].
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTracer sets the [trace.Tracer] for the [Server].
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// WithMeter sets the [metric.Meter] request metrics are recorded with.
func WithMeter(meter metric.Meter) Option {
	return func(s *Server) {
		s.meter = meter
	}
}

// WithJWKS serves h at [JWKSPath].
func WithJWKS(h http.Handler) Option {
	return func(s *Server) {
		s.jwks = h
	}
}

// WithAuthenticator sets how callers of the RPC and WebSocket endpoints are
// identified. By default every caller is anonymous.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(s *Server) {
		s.auth = a
	}
}

// WithMaxBodyBytes limits the size of request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		s.maxBodyBytes = n
	}
}

// NewServer returns a server exposing h and publishing card.
func NewServer(h handler.RequestHandler, card *a2a.AgentCard, opts ...Option) (*Server, error) {
	if h == nil {
		return nil, errors.New("request handler is required")
	}
	if card == nil {
		return nil, errors.New("agent card is required")
	}

	s := &Server{
		handler:      h,
		card:         card,
		maxBodyBytes: defaultMaxBodyBytes,
		mux:          http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.auth == nil {
		s.auth = auth.Anonymous
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(instrumentationName)
	}
	if s.meter == nil {
		s.meter = otel.Meter(instrumentationName)
	}
	s.metrics = newMetrics(s.meter)

	s.mux.HandleFunc("GET "+a2a.AgentCardWellKnownPath, s.handleAgentCard)
	s.mux.HandleFunc("GET "+a2a.LegacyAgentCardWellKnownPath, s.handleAgentCard)
	if s.jwks != nil {
		s.mux.Handle("GET "+JWKSPath, s.jwks)
	}
	s.mux.HandleFunc("GET /ws/tasks/{id}", s.handleTaskSocket)
	s.mux.HandleFunc("POST /{$}", s.handleRPC)
	return s, nil
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	b, err := json.Marshal(s.card)
	if err != nil {
		http.Error(w, "failed to encode agent card", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

func (s *Server) writeResponse(w http.ResponseWriter, resp *Response) {
	buf := pool.Bytes.Get()
	defer pool.Bytes.Put(buf)

	if err := json.MarshalWrite(buf, resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

// authenticate resolves the caller of r and returns r's context carrying it.
// Rejected callers are answered with 401 and ok is false.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (_ context.Context, ok bool) {
	user, err := s.auth.Authenticate(r)
	if err != nil {
		s.logger.DebugContext(r.Context(), "request rejected",
			slog.String("remote_addr", r.RemoteAddr),
			slog.Any("error", err))
		w.Header().Set("WWW-Authenticate", `Bearer realm="a2a"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return auth.WithUser(r.Context(), user), true
}

func withCallContext(ctx context.Context, r *http.Request, transport string) context.Context {
	state := map[string]any{
		"transport":   transport,
		"remote_addr": r.RemoteAddr,
		"user_agent":  r.UserAgent(),
	}
	if u := auth.UserFrom(ctx); u.IsAuthenticated() {
		state["user"] = u.UserName()
	}
	return agent_execution.WithCallContext(ctx, agent_execution.NewCallContext(state))
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		s.writeResponse(w, newError(nil, &a2a.InvalidRequestError{Msg: "unreadable request body"}))
		return
	}
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeResponse(w, newError(nil, &a2a.JSONParseError{Msg: err.Error()}))
		return
	}
	if req.JSONRPC != Version || req.Method == "" {
		s.writeResponse(w, newError(req.ID, &a2a.InvalidRequestError{Msg: "not a JSON-RPC 2.0 request"}))
		return
	}

	ctx, span := s.tracer.Start(ctx, "jsonrpc "+req.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("rpc.system", "jsonrpc"),
			attribute.String("rpc.method", req.Method),
		))
	defer span.End()
	ctx = withCallContext(ctx, r, "jsonrpc")

	var code int
	switch req.Method {
	case MethodMessageStream:
		code = streamEvents(ctx, s, w, req, func(p *a2a.MessageSendParams) iter.Seq2[a2a.Event, error] {
			return s.handler.OnMessageSendStream(ctx, p)
		})
	case MethodTasksResubscribe:
		code = streamEvents(ctx, s, w, req, func(p *a2a.TaskIDParams) iter.Seq2[a2a.Event, error] {
			return s.handler.OnResubscribeToTask(ctx, p)
		})
	default:
		resp := s.dispatch(ctx, req)
		if resp.Error != nil {
			code = resp.Error.Code
		}
		s.writeResponse(w, resp)
	}

	if code != 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("jsonrpc error %d", code))
	}
	span.SetAttributes(attribute.Int("rpc.jsonrpc.error_code", code))
	s.metrics.record(ctx, req.Method, code, time.Since(start))
}

func (s *Server) dispatch(ctx context.Context, req Request) *Response {
	h := s.handler
	switch req.Method {
	case MethodMessageSend:
		return call(ctx, req, h.OnMessageSend)
	case MethodTasksGet:
		return call(ctx, req, h.OnGetTask)
	case MethodTasksCancel:
		return call(ctx, req, h.OnCancelTask)
	case MethodPushConfigSet:
		return call(ctx, req, h.OnSetTaskPushNotificationConfig)
	case MethodPushConfigGet:
		return call(ctx, req, h.OnGetTaskPushNotificationConfig)
	case MethodPushConfigList:
		return call(ctx, req, h.OnListTaskPushNotificationConfig)
	case MethodPushConfigDelete:
		return call(ctx, req, func(ctx context.Context, p *a2a.DeleteTaskPushNotificationConfigParams) (any, error) {
			return nil, h.OnDeleteTaskPushNotificationConfig(ctx, p)
		})
	default:
		return newError(req.ID, &a2a.MethodNotFoundError{Method: req.Method})
	}
}

func decodeParams(raw jsontext.Value, dst any) error {
	if len(raw) == 0 {
		return &a2a.InvalidParamsError{Msg: "params are required"}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &a2a.InvalidParamsError{Msg: err.Error()}
	}
	return nil
}

// call decodes the params of req, invokes fn and wraps its outcome.
func call[P, R any](ctx context.Context, req Request, fn func(context.Context, *P) (R, error)) *Response {
	var p P
	if err := decodeParams(req.Params, &p); err != nil {
		return newError(req.ID, err)
	}
	res, err := fn(ctx, &p)
	if err != nil {
		return newError(req.ID, err)
	}
	resp, err := newResult(req.ID, res)
	if err != nil {
		return newError(req.ID, &a2a.InternalError{Err: err})
	}
	return resp
}

// streamEvents answers req with one server-sent event per element of the sequence
// open returns. It reports the code of the last error sent, if any.
func streamEvents[P any](ctx context.Context, s *Server, w http.ResponseWriter, req Request, open func(*P) iter.Seq2[a2a.Event, error]) int {
	var p P
	if err := decodeParams(req.Params, &p); err != nil {
		resp := newError(req.ID, err)
		s.writeResponse(w, resp)
		return resp.Error.Code
	}

	sse := newSSEWriter(w)
	code := 0
	for ev, err := range open(&p) {
		var resp *Response
		if err != nil {
			resp = newError(req.ID, err)
		} else if resp, err = newResult(req.ID, ev); err != nil {
			resp = newError(req.ID, &a2a.InternalError{Err: err})
		}
		if resp.Error != nil {
			code = resp.Error.Code
		}
		if err := sse.send(resp); err != nil {
			s.logger.DebugContext(ctx, "stream client went away",
				slog.String("method", req.Method),
				slog.Any("error", err))
			return code
		}
	}
	return code
}
