// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package jsonrpc

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type metrics struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
}

func newMetrics(m metric.Meter) *metrics {
	var (
		ms  metrics
		err error
	)
	ms.requests, err = m.Int64Counter("a2a.rpc.requests",
		metric.WithDescription("Count of handled JSON-RPC requests"),
	)
	if err != nil {
		otel.Handle(err)
		ms.requests = noop.Int64Counter{}
	}

	ms.latency, err = m.Float64Histogram("a2a.rpc.duration",
		metric.WithDescription("Time to answer a JSON-RPC request, or to end its stream"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		otel.Handle(err)
		ms.latency = noop.Float64Histogram{}
	}
	return &ms
}

// record counts one request. code is 0 on success.
func (m *metrics) record(ctx context.Context, method string, code int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("rpc.method", method),
		attribute.Int("rpc.jsonrpc.error_code", code),
	)
	m.requests.Add(ctx, 1, attrs)
	m.latency.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
}
