// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package pool provides typed object pooling for the buffers used to encode
// wire payloads.
package pool

import (
	"bytes"
	"strings"
	"sync"
)

// maxRetained is the largest buffer capacity returned to a pool.
const maxRetained = 64 << 10

// Pool is a strongly typed wrapper around [sync.Pool].
type Pool[T any] struct {
	p      sync.Pool
	retain func(T) bool
}

// Resetter is implemented by pooled values that must be cleared before reuse.
type Resetter interface {
	Reset()
}

// New returns a new [Pool] that uses fn to construct values when the pool is empty.
func New[T any](fn func() T) *Pool[T] {
	return &Pool[T]{
		p: sync.Pool{
			New: func() any { return fn() },
		},
	}
}

// Get gets a T from the pool, or creates a new one if the pool is empty.
func (p *Pool[T]) Get() T {
	return p.p.Get().(T)
}

// Put resets x and returns it to the pool.
func (p *Pool[T]) Put(x T) {
	if p.retain != nil && !p.retain(x) {
		return
	}
	if r, ok := any(x).(Resetter); ok {
		r.Reset()
	}
	p.p.Put(x)
}

// Bytes pools [*bytes.Buffer] values.
var Bytes = &Pool[*bytes.Buffer]{
	p: sync.Pool{
		New: func() any { return new(bytes.Buffer) },
	},
	retain: func(b *bytes.Buffer) bool { return b.Cap() <= maxRetained },
}

// String pools [*strings.Builder] values.
var String = &Pool[*strings.Builder]{
	p: sync.Pool{
		New: func() any { return new(strings.Builder) },
	},
	retain: func(b *strings.Builder) bool { return b.Cap() <= maxRetained },
}
