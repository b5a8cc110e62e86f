// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent_execution

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

// CallContext carries transport level information about the call that
// started an invocation, such as the remote address. It is safe for
// concurrent use.
type CallContext struct {
	mu    sync.RWMutex
	state map[string]any
}

// NewCallContext returns a CallContext holding a copy of state.
func NewCallContext(state map[string]any) *CallContext {
	cc := &CallContext{state: make(map[string]any, len(state))}
	maps.Copy(cc.state, state)
	return cc
}

// State returns a copy of the current state map.
func (cc *CallContext) State() map[string]any {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return maps.Clone(cc.state)
}

// SetState sets a value in the state.
func (cc *CallContext) SetState(key string, value any) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.state[key] = value
}

// GetState retrieves a value from the state.
func (cc *CallContext) GetState(key string) (any, bool) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	v, ok := cc.state[key]
	return v, ok
}

// String implements [fmt.Stringer].
func (cc *CallContext) String() string {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return fmt.Sprintf("CallContext{state_keys: %d}", len(cc.state))
}

type callContextKey struct{}

// WithCallContext returns a copy of ctx carrying cc.
func WithCallContext(ctx context.Context, cc *CallContext) context.Context {
	return context.WithValue(ctx, callContextKey{}, cc)
}

// CallContextFrom returns the CallContext carried by ctx, or an empty one.
func CallContextFrom(ctx context.Context) *CallContext {
	if cc, ok := ctx.Value(callContextKey{}).(*CallContext); ok && cc != nil {
		return cc
	}
	return NewCallContext(nil)
}
