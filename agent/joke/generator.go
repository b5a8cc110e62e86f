// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package joke

import (
	"context"
	"iter"
	"time"
)

// Chunk is one partial result of a [Generator].
type Chunk struct {
	Content string
	// IsTaskComplete marks the last chunk of a successful run.
	IsTaskComplete bool
	// RequireUserInput asks the caller for more input; Content holds the question.
	RequireUserInput bool
}

// Generator produces the chunks answering query. The sequence is finite and
// can be ranged over once. Generation stops when ctx is done, in which case
// the sequence ends with ctx's error.
//
// sessionID groups calls belonging to the same conversation.
type Generator interface {
	Stream(ctx context.Context, query, sessionID string) iter.Seq2[Chunk, error]
}

// ScriptedGenerator replays a fixed script. It backs offline mode and tests.
type ScriptedGenerator struct {
	Chunks []Chunk
	// Err, when set, is yielded after Chunks instead of finishing.
	Err error
	// Delay is waited before each chunk.
	Delay time.Duration
}

var _ Generator = (*ScriptedGenerator)(nil)

// NewOfflineGenerator returns a generator telling the same joke every time.
func NewOfflineGenerator() *ScriptedGenerator {
	return &ScriptedGenerator{
		Chunks: []Chunk{
			{Content: "Why do Go programmers prefer dark mode? "},
			{Content: "Because light attracts bugs."},
			{IsTaskComplete: true},
		},
	}
}

// Stream implements [Generator].
func (g *ScriptedGenerator) Stream(ctx context.Context, _, _ string) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		for _, c := range g.Chunks {
			if err := g.wait(ctx); err != nil {
				yield(Chunk{}, err)
				return
			}
			if !yield(c, nil) {
				return
			}
		}
		if g.Err != nil {
			yield(Chunk{}, g.Err)
		}
	}
}

func (g *ScriptedGenerator) wait(ctx context.Context) error {
	if g.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(g.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
