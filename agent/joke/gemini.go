// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package joke

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-1.5-flash"

const systemInstruction = "You are an assistant that tells jokes."

// GeminiConfig configures a [GeminiGenerator].
type GeminiConfig struct {
	APIKey string
	Model  string
	// Options are passed to the genai client after the API key.
	Options []option.ClientOption
}

// GeminiGenerator streams jokes from a Gemini model. Every session id gets
// its own chat, so follow-up requests in a context see the earlier turns.
type GeminiGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel

	mu       sync.Mutex
	sessions map[string]*chatSession
}

type chatSession struct {
	mu   sync.Mutex
	chat *genai.ChatSession
}

var _ Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator connects to the Gemini API.
func NewGeminiGenerator(ctx context.Context, config GeminiConfig) (*GeminiGenerator, error) {
	if config.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}

	opts := append([]option.ClientOption{option.WithAPIKey(config.APIKey)}, config.Options...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	model := client.GenerativeModel(config.Model)
	model.SetTemperature(0)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemInstruction)}}

	return &GeminiGenerator{
		client:   client,
		model:    model,
		sessions: make(map[string]*chatSession),
	}, nil
}

func (g *GeminiGenerator) session(id string) *chatSession {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.sessions[id]
	if !ok {
		s = &chatSession{chat: g.model.StartChat()}
		g.sessions[id] = s
	}
	return s
}

// Forget drops the conversation of sessionID.
func (g *GeminiGenerator) Forget(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, sessionID)
}

// Stream implements [Generator].
func (g *GeminiGenerator) Stream(ctx context.Context, query, sessionID string) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		s := g.session(sessionID)
		s.mu.Lock()
		defer s.mu.Unlock()

		it := s.chat.SendMessageStream(ctx, genai.Text(query))
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = ctxErr
				}
				yield(Chunk{}, fmt.Errorf("gemini: %w", err))
				return
			}
			if text := responseText(resp); text != "" {
				if !yield(Chunk{Content: text}, nil) {
					return
				}
			}
		}
		yield(Chunk{IsTaskComplete: true}, nil)
	}
}

// Close releases the client.
func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text string
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				text += string(t)
			}
		}
	}
	return text
}
