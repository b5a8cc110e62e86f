// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/go-a2a/jokeagent/a2a"
)

// CardResolver fetches agent cards from an agent's base URL.
type CardResolver struct {
	hc      *http.Client
	baseURL string
}

// NewCardResolver returns a resolver for the agent at baseURL. A nil hc
// uses [http.DefaultClient].
func NewCardResolver(baseURL string, hc *http.Client) *CardResolver {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &CardResolver{
		hc:      hc,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// GetAgentCard fetches the card at relativeCardPath. An empty path tries the
// well-known location and then the legacy one.
func (r *CardResolver) GetAgentCard(ctx context.Context, relativeCardPath string) (*a2a.AgentCard, error) {
	if relativeCardPath != "" {
		card, _, err := r.fetch(ctx, relativeCardPath)
		return card, err
	}

	card, status, err := r.fetch(ctx, a2a.AgentCardWellKnownPath)
	if status == http.StatusNotFound {
		card, _, err = r.fetch(ctx, a2a.LegacyAgentCardWellKnownPath)
	}
	return card, err
}

func (r *CardResolver) fetch(ctx context.Context, path string) (*a2a.AgentCard, int, error) {
	targetURL := r.baseURL + "/" + strings.TrimLeft(path, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, http.NoBody)
	if err != nil {
		return nil, 0, err
	}
	resp, err := r.hc.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch agent card: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, fmt.Errorf("fetch agent card from %s: %s", targetURL, resp.Status)
	}

	var agentCard a2a.AgentCard
	dec := jsontext.NewDecoder(resp.Body)
	if err := json.UnmarshalDecode(dec, &agentCard); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode agent card: %w", err)
	}
	return &agentCard, resp.StatusCode, nil
}
