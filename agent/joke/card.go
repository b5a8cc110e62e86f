// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package joke

import "github.com/go-a2a/jokeagent/a2a"

// SupportedContentTypes are the input and output modes of the agent.
var SupportedContentTypes = []string{"text", "text/plain"}

// AgentCard describes the joke agent served at url.
func AgentCard(url string) *a2a.AgentCard {
	return &a2a.AgentCard{
		Name:            "Joke Agent",
		Description:     "AI system designed to generate or deliver humor",
		URL:             url,
		Version:         "1.0.0",
		ProtocolVersion: a2a.ProtocolVersion,
		Capabilities: a2a.AgentCapabilities{
			Streaming:         true,
			PushNotifications: true,
		},
		DefaultInputModes:  SupportedContentTypes,
		DefaultOutputModes: SupportedContentTypes,
		Skills: []a2a.AgentSkill{{
			ID:          "say_joke",
			Name:        "Joke Generator",
			Description: "AI system designed to generate or deliver humor",
			Tags:        []string{"joke", "humor", "entertainment", "funny", "comedy"},
			Examples: []string{
				"Craft a joke about caffeine",
				"Create a joke about the first time someone used a smartphone",
			},
		}},
	}
}
