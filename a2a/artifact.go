// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"maps"
	"slices"

	"github.com/google/uuid"
)

// Artifact is a named, ordered bundle of output content produced by a task.
type Artifact struct {
	ArtifactID  string         `json:"artifactId"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Parts       Parts          `json:"parts"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewTextArtifact returns an artifact holding a single text part.
func NewTextArtifact(name, text string) *Artifact {
	return &Artifact{
		ArtifactID: uuid.NewString(),
		Name:       name,
		Parts:      Parts{NewTextPart(text)},
	}
}

// Clone returns a copy of a whose parts slice can be extended independently.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	c := *a
	c.Parts = slices.Clone(a.Parts)
	c.Metadata = maps.Clone(a.Metadata)
	return &c
}
