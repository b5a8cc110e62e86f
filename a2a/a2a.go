// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package a2a defines the entities exchanged between an agent and its callers:
// tasks, messages, artifacts, the task events that flow through an event queue,
// push notification configs and the error taxonomy.
package a2a

// ProtocolVersion is the version of the A2A protocol advertised in agent cards.
const ProtocolVersion = "0.3.0"
