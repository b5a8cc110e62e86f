// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEvents(t *testing.T) {
	stream := ": keep-alive\n\n" +
		"event: message\n" +
		"data: {\"a\":1}\n\n" +
		"id: 7\n" +
		"data: line one\n" +
		"data: line two\n\n" +
		"data:no-space\n" +
		"\n" +
		"data: trailing"

	var got []string
	for data, err := range readEvents(strings.NewReader(stream)) {
		require.NoError(t, err)
		got = append(got, string(data))
	}
	want := []string{
		`{"a":1}`,
		"line one\nline two",
		"no-space",
		"trailing",
	}
	assert.Equal(t, want, got)
}

func TestReadEvents_StopEarly(t *testing.T) {
	stream := "data: 1\n\ndata: 2\n\ndata: 3\n\n"

	var got []string
	for data, err := range readEvents(strings.NewReader(stream)) {
		require.NoError(t, err)
		got = append(got, string(data))
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"1", "2"}, got)
}
