// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"iter"
)

// maxEventSize bounds a single server-sent event.
const maxEventSize = 4 << 20

// readEvents yields the data payload of each server-sent event in r.
// Multi-line data fields are joined with newlines; comments, event names and
// ids are ignored.
func readEvents(r io.Reader) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64<<10), maxEventSize)

		var data []byte
		pending := false
		for sc.Scan() {
			line := sc.Bytes()
			if len(line) == 0 {
				if pending {
					if !yield(data, nil) {
						return
					}
					data, pending = nil, false
				}
				continue
			}

			field, value, _ := bytes.Cut(line, []byte(":"))
			if string(field) != "data" {
				continue
			}
			value = bytes.TrimPrefix(value, []byte(" "))
			if pending {
				data = append(data, '\n')
			}
			data = append(data, value...)
			pending = true
		}
		if err := sc.Err(); err != nil {
			yield(nil, fmt.Errorf("read event stream: %w", err))
			return
		}
		if pending {
			yield(data, nil)
		}
	}
}
