/*
Copyright © 2026 Bartłomiej Święcki (byo)

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package encoder

import (
	"errors"
	"io"
	"iter"
	"sync/atomic"
)

const DefaultChunkSize = 64 * 1024

var ErrStreamConsumed = errors.New("stream already consumed")

// ByteStream is a lazy, finite sequence of binary chunks.
//
// Each pair yields either a chunk of data or a non-nil error describing
// a failure to read the next chunk. The stream ends when the sequence ends.
// Streams are single-pass, consuming it more than once is an error.
//
// Chunks are only valid until the next iteration step, consumers that
// need to keep the data must copy it.
type ByteStream = iter.Seq2[[]byte, error]

// FromReader returns a ByteStream reading chunks of at most chunkSize bytes
// from given reader. The reader is closed once the iteration finishes,
// either by reaching EOF, by a read error or by the consumer stopping early.
func FromReader(rc io.ReadCloser, chunkSize int) ByteStream {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	consumed := atomic.Bool{}

	return func(yield func([]byte, error) bool) {
		if consumed.Swap(true) {
			yield(nil, ErrStreamConsumed)
			return
		}
		defer rc.Close()

		buff := make([]byte, chunkSize)
		for {
			n, err := rc.Read(buff)
			if n > 0 {
				if !yield(buff[:n], nil) {
					return
				}
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

// FromChunks returns a ByteStream yielding given chunks in order
func FromChunks(chunks ...[]byte) ByteStream {
	return func(yield func([]byte, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
	}
}
