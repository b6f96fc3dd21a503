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
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cinode/ipfs-inline/pkg/sniffer"
)

var (
	ErrStreamReadFailure = errors.New("stream read failure")
	ErrPayloadTooLarge   = errors.New("payload too large")
)

type state int

const (
	stateAwaitingFirstChunk state = iota
	stateSniffing
	stateAccumulating
	stateFinalizing
	stateDone
	stateAborted
)

func (s state) String() string {
	switch s {
	case stateAwaitingFirstChunk:
		return "AwaitingFirstChunk"
	case stateSniffing:
		return "Sniffing"
	case stateAccumulating:
		return "Accumulating"
	case stateFinalizing:
		return "Finalizing"
	case stateDone:
		return "Done"
	case stateAborted:
		return "Aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Encoder turns byte streams with image data into inline data URIs
type Encoder struct {
	maxSize int
	log     *slog.Logger
}

type Option func(e *Encoder)

// WithMaxSize limits the number of bytes accepted from a single stream,
// 0 means no limit
func WithMaxSize(maxSize int) Option { return func(e *Encoder) { e.maxSize = maxSize } }

// WithLogger sets the logger receiving debug details of each encoding
func WithLogger(log *slog.Logger) Option { return func(e *Encoder) { e.log = log } }

// New returns an Encoder without size limit logging to slog.Default()
func New(opts ...Option) *Encoder {
	ret := &Encoder{
		log: slog.Default(),
	}
	for _, o := range opts {
		o(ret)
	}
	return ret
}

var defaultEncoder = New()

// Encode consumes the stream with the default encoder, see (*Encoder).Encode
func Encode(ctx context.Context, stream ByteStream) (string, error) {
	return defaultEncoder.Encode(ctx, stream)
}

// Encode consumes the whole stream and returns its content as a data URI.
//
// The media type is determined from the first bytes of the stream as soon
// as enough of them arrive. Content that is not a supported image format
// aborts the operation with sniffer.ErrUnrecognizedFormat. A failure to read
// from the stream results in an error wrapping ErrStreamReadFailure.
// No partial result is ever returned.
func (e *Encoder) Encode(ctx context.Context, stream ByteStream) (string, error) {
	var (
		buff     bytes.Buffer
		mimeType string
		st       = stateAwaitingFirstChunk
	)

	abort := func(err error) (string, error) {
		e.log.Debug("Encoding aborted",
			"state", st.String(),
			"bytesRead", buff.Len(),
			"err", err,
		)
		st = stateAborted
		return "", err
	}

	for chunk, err := range stream {
		if err != nil {
			return abort(fmt.Errorf("%w: %w", ErrStreamReadFailure, err))
		}
		if err := ctx.Err(); err != nil {
			return abort(fmt.Errorf("%w: %w", ErrStreamReadFailure, err))
		}

		if e.maxSize > 0 && buff.Len()+len(chunk) > e.maxSize {
			return abort(fmt.Errorf("%w: exceeds %d bytes", ErrPayloadTooLarge, e.maxSize))
		}
		buff.Write(chunk)

		if st == stateAwaitingFirstChunk && buff.Len() >= sniffer.SignatureLen {
			st = stateSniffing

			mt, err := sniffer.Classify(buff.Bytes())
			if err != nil {
				if hint := sniffer.Describe(buff.Bytes()); hint != "" {
					err = fmt.Errorf("%w (looks like %s)", err, hint)
				}
				return abort(err)
			}
			mimeType = mt
			st = stateAccumulating
		}
	}

	if st == stateAwaitingFirstChunk {
		return abort(fmt.Errorf(
			"%w: %w, got %d bytes",
			sniffer.ErrUnrecognizedFormat,
			sniffer.ErrPrefixTooShort,
			buff.Len(),
		))
	}

	st = stateFinalizing
	if err := ctx.Err(); err != nil {
		return abort(fmt.Errorf("%w: %w", ErrStreamReadFailure, err))
	}

	ret := DataURI(mimeType, buff.Bytes())
	st = stateDone

	e.log.Debug("Encoding finished",
		"state", st.String(),
		"mimeType", mimeType,
		"bytesRead", buff.Len(),
	)
	return ret, nil
}

// DataURI builds inline data URI for given media type and payload
func DataURI(mimeType string, payload []byte) string {
	return "data:" + mimeType + ";base64," + Base64(payload)
}

// Base64 returns RFC 4648 standard encoding of given bytes, including padding
func Base64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
