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

// Package unixfs reads and writes files stored in a single dag-pb block,
// the form `ipfs add` produces for files fitting in one chunk.
package unixfs

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	// MaxFileSize is the default chunk size of IPFS, larger files are
	// split into multiple blocks
	MaxFileSize = 256 * 1024

	// MaxNodeSize is the largest block accepted by bitswap
	MaxNodeSize = 2 * 1024 * 1024
)

var (
	ErrInvalidNode = errors.New("invalid dag-pb node")
	ErrNotAFile    = errors.New("unixfs node is not a file")
	ErrMultiBlock  = errors.New("multi-block files are not supported")
	ErrTooLarge    = fmt.Errorf("file does not fit in a single %d byte block", MaxFileSize)
)

// dag-pb PBNode fields
const (
	pbNodeData  protowire.Number = 1
	pbNodeLinks protowire.Number = 2
)

// UnixFS Data fields, the ones not listed here are skipped
const (
	fsDataType     protowire.Number = 1
	fsDataData     protowire.Number = 2
	fsDataFileSize protowire.Number = 3
)

const (
	typeRaw  = 0
	typeFile = 2
)

// Encode wraps file content in a dag-pb node the same way `ipfs add` does
// with default settings
func Encode(data []byte) ([]byte, error) {
	if len(data) > MaxFileSize {
		return nil, ErrTooLarge
	}

	fsData := protowire.AppendTag(nil, fsDataType, protowire.VarintType)
	fsData = protowire.AppendVarint(fsData, typeFile)
	if len(data) > 0 {
		fsData = protowire.AppendTag(fsData, fsDataData, protowire.BytesType)
		fsData = protowire.AppendBytes(fsData, data)
	}
	fsData = protowire.AppendTag(fsData, fsDataFileSize, protowire.VarintType)
	fsData = protowire.AppendVarint(fsData, uint64(len(data)))

	node := protowire.AppendTag(nil, pbNodeData, protowire.BytesType)
	return protowire.AppendBytes(node, fsData), nil
}

func invalidNode(msg string, n int) error {
	return fmt.Errorf("%w: %s: %w", ErrInvalidNode, msg, protowire.ParseError(n))
}

// Decode extracts file content from a dag-pb node
func Decode(node []byte) ([]byte, error) {
	var (
		fsData    []byte
		foundData bool
		hasLinks  bool
	)

	for b := node; len(b) > 0; {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, invalidNode("tag", n)
		}
		b = b[n:]

		if typ != protowire.BytesType || (num != pbNodeData && num != pbNodeLinks) {
			return nil, fmt.Errorf("%w: unexpected field %d", ErrInvalidNode, num)
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, invalidNode("field value", n)
		}
		b = b[n:]

		if num == pbNodeLinks {
			hasLinks = true
		} else {
			fsData, foundData = v, true
		}
	}

	if !foundData {
		return nil, fmt.Errorf("%w: missing unixfs data", ErrInvalidNode)
	}

	fileType, data, err := decodeFSData(fsData)
	if err != nil {
		return nil, err
	}

	if fileType != typeFile && fileType != typeRaw {
		return nil, fmt.Errorf("%w: type %d", ErrNotAFile, fileType)
	}
	if hasLinks {
		return nil, ErrMultiBlock
	}

	return data, nil
}

func decodeFSData(b []byte) (uint64, []byte, error) {
	var (
		fileType  uint64
		foundType bool
		data      []byte
	)

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, nil, invalidNode("unixfs tag", n)
		}
		b = b[n:]

		switch {
		case num == fsDataType && typ == protowire.VarintType:
			fileType, n = protowire.ConsumeVarint(b)
			foundType = true
		case num == fsDataData && typ == protowire.BytesType:
			data, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return 0, nil, invalidNode("unixfs field value", n)
		}
		b = b[n:]
	}

	if !foundType {
		return 0, nil, fmt.Errorf("%w: missing unixfs type", ErrInvalidNode)
	}

	return fileType, data, nil
}

type fileReader struct {
	rc   io.ReadCloser
	data *bytes.Reader
	err  error
}

// FileReader returns the content of a file stored in the dag-pb node read
// from rc. The node is read and decoded on the first Read call.
func FileReader(rc io.ReadCloser) io.ReadCloser {
	return &fileReader{rc: rc}
}

func (r *fileReader) Read(b []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}

	if r.data == nil {
		node, err := io.ReadAll(io.LimitReader(r.rc, MaxNodeSize+1))
		if err == nil && len(node) > MaxNodeSize {
			err = fmt.Errorf("%w: larger than %d bytes", ErrInvalidNode, MaxNodeSize)
		}
		if err != nil {
			r.err = err
			return 0, err
		}

		data, err := Decode(node)
		if err != nil {
			r.err = err
			return 0, err
		}
		r.data = bytes.NewReader(data)
	}

	return r.data.Read(b)
}

func (r *fileReader) Close() error {
	return r.rc.Close()
}
