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

package blockstore

import (
	"context"
	"errors"
	"io"

	"github.com/ipfs/go-cid"
)

var (
	// ErrNotFound will be used when block with given name was not found in the store
	ErrNotFound = errors.New("not found")

	ErrValidationFailed = errors.New("block data validation failed")
	ErrInvalidName      = errors.New("invalid block name")
	ErrUnsupportedHash  = errors.New("unsupported multihash function")
)

// DS interface contains the public interface of a local block store
//
// Blocks are immutable chunks of data addressed by their CID. The multihash
// embedded in the CID is used to perform cryptographic verification of block
// data, both when the block is written and when it is read back. The codec
// of the CID is not interpreted, blocks are treated as opaque byte streams.
// Two CIDs with the same multihash refer to the same block.
type DS interface {

	// Kind returns string representation of the store kind (i.e. "Memory")
	Kind() string

	// Address returns the location string that can be used to recreate the store
	Address() string

	// Open returns a read stream for given block or an error. In case block
	// is not found in the store, returned error must be of ErrNotFound type.
	//
	// Data is validated against the name while reading, invalid data is
	// reported by the Read method returning ErrValidationFailed once the whole
	// block is read.
	//
	// If a non-nil error is returned, the reader will be nil. Otherwise it
	// is necessary to call the `Close` on the returned reader once done
	// with the reader.
	Open(ctx context.Context, name cid.Cid) (io.ReadCloser, error)

	// Put stores block data under given name. The data is read from given
	// reader until it returns either EOF, ending successful save, or any other
	// error which will cancel the save - in such case this error will be
	// returned from this function. If the data does not match the name,
	// ErrValidationFailed will be returned and nothing is stored.
	//
	// Concurrent puts of the same block are allowed, the block becomes
	// visible once the first of them completes.
	Put(ctx context.Context, name cid.Cid, r io.Reader) error

	// Exists does check whether block of given name exists in the store.
	// Partially written blocks are equal to non-existing ones.
	Exists(ctx context.Context, name cid.Cid) (bool, error)

	// Delete tries to remove block with given name from the store.
	// If block does not exist (which includes partially written blocks)
	// ErrNotFound will be returned.
	Delete(ctx context.Context, name cid.Cid) error
}
