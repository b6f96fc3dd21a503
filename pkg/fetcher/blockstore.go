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

package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cinode/ipfs-inline/pkg/blockstore"
	"github.com/cinode/ipfs-inline/pkg/encoder"
	"github.com/cinode/ipfs-inline/pkg/unixfs"
	"github.com/ipfs/go-cid"
)

type blockStoreFetcher struct {
	bs        blockstore.DS
	chunkSize int
}

var _ ContentFetcher = (*blockStoreFetcher)(nil)

type blockStoreOption func(*blockStoreFetcher)

func BlockStoreOptionChunkSize(chunkSize int) blockStoreOption {
	return func(f *blockStoreFetcher) { f.chunkSize = chunkSize }
}

// FromBlockStore returns ContentFetcher reading blocks from a local block
// store. Identifiers must be bare CIDs, paths are not supported. Raw blocks
// are streamed as they are, dag-pb blocks must hold a single-block UnixFS
// file.
func FromBlockStore(bs blockstore.DS, options ...blockStoreOption) ContentFetcher {
	ret := &blockStoreFetcher{
		bs:        bs,
		chunkSize: encoder.DefaultChunkSize,
	}

	for _, o := range options {
		o(ret)
	}

	return ret
}

func (f *blockStoreFetcher) Kind() string {
	return "BlockStore(" + f.bs.Kind() + ")"
}

func (f *blockStoreFetcher) Retrieve(ctx context.Context, id string) (encoder.ByteStream, error) {
	if strings.Contains(id, "/") {
		return nil, fmt.Errorf("%w: '%s': paths are not supported by the block store", ErrInvalidIdentifier, id)
	}

	name, err := blockstore.ParseName(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIdentifier, err)
	}

	switch name.Type() {
	case cid.Raw, cid.DagProtobuf:
	default:
		return nil, fmt.Errorf("%w: '%s': unsupported codec 0x%x", ErrInvalidIdentifier, id, name.Type())
	}

	rc, err := f.bs.Open(ctx, name)
	if errors.Is(err, blockstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if err != nil {
		return nil, err
	}

	if name.Type() == cid.DagProtobuf {
		rc = unixfs.FileReader(rc)
	}

	return encoder.FromReader(rc, f.chunkSize), nil
}
