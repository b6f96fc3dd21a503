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
	"bytes"
	"context"
	"crypto/sha256"
	"io"

	"github.com/cinode/ipfs-inline/pkg/internal/utilities/validatingreader"
	"github.com/cinode/ipfs-inline/pkg/unixfs"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// backend keeps blocks that were already verified against their names.
//
// Keys are derived from the multihash only (see blockKey), two writes under
// the same key always carry the same bytes. Because of that concurrent
// writes of the same block need no coordination, the last commit wins.
type backend interface {
	kind() string
	address() string
	open(key string) (io.ReadCloser, error)
	stage() (stagedBlock, error)
	has(key string) (bool, error)
	remove(key string) error
}

// stagedBlock collects data of a block being added. The data is not visible
// in the store until it is committed under a key.
type stagedBlock interface {
	io.Writer
	commit(key string) error
	discard()
}

type datastore struct {
	b backend
}

var _ DS = (*datastore)(nil)

func (ds *datastore) Kind() string {
	return ds.b.kind()
}

func (ds *datastore) Address() string {
	return ds.b.address()
}

func (ds *datastore) Open(ctx context.Context, name cid.Cid) (io.ReadCloser, error) {
	key, digest, err := blockKey(name)
	if err != nil {
		return nil, err
	}

	rc, err := ds.b.open(key)
	if err != nil {
		return nil, err
	}

	// Stored data is checked again, files on disk may get corrupted
	return validatingreader.NewHashValidation(rc, sha256.New(), digest, ErrValidationFailed), nil
}

func (ds *datastore) Put(ctx context.Context, name cid.Cid, r io.Reader) error {
	key, digest, err := blockKey(name)
	if err != nil {
		return err
	}

	staged, err := ds.b.stage()
	if err != nil {
		return err
	}

	hasher := sha256.New()
	_, err = io.Copy(io.MultiWriter(staged, hasher), r)
	if err != nil {
		staged.discard()
		return err
	}

	if !bytes.Equal(digest, hasher.Sum(nil)) {
		staged.discard()
		return ErrValidationFailed
	}

	if err := ctx.Err(); err != nil {
		staged.discard()
		return err
	}

	return staged.commit(key)
}

func (ds *datastore) Exists(ctx context.Context, name cid.Cid) (bool, error) {
	key, _, err := blockKey(name)
	if err != nil {
		return false, err
	}
	return ds.b.has(key)
}

func (ds *datastore) Delete(ctx context.Context, name cid.Cid) error {
	key, _, err := blockKey(name)
	if err != nil {
		return err
	}
	return ds.b.remove(key)
}

// Add stores given data as a raw block and returns its CIDv1
func Add(ctx context.Context, ds DS, data []byte) (cid.Cid, error) {
	name, err := NameFromData(data)
	if err != nil {
		return cid.Undef, err
	}

	err = ds.Put(ctx, name, bytes.NewReader(data))
	if err != nil {
		return cid.Undef, err
	}

	return name, nil
}

// AddFile stores given data as a single-block UnixFS file and returns its
// CIDv0, the same one `ipfs add` would report
func AddFile(ctx context.Context, ds DS, data []byte) (cid.Cid, error) {
	node, err := unixfs.Encode(data)
	if err != nil {
		return cid.Undef, err
	}

	mh, err := multihash.Sum(node, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	name := cid.NewCidV0(mh)

	err = ds.Put(ctx, name, bytes.NewReader(node))
	if err != nil {
		return cid.Undef, err
	}

	return name, nil
}

// InMemory returns a block store keeping all data in memory
func InMemory() DS {
	return &datastore{b: newMemoryBackend()}
}

// InFileSystem returns a block store keeping data in files under given path
func InFileSystem(path string) DS {
	return &datastore{b: newFileSystemBackend(path)}
}
