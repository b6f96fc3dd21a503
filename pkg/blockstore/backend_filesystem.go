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
	"errors"
	"io"
	"os"
	"path/filepath"
)

const fsStagingDir = ".staging"

// fileSystemBackend keeps one file per block:
//
//	<path>/<shard>/<key>        committed blocks
//	<path>/.staging/block-*     blocks being added
//
// The shard is made of the next-to-last two characters of the key, the same
// scheme the flatfs IPFS datastore uses. Leading characters would not work
// since all sha2-256 keys start with "Qm".
type fileSystemBackend struct {
	path string
}

var _ backend = (*fileSystemBackend)(nil)

func newFileSystemBackend(path string) *fileSystemBackend {
	return &fileSystemBackend{
		path: path,
	}
}

func (b *fileSystemBackend) kind() string {
	return "FileSystem"
}

func (b *fileSystemBackend) address() string {
	return filePrefix + b.path
}

func (b *fileSystemBackend) blockPath(key string) string {
	if len(key) < 3 {
		return filepath.Join(b.path, key)
	}
	return filepath.Join(b.path, key[len(key)-3:len(key)-1], key)
}

func (b *fileSystemBackend) open(key string) (io.ReadCloser, error) {
	fh, err := os.Open(b.blockPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fh, nil
}

func (b *fileSystemBackend) stage() (stagedBlock, error) {
	dir := filepath.Join(b.path, fsStagingDir)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, err
	}

	fh, err := os.CreateTemp(dir, "block-*")
	if err != nil {
		return nil, err
	}

	return &fileSystemStagedBlock{b: b, fh: fh}, nil
}

func (b *fileSystemBackend) has(key string) (bool, error) {
	_, err := os.Stat(b.blockPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *fileSystemBackend) remove(key string) error {
	err := os.Remove(b.blockPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

type fileSystemStagedBlock struct {
	b  *fileSystemBackend
	fh *os.File
}

func (s *fileSystemStagedBlock) Write(b []byte) (int, error) {
	return s.fh.Write(b)
}

func (s *fileSystemStagedBlock) commit(key string) error {
	err := s.fh.Close()
	if err != nil {
		os.Remove(s.fh.Name())
		return err
	}

	dest := s.b.blockPath(key)
	err = os.MkdirAll(filepath.Dir(dest), 0755)
	if err != nil {
		os.Remove(s.fh.Name())
		return err
	}

	// Rename is atomic, readers see either no block or the complete one
	err = os.Rename(s.fh.Name(), dest)
	if err != nil {
		os.Remove(s.fh.Name())
		return err
	}
	return nil
}

func (s *fileSystemStagedBlock) discard() {
	s.fh.Close()
	os.Remove(s.fh.Name())
}
