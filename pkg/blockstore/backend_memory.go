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
	"io"
	"sync"
)

type memoryBackend struct {
	mu     sync.RWMutex
	blocks map[string][]byte
}

var _ backend = (*memoryBackend)(nil)

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		blocks: map[string][]byte{},
	}
}

func (m *memoryBackend) kind() string {
	return "Memory"
}

func (m *memoryBackend) address() string {
	return memoryPrefix
}

func (m *memoryBackend) open(key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, found := m.blocks[key]
	if !found {
		return nil, ErrNotFound
	}

	// Stored slices are never modified, readers can share them
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryBackend) stage() (stagedBlock, error) {
	return &memoryStagedBlock{m: m}, nil
}

func (m *memoryBackend) has(key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, found := m.blocks[key]
	return found, nil
}

func (m *memoryBackend) remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, found := m.blocks[key]; !found {
		return ErrNotFound
	}

	delete(m.blocks, key)
	return nil
}

type memoryStagedBlock struct {
	m   *memoryBackend
	buf bytes.Buffer
}

func (s *memoryStagedBlock) Write(b []byte) (int, error) {
	return s.buf.Write(b)
}

func (s *memoryStagedBlock) commit(key string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	// Same key means same content, keep the slice other readers may hold
	if _, found := s.m.blocks[key]; !found {
		s.m.blocks[key] = s.buf.Bytes()
	}
	return nil
}

func (s *memoryStagedBlock) discard() {
	s.buf = bytes.Buffer{}
}
