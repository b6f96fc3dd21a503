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

package fetcher_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cinode/ipfs-inline/pkg/blockstore"
	"github.com/cinode/ipfs-inline/pkg/encoder"
	"github.com/cinode/ipfs-inline/pkg/fetcher"
	"github.com/cinode/ipfs-inline/pkg/unixfs"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"
)

var pngData = append(
	[]byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a},
	bytes.Repeat([]byte{0x01, 0x02, 0x03}, 100)...,
)

func collect(t *testing.T, stream encoder.ByteStream) ([]byte, error) {
	t.Helper()

	var ret []byte
	for chunk, err := range stream {
		if err != nil {
			return ret, err
		}
		ret = append(ret, chunk...)
	}
	return ret, nil
}

func TestGatewayFetcher(t *testing.T) {
	bs := blockstore.InMemory()
	name, err := blockstore.Add(context.Background(), bs, pngData)
	require.NoError(t, err)
	missing, err := blockstore.NameFromData([]byte("missing"))
	require.NoError(t, err)

	server := httptest.NewServer(blockstore.WebInterface(bs))
	defer server.Close()

	f, err := fetcher.FromGateway(server.URL, fetcher.GatewayOptionChunkSize(16))
	require.NoError(t, err)
	require.Equal(t, "Gateway", f.Kind())

	t.Run("retrieve existing content", func(t *testing.T) {
		stream, err := f.Retrieve(context.Background(), name.String())
		require.NoError(t, err)

		chunks := 0
		var data []byte
		for chunk, err := range stream {
			require.NoError(t, err)
			require.LessOrEqual(t, len(chunk), 16)
			data = append(data, chunk...)
			chunks++
		}
		require.Equal(t, pngData, data)
		require.Greater(t, chunks, 1)
	})

	t.Run("retrieve missing content", func(t *testing.T) {
		stream, err := f.Retrieve(context.Background(), missing.String())
		require.ErrorIs(t, err, fetcher.ErrNotFound)
		require.Nil(t, stream)
	})

	t.Run("invalid identifier", func(t *testing.T) {
		for _, id := range []string{"", "not-a-cid", "/" + name.String()} {
			stream, err := f.Retrieve(context.Background(), id)
			require.ErrorIs(t, err, fetcher.ErrInvalidIdentifier)
			require.Nil(t, stream)
		}
	})
}

func TestGatewayFetcherServerErrors(t *testing.T) {
	name, err := blockstore.NameFromData(pngData)
	require.NoError(t, err)

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		f, err := fetcher.FromGateway(server.URL)
		require.NoError(t, err)

		stream, err := f.Retrieve(context.Background(), name.String())
		require.ErrorIs(t, err, fetcher.ErrNetworkError)
		require.ErrorContains(t, err, "503")
		require.Nil(t, stream)
	})

	t.Run("connection failure", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		f, err := fetcher.FromGateway(url)
		require.NoError(t, err)

		stream, err := f.Retrieve(context.Background(), name.String())
		require.ErrorIs(t, err, fetcher.ErrNetworkError)
		require.Nil(t, stream)
	})

	t.Run("tampered content", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(append([]byte{}, pngData[:len(pngData)-1]...))
		}))
		defer server.Close()

		f, err := fetcher.FromGateway(server.URL)
		require.NoError(t, err)

		stream, err := f.Retrieve(context.Background(), name.String())
		require.NoError(t, err)

		_, err = collect(t, stream)
		require.ErrorIs(t, err, blockstore.ErrValidationFailed)
	})

	t.Run("paths are not verified", func(t *testing.T) {
		var requestedPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestedPath = r.URL.Path
			w.Write([]byte("GIF89a"))
		}))
		defer server.Close()

		f, err := fetcher.FromGateway(server.URL + "/")
		require.NoError(t, err)

		stream, err := f.Retrieve(context.Background(), name.String()+"/img/cat.gif")
		require.NoError(t, err)

		data, err := collect(t, stream)
		require.NoError(t, err)
		require.Equal(t, []byte("GIF89a"), data)
		require.Equal(t, "/ipfs/"+name.String()+"/img/cat.gif", requestedPath)
	})
}

func TestGatewayFetcherOptions(t *testing.T) {
	name, err := blockstore.NameFromData(pngData)
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Write(pngData)
	}))
	defer server.Close()

	t.Run("customize request", func(t *testing.T) {
		f, err := fetcher.FromGateway(server.URL,
			fetcher.GatewayOptionHttpClient(server.Client()),
			fetcher.GatewayOptionCustomizeRequest(func(r *http.Request) error {
				r.Header.Set("Authorization", "Bearer token")
				return nil
			}),
		)
		require.NoError(t, err)

		stream, err := f.Retrieve(context.Background(), name.String())
		require.NoError(t, err)
		data, err := collect(t, stream)
		require.NoError(t, err)
		require.Equal(t, pngData, data)
	})

	t.Run("customize request failure", func(t *testing.T) {
		injected := errors.New("no credentials")
		f, err := fetcher.FromGateway(server.URL,
			fetcher.GatewayOptionCustomizeRequest(func(r *http.Request) error {
				return injected
			}),
		)
		require.NoError(t, err)

		stream, err := f.Retrieve(context.Background(), name.String())
		require.ErrorIs(t, err, injected)
		require.Nil(t, stream)
	})

	t.Run("unauthorized", func(t *testing.T) {
		f, err := fetcher.FromGateway(server.URL)
		require.NoError(t, err)

		stream, err := f.Retrieve(context.Background(), name.String())
		require.ErrorIs(t, err, fetcher.ErrNetworkError)
		require.Nil(t, stream)
	})

	t.Run("invalid url", func(t *testing.T) {
		for _, u := range []string{"ftp://gateway", "://invalid"} {
			f, err := fetcher.FromGateway(u)
			require.Error(t, err)
			require.Nil(t, f)
		}
	})
}

func TestBlockStoreFetcher(t *testing.T) {
	bs := blockstore.InMemory()
	name, err := blockstore.Add(context.Background(), bs, pngData)
	require.NoError(t, err)
	missing, err := blockstore.NameFromData([]byte("missing"))
	require.NoError(t, err)

	f := fetcher.FromBlockStore(bs, fetcher.BlockStoreOptionChunkSize(10))
	require.Equal(t, "BlockStore(Memory)", f.Kind())

	t.Run("existing", func(t *testing.T) {
		stream, err := f.Retrieve(context.Background(), name.String())
		require.NoError(t, err)
		data, err := collect(t, stream)
		require.NoError(t, err)
		require.Equal(t, pngData, data)
	})

	t.Run("missing", func(t *testing.T) {
		stream, err := f.Retrieve(context.Background(), missing.String())
		require.ErrorIs(t, err, fetcher.ErrNotFound)
		require.ErrorIs(t, err, blockstore.ErrNotFound)
		require.Nil(t, stream)
	})

	t.Run("invalid", func(t *testing.T) {
		for _, id := range []string{
			"not-a-cid",
			name.String() + "/file.png",
			cid.NewCidV1(cid.DagCBOR, name.Hash()).String(),
		} {
			stream, err := f.Retrieve(context.Background(), id)
			require.ErrorIs(t, err, fetcher.ErrInvalidIdentifier)
			require.Nil(t, stream)
		}
	})

	t.Run("unixfs file", func(t *testing.T) {
		fileName, err := blockstore.AddFile(context.Background(), bs, pngData)
		require.NoError(t, err)
		require.EqualValues(t, 0, fileName.Version())
		require.Equal(t, "Qm", fileName.String()[:2])

		stream, err := f.Retrieve(context.Background(), fileName.String())
		require.NoError(t, err)
		data, err := collect(t, stream)
		require.NoError(t, err)
		require.Equal(t, pngData, data)
	})

	t.Run("CIDv0 of raw data", func(t *testing.T) {
		// Same multihash as the raw block, the stored bytes are not a dag-pb node
		v0 := cid.NewCidV0(name.Hash())

		stream, err := f.Retrieve(context.Background(), v0.String())
		require.NoError(t, err)
		data, err := collect(t, stream)
		require.ErrorIs(t, err, unixfs.ErrInvalidNode)
		require.Empty(t, data)
	})
}

type mockFetcher struct {
	kind  string
	data  []byte
	err   error
	calls int
}

func (m *mockFetcher) Kind() string { return m.kind }

func (m *mockFetcher) Retrieve(ctx context.Context, id string) (encoder.ByteStream, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return encoder.FromReader(io.NopCloser(bytes.NewReader(m.data)), 0), nil
}

func TestMultiSource(t *testing.T) {
	t.Run("main source first", func(t *testing.T) {
		main := &mockFetcher{kind: "main", data: []byte("main")}
		additional := &mockFetcher{kind: "additional", data: []byte("additional")}

		f := fetcher.NewMultiSource(main, []fetcher.ContentFetcher{additional})
		require.Equal(t, "MultiSource", f.Kind())

		stream, err := f.Retrieve(context.Background(), "id")
		require.NoError(t, err)
		data, err := collect(t, stream)
		require.NoError(t, err)
		require.Equal(t, []byte("main"), data)
		require.Zero(t, additional.calls)
	})

	t.Run("fallback", func(t *testing.T) {
		main := &mockFetcher{kind: "main", err: fetcher.ErrNotFound}
		failing := &mockFetcher{kind: "failing", err: fetcher.ErrNetworkError}
		additional := &mockFetcher{kind: "additional", data: []byte("additional")}

		f := fetcher.NewMultiSource(main, []fetcher.ContentFetcher{failing, additional})

		stream, err := f.Retrieve(context.Background(), "id")
		require.NoError(t, err)
		data, err := collect(t, stream)
		require.NoError(t, err)
		require.Equal(t, []byte("additional"), data)
		require.Equal(t, 1, main.calls)
		require.Equal(t, 1, failing.calls)
	})

	t.Run("not found anywhere", func(t *testing.T) {
		main := &mockFetcher{kind: "main", err: fetcher.ErrNotFound}
		additional := &mockFetcher{kind: "additional", err: fetcher.ErrNetworkError}

		f := fetcher.NewMultiSource(main, []fetcher.ContentFetcher{additional})

		stream, err := f.Retrieve(context.Background(), "id")
		require.ErrorIs(t, err, fetcher.ErrNotFound)
		require.ErrorIs(t, err, fetcher.ErrNetworkError)
		require.Nil(t, stream)
	})

	t.Run("invalid identifier is final", func(t *testing.T) {
		main := &mockFetcher{kind: "main", err: fetcher.ErrInvalidIdentifier}
		additional := &mockFetcher{kind: "additional", data: []byte("additional")}

		f := fetcher.NewMultiSource(main, []fetcher.ContentFetcher{additional})

		stream, err := f.Retrieve(context.Background(), "id")
		require.ErrorIs(t, err, fetcher.ErrInvalidIdentifier)
		require.Nil(t, stream)
		require.Zero(t, additional.calls)
	})
}

func TestFromLocation(t *testing.T) {
	for _, d := range []struct {
		location string
		kind     string
	}{
		{"https://ipfs.io", "Gateway"},
		{"http://127.0.0.1:8080", "Gateway"},
		{"memory://", "BlockStore(Memory)"},
		{"file://" + t.TempDir(), "BlockStore(FileSystem)"},
		{t.TempDir(), "BlockStore(FileSystem)"},
	} {
		t.Run(d.location, func(t *testing.T) {
			f, err := fetcher.FromLocation(d.location)
			require.NoError(t, err)
			require.Equal(t, d.kind, f.Kind())
		})
	}

	t.Run("invalid", func(t *testing.T) {
		f, err := fetcher.FromLocation("memory://invalid")
		require.ErrorIs(t, err, blockstore.ErrInvalidMemoryLocation)
		require.Nil(t, f)
	})
}
