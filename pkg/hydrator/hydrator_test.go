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

package hydrator_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cinode/ipfs-inline/pkg/blockstore"
	"github.com/cinode/ipfs-inline/pkg/dom"
	"github.com/cinode/ipfs-inline/pkg/encoder"
	"github.com/cinode/ipfs-inline/pkg/fetcher"
	"github.com/cinode/ipfs-inline/pkg/hydrator"
	"github.com/cinode/ipfs-inline/pkg/sniffer"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

var (
	pngData  = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
	gifData  = []byte("GIF89a")
	jpegData = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}
	textData = []byte("plain text")
)

func dataURI(mimeType string, data []byte) string {
	return encoder.DataURI(mimeType, data)
}

type mockFetcher struct {
	mu       sync.Mutex
	contents map[string][]byte
	errs     map[string]error
	delay    time.Duration

	// streamErrs break the stream right after the content is yielded
	streamErrs map[string]error
	calls    []string

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (m *mockFetcher) Kind() string { return "Mock" }

func (m *mockFetcher) Retrieve(ctx context.Context, id string) (encoder.ByteStream, error) {
	m.mu.Lock()
	m.calls = append(m.calls, id)
	data, found := m.contents[id]
	err := m.errs[id]
	streamErr := m.streamErrs[id]
	m.mu.Unlock()

	current := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		peak := m.maxInFlight.Load()
		if current <= peak || m.maxInFlight.CompareAndSwap(peak, current) {
			break
		}
	}

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fetcher.ErrNotFound
	}
	if streamErr != nil {
		return func(yield func([]byte, error) bool) {
			if yield(data, nil) {
				yield(nil, streamErr)
			}
		}, nil
	}
	return encoder.FromChunks(data), nil
}

func (m *mockFetcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func parse(t *testing.T, content string) *dom.Document {
	doc, err := dom.Parse(strings.NewReader(content))
	require.NoError(t, err)
	return doc
}

func query(t *testing.T, doc *dom.Document, selector string) []*html.Node {
	els, err := doc.QueryAll(selector)
	require.NoError(t, err)
	return els
}

func attr(doc *dom.Document, el *html.Node, key string) string {
	val, _ := doc.Attr(el, key)
	return val
}

func TestIdentifier(t *testing.T) {
	for _, d := range []struct {
		val    string
		id     string
		isIPFS bool
	}{
		{val: "ipfs://bafkqaaa", id: "bafkqaaa", isIPFS: true},
		{val: "ipfs://bafkqaaa/image.png", id: "bafkqaaa/image.png", isIPFS: true},
		{val: "ipfs://", id: "", isIPFS: true},
		{val: "https://example.com/a.png", isIPFS: false},
		{val: "IPFS://bafkqaaa", isIPFS: false},
		{val: "/ipfs/bafkqaaa", isIPFS: false},
		{val: "", isIPFS: false},
	} {
		t.Run(d.val, func(t *testing.T) {
			id, isIPFS := hydrator.Identifier(d.val)
			require.Equal(t, d.isIPFS, isIPFS)
			if isIPFS {
				require.Equal(t, d.id, id)
			}
		})
	}
}

func TestHydrate(t *testing.T) {
	f := &mockFetcher{
		contents: map[string][]byte{
			"png":  pngData,
			"text": textData,
		},
		errs: map[string]error{
			"broken": fetcher.ErrNetworkError,
		},
	}
	h := hydrator.New(f)

	t.Run("successful hydration", func(t *testing.T) {
		doc := parse(t, `<img src="ipfs://png" alt="logo">`)
		el := query(t, doc, "img")[0]

		err := h.Hydrate(context.Background(), doc, el)
		require.NoError(t, err)
		require.Equal(t, dataURI("image/png", pngData), attr(doc, el, "src"))
		require.Equal(t, "logo", attr(doc, el, "alt"))
	})

	t.Run("non-ipfs source is ignored", func(t *testing.T) {
		calls := f.callCount()

		for _, content := range []string{
			`<img src="https://example.com/a.png">`,
			`<img src="data:image/png;base64,iVBORw==">`,
			`<img alt="no source">`,
		} {
			doc := parse(t, content)
			before := doc.String()
			el := query(t, doc, "img")[0]

			err := h.Hydrate(context.Background(), doc, el)
			require.NoError(t, err)
			require.Equal(t, before, doc.String())
		}

		require.Equal(t, calls, f.callCount())
	})

	t.Run("fetch failure leaves element unmodified", func(t *testing.T) {
		for _, d := range []struct {
			src string
			err error
		}{
			{src: "ipfs://broken", err: fetcher.ErrNetworkError},
			{src: "ipfs://missing", err: fetcher.ErrNotFound},
		} {
			doc := parse(t, `<img src="`+d.src+`">`)
			el := query(t, doc, "img")[0]

			err := h.Hydrate(context.Background(), doc, el)
			require.ErrorIs(t, err, d.err)
			require.Equal(t, d.src, attr(doc, el, "src"))
		}
	})

	t.Run("stream failure leaves element unmodified", func(t *testing.T) {
		f := &mockFetcher{
			contents:   map[string][]byte{"partial": pngData},
			streamErrs: map[string]error{"partial": fetcher.ErrNetworkError},
		}
		doc := parse(t, `<img src="ipfs://partial">`)
		el := query(t, doc, "img")[0]

		err := hydrator.New(f).Hydrate(context.Background(), doc, el)
		require.ErrorIs(t, err, encoder.ErrStreamReadFailure)
		require.ErrorIs(t, err, fetcher.ErrNetworkError)
		require.Equal(t, "ipfs://partial", attr(doc, el, "src"))
	})

	t.Run("unrecognized content leaves element unmodified", func(t *testing.T) {
		doc := parse(t, `<img src="ipfs://text">`)
		el := query(t, doc, "img")[0]

		err := h.Hydrate(context.Background(), doc, el)
		require.ErrorIs(t, err, sniffer.ErrUnrecognizedFormat)
		require.Equal(t, "ipfs://text", attr(doc, el, "src"))
	})

	t.Run("payload too large", func(t *testing.T) {
		h := hydrator.New(f, hydrator.WithEncoder(encoder.New(encoder.WithMaxSize(4))))
		doc := parse(t, `<img src="ipfs://png">`)
		el := query(t, doc, "img")[0]

		err := h.Hydrate(context.Background(), doc, el)
		require.ErrorIs(t, err, encoder.ErrPayloadTooLarge)
		require.Equal(t, "ipfs://png", attr(doc, el, "src"))
	})

	t.Run("custom attribute", func(t *testing.T) {
		h := hydrator.New(f, hydrator.WithAttribute("data-src"))
		doc := parse(t, `<img src="ipfs://text" data-src="ipfs://png">`)
		el := query(t, doc, "img")[0]

		err := h.Hydrate(context.Background(), doc, el)
		require.NoError(t, err)
		require.Equal(t, "ipfs://text", attr(doc, el, "src"))
		require.Equal(t, dataURI("image/png", pngData), attr(doc, el, "data-src"))
	})
}

func TestHydrateAll(t *testing.T) {
	t.Run("failures are isolated", func(t *testing.T) {
		f := &mockFetcher{
			contents: map[string][]byte{
				"gif":  gifData,
				"jpeg": jpegData,
			},
			errs: map[string]error{
				"broken": fetcher.ErrNetworkError,
			},
			delay: 10 * time.Millisecond,
		}

		doc := parse(t, `<body>`+
			`<img id="a" src="ipfs://broken">`+
			`<img id="b" src="ipfs://gif">`+
			`<img id="c" src="https://example.com/c.png">`+
			`<img id="d" src="ipfs://jpeg">`+
			`<p>ipfs://not-an-image</p>`+
			`</body>`)

		stats, err := hydrator.New(f).HydrateAll(context.Background(), doc, "img")
		require.NoError(t, err)
		require.Equal(t, hydrator.Stats{
			Matched:  4,
			Hydrated: 2,
			Skipped:  1,
			Failed:   1,
		}, stats)

		els := query(t, doc, "img")
		require.Equal(t, "ipfs://broken", attr(doc, els[0], "src"))
		require.Equal(t, dataURI("image/gif", gifData), attr(doc, els[1], "src"))
		require.Equal(t, "https://example.com/c.png", attr(doc, els[2], "src"))
		require.Equal(t, dataURI("image/jpeg", jpegData), attr(doc, els[3], "src"))

		// Elements are processed concurrently
		require.Greater(t, f.maxInFlight.Load(), int32(1))
	})

	t.Run("stream failure after first chunk is isolated", func(t *testing.T) {
		f := &mockFetcher{
			contents: map[string][]byte{
				"partial": pngData,
				"gif":     gifData,
			},
			streamErrs: map[string]error{
				"partial": fetcher.ErrNetworkError,
			},
			delay: 10 * time.Millisecond,
		}

		doc := parse(t, `<body>`+
			`<img src="ipfs://partial">`+
			`<img src="ipfs://gif">`+
			`</body>`)
		before := doc.String()

		stats, err := hydrator.New(f).HydrateAll(context.Background(), doc, "img")
		require.NoError(t, err)
		require.Equal(t, hydrator.Stats{
			Matched:  2,
			Hydrated: 1,
			Failed:   1,
		}, stats)

		els := query(t, doc, "img")
		require.Equal(t, "ipfs://partial", attr(doc, els[0], "src"))
		require.Equal(t, dataURI("image/gif", gifData), attr(doc, els[1], "src"))
		require.Equal(t,
			strings.Replace(before, "ipfs://gif", dataURI("image/gif", gifData), 1),
			doc.String(),
		)
		require.Greater(t, f.maxInFlight.Load(), int32(1))
	})

	t.Run("parallelism limit", func(t *testing.T) {
		f := &mockFetcher{
			contents: map[string][]byte{"gif": gifData},
			delay:    5 * time.Millisecond,
		}

		doc := parse(t, strings.Repeat(`<img src="ipfs://gif">`, 10))
		stats, err := hydrator.New(f, hydrator.WithParallelism(2)).HydrateAll(context.Background(), doc, "img")
		require.NoError(t, err)
		require.Equal(t, 10, stats.Hydrated)
		require.LessOrEqual(t, f.maxInFlight.Load(), int32(2))
	})

	t.Run("no matches", func(t *testing.T) {
		f := &mockFetcher{}
		doc := parse(t, `<p>nothing here</p>`)

		stats, err := hydrator.New(f).HydrateAll(context.Background(), doc, "img")
		require.NoError(t, err)
		require.Equal(t, hydrator.Stats{}, stats)
		require.Zero(t, f.callCount())
	})

	t.Run("invalid selector", func(t *testing.T) {
		doc := parse(t, `<img src="ipfs://gif">`)

		_, err := hydrator.New(&mockFetcher{}).HydrateAll(context.Background(), doc, "img[")
		require.ErrorIs(t, err, dom.ErrInvalidSelector)
	})

	t.Run("cancelled context", func(t *testing.T) {
		f := &mockFetcher{
			contents: map[string][]byte{"gif": gifData},
			delay:    time.Minute,
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		doc := parse(t, `<img src="ipfs://gif">`)
		stats, err := hydrator.New(f).HydrateAll(ctx, doc, "img")
		require.NoError(t, err)
		require.Equal(t, 1, stats.Failed)
		require.Equal(t, "ipfs://gif", attr(doc, query(t, doc, "img")[0], "src"))
	})
}

func TestHydrateFromBlockStore(t *testing.T) {
	bs := blockstore.InMemory()
	name, err := blockstore.Add(context.Background(), bs, pngData)
	require.NoError(t, err)

	doc := parse(t, `<img src="ipfs://`+name.String()+`">`)
	h := hydrator.New(fetcher.FromBlockStore(bs))

	stats, err := h.HydrateAll(context.Background(), doc, hydrator.DefaultSelector)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Hydrated)
	require.Equal(t, dataURI("image/png", pngData), attr(doc, query(t, doc, "img")[0], "src"))
}

func TestRun(t *testing.T) {
	f := &mockFetcher{
		contents: map[string][]byte{
			"png": pngData,
			"gif": gifData,
		},
		errs: map[string]error{
			"broken": errors.New("broken"),
		},
	}

	doc := parse(t, `<body><img src="ipfs://png"><img src="ipfs://broken"></body>`)
	body := query(t, doc, "body")[0]

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		stats hydrator.Stats
		err   error
	}
	done := make(chan result, 1)
	go func() {
		stats, err := hydrator.New(f).Run(ctx, doc, "img")
		done <- result{stats, err}
	}()

	require.Eventually(t, func() bool {
		return attr(doc, query(t, doc, "img")[0], "src") == dataURI("image/png", pngData)
	}, time.Second, time.Millisecond)

	err := doc.AppendHTML(body, `<div><img src="ipfs://gif"></div>`)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return attr(doc, query(t, doc, "img")[2], "src") == dataURI("image/gif", gifData)
	}, time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		return f.callCount() == 3
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case res := <-done:
		require.NoError(t, res.err)
		require.Equal(t, hydrator.Stats{Matched: 3, Hydrated: 2, Failed: 1}, res.stats)
	case <-time.After(time.Second):
		require.Fail(t, "Run did not finish after context cancellation")
	}

	require.Equal(t, "ipfs://broken", attr(doc, query(t, doc, "img")[1], "src"))

	t.Run("invalid selector", func(t *testing.T) {
		_, err := hydrator.New(f).Run(context.Background(), doc, "img[")
		require.ErrorIs(t, err, dom.ErrInvalidSelector)
	})
}
