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

package hydrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/cinode/ipfs-inline/pkg/dom"
	"github.com/cinode/ipfs-inline/pkg/encoder"
	"github.com/cinode/ipfs-inline/pkg/fetcher"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

const (
	// SchemePrefix marks attribute values that should be resolved
	SchemePrefix = "ipfs://"

	DefaultSelector  = "img"
	DefaultAttribute = "src"
)

// Stats summarizes hydration of a set of elements
type Stats struct {
	Matched  int
	Hydrated int
	Skipped  int
	Failed   int
}

type statsCollector struct {
	mu sync.Mutex
	s  Stats
}

func (c *statsCollector) add(f func(s *Stats)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f(&c.s)
}

func (c *statsCollector) get() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s
}

// Hydrator replaces `ipfs://` references in document elements
// with inline data URIs
type Hydrator struct {
	fetcher     fetcher.ContentFetcher
	encoder     *encoder.Encoder
	log         *slog.Logger
	attr        string
	parallelism int
}

type Option func(h *Hydrator)

// WithEncoder sets the encoder turning fetched content into data URIs
func WithEncoder(e *encoder.Encoder) Option { return func(h *Hydrator) { h.encoder = e } }

// WithLogger sets the logger used to report failed elements
func WithLogger(log *slog.Logger) Option { return func(h *Hydrator) { h.log = log } }

// WithAttribute changes the element attribute holding the ipfs:// reference
func WithAttribute(attr string) Option { return func(h *Hydrator) { h.attr = attr } }

// WithParallelism limits the number of elements processed concurrently,
// values below 1 mean no limit
func WithParallelism(parallelism int) Option { return func(h *Hydrator) { h.parallelism = parallelism } }

// New creates a hydrator resolving content through given fetcher.
//
// By default there is no limit on the number of elements processed
// concurrently.
func New(f fetcher.ContentFetcher, opts ...Option) *Hydrator {
	ret := &Hydrator{
		fetcher: f,
		log:     slog.Default(),
		attr:    DefaultAttribute,
	}

	for _, o := range opts {
		o(ret)
	}

	if ret.encoder == nil {
		ret.encoder = encoder.New(encoder.WithLogger(ret.log))
	}

	return ret
}

// Identifier extracts the content identifier from an attribute value,
// the identifier is returned verbatim
func Identifier(val string) (string, bool) {
	return strings.CutPrefix(val, SchemePrefix)
}

// Hydrate resolves the content referenced by given element and replaces
// the attribute with a data URI.
//
// Elements not referencing `ipfs://` content are ignored. On error
// the element is left unmodified.
func (h *Hydrator) Hydrate(ctx context.Context, doc *dom.Document, el *html.Node) error {
	_, err := h.hydrate(ctx, doc, el)
	return err
}

func (h *Hydrator) hydrate(ctx context.Context, doc *dom.Document, el *html.Node) (bool, error) {
	val, found := doc.Attr(el, h.attr)
	if !found {
		return false, nil
	}

	id, isIPFS := Identifier(val)
	if !isIPFS {
		return false, nil
	}

	stream, err := h.fetcher.Retrieve(ctx, id)
	if err != nil {
		return false, err
	}

	dataURI, err := h.encoder.Encode(ctx, stream)
	if err != nil {
		return false, err
	}

	err = doc.SetAttr(el, h.attr, dataURI)
	if err != nil {
		return false, err
	}

	return true, nil
}

// process hydrates a single element, errors are reported through
// the log and never propagated
func (h *Hydrator) process(ctx context.Context, doc *dom.Document, el *html.Node, stats *statsCollector) {
	val, _ := doc.Attr(el, h.attr)

	hydrated, err := h.hydrate(ctx, doc, el)
	switch {
	case err != nil && errors.Is(err, context.Canceled):
		h.log.Debug("Element hydration cancelled", h.attr, val)
		stats.add(func(s *Stats) { s.Matched++; s.Failed++ })

	case err != nil:
		h.log.Error("Failed to hydrate element",
			h.attr, val,
			"fetcher", h.fetcher.Kind(),
			"err", err,
		)
		stats.add(func(s *Stats) { s.Matched++; s.Failed++ })

	case !hydrated:
		h.log.Debug("Skipping element", h.attr, val)
		stats.add(func(s *Stats) { s.Matched++; s.Skipped++ })

	default:
		h.log.Info("Element hydrated", h.attr, val)
		stats.add(func(s *Stats) { s.Matched++; s.Hydrated++ })
	}
}

func (h *Hydrator) newGroup() *errgroup.Group {
	g := &errgroup.Group{}
	if h.parallelism > 0 {
		g.SetLimit(h.parallelism)
	}
	return g
}

// HydrateAll hydrates all elements matching the selector that are currently
// present in the document and waits until all of them are processed.
//
// Failures of individual elements do not affect other ones, those are
// logged and counted in the returned stats.
func (h *Hydrator) HydrateAll(ctx context.Context, doc *dom.Document, selector string) (Stats, error) {
	els, err := doc.QueryAll(selector)
	if err != nil {
		return Stats{}, err
	}

	stats := statsCollector{}
	g := h.newGroup()
	for _, el := range els {
		g.Go(func() error {
			h.process(ctx, doc, el, &stats)
			return nil
		})
	}
	g.Wait()

	return stats.get(), nil
}

// Run watches the document and hydrates every matching element, both
// existing and added later on, each one in a separate goroutine.
//
// It blocks until the context is done, then stops watching and waits for
// elements being processed at that time.
func (h *Hydrator) Run(ctx context.Context, doc *dom.Document, selector string) (Stats, error) {
	sub, err := doc.Watch(selector)
	if err != nil {
		return Stats{}, err
	}

	stats := statsCollector{}
	g := h.newGroup()

	func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case el, ok := <-sub.Matches():
				if !ok {
					return
				}
				g.Go(func() error {
					h.process(ctx, doc, el, &stats)
					return nil
				})
			}
		}
	}()

	g.Wait()
	return stats.get(), nil
}
