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
	"log/slog"

	"github.com/cinode/ipfs-inline/pkg/encoder"
)

type multiSource struct {
	// Sources queried in order until one of them returns the content
	sources []ContentFetcher

	log *slog.Logger
}

var _ ContentFetcher = (*multiSource)(nil)

type multiSourceOption func(*multiSource)

func MultiSourceOptionLogger(log *slog.Logger) multiSourceOption {
	return func(m *multiSource) { m.log = log }
}

// NewMultiSource returns ContentFetcher querying the main source first and
// falling back to additional sources, in order, if the main one fails.
//
// Only errors returned from the Retrieve call trigger the fallback. Once
// a source starts streaming the content, errors from the stream are final.
func NewMultiSource(main ContentFetcher, additional []ContentFetcher, options ...multiSourceOption) ContentFetcher {
	ret := &multiSource{
		sources: append([]ContentFetcher{main}, additional...),
		log:     slog.Default(),
	}

	for _, o := range options {
		o(ret)
	}

	return ret
}

func (m *multiSource) Kind() string {
	return "MultiSource"
}

func (m *multiSource) Retrieve(ctx context.Context, id string) (encoder.ByteStream, error) {
	errs := []error{}

	for i, src := range m.sources {
		stream, err := src.Retrieve(ctx, id)
		if err == nil {
			if i > 0 {
				m.log.Info("Content found in additional source",
					"id", id,
					"source", src.Kind(),
					"source-num", i,
				)
			}
			return stream, nil
		}

		if errors.Is(err, ErrInvalidIdentifier) {
			return nil, err
		}

		m.log.Debug("Failed to retrieve content from source",
			"id", id,
			"source", src.Kind(),
			"err", err,
		)
		errs = append(errs, fmt.Errorf("%s: %w", src.Kind(), err))
	}

	m.log.Warn("Did not find content in any source", "id", id)
	return nil, errors.Join(errs...)
}
