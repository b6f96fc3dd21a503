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

	"github.com/cinode/ipfs-inline/pkg/encoder"
)

var (
	ErrNotFound          = errors.New("content not found")
	ErrNetworkError      = errors.New("network error")
	ErrInvalidIdentifier = errors.New("invalid content identifier")
)

// ContentFetcher resolves content identifiers into byte streams
type ContentFetcher interface {

	// Kind returns string representation of the fetcher kind (i.e. "Gateway")
	Kind() string

	// Retrieve starts fetching the content with given identifier.
	//
	// Errors detected before any content byte is available are returned
	// directly, ErrNotFound if the content does not exist and ErrNetworkError
	// if the content source could not be queried. Failures that happen later
	// are reported through the returned stream.
	Retrieve(ctx context.Context, id string) (encoder.ByteStream, error)
}
