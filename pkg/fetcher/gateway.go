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
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cinode/ipfs-inline/pkg/blockstore"
	"github.com/cinode/ipfs-inline/pkg/encoder"
	"github.com/cinode/ipfs-inline/pkg/internal/utilities/validatingreader"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

type gateway struct {
	baseURL          *url.URL
	client           *http.Client
	customizeRequest func(*http.Request) error
	chunkSize        int
}

var _ ContentFetcher = (*gateway)(nil)

type gatewayOption func(*gateway)

func GatewayOptionHttpClient(client *http.Client) gatewayOption {
	return func(g *gateway) { g.client = client }
}

func GatewayOptionCustomizeRequest(f func(*http.Request) error) gatewayOption {
	return func(g *gateway) { g.customizeRequest = f }
}

func GatewayOptionChunkSize(chunkSize int) gatewayOption {
	return func(g *gateway) { g.chunkSize = chunkSize }
}

// FromGateway returns ContentFetcher implementation that downloads content
// through an IPFS path gateway available at given url
// (i.e. `https://ipfs.io` for `https://ipfs.io/ipfs/<cid>` urls).
//
// If the identifier is a bare CID of a raw block hashed with sha2-256,
// fetched data is verified against the CID while streaming.
func FromGateway(baseURL string, options ...gatewayOption) (ContentFetcher, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported gateway url scheme: '%s'", u.Scheme)
	}

	ret := &gateway{
		baseURL:          u,
		client:           http.DefaultClient,
		customizeRequest: func(r *http.Request) error { return nil },
		chunkSize:        encoder.DefaultChunkSize,
	}

	for _, o := range options {
		o(ret)
	}

	return ret, nil
}

func (g *gateway) Kind() string {
	return "Gateway"
}

func (g *gateway) Retrieve(ctx context.Context, id string) (encoder.ByteStream, error) {
	root, subPath, _ := strings.Cut(id, "/")
	c, err := cid.Decode(root)
	if err != nil {
		return nil, fmt.Errorf("%w: '%s': %w", ErrInvalidIdentifier, id, err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		g.baseURL.JoinPath("ipfs", id).String(),
		nil,
	)
	if err != nil {
		return nil, err
	}

	res, err := g.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetworkError, err)
	}

	err = g.errCheck(res)
	if err != nil {
		res.Body.Close()
		return nil, err
	}

	body := res.Body
	if subPath == "" {
		body = verifyRawBlock(c, body)
	}

	return encoder.FromReader(body, g.chunkSize), nil
}

func verifyRawBlock(c cid.Cid, rc io.ReadCloser) io.ReadCloser {
	if c.Type() != cid.Raw {
		return rc
	}

	decoded, err := multihash.Decode(c.Hash())
	if err != nil || decoded.Code != multihash.SHA2_256 {
		return rc
	}

	return validatingreader.NewHashValidation(rc, sha256.New(), decoded.Digest, blockstore.ErrValidationFailed)
}

func (g *gateway) do(req *http.Request) (*http.Response, error) {
	err := g.customizeRequest(req)
	if err != nil {
		return nil, err
	}

	return g.client.Do(req)
}

func (g *gateway) errCheck(res *http.Response) error {
	if res.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if res.StatusCode >= 400 {
		return fmt.Errorf(
			"%w: response status code: %v (%v)",
			ErrNetworkError,
			res.StatusCode,
			res.Status,
		)
	}
	return nil
}
