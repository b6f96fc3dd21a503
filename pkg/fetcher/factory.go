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
	"strings"

	"github.com/cinode/ipfs-inline/pkg/blockstore"
)

const (
	webPrefixHTTP  = "http://"
	webPrefixHTTPS = "https://"
)

// FromLocation creates new fetcher from location string.
//
// The string may be of the following form:
//   - http://<address> or https://<address> - IPFS path gateway, see FromGateway
//   - any location supported by blockstore.FromLocation - local block store,
//     see FromBlockStore
func FromLocation(location string) (ContentFetcher, error) {
	if strings.HasPrefix(location, webPrefixHTTP) ||
		strings.HasPrefix(location, webPrefixHTTPS) {
		return FromGateway(location)
	}

	bs, err := blockstore.FromLocation(location)
	if err != nil {
		return nil, err
	}

	return FromBlockStore(bs), nil
}
