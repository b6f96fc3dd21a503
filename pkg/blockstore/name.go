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
	"fmt"

	"github.com/ipfs/go-cid"
	base58 "github.com/jbenet/go-base58"
	"github.com/multiformats/go-multihash"
)

// NameFromData returns CIDv1 with raw codec and sha2-256 multihash of given data
func NameFromData(data []byte) (cid.Cid, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

// ParseName decodes string representation of a CID (both v0 and v1)
func ParseName(s string) (cid.Cid, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: %w", ErrInvalidName, err)
	}
	return c, nil
}

// blockKey returns the backend key of the block together with the sha2-256
// digest its data must match.
//
// The key is the base58 form of the multihash, identical for all CID
// versions and codecs pointing to the same data.
func blockKey(name cid.Cid) (string, []byte, error) {
	if !name.Defined() {
		return "", nil, ErrInvalidName
	}

	decoded, err := multihash.Decode(name.Hash())
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidName, err)
	}

	if decoded.Code != multihash.SHA2_256 {
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedHash, decoded.Name)
	}

	return base58.Encode(name.Hash()), decoded.Digest, nil
}
