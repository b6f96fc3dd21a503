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

package sniffer

import (
	"encoding/hex"
	"errors"
	"fmt"
	"maps"

	filetype "gopkg.in/h2non/filetype.v1"
)

// SignatureLen is the number of leading bytes inspected by Classify
const SignatureLen = 4

var (
	ErrUnrecognizedFormat = errors.New("unrecognized format")
	ErrPrefixTooShort     = fmt.Errorf("prefix shorter than %d bytes", SignatureLen)
)

// Keys are lowercase hex encoded signatures, exactly SignatureLen*2 characters
var signatures = map[string]string{
	"89504e47": "image/png",
	"47494638": "image/gif",
	"ffd8ffdb": "image/jpeg",
	"ffd8ffe0": "image/jpeg",
	"ffd8ffe1": "image/jpeg",
	"ffd8ffe2": "image/jpeg",
	"ffd8ffe3": "image/jpeg",
	"ffd8ffe8": "image/jpeg",
}

// Signatures returns a copy of the signature table
func Signatures() map[string]string {
	return maps.Clone(signatures)
}

// Signature returns lowercase hex encoding of the first SignatureLen bytes
func Signature(prefix []byte) (string, error) {
	if len(prefix) < SignatureLen {
		return "", ErrPrefixTooShort
	}
	return hex.EncodeToString(prefix[:SignatureLen]), nil
}

// Classify returns the media type of data starting with given prefix.
//
// Only the first SignatureLen bytes are inspected, the rest of the prefix
// is ignored. If the signature is not one of the supported image formats,
// ErrUnrecognizedFormat is returned.
func Classify(prefix []byte) (string, error) {
	sig, err := Signature(prefix)
	if err != nil {
		return "", err
	}

	mimeType, found := signatures[sig]
	if !found {
		return "", fmt.Errorf("%w: signature %s", ErrUnrecognizedFormat, sig)
	}

	return mimeType, nil
}

// Describe returns a best-effort guess of the mime type of given data.
//
// It is only meant for diagnostics of rejected content and does not
// influence classification. Empty string is returned if the format is unknown.
func Describe(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}
