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
	"errors"
	"fmt"
	"strings"
)

const (
	filePrefix   = "file://"
	memoryPrefix = "memory://"
)

var (
	ErrInvalidMemoryLocation = fmt.Errorf("memory block store must not use any parameters, use only `%s`", memoryPrefix)
	ErrInvalidLocation       = errors.New("invalid block store location")
)

// FromLocation creates new instance of the block store from location string.
//
// The string may be of the following form:
//   - file://<path> - store blocks in local filesystem's path
//   - memory:// - creates a local in-process store without persistent storage
//   - <path> - equivalent to file://<path>
func FromLocation(location string) (DS, error) {
	switch {
	case location == "":
		return nil, ErrInvalidLocation

	case strings.HasPrefix(location, filePrefix):
		path := location[len(filePrefix):]
		if path == "" {
			return nil, ErrInvalidLocation
		}
		return InFileSystem(path), nil

	case strings.HasPrefix(location, memoryPrefix):
		if location != memoryPrefix {
			return nil, ErrInvalidMemoryLocation
		}
		return InMemory(), nil

	default:
		return InFileSystem(location), nil
	}
}
