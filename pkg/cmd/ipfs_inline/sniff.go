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

package ipfs_inline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cinode/ipfs-inline/pkg/sniffer"
	"github.com/spf13/cobra"
)

// Enough for filetype to recognize most formats
const sniffPrefixLen = 262

type sniffResult struct {
	Result    string `json:"result"`
	File      string `json:"file"`
	MimeType  string `json:"mime-type,omitempty"`
	Signature string `json:"signature,omitempty"`
	LooksLike string `json:"looks-like,omitempty"`
	Msg       string `json:"msg,omitempty"`
}

func sniffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sniff <file>...",
		Short: "Check whether files would be accepted for inlining",
		Long: `
Classify files by their leading bytes the same way content fetched
from IPFS is classified before inlining.

Prints one json object per file.
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			rejected := 0

			for _, fName := range args {
				res := sniffFile(fName)
				if res.Result != "OK" {
					rejected++
				}
				if err := enc.Encode(res); err != nil {
					return err
				}
			}

			if rejected > 0 {
				return fmt.Errorf("%d of %d files rejected", rejected, len(args))
			}
			return nil
		},
	}

	return cmd
}

func sniffFile(fName string) sniffResult {
	res := sniffResult{File: fName}

	prefix, err := readPrefix(fName, sniffPrefixLen)
	if err != nil {
		res.Result = "ERROR"
		res.Msg = err.Error()
		return res
	}

	res.Signature, _ = sniffer.Signature(prefix)

	mimeType, err := sniffer.Classify(prefix)
	if err != nil {
		res.Result = "REJECTED"
		res.Msg = err.Error()
		res.LooksLike = sniffer.Describe(prefix)
		return res
	}

	res.Result = "OK"
	res.MimeType = mimeType
	return res
}

func readPrefix(fName string, n int) ([]byte, error) {
	fl, err := os.Open(fName)
	if err != nil {
		return nil, err
	}
	defer fl.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(fl, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return buf[:read], nil
}
