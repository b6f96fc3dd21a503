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
	"fmt"
	"os"

	"github.com/cinode/ipfs-inline/pkg/blockstore"
	"github.com/cinode/ipfs-inline/pkg/hydrator"
	"github.com/spf13/cobra"
)

type addResult struct {
	Result string `json:"result"`
	File   string `json:"file"`
	CID    string `json:"cid"`
	URI    string `json:"uri"`
}

func addCmd() *cobra.Command {
	var (
		store      string
		cidVersion int
	)

	cmd := &cobra.Command{
		Use:   "add --store <location> [--cid-version 0|1] <file>...",
		Short: "Add files to a local block store",
		Long: `
Store files in a local block store. The store location is either
a directory path, a file:// url or memory:// (the last one is only
useful for testing).

With --cid-version 1 (the default) files are stored as raw blocks.
With --cid-version 0 files are wrapped in single-block UnixFS nodes and get
the Qm... names ` + "`ipfs add`" + ` reports, such files are limited to 256KiB.

Prints one json object per file with the ipfs:// reference to use
in html documents.
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if store == "" {
				return cmd.Help()
			}

			add := blockstore.Add
			switch cidVersion {
			case 0:
				add = blockstore.AddFile
			case 1:
			default:
				return fmt.Errorf("unsupported cid version: %d", cidVersion)
			}

			ds, err := blockstore.FromLocation(store)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, fName := range args {
				data, err := os.ReadFile(fName)
				if err != nil {
					return err
				}

				name, err := add(cmd.Context(), ds, data)
				if err != nil {
					return fmt.Errorf("could not add '%s': %w", fName, err)
				}

				err = enc.Encode(addResult{
					Result: "OK",
					File:   fName,
					CID:    name.String(),
					URI:    hydrator.SchemePrefix + name.String(),
				})
				if err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&store, "store", "d", "", "Block store location")
	cmd.Flags().IntVar(&cidVersion, "cid-version", 1, "CID version of added files, 0 stores UnixFS nodes")

	return cmd
}
