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
	"github.com/cinode/ipfs-inline/pkg/blockstore"
	"github.com/cinode/ipfs-inline/pkg/internal/utilities/httpserver"
	"github.com/spf13/cobra"
)

func gatewayCmd() *cobra.Command {
	var store string
	var port int

	cmd := &cobra.Command{
		Use:   "gateway --store <location>",
		Short: "Serve a local block store as a read-only IPFS gateway",
		Long: `
Expose blocks from a local block store under /ipfs/<cid> paths so that
it can be used as a source by other instances.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if store == "" {
				return cmd.Help()
			}

			ds, err := blockstore.FromLocation(store)
			if err != nil {
				return err
			}

			log := logger(cmd)
			log.Info("Serving block store", "kind", ds.Kind(), "address", ds.Address())

			return httpserver.RunGracefully(cmd.Context(),
				blockstore.WebInterface(ds, blockstore.WebInterfaceOptionLogger(log)),
				httpserver.ListenPort(port),
				httpserver.Logger(log),
			)
		},
	}

	cmd.Flags().StringVarP(&store, "store", "d", "", "Block store location")
	cmd.Flags().IntVarP(&port, "port", "p", defaultPort, "Port to listen on")

	return cmd
}
