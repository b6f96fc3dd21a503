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
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/cinode/ipfs-inline/pkg/dom"
	"github.com/cinode/ipfs-inline/pkg/hydrator"
	"github.com/spf13/cobra"
)

func renderCmd() *cobra.Command {
	var input, output string
	var hf hydratorFlags

	cmd := &cobra.Command{
		Use:   "render [--input <file>] [--output <file>]",
		Short: "Inline IPFS images in a html document",
		Long: `
Read the html document, replace all matching elements referencing
ipfs:// content with data URIs and write the result back.

Elements that can not be inlined are left untouched, failures are
reported in the log.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := hf.configure()
			if err != nil {
				return err
			}
			log := logger(cmd)

			h, err := buildHydrator(cfg, log)
			if err != nil {
				return err
			}

			r := cmd.InOrStdin()
			if input != "" && input != "-" {
				fl, err := os.Open(input)
				if err != nil {
					return err
				}
				defer fl.Close()
				r = fl
			}

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				fl, err := os.Create(output)
				if err != nil {
					return err
				}
				defer fl.Close()
				w = fl
			}

			stats, err := render(cmd.Context(), h, r, w, hf.selector)
			if err != nil {
				return err
			}

			log.Info("Document rendered",
				slog.Group("elements",
					"matched", stats.Matched,
					"hydrated", stats.Hydrated,
					"skipped", stats.Skipped,
					"failed", stats.Failed,
				),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "-", "Input html file, stdin if not set")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Output html file, stdout if not set")
	hf.register(cmd)

	return cmd
}

func render(
	ctx context.Context,
	h *hydrator.Hydrator,
	r io.Reader,
	w io.Writer,
	selector string,
) (hydrator.Stats, error) {
	doc, err := dom.Parse(r)
	if err != nil {
		return hydrator.Stats{}, err
	}

	stats, err := h.HydrateAll(ctx, doc, selector)
	if err != nil {
		return hydrator.Stats{}, err
	}

	return stats, doc.Render(w)
}
