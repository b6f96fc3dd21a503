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
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/cinode/ipfs-inline/pkg/hydrator"
	"github.com/cinode/ipfs-inline/pkg/internal/utilities/httpserver"
	"github.com/spf13/cobra"
)

const indexFile = "index.html"

func serveCmd() *cobra.Command {
	var root string
	var port int
	var hf hydratorFlags

	cmd := &cobra.Command{
		Use:   "serve --root <dir>",
		Short: "Serve html files with IPFS images inlined on the fly",
		Long: `
Serve files from a directory over http. Html documents are rendered
with ipfs:// images inlined on each request, other files are served
as they are.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if root == "" {
				return cmd.Help()
			}

			cfg, err := hf.configure()
			if err != nil {
				return err
			}
			log := logger(cmd)

			h, err := buildHydrator(cfg, log)
			if err != nil {
				return err
			}

			log.Info("Serving files", "root", root)
			return httpserver.RunGracefully(cmd.Context(),
				serveHandler(os.DirFS(root), h, hf.selector, log),
				httpserver.ListenPort(port),
				httpserver.Logger(log),
			)
		},
	}

	cmd.Flags().StringVarP(&root, "root", "r", "", "Directory with files to serve")
	cmd.Flags().IntVarP(&port, "port", "p", defaultPort, "Port to listen on")
	hf.register(cmd)

	return cmd
}

func isHTML(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".html" || ext == ".htm"
}

func serveHandler(fsys fs.FS, h *hydrator.Hydrator, selector string, log *slog.Logger) http.Handler {
	files := http.FileServerFS(fsys)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" {
			name = "."
		}
		if st, err := fs.Stat(fsys, name); err == nil && st.IsDir() {
			if !strings.HasSuffix(r.URL.Path, "/") {
				// Let the file server do the redirect
				files.ServeHTTP(w, r)
				return
			}
			name = path.Join(name, indexFile)
		}

		if !isHTML(name) {
			files.ServeHTTP(w, r)
			return
		}

		fl, err := fsys.Open(name)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			http.NotFound(w, r)
			return
		case err != nil:
			log.Error("Failed to open file", "file", name, "err", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		defer fl.Close()

		buf := bytes.NewBuffer(nil)
		stats, err := render(r.Context(), h, fl, buf, selector)
		if err != nil {
			log.Error("Failed to render document", "file", name, "err", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		log.Debug("Document rendered",
			"file", name,
			"hydrated", stats.Hydrated,
			"failed", stats.Failed,
		)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		if r.Method == http.MethodHead {
			return
		}
		w.Write(buf.Bytes())
	})
}
