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
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cinode/ipfs-inline/pkg/encoder"
	"github.com/cinode/ipfs-inline/pkg/fetcher"
	"github.com/cinode/ipfs-inline/pkg/hydrator"
	"github.com/spf13/cobra"
)

const (
	envSource           = "IPFS_INLINE_SOURCE"
	envAdditionalSource = "IPFS_INLINE_ADDITIONAL_SOURCE"
	envParallelism      = "IPFS_INLINE_PARALLELISM"
	envMaxSize          = "IPFS_INLINE_MAX_SIZE"

	defaultSource      = "https://ipfs.io"
	defaultParallelism = 8
	defaultMaxSize     = 16 * 1024 * 1024
	defaultPort        = 8080
)

// RootCmd represents the base command when called without any subcommands
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ipfs_inline",
		Short: "Inline images stored in IPFS into html documents",
		Long: `ipfs_inline replaces references to IPFS content in html documents
(i.e. <img src="ipfs://...">) with inline data URIs.

Content is resolved through an http gateway or a local block store.
Sources are configured through environment variables:

  IPFS_INLINE_SOURCE              - main source location, either a gateway
                                    url or a block store location,
                                    defaults to https://ipfs.io
  IPFS_INLINE_ADDITIONAL_SOURCE*  - additional sources used when the content
                                    can not be found in the main one
  IPFS_INLINE_PARALLELISM         - max number of elements processed at once
  IPFS_INLINE_MAX_SIZE            - max size of a single inlined image
`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(renderCmd())
	cmd.AddCommand(sniffCmd())
	cmd.AddCommand(addCmd())
	cmd.AddCommand(gatewayCmd())
	cmd.AddCommand(serveCmd())

	return cmd
}

// Execute runs the root command with arguments taken from the command line
func Execute(ctx context.Context) error {
	return RootCmd().ExecuteContext(ctx)
}

type config struct {
	mainSource        string
	additionalSources []string
	parallelism       int
	maxSize           int
}

func getConfig() (*config, error) {
	cfg := config{
		parallelism: defaultParallelism,
		maxSize:     defaultMaxSize,
	}

	cfg.mainSource = os.Getenv(envSource)
	if cfg.mainSource == "" {
		cfg.mainSource = defaultSource
	}

	additionalSourceEnvNames := []string{}
	for _, e := range os.Environ() {
		if strings.HasPrefix(e, envAdditionalSource) {
			split := strings.SplitN(e, "=", 2)
			additionalSourceEnvNames = append(additionalSourceEnvNames, split[0])
		}
	}
	sort.Strings(additionalSourceEnvNames)

	for _, envName := range additionalSourceEnvNames {
		location := os.Getenv(envName)
		cfg.additionalSources = append(cfg.additionalSources, location)
	}

	for _, d := range []struct {
		env string
		val *int
	}{
		{envParallelism, &cfg.parallelism},
		{envMaxSize, &cfg.maxSize},
	} {
		str, found := os.LookupEnv(d.env)
		if !found {
			continue
		}
		val, err := strconv.Atoi(str)
		if err != nil || val < 0 {
			return nil, fmt.Errorf("invalid %s value '%s', must be a non-negative integer", d.env, str)
		}
		*d.val = val
	}

	return &cfg, nil
}

// hydratorFlags are shared by commands inlining the content
type hydratorFlags struct {
	source   string
	selector string
}

func (f *hydratorFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.source, "source", "s", "", "Main source location, overrides the "+envSource+" env var")
	cmd.Flags().StringVar(&f.selector, "selector", hydrator.DefaultSelector, "CSS selector of elements to inline")
}

func (f *hydratorFlags) configure() (*config, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	if f.source != "" {
		cfg.mainSource = f.source
	}
	return cfg, nil
}

func buildFetcher(cfg *config, log *slog.Logger) (fetcher.ContentFetcher, error) {
	main, err := fetcher.FromLocation(cfg.mainSource)
	if err != nil {
		return nil, fmt.Errorf("could not create main source: %w", err)
	}

	if len(cfg.additionalSources) == 0 {
		return main, nil
	}

	additional := []fetcher.ContentFetcher{}
	for _, loc := range cfg.additionalSources {
		f, err := fetcher.FromLocation(loc)
		if err != nil {
			return nil, fmt.Errorf("could not create additional sources: %w", err)
		}
		additional = append(additional, f)
	}

	return fetcher.NewMultiSource(main, additional, fetcher.MultiSourceOptionLogger(log)), nil
}

func buildHydrator(cfg *config, log *slog.Logger) (*hydrator.Hydrator, error) {
	f, err := buildFetcher(cfg, log)
	if err != nil {
		return nil, err
	}

	log.Info("Content source",
		"kind", f.Kind(),
		"main", cfg.mainSource,
		"additional", cfg.additionalSources,
	)

	return hydrator.New(f,
		hydrator.WithLogger(log),
		hydrator.WithParallelism(cfg.parallelism),
		hydrator.WithEncoder(encoder.New(
			encoder.WithMaxSize(cfg.maxSize),
			encoder.WithLogger(log),
		)),
	), nil
}

// Logs go to stderr so that they never mix with the command output
func logger(cmd *cobra.Command) *slog.Logger {
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
}
