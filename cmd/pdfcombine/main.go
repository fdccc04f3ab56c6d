// Command pdfcombine concatenates pages from PDF files and URLs into one
// document.
//
//	pdfcombine -o book.pdf cover.pdf chapters.pdf[2:] https://example.com/appendix.pdf[:3]
//	pdfcombine -m book.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/wudi/pdfcombine/combiner"
	"github.com/wudi/pdfcombine/config"
	"github.com/wudi/pdfcombine/document"
	"github.com/wudi/pdfcombine/fetch"
	"github.com/wudi/pdfcombine/loader"
	"github.com/wudi/pdfcombine/manifest"
	"github.com/wudi/pdfcombine/observability"
	"github.com/wudi/pdfcombine/source"
)

const (
	Version = "0.1.0"
	appName = "pdfcombine"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	output       string
	configPath   string
	manifestPath string
	logLevel     string
	pretty       bool
}

func rootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "pdfcombine [flags] <source>...",
		Short: "Combine pages from PDF files and URLs into one document",
		Long: `pdfcombine concatenates pages from PDF sources in the order given.

A source is a file path or an http, https or file URL, optionally followed by
a zero-based inclusive page range: a.pdf[2], a.pdf[0:3], a.pdf[4:], a.pdf[:1].
Sources listed in a manifest (-m) come before those on the command line.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output PDF path (defaults to the manifest's output)")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML, default "+config.DefaultFile+" if present)")
	cmd.Flags().StringVarP(&opts.manifestPath, "manifest", "m", "", "Manifest file listing sources (YAML)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "Human-readable log output")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})

	return cmd
}

func run(cmd *cobra.Command, opts options, args []string) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	// Flags win over the config file only when given.
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if cmd.Flags().Changed("pretty") {
		cfg.Log.Pretty = opts.pretty
	}
	lc := cfg.LogSettings()
	lc.Output = cmd.ErrOrStderr()
	observability.Setup(lc)

	output, sources, err := collect(opts, args)
	if err != nil {
		return err
	}

	fetcher, closeFetcher, err := newFetcher(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeFetcher()

	lib := document.NewCodec(cfg.DocumentSettings())
	logger := observability.NewZerolog(observability.Component("combiner"))
	ld := loader.New(lib,
		loader.WithFetcher(fetcher),
		loader.WithLogger(observability.NewZerolog(observability.Component("loader"))),
	)
	c := combiner.New(lib, ld,
		combiner.WithLogger(logger),
		combiner.WithMaxConcurrency(cfg.Combine.MaxConcurrency),
	)

	doc, err := c.CombineAndWait(cmd.Context(), sources)
	if err != nil {
		return err
	}
	if err := writeOutput(cmd.Context(), lib, doc, output); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d pages to %s\n", doc.PageCount(), output)
	return nil
}

func collect(opts options, args []string) (string, []source.Descriptor, error) {
	output := opts.output
	var sources []source.Descriptor
	if opts.manifestPath != "" {
		m, err := manifest.Load(opts.manifestPath)
		if err != nil {
			return "", nil, err
		}
		ds, err := m.Descriptors()
		if err != nil {
			return "", nil, err
		}
		sources = append(sources, ds...)
		if output == "" {
			output = m.Output
		}
	}
	ds, err := manifest.ParseArgs(args)
	if err != nil {
		return "", nil, err
	}
	sources = append(sources, ds...)
	if output == "" {
		return "", nil, errors.New("no output path: use -o or set output in the manifest")
	}
	return output, sources, nil
}

func newFetcher(ctx context.Context, cfg *config.Config) (fetch.Fetcher, func(), error) {
	fopts := []fetch.Option{fetch.WithLogger(observability.Component("fetch"))}
	closer := func() {}
	if cfg.Cache.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisAddr,
			DB:   cfg.Cache.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Cache.RedisAddr, err)
		}
		fopts = append(fopts, fetch.WithCache(fetch.NewRedisCache(rdb, cfg.Cache.TTL)))
		closer = func() { _ = rdb.Close() }
	}
	return fetch.New(cfg.FetchSettings(), fopts...), closer, nil
}

func writeOutput(ctx context.Context, lib document.Library, doc document.Document, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := lib.Encode(ctx, doc, tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("encode output: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("chmod output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}
