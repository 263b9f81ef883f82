// Package cli implements the substrait-inspect command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	substrait "github.com/hugr-lab/substrait-go"
	"github.com/hugr-lab/substrait-go/extensions"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Compression string   // "none" | "zstd"
	Extensions  []string // extra YAML signature libraries
}

// ValidCompressions defines the allowed compression names.
var ValidCompressions = []string{"none", "zstd"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "substrait-inspect",
		Short: "Inspect, convert and serve serialized query plans",
		// main prints the error once
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := parseCompression(opts.Compression); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Compression, "compression", "none", "envelope compression for written plans (none|zstd)")
	cmd.PersistentFlags().StringSliceVar(&opts.Extensions, "extension", nil, "additional YAML extension file (repeatable)")

	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewRoundTripCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

func parseCompression(name string) (substrait.Compression, error) {
	switch name {
	case "none":
		return substrait.CompressionNone, nil
	case "zstd":
		return substrait.CompressionZstd, nil
	}
	return 0, fmt.Errorf("invalid compression %q: must be one of %v", name, ValidCompressions)
}

// config builds the codec configuration from the global flags. Extension
// files are registered under their file:// URI on top of the default
// library.
func (o *RootOptions) config() (substrait.Config, error) {
	compression, err := parseCompression(o.Compression)
	if err != nil {
		return substrait.Config{}, err
	}
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}

	collection, err := extensions.DefaultCollection()
	if err != nil {
		return substrait.Config{}, err
	}
	for _, path := range o.Extensions {
		extra, err := loadExtension(path)
		if err != nil {
			return substrait.Config{}, err
		}
		if collection, err = collection.Merge(extra); err != nil {
			return substrait.Config{}, fmt.Errorf("extension %s: %w", path, err)
		}
	}

	return substrait.Config{
		Collection:  collection,
		Compression: compression,
		LogLevel:    &level,
	}, nil
}

func loadExtension(path string) (*extensions.Collection, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := extensions.LoadYAML("file://"+filepath.ToSlash(abs), f)
	if err != nil {
		return nil, fmt.Errorf("extension %s: %w", path, err)
	}
	return c, nil
}

func (o *RootOptions) codec() (*substrait.Codec, error) {
	config, err := o.config()
	if err != nil {
		return nil, err
	}
	return substrait.NewCodec(config)
}
