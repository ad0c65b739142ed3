package main

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/oy3o/graphcodec"
)

// RootOptions holds the global flags.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json" | "yaml"
	DB      string
}

// ValidFormats lists the accepted --format values.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "graphcodec",
		Short:         "Inspect and store captured object graphs",
		Long:          "graphcodec reads handle and bundle files, captures plain data as handles and keeps handles in a SQLite store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "graphcodec.db", "path to the handle store")

	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewCaptureCommand(opts))
	cmd.AddCommand(NewStoreCommand(opts))
	return cmd
}

// baseSerializer uses the table of scalar types and untyped containers,
// which is all the CLI can materialize without application bindings.
func baseSerializer(opts ...graphcodec.Option) (*graphcodec.Serializer, error) {
	b, err := graphcodec.BaseTypes(graphcodec.NewBindings()).Build()
	if err != nil {
		return nil, err
	}
	opts = append([]graphcodec.Option{graphcodec.WithLogger(slog.Default())}, opts...)
	return graphcodec.NewSerializer(b, opts...), nil
}
