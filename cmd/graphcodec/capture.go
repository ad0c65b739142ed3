package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oy3o/graphcodec"
)

// NewCaptureCommand turns a YAML or JSON document into a handle file.
func NewCaptureCommand(opts *RootOptions) *cobra.Command {
	var (
		output string
		share  bool
	)

	cmd := &cobra.Command{
		Use:   "capture <document>",
		Short: "Capture a YAML or JSON document as a handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			// JSON is a subset of YAML, one decoder covers both.
			var doc any
			if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			var serOpts []graphcodec.Option
			if share {
				serOpts = append(serOpts, graphcodec.WithStringSharing())
			}
			ser, err := baseSerializer(serOpts...)
			if err != nil {
				return err
			}
			h, err := ser.SerializeContext(cmd.Context(), doc)
			if err != nil {
				return fmt.Errorf("capture: %w", err)
			}

			if output == "" {
				output = args[0] + ".grph"
			}
			bin, err := h.MarshalBinary()
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, bin, 0o644); err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts.Format, describe(h))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "handle file to write (default <document>.grph)")
	cmd.Flags().BoolVar(&share, "share-strings", false, "store repeated strings once")
	return cmd
}
