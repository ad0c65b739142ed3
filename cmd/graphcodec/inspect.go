package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/oy3o/graphcodec"
)

// InspectResult lists the handles found in a file.
type InspectResult struct {
	Kind    string       `json:"kind" yaml:"kind"` // "handle" | "bundle"
	Handles []HandleInfo `json:"handles" yaml:"handles"`
}

func (r InspectResult) writeText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s with %d handle(s)\n", r.Kind, len(r.Handles)); err != nil {
		return err
	}
	for i, h := range r.Handles {
		if _, err := fmt.Fprintf(w, "\n[%d]\n", i); err != nil {
			return err
		}
		if err := h.writeText(w); err != nil {
			return err
		}
	}
	return nil
}

// NewInspectCommand prints the headers of a handle or bundle file.
func NewInspectCommand(opts *RootOptions) *cobra.Command {
	var decode bool

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show the header of a handle or bundle file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			kind, handles, err := readHandles(f)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			res := InspectResult{Kind: kind}
			var ser *graphcodec.Serializer
			if decode {
				if ser, err = baseSerializer(); err != nil {
					return err
				}
			}
			for _, h := range handles {
				info := describe(h)
				if ser != nil {
					v, err := ser.DeserializeContext(cmd.Context(), h)
					if err != nil {
						return fmt.Errorf("decode handle: %w", err)
					}
					info.Value = v
				}
				res.Handles = append(res.Handles, info)
			}
			return emit(cmd.OutOrStdout(), opts.Format, res)
		},
	}
	cmd.Flags().BoolVar(&decode, "decode", false, "decode values captured with the base table")
	return cmd
}

// readHandles reads a single handle or a bundle, told apart by magic.
func readHandles(r io.Reader) (string, []*graphcodec.Handle, error) {
	pr := graphcodec.PeekReader(r)
	magic, err := pr.Peek(4)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return "", nil, err
	}
	switch string(magic) {
	case "GRPH":
		h, err := graphcodec.ReadHandle(pr)
		if err != nil {
			return "", nil, err
		}
		return "handle", []*graphcodec.Handle{h}, nil
	case "GBDL":
		var b graphcodec.Bundle
		if _, err := b.ReadFrom(pr); err != nil {
			return "", nil, err
		}
		return "bundle", b.Handles, nil
	}
	return "", nil, fmt.Errorf("%w: %q", graphcodec.ErrBadMagic, magic)
}
