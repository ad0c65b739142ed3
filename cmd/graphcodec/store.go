package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/oy3o/graphcodec"
	"github.com/oy3o/graphcodec/handlestore"
)

// EntryList is the output of store ls.
type EntryList struct {
	Handles []handlestore.Entry `json:"handles" yaml:"handles"`
}

func (l EntryList) writeText(w io.Writer) error {
	for _, e := range l.Handles {
		if _, err := fmt.Fprintf(w, "%s  %s  root=%d ids=%d %dB  %s\n",
			e.ID, e.Fingerprint, e.RootTag, e.Identities, e.Size, e.CreatedAt.Format("2006-01-02T15:04:05Z")); err != nil {
			return err
		}
	}
	return nil
}

// IDList is the output of store put.
type IDList struct {
	IDs []string `json:"ids" yaml:"ids"`
}

func (l IDList) writeText(w io.Writer) error {
	for _, id := range l.IDs {
		if _, err := fmt.Fprintln(w, id); err != nil {
			return err
		}
	}
	return nil
}

// NewStoreCommand groups the handle store subcommands.
func NewStoreCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage the SQLite handle store",
	}
	cmd.AddCommand(newStorePutCommand(opts))
	cmd.AddCommand(newStoreGetCommand(opts))
	cmd.AddCommand(newStoreListCommand(opts))
	cmd.AddCommand(newStoreRemoveCommand(opts))
	cmd.AddCommand(newStoreExportCommand(opts))
	return cmd
}

func withStore(opts *RootOptions, fn func(*handlestore.Store) error) error {
	s, err := handlestore.Open(opts.DB)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func newStorePutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "put <file>...",
		Short: "Add every handle in the given handle or bundle files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(s *handlestore.Store) error {
				var out IDList
				for _, path := range args {
					f, err := os.Open(path)
					if err != nil {
						return err
					}
					_, handles, err := readHandles(f)
					f.Close()
					if err != nil {
						return fmt.Errorf("read %s: %w", path, err)
					}
					for _, h := range handles {
						id, err := s.Put(cmd.Context(), h)
						if err != nil {
							return err
						}
						out.IDs = append(out.IDs, id)
					}
				}
				return emit(cmd.OutOrStdout(), opts.Format, out)
			})
		},
	}
}

func newStoreGetCommand(opts *RootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Write a stored handle to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(s *handlestore.Store) error {
				h, err := s.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if output == "" {
					return emit(cmd.OutOrStdout(), opts.Format, describe(h))
				}
				return writeCodec(output, h)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write the handle to (prints the header when empty)")
	return cmd
}

func newStoreListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List stored handles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(s *handlestore.Store) error {
				entries, err := s.List(cmd.Context())
				if err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), opts.Format, EntryList{Handles: entries})
			})
		},
	}
}

func newStoreRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"delete"},
		Short:   "Remove stored handles",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(s *handlestore.Store) error {
				for _, id := range args {
					if err := s.Delete(cmd.Context(), id); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newStoreExportCommand(opts *RootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every stored handle into one bundle file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(s *handlestore.Store) error {
				b, err := s.Bundle(cmd.Context())
				if err != nil {
					return err
				}
				return writeCodec(output, b)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "handles.gbdl", "bundle file to write")
	return cmd
}

func writeCodec(path string, c graphcodec.Codec) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := c.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
