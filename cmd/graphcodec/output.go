package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/oy3o/graphcodec"
)

// textMarshaler is implemented by results with a human-readable form.
type textMarshaler interface {
	writeText(w io.Writer) error
}

// emit writes v in the selected format.
func emit(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	if t, ok := v.(textMarshaler); ok {
		return t.writeText(w)
	}
	_, err := fmt.Fprintf(w, "%v\n", v)
	return err
}

// HandleInfo is the printable header of a handle.
type HandleInfo struct {
	Fingerprint   string `json:"fingerprint" yaml:"fingerprint"`
	Version       uint16 `json:"version" yaml:"version"`
	StringSharing bool   `json:"string_sharing" yaml:"string_sharing"`
	RootTag       int    `json:"root_tag" yaml:"root_tag"`
	Identities    int    `json:"identities" yaml:"identities"`
	PayloadBytes  int    `json:"payload_bytes" yaml:"payload_bytes"`
	Value         any    `json:"value,omitempty" yaml:"value,omitempty"`
}

func describe(h *graphcodec.Handle) HandleInfo {
	return HandleInfo{
		Fingerprint:   h.Fingerprint().String(),
		Version:       h.Version(),
		StringSharing: h.StringSharing(),
		RootTag:       h.RootTag(),
		Identities:    h.Identities(),
		PayloadBytes:  h.Len(),
	}
}

func (i HandleInfo) writeText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "fingerprint  %s\nversion      %d\nroot tag     %d\nidentities   %d\npayload      %d bytes\nstrings      shared=%t\n",
		i.Fingerprint, i.Version, i.RootTag, i.Identities, i.PayloadBytes, i.StringSharing)
	if err == nil && i.Value != nil {
		_, err = fmt.Fprintf(w, "value        %v\n", i.Value)
	}
	return err
}
