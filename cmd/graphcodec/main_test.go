package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "graphcodec", cmd.Use)

	for _, path := range [][]string{{"inspect"}, {"capture"}, {"store", "put"}, {"store", "get"}, {"store", "ls"}, {"store", "rm"}, {"store", "export"}} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err, "command %v should exist", path)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, "--format", "xml", "store", "ls")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestCaptureInspectStore(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "doc.yaml")
	require.NoError(t, os.WriteFile(doc, []byte("name: demo\ntags: [a, b, a]\ncount: 3\n"), 0o644))
	handle := filepath.Join(dir, "doc.grph")
	db := filepath.Join(dir, "handles.db")

	_, err := run(t, "capture", doc, "-o", handle, "--share-strings")
	require.NoError(t, err)

	out, err := run(t, "--format", "json", "inspect", "--decode", handle)
	require.NoError(t, err)
	var res InspectResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "handle", res.Kind)
	require.Len(t, res.Handles, 1)
	assert.True(t, res.Handles[0].StringSharing)
	assert.Equal(t, 1, res.Handles[0].Identities)
	assert.Equal(t, map[string]any{
		"name":  "demo",
		"tags":  []any{"a", "b", "a"},
		"count": float64(3),
	}, res.Handles[0].Value)

	out, err = run(t, "--db", db, "store", "put", handle)
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	assert.Len(t, id, 64)

	out, err = run(t, "--db", db, "--format", "yaml", "store", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, id)

	bundle := filepath.Join(dir, "all.gbdl")
	_, err = run(t, "--db", db, "store", "export", "-o", bundle)
	require.NoError(t, err)

	out, err = run(t, "inspect", bundle)
	require.NoError(t, err)
	assert.Contains(t, out, "bundle with 1 handle(s)")

	_, err = run(t, "--db", db, "store", "rm", id)
	require.NoError(t, err)
	_, err = run(t, "--db", db, "store", "get", id)
	require.Error(t, err)
}

func TestInspectRejectsUnknownFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.bin")
	require.NoError(t, os.WriteFile(path, []byte("JUNKJUNK"), 0o644))
	_, err := run(t, "inspect", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad handle magic")
}
