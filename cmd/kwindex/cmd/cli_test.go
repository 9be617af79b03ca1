package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/segmentio/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliRow struct {
	Email string `parquet:"email"`
}

func writeCLISource(t *testing.T, path string, rows []cliRow) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, parquet.Write(&buf, rows))
	adapter := resolveAdapter(path)
	require.NoError(t, adapter.Put(context.Background(), path, bytes.NewReader(buf.Bytes())))
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := NewRootCmd()
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"index", "search", "validate", "index-info", "version"} {
		assert.True(t, names[want], "expected %s subcommand", want)
	}
}

func TestIndexThenSearchThenValidate_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	dataPath := dir + "/data.bin"
	writeCLISource(t, dataPath, []cliRow{{Email: "user@example.com"}})

	indexCmd := NewRootCmd()
	var out bytes.Buffer
	indexCmd.SetOut(&out)
	indexCmd.SetArgs([]string{"index", dataPath})
	require.NoError(t, indexCmd.Execute())
	assert.Contains(t, out.String(), "Built index")

	searchCmd := NewRootCmd()
	var searchOut bytes.Buffer
	searchCmd.SetOut(&searchOut)
	searchCmd.SetArgs([]string{"search", dataPath, "example"})
	require.NoError(t, searchCmd.Execute())
	assert.Contains(t, searchOut.String(), "verified")

	validateCmd := NewRootCmd()
	var validateOut bytes.Buffer
	validateCmd.SetOut(&validateOut)
	validateCmd.SetArgs([]string{"validate", dataPath})
	require.NoError(t, validateCmd.Execute())
	assert.Contains(t, validateOut.String(), "fresh")
}

func TestSearchCmd_NoMatch_ExitsThree(t *testing.T) {
	dir := t.TempDir()
	dataPath := dir + "/data.bin"
	writeCLISource(t, dataPath, []cliRow{{Email: "user@example.com"}})

	indexCmd := NewRootCmd()
	indexCmd.SetOut(&bytes.Buffer{})
	indexCmd.SetArgs([]string{"index", dataPath})
	require.NoError(t, indexCmd.Execute())

	searchCmd := NewRootCmd()
	searchCmd.SetOut(&bytes.Buffer{})
	searchCmd.SetArgs([]string{"search", dataPath, "nonexistent"})
	err := searchCmd.Execute()
	require.Error(t, err)
	assert.Equal(t, 3, ExitCode(err))
}

func TestValidateCmd_MissingIndex_ExitsFive(t *testing.T) {
	dir := t.TempDir()
	dataPath := dir + "/data.bin"
	writeCLISource(t, dataPath, []cliRow{{Email: "user@example.com"}})

	validateCmd := NewRootCmd()
	validateCmd.SetOut(&bytes.Buffer{})
	validateCmd.SetArgs([]string{"validate", dataPath})
	err := validateCmd.Execute()
	require.Error(t, err)
	assert.Equal(t, 5, ExitCode(err))
}

func TestIndexCmd_InvalidFPR_ExitsTwo(t *testing.T) {
	dir := t.TempDir()
	dataPath := dir + "/data.bin"
	writeCLISource(t, dataPath, []cliRow{{Email: "user@example.com"}})

	indexCmd := NewRootCmd()
	indexCmd.SetOut(&bytes.Buffer{})
	indexCmd.SetArgs([]string{"index", dataPath, "--fpr", "1.5"})
	err := indexCmd.Execute()
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))
}
