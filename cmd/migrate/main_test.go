package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runMigrate(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidateEmbeddedMigrations(t *testing.T) {
	out, err := runMigrate(t, "validate")
	require.NoError(t, err)
	assert.Equal(t, "7 migrations ok\n", out)
}

func TestCreateThenValidateDirectory(t *testing.T) {
	dir := t.TempDir()
	out, err := runMigrate(t, "create", "add supplier lead times", "--dir", dir)
	require.NoError(t, err)

	path := strings.TrimSpace(out)
	assert.True(t, strings.HasSuffix(path, "_add_supplier_lead_times.sql"))
	_, statErr := os.Stat(filepath.Clean(path))
	require.NoError(t, statErr)

	out, err = runMigrate(t, "validate", "--dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "1 migrations ok\n", out)
}

func TestToRequiresVersionArgument(t *testing.T) {
	_, err := runMigrate(t, "to")
	assert.ErrorContains(t, err, "accepts 1 arg")
}
