package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/auden/internal/config"
	"github.com/dshills/auden/pkg/auden"
	"github.com/dshills/auden/pkg/types"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetOut(nil) })
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestIndexCommand_FinishesPassBeforeExit(t *testing.T) {
	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvDataDir, t.TempDir())
	t.Setenv(config.EnvEmbeddingProvider, "local")

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))

	out := execute(t, "index", "--quiet", root)
	assert.Contains(t, out, string(types.StateCompleted))

	// a fresh process sees the finished pass, not a cancelled one
	var status auden.Status
	require.NoError(t, json.Unmarshal([]byte(execute(t, "status", root)), &status))
	assert.Equal(t, types.StateCompleted, status.State)
	assert.Equal(t, int64(0), status.Outstanding)
}
