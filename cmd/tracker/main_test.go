package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tracker/internal/catalog"
	"github.com/mesh-intelligence/tracker/internal/paths"
	"github.com/mesh-intelligence/tracker/pkg/types"
)

// testEnv runs the CLI in-process against isolated config and data dirs.
type testEnv struct {
	t         *testing.T
	configDir string
	dataDir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	for _, key := range []string{"TRACKER_BACKEND", "TRACKER_CONNECTION_STRINGS_SQLCON", "TRACKER_DATA_DIR", "TRACKER_LOG_LEVEL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	dir := t.TempDir()
	return &testEnv{
		t:         t,
		configDir: filepath.Join(dir, "config"),
		dataDir:   filepath.Join(dir, "data"),
	}
}

func (env *testEnv) run(args ...string) (string, error) {
	env.t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config-dir", env.configDir, "--data-dir", env.dataDir}, args...))
	err := root.Execute()
	return out.String(), err
}

func (env *testEnv) mustRun(args ...string) string {
	env.t.Helper()
	out, err := env.run(args...)
	require.NoError(env.t, err, "tracker %s", strings.Join(args, " "))
	return out
}

func TestInit(t *testing.T) {
	env := newTestEnv(t)
	out := env.mustRun("init")
	assert.Contains(t, out, "tracker initialized")

	_, err := os.Stat(paths.ConfigFile(env.configDir))
	assert.NoError(t, err, "config.yaml written")
	_, err = os.Stat(paths.DatabaseFile(env.dataDir))
	assert.NoError(t, err, "database created")

	out = env.mustRun("--json", "init")
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, types.BackendSQLite, got["backend"])
	assert.Equal(t, env.dataDir, got["data"])
}

func TestDemo(t *testing.T) {
	env := newTestEnv(t)
	out := env.mustRun("demo")
	assert.Contains(t, out, "persisted 3 entities")
	assert.Contains(t, out, "1\tCategory 1")
	assert.Contains(t, out, "Product 2\t200.00")

	out = env.mustRun("--json", "demo")
	var c catalog.Category
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.Equal(t, int64(2), c.ID)
	require.Len(t, c.Products, 2)
	assert.Equal(t, c.ID, c.Products[0].CategoryID)
}

func TestCategoryAndProductCommands(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun("category", "add", "Office")
	assert.Equal(t, "added category 1\n", out)
	out = env.mustRun("product", "add", "1", "Pen", "3.50", "--discount", "0.50")
	assert.Equal(t, "added product 1\n", out)
	env.mustRun("product", "add", "1", "Ink", "9")

	out = env.mustRun("product", "list", "--category", "1")
	assert.Contains(t, out, "1\tPen\t3.50\tcategory 1")
	assert.Contains(t, out, "2\tInk\t9.00\tcategory 1")

	out = env.mustRun("product", "rename", "1", "Pencil")
	assert.Equal(t, "renamed product 1\n", out)

	env.mustRun("product", "soft-delete", "2")
	out = env.mustRun("product", "list")
	assert.Contains(t, out, "Pencil")
	assert.NotContains(t, out, "Ink")
	out = env.mustRun("product", "list", "--all")
	assert.Contains(t, out, "Ink\t9.00\tcategory 1\t(deleted)")

	out = env.mustRun("--json", "category", "list")
	var categories []catalog.Category
	require.NoError(t, json.Unmarshal([]byte(out), &categories))
	require.Len(t, categories, 1)
	require.Len(t, categories[0].Products, 1)
	assert.Equal(t, "Pencil", categories[0].Products[0].Name)

	out = env.mustRun("product", "delete", "2")
	assert.Equal(t, "deleted product 2\n", out)
	_, err := env.run("product", "rename", "2", "Gone")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	env.mustRun("category", "delete", "1")
	out = env.mustRun("product", "list", "--all")
	assert.Empty(t, out)
}

func TestCommandErrors(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("category", "add", "Office")

	tests := []struct {
		name string
		args []string
		want error
		code int
	}{
		{"discount above price", []string{"product", "add", "1", "Cheap", "1", "--discount", "5"}, types.ErrConstraintViolation, exitUserError},
		{"missing category", []string{"product", "add", "9", "Pen", "1"}, catalog.ErrNotFound, exitUserError},
		{"bad id", []string{"category", "delete", "abc"}, errUsage, exitUserError},
		{"bad price", []string{"product", "add", "1", "Pen", "cheap"}, errUsage, exitUserError},
		{"unknown category", []string{"category", "delete", "42"}, catalog.ErrNotFound, exitUserError},
		{"bad log level", []string{"--log-level", "LOUD", "category", "list"}, errUsage, exitUserError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.run(tt.args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.code, exitCode(err))
		})
	}
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t)
	out := env.mustRun("version")
	assert.Equal(t, fmt.Sprintf("tracker v%s\nmodule: %s\n", version, modulePath), out)
	_, err := os.Stat(env.configDir)
	assert.True(t, os.IsNotExist(err), "version does not touch the config dir")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, exitSuccess},
		{fmt.Errorf("wrapped: %w", errUsage), exitUserError},
		{&types.ConcurrencyConflictError{Table: "products", Op: types.OpUpdate}, exitUserError},
		{types.ErrBackendUnknown, exitUserError},
		{types.ErrBackendEmpty, exitUserError},
		{errors.New("disk full"), exitSysError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.err), "%v", tt.err)
	}
}
