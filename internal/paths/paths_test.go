package paths

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubUserDirs(t *testing.T, home, config string, err error) {
	t.Helper()
	saved := userDirs
	t.Cleanup(func() { userDirs = saved })
	userDirs.home = func() (string, error) { return home, err }
	userDirs.config = func() (string, error) { return config, err }
}

func TestDefaultConfigDir(t *testing.T) {
	stubUserDirs(t, "/home/ann", "/Users/ann/Library/Application Support", nil)

	if runtime.GOOS != "linux" {
		got, err := DefaultConfigDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/Users/ann/Library/Application Support", "tracker"), got)
		return
	}

	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
	got, err := DefaultConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/xdg-config/tracker", got)

	t.Setenv("XDG_CONFIG_HOME", "")
	got, err = DefaultConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/home/ann/.config/tracker", got)
}

func TestDefaultConfigDirError(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	stubUserDirs(t, "", "", errors.New("no home"))
	_, err := DefaultConfigDir()
	assert.EqualError(t, err, "no home")
}

func TestResolveConfigDir(t *testing.T) {
	stubUserDirs(t, "/home/ann", "/config", nil)
	t.Setenv("XDG_CONFIG_HOME", "")
	cwd, err := os.Getwd()
	require.NoError(t, err)

	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{"flag wins over env", "/explicit/config", "/env/config", "/explicit/config"},
		{"env when no flag", "", "/env/config", "/env/config"},
		{"relative flag is made absolute", "rel/config", "", filepath.Join(cwd, "rel/config")},
		{"relative env is made absolute", "", "rel/env", filepath.Join(cwd, "rel/env")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvConfigDir, tt.env)
			got, err := ResolveConfigDir(tt.flag)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("platform default", func(t *testing.T) {
		t.Setenv(EnvConfigDir, "")
		got, err := ResolveConfigDir("")
		require.NoError(t, err)
		want, err := DefaultConfigDir()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestResolveDataDir(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	tests := []struct {
		name       string
		flag       string
		configured string
		env        string
		want       string
	}{
		{"flag wins over all", "/flag/data", "/config/data", "/env/data", "/flag/data"},
		{"config.yaml wins over env", "", "/config/data", "/env/data", "/config/data"},
		{"env when flag and config empty", "", "", "/env/data", "/env/data"},
		{"working directory default", "", "", "", filepath.Join(cwd, LocalDataDirName)},
		{"relative config value is made absolute", "", "rel/data", "", filepath.Join(cwd, "rel/data")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvDataDir, tt.env)
			got, err := ResolveDataDir(tt.flag, tt.configured)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileLocations(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, "config.yaml"), ConfigFile(dir))
	assert.Equal(t, filepath.Join(dir, "tracker.db"), DatabaseFile(dir))
}
