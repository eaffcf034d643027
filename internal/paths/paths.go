// Package paths locates the files of the tracker CLI: config.yaml in the
// config directory and the catalog database, tracker.db, in the data
// directory. Each directory comes from a flag, then the environment, then a
// per-user or working-directory default.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "tracker"

// Environment variables naming the directories.
const (
	EnvConfigDir = "TRACKER_CONFIG_DIR"
	EnvDataDir   = "TRACKER_DATA_DIR"
)

const (
	ConfigFileName   = "config.yaml"
	DatabaseFileName = "tracker.db"
	// LocalDataDirName is the data directory, under the working directory,
	// used when nothing else names one.
	LocalDataDirName = ".tracker-db"
)

// userDirs is replaced in tests.
var userDirs = struct {
	home   func() (string, error)
	config func() (string, error)
}{
	home:   os.UserHomeDir,
	config: os.UserConfigDir,
}

// DefaultConfigDir returns the per-user config directory: the XDG config
// home on Linux, os.UserConfigDir elsewhere, with a tracker subdirectory.
func DefaultConfigDir() (string, error) {
	if runtime.GOOS != "linux" {
		dir, err := userDirs.config()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appName), nil
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := userDirs.home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

// ResolveConfigDir returns the absolute config directory named by flag or
// TRACKER_CONFIG_DIR, falling back to DefaultConfigDir.
func ResolveConfigDir(flag string) (string, error) {
	if dir := firstSet(flag, os.Getenv(EnvConfigDir)); dir != "" {
		return filepath.Abs(dir)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the absolute directory of tracker.db. The flag
// wins, then the data_dir value of config.yaml, then TRACKER_DATA_DIR, then
// LocalDataDirName in the working directory.
func ResolveDataDir(flag, configured string) (string, error) {
	if dir := firstSet(flag, configured, os.Getenv(EnvDataDir)); dir != "" {
		return filepath.Abs(dir)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, LocalDataDirName), nil
}

// ConfigFile returns the path of config.yaml in configDir.
func ConfigFile(configDir string) string {
	return filepath.Join(configDir, ConfigFileName)
}

// DatabaseFile returns the SQLite connection string used when config.yaml
// names none.
func DatabaseFile(dataDir string) string {
	return filepath.Join(dataDir, DatabaseFileName)
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
