package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/tracker/internal/paths"
	"github.com/mesh-intelligence/tracker/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "TRACKER"

	cfgKeyBackend  = "backend"
	cfgKeySQLCon   = "connection_strings.sqlcon"
	cfgKeyDataDir  = "data_dir"
	cfgKeyLogLevel = "log_level"

	defaultBackend  = types.BackendSQLite
	defaultLogLevel = "WARNING"
)

// configFile is the structure written to a new config.yaml.
type configFile struct {
	Backend           string            `yaml:"backend"`
	ConnectionStrings map[string]string `yaml:"connection_strings"`
	DataDir           string            `yaml:"data_dir,omitempty"`
	LogLevel          string            `yaml:"log_level"`
}

// loadConfig reads config.yaml from configDir, writing a default one first
// when missing. TRACKER_* environment variables override file values, e.g.
// TRACKER_CONNECTION_STRINGS_SQLCON.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if _, err := writeConfigIfMissing(paths.ConfigFile(configDir)); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, defaultBackend)
	v.SetDefault(cfgKeySQLCon, "")
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// writeConfigIfMissing creates config.yaml with default values and reports
// whether it wrote the file. An existing file is left alone.
func writeConfigIfMissing(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	cfg := configFile{
		Backend:           defaultBackend,
		ConnectionStrings: map[string]string{"sqlcon": ""},
		LogLevel:          defaultLogLevel,
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// storeConfig builds the store configuration. An empty SQLite connection
// string selects the database file in dataDir.
func storeConfig(v *viper.Viper, dataDir string) types.Config {
	cfg := types.Config{
		Backend:          v.GetString(cfgKeyBackend),
		ConnectionString: v.GetString(cfgKeySQLCon),
	}
	if cfg.ConnectionString == "" && cfg.Backend == types.BackendSQLite {
		cfg.ConnectionString = paths.DatabaseFile(dataDir)
	}
	return cfg
}
