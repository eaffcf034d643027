package types

import "errors"

// Config holds store selection and parameters for opening a Store.
type Config struct {
	Backend          string `json:"backend" yaml:"backend"`
	ConnectionString string `json:"connection_string" yaml:"connection_string"`
}

// Supported backend names.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config validation errors.
var (
	ErrBackendEmpty          = errors.New("backend must not be empty")
	ErrBackendUnknown        = errors.New("unknown backend")
	ErrConnectionStringEmpty = errors.New("connection string must not be empty")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite:   true,
	BackendPostgres: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.ConnectionString == "" {
		return ErrConnectionStringEmpty
	}
	return nil
}
