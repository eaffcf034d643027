package types

import (
	"errors"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:    "empty backend returns ErrBackendEmpty",
			config:  Config{Backend: "", ConnectionString: "file:tracker.db"},
			wantErr: ErrBackendEmpty,
		},
		{
			name:    "unknown backend returns ErrBackendUnknown",
			config:  Config{Backend: "mssql", ConnectionString: "server=localhost"},
			wantErr: ErrBackendUnknown,
		},
		{
			name:    "missing connection string returns ErrConnectionStringEmpty",
			config:  Config{Backend: "sqlite"},
			wantErr: ErrConnectionStringEmpty,
		},
		{
			name:    "valid sqlite config",
			config:  Config{Backend: "sqlite", ConnectionString: "/tmp/tracker.db"},
			wantErr: nil,
		},
		{
			name:    "valid postgres config",
			config:  Config{Backend: "postgres", ConnectionString: "postgres://localhost/tracker"},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %v, got nil", tt.wantErr)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}
