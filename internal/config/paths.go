package config

import (
	"os"
	"path/filepath"
)

const dataDirName = ".ddx-ranking-engine"

// ConfigFileEnv names an explicit config file for the server binaries
const ConfigFileEnv = "DDX_CONFIG_FILE"

// DataDir returns the local data directory. DDX_DATA_DIR overrides the
// default under the user's home.
func DataDir() string {
	if v := os.Getenv("DDX_DATA_DIR"); v != "" {
		return v
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return dataDirName
	}
	return filepath.Join(homeDir, dataDirName)
}

// DefaultAuditDBPath returns the default SQLite audit database path
func DefaultAuditDBPath() string {
	return filepath.Join(DataDir(), "audit.db")
}

// ExportDir returns the directory for audit JSON exports
func ExportDir() string {
	return filepath.Join(DataDir(), "exports")
}

// EnsureDataDir creates the data and export directories if missing
func EnsureDataDir() error {
	if err := os.MkdirAll(DataDir(), 0755); err != nil {
		return err
	}
	return os.MkdirAll(ExportDir(), 0755)
}
