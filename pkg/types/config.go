package types

import (
	"errors"
	"path/filepath"
)

// Default configuration values.
const (
	DefaultMaxUploadBytes int64 = 1 << 20
	DefaultAppVersion           = "1.0"
)

// Names of the entries below Config.DataDir.
const (
	StoreDirName   = "store"
	DatabaseName   = "database.db"
	UploadsDirName = "uploads"
	BackupsDirName = "backups"
	KeepMarkerName = ".keep"
)

// Config holds the data location and limits used to open a catalog.
type Config struct {
	DataDir        string `json:"data_dir" yaml:"data_dir"`
	MaxUploadBytes int64  `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	AppVersion     string `json:"app_version" yaml:"app_version"`
}

// Config validation errors.
var (
	ErrDataDirEmpty     = errors.New("data directory must not be empty")
	ErrMaxUploadInvalid = errors.New("max upload bytes must not be negative")
)

// Validate checks that the Config is well-formed.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return ErrDataDirEmpty
	}
	if c.MaxUploadBytes < 0 {
		return ErrMaxUploadInvalid
	}
	return nil
}

// UploadLimit returns MaxUploadBytes, or the default when unset.
func (c Config) UploadLimit() int64 {
	if c.MaxUploadBytes == 0 {
		return DefaultMaxUploadBytes
	}
	return c.MaxUploadBytes
}

// Version returns AppVersion, or the default when unset.
func (c Config) Version() string {
	if c.AppVersion == "" {
		return DefaultAppVersion
	}
	return c.AppVersion
}

// StoreDir is the directory holding the live database and the uploads
// directory. Restore replaces it as a whole.
func (c Config) StoreDir() string {
	return filepath.Join(c.DataDir, StoreDirName)
}

// DatabasePath is the live SQLite database file.
func (c Config) DatabasePath() string {
	return filepath.Join(c.StoreDir(), DatabaseName)
}

// UploadsDir is the flat blob directory.
func (c Config) UploadsDir() string {
	return filepath.Join(c.StoreDir(), UploadsDirName)
}

// BackupsDir receives safety archives written before a restore.
func (c Config) BackupsDir() string {
	return filepath.Join(c.DataDir, BackupsDirName)
}
