package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/midishelf/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyDataDir    = "data_dir"
	cfgKeyMaxUpload  = "max_upload_bytes"
	cfgKeyAppVersion = "app_version"
	cfgKeyLogLevel   = "log_level"

	defaultLogLevel = "warn"

	// envLogLevel overrides log_level from config.yaml.
	envLogLevel = "MIDISHELF_LOG_LEVEL"
)

// configFile is the structure written to config.yaml by init.
type configFile struct {
	DataDir        string `yaml:"data_dir,omitempty"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	AppVersion     string `yaml:"app_version"`
	LogLevel       string `yaml:"log_level"`
}

func configPath(configDir string) string {
	return filepath.Join(configDir, configFileExt)
}

// loadConfig reads config.yaml from configDir. A missing directory or file
// is not an error; the defaults apply.
func loadConfig(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyMaxUpload, types.DefaultMaxUploadBytes)
	v.SetDefault(cfgKeyAppVersion, types.DefaultAppVersion)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	if err := v.BindEnv(cfgKeyLogLevel, envLogLevel); err != nil {
		return nil, fmt.Errorf("bind %s: %w", envLogLevel, err)
	}

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("%w: read config: %w", types.ErrInvalidInput, err)
	}
	return v, nil
}

// writeConfigIfMissing creates config.yaml with cfg. An existing file is
// left alone; the return value reports whether a file was written.
func writeConfigIfMissing(path string, cfg configFile) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}
