package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/midishelf/internal/shelf"
	"github.com/mesh-intelligence/midishelf/pkg/types"
)

func (a *app) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the configuration and the data directory",
		Long:  "Write a default config.yaml if none exists, then create the song\ndatabase and the uploads directory.",
		Args:  cobra.NoArgs,
		RunE:  a.runInit,
	}
}

func (a *app) runInit(cmd *cobra.Command, _ []string) error {
	written, err := writeConfigIfMissing(a.configPath, configFile{
		DataDir:        a.dataDir,
		MaxUploadBytes: types.DefaultMaxUploadBytes,
		AppVersion:     types.DefaultAppVersion,
		LogLevel:       defaultLogLevel,
	})
	if err != nil {
		return err
	}
	if written {
		a.log.Debug("config written", "path", a.configPath)
	}

	var dataDir string
	err = a.withShelf(func(s *shelf.Shelf) error {
		dataDir = s.Config().DataDir
		return nil
	})
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}

	if a.jsonMode {
		return writeJSON(cmd.OutOrStdout(), map[string]string{
			"config":   a.configPath,
			"data_dir": dataDir,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Shelf initialized in %s\n", dataDir)
	if _, err := os.Stat(a.configPath); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Config: %s\n", a.configPath)
	}
	return nil
}
