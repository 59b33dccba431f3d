package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/midishelf/internal/shelf"
	"github.com/mesh-intelligence/midishelf/pkg/types"
)

func (a *app) newBackupCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write the database and every uploaded file to a backup archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = "midishelf_backup_" + time.Now().Format(stampLayout) + ".zip"
			}
			return a.withShelf(func(s *shelf.Shelf) error {
				f, finish, err := createOutput(out)
				if err != nil {
					return err
				}
				info, err := s.Backup(cmd.Context(), f)
				if err := finish(err); err != nil {
					return err
				}
				if a.jsonMode {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"path": out, "info": info})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Backed up %d songs to %s\n", info.SongCount, out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "archive path (default: midishelf_backup_<timestamp>.zip)")
	return cmd
}

func (a *app) newRestoreCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "restore <archive.zip> --yes",
		Short: "Replace the whole catalog with a backup archive",
		Long: `Replace the database and every uploaded file with the contents of a
backup archive. The archive is checked first. The current state is saved
to backups/safety_backup_<timestamp>.zip under the data directory before
anything is replaced. --yes is required.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
			}
			defer f.Close()

			return a.withShelf(func(s *shelf.Shelf) error {
				res, err := s.Restore(cmd.Context(), f, yes)
				if err != nil {
					return err
				}
				if a.jsonMode {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Restored %d songs and %d files\n", res.SongCount, res.BlobCount)
				if res.SafetyArchive != "" {
					fmt.Fprintf(w, "Previous state saved to %s\n", res.SafetyArchive)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm replacing the current catalog")
	return cmd
}
