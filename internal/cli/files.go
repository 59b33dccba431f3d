package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/midishelf/internal/midi"
	"github.com/mesh-intelligence/midishelf/internal/shelf"
	"github.com/mesh-intelligence/midishelf/pkg/types"
)

// stampLayout timestamps default archive names.
const stampLayout = "20060102_150405"

func (a *app) newTracksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tracks <file.mid>",
		Short: "Print the instrument track names of a MIDI file",
		Long: `Print the names of the musical tracks of a MIDI file, the same names
add would record. A file that cannot be parsed has no tracks.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info := midi.NewExtractor(a.log).Inspect(args[0])
			if a.jsonMode {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Tracks: %d  Resolution: %d ticks/quarter\n", info.TrackCount, info.TicksPerQuarter)
			for i, name := range info.TrackNames {
				fmt.Fprintf(w, "  %d. %s\n", i+1, name)
			}
			return nil
		},
	}
}

func (a *app) newRetrackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retrack",
		Short: "Re-read the track names of every stored MIDI file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withShelf(func(s *shelf.Shelf) error {
				n, err := s.Retrack(cmd.Context())
				if err != nil {
					return err
				}
				if a.jsonMode {
					return writeJSON(cmd.OutOrStdout(), map[string]int{"songs": n})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Refreshed track names of %d songs\n", n)
				return nil
			})
		},
	}
}

func (a *app) newDownloadCmd() *cobra.Command {
	var kindName, outDir string
	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Copy one of a song's files out under its display name",
		Long: `Copy one of a song's files into a directory. The copy is named
"{number}{role} - {name}[ - {artist}][ - v{version}].{ext}".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := types.ParseBlobKind(kindName)
			if err != nil {
				return err
			}
			return a.withShelf(func(s *shelf.Shelf) error {
				src, name, err := s.OpenFile(cmd.Context(), args[0], kind)
				if err != nil {
					return err
				}
				dest := filepath.Join(outDir, safeFileName(name))
				if err := copyFile(src, dest); err != nil {
					return err
				}
				if a.jsonMode {
					return writeJSON(cmd.OutOrStdout(), map[string]string{"path": dest})
				}
				fmt.Fprintln(cmd.OutOrStdout(), dest)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kindName, "kind", string(types.BlobMIDI), "file kind: midi, source or lyric")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "destination directory")
	return cmd
}

func (a *app) newExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every MIDI and lyric file to one zip under display names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = "midishelf_collection_" + time.Now().Format(stampLayout) + ".zip"
			}
			return a.withShelf(func(s *shelf.Shelf) error {
				f, finish, err := createOutput(out)
				if err != nil {
					return err
				}
				n, err := s.Export(cmd.Context(), f)
				if err := finish(err); err != nil {
					return err
				}
				if a.jsonMode {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"path": out, "files": n})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d files to %s\n", n, out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "archive path (default: midishelf_collection_<timestamp>.zip)")
	return cmd
}

// copyFile copies src to dest, replacing dest.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrStorage, err)
	}
	defer in.Close()

	out, finish, err := createOutput(dest)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	return finish(err)
}
