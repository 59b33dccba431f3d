package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mesh-intelligence/midishelf/internal/shelf"
	"github.com/mesh-intelligence/midishelf/pkg/types"
)

// songFlags are the metadata and file flags shared by add and edit.
type songFlags struct {
	name    string
	artist  string
	version string
	notes   string
	by      string
	midi    string
	source  string
	lyric   string
}

func (f *songFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "song name")
	fs.StringVar(&f.artist, "artist", "", "artist")
	fs.StringVar(&f.version, "version", "", "arrangement version")
	fs.StringVar(&f.notes, "notes", "", "free-form notes")
	fs.StringVar(&f.by, "by", "", "uploader role (D, M or J)")
	fs.StringVar(&f.midi, "midi", "", "MIDI file (.mid, .midi)")
	fs.StringVar(&f.source, "source", "", "notation source file (.musz)")
	fs.StringVar(&f.lyric, "lyric", "", "lyric file (.lrc)")
}

// input returns base with every flag that was set on the command line
// applied over it.
func (f *songFlags) input(fs *pflag.FlagSet, base types.SongInput) types.SongInput {
	set := func(flag string, dst *string, v string) {
		if fs.Changed(flag) {
			*dst = v
		}
	}
	set("name", &base.Name, f.name)
	set("artist", &base.Artist, f.artist)
	set("version", &base.Version, f.version)
	set("notes", &base.Notes, f.notes)
	set("by", &base.UploadedBy, strings.ToUpper(f.by))
	return base
}

func (f *songFlags) uploads(files *uploadFiles) (shelf.Uploads, error) {
	var up shelf.Uploads
	var err error
	if up.MIDI, err = files.open(f.midi); err != nil {
		return up, err
	}
	if up.Source, err = files.open(f.source); err != nil {
		return up, err
	}
	if up.Lyric, err = files.open(f.lyric); err != nil {
		return up, err
	}
	return up, nil
}

func (a *app) newAddCmd() *cobra.Command {
	var f songFlags
	cmd := &cobra.Command{
		Use:   "add --name <name> --by <role> --midi <file>",
		Short: "Add a song",
		Long: `Add a song with its MIDI file and optional notation source and lyrics.
Track names are read from the MIDI file.

Example:
  shelf add --name "Moon River" --artist Mancini --by D --midi moon.mid --lyric moon.lrc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var files uploadFiles
			defer files.Close()
			up, err := f.uploads(&files)
			if err != nil {
				return err
			}
			in := f.input(cmd.Flags(), types.SongInput{})

			return a.withShelf(func(s *shelf.Shelf) error {
				id, err := s.CreateSong(cmd.Context(), in, up)
				if err != nil {
					return err
				}
				return a.printSong(cmd, s, id)
			})
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func (a *app) newEditCmd() *cobra.Command {
	var f songFlags
	var drop shelf.Clear
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a song's metadata or files",
		Long: `Change a song. Only the flags given are applied; other fields keep
their values. A new file replaces the old one of the same kind.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			var files uploadFiles
			defer files.Close()
			up, err := f.uploads(&files)
			if err != nil {
				return err
			}

			return a.withShelf(func(s *shelf.Shelf) error {
				song, err := s.GetSong(cmd.Context(), id)
				if err != nil {
					return err
				}
				in := f.input(cmd.Flags(), types.SongInput{
					Name:       song.Name,
					Artist:     song.Artist,
					Version:    song.Version,
					Notes:      song.Notes,
					UploadedBy: song.UploadedBy,
				})
				if err := s.UpdateSong(cmd.Context(), id, in, up, drop); err != nil {
					return err
				}
				return a.printSong(cmd, s, id)
			})
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().BoolVar(&drop.MIDI, "clear-midi", false, "remove the MIDI file")
	cmd.Flags().BoolVar(&drop.Source, "clear-source", false, "remove the notation source file")
	cmd.Flags().BoolVar(&drop.Lyric, "clear-lyric", false, "remove the lyric file")
	return cmd
}

func (a *app) newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a song and its files",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return a.withShelf(func(s *shelf.Shelf) error {
				if err := s.DeleteSong(cmd.Context(), id); err != nil {
					return err
				}
				if a.jsonMode {
					return writeJSON(cmd.OutOrStdout(), map[string]string{"deleted": id})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
				return nil
			})
		},
	}
}

func (a *app) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List songs in upload order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withShelf(func(s *shelf.Shelf) error {
				songs, err := s.ListSongs(cmd.Context())
				if err != nil {
					return err
				}
				if a.jsonMode {
					return writeJSON(cmd.OutOrStdout(), songs)
				}
				if len(songs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No songs.")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "#\tNAME\tARTIST\tVERSION\tFILES\tTRACKS\tID")
				for _, song := range songs {
					fmt.Fprintf(tw, "%03d%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
						song.FaceID, song.UploadedBy, song.Name, song.Artist, song.Version,
						fileKinds(&song.Song), strings.Join(song.TrackNames, ", "), song.SongID)
				}
				return tw.Flush()
			})
		},
	}
}

func (a *app) newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Display a song with full details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withShelf(func(s *shelf.Shelf) error {
				return a.printSong(cmd, s, args[0])
			})
		},
	}
}

// printSong prints the listed form of song id so the face id is shown.
func (a *app) printSong(cmd *cobra.Command, s *shelf.Shelf, id string) error {
	songs, err := s.ListSongs(cmd.Context())
	if err != nil {
		return err
	}
	for _, song := range songs {
		if song.SongID != id {
			continue
		}
		if a.jsonMode {
			return writeJSON(cmd.OutOrStdout(), song)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "ID:        %s\n", song.SongID)
		fmt.Fprintf(w, "Number:    %03d%s\n", song.FaceID, song.UploadedBy)
		fmt.Fprintf(w, "Name:      %s\n", song.Name)
		if song.Artist != "" {
			fmt.Fprintf(w, "Artist:    %s\n", song.Artist)
		}
		if song.Version != "" {
			fmt.Fprintf(w, "Version:   %s\n", song.Version)
		}
		if song.Notes != "" {
			fmt.Fprintf(w, "Notes:     %s\n", song.Notes)
		}
		fmt.Fprintf(w, "Uploaded:  %s\n", song.UploadedAt.Local().Format("2006-01-02 15:04:05"))
		for _, kind := range types.BlobKinds {
			if song.File(kind) != "" {
				fmt.Fprintf(w, "File:      %s\n", song.DownloadName(kind))
			}
		}
		if len(song.TrackNames) > 0 {
			fmt.Fprintln(w, "\nTracks:")
			for i, name := range song.TrackNames {
				fmt.Fprintf(w, "  %d. %s\n", i+1, name)
			}
		}
		return nil
	}
	return fmt.Errorf("song %s: %w", id, types.ErrNotFound)
}

// fileKinds lists the kinds of file a song has, e.g. "midi,lyric".
func fileKinds(song *types.Song) string {
	var kinds []string
	for _, kind := range types.BlobKinds {
		if song.File(kind) != "" {
			kinds = append(kinds, string(kind))
		}
	}
	return strings.Join(kinds, ",")
}
