package shelf

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/midishelf/internal/midi/miditest"
	"github.com/mesh-intelligence/midishelf/pkg/types"
)

// fixedNow is the clock used by test shelves.
var fixedNow = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

// newShelf opens a Shelf on a fresh data directory and closes it when the
// test ends.
func newShelf(t *testing.T) *Shelf {
	t.Helper()
	return openShelf(t, types.Config{DataDir: t.TempDir()})
}

func openShelf(t *testing.T, config types.Config) *Shelf {
	t.Helper()
	s, err := Open(config, Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// midiBytes returns a two-instrument file behind a conductor track.
func midiBytes() []byte {
	return miditest.Bytes(
		(&miditest.Track{}).Tempo().Meter(),
		(&miditest.Track{}).Name("Piano").Note(60),
		(&miditest.Track{}).Note(64),
	)
}

func midiUpload() *Upload {
	return &Upload{Name: "song.mid", Body: bytes.NewReader(midiBytes())}
}

func textUpload(name, body string) *Upload {
	return &Upload{Name: name, Body: strings.NewReader(body)}
}

func input(name string) types.SongInput {
	return types.SongInput{Name: name, UploadedBy: types.RoleD}
}

// createSong adds a song with MIDI and lyric files.
func createSong(t *testing.T, s *Shelf, name string) string {
	t.Helper()
	id, err := s.CreateSong(context.Background(), input(name), Uploads{
		MIDI:  midiUpload(),
		Lyric: textUpload("words.lrc", "[00:01]"+name),
	})
	require.NoError(t, err)
	return id
}

// dirState captures every regular file below dir, keyed by relative path.
func dirState(t *testing.T, dir string) map[string]string {
	t.Helper()
	state := map[string]string{}
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		state[rel] = string(data)
		return nil
	})
	require.NoError(t, err)
	return state
}

// blobFiles returns the blob names currently in the uploads directory.
func blobFiles(t *testing.T, s *Shelf) []string {
	t.Helper()
	names, err := s.blobs.List()
	require.NoError(t, err)
	return names
}

// fakeExtractor returns fixed names and records the paths it saw.
type fakeExtractor struct {
	mu    sync.Mutex
	names []string
	seen  []string
}

func (f *fakeExtractor) TrackNames(path string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, path)
	return f.names
}
