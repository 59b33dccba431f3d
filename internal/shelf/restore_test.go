package shelf

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/midishelf/internal/archive"
	"github.com/mesh-intelligence/midishelf/internal/sqlite"
	"github.com/mesh-intelligence/midishelf/pkg/types"
)

// zipBytes builds an archive from name/content pairs.
func zipBytes(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// databaseBytes returns the bytes of a fresh SQLite file after running
// stmts against it.
func databaseBytes(t *testing.T, stmts ...string) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "database.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

// dataDirEntries lists the names in the data directory matching pattern.
func dataDirEntries(t *testing.T, s *Shelf, pattern string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(s.config.DataDir, pattern))
	require.NoError(t, err)
	return matches
}

func TestRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newShelf(t)
	createSong(t, s, "Alpha")
	createSong(t, s, "Beta")
	_, err := s.CreateSong(ctx, types.SongInput{
		Name: "Gamma", Artist: "Band", Version: "1.2", Notes: "n", UploadedBy: types.RoleJ,
	}, Uploads{MIDI: midiUpload(), Source: textUpload("g.musz", "score")})
	require.NoError(t, err)

	before, err := s.ListSongs(ctx)
	require.NoError(t, err)
	blobsBefore := dirState(t, s.blobs.Dir())

	data, err := s.BackupBytes(ctx)
	require.NoError(t, err)

	// Change the live state so the restore has something to undo.
	require.NoError(t, s.DeleteSong(ctx, before[0].SongID))
	createSong(t, s, "Delta")

	result, err := s.Restore(ctx, bytes.NewReader(data), true)
	require.NoError(t, err)
	assert.Equal(t, 3, result.SongCount)
	assert.Equal(t, 6, result.BlobCount)

	after, err := s.ListSongs(ctx)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].SongID, after[i].SongID)
		assert.Equal(t, before[i].Name, after[i].Name)
		assert.Equal(t, before[i].Artist, after[i].Artist)
		assert.Equal(t, before[i].Version, after[i].Version)
		assert.Equal(t, before[i].Notes, after[i].Notes)
		assert.Equal(t, before[i].UploadedBy, after[i].UploadedBy)
		assert.Equal(t, before[i].MIDIFile, after[i].MIDIFile)
		assert.Equal(t, before[i].SourceFile, after[i].SourceFile)
		assert.Equal(t, before[i].LyricFile, after[i].LyricFile)
		assert.Equal(t, before[i].TrackNames, after[i].TrackNames)
		assert.Equal(t, before[i].FaceID, after[i].FaceID)
		assert.True(t, before[i].UploadedAt.Equal(after[i].UploadedAt))
	}
	assert.Equal(t, blobsBefore, dirState(t, s.blobs.Dir()))

	// The safety archive holds the pre-restore state, Delta included.
	require.NotEmpty(t, result.SafetyArchive)
	assert.Equal(t, s.config.BackupsDir(), filepath.Dir(result.SafetyArchive))
	assert.Equal(t, "safety_backup_20250314_150926.zip", filepath.Base(result.SafetyArchive))
	safety, err := archive.Open(result.SafetyArchive)
	require.NoError(t, err)
	defer safety.Close()
	info, err := safety.Info()
	require.NoError(t, err)
	assert.Equal(t, 3, info.SongCount)

	// No staging or temp leftovers.
	entries, err := os.ReadDir(s.config.DataDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{types.StoreDirName, types.BackupsDirName}, names)
}

func TestRestoreRequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	s := newShelf(t)
	createSong(t, s, "Stay")
	data, err := s.BackupBytes(ctx)
	require.NoError(t, err)
	state := dirState(t, s.config.DataDir)

	_, err = s.Restore(ctx, bytes.NewReader(data), false)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	assert.Equal(t, state, dirState(t, s.config.DataDir))
}

func TestRestoreRejectsInvalidArchives(t *testing.T) {
	tests := []struct {
		name string
		data func(t *testing.T) []byte
	}{
		{
			name: "not a zip",
			data: func(t *testing.T) []byte { return []byte("definitely not a zip archive") },
		},
		{
			name: "missing database",
			data: func(t *testing.T) []byte {
				return zipBytes(t, map[string][]byte{
					"uploads/a1b2.mid": midiBytes(),
					archive.InfoEntry:  []byte(`{}`),
				})
			},
		},
		{
			name: "database is not sqlite",
			data: func(t *testing.T) []byte {
				return zipBytes(t, map[string][]byte{
					archive.DatabaseEntry: bytes.Repeat([]byte("not an sqlite database "), 64),
					"uploads/a1b2.mid":    midiBytes(),
				})
			},
		},
		{
			name: "songs table without catalog columns",
			data: func(t *testing.T) []byte {
				return zipBytes(t, map[string][]byte{
					archive.DatabaseEntry: databaseBytes(t, "CREATE TABLE songs (id TEXT PRIMARY KEY)"),
				})
			},
		},
		{
			name: "songs table without track names",
			data: func(t *testing.T) []byte {
				return zipBytes(t, map[string][]byte{
					archive.DatabaseEntry: databaseBytes(t, `CREATE TABLE songs (
                        id TEXT PRIMARY KEY, song_name TEXT NOT NULL, artist TEXT, version TEXT,
                        notes TEXT, uploaded_by TEXT NOT NULL, uploaded_at TEXT NOT NULL,
                        midi_filename TEXT, source_filename TEXT, lyric_filename TEXT)`),
				})
			},
		},
		{
			name: "database without songs table",
			data: func(t *testing.T) []byte {
				// A zero-length file opens as an empty database with no tables.
				return zipBytes(t, map[string][]byte{archive.DatabaseEntry: {}})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := newShelf(t)
			createSong(t, s, "Precious")
			state := dirState(t, s.config.DataDir)

			_, err := s.Restore(ctx, bytes.NewReader(tt.data(t)), true)
			assert.ErrorIs(t, err, types.ErrInvalidArchive)
			assert.Equal(t, state, dirState(t, s.config.DataDir), "state must be byte-identical")

			songs, err := s.ListSongs(ctx)
			require.NoError(t, err)
			require.Len(t, songs, 1)
			assert.Equal(t, "Precious", songs[0].Name)
		})
	}
}

func TestRestoreScenarioThreeRecords(t *testing.T) {
	ctx := context.Background()

	// Build database.db with three records that reference fixed blob names.
	src := sqlite.NewBackend()
	srcConfig := types.Config{DataDir: t.TempDir()}
	require.NoError(t, src.Attach(srcConfig))
	records := []*types.Song{
		{Name: "One", UploadedBy: types.RoleD, MIDIFile: "a1b2.mid", TrackNames: []string{"Piano", "Track 2"}},
		{Name: "Two", UploadedBy: types.RoleM, LyricFile: "c3d4.lrc"},
		{Name: "Three", UploadedBy: types.RoleJ},
	}
	for _, r := range records {
		require.NoError(t, src.Insert(ctx, r))
	}
	snapshot := filepath.Join(t.TempDir(), "database.db")
	require.NoError(t, src.Snapshot(ctx, snapshot))
	require.NoError(t, src.Detach())

	uploads := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(uploads, "a1b2.mid"), midiBytes(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(uploads, "c3d4.lrc"), []byte("[00:00]la"), 0o644))

	var buf bytes.Buffer
	require.NoError(t, archive.Write(ctx, &buf, archive.Source{
		DatabasePath: snapshot,
		UploadsDir:   uploads,
		Blobs:        []string{"a1b2.mid", "c3d4.lrc"},
		Info:         archive.NewInfo(fixedNow, 3, "1.0"),
	}))

	s := newShelf(t)
	createSong(t, s, "Replaced")
	_, err := s.Restore(ctx, &buf, true)
	require.NoError(t, err)

	listed, err := s.ListSongs(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	for i, want := range []string{"One", "Two", "Three"} {
		assert.Equal(t, want, listed[i].Name)
		assert.Equal(t, i+1, listed[i].FaceID)
	}
	assert.Equal(t, []string{"Piano", "Track 2"}, listed[0].TrackNames)

	state := dirState(t, s.blobs.Dir())
	assert.Equal(t, string(midiBytes()), state["a1b2.mid"])
	assert.Equal(t, "[00:00]la", state["c3d4.lrc"])
	assert.Contains(t, state, types.KeepMarkerName)
	assert.Len(t, state, 3, "blobs of the replaced catalog are gone")

	path, name, err := s.OpenFile(ctx, listed[1].SongID, types.BlobLyric)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.blobs.Dir(), "c3d4.lrc"), path)
	assert.Equal(t, "002M - Two.lrc", name)
}

func TestRestoreThenWrite(t *testing.T) {
	ctx := context.Background()
	s := newShelf(t)
	createSong(t, s, "Before")
	data, err := s.BackupBytes(ctx)
	require.NoError(t, err)

	_, err = s.Restore(ctx, bytes.NewReader(data), true)
	require.NoError(t, err)

	// The re-attached catalog and blob store accept writes.
	createSong(t, s, "After")
	listed, err := s.ListSongs(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "After", listed[1].Name)
	assert.Equal(t, int64(2), listed[1].Seq)
}

func TestRestoreSafetyArchiveNamesDoNotCollide(t *testing.T) {
	ctx := context.Background()
	s := newShelf(t)
	createSong(t, s, "Song")
	data, err := s.BackupBytes(ctx)
	require.NoError(t, err)

	first, err := s.Restore(ctx, bytes.NewReader(data), true)
	require.NoError(t, err)
	second, err := s.Restore(ctx, bytes.NewReader(data), true)
	require.NoError(t, err)

	assert.NotEqual(t, first.SafetyArchive, second.SafetyArchive)
	assert.FileExists(t, first.SafetyArchive)
	assert.FileExists(t, second.SafetyArchive)
}

func TestRestoreRollsBackWhenRestoredStoreFailsToAttach(t *testing.T) {
	ctx := context.Background()
	s := newShelf(t)
	createSong(t, s, "Precious")
	blobsBefore := dirState(t, s.blobs.Dir())

	// The table passes validation, but its upload time cannot be read, so
	// attaching the restored store fails.
	data := zipBytes(t, map[string][]byte{
		archive.DatabaseEntry: databaseBytes(t,
			`CREATE TABLE songs (
                id TEXT PRIMARY KEY, song_name TEXT NOT NULL, artist TEXT, version TEXT,
                notes TEXT, uploaded_by TEXT NOT NULL, uploaded_at TIMESTAMP NOT NULL,
                midi_filename TEXT, source_filename TEXT, lyric_filename TEXT, track_names TEXT)`,
			`INSERT INTO songs (id, song_name, uploaded_by, uploaded_at) VALUES ('x', 'Intruder', 'D', 'someday')`,
		),
		"uploads/ffff.mid": midiBytes(),
	})

	_, err := s.Restore(ctx, bytes.NewReader(data), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrStorage)

	songs, err := s.ListSongs(ctx)
	require.NoError(t, err)
	require.Len(t, songs, 1)
	assert.Equal(t, "Precious", songs[0].Name)
	assert.Equal(t, blobsBefore, dirState(t, s.blobs.Dir()))

	assert.Empty(t, dataDirEntries(t, s, "store.old-*"))
	assert.Empty(t, dataDirEntries(t, s, "store.staging-*"))
	assert.Empty(t, dataDirEntries(t, s, ".restore-upload-*"))
	assert.Len(t, dataDirEntries(t, s, "store.rejected-*"), 1)
	assert.Len(t, dataDirEntries(t, s, filepath.Join(types.BackupsDirName, "safety_backup_*.zip")), 1)

	// The rolled-back catalog is attached and writable.
	createSong(t, s, "After")
	songs, err = s.ListSongs(ctx)
	require.NoError(t, err)
	assert.Len(t, songs, 2)
}
