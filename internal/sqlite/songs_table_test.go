package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/midishelf/pkg/types"
)

func TestInsertAndGet(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)

	song := &types.Song{
		Name:       "Moonlight",
		Artist:     "Anon",
		Version:    "2",
		Notes:      "slow intro",
		UploadedBy: types.RoleD,
		MIDIFile:   "a1b2c3d4e5f6.mid",
		SourceFile: "0123456789ab.musz",
		TrackNames: []string{"Piano", "Track 2"},
	}
	before := time.Now().UTC()
	require.NoError(t, b.Insert(ctx, song))

	assert.NotEmpty(t, song.SongID)
	assert.Equal(t, int64(1), song.Seq)
	assert.False(t, song.UploadedAt.Before(before.Add(-time.Second)))

	got, err := b.Get(ctx, song.SongID)
	require.NoError(t, err)
	assert.Equal(t, song.Name, got.Name)
	assert.Equal(t, song.Artist, got.Artist)
	assert.Equal(t, song.Version, got.Version)
	assert.Equal(t, song.Notes, got.Notes)
	assert.Equal(t, song.MIDIFile, got.MIDIFile)
	assert.Equal(t, song.SourceFile, got.SourceFile)
	assert.Empty(t, got.LyricFile)
	assert.Equal(t, []string{"Piano", "Track 2"}, got.TrackNames)
	assert.True(t, song.UploadedAt.Equal(got.UploadedAt))
}

func TestTrackNamesNullVersusEmpty(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)

	withoutMIDI := &types.Song{Name: "No midi", UploadedBy: types.RoleD}
	emptyTracks := &types.Song{Name: "Silent", UploadedBy: types.RoleD, MIDIFile: "x.mid", TrackNames: []string{}}
	require.NoError(t, b.Insert(ctx, withoutMIDI))
	require.NoError(t, b.Insert(ctx, emptyTracks))

	got, err := b.Get(ctx, withoutMIDI.SongID)
	require.NoError(t, err)
	assert.Nil(t, got.TrackNames)

	got, err = b.Get(ctx, emptyTracks.SongID)
	require.NoError(t, err)
	require.NotNil(t, got.TrackNames)
	assert.Empty(t, got.TrackNames)
}

func TestGetMissing(t *testing.T) {
	b, _ := setupBackend(t)
	_, err := b.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = b.Get(context.Background(), "")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)

	song := &types.Song{Name: "Draft", UploadedBy: types.RoleD, MIDIFile: "old.mid", TrackNames: []string{"Track 1"}}
	require.NoError(t, b.Insert(ctx, song))

	song.Name = "Final"
	song.Artist = "Band"
	song.UploadedBy = types.RoleJ
	song.MIDIFile = "new.mid"
	song.TrackNames = []string{"Lead", "Bass"}
	require.NoError(t, b.Update(ctx, song))

	got, err := b.Get(ctx, song.SongID)
	require.NoError(t, err)
	assert.Equal(t, "Final", got.Name)
	assert.Equal(t, "Band", got.Artist)
	assert.Equal(t, types.RoleJ, got.UploadedBy)
	assert.Equal(t, "new.mid", got.MIDIFile)
	assert.Equal(t, []string{"Lead", "Bass"}, got.TrackNames)
	assert.Equal(t, song.Seq, got.Seq)
	assert.True(t, song.UploadedAt.Equal(got.UploadedAt))

	missing := &types.Song{SongID: "missing", Name: "x", UploadedBy: types.RoleD}
	assert.ErrorIs(t, b.Update(ctx, missing), types.ErrNotFound)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)

	song := &types.Song{Name: "Gone", UploadedBy: types.RoleM}
	require.NoError(t, b.Insert(ctx, song))

	require.NoError(t, b.Delete(ctx, song.SongID))
	_, err := b.Get(ctx, song.SongID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.ErrorIs(t, b.Delete(ctx, song.SongID), types.ErrNotFound)
}

func TestListOrderAndCount(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)

	names := []string{"First", "Second", "Third"}
	for _, name := range names {
		require.NoError(t, b.Insert(ctx, &types.Song{Name: name, UploadedBy: types.RoleD}))
	}

	songs, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, songs, 3)
	for i, s := range songs {
		assert.Equal(t, names[i], s.Name)
		assert.Equal(t, int64(i+1), s.Seq)
	}

	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestListBreaksTimestampTiesBySeq(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)

	db, err := b.handle()
	require.NoError(t, err)
	stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Format(timeLayout)
	// Insert out of seq order with identical timestamps.
	for _, row := range []struct {
		id  string
		seq int
	}{{"b", 2}, {"c", 3}, {"a", 1}} {
		_, err := db.Exec(`INSERT INTO songs (id, song_name, uploaded_by, uploaded_at, seq) VALUES (?, ?, 'D', ?, ?)`,
			row.id, row.id, stamp, row.seq)
		require.NoError(t, err)
	}
	b.mu.RUnlock()

	songs, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, songs, 3)
	assert.Equal(t, "a", songs[0].SongID)
	assert.Equal(t, "b", songs[1].SongID)
	assert.Equal(t, "c", songs[2].SongID)
}

func TestSetTrackNames(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)

	one := &types.Song{Name: "One", UploadedBy: types.RoleD, MIDIFile: "1.mid", TrackNames: []string{}}
	two := &types.Song{Name: "Two", UploadedBy: types.RoleD, MIDIFile: "2.mid", TrackNames: []string{"Track 1"}}
	require.NoError(t, b.Insert(ctx, one))
	require.NoError(t, b.Insert(ctx, two))

	require.NoError(t, b.SetTrackNames(ctx, map[string][]string{
		one.SongID: {"Violin"},
		two.SongID: {"Flute", "Track 2"},
		"unknown":  {"ignored"},
	}))

	got, err := b.Get(ctx, one.SongID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Violin"}, got.TrackNames)
	got, err = b.Get(ctx, two.SongID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Flute", "Track 2"}, got.TrackNames)
}
