package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/midishelf/pkg/types"
)

// timeLayout stores timestamps at a fixed width so text order equals time
// order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const songColumns = `id, song_name, artist, version, notes, uploaded_by, uploaded_at, seq,
    midi_filename, source_filename, lyric_filename, track_names`

// selectColumns reads songColumns with uploaded_at as raw text. Without the
// cast the driver turns values of a TIMESTAMP column into time.Time.
const selectColumns = `id, song_name, artist, version, notes, uploaded_by, CAST(uploaded_at AS TEXT), seq,
    midi_filename, source_filename, lyric_filename, track_names`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Insert stores a new song, assigning its ID, creation time and sequence
// number.
func (b *Backend) Insert(ctx context.Context, s *types.Song) error {
	db, err := b.handle()
	if err != nil {
		return err
	}
	defer b.mu.RUnlock()

	tracks, err := encodeTrackNames(s.TrackNames)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", types.ErrStorage, err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) + 1 FROM songs").Scan(&seq); err != nil {
		return fmt.Errorf("%w: allocating sequence: %w", types.ErrStorage, err)
	}

	id := generateUUID()
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO songs (`+songColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, s.Name, nullString(s.Artist), nullString(s.Version), nullString(s.Notes),
		s.UploadedBy, now.Format(timeLayout), seq,
		nullString(s.MIDIFile), nullString(s.SourceFile), nullString(s.LyricFile), tracks,
	)
	if err != nil {
		return fmt.Errorf("%w: inserting song: %w", types.ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing song: %w", types.ErrStorage, err)
	}

	s.SongID = id
	s.UploadedAt = now
	s.Seq = seq
	return nil
}

// Update replaces the mutable columns of an existing song. UploadedAt and
// Seq are never changed.
func (b *Backend) Update(ctx context.Context, s *types.Song) error {
	if s.SongID == "" {
		return types.ErrNotFound
	}
	db, err := b.handle()
	if err != nil {
		return err
	}
	defer b.mu.RUnlock()

	tracks, err := encodeTrackNames(s.TrackNames)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx,
		`UPDATE songs SET song_name = ?, artist = ?, version = ?, notes = ?, uploaded_by = ?,
        midi_filename = ?, source_filename = ?, lyric_filename = ?, track_names = ?
        WHERE id = ?`,
		s.Name, nullString(s.Artist), nullString(s.Version), nullString(s.Notes), s.UploadedBy,
		nullString(s.MIDIFile), nullString(s.SourceFile), nullString(s.LyricFile), tracks,
		s.SongID,
	)
	if err != nil {
		return fmt.Errorf("%w: updating song %s: %w", types.ErrStorage, s.SongID, err)
	}
	return requireOneRow(res, s.SongID)
}

// Delete removes a song row. Blob files are the caller's concern.
func (b *Backend) Delete(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrNotFound
	}
	db, err := b.handle()
	if err != nil {
		return err
	}
	defer b.mu.RUnlock()

	res, err := db.ExecContext(ctx, "DELETE FROM songs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%w: deleting song %s: %w", types.ErrStorage, id, err)
	}
	return requireOneRow(res, id)
}

// Get retrieves a song by ID.
func (b *Backend) Get(ctx context.Context, id string) (*types.Song, error) {
	if id == "" {
		return nil, types.ErrNotFound
	}
	db, err := b.handle()
	if err != nil {
		return nil, err
	}
	defer b.mu.RUnlock()

	row := db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM songs WHERE id = ?", id)
	song, err := hydrateSong(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("song %s: %w", id, types.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: getting song %s: %w", types.ErrStorage, id, err)
	}
	return song, nil
}

// List returns every song ordered by creation time, ties broken by the
// creation sequence.
func (b *Backend) List(ctx context.Context) ([]*types.Song, error) {
	db, err := b.handle()
	if err != nil {
		return nil, err
	}
	defer b.mu.RUnlock()

	rows, err := db.QueryContext(ctx, "SELECT "+selectColumns+" FROM songs ORDER BY uploaded_at ASC, seq ASC")
	if err != nil {
		return nil, fmt.Errorf("%w: listing songs: %w", types.ErrStorage, err)
	}
	defer rows.Close()

	var songs []*types.Song
	for rows.Next() {
		song, err := hydrateSong(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: reading song row: %w", types.ErrStorage, err)
		}
		songs = append(songs, song)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing songs: %w", types.ErrStorage, err)
	}
	return songs, nil
}

// Count returns the number of songs.
func (b *Backend) Count(ctx context.Context) (int, error) {
	db, err := b.handle()
	if err != nil {
		return 0, err
	}
	defer b.mu.RUnlock()

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM songs").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: counting songs: %w", types.ErrStorage, err)
	}
	return n, nil
}

// SetTrackNames replaces the track lists of the given songs in one
// transaction. Unknown IDs are ignored.
func (b *Backend) SetTrackNames(ctx context.Context, names map[string][]string) error {
	db, err := b.handle()
	if err != nil {
		return err
	}
	defer b.mu.RUnlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", types.ErrStorage, err)
	}
	defer tx.Rollback()

	for id, tracks := range names {
		encoded, err := encodeTrackNames(tracks)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE songs SET track_names = ? WHERE id = ?", encoded, id); err != nil {
			return fmt.Errorf("%w: updating tracks of %s: %w", types.ErrStorage, id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing track names: %w", types.ErrStorage, err)
	}
	return nil
}

// hydrateSong converts one row into a Song.
func hydrateSong(row rowScanner) (*types.Song, error) {
	var (
		s                           types.Song
		artist, version, notes      sql.NullString
		midi, source, lyric, tracks sql.NullString
		uploadedAt                  string
	)
	err := row.Scan(&s.SongID, &s.Name, &artist, &version, &notes, &s.UploadedBy, &uploadedAt, &s.Seq,
		&midi, &source, &lyric, &tracks)
	if err != nil {
		return nil, err
	}
	s.Artist = artist.String
	s.Version = version.String
	s.Notes = notes.String
	s.MIDIFile = midi.String
	s.SourceFile = source.String
	s.LyricFile = lyric.String

	s.UploadedAt, err = parseTime(uploadedAt)
	if err != nil {
		return nil, err
	}

	if tracks.Valid {
		names := []string{}
		if err := json.Unmarshal([]byte(tracks.String), &names); err != nil {
			return nil, fmt.Errorf("decoding track_names: %w", err)
		}
		s.TrackNames = names
	}
	return &s, nil
}

// legacyTimeLayouts are accepted for rows written by other tools, which
// store local time without a zone.
var legacyTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err == nil {
		return t, nil
	}
	for _, layout := range legacyTimeLayouts {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing uploaded_at %q: %w", v, err)
}

// encodeTrackNames returns NULL for a nil list and a JSON array otherwise,
// so an empty extraction result stays distinguishable from "no MIDI".
func encodeTrackNames(names []string) (any, error) {
	if names == nil {
		return nil, nil
	}
	data, err := json.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("encoding track names: %w", err)
	}
	return string(data), nil
}

// nullString maps the empty string to NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// requireOneRow returns ErrNotFound when an UPDATE or DELETE matched nothing.
func requireOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: reading affected rows: %w", types.ErrStorage, err)
	}
	if n == 0 {
		return fmt.Errorf("song %s: %w", id, types.ErrNotFound)
	}
	return nil
}
