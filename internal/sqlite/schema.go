// Package sqlite implements the Catalog on SQLite.
package sqlite

import (
	"database/sql"
	"fmt"
)

// Schema DDL. Statements are idempotent so Attach can run them against an
// existing or restored database.
const (
	createSongs = `CREATE TABLE IF NOT EXISTS songs (
    id TEXT PRIMARY KEY,
    song_name TEXT NOT NULL,
    artist TEXT,
    version TEXT,
    notes TEXT,
    uploaded_by TEXT NOT NULL,
    uploaded_at TEXT NOT NULL,
    seq INTEGER NOT NULL DEFAULT 0,
    midi_filename TEXT,
    source_filename TEXT,
    lyric_filename TEXT,
    track_names TEXT
);`

	idxSongsOrder = `CREATE INDEX IF NOT EXISTS idx_songs_order ON songs(uploaded_at, seq);`
)

// Databases created before the seq column existed get it added and
// numbered in insertion order.
const (
	hasSeqColumn = `SELECT COUNT(*) FROM pragma_table_info('songs') WHERE name = 'seq'`
	addSeqColumn = `ALTER TABLE songs ADD COLUMN seq INTEGER NOT NULL DEFAULT 0`
	numberSeq    = `UPDATE songs SET seq = rowid`
)

// Upload times not already in timeLayout, such as the zone-less local time
// written by older tools, are rewritten so that text order is time order.
// CAST keeps the driver from converting TIMESTAMP columns to time.Time.
const (
	selectForeignTimes = `SELECT id, CAST(uploaded_at AS TEXT) FROM songs
    WHERE CAST(uploaded_at AS TEXT) NOT GLOB
    '[0-9][0-9][0-9][0-9]-[0-9][0-9]-[0-9][0-9]T[0-9][0-9]:[0-9][0-9]:[0-9][0-9].[0-9][0-9][0-9][0-9][0-9][0-9][0-9][0-9][0-9]Z'`
	updateUploadTime = `UPDATE songs SET uploaded_at = ? WHERE id = ?`
)

// applySchema creates the songs table, upgrades older tables and creates
// the indexes.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(createSongs); err != nil {
		return err
	}
	var n int
	if err := db.QueryRow(hasSeqColumn).Scan(&n); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if n == 0 {
		for _, stmt := range []string{addSeqColumn, numberSeq} {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
	}
	if err := normalizeUploadTimes(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	_, err = db.Exec(idxSongsOrder)
	return err
}

// normalizeUploadTimes rewrites every uploaded_at value that is not in
// timeLayout. Zone-less values are read as local time.
func normalizeUploadTimes(tx *sql.Tx) error {
	type stamp struct{ id, value string }

	rows, err := tx.Query(selectForeignTimes)
	if err != nil {
		return err
	}
	var foreign []stamp
	for rows.Next() {
		var st stamp
		if err := rows.Scan(&st.id, &st.value); err != nil {
			rows.Close()
			return err
		}
		foreign = append(foreign, st)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return err
	}

	for _, st := range foreign {
		t, err := parseTime(st.value)
		if err != nil {
			return fmt.Errorf("song %s: %w", st.id, err)
		}
		if _, err := tx.Exec(updateUploadTime, t.UTC().Format(timeLayout), st.id); err != nil {
			return err
		}
	}
	return nil
}

// pragmas are applied to every connection opened by Attach.
var pragmas = []string{
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}
