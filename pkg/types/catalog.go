package types

import "context"

// Catalog is the persisted collection of song records. Implementations own
// one database file and are attached to a Config before use.
type Catalog interface {
	// Attach opens the catalog described by config, creating the store
	// directory and schema if needed. Returns ErrAlreadyAttached if called
	// while attached.
	Attach(config Config) error

	// Detach releases the database handle. Idempotent.
	Detach() error

	// Insert stores a new song. SongID, UploadedAt and Seq are assigned by
	// the catalog and written back to s.
	Insert(ctx context.Context, s *Song) error

	// Update replaces every mutable column of an existing song.
	// Returns ErrNotFound if the song does not exist.
	Update(ctx context.Context, s *Song) error

	// Delete removes a song. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error

	// Get returns one song or ErrNotFound.
	Get(ctx context.Context, id string) (*Song, error)

	// List returns every song in ascending (UploadedAt, Seq) order.
	List(ctx context.Context) ([]*Song, error)

	// Count returns the number of songs.
	Count(ctx context.Context) (int, error)

	// SetTrackNames replaces the track-name lists of several songs in one
	// transaction.
	SetTrackNames(ctx context.Context, names map[string][]string) error

	// Snapshot writes a transactionally consistent copy of the database to
	// dest, which must not exist.
	Snapshot(ctx context.Context, dest string) error
}
