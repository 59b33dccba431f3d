package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/midishelf/pkg/types"
)

// driverName is the database/sql name registered by modernc.org/sqlite.
const driverName = "sqlite"

// Compile-time interface check.
var _ types.Catalog = (*Backend)(nil)

// Backend implements the Catalog interface on a single SQLite file.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach initializes the backend with the given configuration.
// Creates the store and uploads directories if they do not exist, opens
// the database and applies the schema.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(config.UploadsDir(), 0o755); err != nil {
		return fmt.Errorf("%w: creating store directory: %w", types.ErrStorage, err)
	}

	db, err := openDB(config.DatabasePath())
	if err != nil {
		return err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return fmt.Errorf("%w: applying schema: %w", types.ErrStorage, err)
	}

	b.db = db
	b.config = config
	b.attached = true
	return nil
}

// Detach releases all resources held by the backend.
// After Detach, all operations return ErrCatalogDetached.
// Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.attached = false
	if b.db != nil {
		err := b.db.Close()
		b.db = nil
		if err != nil {
			return fmt.Errorf("%w: closing database: %w", types.ErrStorage, err)
		}
	}
	return nil
}

// Attached reports whether the backend currently holds an open database.
func (b *Backend) Attached() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.attached
}

// Snapshot writes a consistent copy of the database to dest using
// VACUUM INTO. dest must not exist.
func (b *Backend) Snapshot(ctx context.Context, dest string) error {
	db, err := b.handle()
	if err != nil {
		return err
	}
	defer b.mu.RUnlock()

	quoted := "'" + strings.ReplaceAll(dest, "'", "''") + "'"
	if _, err := db.ExecContext(ctx, "VACUUM INTO "+quoted); err != nil {
		return fmt.Errorf("%w: snapshotting database: %w", types.ErrStorage, err)
	}
	return nil
}

// handle returns the open database with b.mu read-locked. The caller must
// call b.mu.RUnlock when done. On error the lock is not held.
func (b *Backend) handle() (*sql.DB, error) {
	b.mu.RLock()
	if !b.attached {
		b.mu.RUnlock()
		return nil, types.ErrCatalogDetached
	}
	return b.db, nil
}

// openDB opens the database at path and applies the connection pragmas.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", types.ErrStorage, err)
	}
	// SQLite allows a single writer; one connection also keeps the pragmas
	// in effect for every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: executing %q: %w", types.ErrStorage, pragma, err)
		}
	}
	return db, nil
}

// archivedColumns are the songs columns a database must carry to be
// restored. seq is left out because Attach adds it to older tables.
const archivedColumns = `id, song_name, artist, version, notes, uploaded_by, uploaded_at,
    midi_filename, source_filename, lyric_filename, track_names`

// CountSongs opens the database file at path, checks that its songs table
// has the catalog columns, counts the rows and closes it again. It is used
// to check a database taken from an archive before it replaces the live one.
func CountSongs(ctx context.Context, path string) (int, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, err
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "SELECT "+archivedColumns+" FROM songs LIMIT 0")
	if err != nil {
		return 0, fmt.Errorf("songs table: %w", err)
	}
	rows.Close()

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM songs").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// generateUUID generates a new UUID v7 for song IDs.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}
