package shelf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/midishelf/internal/archive"
	"github.com/mesh-intelligence/midishelf/internal/blobs"
	"github.com/mesh-intelligence/midishelf/internal/sqlite"
	"github.com/mesh-intelligence/midishelf/pkg/types"
)

// RestoreResult reports a completed restore.
type RestoreResult struct {
	// SafetyArchive is the backup of the pre-restore state, or empty when
	// there was no database to protect.
	SafetyArchive string `json:"safety_archive,omitempty"`
	SongCount     int    `json:"song_count"`
	BlobCount     int    `json:"blob_count"`
}

// Restore replaces the catalog and blob directory with the contents of the
// backup archive read from r.
//
// The archive is staged and validated before anything is touched: it must
// carry a database.db entry whose songs table can be counted, otherwise
// ErrInvalidArchive is returned and the current state is unchanged. A
// safety archive of the current state is then written; if that fails the
// restore stops. The new database and blobs are assembled in a staging
// directory next to the live store, which is swapped in by renaming.
// confirmed must be true.
func (s *Shelf) Restore(ctx context.Context, r io.Reader, confirmed bool) (RestoreResult, error) {
	if !confirmed {
		return RestoreResult{}, fmt.Errorf("%w: restore must be confirmed", types.ErrInvalidInput)
	}

	s.gate.Lock()
	defer s.gate.Unlock()

	upload, err := s.stageUpload(r)
	if err != nil {
		return RestoreResult{}, err
	}
	defer os.Remove(upload)

	ar, err := archive.Open(upload)
	if err != nil {
		return RestoreResult{}, err
	}
	defer ar.Close()

	if !ar.HasDatabase() {
		return RestoreResult{}, fmt.Errorf("%w: missing %s", types.ErrInvalidArchive, archive.DatabaseEntry)
	}

	staging, err := os.MkdirTemp(s.config.DataDir, "store.staging-")
	if err != nil {
		return RestoreResult{}, fmt.Errorf("%w: create staging dir: %w", types.ErrStorage, err)
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(staging)
		}
	}()

	stagedDB := filepath.Join(staging, types.DatabaseName)
	if err := ar.ExtractDatabase(stagedDB); err != nil {
		return RestoreResult{}, err
	}
	count, err := sqlite.CountSongs(ctx, stagedDB)
	if err != nil {
		return RestoreResult{}, fmt.Errorf("%w: corrupt database: %w", types.ErrInvalidArchive, err)
	}

	var result RestoreResult
	result.SongCount = count
	if fileExists(s.config.DatabasePath()) {
		safety, err := s.writeSafetyArchive(ctx)
		if err != nil {
			return RestoreResult{}, fmt.Errorf("safety backup: %w", err)
		}
		result.SafetyArchive = safety
		s.log.Info("safety archive written", "path", safety)
	}

	stagedUploads := filepath.Join(staging, types.UploadsDirName)
	if err := os.MkdirAll(stagedUploads, 0o755); err != nil {
		return RestoreResult{}, fmt.Errorf("%w: create staged uploads: %w", types.ErrStorage, err)
	}
	result.BlobCount, err = ar.ExtractUploads(ctx, stagedUploads)
	if err != nil {
		return RestoreResult{}, err
	}
	if err := blobs.EnsureKeep(stagedUploads); err != nil {
		return RestoreResult{}, err
	}

	if err := s.swapStore(staging); err != nil {
		return RestoreResult{}, err
	}
	committed = true

	s.log.Info("restore completed", "songs", result.SongCount, "blobs", result.BlobCount)
	return result, nil
}

// stageUpload copies the uploaded archive to a temporary file in the data
// directory and returns its path.
func (s *Shelf) stageUpload(r io.Reader) (string, error) {
	f, err := os.CreateTemp(s.config.DataDir, ".restore-upload-*.zip")
	if err != nil {
		return "", fmt.Errorf("%w: stage upload: %w", types.ErrStorage, err)
	}
	_, err = io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: stage upload: %w", types.ErrStorage, err)
	}
	return f.Name(), nil
}

// swapStore publishes staging as the live store directory. The catalog is
// detached, the live directory moved aside, staging renamed into place and
// the catalog re-attached; the old directory is removed only after that
// succeeds. Any failure moves the old directory back.
func (s *Shelf) swapStore(staging string) error {
	live := s.config.StoreDir()
	if err := s.catalog.Detach(); err != nil {
		return err
	}

	old := ""
	if fileExists(live) {
		var err error
		if old, err = s.unusedPath("store.old-"); err != nil {
			return errors.Join(err, s.attach())
		}
		if err := os.Rename(live, old); err != nil {
			return errors.Join(
				fmt.Errorf("%w: move live store aside: %w", types.ErrStorage, err),
				s.attach(),
			)
		}
	}

	if err := os.Rename(staging, live); err != nil {
		return errors.Join(
			fmt.Errorf("%w: publish staged store: %w", types.ErrStorage, err),
			s.rollbackSwap(live, old),
		)
	}

	if err := s.attach(); err != nil {
		// Keep the rejected store for inspection next to the restored one.
		rejected, pathErr := s.unusedPath("store.rejected-")
		if pathErr != nil {
			return errors.Join(fmt.Errorf("attach restored store: %w", err), pathErr)
		}
		if renameErr := os.Rename(live, rejected); renameErr != nil {
			return errors.Join(fmt.Errorf("attach restored store: %w", err), renameErr)
		}
		return errors.Join(fmt.Errorf("attach restored store: %w", err), s.rollbackSwap(live, old))
	}

	if old != "" {
		if err := os.RemoveAll(old); err != nil {
			s.log.Warn("cannot remove previous store", "path", old, "error", err)
		}
	}
	return nil
}

// rollbackSwap moves old back to live and re-attaches.
func (s *Shelf) rollbackSwap(live, old string) error {
	if old != "" {
		if err := os.Rename(old, live); err != nil {
			return fmt.Errorf("%w: restore previous store from %s: %w", types.ErrStorage, old, err)
		}
	}
	return s.attach()
}

// unusedPath returns a fresh path in the data directory starting with
// prefix. The path does not exist when it is returned.
func (s *Shelf) unusedPath(prefix string) (string, error) {
	dir, err := os.MkdirTemp(s.config.DataDir, prefix)
	if err != nil {
		return "", fmt.Errorf("%w: reserve %s path: %w", types.ErrStorage, prefix, err)
	}
	if err := os.Remove(dir); err != nil {
		return "", fmt.Errorf("%w: reserve %s path: %w", types.ErrStorage, prefix, err)
	}
	return dir, nil
}
