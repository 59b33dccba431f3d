package shelf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/midishelf/internal/archive"
	"github.com/mesh-intelligence/midishelf/pkg/types"
)

// Backup writes a backup archive of the catalog and every blob to w. The
// gate is held shared for the whole copy and the database is copied from a
// VACUUM INTO snapshot, so the archive reflects one consistent state.
func (s *Shelf) Backup(ctx context.Context, w io.Writer) (archive.Info, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()
	return s.backupLocked(ctx, w)
}

// BackupBytes returns a backup archive in memory.
func (s *Shelf) BackupBytes(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := s.Backup(ctx, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// backupLocked packs the current state. The caller must hold the gate.
func (s *Shelf) backupLocked(ctx context.Context, w io.Writer) (archive.Info, error) {
	tmpDir, err := os.MkdirTemp(s.config.DataDir, ".snapshot-")
	if err != nil {
		return archive.Info{}, fmt.Errorf("%w: create snapshot dir: %w", types.ErrStorage, err)
	}
	defer os.RemoveAll(tmpDir)

	snapshot := filepath.Join(tmpDir, types.DatabaseName)
	if err := s.catalog.Snapshot(ctx, snapshot); err != nil {
		return archive.Info{}, err
	}
	count, err := s.catalog.Count(ctx)
	if err != nil {
		return archive.Info{}, err
	}
	names, err := s.blobs.List()
	if err != nil {
		return archive.Info{}, err
	}

	info := archive.NewInfo(s.now(), count, s.config.Version())
	err = archive.Write(ctx, w, archive.Source{
		DatabasePath: snapshot,
		UploadsDir:   s.blobs.Dir(),
		Blobs:        names,
		Info:         info,
	})
	if err != nil {
		return archive.Info{}, err
	}

	s.log.Info("backup written", "songs", count, "blobs", len(names))
	return info, nil
}

// Export writes a bulk download archive holding every song's MIDI and lyric
// file under its display name. It returns ErrNotFound when the catalog is
// empty.
func (s *Shelf) Export(ctx context.Context, w io.Writer) (int, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()

	listed, err := s.listLocked(ctx)
	if err != nil {
		return 0, err
	}
	if len(listed) == 0 {
		return 0, fmt.Errorf("no songs to export: %w", types.ErrNotFound)
	}

	var files []archive.File
	for i := range listed {
		song := &listed[i]
		for _, kind := range []types.BlobKind{types.BlobMIDI, types.BlobLyric} {
			name := song.File(kind)
			if !s.blobs.Exists(name) {
				continue
			}
			files = append(files, archive.File{
				Name: song.DownloadName(kind),
				Path: s.blobs.Path(name),
			})
		}
	}
	if err := archive.WriteFiles(ctx, w, files); err != nil {
		return 0, err
	}
	return len(files), nil
}

// writeSafetyArchive stores a backup of the current state under the
// backups directory and returns its path. The archive is written to a
// temporary name first so a partial file is never left under the final
// name. The caller must hold the gate.
func (s *Shelf) writeSafetyArchive(ctx context.Context) (string, error) {
	dir := s.config.BackupsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create backups dir: %w", types.ErrStorage, err)
	}

	tmp, err := os.CreateTemp(dir, ".safety-*.zip")
	if err != nil {
		return "", fmt.Errorf("%w: create safety archive: %w", types.ErrStorage, err)
	}
	tmpName := tmp.Name()

	if _, err := s.backupLocked(ctx, tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("%w: sync safety archive: %w", types.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("%w: close safety archive: %w", types.ErrStorage, err)
	}

	final := s.safetyArchivePath()
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("%w: rename safety archive: %w", types.ErrStorage, err)
	}
	return final, nil
}

// safetyArchivePath returns an unused safety_backup_<timestamp>.zip path.
func (s *Shelf) safetyArchivePath() string {
	stamp := s.now().Format("20060102_150405")
	dir := s.config.BackupsDir()
	p := filepath.Join(dir, "safety_backup_"+stamp+".zip")
	for i := 1; fileExists(p); i++ {
		p = filepath.Join(dir, fmt.Sprintf("safety_backup_%s_%d.zip", stamp, i))
	}
	return p
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
