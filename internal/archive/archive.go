// Package archive reads and writes the backup archive format: a deflate
// zip holding database.db, one uploads/<name> entry per blob, and
// backup_info.json.
//
// Blob entries are flattened on extraction: only the base name of an entry
// is used, so two entries with the same base name in different
// subdirectories overwrite one another. Backups never produce such entries.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/mesh-intelligence/midishelf/pkg/types"
)

// Entry names.
const (
	DatabaseEntry = "database.db"
	UploadsPrefix = "uploads/"
	InfoEntry     = "backup_info.json"
)

// Info is the content of backup_info.json.
type Info struct {
	BackupDate string `json:"backup_date"`
	SongCount  int    `json:"song_count"`
	AppVersion string `json:"app_version"`
}

// NewInfo returns an Info stamped with t in RFC 3339 form.
func NewInfo(t time.Time, songCount int, appVersion string) Info {
	return Info{
		BackupDate: t.Format(time.RFC3339),
		SongCount:  songCount,
		AppVersion: appVersion,
	}
}

// Source describes what Write packs.
type Source struct {
	// DatabasePath is written verbatim as database.db.
	DatabasePath string
	// UploadsDir holds the blobs named in Blobs.
	UploadsDir string
	Blobs      []string
	Info       Info
}

// Write packs src into a new archive on w.
func Write(ctx context.Context, w io.Writer, src Source) error {
	zw := zip.NewWriter(w)

	if err := addFile(zw, DatabaseEntry, src.DatabasePath); err != nil {
		zw.Close()
		return err
	}
	for _, name := range src.Blobs {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return err
		}
		if err := addFile(zw, UploadsPrefix+name, filepath.Join(src.UploadsDir, name)); err != nil {
			zw.Close()
			return err
		}
	}

	data, err := json.MarshalIndent(src.Info, "", "  ")
	if err != nil {
		zw.Close()
		return fmt.Errorf("encoding %s: %w", InfoEntry, err)
	}
	iw, err := create(zw, InfoEntry)
	if err != nil {
		zw.Close()
		return err
	}
	if _, err := iw.Write(data); err != nil {
		zw.Close()
		return fmt.Errorf("writing %s: %w", InfoEntry, err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finishing archive: %w", err)
	}
	return nil
}

// File names one on-disk file and the entry name it is stored under.
type File struct {
	Name string
	Path string
}

// WriteFiles packs files into a new archive on w under their entry names.
// It is used for bulk downloads, which carry display names rather than the
// backup layout.
func WriteFiles(ctx context.Context, w io.Writer, files []File) error {
	zw := zip.NewWriter(w)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return err
		}
		if err := addFile(zw, f.Name, f.Path); err != nil {
			zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finishing archive: %w", err)
	}
	return nil
}

func create(zw *zip.Writer, name string) (io.Writer, error) {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating entry %s: %w", name, err)
	}
	return w, nil
}

func addFile(zw *zip.Writer, name, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", types.ErrStorage, src, err)
	}
	defer f.Close()

	w, err := create(zw, name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("writing entry %s: %w", name, err)
	}
	return nil
}

// Reader gives access to an archive on disk.
type Reader struct {
	zr *zip.ReadCloser
}

// Open opens the archive at p. A file that is not a zip archive yields
// ErrInvalidArchive.
func Open(p string) (*Reader, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("%w: not a zip archive: %w", types.ErrInvalidArchive, err)
	}
	return &Reader{zr: zr}, nil
}

// Close releases the archive file.
func (r *Reader) Close() error {
	return r.zr.Close()
}

// HasDatabase reports whether the archive carries a database.db entry.
func (r *Reader) HasDatabase() bool {
	return r.find(DatabaseEntry) != nil
}

// ExtractDatabase writes the database.db entry to dest.
func (r *Reader) ExtractDatabase(dest string) error {
	f := r.find(DatabaseEntry)
	if f == nil {
		return fmt.Errorf("%w: missing %s", types.ErrInvalidArchive, DatabaseEntry)
	}
	return extract(f, dest)
}

// ExtractUploads writes every uploads/ entry into dir under its base name
// and returns how many were written. Directory entries and entries whose
// base name is empty or hidden are skipped.
func (r *Reader) ExtractUploads(ctx context.Context, dir string) (int, error) {
	n := 0
	for _, f := range r.zr.File {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if !strings.HasPrefix(f.Name, UploadsPrefix) || f.FileInfo().IsDir() {
			continue
		}
		base := path.Base(f.Name)
		if base == "." || base == ".." || base == "/" || strings.HasPrefix(base, ".") {
			continue
		}
		if err := extract(f, filepath.Join(dir, base)); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Info decodes backup_info.json. Archives without one yield ErrNotFound.
func (r *Reader) Info() (Info, error) {
	var info Info
	f := r.find(InfoEntry)
	if f == nil {
		return info, fmt.Errorf("%s: %w", InfoEntry, types.ErrNotFound)
	}
	rc, err := f.Open()
	if err != nil {
		return info, fmt.Errorf("%w: opening %s: %w", types.ErrInvalidArchive, InfoEntry, err)
	}
	defer rc.Close()
	if err := json.NewDecoder(rc).Decode(&info); err != nil {
		return info, fmt.Errorf("%w: decoding %s: %w", types.ErrInvalidArchive, InfoEntry, err)
	}
	return info, nil
}

// Names lists every entry name in archive order.
func (r *Reader) Names() []string {
	names := make([]string, 0, len(r.zr.File))
	for _, f := range r.zr.File {
		names = append(names, f.Name)
	}
	return names
}

func (r *Reader) find(name string) *zip.File {
	for _, f := range r.zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// extract copies one entry to dest, creating or truncating it.
func extract(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: opening entry %s: %w", types.ErrInvalidArchive, f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %w", types.ErrStorage, dest, err)
	}
	_, err = io.Copy(out, rc)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dest)
		if errors.Is(err, zip.ErrChecksum) || errors.Is(err, zip.ErrFormat) {
			return fmt.Errorf("%w: reading entry %s: %w", types.ErrInvalidArchive, f.Name, err)
		}
		return fmt.Errorf("%w: extracting %s: %w", types.ErrStorage, f.Name, err)
	}
	return nil
}
