// Package blobs stores uploaded files in a flat directory under random,
// content-independent names.
package blobs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/midishelf/pkg/types"
)

// nameLength is the number of hex characters in a stored name.
const nameLength = 12

// maxNameAttempts bounds retries when a generated name already exists.
const maxNameAttempts = 8

// Store saves uploaded files to disk under a base directory.
type Store struct {
	dir      string
	maxBytes int64
}

// NewStore creates the base directory and its placeholder marker if
// missing. maxBytes limits the size of a single upload; zero means no
// limit.
func NewStore(dir string, maxBytes int64) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: blob directory is required", types.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create blob dir: %w", types.ErrStorage, err)
	}
	if err := EnsureKeep(dir); err != nil {
		return nil, err
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

// EnsureKeep writes the placeholder marker into dir if it is missing.
func EnsureKeep(dir string) error {
	keep := filepath.Join(dir, types.KeepMarkerName)
	if _, err := os.Stat(keep); err == nil {
		return nil
	}
	if err := os.WriteFile(keep, nil, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %w", types.ErrStorage, keep, err)
	}
	return nil
}

// Dir returns the base directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the absolute location of a stored blob.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// Save copies r into a new blob for kind. originalName only supplies the
// extension, which must be one the kind accepts. It returns the stored name
// and its path. Disallowed extensions and oversized content return
// ErrInvalidInput and leave nothing behind.
func (s *Store) Save(r io.Reader, originalName string, kind types.BlobKind) (string, string, error) {
	ext, err := kind.Extension(originalName)
	if err != nil {
		return "", "", err
	}

	out, name, err := s.create(ext)
	if err != nil {
		return "", "", err
	}
	path := out.Name()

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(out, src)
	if err == nil {
		err = out.Sync()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", "", fmt.Errorf("%w: write blob: %w", types.ErrStorage, err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		os.Remove(path)
		return "", "", fmt.Errorf("%w: %s exceeds the %d byte upload limit", types.ErrInvalidInput, originalName, s.maxBytes)
	}
	return name, path, nil
}

// create opens a new, exclusively created file with a random name.
func (s *Store) create(ext string) (*os.File, string, error) {
	for range maxNameAttempts {
		name := randomName() + "." + ext
		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, name, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("%w: create blob: %w", types.ErrStorage, err)
		}
	}
	return nil, "", fmt.Errorf("%w: could not allocate a unique blob name", types.ErrStorage)
}

// Remove deletes a blob. A missing blob is not an error.
func (s *Store) Remove(name string) error {
	if name == "" {
		return nil
	}
	if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove blob %s: %w", types.ErrStorage, name, err)
	}
	return nil
}

// Exists reports whether a blob is present.
func (s *Store) Exists(name string) bool {
	if name == "" {
		return false
	}
	info, err := os.Stat(s.Path(name))
	return err == nil && info.Mode().IsRegular()
}

// List returns the names of every stored blob in lexical order, skipping
// the placeholder marker, other dot-files and directories.
func (s *Store) List() ([]string, error) {
	return List(s.dir)
}

// List returns the blob names found in dir.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read blob dir: %w", types.ErrStorage, err)
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || IsHidden(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// IsHidden reports whether name is a placeholder or other dot-file that is
// never treated as a blob.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// randomName returns nameLength hex characters from a random UUID.
func randomName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:nameLength]
}
