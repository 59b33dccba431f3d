package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/midishelf/internal/paths"
	"github.com/mesh-intelligence/midishelf/internal/shelf"
	"github.com/mesh-intelligence/midishelf/pkg/types"
)

// shelfConfig resolves the data directory and limits from flags and
// config.yaml.
func (a *app) shelfConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.dataDir, a.v.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	return types.Config{
		DataDir:        dataDir,
		MaxUploadBytes: a.v.GetInt64(cfgKeyMaxUpload),
		AppVersion:     a.v.GetString(cfgKeyAppVersion),
	}, nil
}

// withShelf opens the shelf, runs fn and closes the shelf again.
func (a *app) withShelf(fn func(*shelf.Shelf) error) (err error) {
	cfg, err := a.shelfConfig()
	if err != nil {
		return err
	}
	s, err := shelf.Open(cfg, shelf.Options{Logger: a.log})
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.Close())
	}()
	return fn(s)
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// uploadFiles opens user-supplied files and closes them together.
type uploadFiles struct {
	files []*os.File
}

// open returns an upload for path, or nil when path is empty.
func (u *uploadFiles) open(path string) (*shelf.Upload, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}
	u.files = append(u.files, f)
	return &shelf.Upload{Name: filepath.Base(path), Body: f}, nil
}

func (u *uploadFiles) Close() {
	for _, f := range u.files {
		f.Close()
	}
}

// fileNameReplacer keeps display names inside the target directory.
var fileNameReplacer = strings.NewReplacer("/", "_", "\\", "_")

// safeFileName makes a display name usable as a local file name.
func safeFileName(name string) string {
	return fileNameReplacer.Replace(name)
}

// createOutput creates the file at path for writing. The returned finish
// function closes it and removes it again when err is non-nil.
func createOutput(path string) (*os.File, func(err error) error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}
	finish := func(err error) error {
		closeErr := f.Close()
		if err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(path)
		}
		return err
	}
	return f, finish, nil
}
