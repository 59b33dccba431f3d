package types

import (
	"fmt"
	"path/filepath"
	"strings"
)

// BlobKind identifies which of a song's files a blob is.
type BlobKind string

// Blob kinds.
const (
	BlobMIDI   BlobKind = "midi"
	BlobSource BlobKind = "source"
	BlobLyric  BlobKind = "lyric"
)

// BlobKinds lists every kind in display order.
var BlobKinds = []BlobKind{BlobMIDI, BlobSource, BlobLyric}

// allowedExtensions maps each kind to the lower-case extensions it accepts.
var allowedExtensions = map[BlobKind][]string{
	BlobMIDI:   {"mid", "midi"},
	BlobSource: {"musz"},
	BlobLyric:  {"lrc"},
}

// ParseBlobKind converts a user-supplied kind name.
func ParseBlobKind(s string) (BlobKind, error) {
	kind := BlobKind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := allowedExtensions[kind]; !ok {
		return "", fmt.Errorf("%w: unknown file kind %q", ErrInvalidInput, s)
	}
	return kind, nil
}

// Extensions returns the extensions accepted for the kind.
func (k BlobKind) Extensions() []string {
	return allowedExtensions[k]
}

// DownloadExt is the extension used in download filenames.
func (k BlobKind) DownloadExt() string {
	exts := allowedExtensions[k]
	if len(exts) == 0 {
		return ""
	}
	return exts[0]
}

// Extension returns the lower-cased extension of filename if the kind
// accepts it. It returns ErrInvalidInput otherwise.
func (k BlobKind) Extension(filename string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	for _, allowed := range allowedExtensions[k] {
		if ext == allowed {
			return ext, nil
		}
	}
	return "", fmt.Errorf("%w: %s file %q must have extension %s",
		ErrInvalidInput, k, filename, strings.Join(allowedExtensions[k], " or "))
}
