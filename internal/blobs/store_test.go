package blobs

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/midishelf/pkg/types"
)

var storedName = regexp.MustCompile(`^[0-9a-f]{12}\.[a-z]+$`)

func newStore(t *testing.T, maxBytes int64) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "uploads"), maxBytes)
	require.NoError(t, err)
	return s
}

func TestNewStore(t *testing.T) {
	s := newStore(t, 0)
	_, err := os.Stat(filepath.Join(s.Dir(), types.KeepMarkerName))
	assert.NoError(t, err, "placeholder marker should exist")

	_, err = NewStore("  ", 0)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestSave(t *testing.T) {
	tests := []struct {
		name     string
		original string
		kind     types.BlobKind
		wantExt  string
		wantErr  error
	}{
		{name: "mid", original: "song.mid", kind: types.BlobMIDI, wantExt: "mid"},
		{name: "upper-case midi", original: "SONG.MIDI", kind: types.BlobMIDI, wantExt: "midi"},
		{name: "source", original: "score.musz", kind: types.BlobSource, wantExt: "musz"},
		{name: "lyric", original: "words.lrc", kind: types.BlobLyric, wantExt: "lrc"},
		{name: "wrong extension for kind", original: "words.lrc", kind: types.BlobMIDI, wantErr: types.ErrInvalidInput},
		{name: "no extension", original: "song", kind: types.BlobMIDI, wantErr: types.ErrInvalidInput},
		{name: "unknown kind", original: "song.mid", kind: types.BlobKind("video"), wantErr: types.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t, 0)
			name, path, err := s.Save(strings.NewReader("content"), tt.original, tt.kind)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				names, listErr := s.List()
				require.NoError(t, listErr)
				assert.Empty(t, names, "nothing should be stored")
				return
			}
			require.NoError(t, err)
			assert.Regexp(t, storedName, name)
			assert.Equal(t, "."+tt.wantExt, filepath.Ext(name))
			assert.Equal(t, s.Path(name), path)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "content", string(data))
		})
	}
}

func TestSaveNamesAreUnique(t *testing.T) {
	s := newStore(t, 0)
	seen := map[string]bool{}
	for range 50 {
		name, _, err := s.Save(strings.NewReader("x"), "a.mid", types.BlobMIDI)
		require.NoError(t, err)
		assert.False(t, seen[name], "duplicate name %s", name)
		seen[name] = true
	}
}

func TestSaveSizeLimit(t *testing.T) {
	s := newStore(t, 8)

	_, _, err := s.Save(bytes.NewReader(make([]byte, 8)), "ok.mid", types.BlobMIDI)
	require.NoError(t, err)

	_, _, err = s.Save(bytes.NewReader(make([]byte, 9)), "big.mid", types.BlobMIDI)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	names, err := s.List()
	require.NoError(t, err)
	assert.Len(t, names, 1)
}

func TestRemoveAndExists(t *testing.T) {
	s := newStore(t, 0)
	name, _, err := s.Save(strings.NewReader("x"), "a.lrc", types.BlobLyric)
	require.NoError(t, err)

	assert.True(t, s.Exists(name))
	require.NoError(t, s.Remove(name))
	assert.False(t, s.Exists(name))
	assert.NoError(t, s.Remove(name), "removing a missing blob is not an error")
	assert.NoError(t, s.Remove(""))
	assert.False(t, s.Exists(""))
}

func TestList(t *testing.T) {
	s := newStore(t, 0)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "b.mid"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "a.lrc"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), ".DS_Store"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(s.Dir(), "nested"), 0o755))

	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.lrc", "b.mid"}, names)

	missing, err := List(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}
