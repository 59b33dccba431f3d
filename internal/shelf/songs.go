package shelf

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mesh-intelligence/midishelf/pkg/types"
)

// Upload is one file supplied by the user. Name only contributes the
// extension.
type Upload struct {
	Name string
	Body io.Reader
}

// Uploads carries the optional files of a create or update call.
type Uploads struct {
	MIDI   *Upload
	Source *Upload
	Lyric  *Upload
}

func (u Uploads) get(kind types.BlobKind) *Upload {
	switch kind {
	case types.BlobMIDI:
		return u.MIDI
	case types.BlobSource:
		return u.Source
	case types.BlobLyric:
		return u.Lyric
	}
	return nil
}

// Clear asks UpdateSong to drop existing files without replacing them.
// A new upload of the same kind takes precedence.
type Clear struct {
	MIDI   bool
	Source bool
	Lyric  bool
}

func (c Clear) get(kind types.BlobKind) bool {
	switch kind {
	case types.BlobMIDI:
		return c.MIDI
	case types.BlobSource:
		return c.Source
	case types.BlobLyric:
		return c.Lyric
	}
	return false
}

// CreateSong validates in, stores the uploaded files, extracts MIDI track
// names and inserts the record. A MIDI upload is required. If the insert
// fails the stored files are removed again.
func (s *Shelf) CreateSong(ctx context.Context, in types.SongInput, files Uploads) (string, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return "", err
	}
	if files.MIDI == nil || files.MIDI.Name == "" {
		return "", fmt.Errorf("%w: a MIDI file is required", types.ErrInvalidInput)
	}

	s.gate.Lock()
	defer s.gate.Unlock()

	song := &types.Song{}
	in.Apply(song)

	saved, err := s.saveUploads(song, files)
	if err != nil {
		return "", err
	}
	if err := s.catalog.Insert(ctx, song); err != nil {
		s.removeBlobs(saved)
		return "", err
	}

	s.log.Info("song created", "id", song.SongID, "name", song.Name, "tracks", len(song.TrackNames))
	return song.SongID, nil
}

// UpdateSong replaces the metadata of song id, swaps in any uploaded files
// and drops files flagged in drop. Replaced files are deleted only after
// the record has been updated, so a failure leaves the previous state
// intact.
func (s *Shelf) UpdateSong(ctx context.Context, id string, in types.SongInput, files Uploads, drop Clear) error {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return err
	}

	s.gate.Lock()
	defer s.gate.Unlock()

	song, err := s.catalog.Get(ctx, id)
	if err != nil {
		return err
	}
	previous := *song
	in.Apply(song)

	for _, kind := range types.BlobKinds {
		if drop.get(kind) && files.get(kind) == nil {
			song.SetFile(kind, "")
			if kind == types.BlobMIDI {
				song.TrackNames = nil
			}
		}
	}

	saved, err := s.saveUploads(song, files)
	if err != nil {
		return err
	}
	if err := s.catalog.Update(ctx, song); err != nil {
		s.removeBlobs(saved)
		return err
	}

	var stale []string
	for _, kind := range types.BlobKinds {
		if old := previous.File(kind); old != "" && old != song.File(kind) {
			stale = append(stale, old)
		}
	}
	s.removeBlobs(stale)

	s.log.Info("song updated", "id", id, "name", song.Name)
	return nil
}

// DeleteSong removes the record and its files.
func (s *Shelf) DeleteSong(ctx context.Context, id string) error {
	s.gate.Lock()
	defer s.gate.Unlock()

	song, err := s.catalog.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.catalog.Delete(ctx, id); err != nil {
		return err
	}
	s.removeBlobs(song.Files())

	s.log.Info("song deleted", "id", id, "name", song.Name)
	return nil
}

// GetSong returns one record or ErrNotFound.
func (s *Shelf) GetSong(ctx context.Context, id string) (*types.Song, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()
	return s.catalog.Get(ctx, id)
}

// ListSongs returns every record in creation order with face ids 1..n.
func (s *Shelf) ListSongs(ctx context.Context) ([]types.ListedSong, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()
	return s.listLocked(ctx)
}

func (s *Shelf) listLocked(ctx context.Context) ([]types.ListedSong, error) {
	songs, err := s.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	listed := make([]types.ListedSong, len(songs))
	for i, song := range songs {
		listed[i] = types.ListedSong{Song: *song, FaceID: i + 1}
	}
	return listed, nil
}

// OpenFile locates one of a song's files and returns its path and the
// display name it should be downloaded under.
func (s *Shelf) OpenFile(ctx context.Context, id string, kind types.BlobKind) (string, string, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()

	listed, err := s.listLocked(ctx)
	if err != nil {
		return "", "", err
	}
	for i := range listed {
		song := &listed[i]
		if song.SongID != id {
			continue
		}
		name := song.File(kind)
		if name == "" || !s.blobs.Exists(name) {
			return "", "", fmt.Errorf("%s file of song %s: %w", kind, id, types.ErrNotFound)
		}
		return s.blobs.Path(name), song.DownloadName(kind), nil
	}
	return "", "", fmt.Errorf("song %s: %w", id, types.ErrNotFound)
}

// saveUploads stores every supplied file, updating song's references and,
// for MIDI, its track names. On failure the files saved so far are removed
// and song is left with partially updated references, so callers must not
// persist it.
func (s *Shelf) saveUploads(song *types.Song, files Uploads) ([]string, error) {
	var saved []string
	for _, kind := range types.BlobKinds {
		up := files.get(kind)
		if up == nil {
			continue
		}
		if up.Body == nil {
			s.removeBlobs(saved)
			return nil, fmt.Errorf("%w: %s upload has no content", types.ErrInvalidInput, kind)
		}
		name, path, err := s.blobs.Save(up.Body, up.Name, kind)
		if err != nil {
			s.removeBlobs(saved)
			return nil, err
		}
		saved = append(saved, name)
		song.SetFile(kind, name)
		if kind == types.BlobMIDI {
			song.TrackNames = s.trackNames(path)
		}
	}
	return saved, nil
}

// removeBlobs deletes files best-effort; failures are logged.
func (s *Shelf) removeBlobs(names []string) {
	var errs []error
	for _, name := range names {
		if err := s.blobs.Remove(name); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.log.Warn("cannot remove blobs", "error", err)
	}
}

// trackNames runs the extractor, guaranteeing a non-nil list for songs that
// have a MIDI file.
func (s *Shelf) trackNames(path string) []string {
	names := s.tracks.TrackNames(path)
	if names == nil {
		names = []string{}
	}
	return names
}
