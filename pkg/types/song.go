package types

import (
	"fmt"
	"strings"
	"time"
)

// Uploader roles. The set is fixed; anything else is rejected as invalid input.
const (
	RoleD = "D"
	RoleM = "M"
	RoleJ = "J"
)

// validRoles is the set of recognized uploader roles.
var validRoles = map[string]bool{
	RoleD: true,
	RoleM: true,
	RoleJ: true,
}

// ValidRole reports whether role is one of the uploader roles.
func ValidRole(role string) bool {
	return validRoles[role]
}

// Song is one cataloged entry with its metadata and blob references.
// Blob references are filenames inside the uploads directory; an empty
// string means the song has no file of that kind.
type Song struct {
	SongID     string    `json:"id"`
	Name       string    `json:"song_name"`
	Artist     string    `json:"artist,omitempty"`
	Version    string    `json:"version,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	UploadedBy string    `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
	// Seq is a monotonic creation counter. It orders songs that share an
	// UploadedAt value.
	Seq        int64    `json:"seq"`
	MIDIFile   string   `json:"midi_filename,omitempty"`
	SourceFile string   `json:"source_filename,omitempty"`
	LyricFile  string   `json:"lyric_filename,omitempty"`
	TrackNames []string `json:"track_names"`
}

// File returns the stored filename for the given kind.
func (s *Song) File(kind BlobKind) string {
	switch kind {
	case BlobMIDI:
		return s.MIDIFile
	case BlobSource:
		return s.SourceFile
	case BlobLyric:
		return s.LyricFile
	}
	return ""
}

// SetFile sets the stored filename for the given kind.
func (s *Song) SetFile(kind BlobKind, name string) {
	switch kind {
	case BlobMIDI:
		s.MIDIFile = name
	case BlobSource:
		s.SourceFile = name
	case BlobLyric:
		s.LyricFile = name
	}
}

// Files returns every non-empty blob reference of the song.
func (s *Song) Files() []string {
	var out []string
	for _, kind := range BlobKinds {
		if name := s.File(kind); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// ListedSong is a song together with its face id, the 1-based position of
// the song in ascending creation order. Face ids are recomputed on every
// listing and never stored.
type ListedSong struct {
	Song
	FaceID int `json:"face_id"`
}

// DownloadName builds the display filename for one of the song's files:
// "{faceID:03d}{role} - {name}[ - {artist}][ - v{version}].{ext}".
func (l *ListedSong) DownloadName(kind BlobKind) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%03d%s - %s", l.FaceID, l.UploadedBy, l.Name)
	if l.Artist != "" {
		b.WriteString(" - ")
		b.WriteString(l.Artist)
	}
	if l.Version != "" {
		b.WriteString(" - v")
		b.WriteString(l.Version)
	}
	b.WriteByte('.')
	b.WriteString(kind.DownloadExt())
	return b.String()
}

// SongInput carries the user-editable fields of a song.
type SongInput struct {
	Name       string
	Artist     string
	Version    string
	Notes      string
	UploadedBy string
}

// Normalize trims every field.
func (in SongInput) Normalize() SongInput {
	return SongInput{
		Name:       strings.TrimSpace(in.Name),
		Artist:     strings.TrimSpace(in.Artist),
		Version:    strings.TrimSpace(in.Version),
		Notes:      strings.TrimSpace(in.Notes),
		UploadedBy: strings.TrimSpace(in.UploadedBy),
	}
}

// Validate checks the required fields. Call it on a normalized input.
func (in SongInput) Validate() error {
	if in.Name == "" {
		return fmt.Errorf("%w: song name is required", ErrInvalidInput)
	}
	if !ValidRole(in.UploadedBy) {
		return fmt.Errorf("%w: uploader role %q is not one of %s, %s, %s",
			ErrInvalidInput, in.UploadedBy, RoleD, RoleM, RoleJ)
	}
	return nil
}

// Apply copies the input fields onto s.
func (in SongInput) Apply(s *Song) {
	s.Name = in.Name
	s.Artist = in.Artist
	s.Version = in.Version
	s.Notes = in.Notes
	s.UploadedBy = in.UploadedBy
}
