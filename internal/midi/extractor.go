// Package midi names the musical tracks of Standard MIDI Files.
//
// Many notation exporters write a conductor track at index 0 that carries
// only tempo, meter and similar meta events. That track is skipped when it
// holds no note events so the first reported name belongs to an audible
// track.
package midi

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// minPrintableRatio is the share of printable runes a track name needs to
// be shown as is.
const minPrintableRatio = 0.7

// Info summarizes a MIDI file.
type Info struct {
	TrackCount      int      `json:"total_tracks"`
	TicksPerQuarter int      `json:"ticks_per_beat"`
	TrackNames      []string `json:"track_names"`
}

// Extractor reads MIDI files and reports their track names.
// The zero value logs through slog.Default.
type Extractor struct {
	Logger *slog.Logger
}

// NewExtractor returns an Extractor that logs through log.
func NewExtractor(log *slog.Logger) *Extractor {
	return &Extractor{Logger: log}
}

// TrackNames is a convenience wrapper around Extractor.TrackNames with the
// default logger.
func TrackNames(path string) []string {
	return (&Extractor{}).TrackNames(path)
}

// TrackNames returns one name per musical track of the file at path.
// It never fails: a file that cannot be read or parsed yields an empty,
// non-nil slice.
func (e *Extractor) TrackNames(path string) []string {
	s, err := e.read(path)
	if err != nil {
		return []string{}
	}
	return trackNames(s.Tracks)
}

// Inspect returns the track count, resolution and track names of the file
// at path. A file that cannot be parsed yields an Info with no tracks.
func (e *Extractor) Inspect(path string) Info {
	s, err := e.read(path)
	if err != nil {
		return Info{TrackNames: []string{}}
	}
	info := Info{
		TrackCount: len(s.Tracks),
		TrackNames: trackNames(s.Tracks),
	}
	if ticks, ok := s.TimeFormat.(smf.MetricTicks); ok {
		info.TicksPerQuarter = int(ticks)
	}
	return info
}

// read parses the file, converting parser panics into errors. Failures are
// logged and returned.
func (e *Extractor) read(path string) (s *smf.SMF, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, fmt.Errorf("parser panic: %v", r)
		}
		if err != nil {
			e.logger().Warn("cannot parse MIDI file", "path", path, "error", err)
		}
	}()
	return smf.ReadFile(path)
}

func (e *Extractor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// trackNames applies the selection and naming rules to parsed tracks.
func trackNames(tracks []smf.Track) []string {
	names := []string{}
	if len(tracks) == 0 {
		return names
	}

	selected := tracks
	if !hasNotes(tracks[0]) {
		selected = tracks[1:]
	}
	for i, track := range selected {
		names = append(names, trackName(track, i+1))
	}
	return names
}

// hasNotes reports whether the track contains a note-on or note-off event.
func hasNotes(track smf.Track) bool {
	var channel, key, velocity uint8
	for _, ev := range track {
		msg := gomidi.Message(ev.Message)
		if msg.GetNoteOn(&channel, &key, &velocity) || msg.GetNoteOff(&channel, &key, &velocity) {
			return true
		}
	}
	return false
}

// trackName returns the cleaned text of the first non-blank track-name
// event, or "Track n" when there is none or it is unreadable.
func trackName(track smf.Track, n int) string {
	fallback := fmt.Sprintf("Track %d", n)
	for _, ev := range track {
		var text string
		if !ev.Message.GetMetaTrackName(&text) {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if cleaned := cleanName(text); cleaned != "" {
			return cleaned
		}
		return fallback
	}
	return fallback
}

// cleanName drops bytes that are not valid UTF-8 and rejects names whose
// printable share is below minPrintableRatio by returning "".
func cleanName(name string) string {
	cleaned := strings.ToValidUTF8(name, "")
	total := utf8.RuneCountInString(cleaned)
	if total == 0 {
		return ""
	}
	printable := 0
	for _, r := range cleaned {
		if unicode.IsPrint(r) {
			printable++
		}
	}
	if float64(printable)/float64(total) < minPrintableRatio {
		return ""
	}
	return cleaned
}
