// Package miditest assembles small Standard MIDI Files byte by byte for
// tests, including deliberately broken ones.
package miditest

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// DefaultTicks is the resolution written by File.
const DefaultTicks = 480

// Track collects the events of one MTrk chunk.
type Track struct {
	buf bytes.Buffer
}

// event appends a delta time followed by raw event bytes.
func (t *Track) event(delta uint32, data ...byte) *Track {
	t.buf.Write(vlq(delta))
	t.buf.Write(data)
	return t
}

func (t *Track) meta(typ byte, data []byte) *Track {
	t.buf.Write(vlq(0))
	t.buf.WriteByte(0xFF)
	t.buf.WriteByte(typ)
	t.buf.Write(vlq(uint32(len(data))))
	t.buf.Write(data)
	return t
}

// Name adds a track-name meta event. The text is written verbatim, so it
// may contain invalid UTF-8 or control bytes.
func (t *Track) Name(text string) *Track {
	return t.meta(0x03, []byte(text))
}

// Tempo adds a set-tempo meta event of 120 bpm.
func (t *Track) Tempo() *Track {
	return t.meta(0x51, []byte{0x07, 0xA1, 0x20})
}

// Meter adds a 4/4 time-signature meta event.
func (t *Track) Meter() *Track {
	return t.meta(0x58, []byte{4, 2, 24, 8})
}

// Note adds a note-on followed a quarter note later by a note-off.
func (t *Track) Note(key byte) *Track {
	t.event(0, 0x90, key, 100)
	return t.event(DefaultTicks, 0x80, key, 0)
}

// NoteOffOnly adds a lone note-off event.
func (t *Track) NoteOffOnly(key byte) *Track {
	return t.event(0, 0x80, key, 0)
}

// Controller adds a control-change event, which is neither note-on nor
// note-off.
func (t *Track) Controller(cc, value byte) *Track {
	return t.event(0, 0xB0, cc, value)
}

// chunk returns the MTrk chunk, terminated with an end-of-track event.
func (t *Track) chunk() []byte {
	body := append(append([]byte{}, t.buf.Bytes()...), 0x00, 0xFF, 0x2F, 0x00)
	var out bytes.Buffer
	out.WriteString("MTrk")
	binary.Write(&out, binary.BigEndian, uint32(len(body)))
	out.Write(body)
	return out.Bytes()
}

// Bytes returns a format-1 file holding the given tracks.
func Bytes(tracks ...*Track) []byte {
	var out bytes.Buffer
	out.WriteString("MThd")
	binary.Write(&out, binary.BigEndian, uint32(6))
	binary.Write(&out, binary.BigEndian, uint16(1))
	binary.Write(&out, binary.BigEndian, uint16(len(tracks)))
	binary.Write(&out, binary.BigEndian, uint16(DefaultTicks))
	for _, t := range tracks {
		out.Write(t.chunk())
	}
	return out.Bytes()
}

// File writes Bytes(tracks...) to a file named name inside a test temp
// directory and returns its path.
func File(t testing.TB, name string, tracks ...*Track) string {
	t.Helper()
	return Write(t, name, Bytes(tracks...))
}

// Write stores data in a file named name inside a test temp directory.
func Write(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// vlq encodes v as a MIDI variable-length quantity.
func vlq(v uint32) []byte {
	out := []byte{byte(v & 0x7F)}
	for v >>= 7; v > 0; v >>= 7 {
		out = append([]byte{byte(v&0x7F) | 0x80}, out...)
	}
	return out
}
