// Package shelf is the catalog service: it ties the song database, the blob
// directory and the MIDI extractor together and serializes every operation
// that touches them behind a single gate.
package shelf

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mesh-intelligence/midishelf/internal/blobs"
	"github.com/mesh-intelligence/midishelf/internal/midi"
	"github.com/mesh-intelligence/midishelf/internal/sqlite"
	"github.com/mesh-intelligence/midishelf/pkg/types"
)

// TrackExtractor names the musical tracks of a MIDI file. It must not fail;
// an unreadable file yields an empty list.
type TrackExtractor interface {
	TrackNames(path string) []string
}

// Options customizes Open. The zero value is usable.
type Options struct {
	Logger    *slog.Logger
	Extractor TrackExtractor
	// Now is the clock used for archive timestamps.
	Now func() time.Time
}

// Shelf is a handle on one data directory. Create, update, delete and
// restore take the gate exclusively; reads and backups share it.
type Shelf struct {
	gate    sync.RWMutex
	config  types.Config
	catalog *sqlite.Backend
	blobs   *blobs.Store
	tracks  TrackExtractor
	log     *slog.Logger
	now     func() time.Time
}

// Open attaches a Shelf to config.DataDir, creating the store on first use.
func Open(config types.Config, opts Options) (*Shelf, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}
	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %w", types.ErrStorage, err)
	}

	s := &Shelf{
		config:  config,
		catalog: sqlite.NewBackend(),
		tracks:  opts.Extractor,
		log:     opts.Logger,
		now:     opts.Now,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.tracks == nil {
		s.tracks = midi.NewExtractor(s.log)
	}
	if s.now == nil {
		s.now = time.Now
	}

	if err := s.attach(); err != nil {
		return nil, err
	}
	return s, nil
}

// attach opens the catalog and the blob store for the current store
// directory. The caller must hold the gate exclusively or own s alone.
func (s *Shelf) attach() error {
	if err := s.catalog.Attach(s.config); err != nil {
		return fmt.Errorf("attach catalog: %w", err)
	}
	store, err := blobs.NewStore(s.config.UploadsDir(), s.config.UploadLimit())
	if err != nil {
		return errors.Join(err, s.catalog.Detach())
	}
	s.blobs = store
	return nil
}

// Close detaches the catalog. Idempotent.
func (s *Shelf) Close() error {
	s.gate.Lock()
	defer s.gate.Unlock()
	return s.catalog.Detach()
}

// Config returns the configuration the shelf was opened with.
func (s *Shelf) Config() types.Config {
	return s.config
}
