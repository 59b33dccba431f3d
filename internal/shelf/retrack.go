package shelf

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Retrack re-runs track extraction for every song with a MIDI file and
// stores the results in one transaction. It returns the number of songs
// updated. Extraction runs on up to GOMAXPROCS goroutines.
func (s *Shelf) Retrack(ctx context.Context) (int, error) {
	s.gate.Lock()
	defer s.gate.Unlock()

	songs, err := s.catalog.List(ctx)
	if err != nil {
		return 0, err
	}

	type job struct {
		id   string
		path string
	}
	var jobs []job
	for _, song := range songs {
		if song.MIDIFile == "" {
			continue
		}
		jobs = append(jobs, job{id: song.SongID, path: s.blobs.Path(song.MIDIFile)})
	}

	results := make([][]string, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.trackNames(j.path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	names := make(map[string][]string, len(jobs))
	for i, j := range jobs {
		names[j.id] = results[i]
	}
	if err := s.catalog.SetTrackNames(ctx, names); err != nil {
		return 0, err
	}

	s.log.Info("track names refreshed", "songs", len(names))
	return len(names), nil
}
