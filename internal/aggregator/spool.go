package aggregator

import (
	"context"
	"encoding/json"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/nestwatch/nestwatch/internal/model"
)

// Spool reads activity-segment files dropped by the reporting environment.
// Each file holds one interval's JSON-encoded segment array and is removed
// once consumed, so a sequence is never restartable.
type Spool struct {
	dir string
	log zerolog.Logger
}

// NewSpool ensures the spool directory exists and returns a reader over it.
func NewSpool(dir string, log zerolog.Logger) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Spool{dir: dir, log: log}, nil
}

// Drain yields every pending segment in file order, deleting each spool file
// after its segments have been consumed. Malformed files are logged and
// removed so they cannot wedge the reporter.
func (s *Spool) Drain() iter.Seq[model.ActivitySegment] {
	return func(yield func(model.ActivitySegment) bool) {
		files, err := s.pendingFiles()
		if err != nil {
			s.log.Error().Err(err).Msg("spool scan failed")
			return
		}
		for _, path := range files {
			raw, err := os.ReadFile(path)
			if err != nil {
				s.log.Error().Err(err).Str("file", path).Msg("spool read failed")
				continue
			}
			var elems []json.RawMessage
			if err := json.Unmarshal(raw, &elems); err != nil {
				s.log.Warn().Err(err).Str("file", path).Msg("malformed spool file dropped")
				_ = os.Remove(path)
				continue
			}
			for _, elem := range elems {
				// A segment that omits bucketHour must not land in hour 0;
				// -1 defers the bucket to the segment's start time.
				seg := model.ActivitySegment{BucketHour: -1}
				if err := json.Unmarshal(elem, &seg); err != nil {
					s.log.Warn().Err(err).Str("file", path).Msg("malformed segment dropped")
					continue
				}
				if !yield(seg) {
					return
				}
			}
			_ = os.Remove(path)
		}
	}
}

// Watch signals whenever a new segment file lands in the spool directory.
// The returned channel is closed when ctx ends.
func (s *Spool) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(s.dir); err != nil {
		_ = w.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) {
					select {
					case out <- struct{}{}:
					default:
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn().Err(err).Msg("spool watcher error")
			}
		}
	}()
	return out, nil
}

// ThresholdEvent is a threshold-crossing signal from the reporting
// environment, dropped as a `.event.json` file next to the segment files.
type ThresholdEvent struct {
	Event string `json:"event"`
	AppID string `json:"appId"`
}

// DrainEvents consumes all pending threshold-event files.
func (s *Spool) DrainEvents() []ThresholdEvent {
	files, err := s.pending(eventSuffix)
	if err != nil {
		s.log.Error().Err(err).Msg("spool event scan failed")
		return nil
	}
	var out []ThresholdEvent
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			s.log.Error().Err(err).Str("file", path).Msg("spool read failed")
			continue
		}
		var ev ThresholdEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			s.log.Warn().Err(err).Str("file", path).Msg("malformed event file dropped")
			_ = os.Remove(path)
			continue
		}
		out = append(out, ev)
		_ = os.Remove(path)
	}
	return out
}

const (
	segmentSuffix = ".json"
	eventSuffix   = ".event.json"
)

func (s *Spool) pendingFiles() ([]string, error) {
	return s.pending(segmentSuffix)
}

func (s *Spool) pending(suffix string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		// Segment files must not pick up event files.
		if suffix == segmentSuffix && strings.HasSuffix(e.Name(), eventSuffix) {
			continue
		}
		files = append(files, filepath.Join(s.dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
