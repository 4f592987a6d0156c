package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileSource reads the dataset from a local path.
type FileSource struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
}

// NewFileSource creates a source for the file at path.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	return &FileSource{
		path:     filepath.Clean(path),
		debounce: 500 * time.Millisecond,
		logger:   logger,
	}
}

// String identifies the source in logs.
func (s *FileSource) String() string { return s.path }

// Fetch reads the whole file.
func (s *FileSource) Fetch(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return string(b), nil
}

// Watch emits on the returned channel after the file is written or replaced.
// Bursts of events within the debounce window collapse into one signal. The
// channel is closed when ctx is done.
func (s *FileSource) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory so editors that replace the file via rename still fire.
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	out := make(chan struct{}, 1)
	go s.watchLoop(ctx, w, out)
	return out, nil
}

func (s *FileSource) watchLoop(ctx context.Context, w *fsnotify.Watcher, out chan<- struct{}) {
	defer close(out)
	defer w.Close()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != s.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				timer.Reset(s.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			s.logger.Info("source file changed", "path", s.path)
			select {
			case out <- struct{}{}:
			default:
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("source watch error", "path", s.path, "error", err)
		}
	}
}
