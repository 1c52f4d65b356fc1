// Package watch turns files dropped into a folder into render jobs.
package watch

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultSettle is how long a file must stay quiet before it is reported.
// Copies arrive as a create followed by a burst of writes.
const DefaultSettle = 500 * time.Millisecond

type Watcher struct {
	watcher *fsnotify.Watcher
	Events  chan string
	Errors  chan error

	settle  time.Duration
	match   func(path string) bool
	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

// New watches dir and reports files accepted by match once they have been
// quiet for settle.
func New(dir string, settle time.Duration, match func(path string) bool) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	if settle <= 0 {
		settle = DefaultSettle
	}

	watcher := &Watcher{
		watcher: w,
		Events:  make(chan string, 16),
		Errors:  make(chan error, 1),
		settle:  settle,
		match:   match,
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go watcher.run()
	return watcher, nil
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		<-w.done
		close(w.Events)
		close(w.Errors)
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.done)

	pending := make(map[string]time.Time)
	tick := time.NewTicker(max(w.settle/4, 10*time.Millisecond))
	defer tick.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.match != nil && !w.match(event.Name) {
				continue
			}
			switch {
			case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
				delete(pending, event.Name)
			case event.Op.Has(fsnotify.Create), event.Op.Has(fsnotify.Write):
				pending[event.Name] = time.Now()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
			}
		case now := <-tick.C:
			for name, t := range pending {
				if now.Sub(t) < w.settle {
					continue
				}
				delete(pending, name)
				select {
				case w.Events <- name:
				case <-w.closeCh:
					return
				}
			}
		case <-w.closeCh:
			return
		}
	}
}

// Serve calls handle for every settled file, one at a time, until ctx is
// done. Handler errors are logged and do not stop the loop.
func (w *Watcher) Serve(ctx context.Context, log zerolog.Logger, handle func(ctx context.Context, path string) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path, ok := <-w.Events:
			if !ok {
				return nil
			}
			log.Info().Str("file", path).Msg("new model")
			if err := handle(ctx, path); err != nil {
				log.Error().Err(err).Str("file", path).Msg("render failed")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watch error")
		}
	}
}
