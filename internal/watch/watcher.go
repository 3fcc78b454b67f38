package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
)

// Uploader replaces the session's document with the file at path.
type Uploader interface {
	Upload(ctx context.Context, path string) (domain.Document, error)
}

type Options struct {
	Debounce time.Duration
	Logger   domain.Logger
	// OnUpload is called after every upload attempt.
	OnUpload func(domain.Document, error)
}

// Watcher re-uploads one local PDF whenever it changes on disk. Bursts of
// writes are collapsed into a single upload.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	uploader Uploader
	opts     Options
	logger   domain.Logger
}

// New watches the directory containing path, since editors often replace
// files by renaming over them.
func New(path string, up Uploader, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	var l domain.Logger = logger.NewNop()
	if opts.Logger != nil {
		l = opts.Logger
	}
	return &Watcher{watcher: w, path: abs, uploader: up, opts: opts, logger: l}, nil
}

// Run blocks until ctx is done or the underlying watcher closes.
func (w *Watcher) Run(ctx context.Context) error {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				timer.Reset(w.opts.Debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.upload(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher", "File watch error", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (w *Watcher) upload(ctx context.Context) {
	doc, err := w.uploader.Upload(ctx, w.path)
	if err != nil {
		w.logger.Error("Watcher", "Re-upload failed", map[string]interface{}{"file": w.path, "error": err})
	} else {
		w.logger.Info("Watcher", "Re-uploaded changed file", map[string]interface{}{"document": doc.Name})
	}
	if w.opts.OnUpload != nil {
		w.opts.OnUpload(doc, err)
	}
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
