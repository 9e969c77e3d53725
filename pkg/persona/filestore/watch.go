package filestore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports the ids of personas whose files are created, edited,
// renamed or removed under a store directory. The id of a removed file is
// the one it held when last read.
type Watcher struct {
	dir      string
	fs       *fsnotify.Watcher
	onChange func(id string)
	logger   *slog.Logger

	mu  sync.Mutex
	ids map[string]string // file path -> persona id

	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// Watch starts watching the store directory. onChange is called from the
// watcher goroutine, once per affected persona per event.
func (s *Store) Watch(onChange func(id string)) (*Watcher, error) {
	return NewWatcher(s.dir, onChange, s.logger)
}

// NewWatcher watches dir for persona file changes.
func NewWatcher(dir string, onChange func(id string), logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating persona watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watching persona directory: %w", err)
	}

	w := &Watcher{
		dir:      dir,
		fs:       fw,
		onChange: onChange,
		logger:   logger,
		ids:      make(map[string]string),
	}
	w.scan()

	w.wg.Add(1)
	go w.run()

	return w, nil
}

// Close stops the watcher. No onChange call is made after it returns.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.fs.Close()
		w.wg.Wait()
	})
	return w.closeErr
}

// scan records the id held by every persona file already present, so a
// later removal can be attributed.
func (w *Watcher) scan() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("scanning persona directory", "dir", w.dir, "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, e := range entries {
		path := filepath.Join(w.dir, e.Name())
		if e.IsDir() || !isPersonaFile(path) {
			continue
		}
		if p, err := readFile(path); err == nil && p.ID != "" {
			w.ids[path] = p.ID
		}
	}
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("persona watcher error", "dir", w.dir, "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !isPersonaFile(ev.Name) {
		return
	}

	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		p, err := readFile(ev.Name)
		if err != nil || p.ID == "" {
			// Editors write in several steps; a later event carries the
			// complete file.
			w.logger.Debug("persona file not readable yet", "path", ev.Name, "error", err)
			return
		}

		w.mu.Lock()
		old := w.ids[ev.Name]
		w.ids[ev.Name] = p.ID
		w.mu.Unlock()

		if old != "" && old != p.ID {
			w.notify(old, ev)
		}
		w.notify(p.ID, ev)

	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.mu.Lock()
		id, ok := w.ids[ev.Name]
		delete(w.ids, ev.Name)
		w.mu.Unlock()

		if ok {
			w.notify(id, ev)
		}
	}
}

func (w *Watcher) notify(id string, ev fsnotify.Event) {
	w.logger.Debug("persona file changed",
		"persona_id", id,
		"path", ev.Name,
		"op", ev.Op.String(),
	)
	w.onChange(id)
}

func isPersonaFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".json":
		return true
	}
	return false
}
