// Package watch reports changes to a fixed set of input files so an
// analysis can be re-run when its data is refreshed.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeKind describes the type of file change detected.
type ChangeKind int

const (
	ChangeModified ChangeKind = iota // Input written or recreated
	ChangeRemoved                    // Input deleted or renamed away
)

// String returns the lowercase name of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeModified:
		return "modified"
	case ChangeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Change represents a detected change to one watched input.
type Change struct {
	Kind ChangeKind
	File string // Absolute path
}

// Debounce is how long a file must stay quiet before its change is
// reported. Exporters often write a CSV in several bursts.
const Debounce = 100 * time.Millisecond

// Watcher monitors input files using fsnotify. Directories are watched
// rather than the files themselves so that atomic replace-by-rename is
// still seen.
type Watcher struct {
	Files   []string
	Changes <-chan Change // Read-only external channel

	changes chan Change // Internal write channel
	files   map[string]bool
	done    chan struct{}
	watcher *fsnotify.Watcher
}

// New creates a watcher for the given files. Empty paths are skipped.
func New(files ...string) (*Watcher, error) {
	set := make(map[string]bool, len(files))
	var abs []string
	for _, f := range files {
		if f == "" {
			continue
		}
		p, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("watch: resolving %s: %w", f, err)
		}
		if !set[p] {
			set[p] = true
			abs = append(abs, p)
		}
	}
	if len(abs) == 0 {
		return nil, fmt.Errorf("watch: no files to watch")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	ch := make(chan Change, 16)
	return &Watcher{
		Files:   abs,
		Changes: ch,
		changes: ch,
		files:   set,
		done:    make(chan struct{}),
		watcher: fw,
	}, nil
}

// Start begins watching the directories holding the files. On error the
// watcher is closed and must not be stopped.
func (w *Watcher) Start() error {
	dirs := make(map[string]bool)
	for _, f := range w.Files {
		d := filepath.Dir(f)
		if dirs[d] {
			continue
		}
		dirs[d] = true
		if err := w.watcher.Add(d); err != nil {
			w.watcher.Close()
			return fmt.Errorf("watch: adding %s: %w", d, err)
		}
	}

	go w.loop()
	return nil
}

// Stop closes the watcher and channels.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done // Wait for loop to exit
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	// Debounce: track last event time per file.
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(Debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				// Drain pending on close.
				for file := range pending {
					w.emitChange(file)
				}
				return
			}

			if !w.files[filepath.Clean(event.Name)] {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[filepath.Clean(event.Name)] = time.Now()
			}

		case _, ok := <-ticker.C:
			if !ok {
				return
			}
			now := time.Now()
			for file, t := range pending {
				if now.Sub(t) >= Debounce {
					w.emitChange(file)
					delete(pending, file)
				}
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Ignore watch errors; they're non-fatal.
		}
	}
}

// emitChange reports a settled change. When the buffer is full the change
// is dropped: a re-run is already queued.
func (w *Watcher) emitChange(file string) {
	kind := ChangeModified
	if _, err := os.Stat(file); err != nil {
		kind = ChangeRemoved
	}
	select {
	case w.changes <- Change{Kind: kind, File: file}:
	default:
	}
}
