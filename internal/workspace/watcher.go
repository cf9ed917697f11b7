package workspace

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates the workspace's cached recursive listing when any
// file under the root changes, so repeated file_list calls during a long
// research turn do not re-walk an unchanged tree. Out-of-band changes
// (sandbox artifact writes, cache fills) are picked up because the watch
// covers every directory, not just tool-mediated writes.
type Watcher struct {
	ws      *Workspace
	fs      *fsnotify.Watcher
	mu      sync.Mutex
	dirty   bool
	cached  []Entry
	stopped bool
}

// StartWatcher begins watching the workspace tree. The workspace must be
// initialized first. The caller owns the returned watcher and must Stop it
// before workspace cleanup.
func (w *Workspace) StartWatcher() (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	watcher := &Watcher{ws: w, fs: fs, dirty: true}

	err = filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fs.Add(path)
		}
		return nil
	})
	if err != nil {
		fs.Close()
		return nil, err
	}

	go watcher.run()
	w.setWatcher(watcher)
	return watcher, nil
}

func (wa *Watcher) run() {
	for {
		select {
		case event, ok := <-wa.fs.Events:
			if !ok {
				return
			}
			wa.mu.Lock()
			wa.dirty = true
			wa.mu.Unlock()
			// New directories need their own watch for events beneath them.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					wa.fs.Add(event.Name)
				}
			}
		case _, ok := <-wa.fs.Errors:
			if !ok {
				return
			}
			wa.mu.Lock()
			wa.dirty = true
			wa.mu.Unlock()
		}
	}
}

// entries returns the cached full-tree listing, re-walking only when a
// change was observed since the last walk.
func (wa *Watcher) entries() ([]Entry, error) {
	wa.mu.Lock()
	defer wa.mu.Unlock()
	if !wa.dirty && wa.cached != nil {
		return wa.cached, nil
	}
	entries, err := wa.ws.walk("")
	if err != nil {
		return nil, err
	}
	wa.cached = entries
	wa.dirty = false
	return entries, nil
}

// Stop detaches the watcher from the workspace and closes the underlying
// notify handle.
func (wa *Watcher) Stop() {
	wa.mu.Lock()
	if wa.stopped {
		wa.mu.Unlock()
		return
	}
	wa.stopped = true
	wa.mu.Unlock()
	wa.ws.setWatcher(nil)
	wa.fs.Close()
}
