package node

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ethmock/ethmock/log"
)

// reloadDebounce coalesces the burst of fsnotify events editors produce
// for a single save.
const reloadDebounce = 250 * time.Millisecond

// Watcher reloads the node when its configuration file changes. It watches
// the parent directory rather than the file itself so atomic-rename saves
// (vim, VS Code) keep working after the original inode disappears.
type Watcher struct {
	path   string
	node   *Node
	logger *log.Logger
	fsw    *fsnotify.Watcher

	once sync.Once
	quit chan struct{}
	done chan struct{}
}

// NewWatcher creates a watcher for the given configuration file.
func NewWatcher(path string, node *Node, logger *log.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{
		path:   abs,
		node:   node,
		logger: logger.Module("watcher"),
		fsw:    fsw,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Start launches the watch loop.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop terminates the watch loop and releases the underlying watcher.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.quit)
		<-w.done
		w.fsw.Close()
	})
}

func (w *Watcher) loop() {
	defer close(w.done)

	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			if err := w.node.Reload(); err != nil {
				w.logger.Error("reload failed, keeping previous config", "err", err)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "err", err)

		case <-w.quit:
			return
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
		return false
	}
	match, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	return match == w.path
}
