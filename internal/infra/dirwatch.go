package infra

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/eliteGoblin/opencode-personas/internal/domain"
)

// DirWatcher reports persona files appearing, disappearing or being renamed.
// Writes to existing files are ignored: cached content stays authoritative
// until it is explicitly invalidated.
//
// A directory that does not exist yet is picked up once it is created, as
// long as its parent exists.
type DirWatcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	dir      string
	onChange func(name string)
	logger   *zap.Logger
	doneCh   chan struct{}
	running  bool
	pending  bool // Watching the parent until dir is created; owned by run
}

// NewDirWatcher creates a watcher for dir. onChange receives the file name.
func NewDirWatcher(dir string, onChange func(name string), logger *zap.Logger) (*DirWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirWatcher{
		watcher:  w,
		dir:      filepath.Clean(dir),
		onChange: onChange,
		logger:   logger,
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. It is non-blocking; events are handled until ctx is
// cancelled or Close is called.
func (dw *DirWatcher) Start(ctx context.Context) error {
	dw.mu.Lock()
	if dw.running {
		dw.mu.Unlock()
		return nil
	}
	dw.running = true
	dw.mu.Unlock()

	if err := dw.add(); err != nil {
		dw.mu.Lock()
		dw.running = false
		dw.mu.Unlock()
		return err
	}

	go dw.run(ctx)
	return nil
}

// add watches dir, or its parent while dir is missing.
func (dw *DirWatcher) add() error {
	err := dw.watcher.Add(dw.dir)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if err := dw.watcher.Add(filepath.Dir(dw.dir)); err != nil {
		return err
	}
	dw.pending = true
	dw.logger.Debug("persona directory missing, waiting for it to be created", zap.String("dir", dw.dir))
	return nil
}

// Close stops the watcher and waits for the event loop to exit.
func (dw *DirWatcher) Close() error {
	err := dw.watcher.Close()

	dw.mu.Lock()
	running := dw.running
	dw.running = false
	dw.mu.Unlock()

	if running {
		<-dw.doneCh
	}
	return err
}

func (dw *DirWatcher) run(ctx context.Context) {
	defer close(dw.doneCh)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			dw.handleEvent(event)

		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			dw.logger.Warn("persona directory watch error", zap.Error(err))
		}
	}
}

func (dw *DirWatcher) handleEvent(event fsnotify.Event) {
	if dw.pending {
		if event.Name == dw.dir && event.Has(fsnotify.Create) {
			dw.attach()
		}
		return
	}

	if filepath.Dir(event.Name) != dw.dir {
		return
	}
	if !strings.HasSuffix(event.Name, domain.PersonaFileSuffix) {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return // Write, chmod
	}

	dw.logger.Debug("persona directory changed",
		zap.String("file", event.Name),
		zap.String("op", event.Op.String()))
	dw.onChange(event.Name)
}

// attach switches from the parent to the newly created directory. Files
// written before the watch was added are covered by reporting the directory
// itself as changed.
func (dw *DirWatcher) attach() {
	if err := dw.watcher.Add(dw.dir); err != nil {
		dw.logger.Debug("persona directory not watchable yet", zap.String("dir", dw.dir), zap.Error(err))
		return
	}
	if err := dw.watcher.Remove(filepath.Dir(dw.dir)); err != nil {
		dw.logger.Debug("failed to stop watching parent directory", zap.Error(err))
	}
	dw.pending = false

	dw.logger.Debug("persona directory created", zap.String("dir", dw.dir))
	dw.onChange(dw.dir)
}
