package projects

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/tliron/commonlog"
)

// ChangeKind classifies a watched-file event.
type ChangeKind int

const (
	FileCreated ChangeKind = iota
	FileChanged
	FileDeleted
)

// Watcher mirrors the client-side watched-files registration for clients
// that never deliver didChangeWatchedFiles: project files, scripts and
// restored asset manifests under the workspace root.
type Watcher struct {
	fs     *fsnotify.Watcher
	done   chan struct{}
	logger commonlog.Logger
}

// WatchWorkspace watches every directory under root and reports events for
// *.fsproj, *.fsx and project.assets.json files.
func WatchWorkspace(root string, handle func(path string, kind ChangeKind)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fs:     fw,
		done:   make(chan struct{}),
		logger: commonlog.GetLogger("fsls.watch"),
	}
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			if err := fw.Add(path); err != nil {
				w.logger.Infof("watch %s: %v", path, err)
			}
		}
		return nil
	})
	if walkErr != nil {
		fw.Close()
		return nil, walkErr
	}
	go w.run(handle)
	return w, nil
}

func watchedFile(path string) bool {
	if strings.EqualFold(filepath.Base(path), "project.assets.json") {
		return true
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fsproj", ".fsx":
		return true
	}
	return false
}

func (w *Watcher) run(handle func(path string, kind ChangeKind)) {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.fs.Add(event.Name); err != nil {
						w.logger.Infof("watch %s: %v", event.Name, err)
					}
					continue
				}
			}
			if !watchedFile(event.Name) {
				continue
			}
			switch {
			case event.Op&fsnotify.Create != 0:
				handle(event.Name, FileCreated)
			case event.Op&(fsnotify.Write|fsnotify.Rename) != 0:
				handle(event.Name, FileChanged)
			case event.Op&fsnotify.Remove != 0:
				handle(event.Name, FileDeleted)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("watch: %v", err)
		}
	}
}

// Close stops the event loop and releases the OS watches.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fs.Close()
}
