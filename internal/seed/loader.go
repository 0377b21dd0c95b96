// Package seed loads document containers from JSON files and turns later
// edits of those files into recorded commands.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"gihan9a/patchstore/internal/documents"
	"gihan9a/patchstore/internal/utils"
	"gihan9a/patchstore/pkg/patch"
	"gihan9a/patchstore/pkg/store"
)

// Loader maps files under a root directory to documents
type Loader struct {
	root    string
	ext     string
	catalog *documents.Catalog
	sess    *store.Session
	logger  *slog.Logger
}

// NewLoader creates a loader for files named *ext under root
func NewLoader(root, ext string, catalog *documents.Catalog, sess *store.Session, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{root: root, ext: ext, catalog: catalog, sess: sess, logger: logger}
}

// LoadAll defines a document for every seed file under root and returns how
// many were loaded. Files that do not hold JSON are skipped with a warning.
func (l *Loader) LoadAll() (int, error) {
	n := 0
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, l.ext) {
			return nil
		}
		id, value, err := l.read(path)
		if err != nil {
			l.logger.Warn("skipping seed file", "path", path, "error", err)
			return nil
		}
		if _, err := l.catalog.Define(id, value); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("load seed files from %s: %w", l.root, err)
	}
	return n, nil
}

// Watch follows changes below root until ctx is done. A new seed file
// defines a document; a rewritten one is applied as an external-edit
// command, so the change can be undone.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := l.addDirs(watcher, l.root); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := l.addDirs(watcher, event.Name); err != nil {
						l.logger.Warn("watch directory", "path", event.Name, "error", err)
					}
					continue
				}
			}
			if !strings.HasSuffix(event.Name, l.ext) || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			if err := l.Reload(event.Name); err != nil {
				l.logger.Warn("seed file change not applied", "path", event.Name, "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("watcher error", "error", err)
		}
	}
}

// Reload applies the current content of a seed file
func (l *Loader) Reload(path string) error {
	id, value, err := l.read(path)
	if err != nil {
		return err
	}

	if _, err := l.catalog.Lookup(id); errors.Is(err, store.ErrUnknownContainer) {
		if _, err := l.catalog.Define(id, value); err != nil {
			return err
		}
		l.logger.Info("document added", "id", id, "path", path)
		return nil
	}

	current, err := l.sess.Snapshot(id)
	if err != nil {
		return err
	}
	if patch.Equal(current, value) {
		return nil
	}
	if _, err := store.Execute(l.sess, l.catalog.ExternalEditCommand(), documents.ReplaceRequest{ID: id, Value: value}); err != nil {
		return err
	}
	l.logger.Info("document changed on disk", "id", id, "path", path)
	return nil
}

func (l *Loader) read(path string) (string, any, error) {
	id, err := utils.IDFromPath(l.root, path, l.ext)
	if err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return "", nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return id, value, nil
}

// addDirs recursively adds directories to the watcher
func (l *Loader) addDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
