package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/cbtjournal/internal/filex"
	"github.com/dmitrijs2005/cbtjournal/internal/logging"
	"github.com/fsnotify/fsnotify"
)

var ErrInvalidSession = errors.New("invalid session file")

// LoadSession reads a session file. A missing file, or one without an
// account id, is a signed-out state and yields (nil, nil).
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if s.AccountID == "" {
		return nil, nil
	}
	return &s, nil
}

// FileWatcher keeps a Signal in step with a session file on disk.
type FileWatcher struct {
	path   string
	signal *Signal
	logger logging.Logger
}

func NewFileWatcher(path string, signal *Signal, l logging.Logger) *FileWatcher {
	return &FileWatcher{path: path, signal: signal, logger: l.With("module", "session_watcher")}
}

// Reload reads the file once and publishes the result. An unreadable file
// leaves the signal unchanged.
func (w *FileWatcher) Reload(ctx context.Context) error {
	s, err := LoadSession(w.path)
	if err != nil {
		w.logger.Warn(ctx, "session file ignored", "path", w.path, "error", err)
		return err
	}
	w.signal.Set(s)
	return nil
}

// Run loads the file and then watches its directory until ctx is done.
// Watching the directory rather than the file survives editors and tools
// that replace the file by rename.
func (w *FileWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	dir, err := filex.EnsureParentDir(w.path)
	if err != nil {
		return fmt.Errorf("session dir: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	_ = w.Reload(ctx)

	target := filepath.Join(dir, filepath.Base(w.path))
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			w.logger.Debug(ctx, "session file changed", "op", ev.Op.String())
			_ = w.Reload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error(ctx, "watch error", "error", err)
		}
	}
}

// WriteSession stores s at path atomically; nil removes the file.
func WriteSession(path string, s *Session) error {
	if s == nil {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
