package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileProvider loads secrets from a single YAML file of name/value pairs.
//
// This provider is intended for development and self-hosted deployments
// where AWS Secrets Manager is not available. File permissions are
// validated (0600 or 0400 only) because the file holds live credential
// material.
//
// The provider can optionally watch the file and reload when it changes,
// so rotated values take effect without a restart.
type FileProvider struct {
	Path  string // YAML file containing secret name/value pairs
	Watch bool   // Enable file watching for auto-reload

	mu      sync.RWMutex
	values  map[string]string
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// NewFileProvider creates a new file-based secret provider and performs
// the initial load.
//
// If watch is enabled, the provider monitors the file for writes and
// reloads the values automatically.
func NewFileProvider(path string, watch bool) (*FileProvider, error) {
	p := &FileProvider{
		Path:   path,
		Watch:  watch,
		stopCh: make(chan struct{}),
	}

	if err := p.load(); err != nil {
		return nil, err
	}

	if watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("failed to create file watcher: %w", err)
		}

		if err := watcher.Add(path); err != nil {
			_ = watcher.Close() // Best effort close on error path
			return nil, fmt.Errorf("failed to watch secret file: %w", err)
		}

		p.watcher = watcher
		go p.watchLoop()

		slog.Info("file-based secret provider started with watching",
			"path", path,
		)
	} else {
		slog.Info("file-based secret provider started without watching",
			"path", path,
		)
	}

	return p, nil
}

// load reads and parses the secret file, replacing the in-memory values.
//
// The file must be a regular file with 0600 or 0400 permissions.
func (p *FileProvider) load() error {
	info, err := os.Stat(p.Path)
	if err != nil {
		return fmt.Errorf("failed to stat secret file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("secret path is not a regular file: %s", p.Path)
	}

	mode := info.Mode().Perm()
	if mode != 0600 && mode != 0400 {
		return fmt.Errorf("insecure permissions on %s: %o (expected 0600 or 0400)", p.Path, mode)
	}

	// #nosec G304 - Path comes from operator configuration
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return fmt.Errorf("failed to read secret file: %w", err)
	}

	values := make(map[string]string)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("failed to parse secret file: %w", err)
	}

	p.mu.Lock()
	p.values = values
	p.mu.Unlock()

	return nil
}

// GetSecret retrieves a secret from the loaded file.
func (p *FileProvider) GetSecret(ctx context.Context, name string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	value, ok := p.values[name]
	if !ok {
		return "", fmt.Errorf("secret not found in file: %s", name)
	}

	return value, nil
}

// Provider returns the provider name.
func (p *FileProvider) Provider() string {
	return "file"
}

// Supports indicates if this provider supports the given secret name.
//
// A secret is supported if it was present in the file at the last load.
func (p *FileProvider) Supports(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.values[name]
	return ok
}

// Refresh re-reads the secret file.
func (p *FileProvider) Refresh(ctx context.Context) error {
	slog.Debug("refreshing file-based secrets", "path", p.Path)
	return p.load()
}

// Close stops the file watcher and cleans up resources.
func (p *FileProvider) Close() error {
	if p.watcher != nil {
		close(p.stopCh)
		return p.watcher.Close()
	}
	return nil
}

// watchLoop monitors the secret file and reloads it on change.
//
// Runs in a background goroutine when watching is enabled. Some editors
// replace files via rename; the watch is re-added after such events.
func (p *FileProvider) watchLoop() {
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			slog.Debug("secret file change detected, reloading",
				"op", event.Op.String(),
			)

			if event.Op&fsnotify.Rename != 0 {
				_ = p.watcher.Add(p.Path)
			}

			if err := p.load(); err != nil {
				slog.Error("failed to reload secret file",
					"error", err,
				)
			}

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}

			slog.Error("secret file watcher error", "error", err)

		case <-p.stopCh:
			return
		}
	}
}
