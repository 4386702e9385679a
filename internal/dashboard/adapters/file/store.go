package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"dashboard-refresher/internal/dashboard/core/domain"
	"dashboard-refresher/internal/dashboard/core/ports"
)

const lockTimeout = 10 * time.Second

// Store reads the template from disk and writes the merged dashboard with an
// exclusive lock and an atomic rename, so readers never see a partial file.
type Store struct {
	templatePath string
	outputPath   string
	logger       *zap.Logger
}

var _ ports.TemplateStorePort = (*Store)(nil)

func NewStore(templatePath, outputPath string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{templatePath: templatePath, outputPath: outputPath, logger: logger}
}

func (s *Store) ReadTemplate(context.Context) (string, error) {
	data, err := os.ReadFile(s.templatePath)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", domain.ErrNoTemplate, s.templatePath)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Store) WriteOutput(ctx context.Context, doc string) error {
	dir := filepath.Dir(s.outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	lock := flock.New(s.outputPath + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock %s: %w", s.outputPath, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: busy", s.outputPath)
	}
	defer lock.Unlock() //nolint:errcheck

	tmp, err := os.CreateTemp(dir, filepath.Base(s.outputPath)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.WriteString(doc); err != nil {
		tmp.Close() //nolint:errcheck
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.outputPath)
}

// Watch calls onChange whenever the template is written or recreated, until
// ctx is done. The directory is watched so editors that replace the file are
// handled.
func (s *Store) Watch(ctx context.Context, onChange func(context.Context)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(s.templatePath)); err != nil {
		watcher.Close() //nolint:errcheck
		return err
	}

	go func() {
		defer watcher.Close() //nolint:errcheck
		name := filepath.Clean(s.templatePath)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != name {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					s.logger.Info("template changed", zap.String("path", event.Name))
					onChange(ctx)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("template watch error", zap.Error(err))
			}
		}
	}()
	return nil
}
