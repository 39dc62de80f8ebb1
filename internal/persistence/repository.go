package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/suderio/skirmish/internal/engine"
)

// Repository stores serialized combat snapshots keyed by combat id.
type Repository interface {
	Save(ctx context.Context, id string, data []byte) error
	Load(ctx context.Context, id string) ([]byte, error)
}

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

func checkID(id string) error {
	if !validID.MatchString(id) {
		return fmt.Errorf("invalid combat id %q", id)
	}
	return nil
}

// FileRepository keeps one JSON document per combat under Dir.
type FileRepository struct {
	Dir string
}

// NewFileRepository returns a repository rooted at dir, creating it if needed.
func NewFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return &FileRepository{Dir: dir}, nil
}

func (r *FileRepository) path(id string) string {
	return filepath.Join(r.Dir, id+".json")
}

// Save writes through a temp file and rename, so readers never see a torn snapshot.
func (r *FileRepository) Save(ctx context.Context, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkID(id); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(r.Dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot %s: %w", id, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), r.path(id))
}

func (r *FileRepository) Load(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, engine.NotFound("snapshot", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", id, err)
	}
	return data, nil
}

// Open builds the repository named by driver ("file" or "sqlite") at path.
// The returned close func releases it.
func Open(driver, path string) (Repository, func() error, error) {
	switch driver {
	case "", "file":
		r, err := NewFileRepository(path)
		if err != nil {
			return nil, nil, err
		}
		return r, func() error { return nil }, nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		r, err := OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", driver)
}
