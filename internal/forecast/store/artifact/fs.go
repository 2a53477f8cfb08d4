package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"carboncast/internal/forecast/models"
	"carboncast/pkg/domain"
	"carboncast/pkg/platform/sentinel"
)

// FSStore keeps artifacts under <root>/<sector>/.
type FSStore struct {
	root string
}

var _ Store = (*FSStore)(nil)

func NewFSStore(root string) *FSStore {
	return &FSStore{root: root}
}

// Root returns the base directory.
func (s *FSStore) Root() string {
	return s.root
}

// Save writes every artifact to a temporary file and renames it into place.
// Saving again overwrites the previous set.
func (s *FSStore) Save(ctx context.Context, sector domain.Sector, set *models.ModelSet) error {
	encoded, err := encodeSet(set)
	if err != nil {
		return err
	}
	dir := filepath.Join(s.root, string(sector))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir %s: %w", dir, err)
	}
	for _, name := range Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(dir, name)
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, encoded[name], 0o600); err != nil {
			return fmt.Errorf("write %s: %w", tmp, err)
		}
		if err := os.Rename(tmp, path); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("rename %s: %w", path, err)
		}
	}
	return nil
}

// Load reads a sector's five artifacts. A missing file fails the load with
// sentinel.ErrNotFound.
func (s *FSStore) Load(ctx context.Context, sector domain.Sector) (*models.ModelSet, error) {
	dir := filepath.Join(s.root, string(sector))
	b := make(blobs, len(Files))
	for _, name := range Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, sentinel.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		b[name] = data
	}
	return decodeSet(sector, b)
}

func (s *FSStore) LoadAll(ctx context.Context) LoadResult {
	return loadAll(ctx, s.Load)
}
