package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/matzehuels/flowmerge/pkg/errors"
	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// FileStore keeps one JSON file per document in a directory.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewFileStore creates a file store. If baseDir is empty, it defaults to
// ~/.config/flowmerge/workflows.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		baseDir = filepath.Join(home, ".config", "flowmerge", "workflows")
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("create workflow dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Path returns the directory holding the documents.
func (s *FileStore) Path() string {
	return s.baseDir
}

func (s *FileStore) docPath(id string) string {
	return filepath.Join(s.baseDir, id+".json")
}

func (s *FileStore) Get(ctx context.Context, id string) (*workflow.Document, error) {
	if err := errors.ValidateWorkflowID(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(id)
}

func (s *FileStore) read(id string) (*workflow.Document, error) {
	data, err := os.ReadFile(s.docPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(id)
		}
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "read workflow %q", id)
	}
	return restore(data)
}

func (s *FileStore) Save(ctx context.Context, doc *workflow.Document) error {
	if err := prepare(doc); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.read(doc.ID)
	exists := err == nil
	if err != nil && !errors.IsNotFound(err) {
		return err
	}
	var version int64
	if exists {
		version = stored.Version
	}
	if err := checkVersion(doc, exists, version); err != nil {
		return err
	}

	out := doc.Clone()
	out.Version, out.UpdatedAt = next(doc)
	data, err := snapshot(out)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "encode workflow %q", doc.ID)
	}
	tmp := s.docPath(doc.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "write workflow %q", doc.ID)
	}
	if err := os.Rename(tmp, s.docPath(doc.ID)); err != nil {
		os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeStorage, err, "write workflow %q", doc.ID)
	}
	doc.Version, doc.UpdatedAt = out.Version, out.UpdatedAt
	return nil
}

func (s *FileStore) SaveStructure(ctx context.Context, id string, st Structure) (*workflow.Document, error) {
	return saveStructure(ctx, s, id, st)
}

func (s *FileStore) List(ctx context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "read workflow dir")
	}
	out := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		doc, err := s.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		out = append(out, Summarize(doc))
	}
	sortSummaries(out)
	return out, nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := errors.ValidateWorkflowID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.docPath(id)); err != nil {
		if os.IsNotExist(err) {
			return notFound(id)
		}
		return errors.Wrap(errors.ErrCodeStorage, err, "remove workflow %q", id)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

var _ Store = (*FileStore)(nil)
