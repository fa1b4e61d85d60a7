package store

import (
	"context"
	"sync"

	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// MemoryStore keeps documents in process memory. Documents are copied in
// and out, so callers never share state with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*workflow.Document
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*workflow.Document)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*workflow.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, notFound(id)
	}
	return doc.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, doc *workflow.Document) error {
	if err := prepare(doc); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.docs[doc.ID]
	var version int64
	if exists {
		version = stored.Version
	}
	if err := checkVersion(doc, exists, version); err != nil {
		return err
	}
	stamp(doc, now())
	s.docs[doc.ID] = doc.Clone()
	return nil
}

func (s *MemoryStore) SaveStructure(ctx context.Context, id string, st Structure) (*workflow.Document, error) {
	return saveStructure(ctx, s, id, st)
}

func (s *MemoryStore) List(ctx context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Summary, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, Summarize(doc))
	}
	sortSummaries(out)
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return notFound(id)
	}
	delete(s.docs, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
