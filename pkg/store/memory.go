package store

import (
	"fmt"
	"sync"

	"github.com/praetorian-inc/sift/pkg/types"
)

type analysisKey struct {
	doc     types.DocumentID
	profile string
}

// MemoryStore implements Store using in-memory data structures.
// Used for WASM builds and ":memory:" paths.
type MemoryStore struct {
	mu       sync.RWMutex
	analyses []*types.Analysis               // insertion order
	index    map[analysisKey]*types.Analysis // keyed by document and profile
	sources  map[types.DocumentID][]string   // first source first
}

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		index:   make(map[analysisKey]*types.Analysis),
		sources: make(map[types.DocumentID][]string),
	}
}

// AddAnalysis stores an analysis.
func (m *MemoryStore) AddAnalysis(a *types.Analysis) error {
	if a == nil {
		return fmt.Errorf("analysis is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.addSource(a.DocumentID, a.Source)

	key := analysisKey{doc: a.DocumentID, profile: a.Profile}
	if _, exists := m.index[key]; exists {
		// Idempotent - already analyzed
		return nil
	}

	cp := *a
	m.index[key] = &cp
	m.analyses = append(m.analyses, &cp)
	return nil
}

func (m *MemoryStore) addSource(doc types.DocumentID, source string) {
	if source == "" {
		return
	}
	for _, s := range m.sources[doc] {
		if s == source {
			return
		}
	}
	m.sources[doc] = append(m.sources[doc], source)
}

// AnalysisExists checks if a document was already analyzed under profile.
func (m *MemoryStore) AnalysisExists(doc types.DocumentID, profile string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.index[analysisKey{doc: doc, profile: profile}]
	return exists, nil
}

// GetAnalyses retrieves every analysis in insertion order.
// Source is the first source the document was seen at.
func (m *MemoryStore) GetAnalyses() ([]*types.Analysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return copies to avoid external modifications
	result := make([]*types.Analysis, len(m.analyses))
	for i, a := range m.analyses {
		cp := *a
		if srcs := m.sources[a.DocumentID]; len(srcs) > 0 {
			cp.Source = srcs[0]
		}
		result[i] = &cp
	}
	return result, nil
}

// GetFindings retrieves the findings of one document, deduplicated by ID.
func (m *MemoryStore) GetFindings(doc types.DocumentID) ([]types.Finding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	result := []types.Finding{}
	for _, a := range m.analyses {
		if a.DocumentID != doc {
			continue
		}
		for _, f := range a.Findings {
			if seen[f.ID] {
				continue
			}
			seen[f.ID] = true
			result = append(result, f)
		}
	}
	return result, nil
}

// GetSources retrieves every source a document was seen at.
func (m *MemoryStore) GetSources(doc types.DocumentID) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]string{}, m.sources[doc]...), nil
}

// Close closes the store.
// For in-memory store, this is a no-op.
func (m *MemoryStore) Close() error {
	// No resources to clean up for in-memory store
	return nil
}
