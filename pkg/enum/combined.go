package enum

import (
	"context"
	"path/filepath"
	"sync"
)

// CombinedEnumerator runs multiple enumerators sequentially and deduplicates
// documents by source, so overlapping roots yield each file once.
// Identical text at different sources is still yielded for each source.
type CombinedEnumerator struct {
	enumerators []Enumerator
}

// NewCombinedEnumerator creates a CombinedEnumerator over the provided
// enumerators, run in order.
func NewCombinedEnumerator(enumerators ...Enumerator) *CombinedEnumerator {
	return &CombinedEnumerator{enumerators: enumerators}
}

// Enumerate runs each child enumerator in sequence, passing documents with
// an unseen source to callback.
func (c *CombinedEnumerator) Enumerate(ctx context.Context, callback func(doc Document) error) error {
	var mu sync.Mutex
	seen := make(map[string]bool)

	for _, e := range c.enumerators {
		err := e.Enumerate(ctx, func(doc Document) error {
			key := filepath.Clean(doc.Source)
			mu.Lock()
			if seen[key] {
				mu.Unlock()
				return nil
			}
			seen[key] = true
			mu.Unlock()

			return callback(doc)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
