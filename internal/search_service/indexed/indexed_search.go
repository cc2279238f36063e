package indexed

import (
	"context"

	pms "github.com/AnishMulay/sandfs/internal/metadata_service"
	ss "github.com/AnishMulay/sandfs/internal/search_service"
)

// IndexedSearch answers queries from a FileIndex without touching the tree.
type IndexedSearch struct {
	index *FileIndex
}

func NewIndexedSearch(index *FileIndex) *IndexedSearch {
	return &IndexedSearch{index: index}
}

func (s *IndexedSearch) Find(ctx context.Context, pattern string, filter ss.Filter, root string) ([]string, error) {
	rootParts := pms.SplitPath(root)

	s.index.mu.RLock()
	defer s.index.mu.RUnlock()

	results := []string{}
	for name, set := range s.index.names {
		if !ss.Match(pattern, name) {
			continue
		}
		for p, t := range set {
			if !filter.Accepts(t) {
				continue
			}
			parts := pms.SplitPath(p)
			if len(parts) > len(rootParts) && pms.HasPathPrefix(parts, rootParts) {
				results = append(results, p)
			}
		}
	}
	return results, nil
}

var _ ss.SearchStrategy = (*IndexedSearch)(nil)
