package fullscan

import (
	"context"

	fs "github.com/AnishMulay/sandfs/internal/file_service"
	pms "github.com/AnishMulay/sandfs/internal/metadata_service"
	ss "github.com/AnishMulay/sandfs/internal/search_service"
)

// FullScanSearch walks the live tree on every query.
type FullScanSearch struct {
	files fs.FileService
}

func NewFullScanSearch(files fs.FileService) *FullScanSearch {
	return &FullScanSearch{files: files}
}

func (s *FullScanSearch) Find(ctx context.Context, pattern string, filter ss.Filter, root string) ([]string, error) {
	results := []string{}
	err := s.files.Walk(ctx, root, func(p string, e pms.DirEntry) error {
		if filter.Accepts(e.Type) && ss.Match(pattern, e.Name) {
			results = append(results, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

var _ ss.SearchStrategy = (*FullScanSearch)(nil)
