// Package search_service finds entries by name across the namespace.
// Patterns use shell glob syntax and match the final path element only.
package search_service

import (
	"context"
	"path"
	"sort"

	fserr "github.com/AnishMulay/sandfs/internal/fs_errors"
	"github.com/AnishMulay/sandfs/internal/log_service"
	pms "github.com/AnishMulay/sandfs/internal/metadata_service"
)

const OpFind = "find"

type Filter string

const (
	FilterAny    Filter = ""
	FilterFile   Filter = "file"
	FilterFolder Filter = "folder"
)

func ParseFilter(s string) (Filter, error) {
	switch f := Filter(s); f {
	case FilterAny, FilterFile, FilterFolder:
		return f, nil
	default:
		return FilterAny, fserr.ErrInvalidArgument
	}
}

// Accepts reports whether an entry of type t passes the filter.
func (f Filter) Accepts(t pms.InodeType) bool {
	switch f {
	case FilterFile:
		return t == pms.TypeFile
	case FilterFolder:
		return t == pms.TypeDirectory
	default:
		return true
	}
}

// Match reports whether name matches the glob pattern. A malformed pattern
// never matches; callers validate it up front with ValidatePattern.
func Match(pattern, name string) bool {
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

func ValidatePattern(pattern string) error {
	if _, err := path.Match(pattern, ""); err != nil {
		return fserr.ErrInvalidArgument
	}
	return nil
}

// SearchStrategy is one way of answering a query. Results are absolute
// paths below root, root itself excluded.
type SearchStrategy interface {
	Find(ctx context.Context, pattern string, filter Filter, root string) ([]string, error)
}

type SearchService struct {
	strategy SearchStrategy
	ls       log_service.LogService
}

func NewSearchService(strategy SearchStrategy, ls log_service.LogService) *SearchService {
	return &SearchService{strategy: strategy, ls: ls}
}

// Find validates the query and returns matches sorted by path. An empty root
// searches from "/".
func (s *SearchService) Find(ctx context.Context, pattern string, filter Filter, root string) ([]string, error) {
	root = pms.CleanPath(root)
	if err := ValidatePattern(pattern); err != nil {
		return nil, fserr.NewError(OpFind, pattern, err)
	}
	if _, err := ParseFilter(string(filter)); err != nil {
		return nil, fserr.NewError(OpFind, root, err)
	}

	results, err := s.strategy.Find(ctx, pattern, filter, root)
	if err != nil {
		return nil, err
	}
	sort.Strings(results)

	s.ls.Debug(log_service.LogEvent{
		Message:  "Search completed",
		Metadata: map[string]any{"pattern": pattern, "filter": string(filter), "root": root, "matches": len(results)},
	})
	return results, nil
}
