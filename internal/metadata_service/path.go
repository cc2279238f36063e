package metadata_service

import (
	"strings"

	fserr "github.com/AnishMulay/sandfs/internal/fs_errors"
)

// SplitPath splits on "/" and drops empty segments, so leading, trailing and
// repeated separators are tolerated. "" and "/" yield no segments.
func SplitPath(path string) []string {
	raw := strings.Split(path, "/")
	parts := raw[:0]
	for _, p := range raw {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// SplitParent separates the last segment from the rest. Root has no parent
// and no name, so it is rejected.
func SplitParent(path string) (parent []string, name string, err error) {
	parts := SplitPath(path)
	if len(parts) == 0 {
		return nil, "", fserr.ErrInvalidPath
	}
	return parts[:len(parts)-1], parts[len(parts)-1], nil
}

// JoinPath builds the canonical absolute form of segments.
func JoinPath(parts []string) string {
	return "/" + strings.Join(parts, "/")
}

// CleanPath canonicalizes path: "a//b/" becomes "/a/b".
func CleanPath(path string) string {
	return JoinPath(SplitPath(path))
}

// HasPathPrefix reports whether prefix names path or one of its ancestors.
func HasPathPrefix(path, prefix []string) bool {
	if len(prefix) > len(path) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}
