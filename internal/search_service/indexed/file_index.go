package indexed

import (
	"context"
	"sync"

	fs "github.com/AnishMulay/sandfs/internal/file_service"
	pms "github.com/AnishMulay/sandfs/internal/metadata_service"
)

// FileIndex is an inverted index from entry name to the paths carrying it.
// It is kept current by subscribing OnEvent to a file service.
type FileIndex struct {
	mu    sync.RWMutex
	names map[string]map[string]pms.InodeType // name -> path -> type
	paths map[string]pms.InodeType
}

func NewFileIndex() *FileIndex {
	return &FileIndex{
		names: make(map[string]map[string]pms.InodeType),
		paths: make(map[string]pms.InodeType),
	}
}

// Attach seeds the index from the current tree and subscribes it to
// future events. Events that race with the seeding walk are applied twice
// at worst, which the index tolerates.
func (idx *FileIndex) Attach(ctx context.Context, svc fs.FileService) error {
	svc.Subscribe(idx.OnEvent)
	return svc.Walk(ctx, "/", func(p string, e pms.DirEntry) error {
		idx.add(p, e.Type)
		return nil
	})
}

func (idx *FileIndex) OnEvent(e fs.Event) {
	switch e.Type {
	case fs.EventCreate:
		idx.add(e.Path, e.InodeType)
	case fs.EventDelete:
		idx.removeTree(e.Path)
	case fs.EventRename:
		idx.moveTree(e.OldPath, e.Path)
	}
}

func (idx *FileIndex) add(p string, t pms.InodeType) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.addLocked(p, t)
}

func (idx *FileIndex) addLocked(p string, t pms.InodeType) {
	name := baseName(p)
	set, ok := idx.names[name]
	if !ok {
		set = make(map[string]pms.InodeType)
		idx.names[name] = set
	}
	set[p] = t
	idx.paths[p] = t
}

func (idx *FileIndex) removeLocked(p string) {
	name := baseName(p)
	if set, ok := idx.names[name]; ok {
		delete(set, p)
		if len(set) == 0 {
			delete(idx.names, name)
		}
	}
	delete(idx.paths, p)
}

// subtreeLocked lists p and every indexed path below it.
func (idx *FileIndex) subtreeLocked(p string) map[string]pms.InodeType {
	prefix := pms.SplitPath(p)
	out := make(map[string]pms.InodeType)
	for q, t := range idx.paths {
		if pms.HasPathPrefix(pms.SplitPath(q), prefix) {
			out[q] = t
		}
	}
	return out
}

func (idx *FileIndex) removeTree(p string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for q := range idx.subtreeLocked(p) {
		idx.removeLocked(q)
	}
}

func (idx *FileIndex) moveTree(from, to string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	moved := idx.subtreeLocked(from)
	for q := range moved {
		idx.removeLocked(q)
	}
	for q, t := range moved {
		idx.addLocked(to+q[len(from):], t)
	}
}

// Len is the number of indexed paths.
func (idx *FileIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.paths)
}

func baseName(p string) string {
	parts := pms.SplitPath(p)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}
