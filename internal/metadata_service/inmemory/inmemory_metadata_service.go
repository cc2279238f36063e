package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	fserr "github.com/AnishMulay/sandfs/internal/fs_errors"
	"github.com/AnishMulay/sandfs/internal/log_service"
	pms "github.com/AnishMulay/sandfs/internal/metadata_service"
	"github.com/google/uuid"
)

// Lock order: a goroutine holding two inode locks took the parent before the
// child (Detach) or, under the exclusive tree lock, the lower id before the
// higher (Rename). The registry lock is taken last and never held while
// waiting on an inode.
type InMemoryMetadataService struct {
	registryMu sync.RWMutex
	inodes     map[pms.InodeID]*pms.Inode
	nextID     pms.InodeID

	// Detach holds treeMu shared, Rename exclusively, so the tree shape a
	// rename validated cannot change under it.
	treeMu sync.RWMutex

	superblock pms.Superblock
	root       *pms.Inode

	ls  log_service.LogService
	now func() time.Time
}

func NewInMemoryMetadataService(blockSize, totalBlocks int, ls log_service.LogService) *InMemoryMetadataService {
	s := &InMemoryMetadataService{
		inodes: make(map[pms.InodeID]*pms.Inode),
		nextID: 1,
		ls:     ls,
		now:    time.Now,
	}

	s.root = s.register(pms.TypeDirectory)
	s.superblock = pms.Superblock{
		FsID:        uuid.New().String(),
		RootInodeID: s.root.ID,
		BlockSize:   blockSize,
		TotalBlocks: totalBlocks,
		CreatedAt:   s.root.CreatedAt,
	}

	s.ls.Info(log_service.LogEvent{
		Message:  "Bootstrapped root inode",
		Metadata: map[string]any{"fsID": s.superblock.FsID, "rootID": s.root.ID},
	})
	return s
}

func (s *InMemoryMetadataService) Superblock() pms.Superblock {
	return s.superblock
}

func (s *InMemoryMetadataService) register(t pms.InodeType) *pms.Inode {
	s.registryMu.Lock()
	defer s.registryMu.Unlock()

	inode := pms.NewInode(s.nextID, t, s.now())
	s.inodes[inode.ID] = inode
	s.nextID++
	return inode
}

func (s *InMemoryMetadataService) Unregister(id pms.InodeID) {
	if id == s.root.ID {
		return
	}
	s.registryMu.Lock()
	defer s.registryMu.Unlock()
	delete(s.inodes, id)
}

// --- Path Resolution ---

func (s *InMemoryMetadataService) walkTo(parts []string) (*pms.Inode, error) {
	cur := s.root
	for _, name := range parts {
		if !cur.IsDir() {
			return nil, fserr.ErrNotDir
		}

		cur.Lock()
		next, ok := cur.Child(name)
		cur.Unlock()

		if !ok {
			return nil, fserr.ErrNotFound
		}
		cur = next
	}
	return cur, nil
}

func (s *InMemoryMetadataService) walkToDir(parts []string) (*pms.Inode, error) {
	dir, err := s.walkTo(parts)
	if err != nil {
		return nil, err
	}
	if !dir.IsDir() {
		return nil, fserr.ErrNotDir
	}
	return dir, nil
}

func (s *InMemoryMetadataService) Resolve(ctx context.Context, path string) (*pms.Inode, error) {
	return s.walkTo(pms.SplitPath(path))
}

// --- Namespace Mutations ---

func (s *InMemoryMetadataService) Mkdir(ctx context.Context, path string) (*pms.Inode, error) {
	return s.create(path, pms.TypeDirectory)
}

func (s *InMemoryMetadataService) Create(ctx context.Context, path string) (*pms.Inode, error) {
	return s.create(path, pms.TypeFile)
}

func (s *InMemoryMetadataService) create(path string, t pms.InodeType) (*pms.Inode, error) {
	parentParts, name, err := pms.SplitParent(path)
	if err != nil {
		return nil, err
	}

	parent, err := s.walkToDir(parentParts)
	if err != nil {
		return nil, err
	}

	parent.Lock()
	defer parent.Unlock()

	if parent.Deleted() {
		return nil, fserr.ErrNotFound
	}
	if _, exists := parent.Child(name); exists {
		return nil, fserr.ErrAlreadyExists
	}

	inode := s.register(t)
	parent.SetChild(name, inode)
	parent.ModifyTime = inode.CreatedAt

	s.ls.Debug(log_service.LogEvent{
		Message:  "Created inode",
		Metadata: map[string]any{"path": path, "inodeID": inode.ID, "type": t.String()},
	})
	return inode, nil
}

func (s *InMemoryMetadataService) Detach(ctx context.Context, path string, requireEmpty bool) (*pms.Inode, error) {
	s.treeMu.RLock()
	defer s.treeMu.RUnlock()

	parentParts, name, err := pms.SplitParent(path)
	if err != nil {
		return nil, err
	}

	parent, err := s.walkToDir(parentParts)
	if err != nil {
		return nil, err
	}

	parent.Lock()
	defer parent.Unlock()

	if parent.Deleted() {
		return nil, fserr.ErrNotFound
	}
	child, ok := parent.Child(name)
	if !ok {
		return nil, fserr.ErrNotFound
	}

	child.Lock()
	if requireEmpty && child.IsDir() && child.NumChildren() > 0 {
		child.Unlock()
		return nil, fserr.ErrNotEmpty
	}
	child.MarkDeleted()
	child.Unlock()

	parent.RemoveChild(name)
	parent.ModifyTime = s.now()

	s.ls.Debug(log_service.LogEvent{
		Message:  "Detached inode",
		Metadata: map[string]any{"path": path, "inodeID": child.ID},
	})
	return child, nil
}

func (s *InMemoryMetadataService) DetachChildren(dir *pms.Inode) []*pms.Inode {
	dir.Lock()
	defer dir.Unlock()

	dir.MarkDeleted()
	if !dir.IsDir() {
		return nil
	}
	return dir.TakeChildren()
}

func (s *InMemoryMetadataService) Rename(ctx context.Context, src, dst string) (*pms.Inode, error) {
	s.treeMu.Lock()
	defer s.treeMu.Unlock()

	srcParentParts, srcName, err := pms.SplitParent(src)
	if err != nil {
		return nil, err
	}
	dstParentParts, dstName, err := pms.SplitParent(dst)
	if err != nil {
		return nil, err
	}

	srcParts := pms.SplitPath(src)
	dstParts := pms.SplitPath(dst)
	if pms.HasPathPrefix(dstParts, srcParts) {
		if len(srcParts) == len(dstParts) {
			// Renaming onto itself is a no-op once the source is known to exist.
			return s.walkTo(srcParts)
		}
		return nil, fserr.ErrInvalidArgument
	}

	srcParent, err := s.walkToDir(srcParentParts)
	if err != nil {
		return nil, err
	}
	dstParent, err := s.walkToDir(dstParentParts)
	if err != nil {
		return nil, err
	}

	first, second := srcParent, dstParent
	if second.ID < first.ID {
		first, second = second, first
	}
	first.Lock()
	defer first.Unlock()
	if second != first {
		second.Lock()
		defer second.Unlock()
	}

	if srcParent.Deleted() || dstParent.Deleted() {
		return nil, fserr.ErrNotFound
	}
	child, ok := srcParent.Child(srcName)
	if !ok {
		return nil, fserr.ErrNotFound
	}
	if _, exists := dstParent.Child(dstName); exists {
		return nil, fserr.ErrAlreadyExists
	}

	srcParent.RemoveChild(srcName)
	dstParent.SetChild(dstName, child)

	now := s.now()
	srcParent.ModifyTime = now
	dstParent.ModifyTime = now

	s.ls.Debug(log_service.LogEvent{
		Message:  "Renamed entry",
		Metadata: map[string]any{"src": src, "dst": dst, "inodeID": child.ID},
	})
	return child, nil
}

// --- Read Operations ---

func (s *InMemoryMetadataService) ReadDir(ctx context.Context, path string) ([]pms.DirEntry, error) {
	dir, err := s.Resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	if !dir.IsDir() {
		return nil, fserr.ErrNotDir
	}

	dir.Lock()
	defer dir.Unlock()

	if dir.Deleted() {
		return nil, fserr.ErrNotFound
	}
	return dir.Entries(), nil
}

func snapshot(dir *pms.Inode) ([]pms.DirEntry, []*pms.Inode) {
	dir.Lock()
	defer dir.Unlock()

	entries := dir.Entries()
	children := make([]*pms.Inode, 0, len(entries))
	for _, e := range entries {
		c, _ := dir.Child(e.Name)
		children = append(children, c)
	}
	return entries, children
}

func (s *InMemoryMetadataService) Walk(ctx context.Context, path string, fn pms.WalkFunc) error {
	start, err := s.Resolve(ctx, path)
	if err != nil {
		return err
	}
	if !start.IsDir() {
		return fserr.ErrNotDir
	}

	var walk func(dirPath []string, dir *pms.Inode) error
	walk = func(dirPath []string, dir *pms.Inode) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		entries, children := snapshot(dir)
		for i, e := range entries {
			childPath := append(dirPath[:len(dirPath):len(dirPath)], e.Name)
			if err := fn(pms.JoinPath(childPath), e); err != nil {
				return err
			}
			if e.Type == pms.TypeDirectory {
				if err := walk(childPath, children[i]); err != nil {
					return err
				}
			}
		}
		return nil
	}

	return walk(pms.SplitPath(path), start)
}

func (s *InMemoryMetadataService) GetInode(ctx context.Context, id pms.InodeID) (*pms.Inode, error) {
	s.registryMu.RLock()
	defer s.registryMu.RUnlock()

	inode, ok := s.inodes[id]
	if !ok {
		return nil, fserr.ErrNotFound
	}
	return inode, nil
}

func (s *InMemoryMetadataService) Inodes() []*pms.Inode {
	s.registryMu.RLock()
	defer s.registryMu.RUnlock()

	out := make([]*pms.Inode, 0, len(s.inodes))
	for _, inode := range s.inodes {
		out = append(out, inode)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var _ pms.MetadataService = (*InMemoryMetadataService)(nil)
