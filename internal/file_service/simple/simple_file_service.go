package simple

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	bs "github.com/AnishMulay/sandfs/internal/block_service"
	"github.com/AnishMulay/sandfs/internal/config"
	fs "github.com/AnishMulay/sandfs/internal/file_service"
	fserr "github.com/AnishMulay/sandfs/internal/fs_errors"
	"github.com/AnishMulay/sandfs/internal/log_service"
	pms "github.com/AnishMulay/sandfs/internal/metadata_service"
)

type SimpleFileService struct {
	ms     pms.MetadataService
	bs     bs.BlockService
	ls     log_service.LogService
	policy config.DeletePolicy

	listenersMu sync.RWMutex
	listeners   []fs.Listener

	now func() time.Time
}

func NewSimpleFileService(
	ms pms.MetadataService,
	blocks bs.BlockService,
	ls log_service.LogService,
	policy config.DeletePolicy,
) *SimpleFileService {
	if policy == "" {
		policy = config.DeleteLeak
	}
	return &SimpleFileService{
		ms:     ms,
		bs:     blocks,
		ls:     ls,
		policy: policy,
		now:    time.Now,
	}
}

// --- Namespace Operations ---

func (s *SimpleFileService) Mkdir(ctx context.Context, path string) error {
	if _, err := s.ms.Mkdir(ctx, path); err != nil {
		return s.fail(fserr.OpMkdir, path, err)
	}
	s.publish(fs.Event{Type: fs.EventCreate, Path: pms.CleanPath(path), InodeType: pms.TypeDirectory})
	return nil
}

func (s *SimpleFileService) CreateFile(ctx context.Context, path string) error {
	if _, err := s.ms.Create(ctx, path); err != nil {
		return s.fail(fserr.OpCreate, path, err)
	}
	s.publish(fs.Event{Type: fs.EventCreate, Path: pms.CleanPath(path), InodeType: pms.TypeFile})
	return nil
}

func (s *SimpleFileService) Ls(ctx context.Context, path string) ([]string, error) {
	entries, err := s.ms.ReadDir(ctx, path)
	if err != nil {
		return nil, s.fail(fserr.OpLs, path, err)
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names, nil
}

func (s *SimpleFileService) Delete(ctx context.Context, path string) error {
	target, err := s.ms.Detach(ctx, path, s.policy == config.DeleteRefuse)
	if err != nil {
		return s.fail(fserr.OpDelete, path, err)
	}

	switch {
	case !target.IsDir():
		s.releaseFile(target)
		s.ms.Unregister(target.ID)
	case s.policy == config.DeleteRecursive:
		s.releaseTree(target)
	default:
		// Descendants stay registered with their blocks; Check reports them.
		s.ms.Unregister(target.ID)
	}

	s.ls.Info(log_service.LogEvent{
		Message:  "Deleted entry",
		Metadata: map[string]any{"path": path, "inodeID": target.ID, "policy": string(s.policy)},
	})
	s.publish(fs.Event{Type: fs.EventDelete, Path: pms.CleanPath(path), InodeType: target.Type})
	return nil
}

// releaseFile drops a detached file's blocks back into the pool.
func (s *SimpleFileService) releaseFile(inode *pms.Inode) {
	inode.Lock()
	inode.MarkDeleted()
	blocks := inode.Blocks
	inode.Blocks = nil
	inode.Size = 0
	inode.Unlock()

	for _, id := range blocks {
		if err := s.bs.Free(id); err != nil {
			s.ls.Error(log_service.LogEvent{
				Message:  "Failed to free block",
				Metadata: map[string]any{"inodeID": inode.ID, "blockID": id, "error": err.Error()},
			})
		}
	}
}

func (s *SimpleFileService) releaseTree(dir *pms.Inode) {
	for _, child := range s.ms.DetachChildren(dir) {
		if child.IsDir() {
			s.releaseTree(child)
			continue
		}
		s.releaseFile(child)
		s.ms.Unregister(child.ID)
	}
	s.ms.Unregister(dir.ID)
}

func (s *SimpleFileService) Rename(ctx context.Context, src, dst string) error {
	moved, err := s.ms.Rename(ctx, src, dst)
	if err != nil {
		return s.fail(fserr.OpRename, src, err)
	}

	oldPath, newPath := pms.CleanPath(src), pms.CleanPath(dst)
	if oldPath != newPath {
		s.publish(fs.Event{Type: fs.EventRename, Path: newPath, OldPath: oldPath, InodeType: moved.Type})
	}
	return nil
}

// --- Data Operations ---

func (s *SimpleFileService) resolveFile(ctx context.Context, op, path string) (*pms.Inode, error) {
	inode, err := s.ms.Resolve(ctx, path)
	if err != nil {
		return nil, s.fail(op, path, err)
	}
	if inode.IsDir() {
		return nil, s.fail(op, path, fserr.ErrIsDir)
	}
	return inode, nil
}

func (s *SimpleFileService) Write(ctx context.Context, path string, data []byte, offset int64) (int, error) {
	// The end of the write must be representable.
	if offset < 0 || offset > math.MaxInt64-int64(len(data)) {
		return 0, s.fail(fserr.OpWrite, path, fserr.ErrInvalidArgument)
	}

	inode, err := s.resolveFile(ctx, fserr.OpWrite, path)
	if err != nil {
		return 0, err
	}

	inode.Lock()
	defer inode.Unlock()

	if inode.Deleted() {
		return 0, s.fail(fserr.OpWrite, path, fserr.ErrNotFound)
	}

	blockSize := int64(s.bs.BlockSize())
	end := offset + int64(len(data))

	// 1. Grow the block list until it covers end.
	for need := bs.BlocksFor(end, blockSize); int64(len(inode.Blocks)) < need; {
		id, err := s.bs.Allocate()
		if err != nil {
			s.ls.Warn(log_service.LogEvent{
				Message: "Write stopped by block exhaustion",
				Metadata: map[string]any{
					"path":     path,
					"inodeID":  inode.ID,
					"attached": len(inode.Blocks),
					"needed":   need,
				},
			})
			return 0, s.fail(fserr.OpWrite, path, err)
		}
		inode.Blocks = append(inode.Blocks, id)
	}

	// 2. Copy block by block.
	for pos, rest := offset, data; len(rest) > 0; {
		idx, inBlock := bs.Locate(pos, blockSize)
		n := min(int64(len(rest)), blockSize-inBlock)
		if _, err := s.bs.WriteAt(inode.Blocks[idx], rest[:n], int(inBlock)); err != nil {
			return 0, s.fail(fserr.OpWrite, path, err)
		}
		rest = rest[n:]
		pos += n
	}

	// 3. Advance size.
	if end > inode.Size {
		inode.Size = end
	}
	inode.ModifyTime = s.now()

	s.ls.Debug(log_service.LogEvent{
		Message:  "Wrote file",
		Metadata: map[string]any{"path": path, "offset": offset, "len": len(data), "size": inode.Size},
	})
	return len(data), nil
}

func (s *SimpleFileService) Read(ctx context.Context, path string, size int, offset int64) ([]byte, error) {
	if offset < 0 || size < 0 {
		return nil, s.fail(fserr.OpRead, path, fserr.ErrInvalidArgument)
	}

	inode, err := s.resolveFile(ctx, fserr.OpRead, path)
	if err != nil {
		return nil, err
	}

	inode.Lock()
	defer inode.Unlock()

	if inode.Deleted() {
		return nil, s.fail(fserr.OpRead, path, fserr.ErrNotFound)
	}
	if offset >= inode.Size {
		return []byte{}, nil
	}

	blockSize := int64(s.bs.BlockSize())
	out := make([]byte, min(int64(size), inode.Size-offset))

	for pos, rest := offset, out; len(rest) > 0; {
		idx, inBlock := bs.Locate(pos, blockSize)
		n := min(int64(len(rest)), blockSize-inBlock)
		if _, err := s.bs.ReadAt(inode.Blocks[idx], rest[:n], int(inBlock)); err != nil {
			return nil, s.fail(fserr.OpRead, path, err)
		}
		rest = rest[n:]
		pos += n
	}
	return out, nil
}

// --- Inspection ---

func (s *SimpleFileService) Stat(ctx context.Context, path string) (*fs.FileInfo, error) {
	inode, err := s.ms.Resolve(ctx, path)
	if err != nil {
		return nil, s.fail(fserr.OpStat, path, err)
	}

	attrs := inode.Attributes()
	clean := pms.CleanPath(path)
	parts := pms.SplitPath(clean)
	name := "/"
	if len(parts) > 0 {
		name = parts[len(parts)-1]
	}

	return &fs.FileInfo{
		Name:       name,
		Path:       clean,
		InodeID:    attrs.InodeID,
		Type:       attrs.Type,
		Size:       attrs.Size,
		BlockCount: attrs.BlockCount,
		Children:   attrs.Children,
		CreatedAt:  attrs.CreatedAt,
		ModifyTime: attrs.ModifyTime,
	}, nil
}

func (s *SimpleFileService) Walk(ctx context.Context, root string, fn pms.WalkFunc) error {
	if err := s.ms.Walk(ctx, root, fn); err != nil {
		return s.fail(fserr.OpLookup, root, err)
	}
	return nil
}

func (s *SimpleFileService) StatFs(ctx context.Context) (*fs.FsStats, error) {
	stats := s.bs.Stats()
	return &fs.FsStats{
		FsID:        s.ms.Superblock().FsID,
		BlockSize:   stats.BlockSize,
		TotalBlocks: stats.TotalBlocks,
		FreeBlocks:  stats.FreeBlocks,
		UsedBlocks:  stats.UsedBlocks,
		Inodes:      len(s.ms.Inodes()),
	}, nil
}

func (s *SimpleFileService) Check(ctx context.Context) (*fs.CheckReport, error) {
	reachable := map[pms.InodeID]bool{s.ms.Superblock().RootInodeID: true}
	err := s.ms.Walk(ctx, "/", func(_ string, e pms.DirEntry) error {
		reachable[e.InodeID] = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	report := &fs.CheckReport{ReachableInodes: len(reachable)}
	owners := make(map[bs.BlockID]int)
	referencedByReachable := make(map[bs.BlockID]bool)

	for _, inode := range s.ms.Inodes() {
		if !reachable[inode.ID] {
			report.OrphanInodes = append(report.OrphanInodes, inode.ID)
		}
		if inode.IsDir() {
			continue
		}

		inode.Lock()
		blocks := append([]bs.BlockID(nil), inode.Blocks...)
		inode.Unlock()

		for _, id := range blocks {
			owners[id]++
			if reachable[inode.ID] {
				referencedByReachable[id] = true
			}
		}
	}

	for id, n := range owners {
		if n > 1 {
			report.SharedBlocks = append(report.SharedBlocks, id)
		}
	}
	for _, id := range s.bs.FreeList() {
		if owners[id] > 0 {
			report.FreeButReferenced = append(report.FreeButReferenced, id)
		}
	}
	for _, id := range s.bs.InUse() {
		if !referencedByReachable[id] {
			report.LeakedBlocks = append(report.LeakedBlocks, id)
		}
	}

	sortBlocks(report.SharedBlocks)
	sortBlocks(report.FreeButReferenced)

	if !report.Consistent() {
		s.ls.Error(log_service.LogEvent{
			Message: "Consistency check failed",
			Metadata: map[string]any{
				"shared":            report.SharedBlocks,
				"freeButReferenced": report.FreeButReferenced,
			},
		})
	}
	return report, nil
}

func sortBlocks(ids []bs.BlockID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// --- Events ---

func (s *SimpleFileService) Subscribe(fn fs.Listener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *SimpleFileService) publish(e fs.Event) {
	s.listenersMu.RLock()
	listeners := s.listeners
	s.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(e)
	}
}

func (s *SimpleFileService) fail(op, path string, err error) error {
	s.ls.Debug(log_service.LogEvent{
		Message:  "Operation failed",
		Metadata: map[string]any{"op": op, "path": path, "error": err.Error()},
	})
	return fserr.NewError(op, path, err)
}

var _ fs.FileService = (*SimpleFileService)(nil)
