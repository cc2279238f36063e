package inmemory

import (
	"sort"
	"sync"

	bs "github.com/AnishMulay/sandfs/internal/block_service"
	fserr "github.com/AnishMulay/sandfs/internal/fs_errors"
	"github.com/AnishMulay/sandfs/internal/log_service"
)

type InMemoryBlockService struct {
	mu        sync.Mutex
	blockSize int
	total     int
	free      []bs.BlockID
	inUse     map[bs.BlockID][]byte
	ls        log_service.LogService
}

func NewInMemoryBlockService(totalBlocks int, blockSize int, ls log_service.LogService) *InMemoryBlockService {
	if blockSize <= 0 {
		blockSize = bs.DefaultBlockSize
	}
	if totalBlocks < 0 {
		totalBlocks = 0
	}

	free := make([]bs.BlockID, totalBlocks)
	for i := range free {
		free[i] = bs.BlockID(i)
	}

	ls.Info(log_service.LogEvent{
		Message:  "Initialized in-memory block service",
		Metadata: map[string]any{"totalBlocks": totalBlocks, "blockSize": blockSize},
	})

	return &InMemoryBlockService{
		blockSize: blockSize,
		total:     totalBlocks,
		free:      free,
		inUse:     make(map[bs.BlockID][]byte, totalBlocks),
		ls:        ls,
	}
}

func (s *InMemoryBlockService) BlockSize() int {
	return s.blockSize
}

func (s *InMemoryBlockService) Allocate() (bs.BlockID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.free) == 0 {
		s.ls.Warn(log_service.LogEvent{
			Message:  "Block pool exhausted",
			Metadata: map[string]any{"totalBlocks": s.total},
		})
		return 0, fserr.ErrResourceExhausted
	}

	id := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]
	s.inUse[id] = make([]byte, s.blockSize)

	s.ls.Debug(log_service.LogEvent{
		Message:  "Allocated block",
		Metadata: map[string]any{"blockID": id, "free": len(s.free)},
	})
	return id, nil
}

func (s *InMemoryBlockService) Free(id bs.BlockID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inUse[id]; !ok {
		s.ls.Error(log_service.LogEvent{
			Message:  "Refusing to free unallocated block",
			Metadata: map[string]any{"blockID": id},
		})
		return fserr.ErrBlockNotAllocated
	}

	delete(s.inUse, id)
	s.free = append(s.free, id)

	s.ls.Debug(log_service.LogEvent{
		Message:  "Freed block",
		Metadata: map[string]any{"blockID": id, "free": len(s.free)},
	})
	return nil
}

func (s *InMemoryBlockService) block(id bs.BlockID, off, n int) ([]byte, error) {
	data, ok := s.inUse[id]
	if !ok {
		return nil, fserr.ErrBlockNotAllocated
	}
	if off < 0 || off+n > len(data) {
		return nil, fserr.ErrBlockOutOfRange
	}
	return data, nil
}

func (s *InMemoryBlockService) ReadAt(id bs.BlockID, p []byte, off int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.block(id, off, len(p))
	if err != nil {
		return 0, err
	}
	return copy(p, data[off:]), nil
}

func (s *InMemoryBlockService) WriteAt(id bs.BlockID, p []byte, off int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.block(id, off, len(p))
	if err != nil {
		return 0, err
	}
	return copy(data[off:], p), nil
}

func (s *InMemoryBlockService) Stats() bs.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return bs.Stats{
		BlockSize:   s.blockSize,
		TotalBlocks: s.total,
		FreeBlocks:  len(s.free),
		UsedBlocks:  len(s.inUse),
	}
}

func (s *InMemoryBlockService) InUse() []bs.BlockID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]bs.BlockID, 0, len(s.inUse))
	for id := range s.inUse {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *InMemoryBlockService) FreeList() []bs.BlockID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]bs.BlockID, len(s.free))
	copy(ids, s.free)
	return ids
}

var _ bs.BlockService = (*InMemoryBlockService)(nil)
