package file_service

import (
	"context"
	"time"

	bs "github.com/AnishMulay/sandfs/internal/block_service"
	pms "github.com/AnishMulay/sandfs/internal/metadata_service"
)

// FileService is the path-based facade over the metadata and block layers.
// Every failure is an *fs_errors.Error carrying one taxonomy kind.
type FileService interface {
	Mkdir(ctx context.Context, path string) error
	CreateFile(ctx context.Context, path string) error

	// Write grows the file as needed and returns len(data) on success.
	// Blocks allocated before the pool ran out stay with the file, but the
	// size is not advanced and no bytes are copied.
	Write(ctx context.Context, path string, data []byte, offset int64) (int, error)

	// Read returns at most size bytes starting at offset and never
	// allocates. Reading at or past the end yields an empty slice.
	Read(ctx context.Context, path string, size int, offset int64) ([]byte, error)

	// Ls lists child names in lexical order.
	Ls(ctx context.Context, path string) ([]string, error)
	Delete(ctx context.Context, path string) error

	Stat(ctx context.Context, path string) (*FileInfo, error)
	Rename(ctx context.Context, src, dst string) error
	Walk(ctx context.Context, root string, fn pms.WalkFunc) error

	Check(ctx context.Context) (*CheckReport, error)
	StatFs(ctx context.Context) (*FsStats, error)

	// Subscribe registers fn for namespace events. fn runs synchronously
	// after the mutation has been applied and must not call back into the
	// service's mutating operations.
	Subscribe(fn Listener)
}

type FileInfo struct {
	Name       string
	Path       string
	InodeID    pms.InodeID
	Type       pms.InodeType
	Size       int64
	BlockCount int
	Children   int
	CreatedAt  time.Time
	ModifyTime time.Time
}

type FsStats struct {
	FsID        string
	BlockSize   int
	TotalBlocks int
	FreeBlocks  int
	UsedBlocks  int
	Inodes      int
}

// CheckReport is the outcome of a full consistency scan.
type CheckReport struct {
	// Blocks referenced by more than one file.
	SharedBlocks []bs.BlockID
	// Blocks referenced by a file while sitting on the free list.
	FreeButReferenced []bs.BlockID
	// Allocated blocks that no reachable file references.
	LeakedBlocks []bs.BlockID
	// Registered inodes that root no longer reaches.
	OrphanInodes []pms.InodeID

	ReachableInodes int
}

// Consistent reports whether block exclusivity holds. Leaks and orphans are
// expected under the leak delete policy and do not count.
func (r *CheckReport) Consistent() bool {
	return len(r.SharedBlocks) == 0 && len(r.FreeButReferenced) == 0
}

type EventType int

const (
	EventCreate EventType = iota
	EventDelete
	EventRename
)

func (t EventType) String() string {
	switch t {
	case EventCreate:
		return "create"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event describes one applied namespace change. OldPath is set for renames.
type Event struct {
	Type      EventType
	Path      string
	OldPath   string
	InodeType pms.InodeType
}

type Listener func(Event)
