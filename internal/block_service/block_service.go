package block_service

import "golang.org/x/exp/constraints"

// BlockID addresses one fixed-size block.
type BlockID uint32

const DefaultBlockSize = 4096

type Stats struct {
	BlockSize   int
	TotalBlocks int
	FreeBlocks  int
	UsedBlocks  int
}

// BlockService owns a fixed pool of blocks. An id handed out by Allocate
// belongs to exactly one caller until it is passed to Free.
type BlockService interface {
	BlockSize() int

	// Allocate pops a free id and returns a zero-filled block.
	// It fails with ErrResourceExhausted when no block is free.
	Allocate() (BlockID, error)

	// Free returns an allocated id to the pool. Ids that are not currently
	// allocated are rejected with ErrBlockNotAllocated.
	Free(id BlockID) error

	ReadAt(id BlockID, p []byte, off int) (int, error)
	WriteAt(id BlockID, p []byte, off int) (int, error)

	Stats() Stats

	// InUse and FreeList are snapshots for consistency checks.
	InUse() []BlockID
	FreeList() []BlockID
}

// BlocksFor is the number of blocks needed to hold n bytes.
func BlocksFor[T constraints.Integer](n, blockSize T) T {
	if n <= 0 {
		return 0
	}
	q := n / blockSize
	if n%blockSize != 0 {
		q++
	}
	return q
}

// Locate splits a byte offset into a block index and an offset inside it.
func Locate[T constraints.Integer](off, blockSize T) (index, inBlock T) {
	return off / blockSize, off % blockSize
}
