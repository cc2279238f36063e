package metadata_service

import "context"

// WalkFunc is called for every entry below the walk root, parents before
// children. Returning an error stops the walk.
type WalkFunc func(path string, entry DirEntry) error

// MetadataService owns the inode registry, the directory tree and path
// resolution. It never touches block contents.
type MetadataService interface {
	Superblock() Superblock

	// Resolve walks from root. "" and "/" resolve to root.
	Resolve(ctx context.Context, path string) (*Inode, error)

	// Mkdir and Create hold the parent's lock across the existence check
	// and the insert, so exactly one of two racing calls succeeds.
	Mkdir(ctx context.Context, path string) (*Inode, error)
	Create(ctx context.Context, path string) (*Inode, error)

	// Detach removes the entry for path from its parent and marks the
	// inode deleted. With requireEmpty set, a non-empty directory is kept
	// and ErrNotEmpty returned. The detached inode is still registered;
	// the caller decides what to release and then calls Unregister.
	Detach(ctx context.Context, path string, requireEmpty bool) (*Inode, error)
	Unregister(id InodeID)

	// DetachChildren empties a detached directory and returns what it held.
	DetachChildren(dir *Inode) []*Inode

	// Rename moves an entry and returns the moved inode.
	Rename(ctx context.Context, src, dst string) (*Inode, error)

	ReadDir(ctx context.Context, path string) ([]DirEntry, error)
	Walk(ctx context.Context, path string, fn WalkFunc) error

	GetInode(ctx context.Context, id InodeID) (*Inode, error)
	// Inodes is a snapshot of the registry.
	Inodes() []*Inode
}
