package metadata_service

import (
	"sort"
	"sync"
	"time"

	bs "github.com/AnishMulay/sandfs/internal/block_service"
)

type InodeID uint64

type InodeType int

const (
	TypeFile InodeType = iota
	TypeDirectory
)

func (t InodeType) String() string {
	if t == TypeDirectory {
		return "directory"
	}
	return "file"
}

type Superblock struct {
	FsID        string
	RootInodeID InodeID
	BlockSize   int
	TotalBlocks int
	CreatedAt   time.Time
}

// Inode is a file or a directory. Type and ID never change after creation.
// Every other field is guarded by the inode's own lock: callers hold Lock
// around any read-modify-write of Size, Blocks or ModifyTime.
type Inode struct {
	mu sync.Mutex

	ID        InodeID
	Type      InodeType
	CreatedAt time.Time

	// For Files: bytes written so far and the owned blocks, in file order.
	Size       int64
	Blocks     []bs.BlockID
	ModifyTime time.Time

	// For Directories: name -> child.
	children map[string]*Inode

	deleted bool
}

// NewInode builds an unregistered inode.
func NewInode(id InodeID, t InodeType, now time.Time) *Inode {
	inode := &Inode{
		ID:         id,
		Type:       t,
		CreatedAt:  now,
		ModifyTime: now,
	}
	if t == TypeDirectory {
		inode.children = make(map[string]*Inode)
	}
	return inode
}

func (i *Inode) Lock() { i.mu.Lock() }

func (i *Inode) Unlock() { i.mu.Unlock() }

func (i *Inode) IsDir() bool { return i.Type == TypeDirectory }

// The methods below touch guarded state; the caller must hold the inode lock.

// Deleted reports whether the inode has been detached from the tree.
func (i *Inode) Deleted() bool { return i.deleted }

func (i *Inode) MarkDeleted() { i.deleted = true }

func (i *Inode) Child(name string) (*Inode, bool) {
	c, ok := i.children[name]
	return c, ok
}

func (i *Inode) SetChild(name string, child *Inode) { i.children[name] = child }

func (i *Inode) RemoveChild(name string) { delete(i.children, name) }

func (i *Inode) NumChildren() int { return len(i.children) }

// Entries lists the children sorted by name.
func (i *Inode) Entries() []DirEntry {
	entries := make([]DirEntry, 0, len(i.children))
	for name, c := range i.children {
		entries = append(entries, DirEntry{Name: name, InodeID: c.ID, Type: c.Type})
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Name < entries[b].Name })
	return entries
}

// TakeChildren empties the directory and returns what it held.
func (i *Inode) TakeChildren() []*Inode {
	out := make([]*Inode, 0, len(i.children))
	for name, c := range i.children {
		out = append(out, c)
		delete(i.children, name)
	}
	return out
}

// Attributes returns a consistent snapshot.
func (i *Inode) Attributes() Attributes {
	i.mu.Lock()
	defer i.mu.Unlock()

	return Attributes{
		InodeID:    i.ID,
		Type:       i.Type,
		Size:       i.Size,
		BlockCount: len(i.Blocks),
		Children:   len(i.children),
		CreatedAt:  i.CreatedAt,
		ModifyTime: i.ModifyTime,
	}
}

type Attributes struct {
	InodeID    InodeID
	Type       InodeType
	Size       int64
	BlockCount int
	Children   int
	CreatedAt  time.Time
	ModifyTime time.Time
}

type DirEntry struct {
	Name    string
	InodeID InodeID
	Type    InodeType
}
