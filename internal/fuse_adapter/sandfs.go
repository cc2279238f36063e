// Package fuse_adapter exposes a file service as a FUSE filesystem.
// Nodes are addressed by path; a node renamed behind the kernel's back keeps
// its old path until the kernel looks it up again.
package fuse_adapter

import (
	"context"
	"fmt"
	"os"
	"time"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"

	fs "github.com/AnishMulay/sandfs/internal/file_service"
	"github.com/AnishMulay/sandfs/internal/log_service"
	pms "github.com/AnishMulay/sandfs/internal/metadata_service"
)

type SandFS struct {
	files     fs.FileService
	ls        log_service.LogService
	blockSize uint32
	uid       uint32
	gid       uint32
	conn      *fuse.Conn
}

func NewSandFS(ctx context.Context, files fs.FileService, ls log_service.LogService) (*SandFS, error) {
	stats, err := files.StatFs(ctx)
	if err != nil {
		return nil, err
	}
	return &SandFS{
		files:     files,
		ls:        ls,
		blockSize: uint32(stats.BlockSize),
		uid:       uint32(os.Getuid()),
		gid:       uint32(os.Getgid()),
	}, nil
}

// Root implements the fusefs.FS interface.
func (s *SandFS) Root() (fusefs.Node, error) {
	return &Dir{fs: s, path: "/"}, nil
}

func (s *SandFS) Mount(mountPoint string) error {
	s.ls.Info(log_service.LogEvent{
		Message:  "Mounting filesystem",
		Metadata: map[string]any{"mountPoint": mountPoint},
	})

	c, err := fuse.Mount(mountPoint,
		fuse.FSName("sandfs"),
		fuse.Subtype("sandfs"),
	)
	if err != nil {
		return fmt.Errorf("mount failed: %w", err)
	}
	s.conn = c

	go func() {
		if err := fusefs.Serve(c, s); err != nil {
			s.ls.Error(log_service.LogEvent{
				Message:  "FUSE server error",
				Metadata: map[string]any{"error": err.Error()},
			})
		}
	}()
	return nil
}

func (s *SandFS) Unmount(mountPoint string) error {
	if s.conn == nil {
		return nil
	}
	s.ls.Info(log_service.LogEvent{
		Message:  "Unmounting filesystem",
		Metadata: map[string]any{"mountPoint": mountPoint},
	})
	if err := fuse.Unmount(mountPoint); err != nil {
		return err
	}
	return s.conn.Close()
}

func (s *SandFS) fill(a *fuse.Attr, info *fs.FileInfo) {
	a.Inode = uint64(info.InodeID)
	a.Uid = s.uid
	a.Gid = s.gid
	a.Mtime = info.ModifyTime
	a.Ctime = info.ModifyTime
	a.Crtime = info.CreatedAt
	a.Atime = time.Now()
	a.BlockSize = s.blockSize

	if info.Type == pms.TypeDirectory {
		a.Mode = os.ModeDir | 0755
		a.Nlink = 2
		return
	}
	a.Mode = 0644
	a.Nlink = 1
	a.Size = uint64(info.Size)
	a.Blocks = uint64(info.BlockCount) * uint64(s.blockSize) / 512
}

func childPath(dir, name string) string {
	return pms.JoinPath(append(pms.SplitPath(dir), name))
}
