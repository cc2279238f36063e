package fuse_adapter

import (
	"context"
	"syscall"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"

	"github.com/AnishMulay/sandfs/internal/log_service"
	pms "github.com/AnishMulay/sandfs/internal/metadata_service"
)

type Dir struct {
	fs   *SandFS
	path string
}

func (d *Dir) Attr(ctx context.Context, a *fuse.Attr) error {
	info, err := d.fs.files.Stat(ctx, d.path)
	if err != nil {
		return ToFuseError(err)
	}
	d.fs.fill(a, info)
	return nil
}

func (d *Dir) Lookup(ctx context.Context, name string) (fusefs.Node, error) {
	p := childPath(d.path, name)
	info, err := d.fs.files.Stat(ctx, p)
	if err != nil {
		return nil, ToFuseError(err)
	}
	if info.Type == pms.TypeDirectory {
		return &Dir{fs: d.fs, path: p}, nil
	}
	return &File{fs: d.fs, path: p}, nil
}

func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	names, err := d.fs.files.Ls(ctx, d.path)
	if err != nil {
		return nil, ToFuseError(err)
	}

	entries := make([]fuse.Dirent, 0, len(names))
	for _, name := range names {
		info, err := d.fs.files.Stat(ctx, childPath(d.path, name))
		if err != nil {
			// Removed since Ls took its snapshot.
			continue
		}
		t := fuse.DT_File
		if info.Type == pms.TypeDirectory {
			t = fuse.DT_Dir
		}
		entries = append(entries, fuse.Dirent{Inode: uint64(info.InodeID), Name: name, Type: t})
	}
	return entries, nil
}

func (d *Dir) Mkdir(ctx context.Context, req *fuse.MkdirRequest) (fusefs.Node, error) {
	p := childPath(d.path, req.Name)
	if err := d.fs.files.Mkdir(ctx, p); err != nil {
		return nil, ToFuseError(err)
	}
	return &Dir{fs: d.fs, path: p}, nil
}

func (d *Dir) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fusefs.Node, fusefs.Handle, error) {
	p := childPath(d.path, req.Name)
	if err := d.fs.files.CreateFile(ctx, p); err != nil {
		return nil, nil, ToFuseError(err)
	}
	f := &File{fs: d.fs, path: p}
	return f, f, nil
}

func (d *Dir) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	p := childPath(d.path, req.Name)
	if err := d.fs.files.Delete(ctx, p); err != nil {
		d.fs.ls.Debug(log_service.LogEvent{
			Message:  "Remove failed",
			Metadata: map[string]any{"path": p, "error": err.Error()},
		})
		return ToFuseError(err)
	}
	return nil
}

func (d *Dir) Rename(ctx context.Context, req *fuse.RenameRequest, newDir fusefs.Node) error {
	target, ok := newDir.(*Dir)
	if !ok {
		return syscall.EINVAL
	}
	src := childPath(d.path, req.OldName)
	dst := childPath(target.path, req.NewName)
	return ToFuseError(d.fs.files.Rename(ctx, src, dst))
}

var (
	_ fusefs.Node               = (*Dir)(nil)
	_ fusefs.NodeStringLookuper = (*Dir)(nil)
	_ fusefs.HandleReadDirAller = (*Dir)(nil)
	_ fusefs.NodeMkdirer        = (*Dir)(nil)
	_ fusefs.NodeCreater        = (*Dir)(nil)
	_ fusefs.NodeRemover        = (*Dir)(nil)
	_ fusefs.NodeRenamer        = (*Dir)(nil)
)
