package fuse_adapter

import (
	"context"
	"syscall"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"

	bs "github.com/AnishMulay/sandfs/internal/block_service"
	"github.com/AnishMulay/sandfs/internal/log_service"
)

// File is both the node and its open handle; reads and writes go straight to
// the file service, so there is nothing per-open to track.
type File struct {
	fs   *SandFS
	path string
}

func (f *File) Attr(ctx context.Context, a *fuse.Attr) error {
	info, err := f.fs.files.Stat(ctx, f.path)
	if err != nil {
		return ToFuseError(err)
	}
	f.fs.fill(a, info)
	return nil
}

func (f *File) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fusefs.Handle, error) {
	if _, err := f.fs.files.Stat(ctx, f.path); err != nil {
		return nil, ToFuseError(err)
	}
	return f, nil
}

func (f *File) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	data, err := f.fs.files.Read(ctx, f.path, req.Size, req.Offset)
	if err != nil {
		return ToFuseError(err)
	}
	resp.Data = data
	return nil
}

func (f *File) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	n, err := f.fs.files.Write(ctx, f.path, req.Data, req.Offset)
	if err != nil {
		return ToFuseError(err)
	}
	resp.Size = n
	return nil
}

// Setattr accepts size changes that grow the file. Files never shrink, so a
// truncation is acknowledged without effect and the real size is reported back.
// Growth that cannot fit in the free blocks fails with ENOSPC before anything
// is allocated.
func (f *File) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if req.Valid.Size() {
		if err := f.grow(ctx, int64(req.Size)); err != nil {
			return err
		}
	}
	return f.Attr(ctx, &resp.Attr)
}

func (f *File) grow(ctx context.Context, size int64) error {
	if size < 0 {
		return syscall.EFBIG
	}
	info, err := f.fs.files.Stat(ctx, f.path)
	if err != nil {
		return ToFuseError(err)
	}
	if size <= info.Size {
		return nil
	}

	stats, err := f.fs.files.StatFs(ctx)
	if err != nil {
		return ToFuseError(err)
	}
	need := bs.BlocksFor(size, int64(stats.BlockSize)) - int64(info.BlockCount)
	if need > int64(stats.FreeBlocks) {
		f.fs.ls.Debug(log_service.LogEvent{
			Message:  "Refusing to grow file past free space",
			Metadata: map[string]any{"path": f.path, "size": size, "needBlocks": need, "freeBlocks": stats.FreeBlocks},
		})
		return syscall.ENOSPC
	}

	_, err = f.fs.files.Write(ctx, f.path, nil, size)
	return ToFuseError(err)
}

func (f *File) Fsync(ctx context.Context, req *fuse.FsyncRequest) error {
	return nil
}

var (
	_ fusefs.Node          = (*File)(nil)
	_ fusefs.NodeOpener    = (*File)(nil)
	_ fusefs.HandleReader  = (*File)(nil)
	_ fusefs.HandleWriter  = (*File)(nil)
	_ fusefs.NodeSetattrer = (*File)(nil)
	_ fusefs.NodeFsyncer   = (*File)(nil)
)
