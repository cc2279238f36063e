package inmemory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	fserr "github.com/AnishMulay/sandfs/internal/fs_errors"
	"github.com/AnishMulay/sandfs/internal/log_service/console"
	pms "github.com/AnishMulay/sandfs/internal/metadata_service"
	"github.com/google/go-cmp/cmp"
)

func newService() *InMemoryMetadataService {
	return NewInMemoryMetadataService(4096, 16, console.NewDiscardLogService())
}

func mustMkdir(t *testing.T, s *InMemoryMetadataService, path string) {
	t.Helper()
	if _, err := s.Mkdir(context.Background(), path); err != nil {
		t.Fatalf("Mkdir(%q) error = %v", path, err)
	}
}

func mustCreate(t *testing.T, s *InMemoryMetadataService, path string) {
	t.Helper()
	if _, err := s.Create(context.Background(), path); err != nil {
		t.Fatalf("Create(%q) error = %v", path, err)
	}
}

func TestInMemoryMetadataService_Resolve(t *testing.T) {
	ctx := context.Background()
	s := newService()
	mustMkdir(t, s, "/a")
	mustMkdir(t, s, "/a/b")
	mustCreate(t, s, "/a/b/f.txt")

	tests := []struct {
		name     string
		path     string
		wantType pms.InodeType
		wantRoot bool
		wantErr  error
	}{
		{name: "empty path is root", path: "", wantType: pms.TypeDirectory, wantRoot: true},
		{name: "slash is root", path: "/", wantType: pms.TypeDirectory, wantRoot: true},
		{name: "duplicate separators", path: "//a///b//", wantType: pms.TypeDirectory},
		{name: "no leading slash", path: "a/b/f.txt", wantType: pms.TypeFile},
		{name: "missing leaf", path: "/a/b/missing", wantErr: fserr.ErrNotFound},
		{name: "missing intermediate", path: "/x/b", wantErr: fserr.ErrNotFound},
		{name: "file as intermediate", path: "/a/b/f.txt/more", wantErr: fserr.ErrNotDir},
		{name: "dot is just a name", path: "/a/.", wantErr: fserr.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inode, err := s.Resolve(ctx, tt.path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Resolve(%q) error = %v, want %v", tt.path, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.path, err)
			}
			if inode.Type != tt.wantType {
				t.Errorf("Resolve(%q) type = %v, want %v", tt.path, inode.Type, tt.wantType)
			}
			if tt.wantRoot && inode.ID != s.Superblock().RootInodeID {
				t.Errorf("Resolve(%q) = inode %d, want root", tt.path, inode.ID)
			}
		})
	}
}

func TestInMemoryMetadataService_Create(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		setupFn func(*testing.T, *InMemoryMetadataService)
		wantErr error
	}{
		{name: "file at root", path: "/f"},
		{name: "nested file", path: "/d/f", setupFn: func(t *testing.T, s *InMemoryMetadataService) { mustMkdir(t, s, "/d") }},
		{name: "parent missing", path: "/nope/f", wantErr: fserr.ErrNotFound},
		{name: "parent is a file", path: "/f/g", setupFn: func(t *testing.T, s *InMemoryMetadataService) { mustCreate(t, s, "/f") }, wantErr: fserr.ErrNotDir},
		{name: "name taken by dir", path: "/d", setupFn: func(t *testing.T, s *InMemoryMetadataService) { mustMkdir(t, s, "/d") }, wantErr: fserr.ErrAlreadyExists},
		{name: "root", path: "/", wantErr: fserr.ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newService()
			if tt.setupFn != nil {
				tt.setupFn(t, s)
			}

			inode, err := s.Create(context.Background(), tt.path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if inode.Type != pms.TypeFile || inode.Size != 0 || len(inode.Blocks) != 0 {
				t.Errorf("Create() inode = %+v", inode.Attributes())
			}
			if got, err := s.GetInode(context.Background(), inode.ID); err != nil || got != inode {
				t.Errorf("GetInode(%d) = (%v, %v)", inode.ID, got, err)
			}
		})
	}
}

func TestInMemoryMetadataService_ConcurrentMkdirSameName(t *testing.T) {
	s := newService()
	mustMkdir(t, s, "/p")

	var (
		wins   atomic.Int32
		exists atomic.Int32
		wg     sync.WaitGroup
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Mkdir(context.Background(), "/p/x")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, fserr.ErrAlreadyExists):
				exists.Add(1)
			default:
				t.Errorf("Mkdir() unexpected error = %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 || exists.Load() != 31 {
		t.Errorf("wins = %d, exists = %d; want 1 and 31", wins.Load(), exists.Load())
	}
}

func TestInMemoryMetadataService_Detach(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		path         string
		requireEmpty bool
		wantErr      error
	}{
		{name: "file", path: "/d/f"},
		{name: "non-empty dir without check", path: "/d"},
		{name: "non-empty dir with check", path: "/d", requireEmpty: true, wantErr: fserr.ErrNotEmpty},
		{name: "empty dir with check", path: "/e", requireEmpty: true},
		{name: "missing", path: "/d/nope", wantErr: fserr.ErrNotFound},
		{name: "root", path: "/", wantErr: fserr.ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newService()
			mustMkdir(t, s, "/d")
			mustMkdir(t, s, "/e")
			mustCreate(t, s, "/d/f")

			inode, err := s.Detach(ctx, tt.path, tt.requireEmpty)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Detach() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Detach() error = %v", err)
			}

			inode.Lock()
			deleted := inode.Deleted()
			inode.Unlock()
			if !deleted {
				t.Errorf("Detach() left inode live")
			}
			if _, err := s.Resolve(ctx, tt.path); !errors.Is(err, fserr.ErrNotFound) {
				t.Errorf("Resolve() after Detach error = %v, want %v", err, fserr.ErrNotFound)
			}
			// Detach leaves registration to the caller.
			if _, err := s.GetInode(ctx, inode.ID); err != nil {
				t.Errorf("GetInode() after Detach error = %v", err)
			}
			s.Unregister(inode.ID)
			if _, err := s.GetInode(ctx, inode.ID); !errors.Is(err, fserr.ErrNotFound) {
				t.Errorf("GetInode() after Unregister error = %v", err)
			}
		})
	}
}

func TestInMemoryMetadataService_CreateInDetachedDir(t *testing.T) {
	ctx := context.Background()
	s := newService()
	mustMkdir(t, s, "/d")

	dir, err := s.Resolve(ctx, "/d")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Detach(ctx, "/d", false); err != nil {
		t.Fatal(err)
	}

	// Creators holding a stale reference see the deleted mark; fresh ones
	// no longer resolve the path at all.
	dir.Lock()
	deleted := dir.Deleted()
	dir.Unlock()
	if !deleted {
		t.Fatalf("detached dir not marked deleted")
	}
	if _, err := s.Mkdir(ctx, "/d/x"); !errors.Is(err, fserr.ErrNotFound) {
		t.Errorf("Mkdir() under detached dir error = %v, want %v", err, fserr.ErrNotFound)
	}
}

func TestInMemoryMetadataService_Rename(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		src, dst string
		wantErr  error
		wantLs   map[string][]string
	}{
		{
			name: "within directory",
			src:  "/a/f", dst: "/a/g",
			wantLs: map[string][]string{"/a": {"g", "sub"}},
		},
		{
			name: "across directories",
			src:  "/a/f", dst: "/b/f",
			wantLs: map[string][]string{"/a": {"sub"}, "/b": {"f"}},
		},
		{
			name: "directory with contents",
			src:  "/a", dst: "/b/a",
			wantLs: map[string][]string{"/": {"b"}, "/b/a": {"f", "sub"}},
		},
		{name: "into own subtree", src: "/a", dst: "/a/sub/a", wantErr: fserr.ErrInvalidArgument},
		{name: "onto itself", src: "/a/f", dst: "/a/f"},
		{name: "destination exists", src: "/a/f", dst: "/a/sub", wantErr: fserr.ErrAlreadyExists},
		{name: "source missing", src: "/a/nope", dst: "/b/x", wantErr: fserr.ErrNotFound},
		{name: "destination parent missing", src: "/a/f", dst: "/zz/f", wantErr: fserr.ErrNotFound},
		{name: "root", src: "/", dst: "/b/root", wantErr: fserr.ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newService()
			mustMkdir(t, s, "/a")
			mustMkdir(t, s, "/a/sub")
			mustMkdir(t, s, "/b")
			mustCreate(t, s, "/a/f")

			_, err := s.Rename(ctx, tt.src, tt.dst)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Rename() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Rename() error = %v", err)
			}

			for dir, want := range tt.wantLs {
				entries, err := s.ReadDir(ctx, dir)
				if err != nil {
					t.Fatalf("ReadDir(%q) error = %v", dir, err)
				}
				var got []string
				for _, e := range entries {
					got = append(got, e.Name)
				}
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("ReadDir(%q) mismatch (-want +got):\n%s", dir, diff)
				}
			}
		})
	}
}

func TestInMemoryMetadataService_Walk(t *testing.T) {
	ctx := context.Background()
	s := newService()
	mustMkdir(t, s, "/a")
	mustMkdir(t, s, "/a/b")
	mustCreate(t, s, "/a/b/x")
	mustCreate(t, s, "/a/y")
	mustCreate(t, s, "/z")

	var got []string
	err := s.Walk(ctx, "/", func(path string, e pms.DirEntry) error {
		got = append(got, path)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	want := []string{"/a", "/a/b", "/a/b/x", "/a/y", "/z"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Walk() mismatch (-want +got):\n%s", diff)
	}

	if err := s.Walk(ctx, "/z", func(string, pms.DirEntry) error { return nil }); !errors.Is(err, fserr.ErrNotDir) {
		t.Errorf("Walk() on file error = %v, want %v", err, fserr.ErrNotDir)
	}

	stop := errors.New("stop")
	count := 0
	err = s.Walk(ctx, "/", func(string, pms.DirEntry) error {
		count++
		return stop
	})
	if !errors.Is(err, stop) || count != 1 {
		t.Errorf("Walk() with stop = (%v, %d calls)", err, count)
	}
}

func TestInMemoryMetadataService_InodeIDsIncrease(t *testing.T) {
	s := newService()
	mustMkdir(t, s, "/a")
	mustCreate(t, s, "/a/f")

	inodes := s.Inodes()
	if len(inodes) != 3 {
		t.Fatalf("Inodes() len = %d, want 3", len(inodes))
	}
	for i, inode := range inodes {
		if inode.ID != pms.InodeID(i+1) {
			t.Errorf("Inodes()[%d].ID = %d, want %d", i, inode.ID, i+1)
		}
	}
	if inodes[0].ID != s.Superblock().RootInodeID {
		t.Errorf("root id = %d, want %d", s.Superblock().RootInodeID, inodes[0].ID)
	}
	if s.Superblock().FsID == "" {
		t.Errorf("Superblock().FsID empty")
	}
}
