package simple

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	bsinmemory "github.com/AnishMulay/sandfs/internal/block_service/inmemory"
	"github.com/AnishMulay/sandfs/internal/config"
	fs "github.com/AnishMulay/sandfs/internal/file_service"
	fserr "github.com/AnishMulay/sandfs/internal/fs_errors"
	"github.com/AnishMulay/sandfs/internal/log_service/console"
	pms "github.com/AnishMulay/sandfs/internal/metadata_service"
	msinmemory "github.com/AnishMulay/sandfs/internal/metadata_service/inmemory"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileService(totalBlocks, blockSize int, policy config.DeletePolicy) *SimpleFileService {
	ls := console.NewDiscardLogService()
	ms := msinmemory.NewInMemoryMetadataService(blockSize, totalBlocks, ls)
	blocks := bsinmemory.NewInMemoryBlockService(totalBlocks, blockSize, ls)
	return NewSimpleFileService(ms, blocks, ls, policy)
}

func TestSimpleFileService_Scenarios(t *testing.T) {
	ctx := context.Background()
	s := newFileService(16, 4096, config.DeleteLeak)

	require.NoError(t, s.Mkdir(ctx, "/a"))
	require.NoError(t, s.CreateFile(ctx, "/a/b.txt"))

	n, err := s.Write(ctx, "/a/b.txt", []byte("hello"), 0)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	got, err := s.Read(ctx, "/a/b.txt", 5, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)

	_, err = s.Write(ctx, "/a/b.txt", []byte("world"), 5)
	require.NoError(t, err)

	got, err = s.Read(ctx, "/a/b.txt", 10, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("helloworld"), got)

	require.NoError(t, s.Delete(ctx, "/a/b.txt"))
	_, err = s.Read(ctx, "/a/b.txt", 1, 0)
	require.Equal(t, fserr.KindNotFound, fserr.KindOf(err))
}

func TestSimpleFileService_WriteExhaustion(t *testing.T) {
	ctx := context.Background()

	// Partitions:
	// - existing size: 0, >0
	// - the failing write's first block: new, already attached
	tests := []struct {
		name       string
		prefix     []byte
		wantSize   int64
		wantBlocks int
	}{
		{name: "empty file", prefix: nil, wantSize: 0, wantBlocks: 1},
		{name: "file with content", prefix: []byte("hi"), wantSize: 2, wantBlocks: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFileService(1, 4096, config.DeleteLeak)
			require.NoError(t, s.CreateFile(ctx, "/f"))
			if tt.prefix != nil {
				_, err := s.Write(ctx, "/f", tt.prefix, 0)
				require.NoError(t, err)
			}

			n, err := s.Write(ctx, "/f", bytes.Repeat([]byte{'x'}, 4097), 0)
			require.Equal(t, 0, n)
			require.True(t, errors.Is(err, fserr.ErrResourceExhausted), "err = %v", err)

			var fsErr *fserr.Error
			require.True(t, errors.As(err, &fsErr))
			require.Equal(t, fserr.OpWrite, fsErr.Op)
			require.Equal(t, "/f", fsErr.Path)

			info, err := s.Stat(ctx, "/f")
			require.NoError(t, err)
			require.Equal(t, tt.wantSize, info.Size)
			require.Equal(t, tt.wantBlocks, info.BlockCount)

			// Nothing was copied into the block that was kept.
			got, err := s.Read(ctx, "/f", 4096, 0)
			require.NoError(t, err)
			require.Equal(t, len(tt.prefix), len(got))
			require.Equal(t, string(tt.prefix), string(got))

			stats, err := s.StatFs(ctx)
			require.NoError(t, err)
			require.Equal(t, 0, stats.FreeBlocks)
		})
	}
}

func TestSimpleFileService_RoundTrip(t *testing.T) {
	ctx := context.Background()

	// Partitions, with 8-byte blocks:
	// - offset: 0, inside first block, on a boundary, past several blocks
	// - length: 0, within one block, spanning blocks, exactly one block
	tests := []struct {
		offset int64
		length int
	}{
		{offset: 0, length: 0},
		{offset: 0, length: 5},
		{offset: 3, length: 5},
		{offset: 3, length: 6},
		{offset: 8, length: 8},
		{offset: 7, length: 20},
		{offset: 21, length: 1},
		{offset: 40, length: 24},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("off=%d,len=%d", tt.offset, tt.length), func(t *testing.T) {
			s := newFileService(16, 8, config.DeleteLeak)
			require.NoError(t, s.CreateFile(ctx, "/f"))

			data := make([]byte, tt.length)
			for i := range data {
				data[i] = byte('a' + i%26)
			}

			n, err := s.Write(ctx, "/f", data, tt.offset)
			require.NoError(t, err)
			require.Equal(t, tt.length, n)

			got, err := s.Read(ctx, "/f", tt.length, tt.offset)
			require.NoError(t, err)
			if diff := cmp.Diff(data, got); diff != "" {
				t.Errorf("Read() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSimpleFileService_SizeMonotonic(t *testing.T) {
	ctx := context.Background()
	s := newFileService(16, 8, config.DeleteLeak)
	require.NoError(t, s.CreateFile(ctx, "/f"))

	writes := []struct {
		offset   int64
		data     string
		wantSize int64
	}{
		{offset: 0, data: "abcdefghij", wantSize: 10},
		{offset: 2, data: "XY", wantSize: 10},
		{offset: 9, data: "123", wantSize: 12},
		{offset: 30, data: "", wantSize: 30},
		{offset: 0, data: "z", wantSize: 30},
	}

	for _, w := range writes {
		_, err := s.Write(ctx, "/f", []byte(w.data), w.offset)
		require.NoError(t, err)

		info, err := s.Stat(ctx, "/f")
		require.NoError(t, err)
		require.Equal(t, w.wantSize, info.Size, "after write at %d", w.offset)
	}

	got, err := s.Read(ctx, "/f", 100, 0)
	require.NoError(t, err)
	want := append([]byte("zbXYefghi123"), make([]byte, 18)...)
	require.Equal(t, want, got)
}

func TestSimpleFileService_ReadClamp(t *testing.T) {
	ctx := context.Background()
	s := newFileService(16, 8, config.DeleteLeak)
	require.NoError(t, s.CreateFile(ctx, "/f"))
	_, err := s.Write(ctx, "/f", []byte("0123456789"), 0)
	require.NoError(t, err)

	tests := []struct {
		name   string
		size   int
		offset int64
		want   string
	}{
		{name: "past end is clamped", size: 100, offset: 6, want: "6789"},
		{name: "at end", size: 4, offset: 10, want: ""},
		{name: "beyond end", size: 4, offset: 50, want: ""},
		{name: "zero size", size: 0, offset: 2, want: ""},
		{name: "middle", size: 3, offset: 7, want: "789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Read(ctx, "/f", tt.size, tt.offset)
			require.NoError(t, err)
			require.NotNil(t, got)
			require.Equal(t, tt.want, string(got))
		})
	}

	stats, err := s.StatFs(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.UsedBlocks, "reads must not allocate")
}

func TestSimpleFileService_ErrorKinds(t *testing.T) {
	ctx := context.Background()
	s := newFileService(16, 8, config.DeleteLeak)
	require.NoError(t, s.Mkdir(ctx, "/d"))
	require.NoError(t, s.CreateFile(ctx, "/d/f"))

	tests := []struct {
		name string
		call func() error
		want fserr.Kind
	}{
		{name: "mkdir existing", call: func() error { return s.Mkdir(ctx, "/d") }, want: fserr.KindAlreadyExists},
		{name: "create over dir", call: func() error { return s.CreateFile(ctx, "/d") }, want: fserr.KindAlreadyExists},
		{name: "mkdir missing parent", call: func() error { return s.Mkdir(ctx, "/x/y") }, want: fserr.KindNotFound},
		{name: "create under file", call: func() error { return s.CreateFile(ctx, "/d/f/g") }, want: fserr.KindWrongKind},
		{name: "mkdir root", call: func() error { return s.Mkdir(ctx, "/") }, want: fserr.KindInvalidArgument},
		{name: "write to dir", call: func() error { _, err := s.Write(ctx, "/d", []byte("x"), 0); return err }, want: fserr.KindWrongKind},
		{name: "write missing", call: func() error { _, err := s.Write(ctx, "/nope", []byte("x"), 0); return err }, want: fserr.KindNotFound},
		{name: "write negative offset", call: func() error { _, err := s.Write(ctx, "/d/f", []byte("x"), -1); return err }, want: fserr.KindInvalidArgument},
		{name: "write end overflows", call: func() error { _, err := s.Write(ctx, "/d/f", []byte("hello"), math.MaxInt64-2); return err }, want: fserr.KindInvalidArgument},
		{name: "read dir", call: func() error { _, err := s.Read(ctx, "/d", 1, 0); return err }, want: fserr.KindWrongKind},
		{name: "read negative size", call: func() error { _, err := s.Read(ctx, "/d/f", -1, 0); return err }, want: fserr.KindInvalidArgument},
		{name: "ls file", call: func() error { _, err := s.Ls(ctx, "/d/f"); return err }, want: fserr.KindWrongKind},
		{name: "ls missing", call: func() error { _, err := s.Ls(ctx, "/nope"); return err }, want: fserr.KindNotFound},
		{name: "delete missing", call: func() error { return s.Delete(ctx, "/d/nope") }, want: fserr.KindNotFound},
		{name: "delete root", call: func() error { return s.Delete(ctx, "/") }, want: fserr.KindInvalidArgument},
		{name: "stat missing", call: func() error { _, err := s.Stat(ctx, "/nope"); return err }, want: fserr.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			require.Equal(t, tt.want, fserr.KindOf(err), "err = %v", err)

			var fsErr *fserr.Error
			require.True(t, errors.As(err, &fsErr), "err %T is not *fs_errors.Error", err)
		})
	}
}

func TestSimpleFileService_Ls(t *testing.T) {
	ctx := context.Background()
	s := newFileService(16, 8, config.DeleteLeak)
	for _, p := range []string{"/c", "/a", "/b"} {
		require.NoError(t, s.Mkdir(ctx, p))
	}
	require.NoError(t, s.CreateFile(ctx, "/a/f"))

	got, err := s.Ls(ctx, "/")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, got)

	got, err = s.Ls(ctx, "/b")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSimpleFileService_DeletePolicies(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, policy config.DeletePolicy) (*SimpleFileService, *fs.FileInfo) {
		s := newFileService(16, 8, policy)
		require.NoError(t, s.Mkdir(ctx, "/d"))
		require.NoError(t, s.Mkdir(ctx, "/d/sub"))
		require.NoError(t, s.CreateFile(ctx, "/d/sub/f"))
		_, err := s.Write(ctx, "/d/sub/f", make([]byte, 20), 0)
		require.NoError(t, err)

		info, err := s.Stat(ctx, "/d/sub/f")
		require.NoError(t, err)
		require.Equal(t, 3, info.BlockCount)
		return s, info
	}

	t.Run("leak", func(t *testing.T) {
		s, f := setup(t, config.DeleteLeak)
		require.NoError(t, s.Delete(ctx, "/d"))

		_, err := s.Stat(ctx, "/d/sub/f")
		require.Equal(t, fserr.KindNotFound, fserr.KindOf(err))

		report, err := s.Check(ctx)
		require.NoError(t, err)
		require.True(t, report.Consistent())
		require.Len(t, report.LeakedBlocks, 3)
		require.Contains(t, report.OrphanInodes, f.InodeID)

		stats, err := s.StatFs(ctx)
		require.NoError(t, err)
		require.Equal(t, 3, stats.UsedBlocks)
	})

	t.Run("recursive", func(t *testing.T) {
		s, _ := setup(t, config.DeleteRecursive)
		require.NoError(t, s.Delete(ctx, "/d"))

		report, err := s.Check(ctx)
		require.NoError(t, err)
		require.True(t, report.Consistent())
		require.Empty(t, report.LeakedBlocks)
		require.Empty(t, report.OrphanInodes)

		stats, err := s.StatFs(ctx)
		require.NoError(t, err)
		require.Equal(t, 0, stats.UsedBlocks)
		require.Equal(t, 1, stats.Inodes)
	})

	t.Run("refuse", func(t *testing.T) {
		s, _ := setup(t, config.DeleteRefuse)

		err := s.Delete(ctx, "/d")
		require.Equal(t, fserr.KindNotEmpty, fserr.KindOf(err))
		_, err = s.Stat(ctx, "/d/sub/f")
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, "/d/sub/f"))
		require.NoError(t, s.Delete(ctx, "/d/sub"))
		require.NoError(t, s.Delete(ctx, "/d"))

		stats, err := s.StatFs(ctx)
		require.NoError(t, err)
		require.Equal(t, 0, stats.UsedBlocks)
	})
}

func TestSimpleFileService_DeleteFreesBlocksForReuse(t *testing.T) {
	ctx := context.Background()
	s := newFileService(2, 8, config.DeleteLeak)

	require.NoError(t, s.CreateFile(ctx, "/a"))
	_, err := s.Write(ctx, "/a", make([]byte, 16), 0)
	require.NoError(t, err)

	require.NoError(t, s.CreateFile(ctx, "/b"))
	_, err = s.Write(ctx, "/b", []byte("x"), 0)
	require.True(t, errors.Is(err, fserr.ErrResourceExhausted))

	require.NoError(t, s.Delete(ctx, "/a"))
	_, err = s.Write(ctx, "/b", []byte("fresh"), 0)
	require.NoError(t, err)

	got, err := s.Read(ctx, "/b", 8, 0)
	require.NoError(t, err)
	require.Equal(t, "fresh", string(got))
}

func TestSimpleFileService_RenameAndEvents(t *testing.T) {
	ctx := context.Background()
	s := newFileService(16, 8, config.DeleteLeak)

	var events []fs.Event
	s.Subscribe(func(e fs.Event) { events = append(events, e) })

	require.NoError(t, s.Mkdir(ctx, "/a"))
	require.NoError(t, s.CreateFile(ctx, "a/f"))
	_, err := s.Write(ctx, "/a/f", []byte("payload"), 0)
	require.NoError(t, err)
	require.NoError(t, s.Mkdir(ctx, "/b"))
	require.NoError(t, s.Rename(ctx, "/a/f", "/b/g"))
	require.NoError(t, s.Rename(ctx, "/b/g", "/b/g"))
	require.Error(t, s.Mkdir(ctx, "/a"))
	require.NoError(t, s.Delete(ctx, "/a"))

	got, err := s.Read(ctx, "/b/g", 7, 0)
	require.NoError(t, err)
	require.Equal(t, "payload", string(got))

	want := []fs.Event{
		{Type: fs.EventCreate, Path: "/a", InodeType: pms.TypeDirectory},
		{Type: fs.EventCreate, Path: "/a/f", InodeType: pms.TypeFile},
		{Type: fs.EventCreate, Path: "/b", InodeType: pms.TypeDirectory},
		{Type: fs.EventRename, Path: "/b/g", OldPath: "/a/f", InodeType: pms.TypeFile},
		{Type: fs.EventDelete, Path: "/a", InodeType: pms.TypeDirectory},
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestSimpleFileService_ConcurrentCreateSameName(t *testing.T) {
	ctx := context.Background()
	s := newFileService(16, 8, config.DeleteLeak)

	const workers = 32
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				errs[i] = s.Mkdir(ctx, "/same")
			} else {
				errs[i] = s.CreateFile(ctx, "/same")
			}
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.Equal(t, fserr.KindAlreadyExists, fserr.KindOf(err))
	}
	require.Equal(t, 1, wins)
}

func TestSimpleFileService_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	s := newFileService(64, 8, config.DeleteLeak)
	require.NoError(t, s.Mkdir(ctx, "/w"))
	require.NoError(t, s.CreateFile(ctx, "/shared"))

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			// Same file: whole-range writes so any torn write is visible.
			_, err := s.Write(ctx, "/shared", bytes.Repeat([]byte{byte('A' + i)}, 32), 0)
			assert.NoError(t, err)

			got, err := s.Read(ctx, "/shared", 32, 0)
			if assert.NoError(t, err) && assert.Len(t, got, 32) {
				assert.Equal(t, bytes.Repeat(got[:1], 32), got)
			}

			// Own file.
			path := fmt.Sprintf("/w/f%d", i)
			assert.NoError(t, s.CreateFile(ctx, path))
			_, err = s.Write(ctx, path, []byte(path), 0)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		path := fmt.Sprintf("/w/f%d", i)
		got, err := s.Read(ctx, path, 64, 0)
		require.NoError(t, err)
		require.Equal(t, path, string(got))
	}

	report, err := s.Check(ctx)
	require.NoError(t, err)
	require.True(t, report.Consistent())
	require.Empty(t, report.LeakedBlocks)
	require.Empty(t, report.OrphanInodes)
}
