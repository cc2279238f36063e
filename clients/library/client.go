package sandlib

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AnishMulay/sandfs/internal/communication"
	fs "github.com/AnishMulay/sandfs/internal/file_service"
	ps "github.com/AnishMulay/sandfs/internal/server"
)

func NewSandfsClient(serverAddr string, comm communication.Communicator) *SandfsClient {
	return &SandfsClient{
		ServerAddr: serverAddr,
		Comm:       comm,
		From:       "sandlib",
	}
}

func (c *SandfsClient) Mkdir(ctx context.Context, path string) error {
	return c.call(ctx, ps.MsgMkdir, ps.MkdirRequest{Path: path}, nil)
}

func (c *SandfsClient) CreateFile(ctx context.Context, path string) error {
	return c.call(ctx, ps.MsgCreate, ps.CreateRequest{Path: path}, nil)
}

func (c *SandfsClient) Write(ctx context.Context, path string, data []byte, offset int64) (int, error) {
	var resp ps.WriteResponse
	err := c.call(ctx, ps.MsgWrite, ps.WriteRequest{Path: path, Offset: offset, Data: data}, &resp)
	return resp.Written, err
}

func (c *SandfsClient) Read(ctx context.Context, path string, size int, offset int64) ([]byte, error) {
	data := []byte{}
	if err := c.call(ctx, ps.MsgRead, ps.ReadRequest{Path: path, Offset: offset, Size: size}, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *SandfsClient) Ls(ctx context.Context, path string) ([]string, error) {
	names := []string{}
	if err := c.call(ctx, ps.MsgLs, ps.LsRequest{Path: path}, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (c *SandfsClient) Delete(ctx context.Context, path string) error {
	return c.call(ctx, ps.MsgDelete, ps.DeleteRequest{Path: path}, nil)
}

func (c *SandfsClient) Rename(ctx context.Context, src, dst string) error {
	return c.call(ctx, ps.MsgRename, ps.RenameRequest{Src: src, Dst: dst}, nil)
}

func (c *SandfsClient) Stat(ctx context.Context, path string) (*fs.FileInfo, error) {
	var info fs.FileInfo
	if err := c.call(ctx, ps.MsgStat, ps.StatRequest{Path: path}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *SandfsClient) Find(ctx context.Context, pattern, filter, root string) ([]string, error) {
	paths := []string{}
	if err := c.call(ctx, ps.MsgFind, ps.FindRequest{Pattern: pattern, Filter: filter, Root: root}, &paths); err != nil {
		return nil, err
	}
	return paths, nil
}

func (c *SandfsClient) StatFs(ctx context.Context) (*fs.FsStats, error) {
	var stats fs.FsStats
	if err := c.call(ctx, ps.MsgStatFs, ps.StatFsRequest{}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *SandfsClient) Check(ctx context.Context) (*fs.CheckReport, error) {
	var report fs.CheckReport
	if err := c.call(ctx, ps.MsgCheck, ps.CheckRequest{}, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// call sends one request and decodes a successful body into out.
func (c *SandfsClient) call(ctx context.Context, msgType string, payload any, out any) error {
	if c.Comm == nil {
		return fmt.Errorf("sandfs communicator is nil")
	}
	if c.ServerAddr == "" {
		return fmt.Errorf("sandfs server address is empty")
	}

	resp, err := c.Comm.Send(ctx, c.ServerAddr, communication.Message{
		From:    c.From,
		Type:    msgType,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("%s failed: %w", msgType, err)
	}
	if resp.Code != communication.CodeOK {
		return responseError(resp)
	}

	if out != nil && len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", msgType, err)
		}
	}
	return nil
}

func responseError(resp *communication.Response) error {
	return &RemoteError{
		Code:    resp.Code,
		Message: strings.TrimSpace(string(resp.Body)),
	}
}
