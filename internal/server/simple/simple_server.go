package simple

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/AnishMulay/sandfs/internal/communication"
	fs "github.com/AnishMulay/sandfs/internal/file_service"
	fserr "github.com/AnishMulay/sandfs/internal/fs_errors"
	"github.com/AnishMulay/sandfs/internal/log_service"
	ss "github.com/AnishMulay/sandfs/internal/search_service"
	ps "github.com/AnishMulay/sandfs/internal/server"
)

type SimpleServer struct {
	comm   communication.Communicator
	fs     fs.FileService
	search *ss.SearchService
	ls     log_service.LogService
}

func NewSimpleServer(
	comm communication.Communicator,
	fs fs.FileService,
	search *ss.SearchService,
	ls log_service.LogService,
) *SimpleServer {
	return &SimpleServer{
		comm:   comm,
		fs:     fs,
		search: search,
		ls:     ls,
	}
}

func (s *SimpleServer) Start() error {
	s.ls.Info(log_service.LogEvent{Message: "Starting Simple Server"})

	s.registerPayloads()
	return s.comm.Start(s.handleMessage)
}

func (s *SimpleServer) Stop() error {
	s.ls.Info(log_service.LogEvent{Message: "Stopping Simple Server"})
	return s.comm.Stop()
}

// Address is where the server accepts messages.
func (s *SimpleServer) Address() string {
	return s.comm.Address()
}

func (s *SimpleServer) registerPayloads() {
	payloads := map[string]any{
		ps.MsgMkdir:  ps.MkdirRequest{},
		ps.MsgCreate: ps.CreateRequest{},
		ps.MsgLs:     ps.LsRequest{},
		ps.MsgDelete: ps.DeleteRequest{},
		ps.MsgRename: ps.RenameRequest{},
		ps.MsgStat:   ps.StatRequest{},
		ps.MsgWrite:  ps.WriteRequest{},
		ps.MsgRead:   ps.ReadRequest{},
		ps.MsgFind:   ps.FindRequest{},
		ps.MsgStatFs: ps.StatFsRequest{},
		ps.MsgCheck:  ps.CheckRequest{},
	}
	for msgType, payload := range payloads {
		s.comm.RegisterPayloadType(msgType, reflect.TypeOf(payload))
	}
}

// Central Router for all incoming messages
func (s *SimpleServer) handleMessage(ctx context.Context, msg communication.Message) (*communication.Response, error) {
	s.ls.Debug(log_service.LogEvent{
		Message:  "Handling message",
		Metadata: map[string]any{"type": msg.Type, "from": msg.From, "id": msg.ID},
	})

	switch msg.Type {
	case ps.MsgMkdir:
		req, ok := msg.Payload.(ps.MkdirRequest)
		if !ok {
			return badPayload(msg)
		}
		return s.respond(nil, s.fs.Mkdir(ctx, req.Path))

	case ps.MsgCreate:
		req, ok := msg.Payload.(ps.CreateRequest)
		if !ok {
			return badPayload(msg)
		}
		return s.respond(nil, s.fs.CreateFile(ctx, req.Path))

	case ps.MsgLs:
		req, ok := msg.Payload.(ps.LsRequest)
		if !ok {
			return badPayload(msg)
		}
		names, err := s.fs.Ls(ctx, req.Path)
		return s.respond(names, err)

	case ps.MsgDelete:
		req, ok := msg.Payload.(ps.DeleteRequest)
		if !ok {
			return badPayload(msg)
		}
		return s.respond(nil, s.fs.Delete(ctx, req.Path))

	case ps.MsgRename:
		req, ok := msg.Payload.(ps.RenameRequest)
		if !ok {
			return badPayload(msg)
		}
		return s.respond(nil, s.fs.Rename(ctx, req.Src, req.Dst))

	case ps.MsgStat:
		req, ok := msg.Payload.(ps.StatRequest)
		if !ok {
			return badPayload(msg)
		}
		info, err := s.fs.Stat(ctx, req.Path)
		return s.respond(info, err)

	case ps.MsgWrite:
		req, ok := msg.Payload.(ps.WriteRequest)
		if !ok {
			return badPayload(msg)
		}
		n, err := s.fs.Write(ctx, req.Path, req.Data, req.Offset)
		return s.respond(ps.WriteResponse{Written: n}, err)

	case ps.MsgRead:
		req, ok := msg.Payload.(ps.ReadRequest)
		if !ok {
			return badPayload(msg)
		}
		data, err := s.fs.Read(ctx, req.Path, req.Size, req.Offset)
		return s.respond(data, err)

	case ps.MsgFind:
		req, ok := msg.Payload.(ps.FindRequest)
		if !ok {
			return badPayload(msg)
		}
		paths, err := s.search.Find(ctx, req.Pattern, ss.Filter(req.Filter), req.Root)
		return s.respond(paths, err)

	case ps.MsgStatFs:
		stats, err := s.fs.StatFs(ctx)
		return s.respond(stats, err)

	case ps.MsgCheck:
		report, err := s.fs.Check(ctx)
		return s.respond(report, err)

	default:
		return &communication.Response{
			Code: communication.CodeBadRequest,
			Body: []byte(fmt.Sprintf("%v: %s", ps.ErrUnknownMessageType, msg.Type)),
		}, nil
	}
}

func badPayload(msg communication.Message) (*communication.Response, error) {
	return &communication.Response{
		Code: communication.CodeBadRequest,
		Body: []byte(fmt.Sprintf("%v: %s", ps.ErrInvalidPayloadType, msg.Type)),
	}, nil
}

// CodeFor maps an error from the file service onto a wire code.
func CodeFor(err error) communication.SandCode {
	switch fserr.KindOf(err) {
	case fserr.KindNotFound:
		return communication.CodeNotFound
	case fserr.KindWrongKind:
		return communication.CodeWrongKind
	case fserr.KindAlreadyExists:
		return communication.CodeAlreadyExists
	case fserr.KindResourceExhausted:
		return communication.CodeResourceExhausted
	case fserr.KindInvalidArgument:
		return communication.CodeBadRequest
	case fserr.KindNotEmpty:
		return communication.CodeNotEmpty
	default:
		return communication.CodeInternal
	}
}

// respond is a helper to standardize JSON responses and error codes
func (s *SimpleServer) respond(data any, err error) (*communication.Response, error) {
	if err != nil {
		return &communication.Response{
			Code: CodeFor(err),
			Body: []byte(err.Error()),
		}, nil
	}

	if data == nil {
		return &communication.Response{Code: communication.CodeOK}, nil
	}

	bytes, marshalErr := json.Marshal(data)
	if marshalErr != nil {
		return &communication.Response{
			Code: communication.CodeInternal,
			Body: []byte("failed to marshal response: " + marshalErr.Error()),
		}, nil
	}

	return &communication.Response{
		Code: communication.CodeOK,
		Body: bytes,
	}, nil
}

var _ ps.Server = (*SimpleServer)(nil)
