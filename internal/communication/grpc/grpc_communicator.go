package grpccomm

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"reflect"
	"runtime/debug"
	"sync"

	"github.com/AnishMulay/sandfs/internal/communication"
	"github.com/AnishMulay/sandfs/internal/log_service"
	"github.com/google/uuid"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type requestEnvelope struct {
	ID      string          `json:"id"`
	From    string          `json:"from"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type responseEnvelope struct {
	Code communication.SandCode `json:"code"`
	Body []byte                 `json:"body,omitempty"`
}

type GRPCCommunicator struct {
	listenAddress string
	handler       communication.MessageHandler
	grpcServer    *grpc.Server
	ls            log_service.LogService

	clientLock sync.RWMutex
	clients    map[string]*grpc.ClientConn

	typesLock    sync.RWMutex
	payloadTypes map[string]reflect.Type

	stopped   bool
	stopMutex sync.Mutex
}

func NewGRPCCommunicator(addr string, ls log_service.LogService) *GRPCCommunicator {
	return &GRPCCommunicator{
		listenAddress: addr,
		ls:            ls,
		clients:       make(map[string]*grpc.ClientConn),
		payloadTypes:  make(map[string]reflect.Type),
	}
}

// Address is the bound address once Start has run, so ":0" resolves to
// the real port.
func (c *GRPCCommunicator) Address() string {
	return c.listenAddress
}

func (c *GRPCCommunicator) RegisterPayloadType(msgType string, payloadType reflect.Type) {
	c.typesLock.Lock()
	defer c.typesLock.Unlock()
	c.payloadTypes[msgType] = payloadType
}

func (c *GRPCCommunicator) payloadType(msgType string) (reflect.Type, bool) {
	c.typesLock.RLock()
	defer c.typesLock.RUnlock()
	t, ok := c.payloadTypes[msgType]
	return t, ok
}

func (c *GRPCCommunicator) Start(handler communication.MessageHandler) error {
	c.ls.Info(log_service.LogEvent{
		Message:  "Starting GRPC communicator",
		Metadata: map[string]any{"address": c.listenAddress},
	})

	lis, err := net.Listen("tcp", c.listenAddress)
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to listen on address",
			Metadata: map[string]any{"address": c.listenAddress, "error": err.Error()},
		})
		return fmt.Errorf("%w: %v", communication.ErrListenFailed, err)
	}

	c.handler = handler
	c.listenAddress = lis.Addr().String()
	c.grpcServer = grpc.NewServer(grpc.UnaryInterceptor(c.recoverUnary))
	c.grpcServer.RegisterService(&messageServiceDesc, &grpcServer{comm: c})

	c.ls.Info(log_service.LogEvent{
		Message:  "GRPC communicator started successfully",
		Metadata: map[string]any{"address": c.listenAddress},
	})

	go func() {
		if err := c.grpcServer.Serve(lis); err != nil {
			c.ls.Error(log_service.LogEvent{
				Message:  "GRPC server error",
				Metadata: map[string]any{"address": c.listenAddress, "error": err.Error()},
			})
		}
	}()
	return nil
}

func (c *GRPCCommunicator) Stop() error {
	c.stopMutex.Lock()
	defer c.stopMutex.Unlock()

	if c.stopped {
		c.ls.Debug(log_service.LogEvent{
			Message:  "GRPC communicator already stopped, skipping",
			Metadata: map[string]any{"address": c.listenAddress},
		})
		return nil
	}

	c.ls.Info(log_service.LogEvent{
		Message:  "Stopping GRPC communicator",
		Metadata: map[string]any{"address": c.listenAddress},
	})

	if c.grpcServer != nil {
		c.grpcServer.GracefulStop()
	}

	c.clientLock.Lock()
	for addr, conn := range c.clients {
		if err := conn.Close(); err != nil {
			c.ls.Warn(log_service.LogEvent{
				Message:  "Failed to close GRPC client",
				Metadata: map[string]any{"to": addr, "error": err.Error()},
			})
		}
		delete(c.clients, addr)
	}
	c.clientLock.Unlock()

	c.stopped = true
	return nil
}

func (c *GRPCCommunicator) client(to string) (*grpc.ClientConn, error) {
	c.clientLock.RLock()
	conn, ok := c.clients[to]
	c.clientLock.RUnlock()
	if ok {
		return conn, nil
	}

	c.clientLock.Lock()
	defer c.clientLock.Unlock()

	if conn, ok := c.clients[to]; ok {
		return conn, nil
	}

	c.ls.Debug(log_service.LogEvent{
		Message:  "Creating new GRPC client",
		Metadata: map[string]any{"to": to},
	})
	conn, err := grpc.NewClient(to, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to create GRPC client",
			Metadata: map[string]any{"to": to, "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: %v", communication.ErrClientCreateFailed, err)
	}
	c.clients[to] = conn
	return conn, nil
}

func (c *GRPCCommunicator) Send(ctx context.Context, to string, msg communication.Message) (*communication.Response, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	c.ls.Debug(log_service.LogEvent{
		Message:  "Sending GRPC message",
		Metadata: map[string]any{"to": to, "type": msg.Type, "from": msg.From, "id": msg.ID},
	})

	conn, err := c.client(to)
	if err != nil {
		return nil, err
	}

	env := requestEnvelope{ID: msg.ID, From: msg.From, Type: msg.Type}
	if msg.Payload != nil {
		env.Payload, err = json.Marshal(msg.Payload)
		if err != nil {
			c.ls.Error(log_service.LogEvent{
				Message:  "Failed to marshal payload",
				Metadata: map[string]any{"to": to, "type": msg.Type, "error": err.Error()},
			})
			return nil, fmt.Errorf("%w: %v", communication.ErrPayloadMarshalFailed, err)
		}
	}
	reqBytes, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", communication.ErrPayloadMarshalFailed, err)
	}

	out := new(wrapperspb.BytesValue)
	if err := conn.Invoke(ctx, sendMessageMethod, wrapperspb.Bytes(reqBytes), out); err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to send GRPC message",
			Metadata: map[string]any{"to": to, "type": msg.Type, "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: %v", communication.ErrMessageSendFailed, err)
	}

	var resp responseEnvelope
	if err := json.Unmarshal(out.GetValue(), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", communication.ErrPayloadUnmarshalFailed, err)
	}

	c.ls.Debug(log_service.LogEvent{
		Message:  "GRPC message sent successfully",
		Metadata: map[string]any{"to": to, "type": msg.Type, "responseCode": resp.Code},
	})
	return &communication.Response{Code: resp.Code, Body: resp.Body}, nil
}

// recoverUnary turns a handler panic into an INTERNAL reply.
func (c *GRPCCommunicator) recoverUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		c.ls.Error(log_service.LogEvent{
			Message:  "Recovered from handler panic",
			Metadata: map[string]any{"method": info.FullMethod, "panic": fmt.Sprint(r), "stack": string(debug.Stack())},
		})
		out, marshalErr := json.Marshal(responseEnvelope{
			Code: communication.CodeInternal,
			Body: []byte(fmt.Sprintf("internal error: %v", r)),
		})
		if marshalErr != nil {
			resp, err = nil, marshalErr
			return
		}
		resp, err = wrapperspb.Bytes(out), nil
	}()
	return handler(ctx, req)
}

type grpcServer struct {
	comm *GRPCCommunicator
}

func (s *grpcServer) SendMessage(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	resp := s.handle(ctx, req.GetValue())
	out, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bytes(out), nil
}

func (s *grpcServer) handle(ctx context.Context, raw []byte) responseEnvelope {
	if s.comm.handler == nil {
		return responseEnvelope{Code: communication.CodeInternal, Body: []byte(communication.ErrHandlerNotSet.Error())}
	}

	var env requestEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return responseEnvelope{Code: communication.CodeBadRequest, Body: []byte(err.Error())}
	}

	msg := communication.Message{ID: env.ID, From: env.From, Type: env.Type}

	// Deserialize payload based on registered type
	payloadType, ok := s.comm.payloadType(env.Type)
	if !ok {
		return responseEnvelope{
			Code: communication.CodeBadRequest,
			Body: []byte(fmt.Sprintf("%v: %s", communication.ErrUnknownMessageType, env.Type)),
		}
	}
	payload := reflect.New(payloadType).Interface()
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, payload); err != nil {
			return responseEnvelope{
				Code: communication.CodeBadRequest,
				Body: []byte(fmt.Sprintf("%v: %v", communication.ErrPayloadUnmarshalFailed, err)),
			}
		}
	}
	msg.Payload = reflect.ValueOf(payload).Elem().Interface()

	resp, err := s.comm.handler(ctx, msg)
	if err != nil {
		s.comm.ls.Error(log_service.LogEvent{
			Message:  "Message handler failed",
			Metadata: map[string]any{"type": env.Type, "id": env.ID, "error": err.Error()},
		})
		return responseEnvelope{Code: communication.CodeInternal, Body: []byte(err.Error())}
	}
	if resp == nil {
		return responseEnvelope{Code: communication.CodeInternal, Body: []byte("handler returned nil response")}
	}
	return responseEnvelope{Code: resp.Code, Body: resp.Body}
}

var _ communication.Communicator = (*GRPCCommunicator)(nil)
