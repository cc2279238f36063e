package communication

import (
	"context"
	"reflect"
)

// Message is one request travelling between nodes. Payload is a typed
// request struct; the communicator decodes it using the type registered for
// Message.Type.
type Message struct {
	ID      string
	From    string
	Type    string
	Payload any
}

type SandCode string

const (
	CodeOK                SandCode = "OK"
	CodeBadRequest        SandCode = "BAD_REQUEST"
	CodeNotFound          SandCode = "NOT_FOUND"
	CodeAlreadyExists     SandCode = "ALREADY_EXISTS"
	CodeWrongKind         SandCode = "WRONG_KIND"
	CodeNotEmpty          SandCode = "NOT_EMPTY"
	CodeResourceExhausted SandCode = "RESOURCE_EXHAUSTED"
	CodeInternal          SandCode = "INTERNAL"
)

type Response struct {
	Code SandCode
	Body []byte
}

type MessageHandler func(ctx context.Context, msg Message) (*Response, error)

type Communicator interface {
	Start(handler MessageHandler) error
	Stop() error
	Send(ctx context.Context, to string, msg Message) (*Response, error)
	RegisterPayloadType(msgType string, payloadType reflect.Type)
	Address() string
}
