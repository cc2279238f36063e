package communication

import "errors"

var (
	// Server startup errors
	ErrListenFailed  = errors.New("failed to listen on address")
	ErrHandlerNotSet = errors.New("message handler not set")

	// Client errors
	ErrClientCreateFailed = errors.New("failed to create client")
	ErrMessageSendFailed  = errors.New("failed to send message")

	// Serialization errors
	ErrPayloadMarshalFailed   = errors.New("failed to marshal payload")
	ErrPayloadUnmarshalFailed = errors.New("failed to unmarshal payload")
	ErrUnknownMessageType     = errors.New("no payload type registered for message")
)
