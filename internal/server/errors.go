package server

import "errors"

var (
	ErrInvalidPayloadType = errors.New("invalid payload type for message")
	ErrUnknownMessageType = errors.New("unknown message type")
)
