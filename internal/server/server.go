package server

// Server exposes a file service to remote callers.
type Server interface {
	Start() error
	Stop() error
}
