package core

import "errors"

// RecvBufferSize bounds one request's header block
const RecvBufferSize = 4096

// Session states
const (
	StateAwaitingRequest = iota
	StateHandling
	StateClosing
)

// Error definitions
var (
	ErrServerClosed = errors.New("server closed")
)
