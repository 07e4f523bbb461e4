//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package core

import (
	"errors"
	"syscall"
)

var errReusePortUnsupported = errors.New("SO_REUSEPORT is not supported on this platform")

func listenControl(reusePort bool) func(network, address string, c syscall.RawConn) error {
	if !reusePort {
		return nil
	}
	return func(network, address string, c syscall.RawConn) error {
		return errReusePortUnsupported
	}
}
