//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package core

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// listenControl returns the Control hook for the listening socket. With
// reusePort set the socket gets SO_REUSEPORT, so several server processes
// can bind the same port and the kernel spreads connections across them.
func listenControl(reusePort bool) func(network, address string, c syscall.RawConn) error {
	if !reusePort {
		return nil
	}

	return func(network, address string, c syscall.RawConn) error {
		var serr error
		err := c.Control(func(fd uintptr) {
			serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
		})
		if err != nil {
			return err
		}
		if serr != nil {
			return fmt.Errorf("SO_REUSEPORT: %w", serr)
		}
		return nil
	}
}
