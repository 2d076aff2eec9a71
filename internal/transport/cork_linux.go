//go:build linux

package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

func setCork(conn *net.TCPConn, enabled bool) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	value := 0
	if enabled {
		value = 1
	}

	var opErr error
	err = raw.Control(func(fd uintptr) {
		opErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_CORK, value)
	})
	if err != nil {
		return err
	}

	return opErr
}
