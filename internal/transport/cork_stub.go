//go:build !linux

package transport

import "net"

func setCork(conn *net.TCPConn, enabled bool) error {
	return nil
}
