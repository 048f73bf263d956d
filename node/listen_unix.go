//go:build unix

package node

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// newListenConfig sets SO_REUSEADDR so a restarted server can bind while
// old connections sit in TIME_WAIT.
func newListenConfig() *net.ListenConfig {
	return &net.ListenConfig{
		KeepAlive: TCPKeepAlive,
		Control: func(network, address string, rc syscall.RawConn) error {
			var opErr error
			err := rc.Control(func(fd uintptr) {
				opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return opErr
		},
	}
}
