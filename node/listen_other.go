//go:build !unix

package node

import "net"

func newListenConfig() *net.ListenConfig {
	return &net.ListenConfig{KeepAlive: TCPKeepAlive}
}
