package resp

import "errors"

const CRLF string = "\r\n"

// Types equivalent to RESP version 2
const (
	TypeArray   byte = '*'
	TypeBlob    byte = '$'
	TypeSimple  byte = '+'
	TypeError   byte = '-'
	TypeInteger byte = ':'
)

// Protocol limits, the same defaults the redis server ships with.
const (
	MaxInlineSize   = 1024 * 64
	MaxMultiBulkLen = 1024 * 1024
	MaxBulkLen      = 512 * 1024 * 1024
)

var (
	// ErrProtocol is wrapped by every parse failure. The wrapped message is
	// what the server replies with before closing the connection.
	ErrProtocol = errors.New("Protocol error")

	// ErrIncomplete is returned by Parse when the buffer ends mid value.
	ErrIncomplete = errors.New("incomplete RESP value")
)

type Node interface {
}

type BlobString struct {
	Value string
}

type SimpleString struct {
	Value string
}

type Error struct {
	Message string
}

type Integer struct {
	Value int
}

// Null is the RESP3 null as well as the RESP2 null bulk string and null array.
type Null struct {
}
