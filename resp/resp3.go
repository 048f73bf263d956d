package resp

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
)

// RESP3 is a RESP3 protocol parser and serializer.
// https://github.com/redis/redis-specifications/blob/master/protocol/RESP3.md

// Types introduced by RESP3
const (
	TypeNull      byte = '_'
	TypeDouble    byte = ','
	TypeBoolean   byte = '#'
	TypeBlobError byte = '!'
	TypeVerbatim  byte = '='
	TypeMap       byte = '%'
	TypeSet       byte = '~'
	TypeAttribute byte = '|'
	TypePush      byte = '>'
	TypeBignum    byte = '('
)

type Double struct {
	Value float64
}

type Boolean struct {
	Value bool
}

type BlobError struct {
	Message string
}

type VerbatimString struct {
	Format string
	Value  string
}

type BigNum struct {
	Value string
}

// Array represents an array in RESP
type Array struct {
	Elements []Node
}

// Map keys are restricted to scalar nodes so they stay comparable.
type Map struct {
	Elements map[Node]Node
}

type Set struct {
	Elements []Node
}

type Push struct {
	Elements []Node
}

// Parse decodes one value from the front of data and returns the unread
// remainder. A truncated value yields ErrIncomplete and data unchanged.
func Parse(data []byte) (Node, []byte, error) {
	src := bytes.NewReader(data)
	r := NewReader(src)
	node, err := r.ReadNode()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, data, ErrIncomplete
		}
		return nil, data, err
	}
	consumed := len(data) - src.Len() - r.rd.Buffered()
	return node, data[consumed:], nil
}

// ConvertToRESP encodes a command as a multibulk request.
func ConvertToRESP(command string, arguments ...string) []byte {
	var builder strings.Builder

	// Array with totalArgs elements, +1 for the command itself
	writeHeader(&builder, TypeArray, len(arguments)+1)

	writeBulk(&builder, command)
	for _, arg := range arguments {
		writeBulk(&builder, arg)
	}

	return []byte(builder.String())
}

func writeHeader(b *strings.Builder, prefix byte, n int) {
	b.WriteByte(prefix)
	b.WriteString(strconv.Itoa(n))
	b.WriteString(CRLF)
}

func writeBulk(b *strings.Builder, s string) {
	writeHeader(b, TypeBlob, len(s))
	b.WriteString(s)
	b.WriteString(CRLF)
}

// hashableNode reports whether a node can be used as a Map key.
func hashableNode(n Node) bool {
	switch n.(type) {
	case Array, Map, Set, Push:
		return false
	}
	return true
}
