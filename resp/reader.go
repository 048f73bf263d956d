package resp

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// Reader decodes RESP values and client requests from a stream.
type Reader struct {
	rd *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{rd: bufio.NewReaderSize(r, 16*1024)}
}

// readLine returns the next line without its terminator. A bare \n is
// accepted so inline requests typed into telnet work.
func (r *Reader) readLine() ([]byte, error) {
	var line []byte
	for {
		frag, err := r.rd.ReadSlice('\n')
		if err == nil {
			line = append(line, frag...)
			break
		}
		if err != bufio.ErrBufferFull {
			if err == io.EOF && len(line)+len(frag) > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		line = append(line, frag...)
		if len(line) > MaxInlineSize {
			return nil, fmt.Errorf("%w: too big inline request", ErrProtocol)
		}
	}

	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, nil
}

func parseLength(b []byte, max int) (int, error) {
	n, err := strconv.Atoi(string(b))
	if err != nil || n < -1 || n > max {
		return 0, fmt.Errorf("%w: invalid length %q", ErrProtocol, b)
	}
	return n, nil
}

// maxBulkPrealloc bounds the buffer allocated from a declared bulk length.
// Longer payloads grow the buffer as bytes arrive.
const maxBulkPrealloc = 64 * 1024

// maxElementsPrealloc does the same for declared aggregate sizes.
const maxElementsPrealloc = 1024

// readBlob reads n bytes of payload followed by CRLF.
func (r *Reader) readBlob(n int) (string, error) {
	var payload []byte
	if n <= maxBulkPrealloc {
		payload = make([]byte, n)
		if _, err := io.ReadFull(r.rd, payload); err != nil {
			return "", unexpectedEOF(err)
		}
	} else {
		var buf bytes.Buffer
		buf.Grow(maxBulkPrealloc)
		if _, err := io.CopyN(&buf, r.rd, int64(n)); err != nil {
			return "", unexpectedEOF(err)
		}
		payload = buf.Bytes()
	}

	var crlf [2]byte
	if _, err := io.ReadFull(r.rd, crlf[:]); err != nil {
		return "", unexpectedEOF(err)
	}
	if crlf[0] != '\r' || crlf[1] != '\n' {
		return "", fmt.Errorf("%w: bulk string not terminated by CRLF", ErrProtocol)
	}
	return string(payload), nil
}

// unexpectedEOF reports a stream that ended inside a value.
func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

func (r *Reader) readElements(count int) ([]Node, error) {
	elements := make([]Node, 0, min(count, maxElementsPrealloc))
	for i := 0; i < count; i++ {
		node, err := r.ReadNode()
		if err != nil {
			return nil, err
		}
		elements = append(elements, node)
	}
	return elements, nil
}

func (r *Reader) readPairs(count int) (map[Node]Node, error) {
	m := make(map[Node]Node, min(count, maxElementsPrealloc))
	for i := 0; i < count; i++ {
		key, err := r.ReadNode()
		if err != nil {
			return nil, err
		}
		value, err := r.ReadNode()
		if err != nil {
			return nil, err
		}
		if !hashableNode(key) {
			return nil, fmt.Errorf("%w: aggregate map key", ErrProtocol)
		}
		m[key] = value
	}
	return m, nil
}

// ReadNode reads one reply value. Attributes are consumed and dropped, the
// value they annotate is returned.
func (r *Reader) ReadNode() (Node, error) {
	line, err := r.readLine()
	if err != nil {
		return nil, err
	}
	if len(line) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrProtocol)
	}

	payload := line[1:]
	switch line[0] {
	case TypeSimple:
		return SimpleString{Value: string(payload)}, nil

	case TypeError:
		return Error{Message: string(payload)}, nil

	case TypeInteger:
		num, err := strconv.Atoi(string(payload))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid integer %q", ErrProtocol, payload)
		}
		return Integer{Value: num}, nil

	case TypeBlob, TypeBlobError, TypeVerbatim:
		length, err := parseLength(payload, MaxBulkLen)
		if err != nil {
			return nil, err
		}
		if length == -1 {
			return Null{}, nil
		}
		value, err := r.readBlob(length)
		if err != nil {
			return nil, err
		}
		switch line[0] {
		case TypeBlobError:
			return BlobError{Message: value}, nil
		case TypeVerbatim:
			// three byte format, a colon, then the text
			if len(value) < 4 || value[3] != ':' {
				return nil, fmt.Errorf("%w: malformed verbatim string", ErrProtocol)
			}
			return VerbatimString{Format: value[:3], Value: value[4:]}, nil
		}
		return BlobString{Value: value}, nil

	case TypeArray, TypeSet, TypePush:
		count, err := parseLength(payload, MaxMultiBulkLen)
		if err != nil {
			return nil, err
		}
		if count == -1 {
			return Null{}, nil
		}
		elements, err := r.readElements(count)
		if err != nil {
			return nil, err
		}
		switch line[0] {
		case TypeSet:
			return Set{Elements: elements}, nil
		case TypePush:
			return Push{Elements: elements}, nil
		}
		return Array{Elements: elements}, nil

	case TypeMap, TypeAttribute:
		count, err := parseLength(payload, MaxMultiBulkLen)
		if err != nil || count < 0 {
			return nil, fmt.Errorf("%w: invalid map length %q", ErrProtocol, payload)
		}
		m, err := r.readPairs(count)
		if err != nil {
			return nil, err
		}
		if line[0] == TypeAttribute {
			return r.ReadNode()
		}
		return Map{Elements: m}, nil

	case TypeNull:
		return Null{}, nil

	case TypeBoolean:
		switch string(payload) {
		case "t":
			return Boolean{Value: true}, nil
		case "f":
			return Boolean{Value: false}, nil
		}
		return nil, fmt.Errorf("%w: invalid boolean %q", ErrProtocol, payload)

	case TypeDouble:
		value, err := strconv.ParseFloat(string(payload), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid double %q", ErrProtocol, payload)
		}
		return Double{Value: value}, nil

	case TypeBignum:
		return BigNum{Value: string(payload)}, nil

	default:
		return nil, fmt.Errorf("%w: unknown type byte %q", ErrProtocol, line[0])
	}
}

// ReadCommand reads one client request, either a multibulk array of bulk
// strings or an inline line of space separated, optionally quoted words.
// An empty request returns a nil slice.
func (r *Reader) ReadCommand() ([]string, error) {
	peek, err := r.rd.Peek(1)
	if err != nil {
		return nil, err
	}
	if peek[0] != TypeArray {
		line, err := r.readLine()
		if err != nil {
			return nil, err
		}
		args, err := SplitArgs(string(line))
		if err != nil {
			return nil, fmt.Errorf("%w: unbalanced quotes in request", ErrProtocol)
		}
		return args, nil
	}

	line, err := r.readLine()
	if err != nil {
		return nil, err
	}
	count, err := strconv.Atoi(string(line[1:]))
	if err != nil || count > MaxMultiBulkLen {
		return nil, fmt.Errorf("%w: invalid multibulk length", ErrProtocol)
	}
	if count <= 0 {
		return nil, nil
	}

	args := make([]string, 0, min(count, maxElementsPrealloc))
	for i := 0; i < count; i++ {
		line, err := r.readLine()
		if err != nil {
			return nil, err
		}
		if len(line) == 0 || line[0] != TypeBlob {
			got := byte(' ')
			if len(line) > 0 {
				got = line[0]
			}
			return nil, fmt.Errorf("%w: expected '$', got '%c'", ErrProtocol, got)
		}
		length, err := strconv.Atoi(string(line[1:]))
		if err != nil || length < 0 || length > MaxBulkLen {
			return nil, fmt.Errorf("%w: invalid bulk length", ErrProtocol)
		}
		arg, err := r.readBlob(length)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

// Buffered returns how many bytes are already read from the stream but not
// yet decoded. A pipelining client has more requests waiting when it is
// non zero.
func (r *Reader) Buffered() int {
	return r.rd.Buffered()
}
