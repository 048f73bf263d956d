package resp

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// Writer encodes RESP2 replies. Nothing reaches the underlying writer until
// Flush is called.
type Writer struct {
	wr      *bufio.Writer
	scratch []byte
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{wr: bufio.NewWriterSize(w, 16*1024)}
}

func (w *Writer) writeLine(prefix byte, s string) error {
	w.wr.WriteByte(prefix)
	w.wr.WriteString(s)
	_, err := w.wr.WriteString(CRLF)
	return err
}

func (w *Writer) writeNumber(prefix byte, n int64) error {
	w.scratch = strconv.AppendInt(w.scratch[:0], n, 10)
	w.wr.WriteByte(prefix)
	w.wr.Write(w.scratch)
	_, err := w.wr.WriteString(CRLF)
	return err
}

// WriteSimple writes a status reply such as +OK.
func (w *Writer) WriteSimple(s string) error {
	return w.writeLine(TypeSimple, sanitize(s))
}

// WriteError writes an error reply. msg should start with an error code,
// for example "ERR syntax error".
func (w *Writer) WriteError(msg string) error {
	if msg == "" {
		msg = "ERR"
	}
	return w.writeLine(TypeError, sanitize(msg))
}

func (w *Writer) WriteInteger(n int64) error {
	return w.writeNumber(TypeInteger, n)
}

func (w *Writer) WriteBulk(s string) error {
	w.writeNumber(TypeBlob, int64(len(s)))
	w.wr.WriteString(s)
	_, err := w.wr.WriteString(CRLF)
	return err
}

// WriteNull writes the RESP2 null bulk string.
func (w *Writer) WriteNull() error {
	_, err := w.wr.WriteString("$-1\r\n")
	return err
}

func (w *Writer) WriteArrayLen(n int) error {
	return w.writeNumber(TypeArray, int64(n))
}

// WriteBulks writes an array of bulk strings.
func (w *Writer) WriteBulks(values []string) error {
	w.WriteArrayLen(len(values))
	for _, v := range values {
		if err := w.WriteBulk(v); err != nil {
			return err
		}
	}
	return nil
}

// WriteRaw copies already encoded protocol.
func (w *Writer) WriteRaw(p []byte) error {
	_, err := w.wr.Write(p)
	return err
}

func (w *Writer) Buffered() int {
	return w.wr.Buffered()
}

func (w *Writer) Flush() error {
	return w.wr.Flush()
}

// sanitize keeps line based replies on one line.
func sanitize(s string) string {
	if strings.ContainsAny(s, "\r\n") {
		return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
	}
	return s
}
