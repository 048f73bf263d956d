package node

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/fzft/go-openset/db"
	"github.com/fzft/go-openset/resp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConn is an in-memory net.Conn capturing everything written to it.
type TestConn struct {
	Input  bytes.Buffer
	Buffer bytes.Buffer // buffer to capture output
}

func (t *TestConn) Read(b []byte) (int, error)       { return t.Input.Read(b) }
func (t *TestConn) Write(b []byte) (int, error)      { return t.Buffer.Write(b) }
func (t *TestConn) Close() error                     { return nil }
func (t *TestConn) LocalAddr() net.Addr              { return &net.TCPAddr{} }
func (t *TestConn) RemoteAddr() net.Addr             { return &net.TCPAddr{} }
func (t *TestConn) SetDeadline(time.Time) error      { return nil }
func (t *TestConn) SetReadDeadline(time.Time) error  { return nil }
func (t *TestConn) SetWriteDeadline(time.Time) error { return nil }

func newTestServer(t *testing.T, opts db.Options) *Server {
	t.Helper()
	rdb, err := db.New(0, opts)
	require.NoError(t, err)
	return NewServer(Options{Addr: "127.0.0.1:0", Version: "test"}, rdb)
}

func newTestClient(t *testing.T) (*Client, *TestConn) {
	t.Helper()
	s := newTestServer(t, db.Options{DefaultCapacity: 4, MaxCapacity: 64})
	conn := &TestConn{}
	return NewClient(s, conn), conn
}

// exec runs one command through the client and decodes its reply.
func exec(t *testing.T, c *Client, conn *TestConn, args ...string) resp.Node {
	t.Helper()
	c.argv = args
	c.processCommandAndResetClient()
	require.NoError(t, c.writer.Flush())

	node, rest, err := resp.Parse(conn.Buffer.Bytes())
	require.NoError(t, err, "reply %q", conn.Buffer.String())
	require.Empty(t, rest)
	conn.Buffer.Reset()
	return node
}

func integer(n int) resp.Node { return resp.Integer{Value: n} }

func bulks(values ...string) resp.Node {
	elements := make([]resp.Node, len(values))
	for i, v := range values {
		elements[i] = resp.BlobString{Value: v}
	}
	return resp.Array{Elements: elements}
}

func TestScreateCommand(t *testing.T) {
	c, conn := newTestClient(t)

	assert.Equal(t, resp.SimpleString{Value: "OK"}, exec(t, c, conn, "SCREATE", "s", "3"))
	assert.Equal(t, integer(3), exec(t, c, conn, "SCAPACITY", "s"))
	assert.Equal(t, resp.Error{Message: "BUSYKEY Target key name already exists."}, exec(t, c, conn, "SCREATE", "s", "3"))
	assert.Equal(t, resp.Error{Message: "ERR value is not an integer or out of range"}, exec(t, c, conn, "SCREATE", "t", "x"))
	assert.Equal(t, resp.Error{Message: "ERR capacity must be between 1 and 64"}, exec(t, c, conn, "SCREATE", "t", "0"))
	assert.Equal(t, resp.Error{Message: "ERR capacity must be between 1 and 64"}, exec(t, c, conn, "SCREATE", "t", "65"))
}

func TestSaddFullSet(t *testing.T) {
	c, conn := newTestClient(t)

	exec(t, c, conn, "SCREATE", "s", "2")
	assert.Equal(t, integer(2), exec(t, c, conn, "SADD", "s", "a", "b", "a", "c"))
	assert.Equal(t, integer(2), exec(t, c, conn, "SCARD", "s"))
	assert.Equal(t, integer(0), exec(t, c, conn, "SADD", "s", "c"))

	assert.Equal(t, integer(1), exec(t, c, conn, "SREM", "s", "a", "zz"))
	assert.Equal(t, integer(1), exec(t, c, conn, "SADD", "s", "c"))
	assert.Equal(t, bulks("b", "c"), exec(t, c, conn, "SMEMBERS", "s"))
}

func TestSaddCreatesDefaultCapacity(t *testing.T) {
	c, conn := newTestClient(t)

	assert.Equal(t, integer(1), exec(t, c, conn, "sadd", "auto", "x"))
	assert.Equal(t, integer(4), exec(t, c, conn, "SCAPACITY", "auto"))
}

func TestMembershipCommands(t *testing.T) {
	c, conn := newTestClient(t)
	exec(t, c, conn, "SADD", "s", "a", "b")

	assert.Equal(t, integer(1), exec(t, c, conn, "SISMEMBER", "s", "a"))
	assert.Equal(t, integer(0), exec(t, c, conn, "SISMEMBER", "s", "z"))
	assert.Equal(t, integer(0), exec(t, c, conn, "SISMEMBER", "missing", "a"))

	assert.Equal(t, resp.Array{Elements: []resp.Node{integer(1), integer(0), integer(1)}},
		exec(t, c, conn, "SMISMEMBER", "s", "a", "z", "b"))
	assert.Equal(t, resp.Array{Elements: []resp.Node{integer(0), integer(0)}},
		exec(t, c, conn, "SMISMEMBER", "missing", "a", "b"))
}

func TestMissingKeyReplies(t *testing.T) {
	c, conn := newTestClient(t)

	assert.Equal(t, integer(0), exec(t, c, conn, "SCARD", "missing"))
	assert.Equal(t, integer(0), exec(t, c, conn, "SCAPACITY", "missing"))
	assert.Equal(t, integer(0), exec(t, c, conn, "SREM", "missing", "a"))
	assert.Equal(t, bulks(), exec(t, c, conn, "SMEMBERS", "missing"))
	assert.Equal(t, resp.Null{}, exec(t, c, conn, "SPOP", "missing"))
	assert.Equal(t, resp.Null{}, exec(t, c, conn, "SRANDMEMBER", "missing"))
	assert.Equal(t, bulks(), exec(t, c, conn, "SRANDMEMBER", "missing", "3"))
	assert.Equal(t, integer(db.EmptySetHash), exec(t, c, conn, "SHASH", "missing"))
}

func TestSrandmemberAndSpop(t *testing.T) {
	c, conn := newTestClient(t)
	exec(t, c, conn, "SADD", "s", "a", "b", "c")

	one, ok := exec(t, c, conn, "SRANDMEMBER", "s").(resp.BlobString)
	require.True(t, ok)
	assert.Contains(t, []string{"a", "b", "c"}, one.Value)

	distinct := exec(t, c, conn, "SRANDMEMBER", "s", "10").(resp.Array)
	assert.Len(t, distinct.Elements, 3)
	assert.ElementsMatch(t, bulks("a", "b", "c").(resp.Array).Elements, distinct.Elements)

	repeated := exec(t, c, conn, "SRANDMEMBER", "s", "-7").(resp.Array)
	assert.Len(t, repeated.Elements, 7)

	assert.Equal(t, bulks(), exec(t, c, conn, "SRANDMEMBER", "s", "0"))
	assert.Equal(t, resp.Error{Message: "ERR value is not an integer or out of range"}, exec(t, c, conn, "SRANDMEMBER", "s", "x"))
	assert.Equal(t, resp.Error{Message: "ERR syntax error"}, exec(t, c, conn, "SRANDMEMBER", "s", "1", "2"))

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		popped, ok := exec(t, c, conn, "SPOP", "s").(resp.BlobString)
		require.True(t, ok)
		seen[popped.Value] = true
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, resp.Null{}, exec(t, c, conn, "SPOP", "s"))
	assert.Equal(t, integer(0), exec(t, c, conn, "SCARD", "s"))
}

func TestSequalAndShash(t *testing.T) {
	c, conn := newTestClient(t)

	exec(t, c, conn, "SCREATE", "small", "3")
	exec(t, c, conn, "SCREATE", "big", "16")
	exec(t, c, conn, "SADD", "small", "x", "y", "z")
	exec(t, c, conn, "SADD", "big", "z", "y", "x")

	assert.Equal(t, integer(1), exec(t, c, conn, "SEQUAL", "small", "big"))
	assert.Equal(t, exec(t, c, conn, "SHASH", "small"), exec(t, c, conn, "SHASH", "big"))

	exec(t, c, conn, "SREM", "big", "x")
	assert.Equal(t, integer(0), exec(t, c, conn, "SEQUAL", "small", "big"))

	exec(t, c, conn, "SCREATE", "empty", "2")
	assert.Equal(t, integer(1), exec(t, c, conn, "SEQUAL", "empty", "missing"))
	assert.Equal(t, integer(1), exec(t, c, conn, "SEQUAL", "missing", "empty"))
	assert.Equal(t, integer(1), exec(t, c, conn, "SEQUAL", "missing", "other"))
	assert.Equal(t, integer(0), exec(t, c, conn, "SEQUAL", "small", "missing"))
	assert.Equal(t, integer(db.EmptySetHash), exec(t, c, conn, "SHASH", "empty"))
}

func TestCommandChecks(t *testing.T) {
	c, conn := newTestClient(t)

	assert.Equal(t, resp.Error{Message: "ERR unknown command 'NOPE', with args beginning with: 'a' 'b' "},
		exec(t, c, conn, "NOPE", "a", "b"))
	assert.Equal(t, resp.Error{Message: "ERR wrong number of arguments for 'sadd' command"},
		exec(t, c, conn, "SADD", "s"))
	assert.Equal(t, resp.Error{Message: "ERR wrong number of arguments for 'scard' command"},
		exec(t, c, conn, "SCARD", "a", "b"))
	assert.Equal(t, int64(3), c.server.stats.rejectedCommands.Load())
}

func TestGenericCommands(t *testing.T) {
	c, conn := newTestClient(t)

	assert.Equal(t, resp.SimpleString{Value: "PONG"}, exec(t, c, conn, "PING"))
	assert.Equal(t, resp.BlobString{Value: "hi"}, exec(t, c, conn, "PING", "hi"))
	assert.Equal(t, resp.BlobString{Value: "a b"}, exec(t, c, conn, "ECHO", "a b"))

	exec(t, c, conn, "SADD", "user:1", "a")
	exec(t, c, conn, "SADD", "user:2", "a")
	exec(t, c, conn, "SADD", "team:1", "a")

	assert.Equal(t, integer(3), exec(t, c, conn, "DBSIZE"))
	assert.Equal(t, bulks("user:1", "user:2"), exec(t, c, conn, "KEYS", "user:*"))
	assert.Equal(t, integer(2), exec(t, c, conn, "EXISTS", "user:1", "team:1", "nope"))
	assert.Equal(t, integer(1), exec(t, c, conn, "DEL", "team:1", "nope"))
	exec(t, c, conn, "SADD", "user/3", "a")
	assert.Equal(t, bulks("user/3", "user:1", "user:2"), exec(t, c, conn, "KEYS", "user*"))
	assert.Equal(t, bulks("user/3"), exec(t, c, conn, "KEYS", "user/?"))

	assert.Equal(t, resp.SimpleString{Value: "OK"}, exec(t, c, conn, "FLUSHALL"))
	assert.Equal(t, integer(0), exec(t, c, conn, "DBSIZE"))
}

func TestInfoCommand(t *testing.T) {
	c, conn := newTestClient(t)
	exec(t, c, conn, "SADD", "k", "v")

	info := exec(t, c, conn, "INFO").(resp.BlobString).Value
	assert.Contains(t, info, "# Server\r\nopenset_version:test\r\n")
	assert.Contains(t, info, "# Clients\r\n")
	assert.Contains(t, info, "# Memory\r\nused_memory:")
	assert.Contains(t, info, "total_commands_processed:1\r\n")
	assert.Contains(t, info, "db0:keys=1,default_capacity=4,max_capacity=64\r\n")

	keyspace := exec(t, c, conn, "info", "KEYSPACE").(resp.BlobString).Value
	assert.Equal(t, "# Keyspace\r\ndb0:keys=1,default_capacity=4,max_capacity=64\r\n", keyspace)
	assert.Equal(t, resp.BlobString{Value: ""}, exec(t, c, conn, "INFO", "nothing"))
}

func TestBytesToHuman(t *testing.T) {
	assert.Equal(t, "512B", bytesToHuman(512))
	assert.Equal(t, "1.50K", bytesToHuman(1536))
	assert.Equal(t, "2.00M", bytesToHuman(2*1024*1024))
	assert.Equal(t, "1.00G", bytesToHuman(1<<30))
}

func TestQuitAndSecurityAttack(t *testing.T) {
	c, conn := newTestClient(t)

	assert.Equal(t, resp.SimpleString{Value: "OK"}, exec(t, c, conn, "QUIT"))
	assert.NotZero(t, c.flags&ClientCloseAfterReply)

	c, conn = newTestClient(t)
	c.argv = []string{"POST", "/", "HTTP/1.1"}
	c.processCommandAndResetClient()
	require.NoError(t, c.writer.Flush())
	assert.Zero(t, conn.Buffer.Len())
	assert.NotZero(t, c.flags&ClientCloseAfterReply)
}

func TestClientServePipeline(t *testing.T) {
	c, conn := newTestClient(t)
	conn.Input.WriteString("PING\r\n")
	conn.Input.Write(resp.ConvertToRESP("SADD", "s", "a", "b"))
	conn.Input.WriteString("\r\nSCARD s\r\n")

	require.NoError(t, c.serve(t.Context()))
	assert.Equal(t, "+PONG\r\n:2\r\n:2\r\n", conn.Buffer.String())
}

func TestClientServeProtocolError(t *testing.T) {
	c, conn := newTestClient(t)
	conn.Input.WriteString("PING\r\n*1\r\n:1\r\nPING\r\n")

	require.NoError(t, c.serve(t.Context()))
	assert.Equal(t, "+PONG\r\n-ERR Protocol error: expected '$', got ':'\r\n", conn.Buffer.String())
	assert.NotZero(t, c.flags&ClientProtocolError)
}
