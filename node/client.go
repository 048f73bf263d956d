package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/fzft/go-openset/db"
	"github.com/fzft/go-openset/log"
	"github.com/fzft/go-openset/resp"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ClientFlags uint64

const (
	ClientCloseAfterReply ClientFlags = 1 << iota // Close after writing entire reply.
	ClientProtocolError                           // The request stream could not be parsed.
	ClientExecutingCommand
)

type Client struct {
	id         string // uuid, unique for the process lifetime
	flags      ClientFlags
	connection net.Conn
	server     *Server
	db         *db.RedisDb
	reader     *resp.Reader
	writer     *resp.Writer

	argv    []string      // arguments of the command being processed
	cmd     *RedisCommand // command currently being processed
	lastCmd *RedisCommand
	failed  bool // an error reply was sent for the current command

	created time.Time
}

func NewClient(s *Server, connection net.Conn) *Client {
	return &Client{
		id:         uuid.NewString(),
		connection: connection,
		server:     s,
		db:         s.db,
		reader:     resp.NewReader(connection),
		writer:     resp.NewWriter(connection),
		created:    time.Now(),
	}
}

func (c *Client) GetID() string {
	return c.id
}

func (c *Client) RemoteAddr() string {
	if addr := c.connection.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Close closes the underlying connection, unblocking a pending read.
func (c *Client) Close() error {
	return c.connection.Close()
}

// serve reads and executes commands until the peer goes away, the idle
// timeout fires, a protocol error occurs or ctx is cancelled. Replies to
// pipelined requests are flushed once the read buffer is drained.
func (c *Client) serve(ctx context.Context) error {
	idle := c.server.opts.IdleTimeout
	for {
		if ctx.Err() != nil {
			return nil
		}
		if idle > 0 {
			c.connection.SetReadDeadline(time.Now().Add(idle))
		}

		argv, err := c.reader.ReadCommand()
		if err != nil {
			return c.readError(err)
		}
		if len(argv) == 0 {
			continue
		}

		c.argv = argv
		c.processCommandAndResetClient()

		if c.flags&ClientCloseAfterReply != 0 {
			return c.writer.Flush()
		}
		if c.reader.Buffered() == 0 {
			if err := c.writer.Flush(); err != nil {
				return err
			}
		}
	}
}

func (c *Client) readError(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		return nil
	case errors.Is(err, resp.ErrProtocol):
		c.flags |= ClientProtocolError
		log.Logger.Debug("protocol error from client",
			zap.String("client", c.id), zap.String("addr", c.RemoteAddr()), zap.Error(err))
		c.AddReplyError(err.Error())
		return c.writer.Flush()
	case errors.As(err, &netErr) && netErr.Timeout():
		log.Logger.Debug("closing idle client", zap.String("client", c.id))
		return nil
	default:
		return err
	}
}

func (c *Client) processCommandAndResetClient() {
	c.flags |= ClientExecutingCommand
	c.processCommand()
	c.resetClient()
}

// resetClient prepares the client to process the next command
func (c *Client) resetClient() {
	c.flags &= ^ClientExecutingCommand
	c.lastCmd = c.cmd
	c.cmd = nil
	c.argv = nil
	c.failed = false
}

// processCommand is called once a whole command is read into c.argv.
func (c *Client) processCommand() {
	// Handle possible security attacks.
	if strings.EqualFold(c.argv[0], "host:") || strings.EqualFold(c.argv[0], "post") {
		log.Logger.Warn("possible cross protocol scripting attack detected, connection aborted",
			zap.String("addr", c.RemoteAddr()))
		c.flags |= ClientCloseAfterReply
		return
	}

	// Now lookup the command and check ASAP about trivial error conditions
	// such as wrong arity, bad command name and so forth.
	c.cmd = c.server.lookupCommand(c.argv[0])
	if msg, ok := c.commandCheckExistence(); !ok {
		c.rejectCommand(msg)
		return
	}
	if msg, ok := c.commandCheckArity(); !ok {
		c.rejectCommand(msg)
		return
	}

	c.call()
}

// call executes the command and records its outcome.
func (c *Client) call() {
	start := time.Now()
	c.cmd.Proc(c)
	elapsed := time.Since(start)

	result := "ok"
	if c.failed {
		result = "error"
	}
	c.server.stats.commands.Add(1)
	c.server.metrics.ObserveCommand(c.cmd.Fullname(), result, elapsed)
	if log.Logger.Core().Enabled(zap.DebugLevel) {
		log.Logger.Debug("command executed",
			zap.String("client", c.id),
			zap.String("command", c.cmd.Fullname()),
			zap.Int("argc", len(c.argv)),
			zap.Duration("duration", elapsed),
			zap.String("result", result))
	}
}

func (c *Client) rejectCommand(msg string) {
	c.server.stats.rejectedCommands.Add(1)
	name := "unknown"
	if c.cmd != nil {
		name = c.cmd.Fullname()
	}
	c.server.metrics.ObserveCommand(name, "rejected", 0)
	c.AddReplyError(msg)
}

// commandCheckExistence returns the error message for an unknown command.
func (c *Client) commandCheckExistence() (string, bool) {
	if c.cmd != nil {
		return "", true
	}

	var args strings.Builder
	limit := 128
	for _, arg := range c.argv[1:] {
		remaining := limit - args.Len()
		if remaining <= 0 {
			break
		}
		fmt.Fprintf(&args, "'%.*s' ", remaining, arg)
	}
	msg := fmt.Sprintf("unknown command '%.128s', with args beginning with: %s", c.argv[0], args.String())
	return msg, false
}

// commandCheckArity checks if c.argv is valid for c.cmd.
func (c *Client) commandCheckArity() (string, bool) {
	if !c.cmd.CheckArity(len(c.argv)) {
		return fmt.Sprintf("wrong number of arguments for '%s' command", c.cmd.Fullname()), false
	}
	return "", true
}

/* -----------------------------------------------------------------------------
 * Low level functions to add more data to output buffers.
 * -------------------------------------------------------------------------- */

// AddReply appends already encoded protocol, usually one of the Shared replies.
func (c *Client) AddReply(proto []byte) {
	if len(proto) > 0 && proto[0] == resp.TypeError {
		c.afterErrorReply()
	}
	c.writer.WriteRaw(proto)
}

func (c *Client) AddReplyStatus(s string) {
	c.writer.WriteSimple(s)
}

func (c *Client) AddReplyBulk(s string) {
	c.writer.WriteBulk(s)
}

func (c *Client) AddReplyNull() {
	c.writer.WriteNull()
}

func (c *Client) AddReplyLongLong(ll int64) {
	c.writer.WriteInteger(ll)
}

func (c *Client) AddReplyBool(b bool) {
	if b {
		c.AddReply(SharedCOne)
	} else {
		c.AddReply(SharedCZero)
	}
}

func (c *Client) AddReplyArrayLen(n int) {
	c.writer.WriteArrayLen(n)
}

func (c *Client) AddReplyBulks(values []string) {
	c.writer.WriteBulks(values)
}

// AddReplyError sends an error with the generic ERR code.
func (c *Client) AddReplyError(err string) {
	c.addReplyErrorRaw("ERR " + err)
}

func (c *Client) AddReplyErrorFormat(format string, a ...any) {
	c.AddReplyError(fmt.Sprintf(format, a...))
}

// addReplyErrorRaw sends err as is, it must start with an error code.
func (c *Client) addReplyErrorRaw(err string) {
	c.afterErrorReply()
	c.writer.WriteError(err)
}

func (c *Client) afterErrorReply() {
	c.failed = true
}
