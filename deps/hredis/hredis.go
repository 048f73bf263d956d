package hredis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/fzft/go-openset/resp"
)

const KeepAliveInterval = 15 * time.Second

var ErrClosed = errors.New("connection closed")

// Context is a blocking connection to a server. It is not safe for
// concurrent use.
type Context struct {
	Addr    string
	Timeout time.Duration // per request deadline, 0 waits forever

	conn   net.Conn
	reader *resp.Reader
}

// Dial connects to addr with TCP keepalive enabled. timeout bounds the
// connect as well as every later request.
func Dial(ctx context.Context, addr string, timeout time.Duration) (*Context, error) {
	dialer := net.Dialer{Timeout: timeout, KeepAlive: KeepAliveInterval}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Context{
		Addr:    addr,
		Timeout: timeout,
		conn:    conn,
		reader:  resp.NewReader(conn),
	}, nil
}

// Do sends one command and blocks for its reply. Error replies from the
// server come back as resp.Error nodes; the returned error is reserved for
// I/O and protocol failures, after which the connection is closed.
func (c *Context) Do(args ...string) (resp.Node, error) {
	if c.conn == nil {
		return nil, ErrClosed
	}
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}

	if c.Timeout > 0 {
		c.conn.SetDeadline(time.Now().Add(c.Timeout))
	}
	if _, err := c.conn.Write(resp.ConvertToRESP(args[0], args[1:]...)); err != nil {
		c.Close()
		return nil, err
	}

	reply, err := c.reader.ReadNode()
	if err != nil {
		c.Close()
		return nil, err
	}
	return reply, nil
}

// Commandf formats a command with %s and %d verbs and sends it.
func (c *Context) Commandf(format string, args ...interface{}) (resp.Node, error) {
	argv, err := redisFormatCommand(format, args...)
	if err != nil {
		return nil, err
	}
	return c.Do(argv...)
}

func (c *Context) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// redisFormatCommand splits format on spaces into arguments, substituting
// %s with a string, %d with an integer and %% with a literal percent sign.
func redisFormatCommand(format string, args ...interface{}) ([]string, error) {

	var curArg string
	var argv []string

	argIndex := 0 // To track the current argument in args
	touched := false

	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			if c == ' ' {
				if touched {
					argv = append(argv, curArg)
					curArg = ""
					touched = false
				}
			} else {
				curArg += string(c)
				touched = true
			}
			continue
		}

		i++
		if i >= len(format) {
			return nil, fmt.Errorf("Format string ended unexpectedly")
		}

		switch format[i] {
		case '%':
			curArg += "%"
		case 's':
			if argIndex >= len(args) {
				return nil, fmt.Errorf("Not enough arguments")
			}
			str, ok := args[argIndex].(string)
			if !ok {
				return nil, fmt.Errorf("Expected a string argument")
			}
			curArg += str
			argIndex++

		case 'd':
			if argIndex >= len(args) {
				return nil, fmt.Errorf("Not enough arguments")
			}
			switch num := args[argIndex].(type) {
			case int:
				curArg += strconv.Itoa(num)
			case int64:
				curArg += strconv.FormatInt(num, 10)
			default:
				return nil, fmt.Errorf("Expected an integer argument")
			}
			argIndex++

		default:
			return nil, fmt.Errorf("Unsupported format specifier: %c", format[i])
		}

		touched = true
	}

	if touched {
		argv = append(argv, curArg)
	}

	return argv, nil
}
