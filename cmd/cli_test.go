package cmd

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/fzft/go-openset/db"
	"github.com/fzft/go-openset/node"
	"github.com/fzft/go-openset/resp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCliFormatReplyTTY(t *testing.T) {
	tests := []struct {
		name  string
		reply resp.Node
		want  string
	}{
		{"integer", resp.Integer{Value: 3}, "(integer) 3\n"},
		{"status", resp.SimpleString{Value: "OK"}, "OK\n"},
		{"error", resp.Error{Message: "ERR boom"}, "(error) ERR boom\n"},
		{"bulk", resp.BlobString{Value: "a \"b\""}, "\"a \\\"b\\\"\"\n"},
		{"nil", resp.Null{}, "(nil)\n"},
		{"empty", resp.Array{}, "(empty array)\n"},
		{"array", resp.Array{Elements: []resp.Node{
			resp.BlobString{Value: "x"},
			resp.Integer{Value: 1},
		}}, "1) \"x\"\n2) (integer) 1\n"},
		{"nested", resp.Array{Elements: []resp.Node{
			resp.BlobString{Value: "a"},
			resp.Array{Elements: []resp.Node{resp.BlobString{Value: "b"}, resp.BlobString{Value: "c"}}},
		}}, "1) \"a\"\n2) 1) \"b\"\n   2) \"c\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cliFormatReplyTTY(tt.reply, ""))
		})
	}
}

func TestCliFormatReplyTTYWideIndex(t *testing.T) {
	elements := make([]resp.Node, 10)
	for i := range elements {
		elements[i] = resp.Integer{Value: i}
	}
	out := cliFormatReplyTTY(resp.Array{Elements: elements}, "")
	assert.Contains(t, out, " 1) (integer) 0\n")
	assert.Contains(t, out, "10) (integer) 9\n")
}

func TestCliFormatReplyRaw(t *testing.T) {
	assert.Equal(t, "3", cliFormatReplyRaw(resp.Integer{Value: 3}))
	assert.Equal(t, "ERR boom", cliFormatReplyRaw(resp.Error{Message: "ERR boom"}))
	assert.Equal(t, "", cliFormatReplyRaw(resp.Null{}))
	assert.Equal(t, "a\nb", cliFormatReplyRaw(resp.Array{Elements: []resp.Node{
		resp.BlobString{Value: "a"}, resp.BlobString{Value: "b"},
	}}))
}

func TestGetDotfilePath(t *testing.T) {
	t.Setenv(CliHisFileEnv, "/tmp/custom_history")
	assert.Equal(t, "/tmp/custom_history", getDotfilePath(CliHisFileEnv, CliHisFileDefault))

	t.Setenv(CliHisFileEnv, "/dev/null")
	assert.Equal(t, "", getDotfilePath(CliHisFileEnv, CliHisFileDefault))

	home := t.TempDir()
	t.Setenv(CliHisFileEnv, "")
	t.Setenv("HOME", home)
	assert.Equal(t, filepath.Join(home, CliHisFileDefault), getDotfilePath(CliHisFileEnv, CliHisFileDefault))
}

func TestHelpEntries(t *testing.T) {
	entries := buildHelpEntries(node.CommandTable())

	set := matchHelp(entries, "@set")
	require.NotEmpty(t, set)
	for _, e := range set {
		assert.Equal(t, "set", e.docs.group)
	}

	sadd := matchHelp(entries, "sadd")
	require.Len(t, sadd, 1)
	assert.Equal(t, "key member [member ...]", sadd[0].docs.params)

	assert.Empty(t, matchHelp(entries, "nope"))
	assert.Contains(t, completionWords(entries), "SMEMBERS")
	assert.Contains(t, completionWords(entries), "HELP")
}

// startServer runs a server on a loopback port and returns its port.
func startServer(t *testing.T) int {
	t.Helper()
	rdb, err := db.New(0, db.Options{})
	require.NoError(t, err)
	s := node.NewServer(node.Options{Addr: "127.0.0.1:0"}, rdb)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-s.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}
	require.NoError(t, s.StartErr())
	return s.Addr().(*net.TCPAddr).Port
}

func newTestCli(port int, raw bool, args ...string) (*RedisCli, *bytes.Buffer, *bytes.Buffer) {
	cli := NewRedisCli(Options{
		Host:    "127.0.0.1",
		Port:    port,
		Raw:     raw,
		NoRaw:   !raw,
		Timeout: 5 * time.Second,
		Version: "test",
		Args:    args,
	})
	var out, errOut bytes.Buffer
	cli.out = &out
	cli.errOut = &errOut
	return cli, &out, &errOut
}

func TestCliOneShot(t *testing.T) {
	port := startServer(t)
	ctx := context.Background()

	cli, out, _ := newTestCli(port, true, "SADD", "k", "a", "b")
	require.NoError(t, cli.Run(ctx))
	assert.Equal(t, "2\n", out.String())

	cli, out, _ = newTestCli(port, false, "SMEMBERS", "k")
	require.NoError(t, cli.Run(ctx))
	assert.Equal(t, "1) \"a\"\n2) \"b\"\n", out.String())

	cli, out, _ = newTestCli(port, true, "SISMEMBER", "k", "a")
	cli.config.repeat = 3
	require.NoError(t, cli.Run(ctx))
	assert.Equal(t, "1\n1\n1\n", out.String())
}

func TestCliConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	cli, _, errOut := newTestCli(port, true, "PING")
	assert.Error(t, cli.Run(context.Background()))
	assert.Contains(t, errOut.String(), "Could not connect to openset at 127.0.0.1:"+strconv.Itoa(port))
}

func TestCliProcessLine(t *testing.T) {
	port := startServer(t)
	ctx := context.Background()
	cli, out, _ := newTestCli(port, false)
	require.NoError(t, cli.connect(ctx, 0))
	defer cli.disconnect()

	assert.False(t, cli.processLine(ctx, `SADD k "two words"`))
	assert.Equal(t, "(integer) 1\n", out.String())
	out.Reset()

	assert.False(t, cli.processLine(ctx, `2 SCARD k`))
	assert.Equal(t, "(integer) 1\n(integer) 1\n", out.String())
	out.Reset()

	assert.False(t, cli.processLine(ctx, `SADD "open`))
	assert.Equal(t, "Invalid argument(s)\n", out.String())
	out.Reset()

	assert.False(t, cli.processLine(ctx, `-1 PING`))
	assert.Equal(t, "Invalid openset-cli repeat command option value.\n", out.String())
	out.Reset()

	assert.False(t, cli.processLine(ctx, `help SEQUAL`))
	assert.Contains(t, out.String(), "SEQUAL key1 key2")
	assert.Contains(t, out.String(), "group: set")
	out.Reset()

	assert.False(t, cli.processLine(ctx, `help`))
	assert.Contains(t, out.String(), "openset-cli test")
	out.Reset()

	assert.True(t, cli.processLine(ctx, `exit`))
	assert.True(t, cli.processLine(ctx, `QUIT`))
}
