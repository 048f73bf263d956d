package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fzft/go-openset/deps/hredis"
	"github.com/fzft/go-openset/deps/linenoise"
	"github.com/fzft/go-openset/log"
	"github.com/fzft/go-openset/node"
	"github.com/fzft/go-openset/resp"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
)

var (
	CliHisFileEnv     = "OPENSETCLI_HISTFILE"
	CliHisFileDefault = ".openset_history"
)

type CliConnectFlag int

const (
	CCForce CliConnectFlag = 1 << iota // Re-connect if already connected.
	CCQuiet                            // Don't show non-error messages.
)

type OutputMode uint8

const (
	OutputStandard OutputMode = iota
	OutputRaw
)

// Options are the command line settings of the CLI.
type Options struct {
	Host     string
	Port     int
	Raw      bool
	NoRaw    bool
	Repeat   int
	Interval time.Duration
	Timeout  time.Duration
	Version  string
	Args     []string // command to run once, empty starts the REPL
}

type CliConnInfo struct {
	hostIp   string
	hostPort int
}

type RedisCliCfg struct {
	connInfo    *CliConnInfo
	repeat      int
	interval    time.Duration
	timeout     time.Duration
	interactive bool
	prompt      string
	output      OutputMode
	version     string
}

type RedisCli struct {
	config      *RedisCliCfg
	context     *hredis.Context
	line        *linenoise.LineNoise
	out         io.Writer
	errOut      io.Writer
	args        []string
	helpEntries []CliHelpEntry
}

func NewRedisCli(opts Options) *RedisCli {
	config := &RedisCliCfg{
		connInfo: &CliConnInfo{hostIp: opts.Host, hostPort: opts.Port},
		repeat:   opts.Repeat,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		version:  opts.Version,
	}
	if config.connInfo.hostIp == "" {
		config.connInfo.hostIp = "127.0.0.1"
	}
	if config.connInfo.hostPort == 0 {
		config.connInfo.hostPort = 6380
	}
	if config.repeat <= 0 {
		config.repeat = 1
	}

	switch {
	case opts.Raw:
		config.output = OutputRaw
	case opts.NoRaw:
		config.output = OutputStandard
	case isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()):
		config.output = OutputStandard
	default:
		config.output = OutputRaw
	}

	cli := &RedisCli{
		config:      config,
		out:         os.Stdout,
		errOut:      os.Stderr,
		args:        opts.Args,
		helpEntries: buildHelpEntries(node.CommandTable()),
	}
	cli.cliRefreshPrompt()
	return cli
}

// Run executes the command given on the command line, or starts the
// interactive REPL when there is none.
func (cli *RedisCli) Run(ctx context.Context) error {
	defer cli.disconnect()

	if len(cli.args) > 0 {
		if err := cli.connect(ctx, 0); err != nil {
			return err
		}
		return cli.issueCommandRepeat(ctx, cli.args, cli.config.repeat)
	}

	// a failed connect still enters the REPL with a "not connected" prompt
	cli.connect(ctx, 0)
	return cli.repl(ctx)
}

func (cli *RedisCli) addr() string {
	return net.JoinHostPort(cli.config.connInfo.hostIp, strconv.Itoa(cli.config.connInfo.hostPort))
}

// connect to the server.
// flag: CCForce: The connection is performed even if there is already
// a connected socket. CCQuiet: Don't print errors if connection fails.
func (cli *RedisCli) connect(ctx context.Context, flag CliConnectFlag) error {
	if cli.context != nil && flag&CCForce == 0 {
		return nil
	}
	cli.disconnect()

	c, err := hredis.Dial(ctx, cli.addr(), cli.config.timeout)
	if err != nil {
		if flag&CCQuiet == 0 {
			fmt.Fprintf(cli.errOut, "Could not connect to openset at %s: %v\n", cli.addr(), err)
		}
		return err
	}
	log.Logger.Debug("connected", zap.String("addr", cli.addr()))
	cli.context = c
	return nil
}

func (cli *RedisCli) disconnect() {
	if cli.context != nil {
		cli.context.Close()
		cli.context = nil
	}
}

// issueCommandRepeat sends argv repeat times and prints every reply. A lost
// connection is retried once per command.
func (cli *RedisCli) issueCommandRepeat(ctx context.Context, argv []string, repeat int) error {
	for ; repeat > 0; repeat-- {
		if err := ctx.Err(); err != nil {
			return err
		}

		reply, err := cli.sendCommand(ctx, argv)
		if err != nil {
			fmt.Fprintf(cli.errOut, "Error: %v\n", err)
			if reconnectErr := cli.connect(ctx, CCForce); reconnectErr != nil {
				return err
			}
			if reply, err = cli.sendCommand(ctx, argv); err != nil {
				return err
			}
		}

		fmt.Fprint(cli.out, cli.formatReply(reply))

		if strings.EqualFold(argv[0], "quit") {
			cli.disconnect()
			return nil
		}
		if repeat > 1 && cli.config.interval > 0 {
			time.Sleep(cli.config.interval)
		}
	}
	return nil
}

func (cli *RedisCli) sendCommand(ctx context.Context, argv []string) (resp.Node, error) {
	if cli.context == nil {
		if err := cli.connect(ctx, CCQuiet); err != nil {
			return nil, err
		}
	}
	reply, err := cli.context.Do(argv...)
	if err != nil {
		cli.disconnect()
		cli.cliRefreshPrompt()
	}
	return reply, err
}

func (cli *RedisCli) repl(ctx context.Context) error {
	var historyFile string

	cli.line = linenoise.New()
	defer cli.line.Close()
	cli.line.SetCompletionWords(completionWords(cli.helpEntries))

	cli.config.interactive = true
	if isatty.IsTerminal(os.Stdin.Fd()) {
		historyFile = getDotfilePath(CliHisFileEnv, CliHisFileDefault)
		if historyFile != "" {
			if err := cli.line.HistoryLoad(historyFile); err != nil {
				log.Logger.Debug("history not loaded", zap.String("file", historyFile), zap.Error(err))
			}
		}
	}

	for {
		prompt := cli.config.prompt
		if cli.context == nil {
			prompt = "not connected> "
		}
		line, err := cli.line.Prompt(prompt)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, linenoise.ErrAborted) {
				return nil
			}
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		cli.line.AppendHistory(line)
		if historyFile != "" {
			cli.line.HistorySave(historyFile)
		}

		if quit := cli.processLine(ctx, line); quit {
			return nil
		}
	}
}

// processLine handles one REPL line and reports whether the REPL should
// exit.
func (cli *RedisCli) processLine(ctx context.Context, line string) bool {
	argv, err := resp.SplitArgs(line)
	if err != nil {
		fmt.Fprintln(cli.out, "Invalid argument(s)")
		return false
	}
	if len(argv) == 0 {
		return false
	}

	// check if we have a repeat command option and need to skip the first arg
	repeat := 1
	if n, err := strconv.Atoi(argv[0]); err == nil && len(argv) > 1 {
		if n <= 0 {
			fmt.Fprintln(cli.out, "Invalid openset-cli repeat command option value.")
			return false
		}
		repeat = n
		argv = argv[1:]
	}

	switch {
	case strings.EqualFold(argv[0], "quit") || strings.EqualFold(argv[0], "exit"):
		return true
	case strings.EqualFold(argv[0], "help") || argv[0] == "?":
		cli.outputHelp(argv[1:])
	case len(argv) == 3 && strings.EqualFold(argv[0], "connect"):
		port, err := strconv.Atoi(argv[2])
		if err != nil {
			fmt.Fprintln(cli.out, "Invalid port number")
			return false
		}
		cli.config.connInfo.hostIp = argv[1]
		cli.config.connInfo.hostPort = port
		cli.cliRefreshPrompt()
		cli.connect(ctx, CCForce)
	case len(argv) == 1 && strings.EqualFold(argv[0], "clear"):
		if cli.line != nil {
			cli.line.ClearScreen()
		}
	default:
		if err := cli.issueCommandRepeat(ctx, argv, repeat); err != nil {
			log.Logger.Debug("command failed", zap.Strings("argv", argv), zap.Error(err))
		}
	}
	return false
}

func (cli *RedisCli) cliRefreshPrompt() {
	cli.config.prompt = cli.addr() + "> "
}

// outputHelp prints general help, the docs of one command, or every
// command of a @group.
func (cli *RedisCli) outputHelp(topics []string) {
	if len(topics) == 0 {
		fmt.Fprintf(cli.out, "openset-cli %s\n", cli.config.version)
		fmt.Fprintln(cli.out, `To get help about openset commands type:`)
		fmt.Fprintln(cli.out, `      "help @<group>" to get a list of commands in <group>`)
		fmt.Fprintln(cli.out, `      "help <command>" for help on <command>`)
		fmt.Fprintln(cli.out, `      "help <tab>" to get a list of possible help topics`)
		fmt.Fprintln(cli.out, `      "quit" to exit`)
		return
	}

	for _, entry := range matchHelp(cli.helpEntries, topics[0]) {
		d := entry.docs
		fmt.Fprintf(cli.out, "\n  %s %s\n", d.name, d.params)
		fmt.Fprintf(cli.out, "  summary: %s\n", d.summary)
		fmt.Fprintf(cli.out, "  since: %s\n", d.since)
		if !strings.HasPrefix(topics[0], "@") {
			fmt.Fprintf(cli.out, "  group: %s\n", d.group)
		}
	}
	fmt.Fprintln(cli.out)
}

func (cli *RedisCli) formatReply(reply resp.Node) string {
	if cli.config.output == OutputRaw {
		return cliFormatReplyRaw(reply) + "\n"
	}
	return cliFormatReplyTTY(reply, "")
}

// cliFormatReplyTTY renders a reply the way redis-cli does on a terminal.
func cliFormatReplyTTY(r resp.Node, prefix string) string {
	switch n := r.(type) {
	case resp.Error:
		return fmt.Sprintf("(error) %s\n", n.Message)
	case resp.BlobError:
		return fmt.Sprintf("(error) %s\n", n.Message)
	case resp.SimpleString:
		return n.Value + "\n"
	case resp.Integer:
		return fmt.Sprintf("(integer) %d\n", n.Value)
	case resp.Double:
		return fmt.Sprintf("(double) %s\n", strconv.FormatFloat(n.Value, 'g', 17, 64))
	case resp.BigNum:
		return fmt.Sprintf("(big number) %s\n", n.Value)
	case resp.Boolean:
		if n.Value {
			return "(true)\n"
		}
		return "(false)\n"
	case resp.BlobString:
		return strconv.Quote(n.Value) + "\n"
	case resp.VerbatimString:
		return n.Value + "\n"
	case resp.Null:
		return "(nil)\n"
	case resp.Array:
		return formatElementsTTY(n.Elements, prefix, "(empty array)\n")
	case resp.Set:
		return formatElementsTTY(n.Elements, prefix, "(empty set)\n")
	case resp.Push:
		return formatElementsTTY(n.Elements, prefix, "(empty push)\n")
	case resp.Map:
		if len(n.Elements) == 0 {
			return "(empty hash)\n"
		}
		var out strings.Builder
		i := 0
		for key, value := range n.Elements {
			if i > 0 {
				out.WriteString(prefix)
			}
			i++
			fmt.Fprintf(&out, "%d# %s => %s", i, strings.TrimSuffix(cliFormatReplyTTY(key, ""), "\n"), cliFormatReplyTTY(value, prefix+"   "))
		}
		return out.String()
	default:
		return fmt.Sprintf("Unknown reply type: %T\n", r)
	}
}

// formatElementsTTY numbers the elements and indents nested aggregates so
// their indexes line up.
func formatElementsTTY(elements []resp.Node, prefix, empty string) string {
	if len(elements) == 0 {
		return empty
	}

	idxlen := len(strconv.Itoa(len(elements)))
	nested := prefix + strings.Repeat(" ", idxlen+2)

	var out strings.Builder
	for i, elem := range elements {
		// the caller already wrote the prefix of the first element
		if i > 0 {
			out.WriteString(prefix)
		}
		fmt.Fprintf(&out, "%*d) ", idxlen, i+1)
		out.WriteString(cliFormatReplyTTY(elem, nested))
	}
	return out.String()
}

// cliFormatReplyRaw renders a reply for scripts: no type annotations, one
// element per line.
func cliFormatReplyRaw(r resp.Node) string {
	switch n := r.(type) {
	case resp.Error:
		return n.Message
	case resp.BlobError:
		return n.Message
	case resp.SimpleString:
		return n.Value
	case resp.BlobString:
		return n.Value
	case resp.VerbatimString:
		return n.Value
	case resp.Integer:
		return strconv.Itoa(n.Value)
	case resp.Double:
		return strconv.FormatFloat(n.Value, 'g', 17, 64)
	case resp.BigNum:
		return n.Value
	case resp.Boolean:
		if n.Value {
			return "1"
		}
		return "0"
	case resp.Null:
		return ""
	case resp.Array:
		return joinRaw(n.Elements)
	case resp.Set:
		return joinRaw(n.Elements)
	case resp.Push:
		return joinRaw(n.Elements)
	case resp.Map:
		var parts []string
		for key, value := range n.Elements {
			parts = append(parts, cliFormatReplyRaw(key), cliFormatReplyRaw(value))
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

func joinRaw(elements []resp.Node) string {
	parts := make([]string, len(elements))
	for i, elem := range elements {
		parts[i] = cliFormatReplyRaw(elem)
	}
	return strings.Join(parts, "\n")
}

// getDotfilePath returns the path of a dotfile in the home directory. The
// environment variable envOverride replaces it, and "/dev/null" disables it.
func getDotfilePath(envOverride, dotFilename string) string {
	if path := os.Getenv(envOverride); path != "" {
		if path == "/dev/null" {
			return ""
		}
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, dotFilename)
}
