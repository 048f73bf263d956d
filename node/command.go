package node

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fzft/go-openset/resp"
)

type CommandFlags uint64

const (
	CmdWrite CommandFlags = 1 << iota
	CmdReadOnly
	CmdAdmin
	CmdFast
	CmdNoAuth
	CmdStale
)

func (f CommandFlags) String() string {
	var names []string
	for _, flag := range []struct {
		bit  CommandFlags
		name string
	}{
		{CmdWrite, "write"},
		{CmdReadOnly, "readonly"},
		{CmdAdmin, "admin"},
		{CmdFast, "fast"},
		{CmdNoAuth, "no_auth"},
		{CmdStale, "stale"},
	} {
		if f&flag.bit != 0 {
			names = append(names, flag.name)
		}
	}
	return strings.Join(names, ",")
}

type RedisCommandGroup uint8

const (
	RedisCommandGroupGeneric RedisCommandGroup = iota
	RedisCommandGroupSet
	RedisCommandGroupConnection
	RedisCommandGroupServer
)

func (g RedisCommandGroup) String() string {
	switch g {
	case RedisCommandGroupGeneric:
		return "generic"
	case RedisCommandGroupSet:
		return "set"
	case RedisCommandGroupConnection:
		return "connection"
	case RedisCommandGroupServer:
		return "server"
	default:
		return "unknown"
	}
}

var (
	// Shared command responses

	SharedOk         = []byte(fmt.Sprintf("%cOK%s", resp.TypeSimple, resp.CRLF))
	SharedPong       = []byte(fmt.Sprintf("%cPONG%s", resp.TypeSimple, resp.CRLF))
	SharedCZero      = []byte(fmt.Sprintf("%c0%s", resp.TypeInteger, resp.CRLF))
	SharedCOne       = []byte(fmt.Sprintf("%c1%s", resp.TypeInteger, resp.CRLF))
	SharedEmptyArray = []byte(fmt.Sprintf("%c0%s", resp.TypeArray, resp.CRLF))
	SharedNullBulk   = []byte(fmt.Sprintf("%c-1%s", resp.TypeBlob, resp.CRLF))

	// Shared command error responses

	SharedErr           = []byte(fmt.Sprintf("%cERR%s", resp.TypeError, resp.CRLF))
	SharedSyntaxErr     = []byte(fmt.Sprintf("%cERR syntax error%s", resp.TypeError, resp.CRLF))
	SharedNotIntegerErr = []byte(fmt.Sprintf("%cERR value is not an integer or out of range%s", resp.TypeError, resp.CRLF))
	SharedBusyKeyErr    = []byte(fmt.Sprintf("%cBUSYKEY Target key name already exists.%s", resp.TypeError, resp.CRLF))
	SharedMaxClientsErr = []byte(fmt.Sprintf("%cERR max number of clients reached%s", resp.TypeError, resp.CRLF))
)

type RedisCommandProc func(c *Client)

// RedisCommand describes one entry of the command table.
//
// Arity follows the redis convention: a positive value is the exact number
// of arguments including the command name, a negative value -N means at
// least N.
type RedisCommand struct {
	Name    string
	Proc    RedisCommandProc
	Arity   int
	Flags   CommandFlags
	Group   RedisCommandGroup
	Args    string // argument synopsis shown by help
	Summary string
	Since   string
}

func (cmd *RedisCommand) Fullname() string {
	return strings.ToLower(cmd.Name)
}

// CheckArity reports whether argc arguments are acceptable.
func (cmd *RedisCommand) CheckArity(argc int) bool {
	if cmd.Arity > 0 {
		return argc == cmd.Arity
	}
	return argc >= -cmd.Arity
}

var redisCommandTable = []*RedisCommand{
	// connection
	{Name: "PING", Proc: pingCommand, Arity: -1, Flags: CmdFast | CmdStale, Group: RedisCommandGroupConnection,
		Args: "[message]", Summary: "Returns the server's liveliness response.", Since: "1.0.0"},
	{Name: "ECHO", Proc: echoCommand, Arity: 2, Flags: CmdFast | CmdStale, Group: RedisCommandGroupConnection,
		Args: "message", Summary: "Returns the given string.", Since: "1.0.0"},
	{Name: "QUIT", Proc: quitCommand, Arity: -1, Flags: CmdFast | CmdNoAuth | CmdStale, Group: RedisCommandGroupConnection,
		Summary: "Closes the connection.", Since: "1.0.0"},

	// set
	{Name: "SCREATE", Proc: screateCommand, Arity: 3, Flags: CmdWrite, Group: RedisCommandGroupSet,
		Args: "key capacity", Summary: "Creates an empty set that holds at most capacity members.", Since: "1.0.0"},
	{Name: "SADD", Proc: saddCommand, Arity: -3, Flags: CmdWrite | CmdFast, Group: RedisCommandGroupSet,
		Args: "key member [member ...]", Summary: "Adds members to a set, creating it with the default capacity if needed.", Since: "1.0.0"},
	{Name: "SREM", Proc: sremCommand, Arity: -3, Flags: CmdWrite | CmdFast, Group: RedisCommandGroupSet,
		Args: "key member [member ...]", Summary: "Removes members from a set.", Since: "1.0.0"},
	{Name: "SISMEMBER", Proc: sismemberCommand, Arity: 3, Flags: CmdReadOnly | CmdFast, Group: RedisCommandGroupSet,
		Args: "key member", Summary: "Determines whether a member belongs to a set.", Since: "1.0.0"},
	{Name: "SMISMEMBER", Proc: smismemberCommand, Arity: -3, Flags: CmdReadOnly | CmdFast, Group: RedisCommandGroupSet,
		Args: "key member [member ...]", Summary: "Determines whether multiple members belong to a set.", Since: "1.0.0"},
	{Name: "SCARD", Proc: scardCommand, Arity: 2, Flags: CmdReadOnly | CmdFast, Group: RedisCommandGroupSet,
		Args: "key", Summary: "Returns the number of members in a set.", Since: "1.0.0"},
	{Name: "SCAPACITY", Proc: scapacityCommand, Arity: 2, Flags: CmdReadOnly | CmdFast, Group: RedisCommandGroupSet,
		Args: "key", Summary: "Returns the fixed capacity of a set.", Since: "1.0.0"},
	{Name: "SMEMBERS", Proc: smembersCommand, Arity: 2, Flags: CmdReadOnly, Group: RedisCommandGroupSet,
		Args: "key", Summary: "Returns all members of a set in sorted order.", Since: "1.0.0"},
	{Name: "SRANDMEMBER", Proc: srandmemberCommand, Arity: -2, Flags: CmdReadOnly, Group: RedisCommandGroupSet,
		Args: "key [count]", Summary: "Gets one or multiple random members from a set.", Since: "1.0.0"},
	{Name: "SPOP", Proc: spopCommand, Arity: 2, Flags: CmdWrite | CmdFast, Group: RedisCommandGroupSet,
		Args: "key", Summary: "Removes and returns a random member from a set.", Since: "1.0.0"},
	{Name: "SEQUAL", Proc: sequalCommand, Arity: 3, Flags: CmdReadOnly, Group: RedisCommandGroupSet,
		Args: "key1 key2", Summary: "Determines whether two sets hold the same members.", Since: "1.0.0"},
	{Name: "SHASH", Proc: shashCommand, Arity: 2, Flags: CmdReadOnly, Group: RedisCommandGroupSet,
		Args: "key", Summary: "Returns the order independent hash of a set.", Since: "1.0.0"},

	// generic
	{Name: "DEL", Proc: delCommand, Arity: -2, Flags: CmdWrite, Group: RedisCommandGroupGeneric,
		Args: "key [key ...]", Summary: "Deletes one or more keys.", Since: "1.0.0"},
	{Name: "EXISTS", Proc: existsCommand, Arity: -2, Flags: CmdReadOnly | CmdFast, Group: RedisCommandGroupGeneric,
		Args: "key [key ...]", Summary: "Determines whether one or more keys exist.", Since: "1.0.0"},
	{Name: "KEYS", Proc: keysCommand, Arity: 2, Flags: CmdReadOnly, Group: RedisCommandGroupGeneric,
		Args: "pattern", Summary: "Returns all key names that match a pattern.", Since: "1.0.0"},

	// server
	{Name: "DBSIZE", Proc: dbsizeCommand, Arity: 1, Flags: CmdReadOnly | CmdFast, Group: RedisCommandGroupServer,
		Summary: "Returns the number of keys.", Since: "1.0.0"},
	{Name: "FLUSHALL", Proc: flushallCommand, Arity: 1, Flags: CmdWrite, Group: RedisCommandGroupServer,
		Summary: "Removes all keys.", Since: "1.0.0"},
	{Name: "INFO", Proc: infoCommand, Arity: -1, Flags: CmdStale, Group: RedisCommandGroupServer,
		Args: "[section]", Summary: "Returns information and statistics about the server.", Since: "1.0.0"},
}

// populateCommandTable indexes the static command table by lower case name.
func populateCommandTable() map[string]*RedisCommand {
	commands := make(map[string]*RedisCommand, len(redisCommandTable))
	for _, cmd := range redisCommandTable {
		commands[cmd.Fullname()] = cmd
	}
	return commands
}

// CommandTable returns the supported commands sorted by name.
func CommandTable() []RedisCommand {
	out := make([]RedisCommand, 0, len(redisCommandTable))
	for _, cmd := range redisCommandTable {
		out = append(out, *cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
