package node

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// PING [message]
func pingCommand(c *Client) {
	if len(c.argv) > 2 {
		c.AddReplyErrorFormat("wrong number of arguments for '%s' command", c.cmd.Fullname())
		return
	}
	if len(c.argv) == 2 {
		c.AddReplyBulk(c.argv[1])
		return
	}
	c.AddReply(SharedPong)
}

// ECHO message
func echoCommand(c *Client) {
	c.AddReplyBulk(c.argv[1])
}

// QUIT
func quitCommand(c *Client) {
	c.AddReply(SharedOk)
	c.flags |= ClientCloseAfterReply
}

// DEL key [key ...]
func delCommand(c *Client) {
	c.AddReplyLongLong(int64(c.db.Delete(c.argv[1:]...)))
}

// EXISTS key [key ...]
func existsCommand(c *Client) {
	c.AddReplyLongLong(int64(c.db.Exists(c.argv[1:]...)))
}

// KEYS pattern
func keysCommand(c *Client) {
	c.AddReplyBulks(c.db.Keys(c.argv[1]))
}

// DBSIZE
func dbsizeCommand(c *Client) {
	c.AddReplyLongLong(int64(c.db.Len()))
}

// FLUSHALL
func flushallCommand(c *Client) {
	c.db.Flush()
	c.AddReply(SharedOk)
}

// INFO [section]
func infoCommand(c *Client) {
	section := "default"
	if len(c.argv) == 2 {
		section = strings.ToLower(c.argv[1])
	} else if len(c.argv) > 2 {
		c.AddReply(SharedSyntaxErr)
		return
	}
	c.AddReplyBulk(c.server.genInfoString(section))
}

// genInfoString renders the INFO sections selected by section. "all" and
// "default" select every section.
func (s *Server) genInfoString(section string) string {
	all := section == "all" || section == "default"
	var b strings.Builder

	if all || section == "server" {
		uptime := time.Since(s.startTime)
		fmt.Fprintf(&b, "# Server\r\n")
		fmt.Fprintf(&b, "openset_version:%s\r\n", s.opts.Version)
		fmt.Fprintf(&b, "os:%s %s\r\n", runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(&b, "go_version:%s\r\n", runtime.Version())
		fmt.Fprintf(&b, "process_id:%d\r\n", s.pid)
		if s.listener != nil {
			fmt.Fprintf(&b, "tcp_addr:%s\r\n", s.listener.Addr())
		}
		fmt.Fprintf(&b, "uptime_in_seconds:%d\r\n", int64(uptime.Seconds()))
		fmt.Fprintf(&b, "uptime_in_days:%d\r\n", int64(uptime.Hours()/24))
	}

	if all || section == "clients" {
		if b.Len() > 0 {
			b.WriteString("\r\n")
		}
		fmt.Fprintf(&b, "# Clients\r\n")
		fmt.Fprintf(&b, "connected_clients:%d\r\n", s.clients.Size())
		fmt.Fprintf(&b, "maxclients:%d\r\n", s.opts.MaxClients)
	}

	if all || section == "memory" {
		if b.Len() > 0 {
			b.WriteString("\r\n")
		}
		used := s.db.UsedMemory()
		fmt.Fprintf(&b, "# Memory\r\n")
		fmt.Fprintf(&b, "used_memory:%d\r\n", used)
		fmt.Fprintf(&b, "used_memory_human:%s\r\n", bytesToHuman(used))
	}

	if all || section == "stats" {
		if b.Len() > 0 {
			b.WriteString("\r\n")
		}
		fmt.Fprintf(&b, "# Stats\r\n")
		fmt.Fprintf(&b, "total_connections_received:%d\r\n", s.stats.connections.Load())
		fmt.Fprintf(&b, "total_commands_processed:%d\r\n", s.stats.commands.Load())
		fmt.Fprintf(&b, "rejected_connections:%d\r\n", s.stats.rejectedConnections.Load())
		fmt.Fprintf(&b, "unknown_or_invalid_commands:%d\r\n", s.stats.rejectedCommands.Load())
	}

	if all || section == "keyspace" {
		if b.Len() > 0 {
			b.WriteString("\r\n")
		}
		fmt.Fprintf(&b, "# Keyspace\r\n")
		if n := s.db.Len(); n > 0 {
			fmt.Fprintf(&b, "db%d:keys=%d,default_capacity=%d,max_capacity=%d\r\n",
				s.db.GetID(), n, s.db.DefaultCapacity(), s.db.MaxCapacity())
		}
	}

	return b.String()
}

// bytesToHuman formats n the way INFO reports memory, e.g. 1.50K.
func bytesToHuman(n int64) string {
	d := float64(n)
	switch {
	case n < 1024:
		return fmt.Sprintf("%dB", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.2fK", d/1024)
	case n < 1024*1024*1024:
		return fmt.Sprintf("%.2fM", d/(1024*1024))
	default:
		return fmt.Sprintf("%.2fG", d/(1024*1024*1024))
	}
}
