package node

import (
	"errors"
	"strconv"

	"github.com/fzft/go-openset/db"
	"github.com/fzft/go-openset/log"
	"go.uber.org/zap"
)

// maxRandomCount bounds the reply size of SRANDMEMBER with a negative count.
const maxRandomCount = 1 << 20

// getLongLongFromObjectOrReply parses an integer argument, replying with an
// error when it is not one.
func getLongLongFromObjectOrReply(c *Client, arg string) (int64, bool) {
	v, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		c.AddReply(SharedNotIntegerErr)
		return 0, false
	}
	return v, true
}

// SCREATE key capacity
func screateCommand(c *Client) {
	capacity, ok := getLongLongFromObjectOrReply(c, c.argv[2])
	if !ok {
		return
	}
	if capacity <= 0 || capacity > int64(c.db.MaxCapacity()) {
		c.AddReplyErrorFormat("capacity must be between 1 and %d", c.db.MaxCapacity())
		return
	}

	if _, err := c.db.Create(c.argv[1], int(capacity)); err != nil {
		if errors.Is(err, db.ErrKeyExists) {
			c.AddReply(SharedBusyKeyErr)
			return
		}
		c.AddReplyError(err.Error())
		return
	}
	c.AddReply(SharedOk)
}

// SADD key member [member ...]
func saddCommand(c *Client) {
	set := c.db.GetOrCreate(c.argv[1])
	members := c.argv[2:]
	added := set.Add(members...)

	if added < len(members) && set.Len() == set.Cap() {
		log.Logger.Debug("set is full, members skipped",
			zap.String("key", c.argv[1]), zap.Int("capacity", set.Cap()))
	}
	c.AddReplyLongLong(int64(added))
}

// SREM key member [member ...]
func sremCommand(c *Client) {
	set, ok := c.db.Lookup(c.argv[1])
	if !ok {
		c.AddReply(SharedCZero)
		return
	}
	c.AddReplyLongLong(int64(set.Remove(c.argv[2:]...)))
}

// SISMEMBER key member
func sismemberCommand(c *Client) {
	set, ok := c.db.Lookup(c.argv[1])
	c.AddReplyBool(ok && set.Contains(c.argv[2]))
}

// SMISMEMBER key member [member ...]
func smismemberCommand(c *Client) {
	members := c.argv[2:]
	set, ok := c.db.Lookup(c.argv[1])

	c.AddReplyArrayLen(len(members))
	if !ok {
		for range members {
			c.AddReply(SharedCZero)
		}
		return
	}
	for _, found := range set.ContainsAll(members...) {
		c.AddReplyBool(found)
	}
}

// SCARD key
func scardCommand(c *Client) {
	set, ok := c.db.Lookup(c.argv[1])
	if !ok {
		c.AddReply(SharedCZero)
		return
	}
	c.AddReplyLongLong(int64(set.Len()))
}

// SCAPACITY key
func scapacityCommand(c *Client) {
	set, ok := c.db.Lookup(c.argv[1])
	if !ok {
		c.AddReply(SharedCZero)
		return
	}
	c.AddReplyLongLong(int64(set.Cap()))
}

// SMEMBERS key
func smembersCommand(c *Client) {
	set, ok := c.db.Lookup(c.argv[1])
	if !ok {
		c.AddReply(SharedEmptyArray)
		return
	}
	c.AddReplyBulks(set.Members())
}

// SRANDMEMBER key [count]
//
// Without count a single member or null is returned. A positive count
// returns up to count distinct members, a negative count returns exactly
// -count members that may repeat.
func srandmemberCommand(c *Client) {
	if len(c.argv) > 3 {
		c.AddReply(SharedSyntaxErr)
		return
	}

	set, ok := c.db.Lookup(c.argv[1])
	if len(c.argv) == 2 {
		var picked []string
		if ok {
			picked = set.Random(1)
		}
		if len(picked) == 0 {
			c.AddReplyNull()
			return
		}
		c.AddReplyBulk(picked[0])
		return
	}

	count, valid := getLongLongFromObjectOrReply(c, c.argv[2])
	if !valid {
		return
	}
	if !ok || count == 0 {
		c.AddReply(SharedEmptyArray)
		return
	}
	if count > 0 {
		c.AddReplyBulks(set.Random(int(min(count, int64(set.Cap())))))
		return
	}

	if count < -maxRandomCount {
		c.AddReplyError("value is out of range")
		return
	}
	c.AddReplyBulks(set.RandomWithRepeat(int(-count)))
}

// SPOP key
func spopCommand(c *Client) {
	set, ok := c.db.Lookup(c.argv[1])
	if !ok {
		c.AddReplyNull()
		return
	}
	member, ok := set.Pop()
	if !ok {
		c.AddReplyNull()
		return
	}
	c.AddReplyBulk(member)
}

// SEQUAL key1 key2
//
// A missing key compares like an empty set.
func sequalCommand(c *Client) {
	a, okA := c.db.Lookup(c.argv[1])
	b, okB := c.db.Lookup(c.argv[2])

	switch {
	case okA && okB:
		c.AddReplyBool(a.Equal(b))
	case okA:
		c.AddReplyBool(a.Len() == 0)
	case okB:
		c.AddReplyBool(b.Len() == 0)
	default:
		c.AddReply(SharedCOne)
	}
}

// SHASH key
func shashCommand(c *Client) {
	set, ok := c.db.Lookup(c.argv[1])
	if !ok {
		c.AddReplyLongLong(db.EmptySetHash)
		return
	}
	c.AddReplyLongLong(int64(set.Hash()))
}
