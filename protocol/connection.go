package protocol

import (
	"time"

	"github.com/mainmemory/mainmemory/action"
	"github.com/mainmemory/mainmemory/core"
	"github.com/mainmemory/mainmemory/iobuf"
	"github.com/mainmemory/mainmemory/mcache"
	"github.com/mainmemory/mainmemory/netio"
	"github.com/mainmemory/mainmemory/sched"
	"github.com/mainmemory/mainmemory/task"
)

// readChunk is the size of one socket Read call's landing area.
const readChunk = 4096

// readPollInterval bounds how long a reader task's Read call may block
// before it must hand the baton back. A bare, deadline-free Read would
// otherwise hold this core's single active-task slot for as long as
// its peer stays silent — fine for a dedicated per-connection thread,
// but this core's dispatcher also owes turns to every other
// connection's reader/writer tasks and to master/dealer. Polling with
// a short read deadline turns each Read into a bounded suspension
// point, the same role spec.md §4.4's event-backend readiness wait
// plays for a C implementation's per-socket registration.
const readPollInterval = 20 * time.Millisecond

// Connection is spec.md §3's Connection entity: a socket, its
// receive/transmit state, the command FIFO linking parse order to
// transmit order, and the reader/writer tasks that drive it. Both
// tasks run on the same core (the one netio.Listener routed the
// accept to) and never migrate, per spec.md §5.
type Connection struct {
	sock  netio.Socket
	recv  *iobuf.Buffer
	parse *Parser
	fifo  Fifo

	owner    *core.Core
	table    *mcache.Table
	strategy action.Strategy

	writerWake sched.WaitQueue
	writerSelf *task.Task
	quit       bool
}

// NewConnection wraps sock as a connection owned by owner, dispatching
// its commands against table through strategy.
func NewConnection(owner *core.Core, sock netio.Socket, table *mcache.Table, strategy action.Strategy) *Connection {
	return &Connection{
		sock:     sock,
		recv:     iobuf.NewBuffer(),
		parse:    NewParser(),
		owner:    owner,
		table:    table,
		strategy: strategy,
	}
}

// Spawn starts the connection's reader and writer tasks on its owning
// core's dispatcher. Called from inside the work item netio.Listener
// posted to owner, so this runs on owner's own goroutine.
func (c *Connection) Spawn() {
	c.owner.Dispatcher.Spawn(task.New("conn-reader", task.PriorityDefault, c.readerBody))
	c.owner.Dispatcher.Spawn(task.New("conn-writer", task.PriorityDefault, c.writerBody))
}

func (c *Connection) readerBody(self *task.Task) {
	defer c.sock.Close()
	for {
		if self.TestCancel() || c.quit {
			return
		}
		c.sock.SetReadTimeout(readPollInterval)
		area := c.recv.WriteArea()
		if len(area) > readChunk {
			area = area[:readChunk]
		}
		n, err := c.sock.Read(area)
		if n > 0 {
			c.recv.CommitWrite(n)
			c.drainParsed(self)
			if c.quit {
				return
			}
		}
		if err != nil {
			if isTimeout(err) {
				c.owner.Dispatcher.Yield(self)
				continue
			}
			c.enqueueHangup()
			c.drainParsed(self)
			return
		}
	}
}

// isTimeout reports whether err is the deadline expiry SetReadTimeout
// arms, as opposed to a real I/O failure or peer hangup.
func isTimeout(err error) bool {
	te, ok := err.(interface{ Timeout() bool })
	return ok && te.Timeout()
}

// drainParsed pulls every complete command currently sitting in the
// receive buffer, dispatches the ones that need it, and wakes the
// writer after each — spec.md §4.6's "reader parses complete commands
// out of the receive buffer and posts each to its owning partition".
func (c *Connection) drainParsed(self *task.Task) {
	for {
		cmd, needMore := c.parse.Next(c.recv)
		if needMore {
			return
		}
		if cmd == nil {
			continue
		}
		c.fifo.PushBack(cmd)
		if cmd.ResultKind == ResultNone {
			Process(cmd, c.table, c.strategy, c.owner.Dispatcher, self, c.owner, c.recv)
		}
		if cmd.ResultKind == ResultQuit {
			c.quit = true
		}
		c.owner.Dispatcher.Signal(&c.writerWake)
		if c.quit {
			return
		}
	}
}

// enqueueHangup posts a synthetic quit command so the writer, once it
// has flushed everything already queued ahead of it, closes the
// socket — spec.md §4.6's "hangup from the peer enqueues a QUIT-typed
// command".
func (c *Connection) enqueueHangup() {
	c.fifo.PushBack(&Command{Kind: CmdQuit, ResultKind: ResultQuit})
	c.quit = true
	c.owner.Dispatcher.Signal(&c.writerWake)
}

func (c *Connection) writerBody(self *task.Task) {
	c.writerSelf = self
	for {
		if self.TestCancel() {
			return
		}
		cmd := c.fifo.Front()
		if cmd == nil || cmd.ResultKind == ResultNone {
			c.owner.Dispatcher.WaitBack(&c.writerWake, self)
			continue
		}
		c.fifo.PopFront()

		chunks := Encode(cmd, c.finishEntry)
		closed := false
		for _, ch := range chunks {
			if len(ch.Data) > 0 && !c.writeAll(ch.Data) {
				closed = true
			}
			if ch.Release != nil {
				ch.Release()
			}
			if closed {
				break
			}
		}
		c.recv.ReleaseTo(cmd.EndPtr)

		if closed || cmd.ResultKind == ResultQuit {
			c.sock.Close()
			return
		}
	}
}

// writeAll writes data in full, looping over short writes, and
// reports false on any error (the caller then tears the connection
// down rather than risk transmitting out-of-order bytes on a future
// write).
func (c *Connection) writeAll(data []byte) bool {
	for len(data) > 0 {
		n, err := c.sock.Write(data)
		if err != nil {
			return false
		}
		data = data[n:]
	}
	return true
}

// finishEntry builds an Encode Release callback that runs a Finish
// action on ep's partition through this connection's strategy, for
// the entry a get/gets VALUE line just finished transmitting.
func (c *Connection) finishEntry(ep entryPart, e *mcache.Entry) func() {
	return func() {
		c.strategy.Execute(ep.partIndex, &action.Descriptor{Kind: action.Finish, Part: ep.part, OldEntry: e}, c.owner.Dispatcher, c.writerSelf, c.owner)
	}
}

// ListenerSpawn adapts Connection construction to netio.Listener's
// Spawn callback shape.
func ListenerSpawn(table *mcache.Table, strategy action.Strategy) func(owner *core.Core, sock netio.Socket) {
	return func(owner *core.Core, sock netio.Socket) {
		NewConnection(owner, sock, table, strategy).Spawn()
	}
}
