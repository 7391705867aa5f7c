// Package protocol implements spec.md §4.6/§6's memcache text
// protocol: the streaming parser, the per-connection command FIFO and
// its dispatch to the owning partition, and the response encoder.
//
// Grounded on the teacher's parser/parser.go (an 8-byte-tag scanning
// state machine over a trusted wire format, adapted here to a switch
// on the whole first word of each command line) and
// CaloriaDigital-hub-IMCS/handler/cmd's one-function-per-verb command
// handler shape, adapted from a single in-process cache call into
// spec.md §3's Command entity (parsed params, pending result,
// FIFO link) dispatched through package action's strategies.
package protocol

import (
	"github.com/mainmemory/mainmemory/iobuf"
	"github.com/mainmemory/mainmemory/mcache"
)

// Kind is the command token spec.md §4.6 names.
type Kind int

const (
	CmdGet Kind = iota
	CmdGets
	CmdSet
	CmdAdd
	CmdReplace
	CmdAppend
	CmdPrepend
	CmdCas
	CmdIncr
	CmdDecr
	CmdDelete
	CmdTouch
	CmdSlabs
	CmdStats
	CmdFlushAll
	CmdVerbosity
	CmdVersion
	CmdQuit
)

// ResultKind is spec.md §3's Command.result_type: NONE until the
// processor sets a terminal result, which the writer task in package
// protocol's Connection uses to decide what it may transmit next.
type ResultKind int

const (
	ResultNone ResultKind = iota
	ResultReply    // literal bytes, e.g. "STORED\r\n", "ERROR\r\n"
	ResultEntry    // VALUE lines for Entries, no CAS column
	ResultEntryCas // VALUE lines for Entries, with CAS column (gets)
	ResultValue    // exactly one entry's value, no VALUE/END framing (unused by the text protocol today, reserved per spec.md's result-kind list)
	ResultBlank    // noreply: nothing is transmitted, but the FIFO slot still needs releasing in order
	ResultQuit     // close the socket after flushing everything before it
)

// payloadRef is a `set`-family command's captured splice descriptor:
// spec.md §4.6's "(segment*, start, len) splice descriptor" that lets
// the processor copy the value into a freshly allocated entry without
// the parser having to copy it first.
type payloadRef struct {
	start iobuf.Cursor
	len   int
}

// Command is spec.md §3's Command entity.
type Command struct {
	Kind Kind
	Name string // for error messages and stats

	Keys      [][]byte
	Flags     uint32
	Exptime   uint32
	Bytes     uint32
	CasUnique uint64
	Delta     int64
	NoReply   bool
	Verbosity uint32

	payload payloadRef

	// EndPtr marks where this command's bytes end in the receive
	// buffer; once every command up to and including this one has a
	// terminal result, the connection releases the receive buffer up
	// to EndPtr (spec.md §4.6).
	EndPtr iobuf.Cursor

	ResultKind ResultKind
	ReplyBytes []byte

	// Entries holds one *mcache.Entry per requested key for
	// ResultEntry/ResultEntryCas, aligned with Keys; a nil entry means
	// that key was not found and is simply skipped when encoding.
	// Entries are reffed by whatever action produced them and must be
	// Finish()ed by the connection once their VALUE line is fully
	// transmitted (spec.md §4.6's splice-release-unrefs contract).
	Entries    []*mcache.Entry
	entryParts []entryPart

	// Next links this command into its connection's FIFO.
	Next *Command
}

// entryPart records which partition (and its index into the table)
// produced one of Command.Entries, so the connection's writer knows
// where to send the Finish action once that entry's VALUE line has
// been fully transmitted.
type entryPart struct {
	part      *mcache.Partition
	partIndex int
}

// Fifo is spec.md §3's Connection FIFO: a singly linked head/tail
// queue of commands from parse order to transmit order.
type Fifo struct {
	head, tail *Command
}

// PushBack appends c to the tail.
func (f *Fifo) PushBack(c *Command) {
	if f.tail == nil {
		f.head, f.tail = c, c
		return
	}
	f.tail.Next = c
	f.tail = c
}

// Front returns the oldest command still in the FIFO, or nil.
func (f *Fifo) Front() *Command { return f.head }

// PopFront removes and returns the oldest command, or nil if empty.
func (f *Fifo) PopFront() *Command {
	c := f.head
	if c == nil {
		return nil
	}
	f.head = c.Next
	if f.head == nil {
		f.tail = nil
	}
	c.Next = nil
	return c
}

// Empty reports whether the FIFO has no commands.
func (f *Fifo) Empty() bool { return f.head == nil }
