package protocol

import (
	"strconv"

	"github.com/mainmemory/mainmemory/iobuf"
)

// maxJunkBytes is spec.md §4.6's quit-fast threshold: once this many
// bytes have accumulated unread with no line boundary in sight, the
// connection is treated as hostile or confused and dropped rather than
// left to grow its receive buffer without bound.
const maxJunkBytes = 1024

// maxValueSize is spec.md §7's ResourceError boundary for a single
// stored value: a `set`-family command whose declared byte count
// exceeds this is accepted syntactically (its payload is still read so
// the stream stays in sync) but answered with SERVER_ERROR instead of
// being handed to package action, matching real memcached's "object
// too large for cache" behavior on an oversized item.
const maxValueSize = 1 << 20

// maxKeyLen is the original memcache protocol's MC_KEY_LEN_MAX: any key
// or key-shaped parameter longer than this is rejected with
// CLIENT_ERROR rather than hashed and routed, matching
// original_source/src/memcache/memcache.c's mc_parse_param.
const maxKeyLen = 250

// Parser is spec.md §4.6's streaming command parser: it resumes across
// however many socket reads a complete command line (and, for the
// `set` family, its payload) actually arrives in, never blocking and
// never assuming a read lands on a command boundary.
//
// Grounded on the teacher's parser/parser.go (an 8-byte-tag scanning
// state machine that returns "need more data" rather than copying a
// partial frame), adapted from its fixed 8-byte tag framing to
// spec.md's line-oriented text protocol: the boundary search is
// IndexByte('\n') instead of a fixed stride, and a `set`-family command
// additionally defers on its declared byte-length payload before it is
// considered complete.
type Parser struct {
	scratch []byte // reused line-materialization buffer, grown as needed
}

// NewParser returns a parser ready to read from a fresh connection.
func NewParser() *Parser { return &Parser{scratch: make([]byte, 0, 512)} }

// Next attempts to parse one command out of buf, starting at its
// current read cursor. It returns needMore=true, touching nothing,
// when buf does not yet hold a complete command (and, for `set`-family
// commands, its payload) — the caller must read more and call again.
// Otherwise it returns a Command, already advancing buf's read cursor
// past everything consumed (the full command, and for recognized but
// malformed lines, past the line itself, so a bad command does not
// wedge the connection). A returned Command's ResultKind is already
// terminal (ResultReply/ResultQuit) for parse errors and commands with
// no further processing to do; ResultNone means the caller must still
// run it through Process.
func (p *Parser) Next(buf *iobuf.Buffer) (cmd *Command, needMore bool) {
	idx := buf.IndexByte('\n')
	if idx < 0 {
		if buf.Unread() > maxJunkBytes {
			buf.Advance(buf.Unread())
			return &Command{Kind: CmdQuit, ResultKind: ResultQuit, EndPtr: buf.Mark()}, false
		}
		return nil, true
	}

	if cap(p.scratch) < idx {
		p.scratch = make([]byte, idx)
	}
	line := p.scratch[:idx]
	buf.CopyRange(line, 0, idx)
	if idx > 0 && line[idx-1] == '\r' {
		line = line[:idx-1]
	}

	fields := splitFields(line)
	if len(fields) == 0 {
		buf.Advance(idx + 1)
		return &Command{ResultKind: ResultReply, ReplyBytes: replyError, EndPtr: buf.Mark()}, false
	}

	word := string(fields[0])
	fields, noReply := stripNoReply(fields)

	switch word {
	case "get", "gets":
		if len(fields) < 2 {
			return malformedLine(buf, idx)
		}
		if anyKeyTooLong(fields[1:]) {
			return rejectLine(buf, idx, replyParamTooLong)
		}
		kind := CmdGet
		if word == "gets" {
			kind = CmdGets
		}
		cmd = &Command{Kind: kind, Name: word, Keys: copyFields(fields[1:])}
		buf.Advance(idx + 1)
		cmd.EndPtr = buf.Mark()
		return cmd, false

	case "set", "add", "replace", "append", "prepend", "cas":
		return p.parseStorage(buf, idx, word, fields, noReply)

	case "incr", "decr":
		if len(fields) != 3 {
			return malformedLine(buf, idx)
		}
		if len(fields[1]) > maxKeyLen {
			return rejectLine(buf, idx, replyParamTooLong)
		}
		delta, err := strconv.ParseUint(string(fields[2]), 10, 64)
		if err != nil {
			return malformedLine(buf, idx)
		}
		kind := CmdIncr
		if word == "decr" {
			kind = CmdDecr
		}
		cmd = &Command{Kind: kind, Name: word, Keys: copyFields(fields[1:2]), Delta: int64(delta), NoReply: noReply}
		buf.Advance(idx + 1)
		cmd.EndPtr = buf.Mark()
		return cmd, false

	case "delete":
		if len(fields) < 2 {
			return malformedLine(buf, idx)
		}
		if len(fields[1]) > maxKeyLen {
			return rejectLine(buf, idx, replyParamTooLong)
		}
		cmd = &Command{Kind: CmdDelete, Name: word, Keys: copyFields(fields[1:2]), NoReply: noReply}
		buf.Advance(idx + 1)
		cmd.EndPtr = buf.Mark()
		return cmd, false

	case "touch":
		if len(fields) != 3 {
			return malformedLine(buf, idx)
		}
		if len(fields[1]) > maxKeyLen {
			return rejectLine(buf, idx, replyParamTooLong)
		}
		exptime, err := strconv.ParseUint(string(fields[2]), 10, 32)
		if err != nil {
			return malformedLine(buf, idx)
		}
		cmd = &Command{Kind: CmdTouch, Name: word, Keys: copyFields(fields[1:2]), Exptime: uint32(exptime), NoReply: noReply}
		buf.Advance(idx + 1)
		cmd.EndPtr = buf.Mark()
		return cmd, false

	case "flush_all":
		cmd = &Command{Kind: CmdFlushAll, Name: word, NoReply: noReply}
		buf.Advance(idx + 1)
		cmd.EndPtr = buf.Mark()
		return cmd, false

	case "verbosity":
		if len(fields) != 2 {
			return malformedLine(buf, idx)
		}
		level, err := strconv.ParseUint(string(fields[1]), 10, 32)
		if err != nil {
			return malformedLine(buf, idx)
		}
		cmd = &Command{Kind: CmdVerbosity, Name: word, Verbosity: uint32(level), NoReply: noReply}
		buf.Advance(idx + 1)
		cmd.EndPtr = buf.Mark()
		return cmd, false

	case "stats":
		cmd = &Command{Kind: CmdStats, Name: word}
		buf.Advance(idx + 1)
		cmd.EndPtr = buf.Mark()
		return cmd, false

	case "slabs":
		cmd = &Command{Kind: CmdSlabs, Name: word}
		buf.Advance(idx + 1)
		cmd.EndPtr = buf.Mark()
		return cmd, false

	case "version":
		cmd = &Command{Kind: CmdVersion, Name: word, ResultKind: ResultReply, ReplyBytes: replyVersion}
		buf.Advance(idx + 1)
		cmd.EndPtr = buf.Mark()
		return cmd, false

	case "quit":
		cmd = &Command{Kind: CmdQuit, Name: word, ResultKind: ResultQuit}
		buf.Advance(idx + 1)
		cmd.EndPtr = buf.Mark()
		return cmd, false

	default:
		buf.Advance(idx + 1)
		return &Command{Name: word, ResultKind: ResultReply, ReplyBytes: replyError, EndPtr: buf.Mark()}, false
	}
}

// parseStorage handles the six `set`-family commands, which additionally
// carry a declared-length payload after the command line.
func (p *Parser) parseStorage(buf *iobuf.Buffer, idx int, word string, fields [][]byte, noReply bool) (*Command, bool) {
	want := 5
	if word == "cas" {
		want = 6
	}
	if len(fields) != want {
		return malformedLine(buf, idx)
	}
	keyTooLong := len(fields[1]) > maxKeyLen
	flags, err1 := strconv.ParseUint(string(fields[2]), 10, 32)
	exptime, err2 := strconv.ParseUint(string(fields[3]), 10, 32)
	size, err3 := strconv.ParseUint(string(fields[4]), 10, 32)
	var casUnique uint64
	var err4 error
	if word == "cas" {
		casUnique, err4 = strconv.ParseUint(string(fields[5]), 10, 64)
	}
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return malformedLine(buf, idx)
	}

	// idx+1 is the command line's length including its terminating \n;
	// the payload of `size` bytes plus a mandatory \r\n follows it.
	need := idx + 1 + int(size) + 2
	if buf.Unread() < need {
		return nil, true
	}

	crOK := byteEquals(buf, idx+1+int(size), '\r') && byteEquals(buf, idx+1+int(size)+1, '\n')

	kind := storageKind(word)
	key := copyFields(fields[1:2])[0]

	buf.Advance(idx + 1)
	payloadStart := buf.Mark()
	buf.Advance(int(size))
	buf.Advance(2)

	cmd := &Command{
		Kind:      kind,
		Name:      word,
		Keys:      [][]byte{key},
		Flags:     uint32(flags),
		Exptime:   uint32(exptime),
		Bytes:     uint32(size),
		CasUnique: casUnique,
		NoReply:   noReply,
		payload:   payloadRef{start: payloadStart, len: int(size)},
	}
	cmd.EndPtr = buf.Mark()
	switch {
	case keyTooLong:
		cmd.ResultKind = ResultReply
		cmd.ReplyBytes = replyParamTooLong
	case !crOK:
		cmd.ResultKind = ResultReply
		cmd.ReplyBytes = replyBadDataChunk
	case size > maxValueSize:
		cmd.ResultKind = ResultReply
		cmd.ReplyBytes = serverError("object too large for cache")
	}
	return cmd, false
}

func storageKind(word string) Kind {
	switch word {
	case "set":
		return CmdSet
	case "add":
		return CmdAdd
	case "replace":
		return CmdReplace
	case "append":
		return CmdAppend
	case "prepend":
		return CmdPrepend
	default:
		return CmdCas
	}
}

// malformedLine rejects a recognized command whose field count or
// numeric fields don't parse, consuming through the line it came from
// so the connection stays in sync with the stream.
func malformedLine(buf *iobuf.Buffer, idx int) (*Command, bool) {
	return rejectLine(buf, idx, replyBadFormat)
}

// rejectLine answers a command line with a terminal reply without
// running it through package action, consuming through the line's
// terminator so the connection stays in sync with the stream.
func rejectLine(buf *iobuf.Buffer, idx int, reply []byte) (*Command, bool) {
	buf.Advance(idx + 1)
	return &Command{ResultKind: ResultReply, ReplyBytes: reply, EndPtr: buf.Mark()}, false
}

// anyKeyTooLong reports whether any key exceeds maxKeyLen.
func anyKeyTooLong(keys [][]byte) bool {
	for _, k := range keys {
		if len(k) > maxKeyLen {
			return true
		}
	}
	return false
}

func byteEquals(buf *iobuf.Buffer, offset int, want byte) bool {
	b, ok := buf.ByteAt(offset)
	return ok && b == want
}

// stripNoReply removes a trailing "noreply" token, reporting whether
// one was present.
func stripNoReply(fields [][]byte) ([][]byte, bool) {
	if len(fields) > 0 && string(fields[len(fields)-1]) == "noreply" {
		return fields[:len(fields)-1], true
	}
	return fields, false
}

func splitFields(line []byte) [][]byte {
	var fields [][]byte
	i := 0
	for i < len(line) {
		for i < len(line) && line[i] == ' ' {
			i++
		}
		if i >= len(line) {
			break
		}
		start := i
		for i < len(line) && line[i] != ' ' {
			i++
		}
		fields = append(fields, line[start:i])
	}
	return fields
}

func copyFields(fields [][]byte) [][]byte {
	out := make([][]byte, len(fields))
	for i, f := range fields {
		out[i] = append([]byte(nil), f...)
	}
	return out
}
