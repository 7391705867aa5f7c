package protocol

import (
	"strconv"

	"github.com/mainmemory/mainmemory/mcache"
)

// Chunk is one piece of a command's transmit-side output: either
// literal bytes (an allocated reply line) or a value spliced directly
// out of an entry's storage, per spec.md §4.6's zero-copy transmit
// contract. Release, if set, must be called once Data has been fully
// written — it drops the reference an Entry chunk's Lookup (or
// gets/get) action took out.
type Chunk struct {
	Data    []byte
	Release func()
}

// Encode turns cmd's terminal result into an ordered sequence of
// Chunks for the connection's writer task to transmit. finishEntry, if
// non-nil, is called to build each entry chunk's Release callback —
// the connection supplies it, since releasing an entry's reference
// means running a Finish action through the same strategy/dispatcher
// Process used to obtain it. A ResultBlank/ResultQuit command yields
// no chunks — quit is handled by the writer closing the socket
// afterwards, and noreply commands are meant to produce no bytes at
// all.
func Encode(cmd *Command, finishEntry func(ep entryPart, e *mcache.Entry) func()) []Chunk {
	switch cmd.ResultKind {
	case ResultReply:
		return []Chunk{{Data: cmd.ReplyBytes}}
	case ResultEntry, ResultEntryCas:
		return encodeEntries(cmd, finishEntry)
	default:
		return nil
	}
}

func encodeEntries(cmd *Command, finishEntry func(ep entryPart, e *mcache.Entry) func()) []Chunk {
	var chunks []Chunk
	withCas := cmd.ResultKind == ResultEntryCas
	for i, e := range cmd.Entries {
		if e == nil {
			continue
		}
		var release func()
		if finishEntry != nil {
			release = finishEntry(cmd.entryParts[i], e)
		}
		header := valueHeader(cmd.Keys[i], e.Flags, len(e.Value), e.Stamp, withCas)
		chunks = append(chunks, Chunk{Data: header})
		chunks = append(chunks, Chunk{Data: e.Value, Release: release})
		chunks = append(chunks, Chunk{Data: crlf})
	}
	chunks = append(chunks, Chunk{Data: replyEnd})
	return chunks
}

var crlf = []byte("\r\n")

func valueHeader(key []byte, flags uint32, length int, stamp uint64, withCas bool) []byte {
	out := make([]byte, 0, len(key)+48)
	out = append(out, "VALUE "...)
	out = append(out, key...)
	out = append(out, ' ')
	out = strconv.AppendUint(out, uint64(flags), 10)
	out = append(out, ' ')
	out = strconv.AppendUint(out, uint64(length), 10)
	if withCas {
		out = append(out, ' ')
		out = strconv.AppendUint(out, stamp, 10)
	}
	out = append(out, '\r', '\n')
	return out
}
