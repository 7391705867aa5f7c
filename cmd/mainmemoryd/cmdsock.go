package main

import (
	"bufio"

	"github.com/sugawarayuuta/sonnet"

	"github.com/mainmemory/mainmemory/core"
	"github.com/mainmemory/mainmemory/mcache"
	"github.com/mainmemory/mainmemory/mmlog"
	"github.com/mainmemory/mainmemory/netio"
)

// cmdRequest is one line of the mm_cmd.sock stub control channel:
// {"cmd":"stats"} or {"cmd":"flush_all"}. Grounded on the teacher's
// syncharvester.go use of sonnet.Unmarshal for a fast-path JSON decode
// off a raw socket read.
type cmdRequest struct {
	Cmd string `json:"cmd"`
}

type partitionStats struct {
	Index   int    `json:"index"`
	Entries uint32 `json:"entries"`
	Buckets uint32 `json:"buckets"`
	Volume  int64  `json:"volume"`
}

type cmdResponse struct {
	OK         bool             `json:"ok"`
	Error      string           `json:"error,omitempty"`
	Partitions []partitionStats `json:"partitions,omitempty"`
}

// newCommandHandler returns a netio.Listener.Spawn function serving
// spec.md §6's "stub command channel": one JSON object per line in,
// one JSON object per line out. Each accepted connection is served on
// a goroutine of its own, outside the accepting core's dispatcher,
// doing nothing spec.md restricts to a
// partition's owning core — Stats and Flush each take the partition's
// own mutex directly, the same as the locking strategy's Execute path.
func newCommandHandler(table *mcache.Table, log *mmlog.Logger) func(owner *core.Core, sock netio.Socket) {
	return func(owner *core.Core, sock netio.Socket) {
		go serveCommandConn(sock, table, log)
	}
}

func serveCommandConn(sock netio.Socket, table *mcache.Table, log *mmlog.Logger) {
	defer sock.Close()

	r := bufio.NewReader(connReader{sock})
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			resp := handleCommand(line, table)
			out, err := sonnet.Marshal(resp)
			if err != nil {
				log.Error("command socket marshal failed", err)
				return
			}
			out = append(out, '\n')
			if _, werr := sock.Write(out); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func handleCommand(line []byte, table *mcache.Table) cmdResponse {
	var req cmdRequest
	if err := sonnet.Unmarshal(line, &req); err != nil {
		return cmdResponse{OK: false, Error: "malformed request"}
	}
	switch req.Cmd {
	case "stats":
		stats := make([]partitionStats, table.PartitionCount())
		for i, p := range table.Partitions {
			entries, buckets, volume := p.Stats()
			stats[i] = partitionStats{Index: i, Entries: entries, Buckets: buckets, Volume: volume}
		}
		return cmdResponse{OK: true, Partitions: stats}
	case "flush_all":
		for _, p := range table.Partitions {
			p.Flush()
		}
		return cmdResponse{OK: true}
	default:
		return cmdResponse{OK: false, Error: "unknown command"}
	}
}

// connReader adapts netio.Socket's Read to io.Reader for bufio, since
// Socket has no deadline-free plain Read guarantee documented beyond
// what net.Conn already provides through netio.NewSocket.
type connReader struct{ sock netio.Socket }

func (r connReader) Read(p []byte) (int, error) { return r.sock.Read(p) }
