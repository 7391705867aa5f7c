package protocol

import (
	"os"
	"strconv"

	"github.com/mainmemory/mainmemory/mcache"
)

// parseUint64 mirrors memcached's incr/decr numeric-value rule: the
// stored value must be an unsigned base-10 integer with no extra
// characters, not just a best-effort prefix parse.
func parseUint64(value []byte) (uint64, error) {
	return strconv.ParseUint(string(value), 10, 64)
}

func numericValue(v uint64) []byte {
	return strconv.AppendUint(nil, v, 10)
}

// processStats fills in a genuine, if minimal, STAT listing aggregated
// across every partition — spec.md §9's Open Question (2) decision to
// implement stats for real rather than stub it.
func processStats(cmd *Command, table *mcache.Table) {
	var entries uint32
	var buckets uint32
	var volume int64
	for _, part := range table.Partitions {
		e, b, v := part.Stats()
		entries += e
		buckets += b
		volume += v
	}
	out := make([]byte, 0, 128)
	out = appendStat(out, "pid", strconv.Itoa(os.Getpid()))
	out = appendStat(out, "curr_items", strconv.FormatUint(uint64(entries), 10))
	out = appendStat(out, "total_buckets", strconv.FormatUint(uint64(buckets), 10))
	out = appendStat(out, "bytes", strconv.FormatInt(volume, 10))
	out = appendStat(out, "partitions", strconv.Itoa(table.PartitionCount()))
	out = append(out, replyEnd...)
	cmd.ResultKind, cmd.ReplyBytes = ResultReply, out
}

// processSlabs reports one pseudo-slab per partition: spec.md's
// memcache table has no slab allocator of its own to report on (a Go
// map/chain bucket array instead of fixed-size slab classes), so this
// reports the partition-level bucket/entry/volume counts real slabs
// stats would otherwise carry — genuine numbers, just not slab classes.
func processSlabs(cmd *Command, table *mcache.Table) {
	out := make([]byte, 0, 128)
	for i, part := range table.Partitions {
		entries, buckets, volume := part.Stats()
		out = appendStat(out, "slab:"+strconv.Itoa(i)+":chunks_per_page", strconv.FormatUint(uint64(buckets), 10))
		out = appendStat(out, "slab:"+strconv.Itoa(i)+":used_chunks", strconv.FormatUint(uint64(entries), 10))
		out = appendStat(out, "slab:"+strconv.Itoa(i)+":mem_requested", strconv.FormatInt(volume, 10))
	}
	out = append(out, replyEnd...)
	cmd.ResultKind, cmd.ReplyBytes = ResultReply, out
}

func appendStat(out []byte, name, value string) []byte {
	out = append(out, "STAT "...)
	out = append(out, name...)
	out = append(out, ' ')
	out = append(out, value...)
	out = append(out, '\r', '\n')
	return out
}
