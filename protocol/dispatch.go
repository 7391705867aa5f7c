package protocol

import (
	"github.com/mainmemory/mainmemory/action"
	"github.com/mainmemory/mainmemory/core"
	"github.com/mainmemory/mainmemory/iobuf"
	"github.com/mainmemory/mainmemory/mcache"
	"github.com/mainmemory/mainmemory/sched"
	"github.com/mainmemory/mainmemory/task"
)

// Process runs cmd's command, whose ResultKind must still be
// ResultNone, against table through strategy, filling in a terminal
// ResultKind/ReplyBytes/Entries. recvBuf is the connection's receive
// buffer, needed to materialize a `set`-family command's deferred
// payload splice (spec.md §4.6).
//
// Process is called directly from the connection's reader task — not
// posted as a separate work item — since a task is already a
// suspension point in this rewrite (package task's doc comment): the
// DelegateStrategy's cross-core hand-off blocks this same goroutine
// exactly as if Process had been posted and awaited, with one fewer
// hop.
func Process(cmd *Command, table *mcache.Table, strategy action.Strategy, disp *sched.Dispatcher, self *task.Task, callerCore *core.Core, recvBuf *iobuf.Buffer) {
	switch cmd.Kind {
	case CmdGet, CmdGets:
		processFetch(cmd, table, strategy, disp, self, callerCore)
	case CmdSet, CmdAdd, CmdReplace, CmdAppend, CmdPrepend, CmdCas:
		processStorage(cmd, table, strategy, disp, self, callerCore, recvBuf)
	case CmdIncr, CmdDecr:
		processArith(cmd, table, strategy, disp, self, callerCore)
	case CmdDelete:
		processDelete(cmd, table, strategy, disp, self, callerCore)
	case CmdTouch:
		processTouch(cmd, table, strategy, disp, self, callerCore)
	case CmdFlushAll:
		processFlushAll(cmd, table, strategy, disp, self, callerCore)
	case CmdStats:
		processStats(cmd, table)
	case CmdSlabs:
		processSlabs(cmd, table)
	case CmdVerbosity:
		cmd.ResultKind, cmd.ReplyBytes = ResultReply, replyOK
	}
	if cmd.NoReply && cmd.ResultKind == ResultReply {
		cmd.ResultKind, cmd.ReplyBytes = ResultBlank, nil
	}
}

func runAction(table *mcache.Table, strategy action.Strategy, disp *sched.Dispatcher, self *task.Task, callerCore *core.Core, partIndex int, d *action.Descriptor) {
	strategy.Execute(partIndex, d, disp, self, callerCore)
}

func finish(table *mcache.Table, strategy action.Strategy, disp *sched.Dispatcher, self *task.Task, callerCore *core.Core, part *mcache.Partition, partIndex int, e *mcache.Entry) {
	if e == nil {
		return
	}
	runAction(table, strategy, disp, self, callerCore, partIndex, &action.Descriptor{Kind: action.Finish, Part: part, OldEntry: e})
}

func cancel(table *mcache.Table, strategy action.Strategy, disp *sched.Dispatcher, self *task.Task, callerCore *core.Core, part *mcache.Partition, partIndex int, e *mcache.Entry) {
	if e == nil {
		return
	}
	runAction(table, strategy, disp, self, callerCore, partIndex, &action.Descriptor{Kind: action.Cancel, Part: part, NewEntry: e})
}

func processFetch(cmd *Command, table *mcache.Table, strategy action.Strategy, disp *sched.Dispatcher, self *task.Task, callerCore *core.Core) {
	cmd.Entries = make([]*mcache.Entry, len(cmd.Keys))
	cmd.entryParts = make([]entryPart, len(cmd.Keys))
	for i, key := range cmd.Keys {
		part, partIndex, hash := table.Route(key)
		d := &action.Descriptor{Kind: action.Lookup, Key: key, Hash: hash, Part: part}
		runAction(table, strategy, disp, self, callerCore, partIndex, d)
		cmd.Entries[i] = d.OldEntry
		cmd.entryParts[i] = entryPart{part: part, partIndex: partIndex}
	}
	if cmd.Kind == CmdGets {
		cmd.ResultKind = ResultEntryCas
	} else {
		cmd.ResultKind = ResultEntry
	}
}

func processStorage(cmd *Command, table *mcache.Table, strategy action.Strategy, disp *sched.Dispatcher, self *task.Task, callerCore *core.Core, recvBuf *iobuf.Buffer) {
	key := cmd.Keys[0]
	part, partIndex, hash := table.Route(key)

	value := make([]byte, cmd.Bytes)
	recvBuf.CopyFromCursor(cmd.payload.start, value)

	var old *mcache.Entry
	needLookup := cmd.Kind != CmdSet
	if needLookup {
		ld := &action.Descriptor{Kind: action.Lookup, Key: key, Hash: hash, Part: part}
		runAction(table, strategy, disp, self, callerCore, partIndex, ld)
		old = ld.OldEntry
	}

	switch cmd.Kind {
	case CmdAdd:
		if old != nil {
			finish(table, strategy, disp, self, callerCore, part, partIndex, old)
			cmd.ResultKind, cmd.ReplyBytes = ResultReply, replyNotStored
			return
		}
	case CmdReplace:
		if old == nil {
			cmd.ResultKind, cmd.ReplyBytes = ResultReply, replyNotStored
			return
		}
	case CmdAppend, CmdPrepend:
		if old == nil {
			cmd.ResultKind, cmd.ReplyBytes = ResultReply, replyNotStored
			return
		}
		if cmd.Kind == CmdAppend {
			value = concat(old.Value, value)
		} else {
			value = concat(value, old.Value)
		}
		cmd.Flags, cmd.Exptime = old.Flags, old.Exptime
	case CmdCas:
		if old == nil {
			cmd.ResultKind, cmd.ReplyBytes = ResultReply, replyNotFound
			return
		}
	}
	finish(table, strategy, disp, self, callerCore, part, partIndex, old)

	createDesc := &action.Descriptor{Kind: action.Create, Key: key, Part: part, CreateValue: value, CreateFlags: cmd.Flags, CreateExptime: cmd.Exptime}
	runAction(table, strategy, disp, self, callerCore, partIndex, createDesc)
	newEntry := createDesc.NewEntry

	switch cmd.Kind {
	case CmdSet, CmdReplace, CmdAppend, CmdPrepend:
		upsertDesc := &action.Descriptor{Kind: action.Upsert, Key: key, Hash: hash, Part: part, NewEntry: newEntry}
		runAction(table, strategy, disp, self, callerCore, partIndex, upsertDesc)
		maybeStride(table, strategy, disp, self, callerCore, part, partIndex, upsertDesc.NeedsStride)
		cmd.ResultKind, cmd.ReplyBytes = ResultReply, replyStored

	case CmdAdd:
		insertDesc := &action.Descriptor{Kind: action.Insert, Key: key, Hash: hash, Part: part, NewEntry: newEntry}
		runAction(table, strategy, disp, self, callerCore, partIndex, insertDesc)
		maybeStride(table, strategy, disp, self, callerCore, part, partIndex, insertDesc.NeedsStride)
		cmd.ResultKind, cmd.ReplyBytes = ResultReply, replyStored

	case CmdCas:
		updateDesc := &action.Descriptor{Kind: action.Update, Key: key, Hash: hash, Part: part, NewEntry: newEntry, MatchStamp: true, Stamp: cmd.CasUnique}
		runAction(table, strategy, disp, self, callerCore, partIndex, updateDesc)
		switch updateDesc.EntryMatch {
		case mcache.NoMatch:
			cancel(table, strategy, disp, self, callerCore, part, partIndex, newEntry)
			cmd.ResultKind, cmd.ReplyBytes = ResultReply, replyNotFound
		case mcache.StampMismatch:
			// Update's own default reference policy already released
			// OldEntry; only the never-inserted newEntry is ours to drop.
			cancel(table, strategy, disp, self, callerCore, part, partIndex, newEntry)
			cmd.ResultKind, cmd.ReplyBytes = ResultReply, replyExists
		case mcache.Matched:
			cmd.ResultKind, cmd.ReplyBytes = ResultReply, replyStored
		}
	}
}

func maybeStride(table *mcache.Table, strategy action.Strategy, disp *sched.Dispatcher, self *task.Task, callerCore *core.Core, part *mcache.Partition, partIndex int, needsStride bool) {
	if !needsStride {
		return
	}
	runAction(table, strategy, disp, self, callerCore, partIndex, &action.Descriptor{Kind: action.Stride, Part: part})
}

func processArith(cmd *Command, table *mcache.Table, strategy action.Strategy, disp *sched.Dispatcher, self *task.Task, callerCore *core.Core) {
	key := cmd.Keys[0]
	part, partIndex, hash := table.Route(key)

	ld := &action.Descriptor{Kind: action.Lookup, Key: key, Hash: hash, Part: part}
	runAction(table, strategy, disp, self, callerCore, partIndex, ld)
	old := ld.OldEntry
	if old == nil {
		cmd.ResultKind, cmd.ReplyBytes = ResultReply, replyNotFound
		return
	}

	cur, err := parseUint64(old.Value)
	if err != nil {
		finish(table, strategy, disp, self, callerCore, part, partIndex, old)
		cmd.ResultKind, cmd.ReplyBytes = ResultReply, replyNotNumeric
		return
	}

	var next uint64
	if cmd.Kind == CmdIncr {
		next = cur + uint64(cmd.Delta)
	} else if uint64(cmd.Delta) > cur {
		next = 0
	} else {
		next = cur - uint64(cmd.Delta)
	}
	nextValue := numericValue(next)

	createDesc := &action.Descriptor{Kind: action.Create, Key: key, Part: part, CreateValue: nextValue, CreateFlags: old.Flags, CreateExptime: old.Exptime}
	runAction(table, strategy, disp, self, callerCore, partIndex, createDesc)
	finish(table, strategy, disp, self, callerCore, part, partIndex, old)

	upsertDesc := &action.Descriptor{Kind: action.Upsert, Key: key, Hash: hash, Part: part, NewEntry: createDesc.NewEntry}
	runAction(table, strategy, disp, self, callerCore, partIndex, upsertDesc)
	maybeStride(table, strategy, disp, self, callerCore, part, partIndex, upsertDesc.NeedsStride)

	if cmd.NoReply {
		cmd.ResultKind = ResultBlank
		return
	}
	cmd.ResultKind, cmd.ReplyBytes = ResultReply, numericReply(next)
}

func processDelete(cmd *Command, table *mcache.Table, strategy action.Strategy, disp *sched.Dispatcher, self *task.Task, callerCore *core.Core) {
	key := cmd.Keys[0]
	part, partIndex, hash := table.Route(key)
	dd := &action.Descriptor{Kind: action.Delete, Key: key, Hash: hash, Part: part}
	runAction(table, strategy, disp, self, callerCore, partIndex, dd)
	if dd.OldEntry == nil {
		cmd.ResultKind, cmd.ReplyBytes = ResultReply, replyNotFound
		return
	}
	finish(table, strategy, disp, self, callerCore, part, partIndex, dd.OldEntry)
	cmd.ResultKind, cmd.ReplyBytes = ResultReply, replyDeleted
}

func processTouch(cmd *Command, table *mcache.Table, strategy action.Strategy, disp *sched.Dispatcher, self *task.Task, callerCore *core.Core) {
	key := cmd.Keys[0]
	part, partIndex, hash := table.Route(key)

	ld := &action.Descriptor{Kind: action.Lookup, Key: key, Hash: hash, Part: part}
	runAction(table, strategy, disp, self, callerCore, partIndex, ld)
	old := ld.OldEntry
	if old == nil {
		cmd.ResultKind, cmd.ReplyBytes = ResultReply, replyNotFound
		return
	}

	createDesc := &action.Descriptor{Kind: action.Create, Key: key, Part: part, CreateValue: old.Value, CreateFlags: old.Flags, CreateExptime: cmd.Exptime}
	runAction(table, strategy, disp, self, callerCore, partIndex, createDesc)
	finish(table, strategy, disp, self, callerCore, part, partIndex, old)

	upsertDesc := &action.Descriptor{Kind: action.Upsert, Key: key, Hash: hash, Part: part, NewEntry: createDesc.NewEntry}
	runAction(table, strategy, disp, self, callerCore, partIndex, upsertDesc)
	maybeStride(table, strategy, disp, self, callerCore, part, partIndex, upsertDesc.NeedsStride)
	cmd.ResultKind, cmd.ReplyBytes = ResultReply, replyTouched
}

func processFlushAll(cmd *Command, table *mcache.Table, strategy action.Strategy, disp *sched.Dispatcher, self *task.Task, callerCore *core.Core) {
	for i, part := range table.Partitions {
		runAction(table, strategy, disp, self, callerCore, i, &action.Descriptor{Kind: action.Flush, Part: part})
	}
	cmd.ResultKind, cmd.ReplyBytes = ResultReply, replyOK
}

func concat(a, b []byte) []byte {
	out := make([]byte, len(a)+len(b))
	copy(out, a)
	copy(out[len(a):], b)
	return out
}
