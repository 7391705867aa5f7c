package protocol

import (
	"testing"

	"github.com/mainmemory/mainmemory/action"
	"github.com/mainmemory/mainmemory/iobuf"
	"github.com/mainmemory/mainmemory/mcache"
)

func newTestTable() (*mcache.Table, *action.LockingStrategy) {
	table := mcache.NewTable(1, 1024, 1<<20, 4096)
	strategy := action.NewLockingStrategy(1)
	return table, strategy
}

func parseOne(t *testing.T, line string) *Command {
	t.Helper()
	buf := iobuf.NewBuffer()
	feed(buf, line)
	p := NewParser()
	cmd, needMore := p.Next(buf)
	if needMore {
		t.Fatalf("parser needs more data for %q", line)
	}
	return cmd
}

func TestSetThenGetRoundTrips(t *testing.T) {
	table, strategy := newTestTable()

	buf := iobuf.NewBuffer()
	feed(buf, "set foo 0 0 5\r\nhello\r\n")
	p := NewParser()
	setCmd, needMore := p.Next(buf)
	if needMore {
		t.Fatal("unexpected needMore")
	}
	Process(setCmd, table, strategy, nil, nil, nil, buf)
	if setCmd.ResultKind != ResultReply || string(setCmd.ReplyBytes) != "STORED\r\n" {
		t.Fatalf("expected STORED, got %v %q", setCmd.ResultKind, setCmd.ReplyBytes)
	}

	getCmd := parseOne(t, "get foo\r\n")
	Process(getCmd, table, strategy, nil, nil, nil, buf)
	if getCmd.ResultKind != ResultEntry {
		t.Fatalf("expected ResultEntry, got %v", getCmd.ResultKind)
	}
	if len(getCmd.Entries) != 1 || getCmd.Entries[0] == nil {
		t.Fatal("expected one matching entry")
	}
	if string(getCmd.Entries[0].Value) != "hello" {
		t.Fatalf("unexpected value: %q", getCmd.Entries[0].Value)
	}
}

func TestAddFailsWhenKeyExists(t *testing.T) {
	table, strategy := newTestTable()
	buf := iobuf.NewBuffer()

	feed(buf, "set foo 0 0 1\r\nx\r\n")
	p := NewParser()
	setCmd, _ := p.Next(buf)
	Process(setCmd, table, strategy, nil, nil, nil, buf)

	feed(buf, "add foo 0 0 1\r\ny\r\n")
	addCmd, needMore := p.Next(buf)
	if needMore {
		t.Fatal("unexpected needMore")
	}
	Process(addCmd, table, strategy, nil, nil, nil, buf)
	if string(addCmd.ReplyBytes) != "NOT_STORED\r\n" {
		t.Fatalf("expected NOT_STORED, got %q", addCmd.ReplyBytes)
	}
}

func TestDeleteMissingKeyIsNotFound(t *testing.T) {
	table, strategy := newTestTable()
	cmd := parseOne(t, "delete nope\r\n")
	Process(cmd, table, strategy, nil, nil, nil, nil)
	if string(cmd.ReplyBytes) != "NOT_FOUND\r\n" {
		t.Fatalf("expected NOT_FOUND, got %q", cmd.ReplyBytes)
	}
}

func TestIncrOnNonNumericValue(t *testing.T) {
	table, strategy := newTestTable()
	buf := iobuf.NewBuffer()
	feed(buf, "set n 0 0 3\r\nabc\r\n")
	p := NewParser()
	setCmd, _ := p.Next(buf)
	Process(setCmd, table, strategy, nil, nil, nil, buf)

	feed(buf, "incr n 1\r\n")
	incrCmd, needMore := p.Next(buf)
	if needMore {
		t.Fatal("unexpected needMore")
	}
	Process(incrCmd, table, strategy, nil, nil, nil, buf)
	if string(incrCmd.ReplyBytes) != "CLIENT_ERROR cannot increment or decrement non-numeric value\r\n" {
		t.Fatalf("unexpected reply: %q", incrCmd.ReplyBytes)
	}
}

func TestCasStaleTokenIsExistsThenCorrectTokenStores(t *testing.T) {
	table, strategy := newTestTable()
	buf := iobuf.NewBuffer()
	feed(buf, "set foo 0 0 5\r\nhello\r\n")
	p := NewParser()
	setCmd, _ := p.Next(buf)
	Process(setCmd, table, strategy, nil, nil, nil, buf)
	if string(setCmd.ReplyBytes) != "STORED\r\n" {
		t.Fatalf("expected STORED, got %q", setCmd.ReplyBytes)
	}

	getsCmd := parseOne(t, "gets foo\r\n")
	Process(getsCmd, table, strategy, nil, nil, nil, buf)
	if getsCmd.ResultKind != ResultEntryCas || getsCmd.Entries[0] == nil {
		t.Fatalf("expected a CAS-bearing entry, got %v", getsCmd.ResultKind)
	}
	staleToken := getsCmd.Entries[0].Stamp

	feed(buf, "cas foo 0 0 5 999999\r\nworld\r\n")
	staleCasCmd, needMore := p.Next(buf)
	if needMore {
		t.Fatal("unexpected needMore")
	}
	Process(staleCasCmd, table, strategy, nil, nil, nil, buf)
	if string(staleCasCmd.ReplyBytes) != "EXISTS\r\n" {
		t.Fatalf("expected EXISTS for a stale cas token, got %q", staleCasCmd.ReplyBytes)
	}

	feed(buf, "cas foo 0 0 5 "+itoa(int(staleToken))+"\r\nworld\r\n")
	goodCasCmd, needMore := p.Next(buf)
	if needMore {
		t.Fatal("unexpected needMore")
	}
	Process(goodCasCmd, table, strategy, nil, nil, nil, buf)
	if string(goodCasCmd.ReplyBytes) != "STORED\r\n" {
		t.Fatalf("expected STORED for the correct cas token, got %q", goodCasCmd.ReplyBytes)
	}

	getCmd := parseOne(t, "get foo\r\n")
	Process(getCmd, table, strategy, nil, nil, nil, buf)
	if string(getCmd.Entries[0].Value) != "world" {
		t.Fatalf("expected value updated by the winning cas, got %q", getCmd.Entries[0].Value)
	}
}

func TestFlushAllClearsEveryPartition(t *testing.T) {
	table, strategy := newTestTable()
	buf := iobuf.NewBuffer()
	feed(buf, "set foo 0 0 1\r\nx\r\n")
	p := NewParser()
	setCmd, _ := p.Next(buf)
	Process(setCmd, table, strategy, nil, nil, nil, buf)

	flushCmd := parseOne(t, "flush_all\r\n")
	Process(flushCmd, table, strategy, nil, nil, nil, nil)
	if string(flushCmd.ReplyBytes) != "OK\r\n" {
		t.Fatalf("expected OK, got %q", flushCmd.ReplyBytes)
	}

	getCmd := parseOne(t, "get foo\r\n")
	Process(getCmd, table, strategy, nil, nil, nil, nil)
	if getCmd.Entries[0] != nil {
		t.Fatal("expected key to be gone after flush_all")
	}
}
