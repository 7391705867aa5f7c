package protocol

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/mainmemory/mainmemory/action"
	"github.com/mainmemory/mainmemory/core"
	"github.com/mainmemory/mainmemory/mcache"
	"github.com/mainmemory/mainmemory/netio"
)

// e2eConn wires one Connection to a net.Pipe and drives its owning
// core's dispatcher on the calling goroutine, exercising spec.md §8's
// literal end-to-end scenarios through the real reader/writer tasks
// rather than calling Process directly.
type e2eConn struct {
	client net.Conn
	owner  *core.Core
	done   chan struct{}
}

func newE2EConn(t *testing.T, table *mcache.Table, strategy action.Strategy) *e2eConn {
	t.Helper()
	client, server := net.Pipe()
	owner := core.New(0, core.NewSystemClock(), 8)
	conn := NewConnection(owner, netio.NewSocket(server), table, strategy)
	conn.Spawn()

	e := &e2eConn{client: client, owner: owner, done: make(chan struct{})}
	go func() {
		defer close(e.done)
		deadline := time.Now().Add(2 * time.Second)
		idle := 0
		for time.Now().Before(deadline) {
			if owner.Dispatcher.Step() {
				idle = 0
			} else {
				idle++
				if idle > 20 {
					return
				}
				time.Sleep(time.Millisecond)
			}
			owner.Dispatcher.ReapDead()
		}
	}()
	t.Cleanup(func() {
		client.Close()
		<-e.done
	})
	return e
}

// exchange writes input, then reads until it has accumulated at least
// len(want) bytes or a per-read timeout trips.
func exchange(t *testing.T, e *e2eConn, input string, wantLen int) string {
	t.Helper()
	if _, err := io.WriteString(e.client, input); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	out := make([]byte, 0, wantLen)
	buf := make([]byte, 4096)
	deadline := time.Now().Add(2 * time.Second)
	for len(out) < wantLen && time.Now().Before(deadline) {
		e.client.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, err := e.client.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil && !isTimeout(err) {
			break
		}
	}
	return string(out)
}

func newE2ETable() (*mcache.Table, action.Strategy) {
	table := mcache.NewTable(2, 1024, 1<<20, 4096)
	return table, action.NewLockingStrategy(2)
}

func TestE2ESimpleSetGet(t *testing.T) {
	table, strategy := newE2ETable()
	e := newE2EConn(t, table, strategy)

	want := "STORED\r\nVALUE foo 7 3\r\nbar\r\nEND\r\n"
	got := exchange(t, e, "set foo 7 0 3\r\nbar\r\nget foo\r\n", len(want))
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestE2ENoReplyStorage(t *testing.T) {
	table, strategy := newE2ETable()
	e := newE2EConn(t, table, strategy)

	want := "VALUE x 0 1\r\n1\r\nEND\r\n"
	got := exchange(t, e, "set x 0 0 1 noreply\r\n1\r\nget x\r\n", len(want))
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestE2EPipelinedCrossPartition(t *testing.T) {
	table, strategy := newE2ETable()
	e := newE2EConn(t, table, strategy)

	want := "STORED\r\nSTORED\r\nVALUE a 0 1\r\n1\r\nVALUE b 0 1\r\n2\r\nEND\r\n"
	got := exchange(t, e, "set a 0 0 1\r\n1\r\nset b 0 0 1\r\n2\r\nget a b\r\n", len(want))
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestE2EMalformedCommandRecovers(t *testing.T) {
	table, strategy := newE2ETable()
	e := newE2EConn(t, table, strategy)

	want := "ERROR\r\nSTORED\r\n"
	got := exchange(t, e, "gimme cookies\r\nset k 0 0 1\r\nq\r\n", len(want))
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
