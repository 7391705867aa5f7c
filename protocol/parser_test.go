package protocol

import (
	"testing"

	"github.com/mainmemory/mainmemory/iobuf"
)

func feed(buf *iobuf.Buffer, s string) {
	area := buf.WriteArea()
	n := copy(area, s)
	buf.CommitWrite(n)
	if n < len(s) {
		feed(buf, s[n:])
	}
}

func TestParserNeedsMoreOnPartialLine(t *testing.T) {
	buf := iobuf.NewBuffer()
	feed(buf, "get foo")
	p := NewParser()
	_, needMore := p.Next(buf)
	if !needMore {
		t.Fatal("expected needMore for a line with no terminator yet")
	}
}

func TestParserGetSplitsKeys(t *testing.T) {
	buf := iobuf.NewBuffer()
	feed(buf, "get foo bar\r\n")
	p := NewParser()
	cmd, needMore := p.Next(buf)
	if needMore {
		t.Fatal("unexpected needMore")
	}
	if cmd.Kind != CmdGet || len(cmd.Keys) != 2 {
		t.Fatalf("got kind=%v keys=%v", cmd.Kind, cmd.Keys)
	}
	if string(cmd.Keys[0]) != "foo" || string(cmd.Keys[1]) != "bar" {
		t.Fatalf("unexpected keys: %q", cmd.Keys)
	}
}

func TestParserSetNeedsMoreUntilPayloadArrives(t *testing.T) {
	buf := iobuf.NewBuffer()
	feed(buf, "set foo 0 0 5\r\n")
	p := NewParser()
	_, needMore := p.Next(buf)
	if !needMore {
		t.Fatal("expected needMore before payload bytes arrive")
	}

	feed(buf, "hello\r\n")
	cmd, needMore := p.Next(buf)
	if needMore {
		t.Fatal("unexpected needMore once payload is present")
	}
	if cmd.Kind != CmdSet || cmd.Bytes != 5 {
		t.Fatalf("got kind=%v bytes=%d", cmd.Kind, cmd.Bytes)
	}
}

func TestParserSetRejectsOversizedValue(t *testing.T) {
	buf := iobuf.NewBuffer()
	size := maxValueSize + 1
	feed(buf, "set foo 0 0 "+itoa(size)+"\r\n")
	// Feed a payload of the declared size plus terminator, so the
	// parser has enough bytes to notice it's oversized rather than
	// stalling on needMore forever.
	payload := make([]byte, size+2)
	for i := range payload[:size] {
		payload[i] = 'x'
	}
	payload[size] = '\r'
	payload[size+1] = '\n'
	area := buf.WriteArea()
	for len(payload) > 0 {
		n := copy(area, payload)
		buf.CommitWrite(n)
		payload = payload[n:]
		area = buf.WriteArea()
	}

	p := NewParser()
	cmd, needMore := p.Next(buf)
	if needMore {
		t.Fatal("unexpected needMore")
	}
	if cmd.ResultKind != ResultReply {
		t.Fatalf("expected a terminal reply for an oversized value, got %v", cmd.ResultKind)
	}
	if string(cmd.ReplyBytes[:len("SERVER_ERROR")]) != "SERVER_ERROR" {
		t.Fatalf("expected SERVER_ERROR reply, got %q", cmd.ReplyBytes)
	}
}

func TestParserUnknownCommandIsProtocolError(t *testing.T) {
	buf := iobuf.NewBuffer()
	feed(buf, "bogus\r\n")
	p := NewParser()
	cmd, needMore := p.Next(buf)
	if needMore {
		t.Fatal("unexpected needMore")
	}
	if cmd.ResultKind != ResultReply || string(cmd.ReplyBytes) != "ERROR\r\n" {
		t.Fatalf("expected ERROR reply, got %q", cmd.ReplyBytes)
	}
}

func TestParserQuit(t *testing.T) {
	buf := iobuf.NewBuffer()
	feed(buf, "quit\r\n")
	p := NewParser()
	cmd, needMore := p.Next(buf)
	if needMore {
		t.Fatal("unexpected needMore")
	}
	if cmd.ResultKind != ResultQuit {
		t.Fatalf("expected ResultQuit, got %v", cmd.ResultKind)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
