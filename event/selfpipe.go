package event

import "golang.org/x/sys/unix"

// selfPipe is spec.md §4.4's "one watched fd whose only job is to wake
// the listen call" — a non-blocking pipe the backend registers for
// read-readiness and whose bytes it drains without surfacing them as
// Deliveries.
type selfPipe struct {
	r, w int
}

func newSelfPipe() (*selfPipe, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	return &selfPipe{r: fds[0], w: fds[1]}, nil
}

func (p *selfPipe) close() error {
	err := unix.Close(p.r)
	if werr := unix.Close(p.w); err == nil {
		err = werr
	}
	return err
}

func (p *selfPipe) wake() error {
	var b [1]byte
	_, err := unix.Write(p.w, b[:])
	if err == unix.EAGAIN {
		// pipe already has a pending wake byte queued; Listen will see it.
		return nil
	}
	return err
}

// drain reads and discards every byte currently buffered in the pipe.
func (p *selfPipe) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(p.r, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}
