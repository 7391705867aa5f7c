//go:build linux

package event

import (
	"golang.org/x/sys/unix"
)

const maxEpollEvents = 256

// EpollBackend implements Backend over Linux epoll, grounded on
// joeycumines-go-utilpkg/eventloop/poller_linux.go's EpollCreate1 /
// EpollCtl / EpollWait sequence and its one-shot re-arm handling.
type EpollBackend struct {
	epfd int
	pipe *selfPipe
	buf  [maxEpollEvents]unix.EpollEvent
}

func New() Backend { return &EpollBackend{} }

func (b *EpollBackend) Prepare() error {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	b.epfd = fd

	pipe, err := newSelfPipe()
	if err != nil {
		unix.Close(b.epfd)
		return err
	}
	b.pipe = pipe

	ev := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(pipe.r)}
	if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, pipe.r, ev); err != nil {
		pipe.close()
		unix.Close(b.epfd)
		return err
	}
	return nil
}

func (b *EpollBackend) Cleanup() error {
	err := unix.Close(b.epfd)
	if perr := b.pipe.close(); err == nil {
		err = perr
	}
	return err
}

func (b *EpollBackend) Wake() error { return b.pipe.wake() }

func (b *EpollBackend) applyChange(c Change) error {
	switch c.Op {
	case Unregister:
		return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, c.Fd, nil)
	case Register, Rearm:
		var events uint32
		if c.WatchInput {
			events |= unix.EPOLLIN
			if c.InputOneShot {
				events |= unix.EPOLLONESHOT
			}
		}
		if c.WatchOutput {
			events |= unix.EPOLLOUT
			if c.OutputOneShot {
				events |= unix.EPOLLONESHOT
			}
		}
		ev := &unix.EpollEvent{Events: events, Fd: int32(c.Fd)}
		op := unix.EPOLL_CTL_ADD
		if c.Op == Rearm {
			op = unix.EPOLL_CTL_MOD
		}
		err := unix.EpollCtl(b.epfd, op, c.Fd, ev)
		if c.Op == Register && err == unix.EEXIST {
			return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, c.Fd, ev)
		}
		return err
	}
	return nil
}

func (b *EpollBackend) Listen(changes []Change, out []Delivery, timeoutMs int) ([]Delivery, error) {
	for _, c := range changes {
		if err := b.applyChange(c); err != nil {
			return out, err
		}
	}

	n, err := unix.EpollWait(b.epfd, b.buf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return out, nil
		}
		return out, err
	}

	for i := 0; i < n; i++ {
		ev := b.buf[i]
		fd := int(ev.Fd)
		if fd == b.pipe.r {
			b.pipe.drain()
			continue
		}
		if ev.Events&(unix.EPOLLERR) != 0 {
			out = append(out, Delivery{Fd: fd, Kind: InputError})
		}
		if ev.Events&unix.EPOLLHUP != 0 {
			out = append(out, Delivery{Fd: fd, Kind: InputError})
		}
		if ev.Events&unix.EPOLLIN != 0 {
			out = append(out, Delivery{Fd: fd, Kind: Input})
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			out = append(out, Delivery{Fd: fd, Kind: Output})
		}
	}
	return out, nil
}
