//go:build darwin || freebsd || netbsd || openbsd

package event

import (
	"golang.org/x/sys/unix"
)

const maxKqueueEvents = 256

// KqueueBackend implements Backend over BSD/Darwin kqueue, grounded on
// joeycumines-go-utilpkg/eventloop/poller_darwin.go's Kevent/Kqueue
// usage with EVFILT_READ/EVFILT_WRITE filters.
type KqueueBackend struct {
	kq   int
	pipe *selfPipe
	buf  [maxKqueueEvents]unix.Kevent_t
}

func New() Backend { return &KqueueBackend{} }

func (b *KqueueBackend) Prepare() error {
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	b.kq = kq

	pipe, err := newSelfPipe()
	if err != nil {
		unix.Close(b.kq)
		return err
	}
	b.pipe = pipe

	ev := unix.Kevent_t{
		Ident:  uint64(pipe.r),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}
	if _, err := unix.Kevent(b.kq, []unix.Kevent_t{ev}, nil, nil); err != nil {
		pipe.close()
		unix.Close(b.kq)
		return err
	}
	return nil
}

func (b *KqueueBackend) Cleanup() error {
	err := unix.Close(b.kq)
	if perr := b.pipe.close(); err == nil {
		err = perr
	}
	return err
}

func (b *KqueueBackend) Wake() error { return b.pipe.wake() }

func (b *KqueueBackend) applyChange(c Change) ([]unix.Kevent_t, error) {
	var kevs []unix.Kevent_t
	switch c.Op {
	case Unregister:
		kevs = append(kevs,
			unix.Kevent_t{Ident: uint64(c.Fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
			unix.Kevent_t{Ident: uint64(c.Fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
		)
	case Register, Rearm:
		if c.WatchInput {
			flags := uint16(unix.EV_ADD)
			if c.InputOneShot {
				flags |= unix.EV_ONESHOT
			}
			kevs = append(kevs, unix.Kevent_t{Ident: uint64(c.Fd), Filter: unix.EVFILT_READ, Flags: flags})
		}
		if c.WatchOutput {
			flags := uint16(unix.EV_ADD)
			if c.OutputOneShot {
				flags |= unix.EV_ONESHOT
			}
			kevs = append(kevs, unix.Kevent_t{Ident: uint64(c.Fd), Filter: unix.EVFILT_WRITE, Flags: flags})
		}
	}
	return kevs, nil
}

func (b *KqueueBackend) Listen(changes []Change, out []Delivery, timeoutMs int) ([]Delivery, error) {
	var kevs []unix.Kevent_t
	for _, c := range changes {
		cks, err := b.applyChange(c)
		if err != nil {
			return out, err
		}
		kevs = append(kevs, cks...)
	}
	if len(kevs) > 0 {
		if _, err := unix.Kevent(b.kq, kevs, nil, nil); err != nil {
			return out, err
		}
	}

	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
		ts = &t
	}
	n, err := unix.Kevent(b.kq, nil, b.buf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return out, nil
		}
		return out, err
	}

	for i := 0; i < n; i++ {
		ev := b.buf[i]
		fd := int(ev.Ident)
		if fd == b.pipe.r {
			b.pipe.drain()
			continue
		}
		if ev.Flags&unix.EV_EOF != 0 || ev.Flags&unix.EV_ERROR != 0 {
			out = append(out, Delivery{Fd: fd, Kind: InputError})
			continue
		}
		switch ev.Filter {
		case unix.EVFILT_READ:
			out = append(out, Delivery{Fd: fd, Kind: Input})
		case unix.EVFILT_WRITE:
			out = append(out, Delivery{Fd: fd, Kind: Output})
		}
	}
	return out, nil
}
