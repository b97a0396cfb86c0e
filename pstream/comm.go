package pstream

import (
	"fmt"
)

// Comm is one rank's view of the world. A Comm must only be used from the
// goroutine that World.Run handed it to.
type Comm struct {
	world   *World
	rank    int
	pending []*Request
}

func (c *Comm) MyRank() int      { return c.rank }
func (c *Comm) NProcs() int      { return c.world.NProcs }
func (c *Comm) Master() bool     { return c.rank == 0 }
func (c *Comm) Parallel() bool   { return c.world.NProcs > 1 }
func (c *Comm) World() *World    { return c.world }
func (c *Comm) Outstanding() int { return len(c.pending) }

// Abort stops every rank and unwinds the caller.
func (c *Comm) Abort(err error) {
	c.world.Abort(fmt.Errorf("rank %d: %w", c.rank, err))
	panic(ErrAborted)
}

// Request tracks a non-blocking operation until WaitAll.
type Request struct {
	done chan struct{}
}

func newRequest() *Request {
	return &Request{done: make(chan struct{})}
}

func (r *Request) Done() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Send posts a copy of src to rank "to". It returns as soon as the message
// is buffered.
func Send[T any](c *Comm, to, tag int, src []T) {
	c.world.checkRank(to)
	c.put(c.world.mailbox(c.rank, to, tag), &message{data: clone(src)})
}

// Ssend posts a copy of src and waits until the receiver has taken it. The
// scheduled communication mode relies on this rendezvous.
func Ssend[T any](c *Comm, to, tag int, src []T) {
	c.world.checkRank(to)
	msg := &message{data: clone(src), ack: make(chan struct{})}
	c.put(c.world.mailbox(c.rank, to, tag), msg)
	select {
	case <-msg.ack:
	case <-c.world.abort:
		panic(ErrAborted)
	}
}

// Recv blocks until the next message from rank "from" with this tag arrives
// and copies it into dst.
func Recv[T any](c *Comm, from, tag int, dst []T) {
	c.world.checkRank(from)
	box := c.world.mailbox(from, c.rank, tag)
	select {
	case msg := <-box:
		deliver(msg, dst, from, c.rank, tag)
	case <-c.world.abort:
		panic(ErrAborted)
	}
}

// Isend posts a copy of src without waiting for buffer space.
func Isend[T any](c *Comm, to, tag int, src []T) (req *Request) {
	c.world.checkRank(to)
	var (
		box = c.world.mailbox(c.rank, to, tag)
		msg = &message{data: clone(src)}
	)
	req = newRequest()
	select {
	case box <- msg:
		close(req.done)
	default:
		go func() {
			select {
			case box <- msg:
				close(req.done)
			case <-c.world.abort:
			}
		}()
	}
	c.pending = append(c.pending, req)
	return
}

// Irecv arranges for the next message from rank "from" to be copied into
// dst. dst must not be read before WaitAll returns.
func Irecv[T any](c *Comm, from, tag int, dst []T) (req *Request) {
	c.world.checkRank(from)
	var (
		box = c.world.mailbox(from, c.rank, tag)
		me  = c.rank
	)
	req = newRequest()
	go func() {
		select {
		case msg := <-box:
			defer func() {
				if r := recover(); r != nil {
					c.world.Abort(fmt.Errorf("rank %d: %v", me, r))
				}
			}()
			deliver(msg, dst, from, me, tag)
			close(req.done)
		case <-c.world.abort:
		}
	}()
	c.pending = append(c.pending, req)
	return
}

// WaitAll completes every outstanding non-blocking request of this rank.
func (c *Comm) WaitAll() {
	for _, req := range c.pending {
		select {
		case <-req.done:
		case <-c.world.abort:
			c.pending = nil
			panic(ErrAborted)
		}
	}
	c.pending = c.pending[:0]
}

func (c *Comm) put(box chan *message, msg *message) {
	select {
	case box <- msg:
	case <-c.world.abort:
		panic(ErrAborted)
	}
}

func clone[T any](src []T) []T {
	dst := make([]T, len(src))
	copy(dst, src)
	return dst
}

func deliver[T any](msg *message, dst []T, from, to, tag int) {
	if msg.ack != nil {
		defer close(msg.ack)
	}
	data, ok := msg.data.([]T)
	if !ok {
		panic(fmt.Errorf("pstream: message type mismatch from rank %d to %d, tag %d: have %T, want %T",
			from, to, tag, msg.data, dst))
	}
	if len(data) != len(dst) {
		panic(fmt.Errorf("pstream: message size mismatch from rank %d to %d, tag %d: have %d, want %d",
			from, to, tag, len(data), len(dst)))
	}
	copy(dst, data)
}
