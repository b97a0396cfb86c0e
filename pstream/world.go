// Package pstream is the in-process parallel runtime used to couple
// subdomains. Each rank runs in its own goroutine and talks to its peers
// through tagged mailboxes; blocking points all honour a world-wide abort so
// that a failing rank can never leave its neighbours waiting.
package pstream

import (
	"errors"
	"fmt"
	"sync"
)

// ErrAborted is raised on every rank that is blocked, or blocks later, after
// any rank has aborted the world.
var ErrAborted = errors.New("pstream: run aborted")

const mailboxDepth = 64

type boxKey struct {
	from, to, tag int
}

type message struct {
	data any
	ack  chan struct{} // non-nil for synchronous sends
}

type World struct {
	NProcs int

	mu    sync.Mutex
	boxes map[boxKey]chan *message

	abort     chan struct{}
	abortOnce sync.Once
	err       error
}

func NewWorld(nProcs int) (w *World) {
	if nProcs < 1 {
		panic(fmt.Errorf("pstream: world needs at least one rank, have %d", nProcs))
	}
	w = &World{
		NProcs: nProcs,
		boxes:  make(map[boxKey]chan *message),
		abort:  make(chan struct{}),
	}
	return
}

// Serial returns the communicator of a single rank world, for unpartitioned runs.
func Serial() *Comm {
	return &Comm{world: NewWorld(1), rank: 0}
}

// Run executes f once per rank, each in its own goroutine, and returns the
// first error raised by any rank. Panics are converted into errors and abort
// the remaining ranks.
func (w *World) Run(f func(c *Comm) error) error {
	var (
		wg = sync.WaitGroup{}
	)
	for rank := 0; rank < w.NProcs; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					if err, ok := r.(error); ok {
						w.Abort(fmt.Errorf("rank %d: %w", rank, err))
					} else {
						w.Abort(fmt.Errorf("rank %d: %v", rank, r))
					}
				}
			}()
			if err := f(&Comm{world: w, rank: rank}); err != nil {
				w.Abort(fmt.Errorf("rank %d: %w", rank, err))
			}
		}(rank)
	}
	wg.Wait()
	return w.Err()
}

// Abort stops the run. Only the first reason is kept.
func (w *World) Abort(err error) {
	w.abortOnce.Do(func() {
		w.mu.Lock()
		w.err = err
		w.mu.Unlock()
		close(w.abort)
	})
}

func (w *World) Aborted() bool {
	select {
	case <-w.abort:
		return true
	default:
		return false
	}
}

func (w *World) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *World) mailbox(from, to, tag int) chan *message {
	key := boxKey{from, to, tag}
	w.mu.Lock()
	defer w.mu.Unlock()
	box, ok := w.boxes[key]
	if !ok {
		box = make(chan *message, mailboxDepth)
		w.boxes[key] = box
	}
	return box
}

func (w *World) checkRank(rank int) {
	if rank < 0 || rank >= w.NProcs {
		panic(fmt.Errorf("pstream: rank %d out of range [0,%d)", rank, w.NProcs))
	}
}
