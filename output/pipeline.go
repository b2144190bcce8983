// Package output moves completion timestamps from benchmark workers to a sink
// without letting the workers wait on I/O.
//
// Each worker appends records to a private buffer through a Slot. Full
// buffers are handed off to a FIFO queue that a single consumer goroutine
// drains into the sink. A buffer belongs to exactly one party at a time: the
// worker filling it, the queue, or the consumer writing it.
package output

import (
	"io"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"clientbench/metrics"
)

const (
	BufferSize = 100 * 1024

	// Free space that must remain in a buffer before appending a record.
	recordReserve = 64
)

var ErrClosed = errors.New("output pipeline is shut down")

type buffer struct {
	data []byte
}

type failure struct {
	err error
}

type Pipeline struct {
	w       io.Writer
	metrics *metrics.Run
	pool    sync.Pool

	mu           sync.Mutex
	cond         *sync.Cond
	queue        []*buffer
	active       bool
	shuttingDown bool

	failed atomic.Pointer[failure]
	done   chan struct{}
}

type Option func(*Pipeline)

func WithMetrics(m *metrics.Run) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// New starts the consumer goroutine writing to w.
func New(w io.Writer, opts ...Option) *Pipeline {
	p := &Pipeline{
		w:      w,
		active: true,
		done:   make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	p.pool.New = func() any {
		return &buffer{data: make([]byte, 0, BufferSize)}
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.consume()
	return p
}

// NewSlot returns a buffer handle for one producer. Slots are not safe for
// concurrent use.
func (p *Pipeline) NewSlot() *Slot {
	return &Slot{p: p}
}

// Err returns the first error writing to the sink, if any.
func (p *Pipeline) Err() error {
	if f := p.failed.Load(); f != nil {
		return f.err
	}
	return nil
}

// Close stops accepting buffers, waits until everything already handed off
// has been written and returns the first sink error. It is safe to call more
// than once.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if !p.shuttingDown {
		p.shuttingDown = true
		p.cond.Broadcast()
	}
	for p.active {
		p.cond.Wait()
	}
	p.mu.Unlock()

	<-p.done
	return p.Err()
}

func (p *Pipeline) handoff(buf *buffer) error {
	p.mu.Lock()
	if p.shuttingDown {
		p.mu.Unlock()
		p.release(buf)
		return ErrClosed
	}
	p.queue = append(p.queue, buf)
	p.cond.Broadcast()
	p.mu.Unlock()
	return nil
}

// take blocks until a buffer is queued. It returns false once the pipeline
// is shutting down and the queue is empty.
func (p *Pipeline) take() (*buffer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 {
		if p.shuttingDown {
			return nil, false
		}
		p.cond.Wait()
	}
	buf := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return buf, true
}

func (p *Pipeline) consume() {
	defer close(p.done)

	for {
		buf, ok := p.take()
		if !ok {
			break
		}
		// After a sink failure the remaining buffers are only drained, so
		// that Close still returns.
		if p.Err() == nil {
			if err := p.writeAll(buf.data); err != nil {
				p.failed.CompareAndSwap(nil, &failure{err: err})
			} else {
				p.metrics.BufferWritten(len(buf.data))
			}
		}
		p.release(buf)
	}

	p.mu.Lock()
	p.active = false
	p.cond.Broadcast()
	p.mu.Unlock()
}

func (p *Pipeline) writeAll(data []byte) error {
	for len(data) > 0 {
		n, err := p.w.Write(data)
		if err != nil {
			return errors.Wrap(err, "write output")
		}
		if n == 0 {
			return errors.Wrap(io.ErrShortWrite, "unexpected end of output")
		}
		data = data[n:]
	}
	return nil
}

func (p *Pipeline) acquire() *buffer {
	return p.pool.Get().(*buffer)
}

func (p *Pipeline) release(buf *buffer) {
	buf.data = buf.data[:0]
	p.pool.Put(buf)
}

// Slot is a producer's current buffer.
type Slot struct {
	p   *Pipeline
	buf *buffer
}

// Write appends ts as a decimal line. It hands the current buffer off first
// when it is nearly full; it never writes to the sink itself.
func (s *Slot) Write(ts int64) error {
	if s.buf != nil && cap(s.buf.data)-len(s.buf.data) < recordReserve {
		if err := s.Flush(); err != nil {
			return err
		}
	}
	if s.buf == nil {
		s.buf = s.p.acquire()
	}
	s.buf.data = strconv.AppendInt(s.buf.data, ts, 10)
	s.buf.data = append(s.buf.data, '\n')
	return nil
}

// Flush hands off the current buffer, if it holds anything, and clears the
// slot.
func (s *Slot) Flush() error {
	buf := s.buf
	s.buf = nil
	if buf == nil {
		return nil
	}
	if len(buf.data) == 0 {
		s.p.release(buf)
		return nil
	}
	return s.p.handoff(buf)
}
