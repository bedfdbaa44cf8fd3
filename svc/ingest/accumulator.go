// Package ingest turns a chunked request body into one bounded buffer.
//
// Accumulator is the per-request state machine. It knows nothing about
// HTTP: a transport calls Feed once per delivered chunk and marks the last
// one. Drain adapts an io.Reader to that contract.
package ingest

import (
	"github.com/pkg/errors"
)

var ErrClosed = errors.New("accumulator already finalized")

type State int

const (
	Receiving State = iota
	Complete
	Aborted
)

func (s State) String() string {
	switch s {
	case Receiving:
		return "receiving"
	case Complete:
		return "complete"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Accumulator holds at most max bytes. len(buf) is the number of bytes
// written so far and never exceeds cap(buf) == max.
type Accumulator struct {
	buf     []byte
	max     int
	dropped int64
	chunks  int
	state   State
}

func New(max int) *Accumulator {
	if max < 0 {
		max = 0
	}
	return &Accumulator{
		buf: make([]byte, 0, max),
		max: max,
	}
}

// Feed copies as much of chunk as the remaining budget allows and discards
// the rest. written advances on every chunk, terminal or not. When last is
// true the accumulator is finalized and done is true.
func (a *Accumulator) Feed(chunk []byte, last bool) (done bool, err error) {
	if a.state != Receiving {
		return false, ErrClosed
	}
	a.chunks++
	copySize := a.max - len(a.buf)
	if copySize > len(chunk) {
		copySize = len(chunk)
	}
	if copySize < 0 {
		copySize = 0
	}
	a.buf = append(a.buf, chunk[:copySize]...)
	a.dropped += int64(len(chunk) - copySize)
	if last {
		a.state = Complete
		return true, nil
	}
	return false, nil
}

// Abort drops the buffer. Safe to call more than once and after Complete.
func (a *Accumulator) Abort() {
	a.state = Aborted
	a.buf = nil
}

// Bytes returns the finalized buffer. It is nil until Feed saw the last chunk.
func (a *Accumulator) Bytes() []byte {
	if a.state != Complete {
		return nil
	}
	return a.buf
}
func (a *Accumulator) Written() int    { return len(a.buf) }
func (a *Accumulator) Max() int        { return a.max }
func (a *Accumulator) Remaining() int  { return a.max - len(a.buf) }
func (a *Accumulator) Dropped() int64  { return a.dropped }
func (a *Accumulator) Truncated() bool { return a.dropped > 0 }
func (a *Accumulator) Chunks() int     { return a.chunks }
func (a *Accumulator) State() State    { return a.state }
