package lazarus

import (
	"context"
	"errors"
	"sync"
)

// ErrStreamClosed indicates that the stream has been closed.
var ErrStreamClosed = errors.New("stream closed")

// RunStream delivers the ordered event sequence of one resurrection run.
// Events are produced as pipeline stages complete; the caller consumes them
// with the Next/Event pair.
type RunStream struct {
	ch        chan *Event
	curr      *Event
	err       error
	pub       *publisher
	closeOnce sync.Once
}

func newRunStream() (*RunStream, *publisher) {
	s := &RunStream{ch: make(chan *Event, 16)}
	p := &publisher{
		stream: s,
		done:   make(chan struct{}),
	}
	s.pub = p
	return s, p
}

// Next advances to the next event. It returns false when the stream is
// exhausted or the context is canceled.
func (s *RunStream) Next(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		s.err = ctx.Err()
		return false
	case event, ok := <-s.ch:
		if !ok {
			return false
		}
		s.curr = event
		return true
	}
}

// Event returns the current event.
func (s *RunStream) Event() *Event {
	return s.curr
}

// Err returns the error that ended iteration, if any.
func (s *RunStream) Err() error {
	return s.err
}

// Close signals that the caller no longer wants events. The producing run
// stops publishing but still finishes its side effects.
func (s *RunStream) Close() error {
	s.closeOnce.Do(func() {
		s.pub.stop()
	})
	return nil
}

// publisher is the producing side of a RunStream. Only the producer closes
// the event channel; a consumer-side Close only signals done, so a Send in
// flight never races a channel close.
type publisher struct {
	stream   *RunStream
	done     chan struct{}
	stopOnce sync.Once
	chOnce   sync.Once
}

func (p *publisher) Send(ctx context.Context, event *Event) error {
	select {
	case <-p.done:
		return ErrStreamClosed
	default:
		select {
		case <-p.done:
			return ErrStreamClosed
		case <-ctx.Done():
			return ctx.Err()
		case p.stream.ch <- event:
			return nil
		}
	}
}

func (p *publisher) stop() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
}

func (p *publisher) Close() {
	p.stop()
	p.chOnce.Do(func() {
		close(p.stream.ch)
	})
}
