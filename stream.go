package deployment

import (
	"context"
	"sync"
)

// ProduceFunc generates the events of one stream.
//
// yield hands an event to the consumer and blocks until it is taken. It
// returns false once the consumer has closed the stream or the context is
// done; the producer must then stop and return promptly. Returning a non-nil
// error (or panicking) marks the stream as failed, which the consumer
// observes through Stream.Err.
type ProduceFunc func(ctx context.Context, yield func(Event) bool) error

// Stream is a pull-based, single-consumer sequence of events.
//
// Each call to Next is a suspension point: it blocks until the producer
// yields the next event (typically after an upstream network chunk arrives)
// or finishes. Close cancels the producer and waits for it to exit, so no
// background work outlives the consumer.
type Stream struct {
	cancel context.CancelFunc
	events chan Event
	done   chan struct{}

	// prodErr is written by the producer goroutine before events and done
	// are closed, and only read after one of them is.
	prodErr error

	// Owned by the consumer goroutine.
	cur      Event
	err      error
	finished bool

	closeOnce sync.Once
}

// NewStream starts produce in its own goroutine and returns the consumer side.
func NewStream(ctx context.Context, produce ProduceFunc) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		cancel: cancel,
		events: make(chan Event),
		done:   make(chan struct{}),
	}

	go s.run(ctx, produce)

	return s
}

// StreamOf returns a stream that yields the given events in order.
func StreamOf(events ...Event) *Stream {
	return NewStream(context.Background(), func(ctx context.Context, yield func(Event) bool) error {
		for _, ev := range events {
			if !yield(ev) {
				return ctx.Err()
			}
		}
		return nil
	})
}

func (s *Stream) run(ctx context.Context, produce ProduceFunc) {
	defer close(s.done)
	defer close(s.events)
	defer func() {
		if r := recover(); r != nil {
			s.prodErr = &PanicError{Value: r}
		}
	}()

	yield := func(ev Event) bool {
		// Check first so a cancelled stream never races a ready receiver.
		if ctx.Err() != nil {
			return false
		}
		select {
		case s.events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	s.prodErr = produce(ctx, yield)
}

// Next advances to the next event, blocking until one is available.
// It returns false when the stream is exhausted, failed, or closed.
func (s *Stream) Next() bool {
	if s.finished {
		return false
	}

	ev, ok := <-s.events
	if !ok {
		s.finished = true
		s.err = s.prodErr
		s.cancel()
		return false
	}

	s.cur = ev
	return true
}

// Current returns the event most recently produced by Next.
func (s *Stream) Current() Event {
	return s.cur
}

// Err returns the producer's failure once Next has returned false or the
// stream was closed. A stream that ended normally reports nil.
func (s *Stream) Err() error {
	if s.finished {
		return s.err
	}
	select {
	case <-s.done:
		return s.prodErr
	default:
		return nil
	}
}

// Close cancels the producer, waits for it to exit and releases its
// resources. It only touches the producer side, so it may be called from a
// goroutine other than the consumer, including while the consumer is blocked
// in Next. It is safe to call more than once and after the stream ended.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}

// Collect drains the stream and closes it.
func (s *Stream) Collect() ([]Event, error) {
	defer s.Close()

	var events []Event
	for s.Next() {
		events = append(events, s.Current())
	}
	return events, s.Err()
}
