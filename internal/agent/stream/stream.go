package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/wayfarer-planner/server/internal/agent/model"
)

var (
	// ErrClosed is returned for any write after the done marker.
	ErrClosed = errors.New("stream: session already done")
	// ErrDuplicateItinerary is returned when a second itinerary is emitted.
	ErrDuplicateItinerary = errors.New("stream: itinerary already emitted")
)

// Emitter publishes the progress of one planning session.
type Emitter interface {
	Step(step model.AgentStep) error
	Itinerary(it *model.Itinerary) error
	Done() error
}

// Sink receives each encoded event as soon as it is produced.
type Sink interface {
	Send(event []byte) error
}

type SinkFunc func(event []byte) error

func (f SinkFunc) Send(event []byte) error { return f(event) }

// Stream is the Emitter over a Sink. It allows at most one itinerary and exactly one done
// marker, after which nothing more is written. The first sink failure cancels the session.
type Stream struct {
	mu        sync.Mutex
	sink      Sink
	cancel    context.CancelFunc
	itinerary bool
	done      bool
	err       error
}

// New returns a Stream writing to sink. cancel may be nil.
func New(sink Sink, cancel context.CancelFunc) *Stream {
	return &Stream{sink: sink, cancel: cancel}
}

func (s *Stream) Step(step model.AgentStep) error {
	return s.emit(model.Event{Type: model.EventStep, Step: &step})
}

func (s *Stream) Itinerary(it *model.Itinerary) error {
	return s.SavedItinerary(it, "")
}

// SavedItinerary emits the itinerary together with the id it was stored under.
func (s *Stream) SavedItinerary(it *model.Itinerary, tripID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.itinerary {
		return ErrDuplicateItinerary
	}
	if err := s.writeLocked(model.Event{Type: model.EventItinerary, Itinerary: it, TripID: tripID}); err != nil {
		return err
	}
	s.itinerary = true
	return nil
}

// Done writes the terminal marker. Calling it twice returns ErrClosed.
func (s *Stream) Done() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.writeLocked(model.Event{Type: model.EventDone})
	if errors.Is(err, ErrClosed) {
		return err
	}
	s.done = true
	return err
}

// Closed reports whether the done marker was written or attempted.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Err returns the first sink failure, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) emit(ev model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(ev)
}

func (s *Stream) writeLocked(ev model.Event) error {
	if s.done {
		return ErrClosed
	}
	if s.err != nil {
		return s.err
	}
	b, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := s.sink.Send(b); err != nil {
		s.err = fmt.Errorf("stream: send %s: %w", ev.Type, err)
		if s.cancel != nil {
			s.cancel()
		}
		return s.err
	}
	return nil
}

// Encode serialises one event as it appears on the wire.
func Encode(ev model.Event) ([]byte, error) {
	b, err := sonic.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("stream: encode %s: %w", ev.Type, err)
	}
	return b, nil
}

// Decode parses one wire event.
func Decode(b []byte) (model.Event, error) {
	var ev model.Event
	if err := sonic.Unmarshal(b, &ev); err != nil {
		return model.Event{}, fmt.Errorf("stream: decode: %w", err)
	}
	return ev, nil
}
