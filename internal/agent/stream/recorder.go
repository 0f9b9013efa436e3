package stream

import (
	"errors"
	"sync"

	"github.com/wayfarer-planner/server/internal/agent/model"
)

// ErrSinkClosed is what a Recorder returns once its failure budget is spent.
var ErrSinkClosed = errors.New("stream: sink closed")

// Recorder is an in-memory Sink that keeps every frame it receives.
type Recorder struct {
	mu     sync.Mutex
	frames [][]byte
	// FailAfter makes every Send after the first FailAfter frames fail. Zero never fails.
	FailAfter int
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(event []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAfter > 0 && len(r.frames) >= r.FailAfter {
		return ErrSinkClosed
	}
	cp := make([]byte, len(event))
	copy(cp, event)
	r.frames = append(r.frames, cp)
	return nil
}

// Frames returns the raw encoded events in order.
func (r *Recorder) Frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.frames))
	copy(out, r.frames)
	return out
}

// Events decodes every recorded frame. Frames that fail to decode are skipped.
func (r *Recorder) Events() []model.Event {
	frames := r.Frames()
	out := make([]model.Event, 0, len(frames))
	for _, f := range frames {
		if ev, err := Decode(f); err == nil {
			out = append(out, ev)
		}
	}
	return out
}

// Steps returns the recorded steps in order.
func (r *Recorder) Steps() []model.AgentStep {
	var out []model.AgentStep
	for _, ev := range r.Events() {
		if ev.Type == model.EventStep && ev.Step != nil {
			out = append(out, *ev.Step)
		}
	}
	return out
}
