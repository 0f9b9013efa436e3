package client

import (
	"sync"

	"github.com/wayfarer-planner/server/internal/agent/model"
)

// State is what a client knows about a session after the events seen so far.
type State struct {
	mu        sync.Mutex
	steps     []model.AgentStep
	itinerary *model.Itinerary
	tripID    string
	done      bool
}

// Apply folds one event into the state. It rejects a second itinerary and anything after
// the done marker, leaving the state unchanged.
func (s *State) Apply(ev model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return ErrAfterDone
	}
	switch ev.Type {
	case model.EventStep:
		if ev.Step != nil {
			s.steps = append(s.steps, *ev.Step)
		}
	case model.EventItinerary:
		if s.itinerary != nil {
			return ErrSecondItinerary
		}
		s.itinerary = ev.Itinerary
		s.tripID = ev.TripID
	case model.EventDone:
		s.done = true
	}
	return nil
}

func (s *State) Steps() []model.AgentStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AgentStep, len(s.steps))
	copy(out, s.steps)
	return out
}

// Itinerary returns the accepted plan and the id the server stored it under, if any.
func (s *State) Itinerary() (*model.Itinerary, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itinerary, s.tripID
}

func (s *State) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// LastError returns the content of the most recent error step.
func (s *State) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.steps) - 1; i >= 0; i-- {
		if s.steps[i].Type == model.StepError {
			return s.steps[i].Content
		}
	}
	return ""
}
