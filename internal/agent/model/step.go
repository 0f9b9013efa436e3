package model

// StepType tags an AgentStep for display.
type StepType string

const (
	StepThinking   StepType = "thinking"
	StepToolUse    StepType = "tool_use"
	StepToolResult StepType = "tool_result"
	StepText       StepType = "text"
	StepError      StepType = "error"
	StepComplete   StepType = "complete"
)

// AgentStep is one progress record emitted while a session runs.
type AgentStep struct {
	ID        string   `json:"id"`
	Type      StepType `json:"type"`
	Content   string   `json:"content"`
	ToolName  string   `json:"toolName,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// EventType tags a record on the session stream.
type EventType string

const (
	EventStep      EventType = "step"
	EventItinerary EventType = "itinerary"
	EventDone      EventType = "done"
)

// Event is the wire record of the session stream: exactly one of Step or Itinerary is set
// for step and itinerary events, neither for done.
type Event struct {
	Type      EventType  `json:"type"`
	Step      *AgentStep `json:"step,omitempty"`
	Itinerary *Itinerary `json:"itinerary,omitempty"`
	// TripID is set on itinerary events when the plan was saved.
	TripID string `json:"tripId,omitempty"`
}
