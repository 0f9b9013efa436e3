package model

import (
	"context"
)

// TripRepository keeps completed plans.
type TripRepository interface {
	// Save stores trip, overwriting any trip with the same id.
	Save(ctx context.Context, trip *SavedTrip) error

	// Get returns the trip or an errx not-found error.
	Get(ctx context.Context, id string) (*SavedTrip, error)

	// List returns saved trips, newest first.
	List(ctx context.Context) ([]*SavedTrip, error)

	// Delete removes the trip; deleting a missing trip is not an error.
	Delete(ctx context.Context, id string) error
}

// TranscriptRepository keeps the events of a session so a client can replay them.
type TranscriptRepository interface {
	// Append adds one encoded event to the session log.
	Append(ctx context.Context, sessionID string, event []byte) error

	// Load returns the session log in emission order.
	Load(ctx context.Context, sessionID string) ([][]byte, error)
}
