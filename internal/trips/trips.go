// Package trips persists completed plans and the event logs of planning sessions.
package trips

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wayfarer-planner/server/internal/agent/model"
)

// NewTrip wraps an accepted itinerary for storage under a fresh id.
func NewTrip(req model.TripRequest, it model.Itinerary, now time.Time) *model.SavedTrip {
	return &model.SavedTrip{
		ID:        "trip-" + uuid.NewString(),
		Input:     req,
		Itinerary: it,
		CreatedAt: now.UTC(),
	}
}

// Stores bundles the repositories the server needs.
type Stores struct {
	Trips       model.TripRepository
	Transcripts model.TranscriptRepository
}

// NewStores picks Redis when a client is given and memory otherwise.
func NewStores(rdb redis.Cmdable, cfg model.TripStoreConfig) Stores {
	if rdb == nil {
		return Stores{
			Trips:       NewMemoryTripRepository(),
			Transcripts: NewMemoryTranscriptRepository(cfg.TranscriptTTL),
		}
	}
	return Stores{
		Trips:       NewRedisTripRepository(rdb, cfg.TTL),
		Transcripts: NewRedisTranscriptRepository(rdb, cfg.TranscriptTTL),
	}
}

// TranscriptSink writes encoded session events to a transcript. It outlives the request
// that started the session so the closing events are kept after a disconnect.
type TranscriptSink struct {
	ctx       context.Context
	repo      model.TranscriptRepository
	sessionID string
}

func NewTranscriptSink(ctx context.Context, repo model.TranscriptRepository, sessionID string) *TranscriptSink {
	return &TranscriptSink{ctx: context.WithoutCancel(ctx), repo: repo, sessionID: sessionID}
}

func (s *TranscriptSink) Send(event []byte) error {
	return s.repo.Append(s.ctx, s.sessionID, event)
}
