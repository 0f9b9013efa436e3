package trips

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/wayfarer-planner/server/internal/agent/model"
	errx "github.com/wayfarer-planner/server/internal/core/error"
	logx "github.com/wayfarer-planner/server/pkg/logger"
)

const tripIndexKey = "trips:index"

// RedisTripRepository stores each trip as a JSON string and keeps a sorted set of ids scored
// by creation time for listing.
type RedisTripRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisTripRepository(rdb redis.Cmdable, ttl time.Duration) *RedisTripRepository {
	return &RedisTripRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisTripRepository) tripKey(id string) string {
	return fmt.Sprintf("trip:%s", id)
}

func (r *RedisTripRepository) Save(ctx context.Context, trip *model.SavedTrip) error {
	b, err := sonic.Marshal(trip)
	if err != nil {
		logx.Error().Err(err).Str("tripID", trip.ID).Msg("failed to marshal trip")
		return fmt.Errorf("marshal trip: %w", err)
	}
	key := r.tripKey(trip.ID)

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, key, b, r.ttl)
	pipe.ZAdd(ctx, tripIndexKey, redis.Z{Score: float64(trip.CreatedAt.UnixMilli()), Member: trip.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save trip to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisTripRepository) Get(ctx context.Context, id string) (*model.SavedTrip, error) {
	key := r.tripKey(id)
	s, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errx.NotFound("Trip not found")
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load trip from redis")
		return nil, errx.WrapRedis(err)
	}
	var trip model.SavedTrip
	if err := sonic.UnmarshalString(s, &trip); err != nil {
		logx.Error().Err(err).Str("tripID", id).Msg("failed to unmarshal trip")
		return nil, fmt.Errorf("unmarshal trip %s: %w", id, err)
	}
	return &trip, nil
}

// List returns trips newest first. Index entries whose trip has expired are pruned.
func (r *RedisTripRepository) List(ctx context.Context) ([]*model.SavedTrip, error) {
	ids, err := r.rdb.ZRevRange(ctx, tripIndexKey, 0, -1).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", tripIndexKey).Msg("failed to read trip index")
		return nil, errx.WrapRedis(err)
	}
	if len(ids) == 0 {
		return []*model.SavedTrip{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.tripKey(id)
	}
	rows, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		logx.Error().Err(err).Msg("failed to load trips from redis")
		return nil, errx.WrapRedis(err)
	}

	out := make([]*model.SavedTrip, 0, len(rows))
	var stale []any
	for i, row := range rows {
		s, ok := row.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var trip model.SavedTrip
		if err := sonic.UnmarshalString(s, &trip); err != nil {
			logx.Warn().Err(err).Str("tripID", ids[i]).Msg("skipping unreadable trip")
			continue
		}
		out = append(out, &trip)
	}
	if len(stale) > 0 {
		if err := r.rdb.ZRem(ctx, tripIndexKey, stale...).Err(); err != nil {
			logx.Warn().Err(err).Int("count", len(stale)).Msg("failed to prune trip index")
		}
	}
	return out, nil
}

func (r *RedisTripRepository) Delete(ctx context.Context, id string) error {
	key := r.tripKey(id)
	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.ZRem(ctx, tripIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete trip from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

// RedisTranscriptRepository appends encoded events to a per-session list.
type RedisTranscriptRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisTranscriptRepository(rdb redis.Cmdable, ttl time.Duration) *RedisTranscriptRepository {
	return &RedisTranscriptRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisTranscriptRepository) transcriptKey(sessionID string) string {
	return fmt.Sprintf("session:%s:events", sessionID)
}

func (r *RedisTranscriptRepository) Append(ctx context.Context, sessionID string, event []byte) error {
	key := r.transcriptKey(sessionID)

	if err := r.rdb.RPush(ctx, key, event).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push event to redis")
		return errx.WrapRedis(err)
	}
	// extend TTL on touch
	if r.ttl > 0 {
		if ok, err := r.rdb.Expire(ctx, key, r.ttl).Result(); err != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to set expire")
			return errx.WrapRedis(err)
		} else if !ok {
			logx.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL on transcript key")
		}
	}
	return nil
}

func (r *RedisTranscriptRepository) Load(ctx context.Context, sessionID string) ([][]byte, error) {
	key := r.transcriptKey(sessionID)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return [][]byte{}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load transcript from redis")
		return nil, errx.WrapRedis(err)
	}
	out := make([][]byte, len(rows))
	for i, s := range rows {
		out[i] = []byte(s)
	}
	return out, nil
}

var (
	_ model.TripRepository       = (*RedisTripRepository)(nil)
	_ model.TranscriptRepository = (*RedisTranscriptRepository)(nil)
)
