package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/wayfarer-planner/server/internal/agent/model"
	errx "github.com/wayfarer-planner/server/internal/core/error"
)

// LocalStore keeps past plans on disk, one JSON file per trip.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// SaveResult stores the outcome of a session. The server's trip id is reused when it has one.
func (s *LocalStore) SaveResult(req model.TripRequest, state *State, now time.Time) (*model.SavedTrip, error) {
	it, tripID := state.Itinerary()
	if it == nil {
		return nil, errors.New("client: session produced no itinerary")
	}
	if tripID == "" {
		tripID = "trip-" + uuid.NewString()
	}
	trip := &model.SavedTrip{ID: tripID, Input: req, Itinerary: *it, CreatedAt: now.UTC()}
	return trip, s.Save(trip)
}

func (s *LocalStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return "", errx.Validation("invalid trip id %q", id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

func (s *LocalStore) Save(trip *model.SavedTrip) error {
	p, err := s.path(trip.ID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("client: create %s: %w", s.dir, err)
	}
	b, err := sonic.ConfigStd.MarshalIndent(trip, "", "  ")
	if err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (s *LocalStore) Load(id string) (*model.SavedTrip, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errx.NotFound("Trip not found")
	}
	if err != nil {
		return nil, err
	}
	var trip model.SavedTrip
	if err := sonic.Unmarshal(b, &trip); err != nil {
		return nil, fmt.Errorf("client: decode %s: %w", p, err)
	}
	return &trip, nil
}

// List returns the stored trips newest first. Unreadable files are skipped.
func (s *LocalStore) List() ([]*model.SavedTrip, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []*model.SavedTrip
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		trip, err := s.Load(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		out = append(out, trip)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes a stored trip; a missing trip is not an error.
func (s *LocalStore) Delete(id string) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
