package courier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LocationStore keeps last-known courier positions in Redis under TTL
// keys. Fixes expire on their own; a missing key simply means no fresh
// position.
type LocationStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLocationStore constructs the store. ttl bounds how long a fix
// counts as known.
func NewLocationStore(client *redis.Client, ttl time.Duration) *LocationStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &LocationStore{client: client, ttl: ttl}
}

func locationKey(courierID int64) string {
	return fmt.Sprintf("courier:location:%d", courierID)
}

// Set stores the fix, refreshing the TTL.
func (s *LocationStore) Set(ctx context.Context, courierID int64, loc Location) error {
	payload, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, locationKey(courierID), payload, s.ttl).Err()
}

// Get returns the last known fix and whether one exists.
func (s *LocationStore) Get(ctx context.Context, courierID int64) (Location, bool, error) {
	payload, err := s.client.Get(ctx, locationKey(courierID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Location{}, false, nil
		}
		return Location{}, false, err
	}
	var loc Location
	if err := json.Unmarshal(payload, &loc); err != nil {
		return Location{}, false, err
	}
	return loc, true, nil
}
