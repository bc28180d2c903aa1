package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neexbeast/tether/internal/saved"
	"github.com/neexbeast/tether/internal/weather"
)

const defaultTTL = time.Hour

// Cache wraps a Redis client and stores per-user saved lists and weather
// reports as JSON.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache. A non-positive ttl falls back to one hour.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func generationKey(kind saved.Kind) string {
	return "saved:" + string(kind) + ":gen"
}

// savedKey returns the key of the user's list under the current generation
// of kind. Bumping the generation retires every user's list at once.
func (c *Cache) savedKey(ctx context.Context, kind saved.Kind, userID string) (string, error) {
	gen, err := c.client.Get(ctx, generationKey(kind)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("cache get %s generation: %w", kind, err)
	}
	return fmt.Sprintf("saved:%s:v%d:%s", kind, gen, userID), nil
}

func weatherKey(city, country string) string {
	return "weather:" + strings.ToLower(strings.TrimSpace(city)) + ":" + strings.ToLower(strings.TrimSpace(country))
}

// GetFlights returns the cached saved-flight list of the user. The bool is
// false on a miss; an empty list is a valid hit.
func (c *Cache) GetFlights(ctx context.Context, userID string) ([]saved.FlightView, bool, error) {
	key, err := c.savedKey(ctx, saved.KindFlight, userID)
	if err != nil {
		return nil, false, err
	}
	var views []saved.FlightView
	hit, err := c.get(ctx, key, &views)
	return views, hit, err
}

// SetFlights caches the saved-flight list of the user.
func (c *Cache) SetFlights(ctx context.Context, userID string, views []saved.FlightView) error {
	if views == nil {
		views = []saved.FlightView{}
	}
	key, err := c.savedKey(ctx, saved.KindFlight, userID)
	if err != nil {
		return err
	}
	return c.set(ctx, key, views)
}

// GetActivities returns the cached saved-activity list of the user.
func (c *Cache) GetActivities(ctx context.Context, userID string) ([]saved.Activity, bool, error) {
	key, err := c.savedKey(ctx, saved.KindActivity, userID)
	if err != nil {
		return nil, false, err
	}
	var activities []saved.Activity
	hit, err := c.get(ctx, key, &activities)
	return activities, hit, err
}

// SetActivities caches the saved-activity list of the user.
func (c *Cache) SetActivities(ctx context.Context, userID string, activities []saved.Activity) error {
	if activities == nil {
		activities = []saved.Activity{}
	}
	key, err := c.savedKey(ctx, saved.KindActivity, userID)
	if err != nil {
		return err
	}
	return c.set(ctx, key, activities)
}

// InvalidateSaved retires every user's cached list of kind. Listed
// resources carry ref_counts shared across users, so one user's save makes
// other users' lists stale too. Retired entries expire with their TTL.
func (c *Cache) InvalidateSaved(ctx context.Context, kind saved.Kind) error {
	if err := c.client.Incr(ctx, generationKey(kind)).Err(); err != nil {
		return fmt.Errorf("cache invalidate saved %s: %w", kind, err)
	}
	return nil
}

// GetWeather retrieves a weather report. Returns nil, nil on a cache miss.
// City and country are matched case-insensitively.
func (c *Cache) GetWeather(ctx context.Context, city, country string) (*weather.Report, error) {
	var report weather.Report
	hit, err := c.get(ctx, weatherKey(city, country), &report)
	if err != nil || !hit {
		return nil, err
	}
	return &report, nil
}

// SetWeather stores a weather report. A nil report is ignored.
func (c *Cache) SetWeather(ctx context.Context, city, country string, report *weather.Report) error {
	if report == nil {
		return nil
	}
	return c.set(ctx, weatherKey(city, country), report)
}

func (c *Cache) get(ctx context.Context, key string, dst any) (bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(val, dst); err != nil {
		return false, fmt.Errorf("unmarshaling cached %s: %w", key, err)
	}

	return true, nil
}

func (c *Cache) set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}

	return nil
}
