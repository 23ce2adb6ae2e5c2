// Package redis implements the eligibility cache on Redis. Compiled
// selections live under campaigns:compiled:<id> as JSON documents and
// the active index is the campaigns:active sorted set scored by
// priority.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smartcycle/discounts/internal/cache"
	"github.com/smartcycle/discounts/internal/domain"
	apperrors "github.com/smartcycle/discounts/pkg/errors"
)

const (
	compiledKeyPrefix = "campaigns:compiled:"
	activeKey         = "campaigns:active"
	scanBatch         = 100
)

// Store is a Redis-backed cache.Store.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a Redis-backed eligibility cache. A zero ttl means
// entries never expire and are evicted only by explicit writes.
func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func compiledKey(campaignID string) string {
	return compiledKeyPrefix + campaignID
}

func (s *Store) Get(ctx context.Context, campaignID string) (*domain.CompiledSelection, error) {
	raw, err := s.client.Get(ctx, compiledKey(campaignID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NotFound("compiled selection", campaignID)
	}
	if err != nil {
		return nil, fmt.Errorf("reading compiled selection %s: %w", campaignID, err)
	}

	var compiled domain.CompiledSelection
	if err := json.Unmarshal(raw, &compiled); err != nil {
		return nil, fmt.Errorf("decoding compiled selection %s: %w", campaignID, err)
	}
	return &compiled, nil
}

func (s *Store) Put(ctx context.Context, campaignID string, compiled *domain.CompiledSelection) error {
	raw, err := json.Marshal(compiled)
	if err != nil {
		return fmt.Errorf("encoding compiled selection %s: %w", campaignID, err)
	}
	if err := s.client.Set(ctx, compiledKey(campaignID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("writing compiled selection %s: %w", campaignID, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, campaignID string) error {
	if err := s.client.Del(ctx, compiledKey(campaignID)).Err(); err != nil {
		return fmt.Errorf("deleting compiled selection %s: %w", campaignID, err)
	}
	return nil
}

func (s *Store) MarkStale(ctx context.Context, campaignID string) error {
	compiled, err := s.Get(ctx, campaignID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if compiled.Stale {
		return nil
	}
	compiled.Stale = true
	return s.Put(ctx, campaignID, compiled)
}

func (s *Store) MarkStaleByItem(ctx context.Context, itemID string) ([]string, error) {
	var (
		affected []string
		cursor   uint64
	)

	for {
		keys, next, err := s.client.Scan(ctx, cursor, compiledKeyPrefix+"*", scanBatch).Result()
		if err != nil {
			return affected, fmt.Errorf("scanning compiled selections: %w", err)
		}

		for _, key := range keys {
			campaignID := key[len(compiledKeyPrefix):]
			compiled, err := s.Get(ctx, campaignID)
			if errors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			if err != nil {
				return affected, err
			}
			if compiled.Stale || !compiled.Contains(itemID) {
				continue
			}
			compiled.Stale = true
			if err := s.Put(ctx, campaignID, compiled); err != nil {
				return affected, err
			}
			affected = append(affected, campaignID)
		}

		cursor = next
		if cursor == 0 {
			return affected, nil
		}
	}
}

func (s *Store) AddActive(ctx context.Context, campaignID string, priority int) error {
	member := redis.Z{Score: float64(priority), Member: campaignID}
	if err := s.client.ZAdd(ctx, activeKey, member).Err(); err != nil {
		return fmt.Errorf("indexing active campaign %s: %w", campaignID, err)
	}
	return nil
}

func (s *Store) RemoveActive(ctx context.Context, campaignID string) error {
	if err := s.client.ZRem(ctx, activeKey, campaignID).Err(); err != nil {
		return fmt.Errorf("removing active campaign %s: %w", campaignID, err)
	}
	return nil
}

func (s *Store) ActiveCampaigns(ctx context.Context) ([]cache.ActiveEntry, error) {
	members, err := s.client.ZRevRangeWithScores(ctx, activeKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing active campaigns: %w", err)
	}

	out := make([]cache.ActiveEntry, 0, len(members))
	for _, m := range members {
		id, ok := m.Member.(string)
		if !ok {
			continue
		}
		out = append(out, cache.ActiveEntry{CampaignID: id, Priority: int(m.Score)})
	}
	return out, nil
}
