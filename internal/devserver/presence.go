package devserver

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceStore records which users are live on which document. Entries are
// heartbeat-scored so a crashed client disappears after the TTL instead of
// lingering forever.
type PresenceStore interface {
	Touch(ctx context.Context, documentID, userID string) error
	Remove(ctx context.Context, documentID, userID string) error
	Active(ctx context.Context, documentID string) ([]string, error)
}

// RedisPresence keeps one sorted set per document, member = userID,
// score = last heartbeat in unix seconds.
type RedisPresence struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPresence(client *redis.Client, ttl time.Duration) *RedisPresence {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &RedisPresence{client: client, ttl: ttl}
}

func presenceKey(documentID string) string {
	return "presence:" + documentID
}

func (p *RedisPresence) Touch(ctx context.Context, documentID, userID string) error {
	key := presenceKey(documentID)
	pipe := p.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(time.Now().Unix()), Member: userID})
	pipe.Expire(ctx, key, p.ttl*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("touch presence: %w", err)
	}
	return nil
}

func (p *RedisPresence) Remove(ctx context.Context, documentID, userID string) error {
	if err := p.client.ZRem(ctx, presenceKey(documentID), userID).Err(); err != nil {
		return fmt.Errorf("remove presence: %w", err)
	}
	return nil
}

// Active lists the users whose heartbeat is within the TTL, pruning stale
// members as a side effect.
func (p *RedisPresence) Active(ctx context.Context, documentID string) ([]string, error) {
	key := presenceKey(documentID)
	cutoff := time.Now().Add(-p.ttl).Unix()
	if err := p.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff-1, 10)).Err(); err != nil {
		return nil, fmt.Errorf("prune presence: %w", err)
	}
	members, err := p.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list presence: %w", err)
	}
	sort.Strings(members)
	return members, nil
}

// MemPresence is the store used when no redis instance is configured.
type MemPresence struct {
	ttl time.Duration

	mu   sync.Mutex
	seen map[string]map[string]time.Time
}

func NewMemPresence(ttl time.Duration) *MemPresence {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &MemPresence{ttl: ttl, seen: make(map[string]map[string]time.Time)}
}

func (p *MemPresence) Touch(_ context.Context, documentID, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seen[documentID] == nil {
		p.seen[documentID] = make(map[string]time.Time)
	}
	p.seen[documentID][userID] = time.Now()
	return nil
}

func (p *MemPresence) Remove(_ context.Context, documentID, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.seen[documentID], userID)
	return nil
}

func (p *MemPresence) Active(_ context.Context, documentID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := time.Now().Add(-p.ttl)
	users := make([]string, 0)
	for userID, at := range p.seen[documentID] {
		if at.Before(cutoff) {
			delete(p.seen[documentID], userID)
			continue
		}
		users = append(users, userID)
	}
	sort.Strings(users)
	return users, nil
}
