package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/tms-reconciler/internal/candidates"
	"github.com/joseph-ayodele/tms-reconciler/internal/entity"
)

const (
	defaultKeyPrefix = "recon:shipments:"
	defaultTTL       = 5 * time.Minute
)

// Config holds connection settings for the shipment lookup cache.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// ShipmentCache is a read-through cache in front of a ShipmentStore. Entries are keyed
// by the full query so different windows never share results. Redis failures fall
// through to the store; they never fail a lookup.
type ShipmentCache struct {
	next       candidates.ShipmentStore
	client     redis.UniversalClient
	ownsClient bool
	keyPrefix  string
	ttl        time.Duration
	logger     *zap.Logger
}

// Option configures a ShipmentCache.
type Option func(*ShipmentCache)

// WithKeyPrefix overrides the Redis key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *ShipmentCache) {
		c.keyPrefix = prefix
	}
}

// WithTTL sets how long cached lookups live.
func WithTTL(ttl time.Duration) Option {
	return func(c *ShipmentCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *ShipmentCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New connects to Redis and wraps next. The returned cache owns the client.
func New(ctx context.Context, cfg Config, next candidates.ShipmentStore, opts ...Option) (*ShipmentCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c := NewWithClient(client, next, append([]Option{WithTTL(cfg.TTL)}, opts...)...)
	c.ownsClient = true
	return c, nil
}

// NewWithClient wraps next using an existing client. The caller keeps ownership of client.
func NewWithClient(client redis.UniversalClient, next candidates.ShipmentStore, opts ...Option) *ShipmentCache {
	c := &ShipmentCache{
		next:      next,
		client:    client,
		keyPrefix: defaultKeyPrefix,
		ttl:       defaultTTL,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ShipmentCache) key(q candidates.ShipmentQuery) string {
	return c.keyPrefix + q.Key()
}

// FindShipments serves q from Redis when present, otherwise from the wrapped store,
// caching the result. Empty results are cached too.
func (c *ShipmentCache) FindShipments(ctx context.Context, q candidates.ShipmentQuery) ([]entity.ShipmentRecord, error) {
	key := c.key(q)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var records []entity.ShipmentRecord
		if jerr := json.Unmarshal(data, &records); jerr == nil {
			c.logger.Debug("shipment cache hit", zap.String("key", key), zap.Int("rows", len(records)))
			return records, nil
		}
		c.logger.Warn("discarding unreadable cache entry", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		c.logger.Warn("shipment cache read failed", zap.String("key", key), zap.Error(err))
	}

	records, err := c.next.FindShipments(ctx, q)
	if err != nil {
		return nil, err
	}

	if data, err = json.Marshal(records); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("shipment cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return records, nil
}

type shipmentWriter interface {
	InsertShipments(ctx context.Context, records []entity.ShipmentRecord) error
}

// InsertShipments writes records through to the wrapped store, then drops every cached
// lookup so new rows are visible to the next query.
func (c *ShipmentCache) InsertShipments(ctx context.Context, records []entity.ShipmentRecord) error {
	w, ok := c.next.(shipmentWriter)
	if !ok {
		return errors.New("wrapped shipment store does not accept inserts")
	}
	if err := w.InsertShipments(ctx, records); err != nil {
		return err
	}
	if _, err := c.Invalidate(ctx); err != nil {
		c.logger.Warn("shipment cache invalidation after insert failed", zap.Error(err))
	}
	return nil
}

// Invalidate drops every cached lookup under the prefix, e.g. after a TMS reload.
func (c *ShipmentCache) Invalidate(ctx context.Context) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.keyPrefix+"*", 100).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to scan cache keys: %w", err)
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("failed to delete cache keys: %w", err)
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	c.logger.Info("shipment cache invalidated", zap.Int("removed", removed))
	return removed, nil
}

// Close releases the Redis client if the cache created it.
func (c *ShipmentCache) Close() error {
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}
