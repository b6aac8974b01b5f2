package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/satriahrh/lexlink/domain/entities"
	"github.com/satriahrh/lexlink/domain/repositories"
)

// Client is the subset of the redis client used by the cache
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetEx(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ repositories.TenantPlanRepository = (*PlanCache)(nil)

// PlanCache is a read-through cache in front of a TenantPlanRepository.
// Tenants without a plan are cached too, as an empty entry.
type PlanCache struct {
	next   repositories.TenantPlanRepository
	redis  Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewPlanCache wraps next with a redis cache
func NewPlanCache(next repositories.TenantPlanRepository, client Client, ttl time.Duration, logger *zap.Logger) *PlanCache {
	return &PlanCache{
		next:   next,
		redis:  client,
		ttl:    ttl,
		logger: logger,
	}
}

// NewClient creates a go-redis client and checks the connection
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return rdb, nil
}

type cachedPlan struct {
	Found bool                `json:"found"`
	Plan  entities.TenantPlan `json:"plan"`
}

func planKey(tenantID string) string {
	return fmt.Sprintf("tenant_plan:%s", tenantID)
}

// GetPlan implements repositories.TenantPlanRepository
func (c *PlanCache) GetPlan(ctx context.Context, tenantID string) (*entities.TenantPlan, error) {
	key := planKey(tenantID)

	raw, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		var entry cachedPlan
		if err := json.Unmarshal([]byte(raw), &entry); err == nil {
			if !entry.Found {
				return nil, nil
			}
			return &entry.Plan, nil
		}
		c.logger.Warn("Discarding malformed cached plan", zap.String("tenantID", tenantID))
	case errors.Is(err, redis.Nil):
	default:
		// Cache outages fall through to the source
		c.logger.Warn("Plan cache lookup failed", zap.String("tenantID", tenantID), zap.Error(err))
	}

	plan, err := c.next.GetPlan(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	entry := cachedPlan{Found: plan != nil}
	if plan != nil {
		entry.Plan = *plan
	}
	data, err := json.Marshal(entry)
	if err == nil {
		if err := c.redis.SetEx(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("Failed to cache plan", zap.String("tenantID", tenantID), zap.Error(err))
		}
	}

	return plan, nil
}

// Invalidate drops the cached plan of a tenant
func (c *PlanCache) Invalidate(ctx context.Context, tenantID string) error {
	return c.redis.Del(ctx, planKey(tenantID)).Err()
}
