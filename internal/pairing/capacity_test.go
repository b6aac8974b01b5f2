package pairing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/lexlink/domain/entities"
)

type countFunc func(ctx context.Context, tenantID string, deviceType entities.DeviceType) (int, error)

func (f countFunc) CountByType(ctx context.Context, tenantID string, deviceType entities.DeviceType) (int, error) {
	return f(ctx, tenantID, deviceType)
}

type planFunc func(ctx context.Context, tenantID string) (*entities.TenantPlan, error)

func (f planFunc) GetPlan(ctx context.Context, tenantID string) (*entities.TenantPlan, error) {
	return f(ctx, tenantID)
}

// cachedPlans serves a stale cap until it is invalidated.
type cachedPlans struct {
	cached      int
	fresh       int
	invalidated []string
}

func (c *cachedPlans) GetPlan(ctx context.Context, tenantID string) (*entities.TenantPlan, error) {
	return &entities.TenantPlan{TenantID: tenantID, DeviceCap: c.cached}, nil
}

func (c *cachedPlans) Invalidate(ctx context.Context, tenantID string) error {
	c.invalidated = append(c.invalidated, tenantID)
	c.cached = c.fresh
	return nil
}

func TestUsageExhausted(t *testing.T) {
	assert.False(t, Usage{Used: 3, Cap: 10}.Exhausted())
	assert.True(t, Usage{Used: 10, Cap: 10}.Exhausted())
	assert.True(t, Usage{Used: 12, Cap: 10}.Exhausted())
}

func TestCapacityGuard_Check(t *testing.T) {
	counts := countFunc(func(ctx context.Context, tenantID string, deviceType entities.DeviceType) (int, error) {
		assert.Equal(t, entities.DeviceTypeQR, deviceType)
		return 4, nil
	})

	t.Run("default cap without plan", func(t *testing.T) {
		guard := NewCapacityGuard(counts, planFunc(func(context.Context, string) (*entities.TenantPlan, error) {
			return nil, nil
		}), 0)

		usage, err := guard.Check(context.Background(), "tenant-1")
		require.NoError(t, err)
		assert.Equal(t, Usage{Used: 4, Cap: entities.DefaultDeviceCap}, usage)
	})

	t.Run("plan cap", func(t *testing.T) {
		guard := NewCapacityGuard(counts, planFunc(func(context.Context, string) (*entities.TenantPlan, error) {
			return &entities.TenantPlan{TenantID: "tenant-1", DeviceCap: 4}, nil
		}), 10)

		usage, err := guard.Check(context.Background(), "tenant-1")
		require.NoError(t, err)
		assert.True(t, usage.Exhausted())
	})

	t.Run("nil plan repository", func(t *testing.T) {
		usage, err := NewCapacityGuard(counts, nil, 6).Check(context.Background(), "tenant-1")
		require.NoError(t, err)
		assert.Equal(t, 6, usage.Cap)
	})

	t.Run("plan lookup failure", func(t *testing.T) {
		storeErr := errors.New("timeout")
		guard := NewCapacityGuard(counts, planFunc(func(context.Context, string) (*entities.TenantPlan, error) {
			return nil, storeErr
		}), 10)

		_, err := guard.Check(context.Background(), "tenant-1")
		assert.ErrorIs(t, err, storeErr)
	})

	t.Run("count failure", func(t *testing.T) {
		storeErr := errors.New("down")
		guard := NewCapacityGuard(countFunc(func(context.Context, string, entities.DeviceType) (int, error) {
			return 0, storeErr
		}), nil, 10)

		_, err := guard.Check(context.Background(), "tenant-1")
		assert.ErrorIs(t, err, storeErr)
	})
}

func TestCapacityGuard_RefreshesCachedPlanWhenExhausted(t *testing.T) {
	counts := countFunc(func(context.Context, string, entities.DeviceType) (int, error) {
		return 4, nil
	})

	t.Run("upgrade picked up", func(t *testing.T) {
		plans := &cachedPlans{cached: 4, fresh: 8}
		usage, err := NewCapacityGuard(counts, plans, 10).Check(context.Background(), "tenant-1")
		require.NoError(t, err)
		assert.Equal(t, Usage{Used: 4, Cap: 8}, usage)
		assert.Equal(t, []string{"tenant-1"}, plans.invalidated)
	})

	t.Run("still exhausted", func(t *testing.T) {
		plans := &cachedPlans{cached: 4, fresh: 4}
		usage, err := NewCapacityGuard(counts, plans, 10).Check(context.Background(), "tenant-1")
		require.NoError(t, err)
		assert.True(t, usage.Exhausted())
	})

	t.Run("room left skips the refresh", func(t *testing.T) {
		plans := &cachedPlans{cached: 6, fresh: 1}
		usage, err := NewCapacityGuard(counts, plans, 10).Check(context.Background(), "tenant-1")
		require.NoError(t, err)
		assert.Equal(t, 6, usage.Cap)
		assert.Empty(t, plans.invalidated)
	})
}
