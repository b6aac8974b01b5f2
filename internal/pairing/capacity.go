package pairing

import (
	"context"
	"fmt"

	"github.com/satriahrh/lexlink/domain/entities"
	"github.com/satriahrh/lexlink/domain/repositories"
)

// DeviceCounter counts a tenant's devices by type.
type DeviceCounter interface {
	CountByType(ctx context.Context, tenantID string, deviceType entities.DeviceType) (int, error)
}

// Usage is a tenant's QR device count against its cap.
type Usage struct {
	Used int `json:"used"`
	Cap  int `json:"cap"`
}

// Exhausted reports whether another QR device would exceed the cap.
func (u Usage) Exhausted() bool {
	return u.Used >= u.Cap
}

// PlanInvalidator drops a cached tenant plan.
type PlanInvalidator interface {
	Invalidate(ctx context.Context, tenantID string) error
}

// CapacityGuard decides whether a tenant may start pairing another line.
type CapacityGuard struct {
	devices    DeviceCounter
	plans      repositories.TenantPlanRepository
	defaultCap int
}

func NewCapacityGuard(devices DeviceCounter, plans repositories.TenantPlanRepository, defaultCap int) *CapacityGuard {
	if defaultCap <= 0 {
		defaultCap = entities.DefaultDeviceCap
	}
	return &CapacityGuard{
		devices:    devices,
		plans:      plans,
		defaultCap: defaultCap,
	}
}

// Check returns the tenant's current usage. Only QR devices count. When the
// tenant looks exhausted and plans are cached, the cached plan is dropped and
// read again so a recent upgrade is seen.
func (g *CapacityGuard) Check(ctx context.Context, tenantID string) (Usage, error) {
	used, err := g.devices.CountByType(ctx, tenantID, entities.DeviceTypeQR)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to count devices: %w", err)
	}

	limit, err := g.limit(ctx, tenantID)
	if err != nil {
		return Usage{}, err
	}

	usage := Usage{Used: used, Cap: limit}
	if !usage.Exhausted() {
		return usage, nil
	}

	cache, ok := g.plans.(PlanInvalidator)
	if !ok || cache.Invalidate(ctx, tenantID) != nil {
		return usage, nil
	}
	if usage.Cap, err = g.limit(ctx, tenantID); err != nil {
		return Usage{}, err
	}
	return usage, nil
}

func (g *CapacityGuard) limit(ctx context.Context, tenantID string) (int, error) {
	if g.plans == nil {
		return g.defaultCap, nil
	}

	plan, err := g.plans.GetPlan(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to load tenant plan: %w", err)
	}
	if plan != nil && plan.DeviceCap > 0 {
		return plan.DeviceCap, nil
	}
	return g.defaultCap, nil
}
