package repositories

import (
	"context"

	"github.com/satriahrh/lexlink/domain/entities"
)

// DeviceRepository defines data access methods for linked devices.
// Every method is scoped by tenant; a device of another tenant is reported as not found.
type DeviceRepository interface {
	// Create stores the device and assigns its ID when empty
	Create(ctx context.Context, device *entities.Device) error
	GetByID(ctx context.Context, tenantID, id string) (*entities.Device, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*entities.Device, error)
	Update(ctx context.Context, tenantID, id string, patch entities.DevicePatch) error
	Delete(ctx context.Context, tenantID, id string) error
}

// TenantPlanRepository provides the per-tenant limits.
// GetPlan returns nil without error when the tenant has no plan row.
type TenantPlanRepository interface {
	GetPlan(ctx context.Context, tenantID string) (*entities.TenantPlan, error)
}
