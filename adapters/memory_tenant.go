package adapters

import (
	"context"
	"sync"

	"github.com/satriahrh/lexlink/domain/entities"
	"github.com/satriahrh/lexlink/domain/repositories"
)

var _ repositories.TenantPlanRepository = (*MemoryTenantPlanRepository)(nil)

// MemoryTenantPlanRepository keeps tenant plans in a map
type MemoryTenantPlanRepository struct {
	mu    sync.RWMutex
	plans map[string]entities.TenantPlan
}

func NewMemoryTenantPlanRepository() *MemoryTenantPlanRepository {
	return &MemoryTenantPlanRepository{
		plans: make(map[string]entities.TenantPlan),
	}
}

// SetPlan stores or replaces the plan of a tenant
func (m *MemoryTenantPlanRepository) SetPlan(plan entities.TenantPlan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[plan.TenantID] = plan
}

// GetPlan implements TenantPlanRepository interface
func (m *MemoryTenantPlanRepository) GetPlan(ctx context.Context, tenantID string) (*entities.TenantPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plan, ok := m.plans[tenantID]
	if !ok {
		return nil, nil
	}
	return &plan, nil
}
