package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/satriahrh/lexlink/domain/entities"
	"github.com/satriahrh/lexlink/domain/repositories"
)

var _ repositories.TenantPlanRepository = (*TenantPlanRepository)(nil)

// TenantPlanRepository reads device caps from the tenant_plans table
type TenantPlanRepository struct {
	pool *pgxpool.Pool
}

func NewTenantPlanRepository(pool *pgxpool.Pool) *TenantPlanRepository {
	return &TenantPlanRepository{pool: pool}
}

func (r *TenantPlanRepository) GetPlan(ctx context.Context, tenantID string) (*entities.TenantPlan, error) {
	plan := &entities.TenantPlan{TenantID: tenantID}
	err := r.pool.QueryRow(ctx,
		`SELECT whatsapp_device_cap FROM tenant_plans WHERE tenant_id = $1`, tenantID,
	).Scan(&plan.DeviceCap)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan for tenant %s: %w", tenantID, err)
	}
	return plan, nil
}
