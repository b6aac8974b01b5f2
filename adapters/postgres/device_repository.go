package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/satriahrh/lexlink/domain"
	"github.com/satriahrh/lexlink/domain/entities"
	"github.com/satriahrh/lexlink/domain/repositories"
)

var _ repositories.DeviceRepository = (*DeviceRepository)(nil)

const deviceColumns = `id, tenant_id, name, phone, status, type, battery_level, last_active, created_at, updated_at`

// DeviceRepository stores devices in the whatsapp_devices table
type DeviceRepository struct {
	pool *pgxpool.Pool
}

func NewDeviceRepository(pool *pgxpool.Pool) *DeviceRepository {
	return &DeviceRepository{pool: pool}
}

func (r *DeviceRepository) Create(ctx context.Context, device *entities.Device) error {
	if device == nil {
		return errors.New("device cannot be nil")
	}
	if err := device.Validate(); err != nil {
		return err
	}

	if device.ID == "" {
		device.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	device.CreatedAt = now
	device.UpdatedAt = now
	if device.LastActive.IsZero() {
		device.LastActive = now
	}

	query := `INSERT INTO whatsapp_devices (` + deviceColumns + `)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.pool.Exec(ctx, query,
		device.ID, device.TenantID, device.Name, device.Phone, string(device.Status), string(device.Type),
		device.BatteryLevel, device.LastActive, device.CreatedAt, device.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert device: %w", err)
	}
	return nil
}

func (r *DeviceRepository) GetByID(ctx context.Context, tenantID, id string) (*entities.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM whatsapp_devices WHERE id = $1 AND tenant_id = $2`
	device, err := scanDevice(r.pool.QueryRow(ctx, query, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device %s: %w", id, err)
	}
	return device, nil
}

func (r *DeviceRepository) ListByTenant(ctx context.Context, tenantID string) ([]*entities.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM whatsapp_devices WHERE tenant_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	devices := make([]*entities.Device, 0)
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, device)
	}
	return devices, rows.Err()
}

func (r *DeviceRepository) Update(ctx context.Context, tenantID, id string, patch entities.DevicePatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	var probe entities.Device
	patch.Apply(&probe)

	sets := []string{"updated_at = $3"}
	args := []any{id, tenantID, time.Now().UTC()}
	if patch.Name != nil {
		args = append(args, probe.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if patch.Phone != nil {
		args = append(args, probe.Phone)
		sets = append(sets, fmt.Sprintf("phone = $%d", len(args)))
	}
	if patch.Status != nil {
		args = append(args, string(probe.Status))
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `UPDATE whatsapp_devices SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 AND tenant_id = $2`
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDeviceNotFound
	}
	return nil
}

func (r *DeviceRepository) Delete(ctx context.Context, tenantID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM whatsapp_devices WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDeviceNotFound
	}
	return nil
}

func scanDevice(row pgx.Row) (*entities.Device, error) {
	var (
		d       entities.Device
		status  string
		devType string
		battery *int32
	)
	err := row.Scan(&d.ID, &d.TenantID, &d.Name, &d.Phone, &status, &devType,
		&battery, &d.LastActive, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.Status = entities.DeviceStatus(status)
	d.Type = entities.DeviceType(devType)
	if battery != nil {
		level := int(*battery)
		d.BatteryLevel = &level
	}
	return &d, nil
}
