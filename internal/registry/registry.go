package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/lexlink/domain"
	"github.com/satriahrh/lexlink/domain/entities"
	"github.com/satriahrh/lexlink/domain/repositories"
)

// NewDevice carries what a caller supplies when registering a line.
type NewDevice struct {
	Name         string
	Phone        string
	Status       entities.DeviceStatus
	Type         entities.DeviceType
	BatteryLevel *int
	LastActive   time.Time
}

// Registry is the tenant scoped client for the durable device store.
// Store failures are returned as *domain.PersistenceError and never retried.
type Registry struct {
	repo   repositories.DeviceRepository
	logger *zap.Logger
}

func New(repo repositories.DeviceRepository, logger *zap.Logger) *Registry {
	return &Registry{
		repo:   repo,
		logger: logger,
	}
}

// List returns every device of the tenant.
func (r *Registry) List(ctx context.Context, tenantID string) ([]entities.Device, error) {
	devices, err := r.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list", Err: err}
	}

	out := make([]entities.Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, *d)
	}
	return out, nil
}

// CountByType returns how many devices of the given type the tenant has.
func (r *Registry) CountByType(ctx context.Context, tenantID string, deviceType entities.DeviceType) (int, error) {
	devices, err := r.List(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, d := range devices {
		if d.Type == deviceType {
			count++
		}
	}
	return count, nil
}

// Create assigns an id and stores the device.
func (r *Registry) Create(ctx context.Context, tenantID string, nd NewDevice) (*entities.Device, error) {
	now := time.Now()
	device := &entities.Device{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		Name:         strings.TrimSpace(nd.Name),
		Phone:        nd.Phone,
		Status:       nd.Status,
		Type:         nd.Type,
		BatteryLevel: nd.BatteryLevel,
		LastActive:   nd.LastActive,
	}
	if device.LastActive.IsZero() {
		device.LastActive = now
	}

	if err := device.Validate(); err != nil {
		return nil, err
	}

	if err := r.repo.Create(ctx, device); err != nil {
		r.logger.Error("Failed to persist device",
			zap.String("tenantID", tenantID),
			zap.String("deviceName", device.Name),
			zap.Error(err))
		return nil, &domain.PersistenceError{Op: "create", Err: err}
	}

	r.logger.Info("Device registered",
		zap.String("tenantID", tenantID),
		zap.String("deviceID", device.ID),
		zap.String("type", string(device.Type)))

	return device, nil
}

// RegisterOfficial stores a business API line. Official lines do not count
// toward the QR device cap.
func (r *Registry) RegisterOfficial(ctx context.Context, tenantID, name, phone string) (*entities.Device, error) {
	if strings.TrimSpace(phone) == "" {
		return nil, fmt.Errorf("%w: phone is required for official lines", domain.ErrInvalidDevice)
	}
	return r.Create(ctx, tenantID, NewDevice{
		Name:   name,
		Phone:  phone,
		Status: entities.DeviceStatusConnected,
		Type:   entities.DeviceTypeOfficial,
	})
}

// Update patches name, phone or status. Applying the same patch twice is
// harmless. An empty patch only checks that the device exists.
func (r *Registry) Update(ctx context.Context, tenantID, id string, patch entities.DevicePatch) error {
	if patch.Empty() {
		if _, err := r.repo.GetByID(ctx, tenantID, id); err != nil {
			return r.wrap("get", err)
		}
		return nil
	}
	if err := patch.Validate(); err != nil {
		return err
	}

	if err := r.repo.Update(ctx, tenantID, id, patch); err != nil {
		return r.wrap("update", err)
	}
	return nil
}

// Delete removes the device. Nothing else is cleaned up.
func (r *Registry) Delete(ctx context.Context, tenantID, id string) error {
	if err := r.repo.Delete(ctx, tenantID, id); err != nil {
		return r.wrap("delete", err)
	}

	r.logger.Info("Device deleted", zap.String("tenantID", tenantID), zap.String("deviceID", id))
	return nil
}

func (r *Registry) wrap(op string, err error) error {
	if errors.Is(err, domain.ErrDeviceNotFound) || errors.Is(err, domain.ErrInvalidDevice) {
		return err
	}
	return &domain.PersistenceError{Op: op, Err: err}
}
