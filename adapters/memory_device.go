package adapters

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/lexlink/domain"
	"github.com/satriahrh/lexlink/domain/entities"
	"github.com/satriahrh/lexlink/domain/repositories"
)

var _ repositories.DeviceRepository = (*MemoryDeviceRepository)(nil)

// MemoryDeviceRepository is an in-memory implementation of DeviceRepository.
// It backs local development and tests; state is lost on restart.
type MemoryDeviceRepository struct {
	mu      sync.RWMutex
	devices map[string]*entities.Device // id -> device mapping
	tenants map[string][]string         // tenant_id -> device ids
}

// NewMemoryDeviceRepository creates a new in-memory device repository
func NewMemoryDeviceRepository() *MemoryDeviceRepository {
	return &MemoryDeviceRepository{
		devices: make(map[string]*entities.Device),
		tenants: make(map[string][]string),
	}
}

// Create implements DeviceRepository interface
func (m *MemoryDeviceRepository) Create(ctx context.Context, device *entities.Device) error {
	if device == nil {
		return errors.New("device cannot be nil")
	}

	if err := device.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Generate ID if not provided
	if device.ID == "" {
		device.ID = uuid.New().String()
	}
	if _, exists := m.devices[device.ID]; exists {
		return errors.New("device with this ID already exists")
	}

	now := time.Now()
	device.CreatedAt = now
	device.UpdatedAt = now
	if device.LastActive.IsZero() {
		device.LastActive = now
	}

	deviceCopy := *device
	m.devices[device.ID] = &deviceCopy
	m.tenants[device.TenantID] = append(m.tenants[device.TenantID], device.ID)

	return nil
}

// GetByID implements DeviceRepository interface
func (m *MemoryDeviceRepository) GetByID(ctx context.Context, tenantID, id string) (*entities.Device, error) {
	if id == "" {
		return nil, errors.New("device ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	device, exists := m.devices[id]
	if !exists || device.TenantID != tenantID {
		return nil, domain.ErrDeviceNotFound
	}

	// Return a copy to prevent external modifications
	deviceCopy := *device
	return &deviceCopy, nil
}

// ListByTenant implements DeviceRepository interface
func (m *MemoryDeviceRepository) ListByTenant(ctx context.Context, tenantID string) ([]*entities.Device, error) {
	if tenantID == "" {
		return nil, errors.New("tenant ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	// ids are kept in insertion order
	ids := m.tenants[tenantID]
	result := make([]*entities.Device, 0, len(ids))
	for _, id := range ids {
		deviceCopy := *m.devices[id]
		result = append(result, &deviceCopy)
	}

	return result, nil
}

// Update implements DeviceRepository interface
func (m *MemoryDeviceRepository) Update(ctx context.Context, tenantID, id string, patch entities.DevicePatch) error {
	if id == "" {
		return errors.New("device ID cannot be empty")
	}

	if err := patch.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	device, exists := m.devices[id]
	if !exists || device.TenantID != tenantID {
		return domain.ErrDeviceNotFound
	}

	patch.Apply(device)
	device.UpdatedAt = time.Now()

	return nil
}

// Delete implements DeviceRepository interface
func (m *MemoryDeviceRepository) Delete(ctx context.Context, tenantID, id string) error {
	if id == "" {
		return errors.New("device ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	device, exists := m.devices[id]
	if !exists || device.TenantID != tenantID {
		return domain.ErrDeviceNotFound
	}

	delete(m.devices, id)

	ids := m.tenants[tenantID]
	for i, d := range ids {
		if d == id {
			m.tenants[tenantID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(m.tenants[tenantID]) == 0 {
		delete(m.tenants, tenantID)
	}

	return nil
}
