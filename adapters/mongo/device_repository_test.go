package mongo

import (
	"context"
	"errors"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/satriahrh/lexlink/domain"
	"github.com/satriahrh/lexlink/domain/entities"
)

// TestDeviceRepository_Integration tests the MongoDB device repository
// This test requires a running MongoDB instance (skipped if MONGODB_URI is not set)
func TestDeviceRepository_Integration(t *testing.T) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("Skipping MongoDB integration test - MONGODB_URI not set")
	}

	ctx := context.Background()
	logger, _ := zap.NewDevelopment()

	client, err := NewClient(ctx, mongoURI, "lexlink_test", logger)
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Close(ctx)
	defer client.Database().Drop(ctx)

	repo := NewDeviceRepository(client.Database(), logger)

	device := &entities.Device{
		TenantID: "tenant-1",
		Name:     "Setor 1",
		Phone:    "5511999999999",
		Status:   entities.DeviceStatusConnected,
		Type:     entities.DeviceTypeQR,
	}

	t.Run("CreateAndGet", func(t *testing.T) {
		if err := repo.Create(ctx, device); err != nil {
			t.Fatalf("Failed to create device: %v", err)
		}

		got, err := repo.GetByID(ctx, "tenant-1", device.ID)
		if err != nil {
			t.Fatalf("Failed to get device: %v", err)
		}
		if got.Name != device.Name {
			t.Errorf("Expected name %s, got %s", device.Name, got.Name)
		}

		if _, err := repo.GetByID(ctx, "tenant-2", device.ID); !errors.Is(err, domain.ErrDeviceNotFound) {
			t.Errorf("Expected ErrDeviceNotFound for foreign tenant, got %v", err)
		}
	})

	t.Run("ListAndUpdate", func(t *testing.T) {
		name := "Recepção"
		if err := repo.Update(ctx, "tenant-1", device.ID, entities.DevicePatch{Name: &name}); err != nil {
			t.Fatalf("Failed to update device: %v", err)
		}

		devices, err := repo.ListByTenant(ctx, "tenant-1")
		if err != nil {
			t.Fatalf("Failed to list devices: %v", err)
		}
		if len(devices) != 1 || devices[0].Name != name {
			t.Errorf("Unexpected devices after update: %+v", devices)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.Delete(ctx, "tenant-1", device.ID); err != nil {
			t.Fatalf("Failed to delete device: %v", err)
		}
		if err := repo.Delete(ctx, "tenant-1", device.ID); !errors.Is(err, domain.ErrDeviceNotFound) {
			t.Errorf("Expected ErrDeviceNotFound, got %v", err)
		}
	})
}
