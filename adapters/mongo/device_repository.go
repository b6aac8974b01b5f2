package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/lexlink/domain"
	"github.com/satriahrh/lexlink/domain/entities"
	"github.com/satriahrh/lexlink/domain/repositories"
)

const devicesCollection = "whatsapp_devices"

// DeviceRepository implements repositories.DeviceRepository using MongoDB
type DeviceRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewDeviceRepository creates a new MongoDB device repository
func NewDeviceRepository(db *mongo.Database, logger *zap.Logger) repositories.DeviceRepository {
	collection := db.Collection(devicesCollection)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Every query filters by tenant
		tenantIndex := mongo.IndexModel{
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "created_at", Value: 1},
			},
		}

		// Capacity checks count QR devices per tenant
		tenantTypeIndex := mongo.IndexModel{
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "type", Value: 1},
			},
		}

		_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{tenantIndex, tenantTypeIndex})
		if err != nil {
			logger.Error("Failed to create device indexes", zap.Error(err))
		} else {
			logger.Info("Device indexes created successfully")
		}
	}()

	return &DeviceRepository{
		collection: collection,
		logger:     logger,
	}
}

// Create implements repositories.DeviceRepository
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

	if _, err := r.collection.InsertOne(ctx, device); err != nil {
		r.logger.Error("Failed to create device", zap.Error(err), zap.String("tenant_id", device.TenantID))
		return fmt.Errorf("failed to create device: %w", err)
	}

	r.logger.Info("Device created",
		zap.String("device_id", device.ID),
		zap.String("tenant_id", device.TenantID))

	return nil
}

// GetByID implements repositories.DeviceRepository
func (r *DeviceRepository) GetByID(ctx context.Context, tenantID, id string) (*entities.Device, error) {
	var device entities.Device
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&device)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device %s: %w", id, err)
	}
	return &device, nil
}

// ListByTenant implements repositories.DeviceRepository
func (r *DeviceRepository) ListByTenant(ctx context.Context, tenantID string) ([]*entities.Device, error) {
	if tenantID == "" {
		return nil, errors.New("tenant ID cannot be empty")
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"tenant_id": tenantID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices for tenant %s: %w", tenantID, err)
	}
	defer cursor.Close(ctx)

	devices := make([]*entities.Device, 0)
	if err := cursor.All(ctx, &devices); err != nil {
		return nil, fmt.Errorf("failed to decode devices: %w", err)
	}

	return devices, nil
}

// Update implements repositories.DeviceRepository
func (r *DeviceRepository) Update(ctx context.Context, tenantID, id string, patch entities.DevicePatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	var probe entities.Device
	patch.Apply(&probe)
	if patch.Name != nil {
		set["name"] = probe.Name
	}
	if patch.Phone != nil {
		set["phone"] = probe.Phone
	}
	if patch.Status != nil {
		set["status"] = probe.Status
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "tenant_id": tenantID},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}

	if result.MatchedCount == 0 {
		return domain.ErrDeviceNotFound
	}

	return nil
}

// Delete implements repositories.DeviceRepository
func (r *DeviceRepository) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}

	if result.DeletedCount == 0 {
		return domain.ErrDeviceNotFound
	}

	r.logger.Info("Device deleted",
		zap.String("device_id", id),
		zap.String("tenant_id", tenantID))

	return nil
}
