package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const connectTimeout = 10 * time.Second

// Client holds the connection and the database the device store lives in.
type Client struct {
	conn   *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// NewClient connects to uri and checks the server answers.
func NewClient(ctx context.Context, uri, dbName string, logger *zap.Logger) (*Client, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if dbName == "" {
		dbName = "lexlink"
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetAppName("lexlink-whatsapp").
		SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := conn.Ping(ctx, nil); err != nil {
		_ = conn.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Connected to MongoDB", zap.String("database", dbName))
	return &Client{conn: conn, db: conn.Database(dbName), logger: logger}, nil
}

// Database is the database devices are stored in.
func (c *Client) Database() *mongo.Database {
	return c.db
}

func (c *Client) Close(ctx context.Context) error {
	if err := c.conn.Disconnect(ctx); err != nil {
		c.logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
		return err
	}
	return nil
}
