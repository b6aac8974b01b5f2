package linking

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/satriahrh/lexlink/domain"
	"github.com/satriahrh/lexlink/domain/repositories"
)

const defaultTimeout = 10 * time.Second

// Config holds configuration for the linking backend client
type Config struct {
	BaseURL string        // Required: base URL of the WhatsApp linking service
	APIKey  string        // Optional: sent as a bearer token
	Timeout time.Duration // Optional: per request timeout (default: 10s)
}

// Client talks to the WhatsApp linking service over HTTP
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

var _ repositories.LinkingBackend = (*Client)(nil)

type startSessionRequest struct {
	TenantID  string `json:"tenantId"`
	PhoneHint string `json:"phoneHint,omitempty"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewClient creates a new linking backend client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("linking backend base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetAuthToken(cfg.APIKey)
	}

	return &Client{
		http:   httpClient,
		logger: logger,
	}, nil
}

// StartSession implements repositories.LinkingBackend
func (c *Client) StartSession(ctx context.Context, tenantID, phoneHint string) error {
	var failure errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(startSessionRequest{TenantID: tenantID, PhoneHint: phoneHint}).
		SetError(&failure).
		Post("/session/start")
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	if resp.IsError() {
		c.logger.Warn("Linking backend refused session start",
			zap.String("tenantID", tenantID),
			zap.Int("status", resp.StatusCode()),
			zap.String("error", failure.Error))
		msg := failure.Message
		if msg == "" {
			msg = resp.Status()
		}
		return fmt.Errorf("%w: %s", domain.ErrPairingRejected, msg)
	}

	c.logger.Debug("Session start requested",
		zap.String("tenantID", tenantID),
		zap.Bool("pairCode", phoneHint != ""))

	return nil
}

// Status implements repositories.LinkingBackend
func (c *Client) Status(ctx context.Context, tenantID string) (*domain.LinkStatus, error) {
	var status domain.LinkStatus
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("tenantId", tenantID).
		SetResult(&status).
		Get("/session/status")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session status: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("session status returned %s", resp.Status())
	}

	return &status, nil
}
