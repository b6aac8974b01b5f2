package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/satriahrh/lexlink/domain"
	"github.com/satriahrh/lexlink/domain/entities"
	"github.com/satriahrh/lexlink/internal/auth"
	"github.com/satriahrh/lexlink/internal/notify"
	"github.com/satriahrh/lexlink/internal/pairing"
	"github.com/satriahrh/lexlink/internal/registry"
	"github.com/satriahrh/lexlink/internal/websocket"
)

// Dependencies are the services the routes are served by
type Dependencies struct {
	Manager  *pairing.Manager
	Registry *registry.Registry
	Capacity pairing.CapacityChecker
	Sink     *notify.Sink
	Hub      *websocket.Hub
	Tokens   *auth.TokenManager
	Logger   *zap.Logger
}

type handlers struct {
	Dependencies
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies) {
	h := &handlers{Dependencies: deps}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "lexlink-whatsapp",
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	requireToken := deps.Tokens.Middleware(h.unauthorized)

	// API v1 routes
	v1 := e.Group("/api/v1", requireToken)

	v1.POST("/pairing", h.startPairing)
	v1.GET("/pairing", h.currentPairing)
	v1.DELETE("/pairing", h.cancelPairing)

	v1.GET("/devices", h.listDevices)
	v1.POST("/devices/official", h.registerOfficial)
	v1.PATCH("/devices/:id", h.updateDevice)
	v1.DELETE("/devices/:id", h.deleteDevice)

	v1.GET("/notifications", h.listNotifications)
	v1.DELETE("/notifications/:id", h.dismissNotification)

	// WebSocket endpoint with JWT validation
	e.GET("/ws", h.connectWebSocket, requireToken)
}

func (h *handlers) unauthorized(c echo.Context, err error) error {
	h.Logger.Warn("Request rejected: invalid token",
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.JSON(http.StatusUnauthorized, ErrorResponse{
		Error:   "invalid_token",
		Message: "A valid bearer token is required",
	})
}

// tenant returns the claims of the authenticated user.
func (h *handlers) tenant(c echo.Context) (*auth.JWTClaims, bool) {
	claims, ok := auth.ClaimsFrom(c)
	return claims, ok
}

func (h *handlers) startPairing(c echo.Context) error {
	claims, ok := h.tenant(c)
	if !ok {
		return h.unauthorized(c, auth.ErrMissingTenant)
	}

	var req StartPairingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	session, err := h.Manager.StartPairing(c.Request().Context(), claims.TenantID, req.DisplayName, req.PhoneHint)

	var capErr *pairing.CapacityExceededError
	switch {
	case err == nil:
		return c.JSON(http.StatusCreated, session)

	case errors.Is(err, domain.ErrInvalidDisplayName):
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_display_name",
			Message: "A display name is required to link a device",
		})

	case errors.Is(err, domain.ErrPairingInProgress):
		return c.JSON(http.StatusConflict, PairingErrorResponse{
			ErrorResponse: ErrorResponse{
				Error:   "pairing_in_progress",
				Message: "Another device is being linked",
			},
			Session: &session,
		})

	case errors.As(err, &capErr):
		return c.JSON(http.StatusForbidden, PairingErrorResponse{
			ErrorResponse: ErrorResponse{
				Error:   "capacity_exceeded",
				Message: "Device limit reached, upgrade the plan to link more lines",
			},
			Session: &session,
			Usage:   &capErr.Usage,
		})

	case errors.Is(err, domain.ErrNoPairingSession):
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "pairing_cancelled",
			Message: "Pairing was cancelled before it started",
		})

	case errors.Is(err, pairing.ErrManagerClosed):
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "shutting_down",
			Message: "Service is shutting down",
		})
	}

	h.Logger.Error("Failed to start pairing", zap.String("tenantID", claims.TenantID), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Failed to start pairing",
	})
}

func (h *handlers) currentPairing(c echo.Context) error {
	claims, ok := h.tenant(c)
	if !ok {
		return h.unauthorized(c, auth.ErrMissingTenant)
	}

	session, ok := h.Manager.Current(claims.TenantID)
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "no_pairing_session",
			Message: "No pairing session for this tenant",
		})
	}
	return c.JSON(http.StatusOK, session)
}

func (h *handlers) cancelPairing(c echo.Context) error {
	claims, ok := h.tenant(c)
	if !ok {
		return h.unauthorized(c, auth.ErrMissingTenant)
	}

	if err := h.Manager.CancelPairing(claims.TenantID); err != nil {
		if errors.Is(err, domain.ErrNoPairingSession) {
			return c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "no_pairing_session",
				Message: "No pairing session for this tenant",
			})
		}
		return h.internalError(c, claims.TenantID, "Failed to cancel pairing", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) listDevices(c echo.Context) error {
	claims, ok := h.tenant(c)
	if !ok {
		return h.unauthorized(c, auth.ErrMissingTenant)
	}
	ctx := c.Request().Context()

	devices, err := h.Registry.List(ctx, claims.TenantID)
	if err != nil {
		return h.internalError(c, claims.TenantID, "Failed to list devices", err)
	}
	usage, err := h.Capacity.Check(ctx, claims.TenantID)
	if err != nil {
		return h.internalError(c, claims.TenantID, "Failed to load device usage", err)
	}

	return c.JSON(http.StatusOK, DeviceListResponse{
		Devices: devices,
		Usage:   usage,
	})
}

func (h *handlers) registerOfficial(c echo.Context) error {
	claims, ok := h.tenant(c)
	if !ok {
		return h.unauthorized(c, auth.ErrMissingTenant)
	}

	var req RegisterOfficialRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	device, err := h.Registry.RegisterOfficial(c.Request().Context(), claims.TenantID, req.Name, req.Phone)
	if err != nil {
		return h.deviceError(c, claims.TenantID, err)
	}
	return c.JSON(http.StatusCreated, device)
}

func (h *handlers) updateDevice(c echo.Context) error {
	claims, ok := h.tenant(c)
	if !ok {
		return h.unauthorized(c, auth.ErrMissingTenant)
	}

	var patch entities.DevicePatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if err := h.Registry.Update(c.Request().Context(), claims.TenantID, c.Param("id"), patch); err != nil {
		return h.deviceError(c, claims.TenantID, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) deleteDevice(c echo.Context) error {
	claims, ok := h.tenant(c)
	if !ok {
		return h.unauthorized(c, auth.ErrMissingTenant)
	}

	if err := h.Registry.Delete(c.Request().Context(), claims.TenantID, c.Param("id")); err != nil {
		return h.deviceError(c, claims.TenantID, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) listNotifications(c echo.Context) error {
	claims, ok := h.tenant(c)
	if !ok {
		return h.unauthorized(c, auth.ErrMissingTenant)
	}

	return c.JSON(http.StatusOK, NotificationListResponse{
		Notifications: h.Sink.Active(claims.TenantID),
	})
}

func (h *handlers) dismissNotification(c echo.Context) error {
	claims, ok := h.tenant(c)
	if !ok {
		return h.unauthorized(c, auth.ErrMissingTenant)
	}

	if !h.Sink.Dismiss(claims.TenantID, c.Param("id")) {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "notification_not_found",
			Message: "Notification not found or already dismissed",
		})
	}
	return c.NoContent(http.StatusNoContent)
}

// connectWebSocket upgrades an authenticated dashboard connection
func (h *handlers) connectWebSocket(c echo.Context) error {
	claims, ok := h.tenant(c)
	if !ok {
		return h.unauthorized(c, auth.ErrMissingTenant)
	}

	h.Logger.Info("WebSocket connection authenticated",
		zap.String("tenantID", claims.TenantID),
		zap.String("userID", claims.UserID))

	return websocket.HandleWebSocketWithAuth(h.Hub, c, claims.TenantID, claims.UserID, h.Logger)
}

func (h *handlers) deviceError(c echo.Context, tenantID string, err error) error {
	switch {
	case errors.Is(err, domain.ErrDeviceNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "device_not_found",
			Message: "Device not found",
		})
	case errors.Is(err, domain.ErrInvalidDevice):
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_device",
			Message: err.Error(),
		})
	}
	return h.internalError(c, tenantID, "Device store request failed", err)
}

// internalError answers a failed store or service call and posts it to the
// tenant's notifications, so every open dashboard sees it.
func (h *handlers) internalError(c echo.Context, tenantID, message string, err error) error {
	h.Sink.Notify(tenantID, notify.KindError, message)

	var perr *domain.PersistenceError
	if errors.As(err, &perr) {
		h.Logger.Error(message, zap.String("op", perr.Op), zap.Error(perr.Err))
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "store_unavailable",
			Message: message,
		})
	}

	h.Logger.Error(message, zap.Error(err))
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: message,
	})
}
