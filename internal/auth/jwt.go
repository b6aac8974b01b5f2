package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"

	defaultTokenTTL = 7 * 24 * time.Hour

	claimsContextKey = "claims"
)

var ErrMissingTenant = errors.New("token carries no tenant")

// JWTClaims represents the claims of a dashboard user token
type JWTClaims struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates HS256 tokens
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// GenerateUserToken generates a JWT token for a dashboard user of a tenant
func (m *TokenManager) GenerateUserToken(tenantID, userID, role string) (string, error) {
	if tenantID == "" {
		return "", ErrMissingTenant
	}

	now := time.Now()
	claims := &JWTClaims{
		TenantID: tenantID,
		UserID:   userID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken validates a JWT token and returns the claims
func (m *TokenManager) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrInvalidKey
	}
	if claims.TenantID == "" {
		return nil, ErrMissingTenant
	}
	return claims, nil
}

func (m *TokenManager) keyFunc(*jwt.Token) (interface{}, error) {
	return m.secret, nil
}

// Middleware authenticates requests with a bearer token, or a token query
// parameter for WebSocket upgrades that cannot set headers. A nil
// errorHandler answers 401.
func (m *TokenManager) Middleware(errorHandler func(c echo.Context, err error) error) echo.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing token").SetInternal(err)
		}
	}

	return echojwt.WithConfig(echojwt.Config{
		TokenLookup: "header:Authorization:Bearer ,query:token",
		ContextKey:  claimsContextKey,
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return m.ValidateToken(auth)
		},
		ErrorHandler: errorHandler,
	})
}

// ClaimsFrom returns the claims that the middleware stored on the context
func ClaimsFrom(c echo.Context) (*JWTClaims, bool) {
	claims, ok := c.Get(claimsContextKey).(*JWTClaims)
	if !ok || claims.TenantID == "" {
		return nil, false
	}
	return claims, true
}
