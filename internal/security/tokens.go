package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

// AccessClaims: короткоживущий access-токен. Subject: UID сотрудника.
type AccessClaims struct {
	StaffID string `json:"sid"`
	Role    string `json:"role"`
	Status  string `json:"status"`
	Type    string `json:"typ"`
	jwt.RegisteredClaims
}

// RefreshClaims: refresh-токен привязан к строке refresh_sessions.
type RefreshClaims struct {
	StaffID   string `json:"sid"`
	SessionID string `json:"session_id"`
	Type      string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenManager подписывает и проверяет JWT (HS256).
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (m *TokenManager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *TokenManager) RefreshTTL() time.Duration { return m.refreshTTL }

func (m *TokenManager) IssueAccess(uid uuid.UUID, staffID, role, status string, now time.Time) (string, error) {
	claims := &AccessClaims{
		StaffID: staffID,
		Role:    role,
		Status:  status,
		Type:    tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
			ID:        uuid.NewString(),
		},
	}
	return m.sign(claims)
}

// IssueRefresh возвращает токен и момент его истечения (он же пишется в сессию).
func (m *TokenManager) IssueRefresh(uid uuid.UUID, staffID string, sessionID uuid.UUID, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(m.refreshTTL)
	claims := &RefreshClaims{
		StaffID:   staffID,
		SessionID: sessionID.String(),
		Type:      tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	token, err := m.sign(claims)
	return token, expiresAt, err
}

func (m *TokenManager) ParseAccess(token string, now time.Time) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(token, claims, now); err != nil {
		return nil, err
	}
	if claims.Type != tokenTypeAccess {
		return nil, fmt.Errorf("%w: not an access token", ErrInvalidToken)
	}
	return claims, nil
}

func (m *TokenManager) ParseRefresh(token string, now time.Time) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(token, claims, now); err != nil {
		return nil, err
	}
	if claims.Type != tokenTypeRefresh {
		return nil, fmt.Errorf("%w: not a refresh token", ErrInvalidToken)
	}
	return claims, nil
}

func (m *TokenManager) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

func (m *TokenManager) parse(token string, claims jwt.Claims, now time.Time) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return now }), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}
