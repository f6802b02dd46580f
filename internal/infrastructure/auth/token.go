package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultCookieName = "token"
	QueryParam        = "token"
	issuer            = "silentroom"
)

var (
	ErrMissingToken = errors.New("authentication token missing")
	ErrInvalidToken = errors.New("authentication token invalid")
)

// Claims carries the participant id under "_id", the claim name the account
// service signs tokens with.
type Claims struct {
	ParticipantID string `json:"_id"`
	Nickname      string `json:"nickname,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 participant tokens.
type TokenManager struct {
	secret []byte
	now    func() time.Time
}

func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		now:    time.Now,
	}
}

func (m *TokenManager) Generate(participantID, nickname string, ttl time.Duration) (string, error) {
	now := m.now()

	claims := &Claims{
		ParticipantID: participantID,
		Nickname:      nickname,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ParticipantID == "" {
		return nil, fmt.Errorf("%w: _id claim is empty", ErrInvalidToken)
	}

	return claims, nil
}

func (m *TokenManager) keyFunc(*jwt.Token) (any, error) {
	return m.secret, nil
}

// FromRequest finds the token in the cookie, then the bearer header and,
// when allowQuery is set, the token query parameter used by browser
// WebSocket clients that cannot set headers.
func FromRequest(r *http.Request, cookieName string, allowQuery bool) string {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}

	if allowQuery {
		return r.URL.Query().Get(QueryParam)
	}
	return ""
}

type contextKey struct{}

func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*Claims)
	return claims, ok
}

// ParticipantFrom returns the authenticated participant id, or "".
func ParticipantFrom(ctx context.Context) string {
	if claims, ok := ClaimsFrom(ctx); ok {
		return claims.ParticipantID
	}
	return ""
}
