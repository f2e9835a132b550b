// Package auth resolves the calling user from a request. Bearer tokens are
// HS256 JWTs; when no secret is configured the X-User-Id and X-User-Role
// headers are trusted, which is only meant for local development.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleViewer = "viewer"
	RoleAdmin  = "admin"

	DefaultTokenTTL = 15 * time.Minute
)

var (
	ErrInvalidToken    = errors.New("invalid bearer token")
	ErrExpiredToken    = errors.New("bearer token expired")
	ErrUnauthenticated = errors.New("authentication required")
)

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Role   string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Claims carries the user id and role of a session token.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(strings.TrimSpace(secret)), now: time.Now}
}

// HeaderFallback reports whether X-User-Id is accepted in place of a token.
func (v *Verifier) HeaderFallback() bool {
	return v == nil || len(v.secret) == 0
}

// IssueToken signs a token for userID valid for ttl (DefaultTokenTTL when zero).
func (v *Verifier) IssueToken(userID string, role string, ttl time.Duration) (string, error) {
	if v.HeaderFallback() {
		return "", errors.New("auth secret is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("user id is required")
	}
	if role == "" {
		role = RoleViewer
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := v.now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func (v *Verifier) ParseToken(raw string) (Principal, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrExpiredToken
		}
		return Principal{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || strings.TrimSpace(claims.UserID) == "" {
		return Principal{}, ErrInvalidToken
	}
	role := claims.Role
	if role == "" {
		role = RoleViewer
	}
	return Principal{UserID: claims.UserID, Role: role}, nil
}

// Authenticate resolves the caller of r.
func (v *Verifier) Authenticate(r *http.Request) (Principal, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header != "" && !v.HeaderFallback() {
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return Principal{}, ErrInvalidToken
		}
		return v.ParseToken(strings.TrimSpace(raw))
	}
	if !v.HeaderFallback() {
		return Principal{}, ErrUnauthenticated
	}
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		return Principal{}, ErrUnauthenticated
	}
	role := strings.TrimSpace(r.Header.Get("X-User-Role"))
	if role == "" {
		role = RoleViewer
	}
	return Principal{UserID: userID, Role: role}, nil
}
