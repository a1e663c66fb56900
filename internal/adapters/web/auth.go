package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"warehouse-ops/internal/core"
)

const authCookie = "auth_token"

type actorKey struct{}

// actorFromContext returns the authenticated caller stored in ctx.
func actorFromContext(ctx context.Context) (core.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(core.Actor)
	return a, ok
}

// Claims is the JWT payload identifying a scanner session.
type Claims struct {
	OperatorID  string    `json:"operator_id"`
	WarehouseID string    `json:"warehouse_id"`
	Role        core.Role `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for actor, valid for ttl.
func IssueToken(secret string, actor core.Actor, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	now := time.Now()
	claims := &Claims{
		OperatorID:  actor.OperatorID,
		WarehouseID: actor.WarehouseID,
		Role:        actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.OperatorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates a signed token and returns the actor it carries.
func ParseToken(secret, raw string) (core.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return core.Actor{}, fmt.Errorf("invalid or expired token: %w", err)
	}
	if claims.WarehouseID == "" || claims.OperatorID == "" {
		return core.Actor{}, errors.New("token is missing operator or warehouse")
	}
	role, err := core.ParseRole(string(claims.Role))
	if err != nil {
		return core.Actor{}, err
	}
	return core.Actor{OperatorID: claims.OperatorID, WarehouseID: claims.WarehouseID, Role: role}, nil
}

// bearerToken reads the Authorization header first, then the auth cookie.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	if c, err := r.Cookie(authCookie); err == nil {
		return c.Value
	}
	return ""
}

// RequireAuth is chi middleware that validates the caller's token and
// injects the Actor into the request context. Returns 401 otherwise.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		actor, err := ParseToken(h.jwtSecret, raw)
		if err != nil {
			writeError(w, r, "invalid or expired token", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), actorKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// me handles GET /api/auth/me and echoes the token's identity.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, r, "not authenticated", "UNAUTHORIZED", http.StatusUnauthorized)
		return
	}
	type meResponse struct {
		OperatorID  string    `json:"operator_id"`
		WarehouseID string    `json:"warehouse_id"`
		Role        core.Role `json:"role"`
	}
	writeJSON(w, meResponse{OperatorID: actor.OperatorID, WarehouseID: actor.WarehouseID, Role: actor.Role})
}

// logout handles POST /api/auth/logout and clears the auth cookie.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}
