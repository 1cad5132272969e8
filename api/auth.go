/*
auth.go - JWT authentication and role gates

PURPOSE:
  Authenticates every /api request with an HS256 bearer token minted by the
  external identity provider (cmd/mktoken mints compatible tokens for local
  development). The verified identity travels in the request context.

CLAIMS:
  id       operator id (required)
  nome     display name
  funcoes  role list; a legacy "funcao" string claim is accepted and
           promoted to a single-element list

ROLE GATES:
  requireAdmin guards the administrative surface (orders, services,
  catalog, users). Execution transitions and reports are open to any
  authenticated operator; their finer-grained rules live in the engine.
*/
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/dgrijalva/jwt-go"

	"github.com/warp/production-engine/execution"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller extracted from the bearer token.
type Identity struct {
	ID    execution.OperatorID
	Name  string
	Roles []string
}

// Actor converts the identity into the engine's actor shape.
func (id Identity) Actor() execution.Actor {
	return execution.Actor{ID: id.ID, Roles: id.Roles}
}

// IdentityFrom extracts the authenticated identity from the context.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// authenticate verifies the Authorization header and stores the caller's
// identity in the request context.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return h.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}

		identity, ok := identityFromClaims(claims)
		if !ok {
			writeError(w, http.StatusUnauthorized, "token missing operator id")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFromClaims(claims jwt.MapClaims) (Identity, bool) {
	id, _ := claims["id"].(string)
	if id == "" {
		return Identity{}, false
	}

	identity := Identity{ID: execution.OperatorID(id)}
	identity.Name, _ = claims["nome"].(string)

	switch funcoes := claims["funcoes"].(type) {
	case []interface{}:
		for _, f := range funcoes {
			if s, ok := f.(string); ok {
				identity.Roles = append(identity.Roles, s)
			}
		}
	case string:
		identity.Roles = []string{funcoes}
	}
	// Legacy tokens carry a single "funcao" claim instead.
	if len(identity.Roles) == 0 {
		if funcao, ok := claims["funcao"].(string); ok && funcao != "" {
			identity.Roles = []string{funcao}
		}
	}
	return identity, true
}

// requireAdmin rejects callers whose roles lack the privileged role.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFrom(r.Context())
		if !ok || !execution.IsAdmin(identity.Roles) {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
