package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/openlaps/apexfantasy/models"
	"github.com/openlaps/apexfantasy/services"
)

type contextKey string

const actorContextKey contextKey = "actor"

// TokenParser — то, что умеет проверить токен доступа.
type TokenParser interface {
	ParseToken(token string) (*services.Claims, error)
}

// Authenticate resolves the caller's manager identity from a Bearer token
// and stores it in the request context as a services.Actor.
func Authenticate(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := parser.ParseToken(token)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			actor := services.Actor{
				ManagerID: claims.ManagerID,
				Role:      claims.Role,
			}
			ctx := context.WithValue(r.Context(), actorContextKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a subtree to the given roles. Must run after
// Authenticate.
func RequireRole(roles ...models.ManagerRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "Forbidden", http.StatusForbidden)
		})
	}
}

// ActorFromContext returns the authenticated caller, if any.
func ActorFromContext(ctx context.Context) (services.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(services.Actor)
	return actor, ok
}
