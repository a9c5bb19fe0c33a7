package httpapi

import (
	"context"
	"net/http"

	"github.com/hilthontt/syncbroker/internal/domain"
	httpjson "github.com/hilthontt/syncbroker/internal/infrastructure/json"
)

type contextKey string

const userContextKey contextKey = "syncbroker.user"

// enableCors mirrors the teacher's permissive development CORS policy.
func (app *Application) enableCors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, x-jwt")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireUserJWT enforces the x-jwt header on every non-login POST:
// absence or an invalid token yields 403.
func (app *Application) requireUserJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("x-jwt")
		if token == "" {
			httpjson.WriteError(w, http.StatusForbidden, domain.ErrAuthInvalid, "missing x-jwt header")
			return
		}

		user, err := app.broker.Credentials.Signer.GetUser(token)
		if err != nil {
			httpjson.WriteError(w, http.StatusForbidden, err, "invalid x-jwt token")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(r *http.Request) (domain.User, bool) {
	user, ok := r.Context().Value(userContextKey).(domain.User)
	return user, ok
}
