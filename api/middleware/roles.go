package middleware

import (
	"net/http"

	"github.com/simmerworks/simmer-backend/api/responses"
	"github.com/simmerworks/simmer-backend/pkg/enums"
	pkgerrors "github.com/simmerworks/simmer-backend/pkg/errors"
	"github.com/simmerworks/simmer-backend/pkg/logger"
)

// RequireRole rejects requests whose authenticated role does not match.
// It assumes Auth already ran; an unauthenticated request carries the zero
// role and is rejected too.
func RequireRole(role enums.AppRole, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFromContext(r.Context()) != role {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
