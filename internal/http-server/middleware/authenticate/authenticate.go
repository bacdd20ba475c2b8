package authenticate

import (
	"context"
	"fmt"
	"invisifeed/entity"
	"invisifeed/lib/api/cont"
	"invisifeed/lib/api/response"
	"invisifeed/lib/sl"
	"log/slog"
	"net/http"
	"strings"
)

type Authenticate interface {
	AuthenticateByToken(ctx context.Context, token string) (*entity.Owner, error)
}

// New accepts "Authorization: Bearer <token>" and stores the owner username in the request context
func New(log *slog.Logger, auth Authenticate) func(next http.Handler) http.Handler {
	mod := sl.Module("middleware.authenticate")
	log.With(mod).Info("authenticate middleware initialized")

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			logger := log.With(
				mod,
				sl.RequestId(r.Context()),
			)

			header := r.Header.Get("Authorization")
			if header == "" {
				authFailed(w, r, logger, fmt.Errorf("%w: authorization header not found", entity.ErrUnauthorized))
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				authFailed(w, r, logger, fmt.Errorf("%w: bearer token not found", entity.ErrUnauthorized))
				return
			}
			logger = logger.With(sl.Secret("token", token))

			if auth == nil {
				authFailed(w, r, logger, fmt.Errorf("%w: authentication not enabled", entity.ErrUnauthorized))
				return
			}

			owner, err := auth.AuthenticateByToken(r.Context(), token)
			if err != nil {
				authFailed(w, r, logger, err)
				return
			}

			w.Header().Set("X-User", owner.Username)
			ctx := cont.PutOwner(r.Context(), owner.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}

func authFailed(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	log.Log(r.Context(), response.Level(err), "authentication failed", sl.Err(err))
	response.Render(w, r, err)
}
