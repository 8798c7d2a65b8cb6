package middleware

import (
	"context"
	"net/http"

	httputil "seva/pkg/http"
	"seva/pkg/logger"
	"seva/pkg/model"
)

const PrincipalKey contextKey = "principal"

type Authenticator interface {
	Verify(ctx context.Context, token string) (model.Principal, error)
}

// TokenExtractor pulls the raw token out of a request.
type TokenExtractor func(r *http.Request) string

// Auth rejects requests without a valid token and stores the principal in
// the request context.
func Auth(auth Authenticator, extract TokenExtractor, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := auth.Verify(r.Context(), extract(r))
			if err != nil {
				log.Warn("Request authentication failed",
					"request_id", RequestIDFrom(r.Context()),
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				_ = httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(model.Principal)
	return p, ok && p.UserID != ""
}
