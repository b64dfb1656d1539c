package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/sweetcrumb/storefront/api/responses"
	pkgAuth "github.com/sweetcrumb/storefront/pkg/auth"
	"github.com/sweetcrumb/storefront/pkg/auth/session"
	"github.com/sweetcrumb/storefront/pkg/config"
	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
	"github.com/sweetcrumb/storefront/pkg/logger"
)

// Auth requires a valid bearer token backed by a live session.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return bearer{cfg: cfg, verifier: verifier, logg: logg, required: true}.middleware
}

// OptionalAuth lets requests without a token through anonymously. A token
// that is sent must still be valid.
func OptionalAuth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return bearer{cfg: cfg, verifier: verifier, logg: logg}.middleware
}

type bearer struct {
	cfg      config.JWTConfig
	verifier session.AccessSessionChecker
	logg     *logger.Logger
	required bool
}

func (b bearer) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" && !b.required {
			next.ServeHTTP(w, r)
			return
		}
		ctx, err := b.identify(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), b.logg, w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identify checks token and its session and returns ctx carrying the caller.
func (b bearer) identify(ctx context.Context, token string) (context.Context, error) {
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessToken(b.cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	if b.verifier != nil {
		live, err := b.verifier.HasSession(ctx, claims.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
		}
		if !live {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
		}
	}

	ctx = WithIdentity(ctx, claims.UserID, claims.Email, claims.ID)
	if b.logg != nil {
		ctx = b.logg.WithSessionID(b.logg.WithUserID(ctx, claims.UserID.String()), claims.ID)
	}
	return ctx, nil
}

// BearerToken returns the Authorization header value without its "Bearer "
// scheme prefix.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, rest, ok := strings.Cut(raw, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}
	return raw
}
