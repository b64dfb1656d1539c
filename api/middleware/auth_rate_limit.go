package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sweetcrumb/storefront/api/responses"
	"github.com/sweetcrumb/storefront/internal/users"
	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
	"github.com/sweetcrumb/storefront/pkg/logger"
)

// maxAuthBody bounds how much of a sign-in body is buffered to find the email.
const maxAuthBody = 64 << 10

type rateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// AuthRateLimitPolicy is one endpoint's fixed window and its per-IP and
// per-email attempt limits. A zero limit disables that dimension.
type AuthRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int
	emailLimit int
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{name: name, window: window, ipLimit: ipLimit, emailLimit: emailLimit}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.emailLimit > 0)
}

// scope keys a counter as "<dimension>:<policy>:<subject>".
func (p AuthRateLimitPolicy) scope(dimension, subject string) string {
	return dimension + ":" + p.name + ":" + subject
}

// rejection describes a request that went over a limit.
type rejection struct {
	dimension string
	subject   string
	attempts  int64
	limit     int
}

// AuthRateLimit enforces per-IP and per-email fixed-window counters on the
// sign-in and sign-up endpoints. Emails are hashed before they reach Redis.
func AuthRateLimit(policy AuthRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		count := func(ctx context.Context, dimension, subject string, limit int) (*rejection, error) {
			if limit <= 0 || subject == "" {
				return nil, nil
			}
			n, err := store.IncrWithTTL(ctx, store.RateLimitKey(policy.scope(dimension, subject)), policy.window)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting")
			}
			if n > int64(limit) {
				return &rejection{dimension: dimension, subject: subject, attempts: n, limit: limit}, nil
			}
			return nil, nil
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			rej, err := count(ctx, "ip", clientIP(r), policy.ipLimit)
			if err == nil && rej == nil && policy.emailLimit > 0 {
				var email string
				email, err = peekEmail(r)
				if err == nil {
					rej, err = count(ctx, "email", emailDigest(email), policy.emailLimit)
				}
			}

			switch {
			case err != nil:
				responses.WriteError(ctx, logg, w, err)
			case rej != nil:
				rateLimited(ctx, logg, w, policy, rej)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// peekEmail reads the JSON email field and restores the body for the handler.
func peekEmail(r *http.Request) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxAuthBody))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return "", nil
	}
	return users.NormalizeEmail(payload.Email), nil
}

func emailDigest(email string) string {
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}

func rateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy AuthRateLimitPolicy, rej *rejection) {
	retryAfter := int(policy.window.Seconds())
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":         policy.name,
			"scope":          rej.dimension,
			"subject":        rej.subject,
			"attempts":       rej.attempts,
			"limit":          rej.limit,
			"window_seconds": retryAfter,
		}), "auth.rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
}

// clientIP trusts the first X-Forwarded-For hop, then X-Real-IP, then the
// socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
