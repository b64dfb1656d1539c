package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// CartCookieName identifies the browser's anonymous cart.
const CartCookieName = "sf_cart"

// CartToken ensures every request carries a cart token, issuing a new
// cookie when the browser has none. The token is never tied to a user, so a
// cart stays with the browser that built it.
func CartToken(ttl time.Duration, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if c, err := r.Cookie(CartCookieName); err == nil {
				if _, parseErr := uuid.Parse(c.Value); parseErr == nil {
					token = c.Value
				}
			}
			if token == "" {
				token = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     CartCookieName,
					Value:    token,
					Path:     "/",
					MaxAge:   int(ttl.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(WithCartToken(r.Context(), token)))
		})
	}
}
