package auth

import (
	"net/http"
	"strings"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// TokenSpec pairs a caller name with the bcrypt hash its bearer token must
// match. An empty hash disables that caller.
type TokenSpec struct {
	Name string
	Hash string
}

// RequireToken returns middleware that authenticates the request's bearer
// token against the accepted specs and stores the matching caller in the
// request context. No match means 401, never pass-through.
func RequireToken(specs ...TokenSpec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			for _, spec := range specs {
				if spec.Hash == "" {
					continue
				}
				if bcrypt.CompareHashAndPassword([]byte(spec.Hash), []byte(token)) == nil {
					ctx := WithCaller(r.Context(), &Caller{Name: spec.Name})
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			logger.WithFields(map[string]interface{}{
				"path":   r.URL.Path,
				"remote": r.RemoteAddr,
			}).Warn("Rejected request with invalid token")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
