package api

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// requireAdmin accepts requests whose bearer token matches the bcrypt hash.
func requireAdmin(hash []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok || bcrypt.CompareHashAndPassword(hash, []byte(token)) != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="sitelens"`)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// HashToken returns the bcrypt hash to put in ADMIN_TOKEN_HASH.
func HashToken(token string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
