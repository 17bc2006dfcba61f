package identity

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// CSRFHeaderName carries the token on state-changing requests.
const CSRFHeaderName = "X-CSRF-Token"

// CSRF issues and checks tokens bound to the visitor cookie with an HMAC.
type CSRF struct {
	secret []byte
}

// NewCSRF creates a CSRF guard. An empty secret gets a random per-process
// key, so tokens do not survive a restart.
func NewCSRF(secret string) (*CSRF, error) {
	if secret != "" {
		return &CSRF{secret: []byte(secret)}, nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate csrf key: %w", err)
	}
	slog.Warn("CSRF_SECRET not set, using ephemeral key")
	return &CSRF{secret: key}, nil
}

// Token returns the token for visitorID.
func (c *CSRF) Token(visitorID string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(visitorID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *CSRF) valid(visitorID, token string) bool {
	if visitorID == "" || token == "" {
		return false
	}
	return hmac.Equal([]byte(c.Token(visitorID)), []byte(token))
}

// TokenHandler serves GET /csrf-token. Requires Middleware upstream.
func (c *CSRF) TokenHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	token := c.Token(VisitorIDFromContext(r.Context()))
	if err := json.NewEncoder(w).Encode(map[string]string{"csrfToken": token}); err != nil {
		slog.Error("failed to encode csrf token", "error", err)
	}
}

// Protect rejects state-changing requests without a valid token for the
// current visitor.
func (c *CSRF) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		visitorID := VisitorIDFromContext(r.Context())
		if !c.valid(visitorID, r.Header.Get(CSRFHeaderName)) {
			slog.Warn("csrf check failed", "method", r.Method, "path", r.URL.Path, "remote_ip", IPFromRequest(r))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"invalid CSRF token"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
