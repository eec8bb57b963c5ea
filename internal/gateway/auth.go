package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/flemzord/aura/internal/security"
)

// authenticate checks r against the configured credentials and returns the
// scheme that matched. Bearer is tried before Basic; both compare in
// constant time.
func (a AuthConfig) authenticate(r *http.Request) (scheme string, ok bool) {
	if a.BearerToken != "" {
		if token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); found && secureEqual(token, a.BearerToken) {
			return "bearer", true
		}
	}
	if a.BasicUser != "" && a.BasicPass != "" {
		if user, pass, found := r.BasicAuth(); found && secureEqual(user, a.BasicUser) && secureEqual(pass, a.BasicPass) {
			return "basic", true
		}
	}
	return "", false
}

// authMiddleware guards the API. Every attempt draws from the auth rate
// limit bucket and leaves an audit event; audit and limiter may be nil.
func authMiddleware(cfg AuthConfig, audit *security.AuditLogger, limiter *security.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := limiter.Allow(security.BucketAuth); err != nil {
				auditRequest(audit, r, security.EventRateLimit, security.BucketAuth)
				writeError(w, err)
				return
			}

			scheme, ok := cfg.authenticate(r)
			if !ok {
				detail := "invalid credentials"
				if r.Header.Get("Authorization") == "" {
					detail = "missing authorization header"
				}
				auditRequest(audit, r, security.EventAuthFailure, detail)
				writeError(w, errUnauthorized)
				return
			}
			auditRequest(audit, r, security.EventAuthSuccess, scheme)
			next.ServeHTTP(w, r)
		})
	}
}

func auditRequest(audit *security.AuditLogger, r *http.Request, typ security.EventType, detail string) {
	audit.Log(security.AuditEvent{
		Type:   typ,
		Detail: detail,
		Metadata: map[string]string{
			"remote_addr": r.RemoteAddr,
			"method":      r.Method,
			"path":        r.URL.Path,
		},
	})
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
