package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"

	"github.com/erazemk/jaego/internal/auth"
	"github.com/erazemk/jaego/internal/db"
	"github.com/erazemk/jaego/internal/model"
	"github.com/erazemk/jaego/internal/ratelimit"
	"github.com/erazemk/jaego/internal/store"
)

type contextKey string

const (
	claimsKey    contextKey = "claims"
	requestIDKey contextKey = "request_id"
	clientIPKey  contextKey = "client_ip"
)

// AuthMiddleware validates the bearer token, rejects revoked tokens and
// refreshes the caller's level from the database so that level changes and
// deletions take effect immediately.
func AuthMiddleware(secret string, database *sqlx.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				jsonError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}

			claims, err := auth.ValidateToken(secret, strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				jsonError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			revoked, err := store.IsTokenRevoked(r.Context(), database, claims.ID)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if revoked {
				jsonError(w, http.StatusUnauthorized, "token has been revoked")
				return
			}

			user, err := store.GetUser(r.Context(), database, claims.UserID)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if user == nil || user.DeletedAt != nil {
				jsonError(w, http.StatusUnauthorized, "account no longer exists")
				return
			}
			claims.Username = user.Username
			claims.Level = user.Level

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireLevel returns middleware that checks the caller has at least the
// given level. Denials are written to the audit log.
func RequireLevel(database *sqlx.DB, minimum string) func(http.Handler) http.Handler {
	return require(database, func(level string) bool {
		return model.LevelAtLeast(level, minimum)
	}, "level "+minimum)
}

// RequirePermission returns middleware that checks the caller's level grants p.
func RequirePermission(database *sqlx.DB, p model.Permission) func(http.Handler) http.Handler {
	return require(database, func(level string) bool {
		return model.HasPermission(level, p)
	}, string(p))
}

func require(database *sqlx.DB, allowed func(level string) bool, needed string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				jsonError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			if !allowed(claims.Level) {
				slog.Warn("permission denied", "user", claims.Username, "level", claims.Level, "required", needed, "path", r.URL.Path)
				audit(r, database, store.AuditEntry{
					Category: model.AuditSecurity,
					Action:   "permission_denied",
					Level:    model.AuditWarning,
					Details:  map[string]string{"required": needed, "method": r.Method, "path": r.URL.Path},
				})
				jsonError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetClaims retrieves the JWT claims from the context.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// audit records e with the caller and client filled in. Failures are logged
// and never fail the request.
func audit(r *http.Request, q db.DBTX, e store.AuditEntry) {
	if claims := GetClaims(r.Context()); claims != nil {
		if e.UserID == "" {
			e.UserID = claims.UserID
		}
		if e.Username == "" {
			e.Username = claims.Username
		}
		if e.UserLevel == "" {
			e.UserLevel = claims.Level
		}
	}
	e.IPAddress = clientIP(r)
	e.UserAgent = r.UserAgent()

	if err := store.RecordAudit(r.Context(), q, e); err != nil {
		slog.Error("writing audit log", "action", e.Action, "error", err)
	}
}

// ClientIPMiddleware resolves the client address once per request. Forwarding
// headers are honored only when the direct peer is one of trusted; otherwise
// the peer address is the client.
func ClientIPMiddleware(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolveClientIP(r, trusted)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientIPKey, ip)))
		})
	}
}

func resolveClientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := remoteHost(r)
	if !isTrusted(peer, trusted) {
		return peer
	}

	// Walk the chain right to left; the first hop not added by one of our
	// proxies is the client.
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		hops := strings.Split(fwd, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !isTrusted(hop, trusted) || i == 0 {
				return hop
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return peer
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// clientIP returns the address resolved by ClientIPMiddleware, or the peer
// address when the middleware did not run.
func clientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey).(string); ok {
		return ip
	}
	return remoteHost(r)
}

// RateLimitMiddleware limits requests per client IP. Limiter failures let the
// request through.
func RateLimitMiddleware(limiter ratelimit.Limiter, prefix string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !checkRate(w, r, limiter, prefix+clientIP(r)) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// checkRate consumes one request from key and writes the 429 response when
// the window is exhausted.
func checkRate(w http.ResponseWriter, r *http.Request, limiter ratelimit.Limiter, key string) bool {
	if limiter == nil {
		return true
	}
	res, err := limiter.Allow(r.Context(), key)
	if err != nil {
		slog.Error("rate limiter failed", "key", key, "error", err)
		return true
	}
	return rateVerdict(w, res)
}

// checkBudget is checkRate without consuming a request, for limits that only
// count failures.
func checkBudget(w http.ResponseWriter, r *http.Request, limiter ratelimit.Limiter, key string) bool {
	if limiter == nil {
		return true
	}
	res, err := limiter.Peek(r.Context(), key)
	if err != nil {
		slog.Error("rate limiter failed", "key", key, "error", err)
		return true
	}
	return rateVerdict(w, res)
}

// recordFailure counts one failure against key and updates the rate headers.
func recordFailure(w http.ResponseWriter, r *http.Request, limiter ratelimit.Limiter, key string) {
	if limiter == nil {
		return
	}
	res, err := limiter.Allow(r.Context(), key)
	if err != nil {
		slog.Error("rate limiter failed", "key", key, "error", err)
		return
	}
	setRateHeaders(w, res)
}

func setRateHeaders(w http.ResponseWriter, res ratelimit.Result) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))
}

func rateVerdict(w http.ResponseWriter, res ratelimit.Result) bool {
	setRateHeaders(w, res)
	if res.Allowed {
		return true
	}

	retry := res.RetryAfter(time.Now())
	w.Header().Set("Retry-After", strconv.Itoa(int(retry/time.Second)))
	writeJSON(w, http.StatusTooManyRequests, errorEnvelope{
		Error:     fmt.Sprintf("too many requests, retry in %d seconds", int(retry/time.Second)),
		Code:      "RATE_LIMITED",
		Timestamp: timestamp(),
	})
	return false
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware tags each request with an ID and logs method, path,
// status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = ulid.Make().String()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))

		slog.Info("request",
			"method", r.Method,
			"path", r.URL.RequestURI(),
			"status", rec.status,
			"duration", time.Since(start).Round(time.Millisecond),
			"ip", clientIP(r),
			"request_id", id,
		)
	})
}
