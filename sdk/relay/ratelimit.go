// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientBucket tracks a per-client token bucket and when it was last used,
// so stale entries can be evicted.
type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientRateLimiter enforces a per-client-IP token-bucket limit on the
// relay. The relay serves one interactive session at a time; the limiter
// exists to stop a runaway loop in the browser from hammering the vendor.
func clientRateLimiter(rps float64, burst int) func(http.Handler) http.Handler {
	var clients sync.Map // map[string]*clientBucket

	go func() {
		for {
			time.Sleep(5 * time.Minute)
			clients.Range(func(key, value any) bool {
				if time.Since(value.(*clientBucket).lastSeen) > 10*time.Minute {
					clients.Delete(key)
				}
				return true
			})
		}
	}()

	bucketFor := func(ip string) *rate.Limiter {
		if v, ok := clients.Load(ip); ok {
			cb := v.(*clientBucket)
			cb.lastSeen = time.Now()
			return cb.limiter
		}
		lim := rate.NewLimiter(rate.Limit(rps), burst)
		clients.Store(ip, &clientBucket{limiter: lim, lastSeen: time.Now()})
		return lim
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Preflight must never be throttled; the browser retries it
			// for every cross-origin call.
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if !bucketFor(clientIP(r)).Allow() {
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"RATE_LIMITED"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
