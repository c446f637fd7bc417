// Copyright 2025 Jesus Letters Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/your-org/jesus-letters-api/internal/resilience"
)

// RateLimitConfig describes one limiter: at most Requests per Window
// per client IP. SkipPaths lists route paths exempt from this limiter.
type RateLimitConfig struct {
	Requests  int
	Window    time.Duration
	Message   string
	SkipPaths []string
}

// staleAfter is how long an idle client's bucket is kept before pruning
const staleAfter = 30 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter hands out one token bucket per client IP
type ipLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
}

func newIPLimiter(requests int, window time.Duration) *ipLimiter {
	return &ipLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Every(window / time.Duration(requests)),
		burst:   requests,
	}
}

// allow checks the bucket for ip, creating it on first sight. Stale
// buckets are pruned inline so no background goroutine is needed.
func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	for addr, client := range l.clients {
		if now.Sub(client.lastSeen) > staleAfter {
			delete(l.clients, addr)
		}
	}

	client, ok := l.clients[ip]
	if !ok {
		client = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = client
	}
	client.lastSeen = now

	return client.limiter.Allow()
}

// RateLimit builds a per-IP rate limiting middleware from cfg. Requests
// over the limit get a 429 in the standard error envelope.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Requests <= 0 || cfg.Window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	message := cfg.Message
	if message == "" {
		message = "請求過於頻繁，請稍後再試"
	}

	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skip[path] = true
	}

	limiter := newIPLimiter(cfg.Requests, cfg.Window)

	return func(c *gin.Context) {
		if skip[c.FullPath()] {
			c.Next()
			return
		}

		if !limiter.allow(c.ClientIP()) {
			serviceErr := resilience.NewTooManyRequestsError(message, nil)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, serviceErr.ToErrorResponse(""))
			return
		}

		c.Next()
	}
}
