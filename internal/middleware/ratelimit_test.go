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
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newLimitedRouter(cfg RateLimitConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit(cfg))
	router.GET("/api/ai/generate", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/api/ai/status", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return router
}

func doRequest(router *gin.Engine, path, ip string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = ip + ":12345"
	router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit_BlocksOverLimit(t *testing.T) {
	router := newLimitedRouter(RateLimitConfig{Requests: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		if code := doRequest(router, "/api/ai/generate", "10.0.0.1"); code != http.StatusOK {
			t.Fatalf("Request %d: expected 200, got %d", i+1, code)
		}
	}

	if code := doRequest(router, "/api/ai/generate", "10.0.0.1"); code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 over the limit, got %d", code)
	}
}

func TestRateLimit_PerIP(t *testing.T) {
	router := newLimitedRouter(RateLimitConfig{Requests: 1, Window: time.Minute})

	if code := doRequest(router, "/api/ai/generate", "10.0.0.1"); code != http.StatusOK {
		t.Fatalf("Expected first request to pass, got %d", code)
	}
	if code := doRequest(router, "/api/ai/generate", "10.0.0.1"); code != http.StatusTooManyRequests {
		t.Errorf("Expected same IP to be limited, got %d", code)
	}
	if code := doRequest(router, "/api/ai/generate", "10.0.0.2"); code != http.StatusOK {
		t.Errorf("Expected different IP to pass, got %d", code)
	}
}

func TestRateLimit_SkipPaths(t *testing.T) {
	router := newLimitedRouter(RateLimitConfig{
		Requests:  1,
		Window:    time.Minute,
		SkipPaths: []string{"/api/ai/status"},
	})

	for i := 0; i < 5; i++ {
		if code := doRequest(router, "/api/ai/status", "10.0.0.1"); code != http.StatusOK {
			t.Fatalf("Request %d: expected skipped path to pass, got %d", i+1, code)
		}
	}
}

func TestRateLimit_DisabledWithZeroConfig(t *testing.T) {
	router := newLimitedRouter(RateLimitConfig{})

	for i := 0; i < 10; i++ {
		if code := doRequest(router, "/api/ai/generate", "10.0.0.1"); code != http.StatusOK {
			t.Fatalf("Request %d: expected no limiting, got %d", i+1, code)
		}
	}
}

func TestRateLimit_ErrorEnvelope(t *testing.T) {
	router := newLimitedRouter(RateLimitConfig{
		Requests: 1,
		Window:   time.Minute,
		Message:  "AI請求過於頻繁",
	})

	doRequest(router, "/api/ai/generate", "10.0.0.1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/ai/generate", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	router.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "AI請求過於頻繁") {
		t.Errorf("Expected configured message in body, got %s", body)
	}
	if !strings.Contains(body, `"success":false`) {
		t.Errorf("Expected success false envelope, got %s", body)
	}
}
