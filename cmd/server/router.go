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

package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/your-org/jesus-letters-api/internal/config"
	"github.com/your-org/jesus-letters-api/internal/health"
	"github.com/your-org/jesus-letters-api/internal/history"
	"github.com/your-org/jesus-letters-api/internal/letter"
	"github.com/your-org/jesus-letters-api/internal/middleware"
	"github.com/your-org/jesus-letters-api/internal/pipeline"
	"github.com/your-org/jesus-letters-api/internal/resilience"
)

// server wires the pipeline and its collaborators to the HTTP routes
type server struct {
	cfg          *config.Config
	logger       *zap.Logger
	orchestrator *pipeline.Orchestrator
	store        *history.Store
	healthMgr    *health.Manager
	errorHandler *resilience.ErrorHandler
	startTime    time.Time
}

// setupRouter builds the gin engine with all routes and middleware
func (s *server) setupRouter() *gin.Engine {
	if s.startTime.IsZero() {
		s.startTime = time.Now()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: s.cfg.CORSOrigins()}))

	router.GET("/", s.handleRoot)

	api := router.Group("/api")
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Requests:  s.cfg.RateLimit.GeneralRequests,
		Window:    time.Duration(s.cfg.RateLimit.GeneralWindowMin) * time.Minute,
		SkipPaths: []string{"/api/health", "/api/health/detailed", "/api/health/ready", "/api/health/live"},
	}))

	ai := api.Group("/ai")
	ai.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Requests:  s.cfg.RateLimit.AIRequests,
		Window:    time.Duration(s.cfg.RateLimit.AIWindowMin) * time.Minute,
		Message:   "AI請求過於頻繁，請稍候再試",
		SkipPaths: []string{"/api/ai/status"},
	}))
	ai.POST("/generate", s.handleGenerate)
	ai.GET("/status", s.handleStatus)
	ai.GET("/test", s.handleTest)
	ai.POST("/test", s.handleTest)

	healthGroup := api.Group("/health")
	healthGroup.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Requests: s.cfg.RateLimit.HealthRequests,
		Window:   time.Duration(s.cfg.RateLimit.HealthWindowMin) * time.Minute,
	}))
	healthGroup.GET("", s.handleHealth)
	healthGroup.GET("/detailed", s.handleHealthDetailed)
	healthGroup.GET("/ready", s.handleHealthReady)
	healthGroup.GET("/live", s.handleHealthLive)

	letters := api.Group("/letters")
	letters.GET("", s.handleLetterList)
	letters.GET("/stats", s.handleLetterStats)
	letters.GET("/:id", s.handleLetterGet)

	return router
}

// handleRoot serves the service banner
func (s *server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": serviceName,
		"version": serviceVersion,
		"status":  "running",
		"endpoints": gin.H{
			"generate": "POST /api/ai/generate",
			"status":   "GET /api/ai/status",
			"test":     "GET|POST /api/ai/test",
			"health":   "GET /api/health",
			"letters":  "GET /api/letters",
		},
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleGenerate runs the full generation pipeline for one request.
// Validation failures stop here with a 400; past this point the
// pipeline always produces a response.
func (s *server) handleGenerate(c *gin.Context) {
	var input letter.UserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		s.errorHandler.WriteError(c,
			resilience.NewBadRequestError("請提供完整的資訊（暱稱、主題、情況描述）", err), "")
		return
	}

	if err := input.Validate(); err != nil {
		message := "請提供完整的資訊（暱稱、主題、情況描述）"
		if errors.Is(err, letter.ErrSituationTooLong) {
			message = "情況描述過長，請精簡至2000字以內"
		}
		s.errorHandler.WriteError(c, resilience.NewBadRequestError(message, err), "")
		return
	}

	resp := s.orchestrator.Generate(c.Request.Context(), input)

	s.saveHistory(input, resp)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"userInput":  input,
			"aiResponse": resp,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleStatus reports which providers are configured
func (s *server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"data":      s.orchestrator.Status(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleTest runs the pipeline against a canned request, as a smoke test
func (s *server) handleTest(c *gin.Context) {
	input := letter.UserInput{
		Nickname:  "測試用戶",
		Topic:     letter.TopicWork,
		Situation: "最近工作壓力很大，常常加班到深夜，感覺身心俱疲，不知道該如何面對。",
	}

	resp := s.orchestrator.Generate(c.Request.Context(), input)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"userInput":  input,
			"aiResponse": resp,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// saveHistory records the letter, best effort. Failures are logged and
// never affect the response already produced.
func (s *server) saveHistory(input letter.UserInput, resp letter.GeneratedResponse) {
	if s.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.store.Save(ctx, input, resp); err != nil {
		s.logger.Warn("Failed to save letter to history",
			zap.String("request_id", resp.Metadata.RequestID),
			zap.Error(err),
		)
	}
}

func (s *server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    health.StatusHealthy,
		"service":   serviceName,
		"version":   serviceVersion,
		"uptime":    time.Since(s.startTime).String(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *server) handleHealthDetailed(c *gin.Context) {
	result := s.healthMgr.Check(c.Request.Context())

	statusCode := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, result)
}

func (s *server) handleHealthReady(c *gin.Context) {
	if !s.healthMgr.Ready(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}

func (s *server) handleHealthLive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alive": true})
}

// handleLetterList returns stored letters, newest first
func (s *server) handleLetterList(c *gin.Context) {
	if s.store == nil {
		s.errorHandler.WriteError(c,
			resilience.NewServiceUnavailableError("歷史記錄功能未啟用", nil), "")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := s.store.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.errorHandler.WriteError(c, err, "")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"data":      entries,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleLetterGet returns one stored letter by id
func (s *server) handleLetterGet(c *gin.Context) {
	if s.store == nil {
		s.errorHandler.WriteError(c,
			resilience.NewServiceUnavailableError("歷史記錄功能未啟用", nil), "")
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		s.errorHandler.WriteError(c, resilience.NewBadRequestError("無效的編號", err), "")
		return
	}

	entry, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		s.errorHandler.WriteError(c, err, "")
		return
	}
	if entry == nil {
		s.errorHandler.WriteError(c, resilience.NewNotFoundError("找不到該信件", nil), "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"data":      entry,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleLetterStats returns aggregate counts over stored letters
func (s *server) handleLetterStats(c *gin.Context) {
	if s.store == nil {
		s.errorHandler.WriteError(c,
			resilience.NewServiceUnavailableError("歷史記錄功能未啟用", nil), "")
		return
	}

	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		s.errorHandler.WriteError(c, err, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"data":      stats,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
