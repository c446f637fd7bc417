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

package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestManager_Check(t *testing.T) {
	manager := NewManager("jesus-letters-api", "1.0.0", zap.NewNop())

	manager.AddCheckerFunc("healthy", func(ctx context.Context) CheckResult {
		return CheckResult{
			Status:    StatusHealthy,
			Timestamp: time.Now(),
		}
	})

	manager.AddCheckerFunc("unhealthy", func(ctx context.Context) CheckResult {
		return CheckResult{
			Status:    StatusUnhealthy,
			Error:     "service is down",
			Timestamp: time.Now(),
		}
	})

	result := manager.Check(context.Background())

	if result.Status != StatusUnhealthy {
		t.Errorf("Expected status to be unhealthy, got %s", result.Status)
	}

	if result.Service != "jesus-letters-api" {
		t.Errorf("Expected service to be jesus-letters-api, got %s", result.Service)
	}

	if result.Version != "1.0.0" {
		t.Errorf("Expected version to be 1.0.0, got %s", result.Version)
	}

	if len(result.Dependencies) != 2 {
		t.Errorf("Expected 2 dependencies, got %d", len(result.Dependencies))
	}

	if result.Dependencies["healthy"].Status != StatusHealthy {
		t.Errorf("Expected healthy dependency to be healthy, got %s", result.Dependencies["healthy"].Status)
	}

	if result.Dependencies["unhealthy"].Error != "service is down" {
		t.Errorf("Expected error message preserved, got %s", result.Dependencies["unhealthy"].Error)
	}
}

func TestManager_DegradedDoesNotFailReadiness(t *testing.T) {
	manager := NewManager("jesus-letters-api", "1.0.0", zap.NewNop())

	manager.AddChecker("gemini", ProviderChecker("gemini", false))
	manager.AddChecker("openai", ProviderChecker("openai", true))

	result := manager.Check(context.Background())

	if result.Status != StatusDegraded {
		t.Errorf("Expected degraded overall status, got %s", result.Status)
	}

	if !manager.Ready(context.Background()) {
		t.Error("Expected degraded service to still be ready")
	}
}

func TestManager_NoCheckers(t *testing.T) {
	manager := NewManager("jesus-letters-api", "1.0.0", nil)

	result := manager.Check(context.Background())

	if result.Status != StatusHealthy {
		t.Errorf("Expected healthy with no checkers, got %s", result.Status)
	}

	if len(result.Dependencies) != 0 {
		t.Errorf("Expected no dependencies, got %d", len(result.Dependencies))
	}
}

func TestProviderChecker(t *testing.T) {
	tests := []struct {
		name       string
		configured bool
		expected   string
	}{
		{"configured provider", true, StatusHealthy},
		{"missing provider", false, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ProviderChecker("openai", tt.configured).Check(context.Background())
			if result.Status != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, result.Status)
			}
			if result.Metadata["provider"] != "openai" {
				t.Errorf("Expected provider metadata, got %v", result.Metadata)
			}
		})
	}
}

func TestStoreChecker(t *testing.T) {
	healthy := StoreChecker("history", func(ctx context.Context) error {
		return nil
	})
	if result := healthy.Check(context.Background()); result.Status != StatusHealthy {
		t.Errorf("Expected healthy store, got %s", result.Status)
	}

	broken := StoreChecker("history", func(ctx context.Context) error {
		return errors.New("database is locked")
	})
	result := broken.Check(context.Background())
	if result.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy store, got %s", result.Status)
	}
	if result.Error == "" {
		t.Error("Expected error message on failed ping")
	}
}

func TestManager_Ready_UnhealthyStore(t *testing.T) {
	manager := NewManager("jesus-letters-api", "1.0.0", zap.NewNop())
	manager.AddChecker("history", StoreChecker("history", func(ctx context.Context) error {
		return errors.New("closed")
	}))

	if manager.Ready(context.Background()) {
		t.Error("Expected unhealthy store to fail readiness")
	}
}
