// Package mocks provides mock implementations for testing the modpipe job system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

// Generate mock for JobRepository interface from internal/core package.
// This creates MockJobRepository with methods for all JobRepository interface methods:
// Create, GetByID, ReserveNext, WaitForNotification, Heartbeat, CompleteModeration,
// Complete, Fail, FailWithDelay, Stats, List, ListByClient, CountByClient, Delete
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/target/modpipe/internal/core JobRepository

// Generate mock for ClientRepository interface from internal/core package.
// This creates MockClientRepository with methods for all ClientRepository interface methods:
// Create, GetByID, GetByAPIKey, List, RotateSecret, UpdateWebhookURL, SetStatus
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=client_repository_mock.go github.com/target/modpipe/internal/core ClientRepository

// Generate mock for DeliveryLogRepository interface from internal/core package.
// This creates MockDeliveryLogRepository with methods for all DeliveryLogRepository interface methods:
// Append, ListByJob, NextAttemptNumber
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=delivery_log_repository_mock.go github.com/target/modpipe/internal/core DeliveryLogRepository

// Generate mock for CacheRepository interface from internal/core package.
// This creates MockCacheRepository with methods for all CacheRepository interface methods:
// Set, Get, Delete, Exists, SetTTL, SetIfNotExists, Health
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=cache_repository_mock.go github.com/target/modpipe/internal/core CacheRepository

// Generate mock for ReaperRepository interface from internal/core package.
// This creates MockReaperRepository with methods for all ReaperRepository interface methods:
// FailStalePendingJobs, DeleteOldJobs, DeleteOldDeliveryLogs, RequeueExpired
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=reaper_repository_mock.go github.com/target/modpipe/internal/core ReaperRepository
