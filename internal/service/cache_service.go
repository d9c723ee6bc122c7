package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/onboarding-api/internal/models"
	appErrors "github.com/noah-isme/onboarding-api/pkg/errors"
)

const (
	checklistCachePrefix = "checklist:employee:"
	listCachePrefix      = "checklists:list:"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService is a read-through cache for checklist views. Cache failures
// are logged and never fail the calling operation.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// ChecklistKey is the cache key of one employee's checklist.
func ChecklistKey(employeeID string) string {
	return checklistCachePrefix + employeeID
}

// ChecklistListKey is the cache key of one HR overview page.
func ChecklistListKey(filter models.ChecklistFilter) string {
	raw := fmt.Sprintf("%s|%s|%s|%d|%d", strings.ToLower(filter.Role), strings.ToLower(filter.Department), filter.Status, filter.Page, filter.PageSize)
	sum := sha1.Sum([]byte(raw))
	return listCachePrefix + hex.EncodeToString(sum[:])
}

// Get fills dest from the cache and reports whether it was a hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	return true
}

// Set stores value under key. A non-positive ttl uses the default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateChecklist drops the employee's cached checklist and every overview page.
// An empty employeeID only drops the overview pages.
func (s *CacheService) InvalidateChecklist(ctx context.Context, employeeID string) {
	patterns := []string{listCachePrefix + "*"}
	if employeeID != "" {
		patterns = append(patterns, ChecklistKey(employeeID))
	}
	s.invalidate(ctx, patterns...)
}

func (s *CacheService) invalidate(ctx context.Context, patterns ...string) {
	if !s.Enabled() {
		return
	}
	for _, pattern := range patterns {
		if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
			s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}
