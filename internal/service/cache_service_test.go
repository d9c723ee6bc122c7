package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/onboarding-api/internal/models"
	appErrors "github.com/noah-isme/onboarding-api/pkg/errors"
)

type cacheRepoStub struct {
	values  map[string][]byte
	deleted []string
	failGet bool
}

func (r *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	if r.failGet {
		return errors.New("connection refused")
	}
	raw, ok := r.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.values[key] = raw
	return nil
}

func (r *cacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) error {
	r.deleted = append(r.deleted, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range r.values {
		if k == pattern || (strings.HasSuffix(pattern, "*") && strings.HasPrefix(k, prefix)) {
			delete(r.values, k)
		}
	}
	return nil
}

func TestChecklistListKeyIgnoresCase(t *testing.T) {
	a := ChecklistListKey(models.ChecklistFilter{Role: "Manager", Department: "Sales", Page: 1, PageSize: 20})
	b := ChecklistListKey(models.ChecklistFilter{Role: "manager", Department: "sales", Page: 1, PageSize: 20})
	c := ChecklistListKey(models.ChecklistFilter{Role: "manager", Department: "sales", Page: 2, PageSize: 20})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, listCachePrefix))
}

func TestInvalidateChecklistDropsEntryAndPages(t *testing.T) {
	repo := &cacheRepoStub{values: map[string][]byte{}}
	svc := NewCacheService(repo, NewMetricsService(), time.Minute, nil, true)
	ctx := context.Background()

	svc.Set(ctx, ChecklistKey("emp-1"), models.ChecklistInstance{EmployeeID: "emp-1"}, 0)
	svc.Set(ctx, ChecklistKey("emp-2"), models.ChecklistInstance{EmployeeID: "emp-2"}, 0)
	svc.Set(ctx, ChecklistListKey(models.ChecklistFilter{Page: 1, PageSize: 20}), []string{"x"}, 0)

	var got models.ChecklistInstance
	require.True(t, svc.Get(ctx, ChecklistKey("emp-1"), &got))
	assert.Equal(t, "emp-1", got.EmployeeID)

	svc.InvalidateChecklist(ctx, "emp-1")
	assert.False(t, svc.Get(ctx, ChecklistKey("emp-1"), &got))
	assert.True(t, svc.Get(ctx, ChecklistKey("emp-2"), &got))
	assert.Len(t, repo.values, 1)

	repo.deleted = nil
	svc.InvalidateChecklist(ctx, "")
	assert.Equal(t, []string{listCachePrefix + "*"}, repo.deleted)
}

func TestCacheFailuresAreSwallowed(t *testing.T) {
	repo := &cacheRepoStub{values: map[string][]byte{}, failGet: true}
	svc := NewCacheService(repo, NewMetricsService(), 0, nil, true)
	var got models.ChecklistInstance
	assert.False(t, svc.Get(context.Background(), ChecklistKey("emp-1"), &got))

	disabled := NewCacheService(repo, nil, 0, nil, false)
	disabled.InvalidateChecklist(context.Background(), "emp-1")
	assert.Empty(t, repo.deleted)
}
