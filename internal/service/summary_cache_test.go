package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenCacheRepo struct{}

func (brokenCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("redis: connection refused")
}

func (brokenCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return errors.New("redis: connection refused")
}

func (brokenCacheRepo) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	return 0, errors.New("redis: connection refused")
}

func (brokenCacheRepo) Incr(ctx context.Context, key string) (int64, error) {
	return 0, errors.New("redis: connection refused")
}

func TestSummaryCacheDisabled(t *testing.T) {
	repo := newMemCache()
	c := NewSummaryCache(repo, nil, 0, nil, false)
	assert.False(t, c.Enabled())

	c.Store(context.Background(), "k", map[string]int{"total": 1})
	assert.Empty(t, repo.data)
	var dest map[string]int
	assert.False(t, c.Lookup(context.Background(), "k", &dest))

	var nilCache *SummaryCache
	assert.False(t, nilCache.Enabled())
	nilCache.ForgetOwner(context.Background(), "owner-1")
}

func TestSummaryCacheDegradesOnRepositoryErrors(t *testing.T) {
	c := NewSummaryCache(brokenCacheRepo{}, NewMetricsService(), time.Minute, nil, true)
	var dest map[string]int
	assert.False(t, c.Lookup(context.Background(), "k", &dest))
	c.Store(context.Background(), "k", map[string]int{"total": 1})
	c.ForgetOwner(context.Background(), "owner-1")
}

func TestSummaryCacheForgetOwner(t *testing.T) {
	repo := newMemCache()
	c := NewSummaryCache(repo, nil, time.Minute, nil, true)
	c.Store(context.Background(), "teacher-attendance:summary:owner-1:date=any", 1)
	c.Store(context.Background(), "teacher-attendance:summary:owner-2:date=any", 2)

	c.ForgetOwner(context.Background(), "owner-1")
	assert.NotContains(t, repo.data, "teacher-attendance:summary:owner-1:date=any")
	assert.Contains(t, repo.data, "teacher-attendance:summary:owner-2:date=any")
}

func TestSummaryCacheGeneration(t *testing.T) {
	repo := newMemCache()
	c := NewSummaryCache(repo, nil, time.Minute, nil, true)

	gen, ok := c.Generation(context.Background(), "owner-1")
	require.True(t, ok)
	assert.EqualValues(t, 0, gen)

	c.ForgetOwner(context.Background(), "owner-1")
	c.ForgetOwner(context.Background(), "owner-1")
	gen, ok = c.Generation(context.Background(), "owner-1")
	require.True(t, ok)
	assert.EqualValues(t, 2, gen)

	gen, ok = c.Generation(context.Background(), "owner-2")
	require.True(t, ok)
	assert.EqualValues(t, 0, gen)

	_, ok = NewSummaryCache(brokenCacheRepo{}, nil, time.Minute, nil, true).Generation(context.Background(), "owner-1")
	assert.False(t, ok)
	_, ok = NewSummaryCache(repo, nil, time.Minute, nil, false).Generation(context.Background(), "owner-1")
	assert.False(t, ok)
}
