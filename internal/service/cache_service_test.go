package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type cacheRepoStub struct {
	items   map[string][]byte
	ttls    map[string]time.Duration
	deleted []string
	getErr  error
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{items: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (r *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	if r.getErr != nil {
		return r.getErr
	}
	raw, ok := r.items[key]
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
	r.items[key] = raw
	r.ttls[key] = ttl
	return nil
}

func (r *cacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) error {
	r.deleted = append(r.deleted, pattern)
	delete(r.items, pattern)
	return nil
}

func TestCacheServiceRoundTripsReferenceData(t *testing.T) {
	repo := newCacheRepoStub()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, 5*time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	var missed models.ReferenceData
	hit, err := svc.Get(ctx, referenceCacheKey, &missed)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, referenceCacheKey, grade9AReference(), 0))
	assert.Equal(t, 5*time.Minute, repo.ttls[referenceCacheKey])

	var cached models.ReferenceData
	hit, err = svc.Get(ctx, referenceCacheKey, &cached)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "Alice", cached.TeacherName("T1"))
	assert.Equal(t, "9", string(cached.Courses[0].Grade))

	require.NoError(t, svc.Invalidate(ctx, referenceCacheKey))
	assert.Equal(t, []string{referenceCacheKey}, repo.deleted)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	repo := newCacheRepoStub()
	svc := NewCacheService(repo, nil, 0, nil, false)

	require.NoError(t, svc.Set(context.Background(), "k", grade9AReference(), time.Minute))
	assert.Empty(t, repo.items)
	hit, err := svc.Get(context.Background(), "k", &models.ReferenceData{})
	require.NoError(t, err)
	assert.False(t, hit)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	repo := newCacheRepoStub()
	repo.getErr = errors.New("connection refused")
	svc := NewCacheService(repo, nil, 0, zap.NewNop(), true)

	hit, err := svc.Get(context.Background(), referenceCacheKey, &models.ReferenceData{})
	assert.False(t, hit)
	assert.Error(t, err)
}

func TestScheduleStoreWithCacheServiceFallsBackOnCacheError(t *testing.T) {
	repo := newCacheRepoStub()
	repo.getErr = errors.New("connection refused")
	cacheSvc := NewCacheService(repo, nil, 0, zap.NewNop(), true)
	store := NewScheduleStore(newSourceStub(grade9AReference()), cacheSvc, nil, nil, ScheduleStoreConfig{})

	report := store.Load(context.Background())

	assert.False(t, report.FromCache)
	assert.Equal(t, 4, report.Courses)
	assert.Contains(t, repo.items, referenceCacheKey)
}
