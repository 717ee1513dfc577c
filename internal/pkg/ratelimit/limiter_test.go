package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/StoreFox/app/models"
	"github.com/ManuelReschke/StoreFox/internal/pkg/apperror"
)

type memoryWindows struct {
	rows    map[string]models.RateLimitWindow
	saves   int
	findErr error
	saveErr error
}

func newMemoryWindows() *memoryWindows {
	return &memoryWindows{rows: map[string]models.RateLimitWindow{}}
}

func (m *memoryWindows) Find(_ context.Context, bucket, key string) (*models.RateLimitWindow, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	w, ok := m.rows[bucket+"|"+key]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &w, nil
}

func (m *memoryWindows) Save(_ context.Context, w *models.RateLimitWindow) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	if w.ID == 0 {
		w.ID = uint(len(m.rows) + 1)
	}
	m.rows[w.Bucket+"|"+w.Key] = *w
	return nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestLimiter(repo WindowRepository) (*DBLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewDBLimiter(repo)
	l.now = clock.now
	return l, clock
}

func TestDBLimiter_DeniesCallAfterLimit(t *testing.T) {
	repo := newMemoryWindows()
	l, _ := newTestLimiter(repo)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		allowed, err := l.Allow(ctx, BucketProcessPayment, "10.0.0.1", 3, 10)
		require.NoError(t, err)
		assert.True(t, allowed, "call %d should be allowed", i)
	}

	allowed, err := l.Allow(ctx, BucketProcessPayment, "10.0.0.1", 3, 10)
	require.NoError(t, err)
	assert.False(t, allowed, "4th call within window must be denied")
}

func TestDBLimiter_DenialStillPersistsWindow(t *testing.T) {
	repo := newMemoryWindows()
	l, _ := newTestLimiter(repo)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := l.Allow(ctx, BucketProcessPayment, "ip", 2, 10)
		require.NoError(t, err)
	}

	assert.Equal(t, 4, repo.saves)
	assert.Equal(t, 4, repo.rows[BucketProcessPayment+"|ip"].Count)
}

func TestDBLimiter_ResetsAfterWindowExpires(t *testing.T) {
	repo := newMemoryWindows()
	l, clock := newTestLimiter(repo)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := l.Allow(ctx, BucketProcessPayment, "ip", 1, 10)
		require.NoError(t, err)
	}

	clock.t = clock.t.Add(10 * time.Minute)
	allowed, err := l.Allow(ctx, BucketProcessPayment, "ip", 1, 10)
	require.NoError(t, err)
	assert.True(t, allowed)

	w := repo.rows[BucketProcessPayment+"|ip"]
	assert.Equal(t, 1, w.Count)
	assert.Equal(t, clock.t, w.WindowStartedAt)
}

func TestDBLimiter_WindowIsFixedNotSliding(t *testing.T) {
	repo := newMemoryWindows()
	l, clock := newTestLimiter(repo)
	ctx := context.Background()

	allowed, _ := l.Allow(ctx, "b", "k", 2, 10)
	assert.True(t, allowed)
	clock.t = clock.t.Add(9 * time.Minute)
	allowed, _ = l.Allow(ctx, "b", "k", 2, 10)
	assert.True(t, allowed)
	clock.t = clock.t.Add(59 * time.Second)
	allowed, _ = l.Allow(ctx, "b", "k", 2, 10)
	assert.False(t, allowed)
	clock.t = clock.t.Add(1 * time.Second)
	allowed, _ = l.Allow(ctx, "b", "k", 2, 10)
	assert.True(t, allowed)
}

func TestDBLimiter_KeysAreIndependent(t *testing.T) {
	repo := newMemoryWindows()
	l, _ := newTestLimiter(repo)
	ctx := context.Background()

	allowed, _ := l.Allow(ctx, "b", "a", 1, 10)
	assert.True(t, allowed)
	allowed, _ = l.Allow(ctx, "b", "b", 1, 10)
	assert.True(t, allowed)
	allowed, _ = l.Allow(ctx, "other", "a", 1, 10)
	assert.True(t, allowed)
	allowed, _ = l.Allow(ctx, "b", "a", 1, 10)
	assert.False(t, allowed)
}

func TestDBLimiter_StoreErrorsPropagate(t *testing.T) {
	repo := newMemoryWindows()
	repo.findErr = errors.New("connection refused")
	l, _ := newTestLimiter(repo)

	allowed, err := l.Allow(context.Background(), "b", "k", 10, 1)
	assert.Error(t, err)
	assert.False(t, allowed)
}

func TestEnforce_FailsClosedOnStoreError(t *testing.T) {
	repo := newMemoryWindows()
	repo.saveErr = errors.New("deadlock")
	l, _ := newTestLimiter(repo)

	err := Enforce(context.Background(), l, BucketProcessPayment, "ip", Rule{Limit: 10, WindowMinutes: 1})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindRateLimited))
}

func TestEnforce_AllowsAndDenies(t *testing.T) {
	l, _ := newTestLimiter(newMemoryWindows())
	rule := Rule{Limit: 1, WindowMinutes: 1}
	ctx := context.Background()

	assert.NoError(t, Enforce(ctx, l, "b", "", rule))
	err := Enforce(ctx, l, "b", "", rule)
	assert.True(t, apperror.IsKind(err, apperror.KindRateLimited))
}
