package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focus-pipeline/models"
)

// store is the behaviour shared by RedisClient and MemoryStore.
type store interface {
	SaveSnapshot(ctx context.Context, snap models.Snapshot) error
	GetSnapshot(ctx context.Context, userID string) (*models.Snapshot, error)
	Push(ctx context.Context, rec models.HealthRecord) error
	Peek(ctx context.Context) (*models.HealthRecord, error)
	Pop(ctx context.Context) error
	Len(ctx context.Context) (int64, error)
}

func exerciseStore(t *testing.T, s store, userID string) {
	ctx := context.Background()

	got, err := s.GetSnapshot(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, got)

	snap := models.Snapshot{
		RunID:   "run-1",
		UserID:  userID,
		Trigger: models.TriggerPeriodic,
		Score:   models.FocusScore{Score: 58, Confidence: 0.8, Recommendations: []string{"rest"}},
		Pattern: models.FocusPattern{DailyAverage: 58, WeeklyTrend: [7]float64{1, 2, 3, 4, 5, 6, 7}},
	}
	require.NoError(t, s.SaveSnapshot(ctx, snap))
	got, err = s.GetSnapshot(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 58.0, got.Score.Score)
	assert.Equal(t, snap.Pattern.WeeklyTrend, got.Pattern.WeeklyTrend)

	head, err := s.Peek(ctx)
	require.NoError(t, err)
	assert.Nil(t, head)
	require.NoError(t, s.Pop(ctx))

	for _, d := range []string{"2024-01-14", "2024-01-15"} {
		require.NoError(t, s.Push(ctx, models.HealthRecord{UserID: userID, Date: d}))
	}
	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	head, err = s.Peek(ctx)
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, "2024-01-14", head.Date)

	require.NoError(t, s.Pop(ctx))
	head, err = s.Peek(ctx)
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, "2024-01-15", head.Date)
	require.NoError(t, s.Pop(ctx))

	n, err = s.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Hour), "user123")
}

func TestMemoryStoreExpiresSnapshots(t *testing.T) {
	clock := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	m := NewMemoryStore(time.Minute)
	m.now = func() time.Time { return clock }

	require.NoError(t, m.SaveSnapshot(context.Background(), models.Snapshot{UserID: "u"}))
	clock = clock.Add(59 * time.Second)
	got, err := m.GetSnapshot(context.Background(), "u")
	require.NoError(t, err)
	assert.NotNil(t, got)

	clock = clock.Add(time.Second)
	got, err = m.GetSnapshot(context.Background(), "u")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisClient(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	rc, err := NewRedisClient(ctx, addr, time.Minute)
	require.NoError(t, err)
	defer rc.Close()

	userID := "cache-test-" + time.Now().Format("150405.000000")
	for {
		n, err := rc.Len(ctx)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		require.NoError(t, rc.Pop(ctx))
	}
	exerciseStore(t, rc, userID)
}
