package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/01moynul/basegigs-golang/internal/apperr"
	"github.com/01moynul/basegigs-golang/internal/models"
	"github.com/01moynul/basegigs-golang/internal/store"
)

func newTestPublisher(t *testing.T) *RedisPublisher {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisPublisher(client)
}

func TestNotifyPersistsAndPublishes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	publisher := newTestPublisher(t)
	stream, err := publisher.Subscribe(ctx, 7)
	require.NoError(t, err)

	mem := store.NewMemory()
	svc := NewService(mem, publisher, nil)
	require.NoError(t, svc.Notify(ctx, 7, "The client signed contract #3.", "/contracts/3"))

	select {
	case n := <-stream:
		assert.Equal(t, int64(7), n.UserID)
		assert.Equal(t, "The client signed contract #3.", n.Message)
		require.NotNil(t, n.Link)
		assert.Equal(t, "/contracts/3", *n.Link)
	case <-ctx.Done():
		t.Fatal("timed out waiting for published notification")
	}

	feed, err := svc.List(ctx, 7)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.False(t, feed[0].IsRead)
}

func TestSubscribeIsPerUser(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	publisher := newTestPublisher(t)
	stream, err := publisher.Subscribe(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, publisher.Publish(ctx, &models.Notification{ID: 1, UserID: 2, Message: "not yours"}))
	require.NoError(t, publisher.Publish(ctx, &models.Notification{ID: 2, UserID: 1, Message: "yours"}))

	select {
	case n := <-stream:
		assert.Equal(t, "yours", n.Message)
	case <-ctx.Done():
		t.Fatal("timed out")
	}
}

func TestPublishWrapsRedisErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	publisher := NewRedisPublisher(client)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := publisher.Publish(ctx, &models.Notification{ID: 1, UserID: 2, Message: "lost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish notification")

	_, err = publisher.Subscribe(ctx, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscribe notifications")
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, *models.Notification) error {
	return errors.New("redis down")
}

func TestNotifySurvivesPublishFailure(t *testing.T) {
	mem := store.NewMemory()
	svc := NewService(mem, failingPublisher{}, nil)

	require.NoError(t, svc.Notify(context.Background(), 3, "hello", ""))

	feed, err := svc.List(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Nil(t, feed[0].Link)
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := NewService(mem, nil, nil)

	require.NoError(t, svc.Notify(ctx, 3, "first", ""))
	feed, err := svc.List(ctx, 3)
	require.NoError(t, err)
	id := feed[0].ID

	err = svc.MarkRead(ctx, id, 4)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "other users cannot touch the feed")

	require.NoError(t, svc.MarkRead(ctx, id, 3))
	feed, err = svc.List(ctx, 3)
	require.NoError(t, err)
	assert.True(t, feed[0].IsRead)
}
