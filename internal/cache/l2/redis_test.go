package l2

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"cryptofolio/internal/cache/l2/mock"
	"cryptofolio/internal/models"
)

func TestRedisCache_Get_Hit(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockClient := mock.NewMockRedisClient(ctrl)
	rc := NewRedisCache(mockClient, time.Second, time.Second, zap.NewNop())

	fetchedAt := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	raw, err := json.Marshal(models.CacheEntry{Data: []byte("123.4"), FetchedAt: fetchedAt})
	require.NoError(t, err)

	mockClient.EXPECT().Get(gomock.Any(), "price:live:bitcoin:inr").Return(redis.NewStringResult(string(raw), nil))

	entry, found := rc.Get("price:live:bitcoin:inr")
	require.True(t, found)
	assert.Equal(t, []byte("123.4"), entry.Data)
	assert.True(t, entry.FetchedAt.Equal(fetchedAt))
}

func TestRedisCache_Get_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockClient := mock.NewMockRedisClient(ctrl)
	rc := NewRedisCache(mockClient, time.Second, time.Second, zap.NewNop())

	mockClient.EXPECT().Get(gomock.Any(), "k").Return(redis.NewStringResult("", redis.Nil))

	entry, found := rc.Get("k")
	assert.False(t, found)
	assert.Nil(t, entry)
}

func TestRedisCache_Get_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockClient := mock.NewMockRedisClient(ctrl)
	rc := NewRedisCache(mockClient, time.Second, time.Second, zap.NewNop())

	mockClient.EXPECT().Get(gomock.Any(), "k").Return(redis.NewStringResult("", errors.New("connection refused")))

	_, found := rc.Get("k")
	assert.False(t, found)
}

func TestRedisCache_Get_Corrupted(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockClient := mock.NewMockRedisClient(ctrl)
	rc := NewRedisCache(mockClient, time.Second, time.Second, zap.NewNop())

	mockClient.EXPECT().Get(gomock.Any(), "k").Return(redis.NewStringResult("garbage", nil))
	mockClient.EXPECT().Del(gomock.Any(), "k").Return(redis.NewIntResult(1, nil))

	_, found := rc.Get("k")
	assert.False(t, found)
}

func TestRedisCache_Set(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockClient := mock.NewMockRedisClient(ctrl)
	rc := NewRedisCache(mockClient, time.Second, time.Second, zap.NewNop())

	entry := models.CacheEntry{Data: []byte("[[1,2]]"), FetchedAt: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}
	want, err := json.Marshal(entry)
	require.NoError(t, err)

	mockClient.EXPECT().
		Set(gomock.Any(), "price:history:bitcoin:7:inr", want, 5*time.Minute).
		Return(redis.NewStatusResult("OK", nil))

	rc.Set("price:history:bitcoin:7:inr", entry, 5*time.Minute)
}

func TestRedisCache_SetError(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockClient := mock.NewMockRedisClient(ctrl)
	rc := NewRedisCache(mockClient, time.Second, time.Second, zap.NewNop())

	mockClient.EXPECT().Set(gomock.Any(), "k", gomock.Any(), time.Minute).Return(redis.NewStatusResult("", errors.New("timeout")))

	rc.Set("k", models.CacheEntry{Data: []byte("1")}, time.Minute)
}

func TestRedisCache_DeleteAndClose(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockClient := mock.NewMockRedisClient(ctrl)
	rc := NewRedisCache(mockClient, 0, 0, zap.NewNop())

	mockClient.EXPECT().Del(gomock.Any(), "k").Return(redis.NewIntResult(1, nil))
	mockClient.EXPECT().Close().Return(nil)

	rc.Delete("k")
	assert.NoError(t, rc.Close())
}
