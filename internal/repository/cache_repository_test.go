package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/holiday-tracker-api/pkg/errors"
)

type cachedPayload struct {
	Total int `json:"total"`
}

func TestCacheRepositoryGetHit(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewCacheRepository(client, nil)

	mock.ExpectGet("holidays:list:abc").SetVal(`{"total":3}`)

	var dest cachedPayload
	require.NoError(t, repo.Get(context.Background(), "holidays:list:abc", &dest))
	assert.Equal(t, 3, dest.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositoryGetMiss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewCacheRepository(client, nil)

	mock.ExpectGet("missing").RedisNil()

	var dest cachedPayload
	err := repo.Get(context.Background(), "missing", &dest)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestCacheRepositoryDropsCorruptEntry(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewCacheRepository(client, nil)

	mock.ExpectGet("broken").SetVal("not-json")
	mock.ExpectDel("broken").SetVal(1)

	var dest cachedPayload
	err := repo.Get(context.Background(), "broken", &dest)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositorySet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewCacheRepository(client, nil)

	mock.ExpectSet("k", []byte(`{"total":1}`), time.Minute).SetVal("OK")
	require.NoError(t, repo.Set(context.Background(), "k", cachedPayload{Total: 1}, time.Minute))

	mock.ExpectSet("k", []byte(`{"total":2}`), time.Minute).SetErr(errors.New("readonly"))
	assert.Error(t, repo.Set(context.Background(), "k", cachedPayload{Total: 2}, time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewCacheRepository(client, nil)

	mock.ExpectScan(0, "holidays:*", scanBatchSize).SetVal([]string{"holidays:a", "holidays:b"}, 7)
	mock.ExpectDel("holidays:a", "holidays:b").SetVal(2)
	mock.ExpectScan(7, "holidays:*", scanBatchSize).SetVal([]string{}, 0)

	require.NoError(t, repo.DeleteByPattern(context.Background(), "holidays:*"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var dest cachedPayload
	assert.ErrorIs(t, repo.Get(context.Background(), "k", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", dest, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "*"))
	assert.NoError(t, repo.Ping(context.Background()))
}
