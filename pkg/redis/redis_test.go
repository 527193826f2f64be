package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetWithExpiration(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := &Client{Client: db}

	mock.ExpectSet("key", "value", time.Minute).SetVal("OK")

	err := client.SetWithExpiration(context.Background(), "key", "value", time.Minute)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetString(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := &Client{Client: db}

	mock.ExpectGet("key").SetVal("value")

	got, err := client.GetString(context.Background(), "key")
	require.NoError(t, err)
	assert.Equal(t, "value", got)
}

func TestExists(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := &Client{Client: db}

	mock.ExpectExists("present").SetVal(1)
	mock.ExpectExists("absent").SetVal(0)

	ok, err := client.Exists(context.Background(), "present")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.Exists(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListOperations(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := &Client{Client: db}
	ctx := context.Background()

	mock.ExpectRPush("ride:chat:r1", "one").SetVal(1)
	mock.ExpectLTrim("ride:chat:r1", -200, -1).SetVal("OK")
	mock.ExpectLRange("ride:chat:r1", 0, -1).SetVal([]string{"one"})
	mock.ExpectExpire("ride:chat:r1", 24*time.Hour).SetVal(true)

	require.NoError(t, client.RPush(ctx, "ride:chat:r1", "one"))
	require.NoError(t, client.LTrim(ctx, "ride:chat:r1", -200, -1))

	items, err := client.LRange(ctx, "ride:chat:r1", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, items)

	require.NoError(t, client.Expire(ctx, "ride:chat:r1", 24*time.Hour))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := &Client{Client: db}

	mock.ExpectDel("a", "b").SetVal(2)

	err := client.Delete(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPing(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := &Client{Client: db}

	mock.ExpectPing().SetVal("PONG")

	assert.NoError(t, client.Ping(context.Background()))
}
