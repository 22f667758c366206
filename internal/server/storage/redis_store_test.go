package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jopatk123/myweb-realtime/internal/protocol"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return NewRedisStore(client), mr
}

func TestRedisStore_SaveLoadDeleteRoom(t *testing.T) {
	store, mr := newTestRedisStore(t)
	defer mr.Close()
	ctx := context.Background()

	snap := &RoomSnapshot{
		Room: protocol.RoomInfo{
			RoomCode:   "123456",
			GameType:   protocol.GameTypeSnake,
			Mode:       protocol.ModeShared,
			Status:     protocol.RoomStatusWaiting,
			MaxPlayers: 4,
		},
		Players: []protocol.PlayerInfo{
			{SessionID: "a", Name: "Alice", IsReady: true},
		},
		CreatedAt: time.Now().Unix(),
	}

	require.NoError(t, store.SaveRoom(ctx, snap))

	loaded, err := store.LoadRoom(ctx, "123456")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, snap.Room, loaded.Room)
	assert.Equal(t, snap.Players, loaded.Players)

	codes, err := store.ListRoomCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"123456"}, codes)

	require.NoError(t, store.DeleteRoom(ctx, "123456"))
	loaded, err = store.LoadRoom(ctx, "123456")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisStore_LoadMissingRoomIsNil(t *testing.T) {
	store, mr := newTestRedisStore(t)
	defer mr.Close()

	loaded, err := store.LoadRoom(context.Background(), "000000")
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisStore_Stats(t *testing.T) {
	store, mr := newTestRedisStore(t)
	defer mr.Close()
	ctx := context.Background()

	require.NoError(t, store.RecordGame(ctx, "Alice", true))
	require.NoError(t, store.RecordGame(ctx, "Alice", false))
	require.NoError(t, store.RecordGame(ctx, "Alice", true))

	stats, err := store.GetStats(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Games)
	assert.Equal(t, 2, stats.Wins)

	// 无记录的玩家返回零值
	stats, err = store.GetStats(ctx, "Nobody")
	require.NoError(t, err)
	assert.Zero(t, stats.Games)
	assert.Zero(t, stats.Wins)
}

func TestRedisStore_Leaderboard(t *testing.T) {
	store, mr := newTestRedisStore(t)
	defer mr.Close()
	ctx := context.Background()

	require.NoError(t, store.AddScore(ctx, protocol.GameTypeSnake, "Alice", 10))
	require.NoError(t, store.AddScore(ctx, protocol.GameTypeSnake, "Bob", 25))
	require.NoError(t, store.AddScore(ctx, protocol.GameTypeSnake, "Alice", 5))

	top, err := store.TopPlayers(ctx, protocol.GameTypeSnake, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, LeaderboardEntry{PlayerName: "Bob", Score: 25}, top[0])
	assert.Equal(t, LeaderboardEntry{PlayerName: "Alice", Score: 15}, top[1])
}
