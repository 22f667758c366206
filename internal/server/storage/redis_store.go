package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jopatk123/myweb-realtime/internal/protocol"
)

const (
	// Redis key 前缀
	roomKeyPrefix  = "room:"
	statsKeyPrefix = "stats:"
	leaderboardKey = "leaderboard:"

	// 房间快照过期时间
	roomExpiration = 2 * time.Hour
)

// RoomSnapshot 房间快照（用于 Redis 序列化）
type RoomSnapshot struct {
	Room      protocol.RoomInfo     `json:"room"`
	Players   []protocol.PlayerInfo `json:"players"`
	CreatedAt int64                 `json:"created_at"`
}

// PlayerStats 玩家累计战绩
type PlayerStats struct {
	Games int `json:"games"`
	Wins  int `json:"wins"`
}

// RedisStore Redis 存储
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore 创建 Redis 存储
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// --- 房间快照 ---

// SaveRoom 保存房间快照
func (rs *RedisStore) SaveRoom(ctx context.Context, snap *RoomSnapshot) error {
	if snap == nil {
		return nil
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("序列化房间快照失败: %w", err)
	}

	key := roomKeyPrefix + snap.Room.RoomCode
	return rs.client.Set(ctx, key, data, roomExpiration).Err()
}

// LoadRoom 加载房间快照，不存在时返回 nil
func (rs *RedisStore) LoadRoom(ctx context.Context, code string) (*RoomSnapshot, error) {
	data, err := rs.client.Get(ctx, roomKeyPrefix+code).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var snap RoomSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("反序列化房间快照失败: %w", err)
	}
	return &snap, nil
}

// DeleteRoom 删除房间快照
func (rs *RedisStore) DeleteRoom(ctx context.Context, code string) error {
	return rs.client.Del(ctx, roomKeyPrefix+code).Err()
}

// ListRoomCodes 列出所有已保存的房间号
func (rs *RedisStore) ListRoomCodes(ctx context.Context) ([]string, error) {
	keys, err := rs.client.Keys(ctx, roomKeyPrefix+"*").Result()
	if err != nil {
		return nil, err
	}

	codes := make([]string, len(keys))
	for i, key := range keys {
		codes[i] = key[len(roomKeyPrefix):]
	}
	return codes, nil
}

// --- 玩家战绩 ---

// RecordGame 记录一局战绩，win 表示该玩家获胜
func (rs *RedisStore) RecordGame(ctx context.Context, playerName string, win bool) error {
	key := statsKeyPrefix + playerName

	pipe := rs.client.Pipeline()
	pipe.HIncrBy(ctx, key, "games", 1)
	if win {
		pipe.HIncrBy(ctx, key, "wins", 1)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// GetStats 读取玩家战绩，无记录时返回零值
func (rs *RedisStore) GetStats(ctx context.Context, playerName string) (*PlayerStats, error) {
	data, err := rs.client.HGetAll(ctx, statsKeyPrefix+playerName).Result()
	if err != nil {
		return nil, err
	}

	stats := &PlayerStats{}
	if v, ok := data["games"]; ok {
		fmt.Sscanf(v, "%d", &stats.Games)
	}
	if v, ok := data["wins"]; ok {
		fmt.Sscanf(v, "%d", &stats.Wins)
	}
	return stats, nil
}

// --- 排行榜 ---

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	PlayerName string `json:"player_name"`
	Score      int    `json:"score"`
}

// AddScore 按游戏类型累加玩家积分
func (rs *RedisStore) AddScore(ctx context.Context, gameType, playerName string, score int) error {
	return rs.client.ZIncrBy(ctx, leaderboardKey+gameType, float64(score), playerName).Err()
}

// TopPlayers 返回积分前 n 名
func (rs *RedisStore) TopPlayers(ctx context.Context, gameType string, n int) ([]LeaderboardEntry, error) {
	results, err := rs.client.ZRevRangeWithScores(ctx, leaderboardKey+gameType, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(results))
	for _, r := range results {
		name, _ := r.Member.(string)
		entries = append(entries, LeaderboardEntry{
			PlayerName: name,
			Score:      int(r.Score),
		})
	}
	return entries, nil
}
