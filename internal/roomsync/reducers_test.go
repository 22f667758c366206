package roomsync

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jopatk123/myweb-realtime/internal/protocol"
)

func newTestRegistry(t *testing.T) (*Registry, *Store, *ExternalRegistry) {
	t.Helper()
	store := NewStore()
	ext := NewExternalRegistry()
	return NewRegistry(store, ext, protocol.GameTypeSnake), store, ext
}

func handle(reg *Registry, msgType protocol.MessageType, payload any) {
	reg.Handle(protocol.MustNewMessage(msgType, payload))
}

func TestReduce_RoomJoined(t *testing.T) {
	t.Parallel()

	reg, store, _ := newTestRegistry(t)
	store.SetError("stale error")
	store.SetConnecting(true)

	handle(reg, protocol.MsgRoomJoined, protocol.RoomJoinedData{
		Room:     &protocol.RoomInfo{RoomCode: "123456", Status: protocol.RoomStatusWaiting, MaxPlayers: 4},
		Player:   &protocol.PlayerInfo{SessionID: "me", Name: "Alice"},
		Players:  []protocol.PlayerInfo{{SessionID: "me", Name: "Alice"}},
		GameData: map[string]any{"grid": float64(20)},
	})

	snap := store.Snapshot()
	require.NotNil(t, snap.Room)
	assert.Equal(t, "123456", snap.Room.RoomCode)
	assert.Equal(t, "me", snap.Player.SessionID)
	assert.Len(t, snap.Players, 1)
	assert.Equal(t, float64(20), snap.GameData["grid"])
	assert.Equal(t, StatusWaiting, snap.Status)
	assert.Empty(t, snap.Err)
	assert.False(t, snap.Connecting)
}

func TestReduce_RoomJoined_PlayingRoom(t *testing.T) {
	t.Parallel()

	reg, store, _ := newTestRegistry(t)
	handle(reg, protocol.MsgRoomJoined, protocol.RoomJoinedData{
		Room: &protocol.RoomInfo{RoomCode: "123456", Status: protocol.RoomStatusPlaying},
	})
	assert.Equal(t, StatusPlaying, store.Status())
}

func TestReduce_RoomJoined_MissingFieldsDefaultEmpty(t *testing.T) {
	t.Parallel()

	reg, store, _ := newTestRegistry(t)
	handle(reg, protocol.MsgRoomJoined, map[string]any{
		"room": map[string]any{"room_code": "654321"},
	})

	snap := store.Snapshot()
	assert.Equal(t, "654321", snap.Room.RoomCode)
	assert.NotNil(t, snap.Players)
	assert.Empty(t, snap.Players)
	assert.Empty(t, snap.GameData)
}

func TestReduce_RoomLeft_ClearsEverything(t *testing.T) {
	t.Parallel()

	reg, store, _ := newTestRegistry(t)
	handle(reg, protocol.MsgRoomJoined, protocol.RoomJoinedData{
		Room:     &protocol.RoomInfo{RoomCode: "123456"},
		Player:   &protocol.PlayerInfo{SessionID: "me"},
		Players:  []protocol.PlayerInfo{{SessionID: "me"}},
		GameData: map[string]any{"snake": "data"},
	})

	handle(reg, protocol.MsgRoomLeft, nil)

	snap := store.Snapshot()
	assert.Nil(t, snap.Room)
	assert.Nil(t, snap.Player)
	assert.Empty(t, snap.Players)
	assert.Empty(t, snap.GameData)
	assert.Equal(t, StatusWaiting, snap.Status)
}

func TestReduce_PlayerJoined_RepeatedSessionIDsStayUnique(t *testing.T) {
	t.Parallel()

	reg, store, _ := newTestRegistry(t)
	store.SetRoom(&protocol.RoomInfo{RoomCode: "123456", CurrentPlayers: 1})

	// 任意包含重复 session_id 的加入序列，列表中每个 id 恰好出现一次
	for _, id := range []string{"a", "b", "a", "c", "b", "a"} {
		handle(reg, protocol.MsgPlayerJoined, protocol.PlayerJoinedData{
			Player: &protocol.PlayerInfo{SessionID: id},
		})
	}

	players := store.Players()
	require.Len(t, players, 3)
	seen := map[string]int{}
	for _, p := range players {
		seen[p.SessionID]++
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "session %s duplicated", id)
	}
}

func TestReduce_PlayerJoined_RoomPatchMerged(t *testing.T) {
	t.Parallel()

	reg, store, _ := newTestRegistry(t)
	store.SetRoom(&protocol.RoomInfo{RoomCode: "123456", CurrentPlayers: 1})

	handle(reg, protocol.MsgPlayerJoined, protocol.PlayerJoinedData{
		Player: &protocol.PlayerInfo{SessionID: "b"},
		Room:   json.RawMessage(`{"current_players":2}`),
	})

	assert.Equal(t, 2, store.Room().CurrentPlayers)
}

func TestReduce_PlayerJoined_MissingPlayerSkipsThatSubUpdate(t *testing.T) {
	t.Parallel()

	reg, store, _ := newTestRegistry(t)
	store.SetRoom(&protocol.RoomInfo{RoomCode: "123456", CurrentPlayers: 1})

	// player 缺失：跳过追加，但房间补丁仍然生效
	handle(reg, protocol.MsgPlayerJoined, map[string]any{
		"room": map[string]any{"current_players": 2},
	})

	assert.Empty(t, store.Players())
	assert.Equal(t, 2, store.Room().CurrentPlayers)
}

func TestReduce_PlayerLeft(t *testing.T) {
	t.Parallel()

	reg, store, _ := newTestRegistry(t)
	store.SetRoom(&protocol.RoomInfo{RoomCode: "123456", CurrentPlayers: 3})
	store.SetPlayers([]protocol.PlayerInfo{{SessionID: "a"}, {SessionID: "b"}, {SessionID: "c"}})

	// remaining_count 显式给出时以服务端为准
	count := 5
	handle(reg, protocol.MsgPlayerLeft, protocol.PlayerLeftData{SessionID: "b", RemainingCount: &count})
	assert.Len(t, store.Players(), 2)
	assert.Equal(t, 5, store.Room().CurrentPlayers)

	// 未给出时回落到新列表长度
	handle(reg, protocol.MsgPlayerLeft, protocol.PlayerLeftData{SessionID: "c"})
	assert.Len(t, store.Players(), 1)
	assert.Equal(t, 1, store.Room().CurrentPlayers)
}

func TestReduce_PlayerReconnected(t *testing.T) {
	t.Parallel()

	reg, store, _ := newTestRegistry(t)
	store.SetPlayers([]protocol.PlayerInfo{{SessionID: "a", Name: "Alice", Online: false}})

	handle(reg, protocol.MsgPlayerReconnected, protocol.PlayerReconnectedData{
		SessionID: "a",
		Player:    json.RawMessage(`{"online":true}`),
	})

	players := store.Players()
	require.Len(t, players, 1)
	assert.True(t, players[0].Online)
	assert.Equal(t, "Alice", players[0].Name)

	// 未知 session_id 是静默 no-op
	handle(reg, protocol.MsgPlayerReconnected, protocol.PlayerReconnectedData{
		SessionID: "ghost",
		Player:    json.RawMessage(`{"online":true}`),
	})
	assert.Len(t, store.Players(), 1)
}

func TestReduce_PlayerReadyChanged(t *testing.T) {
	t.Parallel()

	reg, store, _ := newTestRegistry(t)
	store.SetPlayers([]protocol.PlayerInfo{{SessionID: "A", IsReady: false}})

	handle(reg, protocol.MsgPlayerReadyChanged, protocol.PlayerReadyChangedData{SessionID: "A", IsReady: true})

	players := store.Players()
	require.Len(t, players, 1)
	assert.True(t, players[0].IsReady)

	// 缺席 id：列表不变、不 panic
	handle(reg, protocol.MsgPlayerReadyChanged, protocol.PlayerReadyChangedData{SessionID: "B", IsReady: true})
	assert.Equal(t, players, store.Players())
}

func TestReduce_HostChanged(t *testing.T) {
	t.Parallel()

	reg, store, _ := newTestRegistry(t)
	store.SetRoom(&protocol.RoomInfo{RoomCode: "123456", CreatedBy: "a"})

	handle(reg, protocol.MsgHostChanged, protocol.HostChangedData{NewHost: "b"})
	assert.Equal(t, "b", store.Room().CreatedBy)
}

func TestReduce_GameLifecycle(t *testing.T) {
	t.Parallel()

	reg, store, _ := newTestRegistry(t)
	store.SetRoom(&protocol.RoomInfo{RoomCode: "123456", Status: protocol.RoomStatusWaiting})

	handle(reg, protocol.MsgGameStarted, protocol.GameStartedData{
		GameData: map[string]any{"tick": float64(0)},
	})
	assert.Equal(t, StatusPlaying, store.Status())
	assert.Equal(t, protocol.RoomStatusPlaying, store.Room().Status)
	assert.Equal(t, float64(0), store.GameData()["tick"])

	handle(reg, protocol.MsgGameUpdate, map[string]any{"tick": float64(7), "food": map[string]any{"x": 1.0}})
	assert.Equal(t, float64(7), store.GameData()["tick"])

	handle(reg, protocol.MsgGameEnded, protocol.GameEndedData{
		Result: map[string]any{"winner": "a"},
	})
	assert.Equal(t, StatusFinished, store.Status())
	assert.Equal(t, protocol.RoomStatusFinished, store.Room().Status)
	result, ok := store.GameData()["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a", result["winner"])
}

func TestReduce_Error_ClearsSpinnerState(t *testing.T) {
	t.Parallel()

	reg, store, _ := newTestRegistry(t)
	store.SetLoading(true)
	store.SetConnecting(true)

	handle(reg, protocol.MsgError, protocol.ErrorData{Message: "房间已满"})

	snap := store.Snapshot()
	assert.Equal(t, "房间已满", snap.Err)
	assert.False(t, snap.Loading)
	assert.False(t, snap.Connecting)

	// message 缺失时落到通用文案
	handle(reg, protocol.MsgError, nil)
	assert.NotEmpty(t, store.Error())
}

func TestReduce_RoomListUpdated_IsNoop(t *testing.T) {
	t.Parallel()

	reg, store, _ := newTestRegistry(t)
	before := store.Snapshot()

	handle(reg, protocol.MsgSnakeRoomListUpdated, map[string]any{"rooms": []any{}})

	assert.Equal(t, before, store.Snapshot())
}

func TestRegistry_GameHandlerTable(t *testing.T) {
	t.Parallel()

	reg, _, _ := newTestRegistry(t)

	var mu sync.Mutex
	var got []string
	reg.RegisterGameHandler("snake_custom", func(data json.RawMessage) {
		mu.Lock()
		got = append(got, string(data))
		mu.Unlock()
	})

	handle(reg, "snake_custom", map[string]any{"k": "v"})
	mu.Lock()
	require.Len(t, got, 1)
	mu.Unlock()

	reg.UnregisterGameHandler("snake_custom")
	handle(reg, "snake_custom", map[string]any{"k": "v"})
	mu.Lock()
	assert.Len(t, got, 1)
	mu.Unlock()
}

func TestRegistry_FansOutToExternal(t *testing.T) {
	t.Parallel()

	reg, _, ext := newTestRegistry(t)

	var mu sync.Mutex
	var events []string
	ext.Register(string(protocol.MsgGameUpdate), func(json.RawMessage) {
		mu.Lock()
		events = append(events, "update")
		mu.Unlock()
	})
	// 核心表不认识的类型同样扇出
	ext.Register("snake_anything", func(json.RawMessage) {
		mu.Lock()
		events = append(events, "anything")
		mu.Unlock()
	})

	handle(reg, protocol.MsgGameUpdate, map[string]any{"tick": 1})
	handle(reg, "snake_anything", nil)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"update", "anything"}, events)
}
