package server

import (
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jopatk123/myweb-realtime/internal/apperrors"
	"github.com/jopatk123/myweb-realtime/internal/config"
	"github.com/jopatk123/myweb-realtime/internal/protocol"
)

type fakePeer struct {
	mu   sync.Mutex
	id   string
	name string
	room string
	msgs []*protocol.Message
}

func newFakePeer(id, name string) *fakePeer {
	return &fakePeer{id: id, name: name}
}

func (p *fakePeer) SessionID() string  { return p.id }
func (p *fakePeer) PlayerName() string { return p.name }

func (p *fakePeer) SendMessage(msg *protocol.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
}

func (p *fakePeer) SetRoom(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.room = code
}

func (p *fakePeer) Room() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.room
}

// messagesOfType 返回指定类型的全部消息
func (p *fakePeer) messagesOfType(msgType protocol.MessageType) []*protocol.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*protocol.Message
	for _, msg := range p.msgs {
		if msg.Type == msgType {
			out = append(out, msg)
		}
	}
	return out
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestManager(t *testing.T) *RoomManager {
	t.Helper()
	cfg := config.Default()
	cfg.Game.TickInterval = 60 * 60 * 1000 // 测试里不让 tick 自己推进
	rm := NewRoomManager(&cfg.Game, testLogger(), nil)
	t.Cleanup(rm.Close)
	return rm
}

func mustParse[T any](t *testing.T, msg *protocol.Message) *T {
	t.Helper()
	payload, err := protocol.ParseData[T](msg)
	require.NoError(t, err)
	return payload
}

func TestRoomManager_CreateRoom(t *testing.T) {
	rm := newTestManager(t)

	room, err := rm.CreateRoom(protocol.GameTypeSnake, protocol.ModeShared, 3)
	require.NoError(t, err)
	assert.Len(t, room.Code, 6)
	assert.Equal(t, protocol.RoomStatusWaiting, room.Info().Status)
	assert.Equal(t, 3, room.MaxPlayers)

	// 非法模式拒绝
	_, err = rm.CreateRoom(protocol.GameTypeSnake, "battle-royale", 3)
	assert.ErrorIs(t, err, apperrors.ErrInvalidMode)

	// 超出上限回落到默认容量
	room, err = rm.CreateRoom(protocol.GameTypeSnake, protocol.ModeCompetitive, 99)
	require.NoError(t, err)
	assert.Equal(t, 4, room.MaxPlayers)
}

func TestRoomManager_JoinFlow(t *testing.T) {
	rm := newTestManager(t)
	room, err := rm.CreateRoom(protocol.GameTypeSnake, protocol.ModeShared, 4)
	require.NoError(t, err)

	alice := newFakePeer("a", "Alice")
	require.NoError(t, rm.JoinRoom(alice, room.Code, "Alice"))

	// 首位成员：先建房确认，再 room_joined，并成为房主
	require.Len(t, alice.messagesOfType(protocol.MsgSnakeRoomCreated), 1)
	joined := mustParse[protocol.RoomJoinedData](t, alice.messagesOfType(protocol.MsgRoomJoined)[0])
	assert.Equal(t, room.Code, joined.Room.RoomCode)
	assert.Equal(t, "a", joined.Room.CreatedBy)
	assert.Equal(t, "a", joined.Player.SessionID)
	require.Len(t, joined.Players, 1)
	assert.NotEmpty(t, joined.Player.Color)
	assert.Equal(t, room.Code, alice.Room())

	bob := newFakePeer("b", "Bob")
	require.NoError(t, rm.JoinRoom(bob, room.Code, "Bob"))

	// 既有成员收到 player_joined 及房间人数补丁
	playerJoined := mustParse[protocol.PlayerJoinedData](t, alice.messagesOfType(protocol.MsgPlayerJoined)[0])
	assert.Equal(t, "b", playerJoined.Player.SessionID)
	var patch struct {
		CurrentPlayers int `json:"current_players"`
	}
	require.NoError(t, protocol.MergeInto(playerJoined.Room, &patch))
	assert.Equal(t, 2, patch.CurrentPlayers)

	// 加入方的快照里有两名玩家
	joined = mustParse[protocol.RoomJoinedData](t, bob.messagesOfType(protocol.MsgRoomJoined)[0])
	assert.Len(t, joined.Players, 2)
}

func TestRoomManager_JoinErrors(t *testing.T) {
	rm := newTestManager(t)
	room, err := rm.CreateRoom(protocol.GameTypeSnake, protocol.ModeShared, 2)
	require.NoError(t, err)

	assert.ErrorIs(t, rm.JoinRoom(newFakePeer("x", "X"), "000000", "X"), apperrors.ErrRoomNotFound)

	alice := newFakePeer("a", "Alice")
	require.NoError(t, rm.JoinRoom(alice, room.Code, "Alice"))
	assert.ErrorIs(t, rm.JoinRoom(alice, room.Code, "Alice"), apperrors.ErrAlreadyInRoom)

	require.NoError(t, rm.JoinRoom(newFakePeer("b", "Bob"), room.Code, "Bob"))
	assert.ErrorIs(t, rm.JoinRoom(newFakePeer("c", "Carol"), room.Code, "Carol"), apperrors.ErrRoomFull)
}

func TestRoomManager_ReadyAndStart(t *testing.T) {
	rm := newTestManager(t)
	room, err := rm.CreateRoom(protocol.GameTypeSnake, protocol.ModeShared, 4)
	require.NoError(t, err)

	alice := newFakePeer("a", "Alice")
	bob := newFakePeer("b", "Bob")
	require.NoError(t, rm.JoinRoom(alice, room.Code, "Alice"))
	require.NoError(t, rm.JoinRoom(bob, room.Code, "Bob"))

	require.NoError(t, rm.SetReady(alice, true))
	ready := mustParse[protocol.PlayerReadyChangedData](t, bob.messagesOfType(protocol.MsgPlayerReadyChanged)[0])
	assert.Equal(t, "a", ready.SessionID)
	assert.True(t, ready.IsReady)
	assert.False(t, ready.CanStart, "单人就绪不能开局")
	assert.Empty(t, bob.messagesOfType(protocol.MsgGameStarted))

	require.NoError(t, rm.SetReady(bob, true))
	ready = mustParse[protocol.PlayerReadyChangedData](t, alice.messagesOfType(protocol.MsgPlayerReadyChanged)[1])
	assert.True(t, ready.CanStart)

	// 全员就绪：双方都收到携带初始棋盘的 game_started
	for _, peer := range []*fakePeer{alice, bob} {
		started := mustParse[protocol.GameStartedData](t, peer.messagesOfType(protocol.MsgGameStarted)[0])
		assert.Equal(t, protocol.ModeShared, started.GameData["mode"])
		assert.NotNil(t, started.GameData["snakes"])
	}
	assert.Equal(t, protocol.RoomStatusPlaying, room.Info().Status)

	// 开局后不能再加人
	assert.ErrorIs(t, rm.JoinRoom(newFakePeer("c", "Carol"), room.Code, "Carol"), apperrors.ErrGameStarted)
}

func TestRoomManager_LeaveTransfersHost(t *testing.T) {
	rm := newTestManager(t)
	room, err := rm.CreateRoom(protocol.GameTypeSnake, protocol.ModeShared, 4)
	require.NoError(t, err)

	alice := newFakePeer("a", "Alice")
	bob := newFakePeer("b", "Bob")
	require.NoError(t, rm.JoinRoom(alice, room.Code, "Alice"))
	require.NoError(t, rm.JoinRoom(bob, room.Code, "Bob"))

	require.NoError(t, rm.LeaveRoom(alice))

	// 离开方收到 room_left 确认
	require.Len(t, alice.messagesOfType(protocol.MsgRoomLeft), 1)
	assert.Empty(t, alice.Room())

	// 房主转移给最早加入的剩余玩家
	host := mustParse[protocol.HostChangedData](t, bob.messagesOfType(protocol.MsgHostChanged)[0])
	assert.Equal(t, "b", host.NewHost)
	assert.Equal(t, "b", room.Info().CreatedBy)

	left := mustParse[protocol.PlayerLeftData](t, bob.messagesOfType(protocol.MsgPlayerLeft)[0])
	assert.Equal(t, "a", left.SessionID)
	require.NotNil(t, left.RemainingCount)
	assert.Equal(t, 1, *left.RemainingCount)

	// 最后一人离开后房间解散
	require.NoError(t, rm.LeaveRoom(bob))
	assert.Nil(t, rm.GetRoom(room.Code))
}

func TestRoomManager_DisconnectWhileWaitingLeaves(t *testing.T) {
	rm := newTestManager(t)
	room, err := rm.CreateRoom(protocol.GameTypeSnake, protocol.ModeShared, 4)
	require.NoError(t, err)

	alice := newFakePeer("a", "Alice")
	bob := newFakePeer("b", "Bob")
	require.NoError(t, rm.JoinRoom(alice, room.Code, "Alice"))
	require.NoError(t, rm.JoinRoom(bob, room.Code, "Bob"))

	rm.HandleDisconnect(alice)

	left := mustParse[protocol.PlayerLeftData](t, bob.messagesOfType(protocol.MsgPlayerLeft)[0])
	assert.Equal(t, "a", left.SessionID)
	assert.Len(t, room.Players(), 1)
}

func TestRoomManager_DisconnectWhilePlayingKeepsSeat(t *testing.T) {
	rm := newTestManager(t)
	room, err := rm.CreateRoom(protocol.GameTypeSnake, protocol.ModeShared, 4)
	require.NoError(t, err)

	alice := newFakePeer("a", "Alice")
	bob := newFakePeer("b", "Bob")
	require.NoError(t, rm.JoinRoom(alice, room.Code, "Alice"))
	require.NoError(t, rm.JoinRoom(bob, room.Code, "Bob"))
	require.NoError(t, rm.SetReady(alice, true))
	require.NoError(t, rm.SetReady(bob, true))
	require.Equal(t, protocol.RoomStatusPlaying, room.Info().Status)

	rm.HandleDisconnect(alice)

	players := room.Players()
	require.Len(t, players, 2)
	assert.False(t, players[0].Online)
	assert.Empty(t, bob.messagesOfType(protocol.MsgPlayerLeft))

	// 新连接带着原会话重连回房
	alice2 := newFakePeer("a", "Alice")
	require.NoError(t, rm.ReconnectPlayer(alice2, room.Code))

	// 重连方拿到完整快照重建状态
	joined := mustParse[protocol.RoomJoinedData](t, alice2.messagesOfType(protocol.MsgRoomJoined)[0])
	assert.Equal(t, protocol.RoomStatusPlaying, joined.Room.Status)
	assert.NotEmpty(t, joined.GameData)

	// 其他玩家收到上线补丁
	recon := mustParse[protocol.PlayerReconnectedData](t, bob.messagesOfType(protocol.MsgPlayerReconnected)[0])
	assert.Equal(t, "a", recon.SessionID)
	assert.True(t, room.Players()[0].Online)
}

func TestRoomManager_VoteSharedBroadcastsProgress(t *testing.T) {
	rm := newTestManager(t)
	room, err := rm.CreateRoom(protocol.GameTypeSnake, protocol.ModeShared, 4)
	require.NoError(t, err)

	alice := newFakePeer("a", "Alice")
	bob := newFakePeer("b", "Bob")
	require.NoError(t, rm.JoinRoom(alice, room.Code, "Alice"))
	require.NoError(t, rm.JoinRoom(bob, room.Code, "Bob"))

	// 开局前投票报错
	assert.ErrorIs(t, rm.Vote(alice, "left"), apperrors.ErrGameNotStarted)

	require.NoError(t, rm.SetReady(alice, true))
	require.NoError(t, rm.SetReady(bob, true))

	require.NoError(t, rm.Vote(alice, "left"))

	for _, peer := range []*fakePeer{alice, bob} {
		votes := mustParse[protocol.SnakeVoteUpdatedData](t, peer.messagesOfType(protocol.MsgSnakeVoteUpdated)[0])
		assert.Equal(t, map[string]string{"a": "left"}, votes.Votes)
		assert.Equal(t, map[string]int{"left": 1}, votes.Counts)
	}
}
