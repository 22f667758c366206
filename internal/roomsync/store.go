// Package roomsync 维护房间状态的本地权威镜像：
// 服务端推送的事件经 reducer 归约进 Store，UI 只读快照。
package roomsync

import (
	"encoding/json"
	"sync"

	"github.com/jopatk123/myweb-realtime/internal/protocol"
)

// 本地游戏状态（由最近一次房间/游戏事件推导）
const (
	StatusWaiting  = "waiting"
	StatusStarting = "starting"
	StatusPlaying  = "playing"
	StatusFinished = "finished"
)

// Snapshot 一次性读出的全量状态快照
type Snapshot struct {
	Room       *protocol.RoomInfo
	Player     *protocol.PlayerInfo
	Players    []protocol.PlayerInfo
	GameData   map[string]any
	Status     string
	Connected  bool
	Connecting bool
	Loading    bool
	Err        string
}

// Store 房间状态仓库。
// 单写者约束：字段只通过下面的 setter 变更，而 setter 只被
// reducer 注册表与显式 Reset 调用；UI 与外部监听器只读。
type Store struct {
	mu       sync.RWMutex
	room     *protocol.RoomInfo
	player   *protocol.PlayerInfo
	players  []protocol.PlayerInfo
	gameData map[string]any
	status   string

	connected  bool
	connecting bool
	loading    bool
	err        string
}

// NewStore 创建空仓库
func NewStore() *Store {
	return &Store{
		gameData: make(map[string]any),
		status:   StatusWaiting,
	}
}

// --- 房间 ---

// Room 返回房间快照，本地无房间时返回 nil
func (s *Store) Room() *protocol.RoomInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.room == nil {
		return nil
	}
	room := *s.room
	return &room
}

// SetRoom 整体替换房间
func (s *Store) SetRoom(room *protocol.RoomInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room == nil {
		s.room = nil
		return
	}
	copied := *room
	s.room = &copied
}

// MergeRoom 将 JSON 补丁浅合并进当前房间；本地无房间时为 no-op
func (s *Store) MergeRoom(patch json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == nil || len(patch) == 0 {
		return
	}
	_ = json.Unmarshal(patch, s.room)
}

// SetRoomStatus 更新房间 status 字段；本地无房间时为 no-op
func (s *Store) SetRoomStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room != nil {
		s.room.Status = status
	}
}

// SetRoomCurrentPlayers 更新房间人数；本地无房间时为 no-op
func (s *Store) SetRoomCurrentPlayers(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room != nil {
		s.room.CurrentPlayers = n
	}
}

// SetRoomHost 更新房主；本地无房间时为 no-op
func (s *Store) SetRoomHost(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room != nil {
		s.room.CreatedBy = sessionID
	}
}

// --- 自己 ---

// Player 返回本地玩家快照
func (s *Store) Player() *protocol.PlayerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.player == nil {
		return nil
	}
	p := *s.player
	return &p
}

// SetPlayer 设置本地玩家
func (s *Store) SetPlayer(p *protocol.PlayerInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p == nil {
		s.player = nil
		return
	}
	copied := *p
	s.player = &copied
}

// --- 玩家列表 ---

// Players 返回玩家列表快照（保持加入顺序）
func (s *Store) Players() []protocol.PlayerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.PlayerInfo, len(s.players))
	copy(out, s.players)
	return out
}

// SetPlayers 整体替换玩家列表
func (s *Store) SetPlayers(players []protocol.PlayerInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players = make([]protocol.PlayerInfo, len(players))
	copy(s.players, players)
}

// AddPlayer 追加玩家；session_id 已存在时忽略，返回是否追加
func (s *Store) AddPlayer(p protocol.PlayerInfo) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.players {
		if existing.SessionID == p.SessionID {
			return false
		}
	}
	s.players = append(s.players, p)
	return true
}

// RemovePlayer 按 session_id 移除玩家，返回剩余人数
func (s *Store) RemovePlayer(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.players {
		if p.SessionID == sessionID {
			s.players = append(s.players[:i], s.players[i+1:]...)
			break
		}
	}
	return len(s.players)
}

// MergePlayer 将 JSON 补丁合并进匹配的玩家；找不到时为 no-op
func (s *Store) MergePlayer(sessionID string, patch json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(patch) == 0 {
		return
	}
	for i := range s.players {
		if s.players[i].SessionID == sessionID {
			_ = json.Unmarshal(patch, &s.players[i])
			return
		}
	}
}

// SetPlayerReady 设置匹配玩家的准备状态；找不到时为 no-op
func (s *Store) SetPlayerReady(sessionID string, ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.players {
		if s.players[i].SessionID == sessionID {
			s.players[i].IsReady = ready
			return
		}
	}
}

// --- 游戏数据 ---

// GameData 返回游戏数据快照
func (s *Store) GameData() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.gameData))
	for k, v := range s.gameData {
		out[k] = v
	}
	return out
}

// SetGameData 整体替换游戏数据
func (s *Store) SetGameData(data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gameData = make(map[string]any, len(data))
	for k, v := range data {
		s.gameData[k] = v
	}
}

// MergeGameData 浅合并游戏数据
func (s *Store) MergeGameData(data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range data {
		s.gameData[k] = v
	}
}

// --- 状态与连接 ---

// Status 返回本地游戏状态
func (s *Store) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SetStatus 设置本地游戏状态
func (s *Store) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// SetConnected 同步传输层连接标记
func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}

// SetConnecting 设置连接中标记
func (s *Store) SetConnecting(connecting bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connecting = connecting
}

// SetLoading 设置 HTTP 请求进行中标记
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}

// SetError 设置最近一次错误
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = msg
}

// ClearError 清除错误
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = ""
}

// IsConnected 传输层是否连接
func (s *Store) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Loading 是否有请求进行中
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Error 返回最近一次错误
func (s *Store) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Snapshot 在单个锁区间内读出全量快照
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Status:     s.status,
		Connected:  s.connected,
		Connecting: s.connecting,
		Loading:    s.loading,
		Err:        s.err,
	}
	if s.room != nil {
		room := *s.room
		snap.Room = &room
	}
	if s.player != nil {
		p := *s.player
		snap.Player = &p
	}
	snap.Players = make([]protocol.PlayerInfo, len(s.players))
	copy(snap.Players, s.players)
	snap.GameData = make(map[string]any, len(s.gameData))
	for k, v := range s.gameData {
		snap.GameData[k] = v
	}
	return snap
}

// ResetRoomScope 清空房间作用域字段（room_left 的归约）。
// 单锁区间内一起清空，不存在可观察的中间态。
func (s *Store) ResetRoomScope() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetRoomScopeLocked()
}

// Reset 恢复所有字段到空默认值。connected 反映传输层实况，
// 由传输层状态回调单独维护，不在此清除。
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetRoomScopeLocked()
	s.connecting = false
	s.loading = false
	s.err = ""
}

func (s *Store) resetRoomScopeLocked() {
	s.room = nil
	s.player = nil
	s.players = nil
	s.gameData = make(map[string]any)
	s.status = StatusWaiting
}
