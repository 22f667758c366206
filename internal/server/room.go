package server

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jopatk123/myweb-realtime/internal/apperrors"
	"github.com/jopatk123/myweb-realtime/internal/config"
	"github.com/jopatk123/myweb-realtime/internal/protocol"
	"github.com/jopatk123/myweb-realtime/internal/server/storage"
)

const (
	// 房间号长度
	roomCodeLength = 6
	// 房间号字符集
	roomCodeChars = "0123456789"
)

// 玩家配色，按加入顺序分配
var playerColors = []string{"#ff6b6b", "#4ecdc4", "#ffe66d", "#a29bfe", "#55efc4", "#fd79a8"}

// Peer 房间成员的连接端抽象（*Client 实现，测试里用 fake）
type Peer interface {
	SessionID() string
	PlayerName() string
	SendMessage(msg *protocol.Message)
	SetRoom(code string)
	Room() string
}

// RoomPlayer 房间中的玩家
type RoomPlayer struct {
	Peer Peer
	Info protocol.PlayerInfo
}

// Room 游戏房间
type Room struct {
	Code       string
	GameType   string
	Mode       string
	MaxPlayers int
	CreatedAt  time.Time

	status    string
	createdBy string // 房主 session_id
	order     []string
	players   map[string]*RoomPlayer
	game      *SnakeSession

	manager *RoomManager
	mu      sync.RWMutex
}

// RoomManager 房间管理器
type RoomManager struct {
	cfg    *config.GameConfig
	logger *logrus.Logger
	store  *storage.RedisStore // 可为 nil（无持久化运行）

	rooms map[string]*Room
	mu    sync.RWMutex

	cleanupDone chan struct{}
	closeOnce   sync.Once
}

// NewRoomManager 创建房间管理器并启动空房间回收
func NewRoomManager(cfg *config.GameConfig, logger *logrus.Logger, store *storage.RedisStore) *RoomManager {
	rm := &RoomManager{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		rooms:       make(map[string]*Room),
		cleanupDone: make(chan struct{}),
	}

	go rm.cleanupLoop()

	return rm
}

// Close 停止回收协程并终止所有进行中的游戏
func (rm *RoomManager) Close() {
	rm.closeOnce.Do(func() {
		close(rm.cleanupDone)
	})

	rm.mu.Lock()
	defer rm.mu.Unlock()
	for _, room := range rm.rooms {
		room.mu.Lock()
		if room.game != nil {
			room.game.Stop()
			room.game = nil
		}
		room.mu.Unlock()
	}
}

// CreateRoom 创建房间（HTTP 建房入口，此时创建者尚未通过 WS 加入）
func (rm *RoomManager) CreateRoom(gameType, mode string, maxPlayers int) (*Room, error) {
	if mode != protocol.ModeShared && mode != protocol.ModeCompetitive {
		return nil, apperrors.ErrInvalidMode
	}
	if maxPlayers <= 0 || maxPlayers > rm.cfg.MaxPlayers {
		maxPlayers = rm.cfg.MaxPlayers
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	room := &Room{
		Code:       rm.generateRoomCode(),
		GameType:   gameType,
		Mode:       mode,
		MaxPlayers: maxPlayers,
		CreatedAt:  time.Now(),
		status:     protocol.RoomStatusWaiting,
		players:    make(map[string]*RoomPlayer),
		manager:    rm,
	}
	rm.rooms[room.Code] = room

	rm.logger.WithFields(logrus.Fields{
		"room": room.Code,
		"game": gameType,
		"mode": mode,
	}).Info("房间已创建")

	rm.saveSnapshot(room)

	return room, nil
}

// GetRoom 获取房间
func (rm *RoomManager) GetRoom(code string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[code]
}

// ListRooms 按游戏类型（必填）与状态（可选）过滤房间列表
func (rm *RoomManager) ListRooms(gameType, status string) []protocol.RoomInfo {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	rooms := make([]protocol.RoomInfo, 0)
	for _, room := range rm.rooms {
		info := room.Info()
		if info.GameType != gameType {
			continue
		}
		if status != "" && info.Status != status {
			continue
		}
		rooms = append(rooms, info)
	}
	return rooms
}

// JoinRoom 玩家加入房间并完成实时订阅
func (rm *RoomManager) JoinRoom(peer Peer, code, playerName string) error {
	room := rm.GetRoom(code)
	if room == nil {
		return apperrors.ErrRoomNotFound
	}

	room.mu.Lock()

	if _, ok := room.players[peer.SessionID()]; ok {
		room.mu.Unlock()
		return apperrors.ErrAlreadyInRoom
	}
	if len(room.players) >= room.MaxPlayers {
		room.mu.Unlock()
		return apperrors.ErrRoomFull
	}
	if room.status != protocol.RoomStatusWaiting {
		room.mu.Unlock()
		return apperrors.ErrGameStarted
	}

	info := protocol.PlayerInfo{
		SessionID: peer.SessionID(),
		Name:      playerName,
		Color:     playerColors[len(room.order)%len(playerColors)],
		Online:    true,
	}
	room.players[peer.SessionID()] = &RoomPlayer{Peer: peer, Info: info}
	room.order = append(room.order, peer.SessionID())
	if len(room.order) == 1 {
		room.createdBy = peer.SessionID()
	}
	peer.SetRoom(code)

	roomInfo := room.infoLocked()
	players := room.playerInfosLocked()

	// 首位成员是建房者：先下发建房确认
	if room.GameType == protocol.GameTypeSnake && len(room.order) == 1 {
		peer.SendMessage(protocol.MustNewMessage(protocol.MsgSnakeRoomCreated, map[string]any{
			"room": roomInfo,
		}))
	}

	peer.SendMessage(protocol.MustNewMessage(protocol.MsgRoomJoined, protocol.RoomJoinedData{
		Room:     &roomInfo,
		Player:   &info,
		Players:  players,
		GameData: map[string]any{},
	}))

	patch, _ := json.Marshal(map[string]any{"current_players": len(room.order)})
	room.broadcastExceptLocked(peer.SessionID(), protocol.MustNewMessage(protocol.MsgPlayerJoined, protocol.PlayerJoinedData{
		Player: &info,
		Room:   patch,
	}))

	room.mu.Unlock()

	rm.logger.WithFields(logrus.Fields{
		"room":   code,
		"player": playerName,
	}).Info("玩家加入房间")

	rm.saveSnapshot(room)

	return nil
}

// LeaveRoom 玩家主动离开房间
func (rm *RoomManager) LeaveRoom(peer Peer) error {
	room := rm.GetRoom(peer.Room())
	if room == nil {
		return apperrors.ErrNotInRoom
	}

	room.mu.Lock()

	if _, ok := room.players[peer.SessionID()]; !ok {
		room.mu.Unlock()
		return apperrors.ErrNotInRoom
	}

	rm.removePlayerLocked(room, peer.SessionID())
	peer.SetRoom("")
	peer.SendMessage(protocol.MustNewMessage(protocol.MsgRoomLeft, nil))

	empty := len(room.order) == 0
	game := room.game
	room.mu.Unlock()

	if game != nil {
		game.RemovePlayer(peer.SessionID())
	}

	rm.logger.WithFields(logrus.Fields{
		"room":   room.Code,
		"player": peer.PlayerName(),
	}).Info("玩家离开房间")

	if empty {
		rm.teardown(room)
	} else {
		rm.saveSnapshot(room)
	}

	return nil
}

// removePlayerLocked 移除玩家并广播离开与房主转移，调用方持有 room.mu
func (rm *RoomManager) removePlayerLocked(room *Room, sessionID string) {
	delete(room.players, sessionID)
	for i, id := range room.order {
		if id == sessionID {
			room.order = append(room.order[:i], room.order[i+1:]...)
			break
		}
	}

	remaining := len(room.order)
	if remaining > 0 && room.createdBy == sessionID {
		room.createdBy = room.order[0]
		room.broadcastLocked(protocol.MustNewMessage(protocol.MsgHostChanged, protocol.HostChangedData{
			NewHost: room.createdBy,
		}))
	}

	room.broadcastLocked(protocol.MustNewMessage(protocol.MsgPlayerLeft, protocol.PlayerLeftData{
		SessionID:      sessionID,
		RemainingCount: &remaining,
	}))
}

// SetReady 设置玩家准备状态；全员就绪（≥2 人）即开局
func (rm *RoomManager) SetReady(peer Peer, ready bool) error {
	room := rm.GetRoom(peer.Room())
	if room == nil {
		return apperrors.ErrNotInRoom
	}

	room.mu.Lock()

	player, ok := room.players[peer.SessionID()]
	if !ok {
		room.mu.Unlock()
		return apperrors.ErrNotInRoom
	}
	if room.status != protocol.RoomStatusWaiting {
		room.mu.Unlock()
		return apperrors.ErrGameStarted
	}

	player.Info.IsReady = ready
	canStart := room.allReadyLocked()

	room.broadcastLocked(protocol.MustNewMessage(protocol.MsgPlayerReadyChanged, protocol.PlayerReadyChangedData{
		SessionID: peer.SessionID(),
		IsReady:   ready,
		CanStart:  canStart,
	}))
	room.mu.Unlock()

	if canStart {
		room.startGame()
	}
	return nil
}

// Vote snake 方向投票入口
func (rm *RoomManager) Vote(peer Peer, direction string) error {
	room := rm.GetRoom(peer.Room())
	if room == nil {
		return apperrors.ErrNotInRoom
	}

	room.mu.RLock()
	game := room.game
	room.mu.RUnlock()

	if game == nil {
		return apperrors.ErrGameNotStarted
	}
	if err := game.Vote(peer.SessionID(), direction); err != nil {
		return err
	}

	// 共享模式向全房间同步投票进度
	if room.Mode == protocol.ModeShared {
		room.Broadcast(protocol.MustNewMessage(protocol.MsgSnakeVoteUpdated, protocol.SnakeVoteUpdatedData{
			Votes:  game.Votes(),
			Counts: game.VoteCounts(),
		}))
	}
	return nil
}

// HandleDisconnect 连接断开：等待中视为离开，游戏中标记离线等待重连
func (rm *RoomManager) HandleDisconnect(peer Peer) {
	room := rm.GetRoom(peer.Room())
	if room == nil {
		return
	}

	room.mu.Lock()
	player, ok := room.players[peer.SessionID()]
	if !ok {
		room.mu.Unlock()
		return
	}

	if room.status == protocol.RoomStatusPlaying {
		player.Info.Online = false
		room.mu.Unlock()
		rm.logger.WithField("player", peer.PlayerName()).Info("玩家游戏中掉线，保留席位")
		return
	}
	room.mu.Unlock()

	_ = rm.LeaveRoom(peer)
}

// ReconnectPlayer 重连玩家回到房间：换绑连接并广播上线
func (rm *RoomManager) ReconnectPlayer(peer Peer, code string) error {
	room := rm.GetRoom(code)
	if room == nil {
		return apperrors.ErrRoomNotFound
	}

	room.mu.Lock()

	player, ok := room.players[peer.SessionID()]
	if !ok {
		room.mu.Unlock()
		return apperrors.ErrNotInRoom
	}

	player.Peer = peer
	player.Info.Online = true
	peer.SetRoom(code)

	roomInfo := room.infoLocked()
	players := room.playerInfosLocked()
	info := player.Info
	var gameData map[string]any
	if room.game != nil {
		gameData = room.game.StateData()
	} else {
		gameData = map[string]any{}
	}

	// 重连方用完整快照重建本地状态
	peer.SendMessage(protocol.MustNewMessage(protocol.MsgRoomJoined, protocol.RoomJoinedData{
		Room:     &roomInfo,
		Player:   &info,
		Players:  players,
		GameData: gameData,
	}))

	patch, _ := json.Marshal(map[string]any{"online": true})
	room.broadcastExceptLocked(peer.SessionID(), protocol.MustNewMessage(protocol.MsgPlayerReconnected, protocol.PlayerReconnectedData{
		SessionID: peer.SessionID(),
		Player:    patch,
	}))

	room.mu.Unlock()

	rm.logger.WithFields(logrus.Fields{
		"room":   code,
		"player": peer.PlayerName(),
	}).Info("玩家重连回房")

	return nil
}

// generateRoomCode 生成唯一房间号，调用方持有 rm.mu
func (rm *RoomManager) generateRoomCode() string {
	for {
		code := make([]byte, roomCodeLength)
		for i := range code {
			code[i] = roomCodeChars[rand.Intn(len(roomCodeChars))]
		}
		if _, exists := rm.rooms[string(code)]; !exists {
			return string(code)
		}
	}
}

// teardown 解散房间
func (rm *RoomManager) teardown(room *Room) {
	room.mu.Lock()
	if room.game != nil {
		room.game.Stop()
		room.game = nil
	}
	room.mu.Unlock()

	rm.mu.Lock()
	delete(rm.rooms, room.Code)
	rm.mu.Unlock()

	if rm.store != nil {
		go func() { _ = rm.store.DeleteRoom(context.Background(), room.Code) }()
	}
	rm.logger.WithField("room", room.Code).Info("房间已解散")
}

// saveSnapshot 异步保存房间快照
func (rm *RoomManager) saveSnapshot(room *Room) {
	if rm.store == nil {
		return
	}
	room.mu.RLock()
	snap := &storage.RoomSnapshot{
		Room:      room.infoLocked(),
		Players:   room.playerInfosLocked(),
		CreatedAt: room.CreatedAt.Unix(),
	}
	room.mu.RUnlock()

	go func() { _ = rm.store.SaveRoom(context.Background(), snap) }()
}

// cleanupLoop 定期回收超时的等待中房间
func (rm *RoomManager) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rm.cleanup()
		case <-rm.cleanupDone:
			return
		}
	}
}

func (rm *RoomManager) cleanup() {
	timeout := rm.cfg.RoomTimeoutDuration()
	now := time.Now()

	rm.mu.Lock()
	var expired []*Room
	for code, room := range rm.rooms {
		room.mu.RLock()
		stale := room.status == protocol.RoomStatusWaiting && now.Sub(room.CreatedAt) > timeout
		room.mu.RUnlock()
		if stale {
			expired = append(expired, room)
			delete(rm.rooms, code)
		}
	}
	rm.mu.Unlock()

	for _, room := range expired {
		room.mu.Lock()
		room.broadcastLocked(protocol.NewErrorMessage(apperrors.CodeRoomNotFound, "房间超时已关闭"))
		for _, id := range room.order {
			room.players[id].Peer.SetRoom("")
		}
		room.mu.Unlock()

		if rm.store != nil {
			go func(code string) { _ = rm.store.DeleteRoom(context.Background(), code) }(room.Code)
		}
		rm.logger.WithField("room", room.Code).Info("房间超时已清理")
	}
}

// --- Room 方法 ---

// Info 返回房间信息快照
func (r *Room) Info() protocol.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.infoLocked()
}

func (r *Room) infoLocked() protocol.RoomInfo {
	return protocol.RoomInfo{
		RoomCode:       r.Code,
		GameType:       r.GameType,
		Mode:           r.Mode,
		Status:         r.status,
		CurrentPlayers: len(r.order),
		MaxPlayers:     r.MaxPlayers,
		CreatedBy:      r.createdBy,
	}
}

// Players 返回按加入顺序排列的玩家信息
func (r *Room) Players() []protocol.PlayerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.playerInfosLocked()
}

func (r *Room) playerInfosLocked() []protocol.PlayerInfo {
	infos := make([]protocol.PlayerInfo, 0, len(r.order))
	for _, id := range r.order {
		infos = append(infos, r.players[id].Info)
	}
	return infos
}

// Broadcast 广播消息给房间内所有玩家
func (r *Room) Broadcast(msg *protocol.Message) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.broadcastLocked(msg)
}

func (r *Room) broadcastLocked(msg *protocol.Message) {
	for _, player := range r.players {
		player.Peer.SendMessage(msg)
	}
}

func (r *Room) broadcastExceptLocked(excludeID string, msg *protocol.Message) {
	for id, player := range r.players {
		if id != excludeID {
			player.Peer.SendMessage(msg)
		}
	}
}

// allReadyLocked 至少 2 人且全员就绪
func (r *Room) allReadyLocked() bool {
	if len(r.players) < 2 {
		return false
	}
	for _, player := range r.players {
		if !player.Info.IsReady {
			return false
		}
	}
	return true
}

// startGame 创建 snake 会话并开始推进
func (r *Room) startGame() {
	r.mu.Lock()

	if r.status != protocol.RoomStatusWaiting || len(r.order) < 2 {
		r.mu.Unlock()
		return
	}
	r.status = protocol.RoomStatusPlaying

	sessions := make([]string, len(r.order))
	copy(sessions, r.order)
	game := NewSnakeSession(r.Mode, sessions, r.manager.cfg.TickDuration(), r.Broadcast, r.finishGame)
	r.game = game

	r.broadcastLocked(protocol.MustNewMessage(protocol.MsgGameStarted, protocol.GameStartedData{
		GameData: game.StateData(),
	}))
	r.mu.Unlock()

	game.Start()

	r.manager.logger.WithFields(logrus.Fields{
		"room": r.Code,
		"mode": r.Mode,
	}).Info("游戏开始")

	r.manager.saveSnapshot(r)
}

// finishGame 游戏结束：广播结果、记录战绩、复位为可再开局
func (r *Room) finishGame(result map[string]any) {
	r.mu.Lock()
	if r.game == nil {
		r.mu.Unlock()
		return
	}
	game := r.game
	r.game = nil
	r.status = protocol.RoomStatusWaiting
	for _, player := range r.players {
		player.Info.IsReady = false
	}
	r.broadcastLocked(protocol.MustNewMessage(protocol.MsgGameEnded, protocol.GameEndedData{
		Result: result,
	}))
	winnerID, _ := result["winner"].(string)
	names := make(map[string]string, len(r.players))
	for id, player := range r.players {
		names[id] = player.Info.Name
	}
	r.mu.Unlock()

	game.Stop()

	r.recordStats(names, winnerID, game.Scores())

	r.manager.logger.WithField("room", r.Code).Info("游戏结束")
	r.manager.saveSnapshot(r)
}

// recordStats 把本局战绩与积分写入存储
func (r *Room) recordStats(names map[string]string, winnerID string, scores map[string]int) {
	store := r.manager.store
	if store == nil {
		return
	}

	go func() {
		ctx := context.Background()
		for id, name := range names {
			_ = store.RecordGame(ctx, name, id == winnerID)
			if score := scores[id]; score > 0 {
				_ = store.AddScore(ctx, r.GameType, name, score)
			}
		}
	}()
}
