package protocol

import "encoding/json"

// Message 消息信封：type 为路由判别符，data 为开放的 JSON 对象
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MessageType 消息类型
type MessageType string

// 客户端 → 服务端 消息类型
const (
	// 连接操作
	MsgReconnect MessageType = "reconnect" // 断线重连
	MsgPing      MessageType = "ping"      // 心跳 ping

	// 房间操作
	MsgJoinRoom    MessageType = "join_room"    // 加入房间（HTTP 建房后同样走这里订阅）
	MsgLeaveRoom   MessageType = "leave_room"   // 离开房间
	MsgPlayerReady MessageType = "player_ready" // 准备 / 取消准备

	// 游戏操作（snake）
	MsgSnakeVote MessageType = "snake_vote" // 共享模式方向投票 / 竞技模式转向
)

// 服务端 → 客户端 消息类型
const (
	// 连接相关
	MsgConnected   MessageType = "connected"   // 连接成功，下发 session_id
	MsgReconnected MessageType = "reconnected" // 重连成功
	MsgPong        MessageType = "pong"        // 心跳 pong

	// 房间相关
	MsgRoomJoined         MessageType = "room_joined"          // 加入房间成功
	MsgRoomLeft           MessageType = "room_left"            // 已离开房间
	MsgPlayerJoined       MessageType = "player_joined"        // 其他玩家加入
	MsgPlayerLeft         MessageType = "player_left"          // 玩家离开
	MsgPlayerReconnected  MessageType = "player_reconnected"   // 玩家重连回房
	MsgPlayerReadyChanged MessageType = "player_ready_changed" // 玩家准备状态变更
	MsgHostChanged        MessageType = "host_changed"         // 房主转移

	// 游戏流程
	MsgGameStarted MessageType = "game_started" // 游戏开始
	MsgGameEnded   MessageType = "game_ended"   // 游戏结束
	MsgGameUpdate  MessageType = "game_update"  // 游戏数据增量更新

	// 错误
	MsgError MessageType = "error" // 错误消息
)

// 游戏命名空间消息类型（开放集合，按 game_type 前缀扩展）
const (
	MsgSnakeRoomCreated     MessageType = "snake_room_created"
	MsgSnakeVoteUpdated     MessageType = "snake_vote_updated"
	MsgSnakeRoomListUpdated MessageType = "snake_room_list_updated" // 预留的扩展点，当前无处理逻辑
)

// RoomListUpdatedType 返回指定游戏的 room_list_updated 消息类型
func RoomListUpdatedType(gameType string) MessageType {
	return MessageType(gameType + "_room_list_updated")
}

// 游戏类型
const (
	GameTypeSnake  = "snake"
	GameTypeGomoku = "gomoku"
)

// 游戏模式
const (
	ModeShared      = "shared"      // 共享模式：全员投票操控一条蛇
	ModeCompetitive = "competitive" // 竞技模式：每人一条蛇
)

// 房间状态
const (
	RoomStatusWaiting  = "waiting"
	RoomStatusPlaying  = "playing"
	RoomStatusFinished = "finished"
	RoomStatusPaused   = "paused"
)
