package protocol

import "encoding/json"

// RoomInfo 房间信息
type RoomInfo struct {
	RoomCode       string `json:"room_code"`
	GameType       string `json:"game_type"`
	Mode           string `json:"mode"`
	Status         string `json:"status"`
	CurrentPlayers int    `json:"current_players"`
	MaxPlayers     int    `json:"max_players"`
	CreatedBy      string `json:"created_by"` // 房主 session_id
}

// PlayerInfo 玩家信息
type PlayerInfo struct {
	SessionID   string `json:"session_id"`
	Name        string `json:"player_name"`
	Color       string `json:"color"`
	IsReady     bool   `json:"is_ready"`
	Online      bool   `json:"online"`
	Score       int    `json:"score"`
	SnakeLength int    `json:"snake_length,omitempty"`
}

// --- 客户端请求 Payloads ---

// ReconnectData 断线重连请求
type ReconnectData struct {
	Token     string `json:"token"`      // 重连令牌
	SessionID string `json:"session_id"` // 原会话 ID
}

// PingData 心跳请求
type PingData struct {
	Timestamp int64 `json:"timestamp"` // 客户端时间戳（毫秒）
}

// JoinRoomData 加入房间请求
type JoinRoomData struct {
	RoomCode   string `json:"room_code"`
	PlayerName string `json:"player_name"`
}

// PlayerReadyData 准备状态请求
type PlayerReadyData struct {
	IsReady bool `json:"is_ready"`
}

// SnakeVoteData 方向投票请求
type SnakeVoteData struct {
	Direction string `json:"direction"` // up/down/left/right
}

// --- 服务端响应 Payloads ---

// ConnectedData 连接成功响应
type ConnectedData struct {
	SessionID      string `json:"session_id"`
	ReconnectToken string `json:"reconnect_token"` // 重连令牌
}

// ReconnectedData 重连成功响应
type ReconnectedData struct {
	SessionID string `json:"session_id"`
	RoomCode  string `json:"room_code,omitempty"` // 如果仍在房间中
}

// PongData 心跳响应
type PongData struct {
	ClientTimestamp int64 `json:"client_timestamp"`
	ServerTimestamp int64 `json:"server_timestamp"`
}

// RoomJoinedData 加入房间成功响应
type RoomJoinedData struct {
	Room     *RoomInfo      `json:"room"`
	Player   *PlayerInfo    `json:"player"`
	Players  []PlayerInfo   `json:"players"`
	GameData map[string]any `json:"game_data"`
}

// PlayerJoinedData 其他玩家加入通知。
// Room 为可选的房间补丁（如 current_players），按浅合并处理。
type PlayerJoinedData struct {
	Player *PlayerInfo     `json:"player"`
	Room   json.RawMessage `json:"room,omitempty"`
}

// PlayerLeftData 玩家离开通知
type PlayerLeftData struct {
	SessionID      string `json:"session_id"`
	RemainingCount *int   `json:"remaining_count,omitempty"`
}

// PlayerReconnectedData 玩家重连通知。Player 为按 session_id 合并的补丁。
type PlayerReconnectedData struct {
	SessionID string          `json:"session_id"`
	Player    json.RawMessage `json:"player,omitempty"`
}

// PlayerReadyChangedData 准备状态变更通知
type PlayerReadyChangedData struct {
	SessionID string `json:"session_id"`
	IsReady   bool   `json:"is_ready"`
	CanStart  bool   `json:"can_start,omitempty"` // 全员就绪，可以开始
}

// HostChangedData 房主转移通知
type HostChangedData struct {
	NewHost string `json:"new_host"`
}

// GameStartedData 游戏开始通知。GameData 浅合并进本地 gameData。
type GameStartedData struct {
	GameData map[string]any `json:"game_data,omitempty"`
}

// GameEndedData 游戏结束通知
type GameEndedData struct {
	Result map[string]any `json:"result,omitempty"`
}

// SnakeVoteUpdatedData 投票进度通知
type SnakeVoteUpdatedData struct {
	Votes  map[string]string `json:"votes"`            // session_id → direction
	Counts map[string]int    `json:"counts,omitempty"` // direction → 票数
}

// ErrorData 错误响应
type ErrorData struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

// --- HTTP Payloads ---

// CreateRoomRequest POST {prefix}/rooms 请求体
type CreateRoomRequest struct {
	PlayerName string `json:"player_name"`
	GameType   string `json:"game_type"`
	Mode       string `json:"mode,omitempty"`
	MaxPlayers int    `json:"max_players,omitempty"`
}

// CreateRoomResponse POST {prefix}/rooms 响应体
type CreateRoomResponse struct {
	Room RoomInfo `json:"room"`
}

// RoomListResponse GET {prefix}/rooms 响应体
type RoomListResponse struct {
	Rooms []RoomInfo `json:"rooms"`
}

// HTTPError 非 2xx 响应体
type HTTPError struct {
	Message string `json:"message"`
}
