package roomsync

import (
	"encoding/json"
	"sync"

	"github.com/jopatk123/myweb-realtime/internal/protocol"
	"github.com/jopatk123/myweb-realtime/internal/transport"
)

// ReducerFunc 入站事件的归约函数
type ReducerFunc func(data json.RawMessage)

// MessageSource reducer 注册表挂接的入站消息来源
type MessageSource interface {
	OnAnyMessage(transport.MessageHandler) transport.HandlerID
	OnStateChange(func(connected bool))
}

// Registry 入站事件归约注册表。
// 核心消息类型是封闭集合，用 switch 穷举；游戏命名空间的
// 扩展类型走开放的按字符串查表。reducer 是 Store 的唯一写者。
type Registry struct {
	store    *Store
	external *ExternalRegistry
	gameType string

	mu           sync.RWMutex
	gameHandlers map[protocol.MessageType]ReducerFunc
}

// NewRegistry 创建注册表
func NewRegistry(store *Store, external *ExternalRegistry, gameType string) *Registry {
	return &Registry{
		store:        store,
		external:     external,
		gameType:     gameType,
		gameHandlers: make(map[protocol.MessageType]ReducerFunc),
	}
}

// Store 返回注册表归约的目标仓库
func (r *Registry) Store() *Store {
	return r.store
}

// RegisterGameHandler 注册游戏命名空间消息的 reducer
func (r *Registry) RegisterGameHandler(msgType protocol.MessageType, fn ReducerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gameHandlers[msgType] = fn
}

// UnregisterGameHandler 注销游戏命名空间消息的 reducer
func (r *Registry) UnregisterGameHandler(msgType protocol.MessageType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.gameHandlers, msgType)
}

// Bind 挂接到传输层：入站消息逐条进入 Handle，
// 连接状态同步进仓库
func (r *Registry) Bind(src MessageSource) {
	src.OnAnyMessage(r.Handle)
	src.OnStateChange(r.store.SetConnected)
}

// Handle 归约一条入站消息。在消息到达协程内同步执行，
// 一条处理完才轮到下一条，reducer 之间不存在并发。
// 归约完成后无条件扇出到外部注册表。
func (r *Registry) Handle(msg *protocol.Message) {
	switch msg.Type {
	case protocol.MsgRoomJoined:
		r.reduceRoomJoined(msg)
	case protocol.MsgRoomLeft:
		r.store.ResetRoomScope()
	case protocol.MsgPlayerJoined:
		r.reducePlayerJoined(msg)
	case protocol.MsgPlayerLeft:
		r.reducePlayerLeft(msg)
	case protocol.MsgPlayerReconnected:
		r.reducePlayerReconnected(msg)
	case protocol.MsgPlayerReadyChanged:
		r.reducePlayerReadyChanged(msg)
	case protocol.MsgHostChanged:
		r.reduceHostChanged(msg)
	case protocol.MsgGameStarted:
		r.reduceGameStarted(msg)
	case protocol.MsgGameEnded:
		r.reduceGameEnded(msg)
	case protocol.MsgGameUpdate:
		r.reduceGameUpdate(msg)
	case protocol.MsgError:
		r.reduceError(msg)
	case protocol.RoomListUpdatedType(r.gameType):
		// 预留的扩展点：目前服务端会在房间列表变化时推送，
		// 大厅走主动轮询，这里刻意不做任何事
	default:
		r.mu.RLock()
		fn := r.gameHandlers[msg.Type]
		r.mu.RUnlock()
		if fn != nil {
			fn(msg.Data)
		}
	}

	if r.external != nil {
		r.external.Dispatch(string(msg.Type), msg.Data)
	}
}

func (r *Registry) reduceRoomJoined(msg *protocol.Message) {
	data, err := protocol.ParseData[protocol.RoomJoinedData](msg)
	if err != nil {
		return
	}

	// 缺失的嵌套字段按不存在处理，只跳过对应子更新
	if data.Room != nil {
		r.store.SetRoom(data.Room)
	}
	if data.Player != nil {
		r.store.SetPlayer(data.Player)
	}
	if data.Players != nil {
		r.store.SetPlayers(data.Players)
	} else {
		r.store.SetPlayers(nil)
	}
	if data.GameData != nil {
		r.store.SetGameData(data.GameData)
	} else {
		r.store.SetGameData(nil)
	}

	status := StatusWaiting
	if data.Room != nil && data.Room.Status == protocol.RoomStatusPlaying {
		status = StatusPlaying
	}
	r.store.SetStatus(status)
	r.store.ClearError()
	r.store.SetConnecting(false)
}

func (r *Registry) reducePlayerJoined(msg *protocol.Message) {
	data, err := protocol.ParseData[protocol.PlayerJoinedData](msg)
	if err != nil {
		return
	}
	if data.Player != nil {
		r.store.AddPlayer(*data.Player)
	}
	r.store.MergeRoom(data.Room)
}

func (r *Registry) reducePlayerLeft(msg *protocol.Message) {
	data, err := protocol.ParseData[protocol.PlayerLeftData](msg)
	if err != nil {
		return
	}
	remaining := r.store.RemovePlayer(data.SessionID)
	if data.RemainingCount != nil {
		remaining = *data.RemainingCount
	}
	r.store.SetRoomCurrentPlayers(remaining)
}

func (r *Registry) reducePlayerReconnected(msg *protocol.Message) {
	data, err := protocol.ParseData[protocol.PlayerReconnectedData](msg)
	if err != nil {
		return
	}
	sessionID := data.SessionID
	if sessionID == "" && len(data.Player) > 0 {
		// session_id 可能只出现在 player 补丁里
		var p protocol.PlayerInfo
		if json.Unmarshal(data.Player, &p) == nil {
			sessionID = p.SessionID
		}
	}
	if sessionID == "" {
		return
	}
	r.store.MergePlayer(sessionID, data.Player)
}

func (r *Registry) reducePlayerReadyChanged(msg *protocol.Message) {
	data, err := protocol.ParseData[protocol.PlayerReadyChangedData](msg)
	if err != nil {
		return
	}
	r.store.SetPlayerReady(data.SessionID, data.IsReady)
}

func (r *Registry) reduceHostChanged(msg *protocol.Message) {
	data, err := protocol.ParseData[protocol.HostChangedData](msg)
	if err != nil || data.NewHost == "" {
		return
	}
	r.store.SetRoomHost(data.NewHost)
}

func (r *Registry) reduceGameStarted(msg *protocol.Message) {
	data, err := protocol.ParseData[protocol.GameStartedData](msg)
	if err != nil {
		return
	}
	r.store.SetStatus(StatusPlaying)
	if data.GameData != nil {
		r.store.MergeGameData(data.GameData)
	}
	r.store.SetRoomStatus(protocol.RoomStatusPlaying)
}

func (r *Registry) reduceGameEnded(msg *protocol.Message) {
	data, err := protocol.ParseData[protocol.GameEndedData](msg)
	if err != nil {
		return
	}
	r.store.SetStatus(StatusFinished)
	if data.Result != nil {
		r.store.MergeGameData(map[string]any{"result": data.Result})
	}
	r.store.SetRoomStatus(protocol.RoomStatusFinished)
}

func (r *Registry) reduceGameUpdate(msg *protocol.Message) {
	var data map[string]any
	if len(msg.Data) == 0 {
		return
	}
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return
	}
	// 通用透传：按键浅合并
	r.store.MergeGameData(data)
}

func (r *Registry) reduceError(msg *protocol.Message) {
	data, err := protocol.ParseData[protocol.ErrorData](msg)
	text := "服务器返回了未知错误"
	if err == nil && data.Message != "" {
		text = data.Message
	}
	r.store.SetError(text)
	// 服务端报错后 UI 不能停留在加载态
	r.store.SetLoading(false)
	r.store.SetConnecting(false)
}
