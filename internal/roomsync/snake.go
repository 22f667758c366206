package roomsync

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/jopatk123/myweb-realtime/internal/protocol"
)

// 方向常量
const (
	DirUp    = "up"
	DirDown  = "down"
	DirLeft  = "left"
	DirRight = "right"
)

// SnakeSync snake 专属的同步扩展：投票状态、倒计时与回合重置。
// 通过外部注册表订阅核心事件，通过开放查表接管 snake_* 消息，
// 不触碰核心 reducer 表。
type SnakeSync struct {
	store      *Store
	dispatcher Dispatcher

	mu            sync.Mutex
	votes         map[string]string // session_id → direction
	myVote        string
	countdown     *time.Timer
	countdownDone time.Time
	subs          []Subscription
	attached      bool
}

// Dispatcher 出站消息通道（由 transport.Dispatcher 实现）
type Dispatcher interface {
	Dispatch(msgType protocol.MessageType, data map[string]any)
}

// NewSnakeSync 创建 snake 扩展
func NewSnakeSync(store *Store, dispatcher Dispatcher) *SnakeSync {
	return &SnakeSync{
		store:      store,
		dispatcher: dispatcher,
		votes:      make(map[string]string),
	}
}

// Attach 挂接到核心注册表与外部注册表，重复挂接为 no-op。
// 订阅凭据由扩展自己持有，Detach 时逐一注销。
func (s *SnakeSync) Attach(reg *Registry, ext *ExternalRegistry) {
	s.mu.Lock()
	if s.attached {
		s.mu.Unlock()
		return
	}
	s.attached = true
	s.mu.Unlock()

	// 每个新回合（开局与每次 tick）都清掉上一回合的投票，
	// 过期投票绝不能顶着新回合展示
	subs := []Subscription{
		ext.Register(string(protocol.MsgGameStarted), s.onRoundReset),
		ext.Register(string(protocol.MsgGameUpdate), s.onRoundReset),
		ext.Register(string(protocol.MsgPlayerReadyChanged), s.onReadyChanged),
	}
	s.mu.Lock()
	s.subs = subs
	s.mu.Unlock()

	reg.RegisterGameHandler(protocol.MsgSnakeVoteUpdated, s.onVoteUpdated)
	reg.RegisterGameHandler(protocol.MsgSnakeRoomCreated, s.onRoomCreated)
}

// Detach 解除挂接并清空本地投票状态
func (s *SnakeSync) Detach(reg *Registry, ext *ExternalRegistry) {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.attached = false
	s.mu.Unlock()

	for _, sub := range subs {
		ext.Unregister(sub)
	}

	reg.UnregisterGameHandler(protocol.MsgSnakeVoteUpdated)
	reg.UnregisterGameHandler(protocol.MsgSnakeRoomCreated)

	s.resetRound()
}

// Vote 记录本地投票并上报服务端
func (s *SnakeSync) Vote(direction string) {
	s.mu.Lock()
	s.myVote = direction
	s.mu.Unlock()

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(protocol.MsgSnakeVote, map[string]any{
			"direction": direction,
		})
	}
}

// Votes 返回当前回合投票快照
func (s *SnakeSync) Votes() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.votes))
	for k, v := range s.votes {
		out[k] = v
	}
	return out
}

// MyVote 返回本地玩家本回合的投票
func (s *SnakeSync) MyVote() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.myVote
}

// StartCountdown 启动投票倒计时。句柄由扩展持有，
// 每条启动路径都有对应的停止路径（回合重置、Detach）。
func (s *SnakeSync) StartCountdown(d time.Duration, expired func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countdown != nil {
		s.countdown.Stop()
	}
	s.countdownDone = time.Now().Add(d)
	s.countdown = time.AfterFunc(d, func() {
		if expired != nil {
			expired()
		}
	})
}

// StopCountdown 停止投票倒计时
func (s *SnakeSync) StopCountdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCountdownLocked()
}

// CountdownRemaining 返回倒计时剩余时长，未在倒计时返回 0
func (s *SnakeSync) CountdownRemaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countdown == nil {
		return 0
	}
	if remaining := time.Until(s.countdownDone); remaining > 0 {
		return remaining
	}
	return 0
}

func (s *SnakeSync) stopCountdownLocked() {
	if s.countdown != nil {
		s.countdown.Stop()
		s.countdown = nil
	}
	s.countdownDone = time.Time{}
}

func (s *SnakeSync) resetRound() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes = make(map[string]string)
	s.myVote = ""
	s.stopCountdownLocked()
}

// --- 订阅回调 ---

func (s *SnakeSync) onRoundReset(json.RawMessage) {
	s.resetRound()
}

func (s *SnakeSync) onReadyChanged(data json.RawMessage) {
	var payload protocol.PlayerReadyChangedData
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	// 全员就绪：本地先行进入 starting，等待服务端 game_started
	if payload.CanStart {
		s.store.SetStatus(StatusStarting)
	}
}

func (s *SnakeSync) onVoteUpdated(data json.RawMessage) {
	var payload protocol.SnakeVoteUpdatedData
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes = make(map[string]string, len(payload.Votes))
	for k, v := range payload.Votes {
		s.votes[k] = v
	}
}

func (s *SnakeSync) onRoomCreated(data json.RawMessage) {
	var payload struct {
		Room *protocol.RoomInfo `json:"room"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Room == nil {
		return
	}
	// 建房确认可能先于 room_joined 到达，先记下房间信息
	if s.store.Room() == nil {
		s.store.SetRoom(payload.Room)
	}
}
