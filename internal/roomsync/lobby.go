package roomsync

import (
	"context"
	"sync"
	"time"

	"github.com/jopatk123/myweb-realtime/internal/events"
	"github.com/jopatk123/myweb-realtime/internal/protocol"
)

// RoomLister 房间列表来源（由 API 客户端实现）
type RoomLister interface {
	GetRoomList(ctx context.Context, filters map[string]string) ([]protocol.RoomInfo, error)
}

// CreateRoomEvent 建房域事件（经校验后发出）
type CreateRoomEvent struct {
	PlayerName string
	Config     RoomConfig
}

// JoinRoomEvent 加入房间域事件（经校验后发出）
type JoinRoomEvent struct {
	PlayerName string
	RoomCode   string
}

// LobbyOptions 大厅行为配置
type LobbyOptions struct {
	AutoRefresh     bool
	RefreshInterval time.Duration
	Filters         map[string]string // 附加的房间列表过滤条件
}

// refreshHandle 自动刷新的显式句柄：每条启动路径都有配对的停止路径
type refreshHandle struct {
	stop chan struct{}
}

// Lobby 大厅协调器：房间列表轮询、昵称/模式本地回显、
// 校验拦截的建房/加入动作。动作本身不直接碰网络，
// 只发出域事件，由订阅方执行。
type Lobby struct {
	lister   RoomLister
	store    *Store
	bus      *events.Bus
	validate NameValidator
	opts     LobbyOptions

	mu           sync.Mutex
	playerName   string
	selectedMode string
	modes        []string
	modesWereSet bool // 空→非空转换只触发一次默认选择
	rooms        []protocol.RoomInfo
	refresh      *refreshHandle
	refreshing   bool
}

// NewLobby 创建大厅协调器
func NewLobby(lister RoomLister, store *Store, bus *events.Bus, validate NameValidator, opts LobbyOptions) *Lobby {
	if validate == nil {
		validate = ValidatePlayerName
	}
	return &Lobby{
		lister:   lister,
		store:    store,
		bus:      bus,
		validate: validate,
		opts:     opts,
	}
}

// --- 自动刷新 ---

// Start 启动自动刷新（autoRefresh 开启且间隔为正时）。
// 挂载时已在线则立即刷一次，首屏列表不等下个周期。
func (l *Lobby) Start() {
	if !l.opts.AutoRefresh || l.opts.RefreshInterval <= 0 {
		return
	}
	l.refreshNow()
	l.startTimer()
}

// Close 停止自动刷新，卸载时必须调用
func (l *Lobby) Close() {
	l.stopTimer()
}

// HandleConnectionChange 连接状态变化入口：
// 连上立即刷新一次并重启计时器，断开停表。
func (l *Lobby) HandleConnectionChange(connected bool) {
	if connected {
		l.refreshNow()
		if l.opts.AutoRefresh && l.opts.RefreshInterval > 0 {
			l.startTimer()
		}
		return
	}
	l.stopTimer()
}

// NotifyLoadingDone 外部动作的 loading 完成（true→false）入口：
// 补一次刷新并重启计时器
func (l *Lobby) NotifyLoadingDone() {
	l.refreshNow()
	if l.opts.AutoRefresh && l.opts.RefreshInterval > 0 {
		l.startTimer()
	}
}

func (l *Lobby) startTimer() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopTimerLocked()

	handle := &refreshHandle{stop: make(chan struct{})}
	l.refresh = handle

	go func() {
		ticker := time.NewTicker(l.opts.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.refreshNow()
			case <-handle.stop:
				return
			}
		}
	}()
}

func (l *Lobby) stopTimer() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopTimerLocked()
}

func (l *Lobby) stopTimerLocked() {
	if l.refresh != nil {
		close(l.refresh.stop)
		l.refresh = nil
	}
}

// refreshNow 拉取一次房间列表。
// 只有传输层在线且没有请求在途时才真正发起。
func (l *Lobby) refreshNow() {
	if !l.store.IsConnected() || l.store.Loading() {
		return
	}

	l.mu.Lock()
	if l.refreshing {
		l.mu.Unlock()
		return
	}
	l.refreshing = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.refreshing = false
		l.mu.Unlock()
	}()

	rooms, err := l.lister.GetRoomList(context.Background(), l.opts.Filters)
	if err != nil {
		return // 错误已写入 store.error，下个周期重试即可
	}

	l.mu.Lock()
	l.rooms = rooms
	l.mu.Unlock()

	if l.bus != nil {
		l.bus.Emit(events.EventRoomListUpdated, rooms)
	}
}

// Rooms 返回最近一次拉取的房间列表
func (l *Lobby) Rooms() []protocol.RoomInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]protocol.RoomInfo, len(l.rooms))
	copy(out, l.rooms)
	return out
}

// --- 昵称 / 模式本地回显 ---

// PlayerName 返回本地昵称
func (l *Lobby) PlayerName() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.playerName
}

// SetPlayerName 本地编辑昵称并向外同步
func (l *Lobby) SetPlayerName(name string) {
	l.mu.Lock()
	l.playerName = name
	l.mu.Unlock()
	if l.bus != nil {
		l.bus.Emit(events.EventPlayerNameUpdated, name)
	}
}

// SyncPlayerName 父级配置变化时拉回本地；只有非空值才覆盖
func (l *Lobby) SyncPlayerName(parent string) {
	if parent == "" {
		return
	}
	l.mu.Lock()
	l.playerName = parent
	l.mu.Unlock()
}

// SelectedMode 返回本地选中的模式
func (l *Lobby) SelectedMode() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.selectedMode
}

// SetSelectedMode 本地选择模式并向外同步
func (l *Lobby) SetSelectedMode(mode string) {
	l.mu.Lock()
	l.selectedMode = mode
	l.mu.Unlock()
	if l.bus != nil {
		l.bus.Emit(events.EventModeUpdated, mode)
	}
}

// SyncSelectedMode 父级模式变化时拉回本地；只有非空值才覆盖
func (l *Lobby) SyncSelectedMode(parent string) {
	if parent == "" {
		return
	}
	l.mu.Lock()
	l.selectedMode = parent
	l.mu.Unlock()
}

// SetAvailableModes 可用模式列表变化。列表从空变为非空且本地
// 尚未选择时，默认选中父级指定的模式（若在列表内），否则第一个；
// 每次空→非空转换只发生一次。
func (l *Lobby) SetAvailableModes(modes []string, parentSelected string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	wasEmpty := !l.modesWereSet || len(l.modes) == 0
	l.modes = make([]string, len(modes))
	copy(l.modes, modes)
	l.modesWereSet = true

	if !wasEmpty || len(modes) == 0 || l.selectedMode != "" {
		return
	}

	selected := modes[0]
	for _, m := range modes {
		if m == parentSelected {
			selected = parentSelected
			break
		}
	}
	l.selectedMode = selected
}

// AvailableModes 返回可用模式列表
func (l *Lobby) AvailableModes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.modes))
	copy(out, l.modes)
	return out
}

// --- 校验拦截的动作 ---

// HandleCreateRoom 建房动作：昵称校验不通过只弹 toast，
// 不发任何网络请求；通过则带规范化昵称发出域事件。
func (l *Lobby) HandleCreateRoom(cfg RoomConfig) {
	result := l.validate(l.PlayerName())
	if !result.IsValid {
		l.emitToast(events.ToastError, result.Message)
		return
	}
	l.bus.Emit(events.EventCreateRoom, CreateRoomEvent{
		PlayerName: result.Formatted,
		Config:     cfg,
	})
}

// HandleJoinRoom 加入动作：昵称与房间号都校验通过才发域事件
func (l *Lobby) HandleJoinRoom(roomCode string) {
	result := l.validate(l.PlayerName())
	if !result.IsValid {
		l.emitToast(events.ToastError, result.Message)
		return
	}
	if !ValidateRoomCode(roomCode) {
		l.emitToast(events.ToastError, "房间号应为 6 位数字")
		return
	}
	l.bus.Emit(events.EventJoinRoom, JoinRoomEvent{
		PlayerName: result.Formatted,
		RoomCode:   roomCode,
	})
}

func (l *Lobby) emitToast(level, message string) {
	if l.bus == nil {
		return
	}
	l.bus.Emit(events.EventToast, events.Toast{Type: level, Message: message})
}
