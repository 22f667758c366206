package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jopatk123/myweb-realtime/internal/events"
	"github.com/jopatk123/myweb-realtime/internal/protocol"
	"github.com/jopatk123/myweb-realtime/internal/roomsync"
)

// 界面阶段
type Phase int

const (
	PhaseConnecting Phase = iota
	PhaseName
	PhaseLobby
	PhaseWaiting
	PhasePlaying
	PhaseFinished
)

// ServerMessage 服务器消息（用于 tea.Msg）
type ServerMessage struct {
	Msg *protocol.Message
}

// ConnectedMsg 连接成功消息
type ConnectedMsg struct{}

// ConnectionErrorMsg 连接错误消息
type ConnectionErrorMsg struct {
	Err error
}

// DisconnectedMsg 连接断开消息
type DisconnectedMsg struct{}

// ReconnectingMsg 正在重连消息
type ReconnectingMsg struct {
	Attempt  int
	MaxTries int
}

// ToastMsg 提示消息
type ToastMsg struct {
	Toast events.Toast
}

// ClearToastMsg 清除提示消息
type ClearToastMsg struct{}

// RoomListMsg 房间列表已更新
type RoomListMsg struct{}

// Model 客户端主模型
type Model struct {
	app   *App
	phase Phase
	err   string

	toast      events.Toast
	reconnects string

	selectedRoom int

	input  textinput.Model
	width  int
	height int
}

// NewModel 创建主模型
func NewModel(app *App) *Model {
	ti := textinput.New()
	ti.Placeholder = "输入昵称..."
	ti.CharLimit = 32
	ti.Width = 24
	ti.Focus()

	return &Model{
		app:   app,
		phase: PhaseConnecting,
		input: ti,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.connectToServer(),
		textinput.Blink,
		m.listen(),
	)
}

// connectToServer 连接服务器
func (m *Model) connectToServer() tea.Cmd {
	return func() tea.Msg {
		if err := m.app.Client.Connect(); err != nil {
			return ConnectionErrorMsg{Err: err}
		}
		return ConnectedMsg{}
	}
}

// listen 等待下一条泵入的消息
func (m *Model) listen() tea.Cmd {
	return func() tea.Msg {
		return <-m.app.msgs
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		handled, cmd := m.handleKey(msg)
		if handled {
			return m, cmd
		}

	case ConnectedMsg:
		m.err = ""
		m.phase = PhaseName
		m.app.Client.StartHeartbeat()

	case ConnectionErrorMsg:
		m.err = fmt.Sprintf("无法连接到服务器: %v\n\n按 ESC 退出", msg.Err)
		m.phase = PhaseConnecting

	case DisconnectedMsg:
		cmds = append(cmds, m.listen())

	case ReconnectingMsg:
		m.reconnects = fmt.Sprintf("🔄 正在重连 (%d/%d)...", msg.Attempt, msg.MaxTries)
		cmds = append(cmds, m.listen())

	case ToastMsg:
		m.toast = msg.Toast
		cmds = append(cmds, m.listen())
		cmds = append(cmds, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return ClearToastMsg{}
		}))

	case ClearToastMsg:
		m.toast = events.Toast{}

	case RoomListMsg:
		rooms := m.app.Lobby.Rooms()
		if m.selectedRoom >= len(rooms) {
			m.selectedRoom = 0
		}
		cmds = append(cmds, m.listen())

	case ServerMessage:
		m.handleServerMessage(msg.Msg)
		cmds = append(cmds, m.listen())
	}

	newInput, cmd := m.input.Update(msg)
	m.input = newInput
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleServerMessage 按消息类型推进界面阶段。
// 状态本身已由 reducer 写入 Store，这里只切视图。
func (m *Model) handleServerMessage(msg *protocol.Message) {
	switch msg.Type {
	case protocol.MsgReconnected:
		m.reconnects = ""
	case protocol.MsgRoomJoined:
		m.phase = PhaseWaiting
		m.input.Reset()
	case protocol.MsgRoomLeft:
		m.phase = PhaseLobby
		m.input.Reset()
		m.input.Placeholder = "输入 6 位房间号..."
	case protocol.MsgGameStarted:
		m.phase = PhasePlaying
	case protocol.MsgGameEnded:
		m.phase = PhaseFinished
	case protocol.MsgError:
		if text := m.app.Store.Error(); text != "" {
			m.toast = events.Toast{Type: events.ToastError, Message: text}
		}
	}
}

// handleKey 处理按键消息，返回是否已处理和命令
func (m *Model) handleKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.app.Close()
		return true, tea.Quit
	}

	switch m.phase {
	case PhaseConnecting:
		if msg.Type == tea.KeyEsc {
			m.app.Close()
			return true, tea.Quit
		}
	case PhaseName:
		return m.handleNameKey(msg)
	case PhaseLobby:
		return m.handleLobbyKey(msg)
	case PhaseWaiting:
		return m.handleWaitingKey(msg)
	case PhasePlaying:
		return m.handlePlayingKey(msg)
	case PhaseFinished:
		return m.handleFinishedKey(msg)
	}
	return false, nil
}

func (m *Model) handleNameKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.app.Close()
		return true, tea.Quit
	case tea.KeyEnter:
		result := roomsync.ValidatePlayerName(m.input.Value())
		if !result.IsValid {
			m.toast = events.Toast{Type: events.ToastError, Message: result.Message}
			return true, nil
		}
		m.app.Lobby.SetPlayerName(result.Formatted)
		m.phase = PhaseLobby
		m.input.Reset()
		m.input.Placeholder = "输入 6 位房间号..."
		return true, nil
	}
	return false, nil
}

func (m *Model) handleLobbyKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	rooms := m.app.Lobby.Rooms()

	switch msg.Type {
	case tea.KeyEsc:
		m.app.Close()
		return true, tea.Quit
	case tea.KeyUp:
		if m.selectedRoom > 0 {
			m.selectedRoom--
		}
		return true, nil
	case tea.KeyDown:
		if m.selectedRoom < len(rooms)-1 {
			m.selectedRoom++
		}
		return true, nil
	case tea.KeyEnter:
		code := strings.TrimSpace(m.input.Value())
		if code == "" {
			if len(rooms) > 0 && m.selectedRoom < len(rooms) {
				m.app.Lobby.HandleJoinRoom(rooms[m.selectedRoom].RoomCode)
			}
			return true, nil
		}
		m.app.Lobby.HandleJoinRoom(code)
		return true, nil
	case tea.KeyRunes:
		switch msg.String() {
		case "c", "C":
			m.app.Lobby.HandleCreateRoom(roomsync.RoomConfig{Mode: m.app.Lobby.SelectedMode()})
			return true, nil
		case "m", "M":
			m.cycleMode()
			return true, nil
		}
	}
	return false, nil
}

// cycleMode 在可用模式间循环切换
func (m *Model) cycleMode() {
	modes := m.app.Lobby.AvailableModes()
	if len(modes) == 0 {
		return
	}
	current := m.app.Lobby.SelectedMode()
	next := modes[0]
	for i, mode := range modes {
		if mode == current {
			next = modes[(i+1)%len(modes)]
			break
		}
	}
	m.app.Lobby.SetSelectedMode(next)
}

func (m *Model) handleWaitingKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.app.Dispatcher.Dispatch(protocol.MsgLeaveRoom, nil)
		return true, nil
	case tea.KeyRunes:
		if msg.String() == "r" || msg.String() == "R" {
			m.toggleReady()
			return true, nil
		}
	}
	return false, nil
}

// toggleReady 翻转本地玩家的准备状态并上报
func (m *Model) toggleReady() {
	snap := m.app.Store.Snapshot()
	if snap.Player == nil {
		return
	}
	ready := false
	for _, p := range snap.Players {
		if p.SessionID == snap.Player.SessionID {
			ready = p.IsReady
			break
		}
	}
	m.app.Dispatcher.Dispatch(protocol.MsgPlayerReady, map[string]any{
		"is_ready": !ready,
	})
}

func (m *Model) handlePlayingKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		m.app.Snake.Vote(roomsync.DirUp)
	case tea.KeyDown:
		m.app.Snake.Vote(roomsync.DirDown)
	case tea.KeyLeft:
		m.app.Snake.Vote(roomsync.DirLeft)
	case tea.KeyRight:
		m.app.Snake.Vote(roomsync.DirRight)
	case tea.KeyEsc:
		// 对局进行中不响应退出，避免误触
		m.toast = events.Toast{Type: events.ToastInfo, Message: "游戏进行中"}
	default:
		return false, nil
	}
	return true, nil
}

func (m *Model) handleFinishedKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.app.Dispatcher.Dispatch(protocol.MsgLeaveRoom, nil)
		return true, nil
	case tea.KeyEnter:
		// 服务端结算后房间回到等待态，按回车回到准备界面再来一局
		m.phase = PhaseWaiting
		return true, nil
	}
	return false, nil
}
