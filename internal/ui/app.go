// Package ui 终端客户端界面。Bubble Tea 模型只读 Store 快照，
// 所有状态变更都经由 reducer 或大厅协调器完成。
package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jopatk123/myweb-realtime/internal/config"
	"github.com/jopatk123/myweb-realtime/internal/events"
	"github.com/jopatk123/myweb-realtime/internal/protocol"
	"github.com/jopatk123/myweb-realtime/internal/roomsync"
	"github.com/jopatk123/myweb-realtime/internal/transport"
)

// App 客户端组件装配：传输层、状态仓库、reducer 注册表、
// snake 扩展、房间接口与大厅协调器。
type App struct {
	Client     *transport.Client
	Store      *roomsync.Store
	Dispatcher *transport.Dispatcher
	Registry   *roomsync.Registry
	External   *roomsync.ExternalRegistry
	Snake      *roomsync.SnakeSync
	API        *roomsync.API
	Lobby      *roomsync.Lobby
	Bus        *events.Bus

	// TUI 消息泵：回调协程写入，Bubble Tea 的 listen 命令读出
	msgs chan tea.Msg
}

// NewApp 装配客户端组件并完成订阅接线
func NewApp(cfg *config.Config) *App {
	client := transport.NewClient(cfg.Client.ServerURL)
	store := roomsync.NewStore()
	external := roomsync.NewExternalRegistry()
	registry := roomsync.NewRegistry(store, external, protocol.GameTypeSnake)
	dispatcher := transport.NewDispatcher(client, protocol.GameTypeSnake, store)
	snake := roomsync.NewSnakeSync(store, dispatcher)
	api := roomsync.NewAPI(store, dispatcher, protocol.GameTypeSnake, cfg.Client.APIBase)
	bus := events.NewBus()
	lobby := roomsync.NewLobby(api, store, bus, nil, roomsync.LobbyOptions{
		AutoRefresh:     true,
		RefreshInterval: cfg.Client.RefreshDuration(),
		Filters:         map[string]string{"status": protocol.RoomStatusWaiting},
	})

	app := &App{
		Client:     client,
		Store:      store,
		Dispatcher: dispatcher,
		Registry:   registry,
		External:   external,
		Snake:      snake,
		API:        api,
		Lobby:      lobby,
		Bus:        bus,
		msgs:       make(chan tea.Msg, 64),
	}

	registry.Bind(client)
	snake.Attach(registry, external)
	lobby.SetAvailableModes([]string{protocol.ModeShared, protocol.ModeCompetitive}, protocol.ModeShared)

	// 入站消息与连接状态泵入 TUI
	client.OnAnyMessage(func(msg *protocol.Message) {
		app.push(ServerMessage{Msg: msg})
	})
	client.OnStateChange(func(connected bool) {
		lobby.HandleConnectionChange(connected)
		if !connected {
			app.push(DisconnectedMsg{})
		}
	})
	client.OnReconnecting = func(attempt, max int) {
		app.push(ReconnectingMsg{Attempt: attempt, MaxTries: max})
	}

	// 大厅域事件：建房走 HTTP，加入走实时通道
	bus.On(events.EventCreateRoom, func(payload any) {
		evt, ok := payload.(roomsync.CreateRoomEvent)
		if !ok {
			return
		}
		go func() {
			if _, err := api.CreateRoom(context.Background(), evt.PlayerName, evt.Config); err != nil {
				bus.Emit(events.EventToast, events.Toast{Type: events.ToastError, Message: err.Error()})
			}
			lobby.NotifyLoadingDone()
		}()
	})
	bus.On(events.EventJoinRoom, func(payload any) {
		evt, ok := payload.(roomsync.JoinRoomEvent)
		if !ok {
			return
		}
		api.JoinRoom(evt.PlayerName, evt.RoomCode)
	})
	bus.On(events.EventToast, func(payload any) {
		if toast, ok := payload.(events.Toast); ok {
			app.push(ToastMsg{Toast: toast})
		}
	})
	bus.On(events.EventRoomListUpdated, func(any) {
		app.push(RoomListMsg{})
	})

	return app
}

// push 非阻塞投递：TUI 读不过来时丢弃，下一条消息会带来新状态
func (a *App) push(msg tea.Msg) {
	select {
	case a.msgs <- msg:
	default:
	}
}

// Close 释放客户端资源，退出前必须调用
func (a *App) Close() {
	a.Lobby.Close()
	a.Snake.Detach(a.Registry, a.External)
	a.Client.Close()
}
