package roomsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jopatk123/myweb-realtime/internal/protocol"
)

// RoomConfig 建房配置，零值字段回落到默认配置
type RoomConfig struct {
	Mode       string
	MaxPlayers int
}

// DefaultRoomConfig 默认建房配置
var DefaultRoomConfig = RoomConfig{
	Mode:       protocol.ModeShared,
	MaxPlayers: 4,
}

// API 房间接口客户端：HTTP 负责建房与发现，
// 实时加入走传输层的 join_room 消息。
type API struct {
	httpClient *http.Client
	apiBase    string
	prefix     string
	gameType   string
	dispatcher Dispatcher
	store      *Store
}

// APIOption API 客户端选项
type APIOption func(*API)

// WithHTTPClient 替换 HTTP 客户端（测试用）
func WithHTTPClient(c *http.Client) APIOption {
	return func(a *API) { a.httpClient = c }
}

// WithPrefix 指定接口前缀。绝对地址按原样使用，
// 相对前缀拼接到 apiBase 之后；默认 /{gameType}-multiplayer。
func WithPrefix(prefix string) APIOption {
	return func(a *API) { a.prefix = prefix }
}

// NewAPI 创建房间接口客户端
func NewAPI(store *Store, dispatcher Dispatcher, gameType, apiBase string, opts ...APIOption) *API {
	a := &API{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiBase:    apiBase,
		gameType:   gameType,
		dispatcher: dispatcher,
		store:      store,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Endpoint 返回解析后的接口基地址（结尾斜杠剥一次）
func (a *API) Endpoint() string {
	prefix := a.prefix
	if prefix == "" {
		prefix = "/" + a.gameType + "-multiplayer"
	}

	var base string
	if strings.HasPrefix(prefix, "http://") || strings.HasPrefix(prefix, "https://") {
		base = prefix
	} else {
		if !strings.HasPrefix(prefix, "/") {
			prefix = "/" + prefix
		}
		base = a.apiBase + prefix
	}
	return strings.TrimSuffix(base, "/")
}

// CreateRoom 建房：POST {prefix}/rooms，成功后立即通过传输层
// 发送 join_room 完成实时订阅（HTTP 只负责建房记录）。
func (a *API) CreateRoom(ctx context.Context, playerName string, cfg RoomConfig) (*protocol.RoomInfo, error) {
	a.store.SetLoading(true)
	a.store.ClearError()
	defer a.store.SetLoading(false)

	if cfg.Mode == "" {
		cfg.Mode = DefaultRoomConfig.Mode
	}
	if cfg.MaxPlayers == 0 {
		cfg.MaxPlayers = DefaultRoomConfig.MaxPlayers
	}

	body, err := json.Marshal(protocol.CreateRoomRequest{
		PlayerName: playerName,
		GameType:   a.gameType,
		Mode:       cfg.Mode,
		MaxPlayers: cfg.MaxPlayers,
	})
	if err != nil {
		a.store.SetError(err.Error())
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Endpoint()+"/rooms", bytes.NewReader(body))
	if err != nil {
		a.store.SetError(err.Error())
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.store.SetError(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		a.store.SetError(err.Error())
		return nil, err
	}

	var parsed protocol.CreateRoomResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		a.store.SetError(err.Error())
		return nil, err
	}

	a.dispatcher.Dispatch(protocol.MsgJoinRoom, map[string]any{
		"room_code":   parsed.Room.RoomCode,
		"player_name": playerName,
	})

	return &parsed.Room, nil
}

// JoinRoom 加入已有房间：纯实时操作，不走 HTTP
func (a *API) JoinRoom(playerName, roomCode string) {
	a.store.SetLoading(true)
	a.store.ClearError()
	defer a.store.SetLoading(false)

	a.dispatcher.Dispatch(protocol.MsgJoinRoom, map[string]any{
		"room_code":   roomCode,
		"player_name": playerName,
	})
}

// GetRoomList 拉取房间列表：GET {prefix}/rooms?game_type=...&filters。
// 轮询重叠时不取消在途请求，后到的响应覆盖先到的。
func (a *API) GetRoomList(ctx context.Context, filters map[string]string) ([]protocol.RoomInfo, error) {
	a.store.SetLoading(true)
	a.store.ClearError()
	defer a.store.SetLoading(false)

	query := url.Values{}
	query.Set("game_type", a.gameType)
	for k, v := range filters {
		query.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.Endpoint()+"/rooms?"+query.Encode(), nil)
	if err != nil {
		a.store.SetError(err.Error())
		return nil, err
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.store.SetError(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		a.store.SetError(err.Error())
		return nil, err
	}

	var parsed protocol.RoomListResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		a.store.SetError(err.Error())
		return nil, err
	}
	return parsed.Rooms, nil
}

// checkStatus 非 2xx 响应转换为错误：优先服务端的 message 字段
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var httpErr protocol.HTTPError
	if err := json.NewDecoder(resp.Body).Decode(&httpErr); err == nil && httpErr.Message != "" {
		return fmt.Errorf("%s", httpErr.Message)
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}
