package transport

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jopatk123/myweb-realtime/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// 心跳检测间隔
	heartbeatInterval = 5 * time.Second
	// 最大重连次数
	maxReconnectAttempts = 5
	// 重连间隔
	reconnectInterval = 2 * time.Second

	sendBufferSize = 256
)

// MessageHandler 按消息类型注册的入站回调
type MessageHandler func(*protocol.Message)

// HandlerID 处理器注册凭据。函数值不可比较，代码指针区分不开
// 不同实例的同名方法，注销一律凭注册时返回的 id。
type HandlerID uint64

type handlerEntry struct {
	id uint64
	fn MessageHandler
}

// Client WebSocket 客户端
type Client struct {
	ServerURL string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}

	SessionID      string
	ReconnectToken string // 重连令牌

	// 网络延迟（毫秒）
	Latency int64

	// 回调
	OnError         func(error) // 错误回调
	OnClose         func()      // 关闭回调
	OnReconnecting  func(attempt, max int)
	OnLatencyUpdate func(int64)

	handlersMu    sync.RWMutex
	nextHandlerID uint64
	handlers      map[protocol.MessageType][]handlerEntry
	anyHandlers   []handlerEntry
	stateFns      []func(connected bool)

	mu             sync.RWMutex
	closed         bool
	connected      bool
	connecting     bool
	reconnecting   atomic.Bool
	reconnectCount int
}

// NewClient 创建客户端。send 队列在连接前就存在，
// 提前 Send 的消息会在连接建立后冲刷，绝不向调用方 panic。
func NewClient(serverURL string) *Client {
	return &Client{
		ServerURL: serverURL,
		send:      make(chan []byte, sendBufferSize),
		done:      make(chan struct{}),
		handlers:  make(map[protocol.MessageType][]handlerEntry),
	}
}

// Connect 连接服务器。已连接或连接中时为幂等 no-op。
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.connected || c.connecting {
		c.mu.Unlock()
		return nil
	}
	c.connecting = true
	c.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.Dial(c.ServerURL, nil)

	c.mu.Lock()
	c.connecting = false
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.conn = conn
	c.connected = true
	c.closed = false
	c.mu.Unlock()

	// 启动读写协程
	go c.readPump()
	go c.writePump()

	c.notifyState(true)
	return nil
}

// SendMessage 发送已构造好的消息
func (c *Client) SendMessage(msg *protocol.Message) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return errors.New("connection closed")
	}
	c.mu.RUnlock()

	data, err := msg.Encode()
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// Send 构造并发送消息
func (c *Client) Send(msgType protocol.MessageType, payload any) error {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	return c.SendMessage(msg)
}

// Close 关闭连接，幂等
func (c *Client) Close() {
	c.mu.Lock()
	wasConnected := c.connected
	if !c.closed {
		c.closed = true
		c.connected = false
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}
	c.mu.Unlock()

	if wasConnected {
		c.notifyState(false)
	}
}

// IsConnected 是否已连接
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && !c.closed
}

// IsConnecting 是否正在建立连接
func (c *Client) IsConnecting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connecting
}

// --- 入站消息分发 ---

// OnMessage 注册指定类型的入站处理器，返回用于 OffMessage 的凭据
func (c *Client) OnMessage(msgType protocol.MessageType, fn MessageHandler) HandlerID {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.nextHandlerID++
	c.handlers[msgType] = append(c.handlers[msgType], handlerEntry{id: c.nextHandlerID, fn: fn})
	return HandlerID(c.nextHandlerID)
}

// OffMessage 注销指定类型的入站处理器，未知凭据为 no-op
func (c *Client) OffMessage(msgType protocol.MessageType, id HandlerID) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[msgType] = removeHandler(c.handlers[msgType], id)
	if len(c.handlers[msgType]) == 0 {
		delete(c.handlers, msgType)
	}
}

// OnAnyMessage 注册全量入站处理器（核心 reducer 注册表挂在这里）
func (c *Client) OnAnyMessage(fn MessageHandler) HandlerID {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.nextHandlerID++
	c.anyHandlers = append(c.anyHandlers, handlerEntry{id: c.nextHandlerID, fn: fn})
	return HandlerID(c.nextHandlerID)
}

// OffAnyMessage 注销全量入站处理器
func (c *Client) OffAnyMessage(id HandlerID) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.anyHandlers = removeHandler(c.anyHandlers, id)
}

// OnStateChange 注册连接状态回调
func (c *Client) OnStateChange(fn func(connected bool)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.stateFns = append(c.stateFns, fn)
}

// dispatch 在 readPump 协程内同步逐条调用处理器，保证到达顺序
func (c *Client) dispatch(msg *protocol.Message) {
	c.handlersMu.RLock()
	typed := c.handlers[msg.Type]
	any := c.anyHandlers
	c.handlersMu.RUnlock()

	for _, h := range typed {
		h.fn(msg)
	}
	for _, h := range any {
		h.fn(msg)
	}
}

func (c *Client) notifyState(connected bool) {
	c.handlersMu.RLock()
	fns := c.stateFns
	c.handlersMu.RUnlock()
	for _, fn := range fns {
		fn(connected)
	}
}

func removeHandler(list []handlerEntry, id HandlerID) []handlerEntry {
	for i, h := range list {
		if h.id == uint64(id) {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// GetLatency 获取当前延迟（毫秒）
func (c *Client) GetLatency() int64 {
	return atomic.LoadInt64(&c.Latency)
}

// IsReconnecting 是否正在重连
func (c *Client) IsReconnecting() bool {
	return c.reconnecting.Load()
}
