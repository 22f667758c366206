package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/jopatk123/myweb-realtime/internal/apperrors"
	"github.com/jopatk123/myweb-realtime/internal/protocol"
)

const (
	// 写入超时
	writeWait = 10 * time.Second

	// 读取超时（pong 等待时间）
	pongWait = 60 * time.Second

	// ping 发送间隔（必须小于 pongWait）
	pingPeriod = (pongWait * 9) / 10

	// 消息最大大小
	maxMessageSize = 8192
)

// Client 一条 WebSocket 连接上的玩家
type Client struct {
	server *Server
	conn   *websocket.Conn
	send   chan []byte

	mu        sync.RWMutex
	sessionID string
	name      string
	roomCode  string
	closed    bool
}

// NewClient 创建客户端
func NewClient(s *Server, conn *websocket.Conn, sessionID string) *Client {
	return &Client{
		server:    s,
		conn:      conn,
		send:      make(chan []byte, 256),
		sessionID: sessionID,
	}
}

// SessionID 返回会话 ID
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// AdoptSession 重连成功后沿用旧会话 ID
func (c *Client) AdoptSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = sessionID
}

// PlayerName 返回昵称
func (c *Client) PlayerName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// SetPlayerName 设置昵称（join_room 时确定）
func (c *Client) SetPlayerName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
}

// Room 返回当前所在房间号
func (c *Client) Room() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomCode
}

// SetRoom 设置当前所在房间号
func (c *Client) SetRoom(code string) {
	c.mu.Lock()
	c.roomCode = code
	sessionID := c.sessionID
	c.mu.Unlock()

	c.server.sessions.SetRoom(sessionID, code)
}

// ReadPump 从连接读取消息并交给处理器
func (c *Client) ReadPump() {
	defer func() {
		c.server.handleDisconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.WithError(err).Debug("连接读取错误")
			}
			return
		}

		msg, err := protocol.Decode(raw)
		if err != nil {
			c.server.logger.WithError(err).Warn("消息解析失败")
			c.SendMessage(protocol.NewErrorMessage(apperrors.CodeInvalidInput, "无法解析的消息"))
			continue
		}

		c.server.handler.Handle(c, msg)
	}
}

// WritePump 向连接写入消息并维持 ping
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage 发送消息给客户端，缓冲区满时断开连接
func (c *Client) SendMessage(msg *protocol.Message) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return
	}
	c.mu.RUnlock()

	raw, err := msg.Encode()
	if err != nil {
		c.server.logger.WithError(err).Error("消息编码失败")
		return
	}

	select {
	case c.send <- raw:
	default:
		c.server.logger.WithFields(logrus.Fields{
			"session": c.SessionID(),
		}).Warn("发送缓冲区已满，关闭连接")
		c.Close()
	}
}

// Close 关闭发送通道，可重复调用
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
