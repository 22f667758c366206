package server

import (
	"errors"
	"time"

	"github.com/jopatk123/myweb-realtime/internal/apperrors"
	"github.com/jopatk123/myweb-realtime/internal/protocol"
)

// Handler 入站消息处理器
type Handler struct {
	server *Server
}

// NewHandler 创建处理器
func NewHandler(s *Server) *Handler {
	return &Handler{server: s}
}

// Handle 按消息类型分发
func (h *Handler) Handle(client *Client, msg *protocol.Message) {
	switch msg.Type {
	// 连接操作
	case protocol.MsgPing:
		h.handlePing(client, msg)
	case protocol.MsgReconnect:
		h.handleReconnect(client, msg)

	// 房间操作
	case protocol.MsgJoinRoom:
		h.handleJoinRoom(client, msg)
	case protocol.MsgLeaveRoom:
		h.handleLeaveRoom(client)
	case protocol.MsgPlayerReady:
		h.handleReady(client, msg)

	// 游戏操作
	case protocol.MsgSnakeVote:
		h.handleSnakeVote(client, msg)

	default:
		h.server.logger.WithField("type", msg.Type).Warn("未知消息类型")
		client.SendMessage(protocol.NewErrorMessage(apperrors.CodeInvalidInput, "未知消息类型"))
	}
}

// sendError 把处理错误回给客户端，保留错误码
func (h *Handler) sendError(client *Client, err error) {
	var roomErr *apperrors.RoomError
	if errors.As(err, &roomErr) {
		client.SendMessage(protocol.NewErrorMessage(roomErr.Code, roomErr.Message))
		return
	}
	client.SendMessage(protocol.NewErrorMessage(apperrors.CodeInternal, err.Error()))
}

func (h *Handler) handlePing(client *Client, msg *protocol.Message) {
	payload, err := protocol.ParseData[protocol.PingData](msg)
	if err != nil {
		h.sendError(client, err)
		return
	}
	client.SendMessage(protocol.MustNewMessage(protocol.MsgPong, protocol.PongData{
		ClientTimestamp: payload.Timestamp,
		ServerTimestamp: time.Now().UnixMilli(),
	}))
}

func (h *Handler) handleReconnect(client *Client, msg *protocol.Message) {
	payload, err := protocol.ParseData[protocol.ReconnectData](msg)
	if err != nil {
		h.sendError(client, err)
		return
	}

	session := h.server.sessions.Resume(payload.SessionID, payload.Token)
	if session == nil {
		client.SendMessage(protocol.NewErrorMessage(apperrors.CodeInvalidInput, "重连令牌无效或已过期"))
		return
	}

	// 新连接沿用旧会话身份
	oldID := client.SessionID()
	client.AdoptSession(session.ID)
	client.SetPlayerName(session.PlayerName)
	h.server.rebindClient(oldID, client)

	client.SendMessage(protocol.MustNewMessage(protocol.MsgReconnected, protocol.ReconnectedData{
		SessionID: session.ID,
		RoomCode:  session.RoomCode,
	}))

	if session.RoomCode != "" {
		if err := h.server.rooms.ReconnectPlayer(client, session.RoomCode); err != nil {
			h.sendError(client, err)
		}
	}
}

func (h *Handler) handleJoinRoom(client *Client, msg *protocol.Message) {
	payload, err := protocol.ParseData[protocol.JoinRoomData](msg)
	if err != nil {
		h.sendError(client, err)
		return
	}
	if payload.RoomCode == "" || payload.PlayerName == "" {
		h.sendError(client, apperrors.ErrInvalidInput)
		return
	}

	client.SetPlayerName(payload.PlayerName)
	h.server.sessions.SetName(client.SessionID(), payload.PlayerName)

	if err := h.server.rooms.JoinRoom(client, payload.RoomCode, payload.PlayerName); err != nil {
		h.sendError(client, err)
	}
}

func (h *Handler) handleLeaveRoom(client *Client) {
	if err := h.server.rooms.LeaveRoom(client); err != nil {
		h.sendError(client, err)
	}
}

func (h *Handler) handleReady(client *Client, msg *protocol.Message) {
	payload, err := protocol.ParseData[protocol.PlayerReadyData](msg)
	if err != nil {
		h.sendError(client, err)
		return
	}
	if err := h.server.rooms.SetReady(client, payload.IsReady); err != nil {
		h.sendError(client, err)
	}
}

func (h *Handler) handleSnakeVote(client *Client, msg *protocol.Message) {
	payload, err := protocol.ParseData[protocol.SnakeVoteData](msg)
	if err != nil {
		h.sendError(client, err)
		return
	}
	if err := h.server.rooms.Vote(client, payload.Direction); err != nil {
		h.sendError(client, err)
	}
}
