package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/jopatk123/myweb-realtime/internal/apperrors"
	"github.com/jopatk123/myweb-realtime/internal/protocol"
)

// roomAPI HTTP 建房与房间发现接口
type roomAPI struct {
	rooms  *RoomManager
	logger *logrus.Logger
}

func newRoomAPI(rooms *RoomManager, logger *logrus.Logger) *roomAPI {
	return &roomAPI{rooms: rooms, logger: logger}
}

// routes 路由形如 /{game}-multiplayer/rooms，game 为游戏类型
func (a *roomAPI) routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/{game:[a-z0-9]+}-multiplayer", func(r chi.Router) {
		r.Post("/rooms", a.createRoom)
		r.Get("/rooms", a.listRooms)
	})
	return r
}

func (a *roomAPI) createRoom(w http.ResponseWriter, r *http.Request) {
	game := chi.URLParam(r, "game")

	var req protocol.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "请求体不是合法的 JSON")
		return
	}
	if req.PlayerName == "" {
		a.writeError(w, http.StatusBadRequest, apperrors.ErrInvalidName.Message)
		return
	}
	// 路径里的游戏类型优先于请求体
	if req.GameType == "" {
		req.GameType = game
	}

	room, err := a.rooms.CreateRoom(req.GameType, req.Mode, req.MaxPlayers)
	if err != nil {
		a.writeRoomError(w, err)
		return
	}

	a.writeJSON(w, http.StatusCreated, protocol.CreateRoomResponse{Room: room.Info()})
}

func (a *roomAPI) listRooms(w http.ResponseWriter, r *http.Request) {
	game := chi.URLParam(r, "game")
	if q := r.URL.Query().Get("game_type"); q != "" {
		game = q
	}
	status := r.URL.Query().Get("status")

	a.writeJSON(w, http.StatusOK, protocol.RoomListResponse{
		Rooms: a.rooms.ListRooms(game, status),
	})
}

func (a *roomAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.logger.WithError(err).Error("响应编码失败")
	}
}

func (a *roomAPI) writeError(w http.ResponseWriter, status int, message string) {
	a.writeJSON(w, status, protocol.HTTPError{Message: message})
}

// writeRoomError 把领域错误映射到 HTTP 状态码
func (a *roomAPI) writeRoomError(w http.ResponseWriter, err error) {
	var roomErr *apperrors.RoomError
	if !errors.As(err, &roomErr) {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusBadRequest
	switch roomErr.Code {
	case apperrors.CodeRoomNotFound:
		status = http.StatusNotFound
	case apperrors.CodeRoomFull, apperrors.CodeGameStarted:
		status = http.StatusConflict
	}
	a.writeError(w, status, roomErr.Message)
}
