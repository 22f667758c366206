package apperrors

// 错误码
const (
	CodeRoomNotFound   = 1001
	CodeRoomFull       = 1002
	CodeNotInRoom      = 1003
	CodeGameStarted    = 1004
	CodeGameNotStarted = 1005
	CodeInvalidName    = 1006
	CodeInvalidMode    = 1007
	CodeAlreadyInRoom  = 1008
	CodeInvalidInput   = 1009
	CodeInternal       = 1500
)

// RoomError 房间/游戏错误（客户端与服务端共享）
type RoomError struct {
	Code    int
	Message string
}

func (e *RoomError) Error() string {
	return e.Message
}

// 预定义错误
var (
	ErrRoomNotFound   = &RoomError{Code: CodeRoomNotFound, Message: "房间不存在"}
	ErrRoomFull       = &RoomError{Code: CodeRoomFull, Message: "房间已满"}
	ErrNotInRoom      = &RoomError{Code: CodeNotInRoom, Message: "您不在房间中"}
	ErrGameStarted    = &RoomError{Code: CodeGameStarted, Message: "游戏已开始"}
	ErrGameNotStarted = &RoomError{Code: CodeGameNotStarted, Message: "游戏尚未开始"}
	ErrInvalidName    = &RoomError{Code: CodeInvalidName, Message: "玩家昵称不合法"}
	ErrInvalidMode    = &RoomError{Code: CodeInvalidMode, Message: "未知的游戏模式"}
	ErrAlreadyInRoom  = &RoomError{Code: CodeAlreadyInRoom, Message: "您已在房间中"}
	ErrInvalidInput   = &RoomError{Code: CodeInvalidInput, Message: "无效的操作参数"}
)
