package transport

import (
	"log"

	"github.com/jopatk123/myweb-realtime/internal/protocol"
)

// Sender 出站消息通道
type Sender interface {
	SendMessage(*protocol.Message) error
}

// ErrorSink 出站失败的上报通道（通常是状态仓库的 error 字段）
type ErrorSink interface {
	SetError(msg string)
}

// Dispatcher 出站消息调度器。
// 所有应用消息在这里统一打上 game_type 与毫秒时间戳，
// 发送失败写入 error sink 并记日志，绝不向调用方抛出。
type Dispatcher struct {
	sender   Sender
	gameType string
	sink     ErrorSink
}

// NewDispatcher 创建调度器
func NewDispatcher(sender Sender, gameType string, sink ErrorSink) *Dispatcher {
	return &Dispatcher{sender: sender, gameType: gameType, sink: sink}
}

// GameType 返回本调度器的游戏类型判别符
func (d *Dispatcher) GameType() string {
	return d.gameType
}

// Dispatch 发送应用消息，data 与 {game_type, timestamp} 合并
func (d *Dispatcher) Dispatch(msgType protocol.MessageType, data map[string]any) {
	msg, err := protocol.NewEnvelope(msgType, d.gameType, data)
	if err != nil {
		d.report(msgType, err)
		return
	}
	if err := d.sender.SendMessage(msg); err != nil {
		d.report(msgType, err)
	}
}

func (d *Dispatcher) report(msgType protocol.MessageType, err error) {
	log.Printf("[ERROR] dispatch %s: %v", msgType, err)
	if d.sink != nil {
		d.sink.SetError("消息发送失败: " + err.Error())
	}
}
