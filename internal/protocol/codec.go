package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// NewMessage 创建一个新消息，payload 会被序列化为 data
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	msg := &Message{Type: msgType}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
		}
		msg.Data = data
	}
	return msg, nil
}

// MustNewMessage 创建消息，失败时 panic
func MustNewMessage(msgType MessageType, payload any) *Message {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		panic(err)
	}
	return msg
}

// NewEnvelope 创建出站信封：在 data 中合并 game_type 与毫秒时间戳。
// 调用方字段优先级低于注入字段，保证每条消息都自描述、可被服务端路由。
func NewEnvelope(msgType MessageType, gameType string, data map[string]any) (*Message, error) {
	merged := make(map[string]any, len(data)+2)
	for k, v := range data {
		merged[k] = v
	}
	merged["game_type"] = gameType
	merged["timestamp"] = time.Now().UnixMilli()
	return NewMessage(msgType, merged)
}

// Encode 将消息编码为 JSON 字节
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode 从 JSON 字节解码消息
func Decode(raw []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("decode message: missing type")
	}
	return &msg, nil
}

// ParseData 解析消息的 data 到指定类型
func ParseData[T any](msg *Message) (*T, error) {
	var payload T
	if len(msg.Data) == 0 {
		return &payload, nil
	}
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return nil, fmt.Errorf("decode %s data: %w", msg.Type, err)
	}
	return &payload, nil
}

// MergeInto 将 JSON 对象补丁浅合并进已有结构体。
// 只有补丁中出现的键会被覆盖，缺失的键保持原值。
func MergeInto(patch json.RawMessage, dst any) error {
	if len(patch) == 0 {
		return nil
	}
	return json.Unmarshal(patch, dst)
}

// NewErrorMessage 创建错误消息
func NewErrorMessage(code int, text string) *Message {
	return MustNewMessage(MsgError, ErrorData{Code: code, Message: text})
}
