package roomsync

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxNameLength = 16

// NameResult 昵称校验结果
type NameResult struct {
	IsValid   bool
	Formatted string // 规范化后的昵称（通过时有效）
	Message   string // 未通过时的用户可见原因
}

// NameValidator 昵称校验器，由大厅注入，便于上层替换规则
type NameValidator func(name string) NameResult

// ValidatePlayerName 默认昵称校验：去首尾空白、剔除控制字符、限长
func ValidatePlayerName(name string) NameResult {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return NameResult{Message: "请输入昵称"}
	}

	var b strings.Builder
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	formatted := b.String()
	if formatted == "" {
		return NameResult{Message: "昵称不能全是控制字符"}
	}

	if utf8.RuneCountInString(formatted) > maxNameLength {
		return NameResult{Message: "昵称过长，最多 16 个字符"}
	}

	return NameResult{IsValid: true, Formatted: formatted}
}

// ValidateRoomCode 房间号校验：6 位数字
func ValidateRoomCode(code string) bool {
	code = strings.TrimSpace(code)
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
