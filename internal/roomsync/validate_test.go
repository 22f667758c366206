package roomsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePlayerName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		input     string
		valid     bool
		formatted string
	}{
		{"正常昵称", "Alice", true, "Alice"},
		{"首尾空白被去掉", "  Alice  ", true, "Alice"},
		{"中文昵称", "小明", true, "小明"},
		{"空串拒绝", "", false, ""},
		{"纯空白拒绝", "   ", false, ""},
		{"控制字符被剔除", "Al\x00ice\n", true, "Alice"},
		{"纯控制字符拒绝", "\x00\x01", false, ""},
		{"16 个字符刚好", "abcdefghij123456", true, "abcdefghij123456"},
		{"17 个字符超长", "abcdefghij1234567", false, ""},
		{"按 rune 计数而非字节", "一二三四五六七八九十一二三四五六", true, "一二三四五六七八九十一二三四五六"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			result := ValidatePlayerName(tc.input)
			assert.Equal(t, tc.valid, result.IsValid)
			if tc.valid {
				assert.Equal(t, tc.formatted, result.Formatted)
			} else {
				assert.NotEmpty(t, result.Message)
			}
		})
	}
}

func TestValidateRoomCode(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidateRoomCode("123456"))
	assert.True(t, ValidateRoomCode(" 123456 "))
	assert.False(t, ValidateRoomCode("12345"))
	assert.False(t, ValidateRoomCode("1234567"))
	assert.False(t, ValidateRoomCode("12a456"))
	assert.False(t, ValidateRoomCode(""))
}
