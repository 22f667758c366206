package ui

import "github.com/charmbracelet/lipgloss"

// Lipgloss styles
var (
	docStyle     = lipgloss.NewStyle().Margin(1, 2)
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("228")).Bold(true)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	hostStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	// 棋盘元素
	emptyCellStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	foodStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	deadStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	// 每条蛇一个颜色，按 session_id 排序后循环取用
	snakeStyles = []lipgloss.Style{
		lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
	}
)
