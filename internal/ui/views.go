package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jopatk123/myweb-realtime/internal/protocol"
	"github.com/jopatk123/myweb-realtime/internal/roomsync"
)

const defaultBoardSize = 20

var directionArrows = map[string]string{
	roomsync.DirUp:    "↑",
	roomsync.DirDown:  "↓",
	roomsync.DirLeft:  "←",
	roomsync.DirRight: "→",
}

var modeLabels = map[string]string{
	protocol.ModeShared:      "共享模式",
	protocol.ModeCompetitive: "竞技模式",
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var content string
	switch m.phase {
	case PhaseConnecting:
		content = m.connectingView()
	case PhaseName:
		content = m.nameView()
	case PhaseLobby:
		content = m.lobbyView()
	case PhaseWaiting:
		content = m.waitingView()
	case PhasePlaying:
		content = m.playingView()
	case PhaseFinished:
		content = m.finishedView()
	}

	return docStyle.Render(content)
}

func (m *Model) connectingView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("🐍 贪吃蛇联机") + "\n\n")
	if m.err != "" {
		b.WriteString(errorStyle.Render(m.err))
	} else {
		b.WriteString("正在连接服务器...")
	}
	return b.String()
}

func (m *Model) nameView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("🐍 贪吃蛇联机") + "\n\n")
	b.WriteString("给自己起个名字：\n\n")
	b.WriteString(m.input.View() + "\n\n")
	b.WriteString(m.toastLine())
	b.WriteString(hintStyle.Render("Enter 确认 · ESC 退出"))
	return b.String()
}

func (m *Model) lobbyView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("🏠 游戏大厅") + "\n\n")

	mode := m.app.Lobby.SelectedMode()
	label := modeLabels[mode]
	if label == "" {
		label = mode
	}
	b.WriteString(fmt.Sprintf("玩家: %s    模式: %s    %s\n\n",
		m.app.Lobby.PlayerName(), label, m.connStatus()))

	rooms := m.app.Lobby.Rooms()
	if len(rooms) == 0 {
		b.WriteString(hintStyle.Render("暂无等待中的房间，按 C 创建一个") + "\n")
	} else {
		for i, room := range rooms {
			cursor := "  "
			line := fmt.Sprintf("%s  %s  %d/%d", room.RoomCode, modeLabels[room.Mode], room.CurrentPlayers, room.MaxPlayers)
			if i == m.selectedRoom {
				cursor = cursorStyle.Render("➤ ")
				line = cursorStyle.Render(line)
			}
			b.WriteString(cursor + line + "\n")
		}
	}

	b.WriteString("\n" + m.input.View() + "\n\n")
	b.WriteString(m.toastLine())
	b.WriteString(hintStyle.Render("C 创建房间 · M 切换模式 · ↑↓ 选择 · Enter 加入 · ESC 退出"))
	return b.String()
}

func (m *Model) waitingView() string {
	snap := m.app.Store.Snapshot()

	var b strings.Builder
	b.WriteString(titleStyle.Render("⏳ 等待开始") + "\n\n")

	if snap.Room != nil {
		b.WriteString(fmt.Sprintf("房间号: %s    模式: %s    人数: %d/%d\n\n",
			snap.Room.RoomCode, modeLabels[snap.Room.Mode], len(snap.Players), snap.Room.MaxPlayers))
	}

	host := ""
	if snap.Room != nil {
		host = snap.Room.CreatedBy
	}
	for _, p := range snap.Players {
		marker := hintStyle.Render("○ 未准备")
		if p.IsReady {
			marker = successStyle.Render("● 已准备")
		}
		name := p.Name
		if p.SessionID == host {
			name = hostStyle.Render("👑 " + name)
		}
		if !p.Online {
			name += hintStyle.Render("（离线）")
		}
		b.WriteString(fmt.Sprintf("  %s  %s\n", marker, name))
	}

	if snap.Status == roomsync.StatusStarting {
		b.WriteString("\n" + successStyle.Render("全员就绪，即将开始...") + "\n")
	}

	b.WriteString("\n" + m.toastLine())
	b.WriteString(hintStyle.Render("R 准备/取消 · ESC 离开房间"))
	return b.String()
}

func (m *Model) playingView() string {
	snap := m.app.Store.Snapshot()

	var b strings.Builder
	b.WriteString(boxStyle.Render(renderBoard(snap.GameData)) + "\n\n")
	b.WriteString(m.scoreLine(snap) + "\n")

	if mode, _ := snap.GameData["mode"].(string); mode == protocol.ModeShared {
		b.WriteString(m.voteLine(snap) + "\n")
	}

	b.WriteString("\n" + m.toastLine())
	b.WriteString(hintStyle.Render("方向键操控"))
	return b.String()
}

func (m *Model) finishedView() string {
	snap := m.app.Store.Snapshot()

	var b strings.Builder
	b.WriteString(titleStyle.Render("🏁 游戏结束") + "\n\n")

	if result, ok := snap.GameData["result"].(map[string]any); ok {
		if winner, ok := result["winner"].(string); ok && winner != "" {
			b.WriteString("胜者: " + successStyle.Render(m.playerName(snap, winner)) + "\n")
		}
		if score, ok := result["score"].(float64); ok {
			b.WriteString(fmt.Sprintf("得分: %d\n", int(score)))
		}
	}
	b.WriteString("\n" + m.scoreLine(snap) + "\n\n")
	b.WriteString(hintStyle.Render("Enter 再来一局 · ESC 离开房间"))
	return b.String()
}

// --- 辅助 ---

func (m *Model) connStatus() string {
	if m.reconnects != "" {
		return errorStyle.Render(m.reconnects)
	}
	if m.app.Store.IsConnected() {
		return successStyle.Render("在线")
	}
	return errorStyle.Render("离线")
}

func (m *Model) toastLine() string {
	if m.toast.Message == "" {
		return ""
	}
	style := hintStyle
	switch m.toast.Type {
	case "error":
		style = errorStyle
	case "success":
		style = successStyle
	}
	return style.Render(m.toast.Message) + "\n\n"
}

// playerName 把 session_id 翻译成昵称，找不到时原样返回
func (m *Model) playerName(snap roomsync.Snapshot, sessionID string) string {
	for _, p := range snap.Players {
		if p.SessionID == sessionID {
			return p.Name
		}
	}
	if sessionID == "shared" {
		return "大家"
	}
	return sessionID
}

func (m *Model) scoreLine(snap roomsync.Snapshot) string {
	scores, ok := snap.GameData["scores"].(map[string]any)
	if !ok || len(scores) == 0 {
		return ""
	}
	keys := sortedKeys(scores)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		score, _ := scores[key].(float64)
		parts = append(parts, fmt.Sprintf("%s: %d", m.playerName(snap, key), int(score)))
	}
	return "得分  " + strings.Join(parts, "   ")
}

func (m *Model) voteLine(snap roomsync.Snapshot) string {
	votes := m.app.Snake.Votes()
	parts := make([]string, 0, len(votes)+1)
	if my := m.app.Snake.MyVote(); my != "" {
		parts = append(parts, "我的投票 "+directionArrows[my])
	}
	ids := make([]string, 0, len(votes))
	for id := range votes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s %s", m.playerName(snap, id), directionArrows[votes[id]]))
	}
	if len(parts) == 0 {
		return hintStyle.Render("本回合还没有人投票")
	}
	return "投票  " + strings.Join(parts, "   ")
}

// renderBoard 把游戏数据渲染成终端棋盘。
// 数据来自 JSON 透传，数值一律按 float64 读取。
func renderBoard(data map[string]any) string {
	width := intField(data, "width", defaultBoardSize)
	height := intField(data, "height", defaultBoardSize)

	grid := make([][]string, height)
	for y := range grid {
		grid[y] = make([]string, width)
		for x := range grid[y] {
			grid[y][x] = emptyCellStyle.Render("· ")
		}
	}

	if food, ok := pointField(data["food"]); ok && inBounds(food, width, height) {
		grid[food.y][food.x] = foodStyle.Render("● ")
	}

	snakes, _ := data["snakes"].(map[string]any)
	for i, key := range sortedKeys(snakes) {
		raw, ok := snakes[key].(map[string]any)
		if !ok {
			continue
		}
		style := snakeStyles[i%len(snakeStyles)]
		if alive, ok := raw["alive"].(bool); ok && !alive {
			style = deadStyle
		}
		body, _ := raw["body"].([]any)
		for j, seg := range body {
			p, ok := pointField(seg)
			if !ok || !inBounds(p, width, height) {
				continue
			}
			cell := "○ "
			if j == 0 {
				cell = "◉ "
			}
			grid[p.y][p.x] = style.Render(cell)
		}
	}

	rows := make([]string, height)
	for y, row := range grid {
		rows[y] = strings.Join(row, "")
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

type cell struct {
	x, y int
}

func pointField(v any) (cell, bool) {
	raw, ok := v.(map[string]any)
	if !ok {
		return cell{}, false
	}
	x, okX := raw["x"].(float64)
	y, okY := raw["y"].(float64)
	if !okX || !okY {
		return cell{}, false
	}
	return cell{x: int(x), y: int(y)}, true
}

func inBounds(p cell, width, height int) bool {
	return p.x >= 0 && p.x < width && p.y >= 0 && p.y < height
}

func intField(data map[string]any, key string, fallback int) int {
	if v, ok := data[key].(float64); ok && v > 0 {
		return int(v)
	}
	return fallback
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
