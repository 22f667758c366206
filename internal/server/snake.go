package server

import (
	"math/rand"
	"sync"
	"time"

	"github.com/jopatk123/myweb-realtime/internal/apperrors"
	"github.com/jopatk123/myweb-realtime/internal/protocol"
)

const (
	boardWidth  = 20
	boardHeight = 20

	// 共享模式下棋盘上唯一一条蛇的键
	sharedSnakeKey = "shared"
)

// 合法方向
var directions = map[string]Point{
	"up":    {X: 0, Y: -1},
	"down":  {X: 0, Y: 1},
	"left":  {X: -1, Y: 0},
	"right": {X: 1, Y: 0},
}

// 相反方向（长度大于 1 时禁止掉头）
var opposite = map[string]string{
	"up":    "down",
	"down":  "up",
	"left":  "right",
	"right": "left",
}

// Point 棋盘坐标
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Snake 一条蛇的状态，Body[0] 为蛇头
type Snake struct {
	Body      []Point `json:"body"`
	Direction string  `json:"direction"`
	Alive     bool    `json:"alive"`
}

// SnakeSession 一局 snake 游戏。
// 共享模式：全员投票操控一条蛇，每个 tick 取多数方向并清空投票；
// 竞技模式：每人一条蛇，投票即转向。
type SnakeSession struct {
	mode string
	tick time.Duration

	mu       sync.Mutex
	snakes   map[string]*Snake
	votes    map[string]string // session_id → direction（共享模式）
	scores   map[string]int
	food     Point
	tickN    int
	finished bool

	broadcast func(msg *protocol.Message)
	finish    func(result map[string]any)

	done     chan struct{}
	stopOnce sync.Once
}

// NewSnakeSession 创建游戏会话并布置初始棋盘
func NewSnakeSession(mode string, sessions []string, tick time.Duration, broadcast func(*protocol.Message), finish func(map[string]any)) *SnakeSession {
	s := &SnakeSession{
		mode:      mode,
		tick:      tick,
		snakes:    make(map[string]*Snake),
		votes:     make(map[string]string),
		scores:    make(map[string]int),
		broadcast: broadcast,
		finish:    finish,
		done:      make(chan struct{}),
	}

	if mode == protocol.ModeShared {
		s.snakes[sharedSnakeKey] = spawnSnake(0, 1)
		s.scores[sharedSnakeKey] = 0
	} else {
		for i, id := range sessions {
			s.snakes[id] = spawnSnake(i, len(sessions))
			s.scores[id] = 0
		}
	}
	s.food = s.spawnFoodLocked()

	return s
}

// spawnSnake 在棋盘上放置第 i/n 条蛇，横向均匀分布，蛇头朝上
func spawnSnake(i, n int) *Snake {
	x := boardWidth * (i + 1) / (n + 1)
	y := boardHeight / 2
	return &Snake{
		Body:      []Point{{X: x, Y: y}, {X: x, Y: y + 1}, {X: x, Y: y + 2}},
		Direction: "up",
		Alive:     true,
	}
}

// Start 启动推进循环
func (s *SnakeSession) Start() {
	go func() {
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.step()
			case <-s.done:
				return
			}
		}
	}()
}

// Stop 停止推进循环，可重复调用
func (s *SnakeSession) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

// Vote 记录方向输入。共享模式累积到投票箱，竞技模式直接转向。
func (s *SnakeSession) Vote(sessionID, direction string) error {
	if _, ok := directions[direction]; !ok {
		return apperrors.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return apperrors.ErrGameNotStarted
	}

	if s.mode == protocol.ModeShared {
		s.votes[sessionID] = direction
		return nil
	}

	snake, ok := s.snakes[sessionID]
	if !ok || !snake.Alive {
		return apperrors.ErrNotInRoom
	}
	if len(snake.Body) > 1 && direction == opposite[snake.Direction] {
		return nil // 掉头输入静默忽略
	}
	snake.Direction = direction
	return nil
}

// Votes 返回当前投票快照
func (s *SnakeSession) Votes() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.votes))
	for k, v := range s.votes {
		out[k] = v
	}
	return out
}

// VoteCounts 返回各方向票数
func (s *SnakeSession) VoteCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voteCountsLocked()
}

func (s *SnakeSession) voteCountsLocked() map[string]int {
	counts := make(map[string]int)
	for _, dir := range s.votes {
		counts[dir]++
	}
	return counts
}

// Scores 返回得分快照
func (s *SnakeSession) Scores() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.scores))
	for k, v := range s.scores {
		out[k] = v
	}
	return out
}

// RemovePlayer 玩家离开：竞技模式移除其蛇，共享模式只清掉其投票
func (s *SnakeSession) RemovePlayer(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.votes, sessionID)
	if s.mode == protocol.ModeCompetitive {
		if snake, ok := s.snakes[sessionID]; ok {
			snake.Alive = false
		}
	}
}

// StateData 返回 game_update/game_started 的 game_data
func (s *SnakeSession) StateData() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateDataLocked()
}

func (s *SnakeSession) stateDataLocked() map[string]any {
	snakes := make(map[string]*Snake, len(s.snakes))
	for k, v := range s.snakes {
		body := make([]Point, len(v.Body))
		copy(body, v.Body)
		snakes[k] = &Snake{Body: body, Direction: v.Direction, Alive: v.Alive}
	}
	scores := make(map[string]int, len(s.scores))
	for k, v := range s.scores {
		scores[k] = v
	}
	return map[string]any{
		"mode":   s.mode,
		"width":  boardWidth,
		"height": boardHeight,
		"tick":   s.tickN,
		"food":   s.food,
		"snakes": snakes,
		"scores": scores,
	}
}

// step 推进一个 tick
func (s *SnakeSession) step() {
	s.mu.Lock()

	if s.finished {
		s.mu.Unlock()
		return
	}
	s.tickN++

	if s.mode == protocol.ModeShared {
		s.stepSharedLocked()
	} else {
		s.stepCompetitiveLocked()
	}

	// 本回合的投票到此失效
	s.votes = make(map[string]string)

	result := s.resultIfOverLocked()
	state := s.stateDataLocked()
	finished := s.finished
	s.mu.Unlock()

	s.broadcast(protocol.MustNewMessage(protocol.MsgGameUpdate, state))

	if finished {
		s.Stop()
		go s.finish(result)
	}
}

// stepSharedLocked 共享模式：多数方向获胜，平票保持原方向
func (s *SnakeSession) stepSharedLocked() {
	snake := s.snakes[sharedSnakeKey]

	counts := s.voteCountsLocked()
	best, bestCount := snake.Direction, 0
	for _, dir := range []string{"up", "down", "left", "right"} {
		if counts[dir] > bestCount {
			best, bestCount = dir, counts[dir]
		}
	}
	if len(snake.Body) > 1 && best == opposite[snake.Direction] {
		best = snake.Direction
	}
	snake.Direction = best

	s.advanceLocked(sharedSnakeKey, snake)
}

// stepCompetitiveLocked 竞技模式：每条活蛇按自身方向推进
func (s *SnakeSession) stepCompetitiveLocked() {
	for id, snake := range s.snakes {
		if snake.Alive {
			s.advanceLocked(id, snake)
		}
	}
}

// advanceLocked 推进一条蛇：撞墙/撞身即死，吃到食物加分并生长
func (s *SnakeSession) advanceLocked(id string, snake *Snake) {
	delta := directions[snake.Direction]
	head := Point{X: snake.Body[0].X + delta.X, Y: snake.Body[0].Y + delta.Y}

	if head.X < 0 || head.X >= boardWidth || head.Y < 0 || head.Y >= boardHeight {
		snake.Alive = false
		return
	}
	for _, other := range s.snakes {
		if !other.Alive {
			continue
		}
		body := other.Body
		if other == snake {
			body = body[:len(body)-1] // 尾部本 tick 会让开
		}
		for _, p := range body {
			if p == head {
				snake.Alive = false
				return
			}
		}
	}

	snake.Body = append([]Point{head}, snake.Body...)
	if head == s.food {
		s.scores[id]++
		s.food = s.spawnFoodLocked()
	} else {
		snake.Body = snake.Body[:len(snake.Body)-1]
	}
}

// resultIfOverLocked 判断游戏是否结束并生成结果
func (s *SnakeSession) resultIfOverLocked() map[string]any {
	scores := make(map[string]int, len(s.scores))
	for k, v := range s.scores {
		scores[k] = v
	}

	if s.mode == protocol.ModeShared {
		if s.snakes[sharedSnakeKey].Alive {
			return nil
		}
		s.finished = true
		return map[string]any{
			"reason": "collision",
			"score":  scores[sharedSnakeKey],
			"ticks":  s.tickN,
		}
	}

	alive := make([]string, 0, len(s.snakes))
	for id, snake := range s.snakes {
		if snake.Alive {
			alive = append(alive, id)
		}
	}
	if len(alive) > 1 {
		return nil
	}
	s.finished = true
	result := map[string]any{
		"reason": "collision",
		"scores": scores,
		"ticks":  s.tickN,
	}
	if len(alive) == 1 {
		result["winner"] = alive[0]
	}
	return result
}

// spawnFoodLocked 在空格上随机放置食物
func (s *SnakeSession) spawnFoodLocked() Point {
	occupied := make(map[Point]bool)
	for _, snake := range s.snakes {
		for _, p := range snake.Body {
			occupied[p] = true
		}
	}

	for {
		p := Point{X: rand.Intn(boardWidth), Y: rand.Intn(boardHeight)}
		if !occupied[p] {
			return p
		}
	}
}
