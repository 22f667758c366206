package server

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jopatk123/myweb-realtime/internal/apperrors"
	"github.com/jopatk123/myweb-realtime/internal/protocol"
)

type sessionRecorder struct {
	mu      sync.Mutex
	msgs    []*protocol.Message
	results chan map[string]any
}

func newSessionRecorder() *sessionRecorder {
	return &sessionRecorder{results: make(chan map[string]any, 1)}
}

func (r *sessionRecorder) broadcast(msg *protocol.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *sessionRecorder) finish(result map[string]any) {
	r.results <- result
}

// newSharedSession 创建不自动推进的共享模式会话，tick 由测试手动驱动
func newSharedSession(rec *sessionRecorder) *SnakeSession {
	return NewSnakeSession(protocol.ModeShared, []string{"a", "b", "c"}, time.Hour, rec.broadcast, rec.finish)
}

func TestSnakeSession_SharedMajorityVoteSteersSnake(t *testing.T) {
	rec := newSessionRecorder()
	s := newSharedSession(rec)

	require.NoError(t, s.Vote("a", "left"))
	require.NoError(t, s.Vote("b", "left"))
	require.NoError(t, s.Vote("c", "right"))

	s.step()

	assert.Equal(t, "left", s.snakes[sharedSnakeKey].Direction)
	// 本回合投票在 tick 后全部清空
	assert.Empty(t, s.Votes())
}

func TestSnakeSession_SharedTieKeepsDirection(t *testing.T) {
	rec := newSessionRecorder()
	s := newSharedSession(rec)

	require.NoError(t, s.Vote("a", "left"))
	require.NoError(t, s.Vote("b", "right"))

	s.step()
	// 平票时按固定顺序取首个最高票方向，结果可预测
	assert.Equal(t, "left", s.snakes[sharedSnakeKey].Direction)
}

func TestSnakeSession_SharedReversalIsIgnored(t *testing.T) {
	rec := newSessionRecorder()
	s := newSharedSession(rec)

	// 蛇朝上，全员投 down：禁止掉头，保持 up
	require.NoError(t, s.Vote("a", "down"))
	require.NoError(t, s.Vote("b", "down"))

	s.step()
	assert.Equal(t, "up", s.snakes[sharedSnakeKey].Direction)
}

func TestSnakeSession_EatingFoodGrowsAndScores(t *testing.T) {
	rec := newSessionRecorder()
	s := newSharedSession(rec)

	snake := s.snakes[sharedSnakeKey]
	lenBefore := len(snake.Body)
	// 把食物放到蛇头正上方
	s.food = Point{X: snake.Body[0].X, Y: snake.Body[0].Y - 1}

	s.step()

	assert.Equal(t, lenBefore+1, len(snake.Body))
	assert.Equal(t, 1, s.Scores()[sharedSnakeKey])
	assert.NotEqual(t, snake.Body[0], s.food, "食物应已重新放置")
}

func TestSnakeSession_WallCollisionEndsSharedGame(t *testing.T) {
	rec := newSessionRecorder()
	s := newSharedSession(rec)

	// 一直朝上推进，最多 boardHeight 个 tick 内撞墙
	for i := 0; i < boardHeight+1; i++ {
		s.step()
	}

	select {
	case result := <-rec.results:
		assert.Equal(t, "collision", result["reason"])
		assert.Contains(t, result, "score")
	case <-time.After(time.Second):
		t.Fatal("game never finished")
	}

	// 结束后的投票被拒绝
	assert.ErrorIs(t, s.Vote("a", "left"), apperrors.ErrGameNotStarted)
}

func TestSnakeSession_EveryTickBroadcastsUpdate(t *testing.T) {
	rec := newSessionRecorder()
	s := newSharedSession(rec)

	s.step()
	s.step()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.msgs, 2)
	for i, msg := range rec.msgs {
		assert.Equal(t, protocol.MsgGameUpdate, msg.Type)
		payload, err := protocol.ParseData[map[string]any](msg)
		require.NoError(t, err)
		assert.Equal(t, float64(i+1), (*payload)["tick"])
	}
}

func TestSnakeSession_CompetitiveVoteTurnsOwnSnake(t *testing.T) {
	rec := newSessionRecorder()
	s := NewSnakeSession(protocol.ModeCompetitive, []string{"a", "b"}, time.Hour, rec.broadcast, rec.finish)

	require.NoError(t, s.Vote("a", "left"))
	assert.Equal(t, "left", s.snakes["a"].Direction)
	assert.Equal(t, "up", s.snakes["b"].Direction)

	// 掉头静默忽略
	require.NoError(t, s.Vote("b", "down"))
	assert.Equal(t, "up", s.snakes["b"].Direction)

	// 非成员被拒绝
	assert.ErrorIs(t, s.Vote("ghost", "left"), apperrors.ErrNotInRoom)
	// 非法方向被拒绝
	assert.ErrorIs(t, s.Vote("a", "diagonal"), apperrors.ErrInvalidInput)
}

func TestSnakeSession_CompetitiveLastAliveWins(t *testing.T) {
	rec := newSessionRecorder()
	s := NewSnakeSession(protocol.ModeCompetitive, []string{"a", "b"}, time.Hour, rec.broadcast, rec.finish)

	// a 直接判死，b 成为最后存活者
	s.mu.Lock()
	s.snakes["a"].Alive = false
	s.scores["b"] = 7
	s.mu.Unlock()

	s.step()

	select {
	case result := <-rec.results:
		assert.Equal(t, "b", result["winner"])
		scores, ok := result["scores"].(map[string]int)
		require.True(t, ok)
		assert.Equal(t, 7, scores["b"])
	case <-time.After(time.Second):
		t.Fatal("game never finished")
	}
}

func TestSnakeSession_RemovePlayerKillsCompetitiveSnake(t *testing.T) {
	rec := newSessionRecorder()
	s := NewSnakeSession(protocol.ModeCompetitive, []string{"a", "b", "c"}, time.Hour, rec.broadcast, rec.finish)

	s.RemovePlayer("c")
	assert.False(t, s.snakes["c"].Alive)

	// 共享模式只清投票，不影响蛇
	shared := newSharedSession(newSessionRecorder())
	require.NoError(t, shared.Vote("a", "left"))
	shared.RemovePlayer("a")
	assert.Empty(t, shared.Votes())
	assert.True(t, shared.snakes[sharedSnakeKey].Alive)
}
