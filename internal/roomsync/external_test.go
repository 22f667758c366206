package roomsync

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingListener struct {
	mu sync.Mutex
	n  int
}

func (c *countingListener) handle(json.RawMessage) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingListener) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestExternalRegistry_RegisterAndUnregister(t *testing.T) {
	t.Parallel()

	reg := NewExternalRegistry()
	listener := &countingListener{}

	sub := reg.Register("game_update", listener.handle)
	assert.Equal(t, 1, reg.Len("game_update"))

	reg.Dispatch("game_update", nil)
	assert.Equal(t, 1, listener.count())

	reg.Unregister(sub)
	reg.Dispatch("game_update", nil)
	assert.Equal(t, 1, listener.count())
	assert.Equal(t, 0, reg.Len("game_update"))

	// 重复注销为 no-op
	assert.NotPanics(t, func() { reg.Unregister(sub) })
}

func TestExternalRegistry_TwoInstancesOfSameTypeBothReceive(t *testing.T) {
	t.Parallel()

	// 同一类型两个实例的同名方法共享代码指针，
	// 订阅身份必须落在凭据上，二者都要收到分发
	reg := NewExternalRegistry()
	first := &countingListener{}
	second := &countingListener{}

	firstSub := reg.Register("game_update", first.handle)
	reg.Register("game_update", second.handle)
	assert.Equal(t, 2, reg.Len("game_update"))

	reg.Dispatch("game_update", nil)
	assert.Equal(t, 1, first.count())
	assert.Equal(t, 1, second.count())

	// 注销只影响对应的订阅
	reg.Unregister(firstSub)
	reg.Dispatch("game_update", nil)
	assert.Equal(t, 1, first.count())
	assert.Equal(t, 2, second.count())
}

func TestExternalRegistry_PanickingListenerDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	reg := NewExternalRegistry()

	var mu sync.Mutex
	survived := 0

	reg.Register("boom", func(json.RawMessage) {
		panic("listener bug")
	})
	reg.Register("boom", func(json.RawMessage) {
		mu.Lock()
		survived++
		mu.Unlock()
	})

	// 不应把 panic 传播到消息到达点
	assert.NotPanics(t, func() {
		reg.Dispatch("boom", json.RawMessage(`{}`))
	})

	mu.Lock()
	assert.Equal(t, 1, survived)
	mu.Unlock()
}

func TestExternalRegistry_Clear(t *testing.T) {
	t.Parallel()

	reg := NewExternalRegistry()
	called := false
	reg.Register("x", func(json.RawMessage) { called = true })

	reg.Clear()
	reg.Dispatch("x", nil)

	assert.False(t, called)
	assert.Equal(t, 0, reg.Len("x"))
}
