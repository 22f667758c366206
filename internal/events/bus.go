// Package events 提供一个显式构造的进程内事件总线。
// 按引用注入给需要收发的组件，不做包级单例，
// 生命周期与测试隔离都由持有者控制。
package events

import (
	"log"
	"sync"
)

// 大厅事件名
const (
	EventToast             = "toast"
	EventCreateRoom        = "create-room"
	EventJoinRoom          = "join-room"
	EventPlayerNameUpdated = "player-name-updated"
	EventModeUpdated       = "mode-updated"
	EventRoomListUpdated   = "room-list-updated"
)

// Toast 用户可见的提示
type Toast struct {
	Type    string // error / info / success
	Message string
}

// Toast 类型
const (
	ToastError   = "error"
	ToastInfo    = "info"
	ToastSuccess = "success"
)

// Handler 事件回调
type Handler func(payload any)

// Subscription 订阅凭据，取消订阅时传回。
// Go 的函数值不可比较，代码指针也区分不开不同实例的同名方法，
// 所以订阅身份由总线分配的单调 id 承担。
type Subscription struct {
	event string
	id    uint64
}

type subscriber struct {
	id uint64
	fn Handler
}

// Bus 进程内事件总线
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]subscriber
}

// NewBus 创建空总线
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]subscriber)}
}

// On 订阅事件，返回用于 Off 的凭据
func (b *Bus) On(event string, fn Handler) Subscription {
	if fn == nil {
		return Subscription{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[event] = append(b.handlers[event], subscriber{id: b.nextID, fn: fn})
	return Subscription{event: event, id: b.nextID}
}

// Off 取消订阅，未知凭据为 no-op
func (b *Bus) Off(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.handlers[sub.event]
	for i, s := range list {
		if s.id == sub.id {
			b.handlers[sub.event] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(b.handlers[sub.event]) == 0 {
		delete(b.handlers, sub.event)
	}
}

// Emit 按订阅顺序发布事件。单个订阅者的 panic 被捕获并记日志，
// 不阻断其余订阅者。
func (b *Bus) Emit(event string, payload any) {
	b.mu.RLock()
	set := b.handlers[event]
	fns := make([]Handler, 0, len(set))
	for _, s := range set {
		fns = append(fns, s.fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		b.invoke(event, fn, payload)
	}
}

func (b *Bus) invoke(event string, fn Handler, payload any) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[ERROR] event handler for %q panicked: %v", event, rec)
		}
	}()
	fn(payload)
}

// Clear 移除全部订阅
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[string][]subscriber)
}
