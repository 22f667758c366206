package roomsync

import (
	"encoding/json"
	"log"
	"sync"
)

// ExternalHandler 功能代码订阅入站事件的回调
type ExternalHandler func(data json.RawMessage)

// Subscription 订阅凭据，取消订阅时传回。
// 函数值不可比较，代码指针又区分不开不同实例的同名方法
// （两个实例的 method value 共享同一段代码），所以订阅身份
// 由注册表分配的单调 id 承担。
type Subscription struct {
	event string
	id    uint64
}

type externalEntry struct {
	id uint64
	fn ExternalHandler
}

// ExternalRegistry 次级 pub/sub：功能代码无需改动核心 reducer 表
// 即可观察指定入站事件。显式构造、按引用注入，不做包级单例，
// 生命周期由持有者控制。
type ExternalRegistry struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]externalEntry
}

// NewExternalRegistry 创建空注册表
func NewExternalRegistry() *ExternalRegistry {
	return &ExternalRegistry{
		handlers: make(map[string][]externalEntry),
	}
}

// Register 订阅事件，返回用于 Unregister 的凭据
func (r *ExternalRegistry) Register(event string, fn ExternalHandler) Subscription {
	if fn == nil {
		return Subscription{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.handlers[event] = append(r.handlers[event], externalEntry{id: r.nextID, fn: fn})
	return Subscription{event: event, id: r.nextID}
}

// Unregister 取消订阅，未知凭据为 no-op
func (r *ExternalRegistry) Unregister(sub Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.handlers[sub.event]
	for i, entry := range list {
		if entry.id == sub.id {
			r.handlers[sub.event] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(r.handlers[sub.event]) == 0 {
		delete(r.handlers, sub.event)
	}
}

// Dispatch 按订阅顺序逐个调用。单个订阅者的 panic 被捕获并记日志，
// 不会阻断其余订阅者，也不会传播到消息到达点。
func (r *ExternalRegistry) Dispatch(event string, data json.RawMessage) {
	r.mu.RLock()
	set := r.handlers[event]
	fns := make([]ExternalHandler, 0, len(set))
	for _, entry := range set {
		fns = append(fns, entry.fn)
	}
	r.mu.RUnlock()

	for _, fn := range fns {
		r.invoke(event, fn, data)
	}
}

func (r *ExternalRegistry) invoke(event string, fn ExternalHandler, data json.RawMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[ERROR] external handler for %q panicked: %v", event, rec)
		}
	}()
	fn(data)
}

// Clear 移除全部订阅（teardown / 离开房间时调用）
func (r *ExternalRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[string][]externalEntry)
}

// Len 返回指定事件的订阅者数量
func (r *ExternalRegistry) Len(event string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[event])
}
