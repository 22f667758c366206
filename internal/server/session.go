package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// sessionTTL 离线会话的保留时长，超过后不可再重连
const sessionTTL = 5 * time.Minute

// Session 玩家会话，跨连接存活以支持断线重连
type Session struct {
	ID             string
	ReconnectToken string
	PlayerName     string
	RoomCode       string
	Online         bool
	DisconnectedAt time.Time
}

// SessionManager 会话管理器
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager 创建会话管理器
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

// Create 创建新会话并签发重连令牌
func (sm *SessionManager) Create() *Session {
	session := &Session{
		ID:             uuid.New().String(),
		ReconnectToken: uuid.New().String(),
		Online:         true,
	}

	sm.mu.Lock()
	sm.sessions[session.ID] = session
	sm.mu.Unlock()

	return session
}

// Get 获取会话
func (sm *SessionManager) Get(id string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[id]
}

// Resume 按令牌恢复会话，校验失败或已过期返回 nil
func (sm *SessionManager) Resume(id, token string) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, ok := sm.sessions[id]
	if !ok || session.ReconnectToken != token {
		return nil
	}
	if !session.Online && time.Since(session.DisconnectedAt) > sessionTTL {
		delete(sm.sessions, id)
		return nil
	}

	session.Online = true
	session.DisconnectedAt = time.Time{}
	return session
}

// SetOffline 标记会话离线，记录掉线时间
func (sm *SessionManager) SetOffline(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if session, ok := sm.sessions[id]; ok {
		session.Online = false
		session.DisconnectedAt = time.Now()
	}
}

// SetRoom 更新会话绑定的房间
func (sm *SessionManager) SetRoom(id, roomCode string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if session, ok := sm.sessions[id]; ok {
		session.RoomCode = roomCode
	}
}

// SetName 更新会话绑定的昵称
func (sm *SessionManager) SetName(id, name string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if session, ok := sm.sessions[id]; ok {
		session.PlayerName = name
	}
}

// Delete 删除会话
func (sm *SessionManager) Delete(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, id)
}

// CleanupStale 回收过期的离线会话，返回回收数量
func (sm *SessionManager) CleanupStale() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	removed := 0
	for id, session := range sm.sessions {
		if !session.Online && time.Since(session.DisconnectedAt) > sessionTTL {
			delete(sm.sessions, id)
			removed++
		}
	}
	return removed
}
