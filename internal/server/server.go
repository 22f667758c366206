package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jopatk123/myweb-realtime/internal/config"
	"github.com/jopatk123/myweb-realtime/internal/protocol"
	"github.com/jopatk123/myweb-realtime/internal/server/storage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源，生产环境需要限制
	},
}

// Server 房间同步服务器：WebSocket 实时层 + HTTP 建房/发现接口
type Server struct {
	cfg    *config.Config
	logger *logrus.Logger
	redis  *redis.Client
	store  *storage.RedisStore

	sessions *SessionManager
	rooms    *RoomManager
	handler  *Handler

	clients   map[string]*Client
	clientsMu sync.RWMutex

	httpServer *http.Server
	done       chan struct{}
	closeOnce  sync.Once
}

// NewServer 创建服务器并建立 Redis 连接
func NewServer(cfg *config.Config, logger *logrus.Logger) (*Server, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis 连接失败: %w", err)
	}

	s := newServerCore(cfg, logger, storage.NewRedisStore(rdb))
	s.redis = rdb
	return s, nil
}

// newServerCore 组装服务器，store 可为 nil（测试或无持久化运行）
func newServerCore(cfg *config.Config, logger *logrus.Logger, store *storage.RedisStore) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		sessions: NewSessionManager(),
		clients:  make(map[string]*Client),
		done:     make(chan struct{}),
	}
	s.rooms = NewRoomManager(&cfg.Game, logger, store)
	s.handler = NewHandler(s)

	go s.sessionCleanupLoop()

	return s
}

// sessionCleanupLoop 定期回收过期的离线会话
func (s *Server) sessionCleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := s.sessions.CleanupStale(); removed > 0 {
				s.logger.WithField("count", removed).Debug("回收过期会话")
			}
		case <-s.done:
			return
		}
	}
}

// Router 组装 HTTP 路由
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/ws", s.handleWebSocket)
	r.Mount("/api", newRoomAPI(s.rooms, s.logger).routes())

	return r
}

// Start 启动服务器并阻塞到监听结束
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.logger.WithField("addr", addr).Info("🚀 服务器启动")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown 优雅关闭：停 HTTP 监听、断开客户端、停房间管理器
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.done) })

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	s.clientsMu.Lock()
	for _, client := range s.clients {
		client.Close()
	}
	s.clientsMu.Unlock()

	s.rooms.Close()

	if s.redis != nil {
		_ = s.redis.Close()
	}

	s.logger.Info("服务器已关闭")
	return err
}

// handleWebSocket 升级连接并开始会话
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("WebSocket 升级失败")
		return
	}

	session := s.sessions.Create()
	client := NewClient(s, conn, session.ID)
	s.registerClient(client)

	client.SendMessage(protocol.MustNewMessage(protocol.MsgConnected, protocol.ConnectedData{
		SessionID:      session.ID,
		ReconnectToken: session.ReconnectToken,
	}))

	s.logger.WithField("session", session.ID).Info("✅ 客户端已连接")

	go client.ReadPump()
	go client.WritePump()
}

// handleDisconnect 连接断开时的收尾
func (s *Server) handleDisconnect(client *Client) {
	s.sessions.SetOffline(client.SessionID())
	s.rooms.HandleDisconnect(client)
	s.unregisterClient(client)
	s.logger.WithField("session", client.SessionID()).Info("❌ 客户端已断开")
}

// rebindClient 重连换绑：新连接接管旧会话 ID
func (s *Server) rebindClient(oldID string, client *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	delete(s.clients, oldID)
	if stale, ok := s.clients[client.SessionID()]; ok && stale != client {
		stale.Close()
	}
	s.clients[client.SessionID()] = client
}

func (s *Server) registerClient(client *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[client.SessionID()] = client
}

func (s *Server) unregisterClient(client *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if s.clients[client.SessionID()] == client {
		delete(s.clients, client.SessionID())
	}
}

// OnlineCount 当前连接数
func (s *Server) OnlineCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
