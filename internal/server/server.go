package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/palemoky/exploding-kittens/internal/config"
	"github.com/palemoky/exploding-kittens/internal/game/engine"
	"github.com/palemoky/exploding-kittens/internal/game/match"
	"github.com/palemoky/exploding-kittens/internal/server/session"
	"github.com/palemoky/exploding-kittens/internal/server/storage"
)

// Server 对局服务：HTTP 建局 + WebSocket 出牌
type Server struct {
	config   *config.Config
	redis    *redis.Client
	store    *storage.RedisStore
	matches  *match.Manager
	sessions *session.SessionManager
	hub      *hub
	upgrader websocket.Upgrader

	logs   map[string]*eventLog // matchID -> 事件日志写入器
	logsMu sync.Mutex

	// 所有座位都断开的对局，宽限期后中止
	abandon   map[string]*time.Timer
	abandonMu sync.Mutex

	// 安全组件
	origins *originPolicy
	limiter *seatLimiter

	// 连接控制
	maxConnections int
	semaphore      chan struct{} // 信号量控制并发连接数

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) (*Server, error) {
	rules, err := cfg.Rules.ToRules()
	if err != nil {
		return nil, fmt.Errorf("房规无效: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// 测试 Redis 连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis 连接失败: %w", err)
	}

	store := storage.NewRedisStore(rdb, cfg.Redis.EventTTLDuration())
	s := &Server{
		config:         cfg,
		redis:          rdb,
		store:          store,
		sessions:       session.NewSessionManager(store, cfg.Redis.EventTTLDuration()),
		hub:            newHub(),
		logs:           make(map[string]*eventLog),
		abandon:        make(map[string]*time.Timer),
		origins:        newOriginPolicy(cfg.Server.AllowedOrigins),
		limiter:        newSeatLimiter(cfg.Server.MessageLimit),
		maxConnections: cfg.Server.MaxConnections,
		semaphore:      make(chan struct{}, cfg.Server.MaxConnections),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.allow,
	}

	s.matches = match.NewManager(s.ctx, match.Config{
		Rules:          rules,
		ReactionWindow: cfg.Game.ReactionWindowDuration(),
		TurnTimeout:    cfg.Game.TurnTimeoutDuration(),
		InboxSize:      cfg.Game.InboxSize,
		// 无人在线时暂停，交给 abandon 计时器中止
		PauseUnattended: cfg.Game.AbandonTimeoutDuration() > 0,
	}, cfg.Game.RetentionDuration(), s.newEventSink)

	log.Printf("🔒 安全配置: 消息限制=%d/s, 最大连接数=%d, 反应时间=%s, 行动超时=%s",
		cfg.Server.MessageLimit, cfg.Server.MaxConnections,
		cfg.Game.ReactionWindowDuration(), cfg.Game.TurnTimeoutDuration())

	return s, nil
}

// Handler 返回路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /matches", s.handleCreateMatch)
	mux.HandleFunc("GET /matches/{id}", s.handleGetMatch)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Start 启动服务器，ctx 取消后优雅关闭
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	go s.monitorStats()
	go s.sessions.Run(s.ctx, time.Minute)

	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second, // 防止 Slowloris 攻击
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🚀 服务器启动在 ws://%s/ws (CPU核心数: %d)", addr, runtime.NumCPU())
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Shutdown()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	s.Shutdown()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// matchSink 对局的事件出口：写入事件日志并推送给在线座位
type matchSink struct {
	matchID string
	log     *eventLog
	server  *Server
}

func (ms *matchSink) Publish(e engine.Event) {
	ms.log.Publish(e)
	ms.server.hub.deliver(ms.matchID, e)
}

// Close 建局失败时回收事件日志
func (ms *matchSink) Close() error {
	ms.server.closeEventLog(ms.matchID)
	return nil
}

func (s *Server) newEventSink(matchID string) engine.EventSink {
	l := newEventLog(matchID, s.store, s.snapshotOf)

	s.logsMu.Lock()
	s.logs[matchID] = l
	s.logsMu.Unlock()

	return &matchSink{matchID: matchID, log: l, server: s}
}

func (s *Server) eventLogFor(matchID string) *eventLog {
	s.logsMu.Lock()
	defer s.logsMu.Unlock()
	return s.logs[matchID]
}

func (s *Server) closeEventLog(matchID string) {
	s.logsMu.Lock()
	l := s.logs[matchID]
	delete(s.logs, matchID)
	s.logsMu.Unlock()

	if l != nil {
		l.Close()
	}
}

// snapshotOf 对局的公开快照，对局不在内存中时返回 false
func (s *Server) snapshotOf(matchID string) (engine.Snapshot, bool) {
	m, err := s.matches.Get(matchID)
	if err != nil {
		return engine.Snapshot{}, false
	}
	return m.Snapshot(), true
}
