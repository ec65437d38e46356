package match

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/palemoky/exploding-kittens/internal/apperrors"
	"github.com/palemoky/exploding-kittens/internal/game/engine"
)

// SinkFactory builds the event sink for a new match. If the match cannot be created and the sink
// implements io.Closer, it is closed.
type SinkFactory func(matchID string) engine.EventSink

// Manager 管理所有进行中的对局。对局之间没有共享状态，各自在自己的协程中运行。
type Manager struct {
	ctx       context.Context
	cfg       Config
	newSink   SinkFactory
	retention time.Duration // 结束后在内存中保留多久，便于客户端拉取最终状态

	matches map[string]*Match
	mu      sync.RWMutex
}

// NewManager 创建对局管理器。ctx 取消时所有对局都会被中止。
func NewManager(ctx context.Context, cfg Config, retention time.Duration, newSink SinkFactory) *Manager {
	return &Manager{
		ctx:       ctx,
		cfg:       cfg,
		newSink:   newSink,
		retention: retention,
		matches:   make(map[string]*Match),
	}
}

// Create 用已排好座位的玩家创建并启动一局
func (mgr *Manager) Create(players []engine.PlayerInfo) (*Match, error) {
	id := uuid.NewString()
	var sink engine.EventSink
	if mgr.newSink != nil {
		sink = mgr.newSink(id)
	}

	// 每局独立的随机源，*rand.Rand 不能跨协程共享
	cfg := mgr.cfg
	cfg.Rand = nil
	m, err := New(id, players, cfg, sink)
	if err != nil {
		if c, ok := sink.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, fmt.Errorf("create match: %w", err)
	}

	mgr.mu.Lock()
	mgr.matches[id] = m
	mgr.mu.Unlock()

	go m.Run(mgr.ctx)
	go mgr.reapAfterEnd(m)

	log.Printf("🎮 对局 %s 已创建，%d 名玩家", id, len(players))
	return m, nil
}

func (mgr *Manager) reapAfterEnd(m *Match) {
	<-m.Done()
	if mgr.retention > 0 {
		timer := time.NewTimer(mgr.retention)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-mgr.ctx.Done():
		}
	}
	mgr.mu.Lock()
	delete(mgr.matches, m.ID)
	mgr.mu.Unlock()
}

// Get 获取对局
func (mgr *Manager) Get(id string) (*Match, error) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	m, ok := mgr.matches[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrMatchNotFound, id)
	}
	return m, nil
}

// SubmitAction routes a player intent to the match's inbox.
func (mgr *Manager) SubmitAction(matchID string, seat int, a engine.Action) error {
	m, err := mgr.Get(matchID)
	if err != nil {
		return err
	}
	return m.Submit(seat, a)
}

// SetConnection 更新座位连接状态
func (mgr *Manager) SetConnection(matchID string, seat int, conn engine.ConnState) error {
	m, err := mgr.Get(matchID)
	if err != nil {
		return err
	}
	return m.SetConnection(seat, conn)
}

// Abort 中止对局
func (mgr *Manager) Abort(matchID, reason string) error {
	m, err := mgr.Get(matchID)
	if err != nil {
		return err
	}
	return m.Abort(reason)
}

// Count 内存中的对局数（含等待回收的已结束对局）
func (mgr *Manager) Count() int {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	return len(mgr.matches)
}

// ActiveCount 进行中的对局数
func (mgr *Manager) ActiveCount() int {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	count := 0
	for _, m := range mgr.matches {
		select {
		case <-m.Done():
		default:
			count++
		}
	}
	return count
}
