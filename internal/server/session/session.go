package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/palemoky/exploding-kittens/internal/server/storage"
)

// 离线超过该时间的会话被清理，之后无法再用令牌重连
const defaultExpireTime = 30 * time.Minute

// Store 会话持久化
type Store interface {
	SaveSession(ctx context.Context, session *storage.SessionData) error
	LoadSession(ctx context.Context, token string) (*storage.SessionData, error)
	SetSessionOnline(ctx context.Context, token string, online bool) error
}

// SeatSession 一个座位的连接会话。令牌在建局时发给大厅，客户端凭令牌连接或重连。
type SeatSession struct {
	Token      string
	MatchID    string
	Seat       int
	PlayerID   string
	PlayerName string

	DisconnectedAt time.Time // 断线时间
	IsOnline       bool      // 是否在线

	mu sync.RWMutex
}

// Online 当前是否在线
func (s *SeatSession) Online() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.IsOnline
}

func (s *SeatSession) data() *storage.SessionData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := &storage.SessionData{
		Token:      s.Token,
		MatchID:    s.MatchID,
		Seat:       s.Seat,
		PlayerID:   s.PlayerID,
		PlayerName: s.PlayerName,
		IsOnline:   s.IsOnline,
	}
	if !s.DisconnectedAt.IsZero() {
		d.DisconnectedAt = s.DisconnectedAt.Unix()
	}
	return d
}

// SessionManager 会话管理器，内存为主，Store 用于服务重启后找回令牌
type SessionManager struct {
	store      Store
	expireTime time.Duration

	sessions map[string]*SeatSession // token -> session
	mu       sync.RWMutex
}

// NewSessionManager 创建会话管理器，store 可以为 nil
func NewSessionManager(store Store, expireTime time.Duration) *SessionManager {
	if expireTime <= 0 {
		expireTime = defaultExpireTime
	}
	return &SessionManager{
		store:      store,
		expireTime: expireTime,
		sessions:   make(map[string]*SeatSession),
	}
}

// CreateSession 为座位创建会话。新会话处于离线状态，直到客户端连接。
func (sm *SessionManager) CreateSession(ctx context.Context, matchID string, seat int, playerID, playerName string) (*SeatSession, error) {
	session := &SeatSession{
		Token:          generateToken(),
		MatchID:        matchID,
		Seat:           seat,
		PlayerID:       playerID,
		PlayerName:     playerName,
		DisconnectedAt: time.Now(),
	}

	if sm.store != nil {
		if err := sm.store.SaveSession(ctx, session.data()); err != nil {
			return nil, fmt.Errorf("保存会话失败: %w", err)
		}
	}

	sm.mu.Lock()
	sm.sessions[session.Token] = session
	sm.mu.Unlock()
	return session, nil
}

// GetSessionByToken 通过 token 获取会话，内存中没有时从 Store 恢复
func (sm *SessionManager) GetSessionByToken(ctx context.Context, token string) (*SeatSession, error) {
	sm.mu.RLock()
	session, ok := sm.sessions[token]
	sm.mu.RUnlock()
	if ok {
		return session, nil
	}
	if sm.store == nil {
		return nil, nil
	}

	data, err := sm.store.LoadSession(ctx, token)
	if err != nil || data == nil {
		return nil, err
	}
	session = &SeatSession{
		Token:      data.Token,
		MatchID:    data.MatchID,
		Seat:       data.Seat,
		PlayerID:   data.PlayerID,
		PlayerName: data.PlayerName,
		IsOnline:   data.IsOnline,
	}
	if data.DisconnectedAt != 0 {
		session.DisconnectedAt = time.Unix(data.DisconnectedAt, 0)
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if existing, ok := sm.sessions[token]; ok {
		return existing, nil
	}
	sm.sessions[token] = session
	return session, nil
}

// SetOnline 设置座位上线
func (sm *SessionManager) SetOnline(ctx context.Context, token string) {
	sm.setOnline(ctx, token, true)
}

// SetOffline 设置座位离线
func (sm *SessionManager) SetOffline(ctx context.Context, token string) {
	sm.setOnline(ctx, token, false)
}

func (sm *SessionManager) setOnline(ctx context.Context, token string, online bool) {
	sm.mu.RLock()
	session, ok := sm.sessions[token]
	sm.mu.RUnlock()
	if !ok {
		return
	}

	session.mu.Lock()
	session.IsOnline = online
	if online {
		session.DisconnectedAt = time.Time{}
	} else {
		session.DisconnectedAt = time.Now()
	}
	session.mu.Unlock()

	if sm.store != nil {
		if err := sm.store.SetSessionOnline(ctx, token, online); err != nil {
			log.Printf("⚠️ 更新会话 %s 在线状态失败: %v", session.PlayerName, err)
		}
	}
}

// DeleteMatch 删除对局的所有会话
func (sm *SessionManager) DeleteMatch(matchID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for token, session := range sm.sessions {
		if session.MatchID == matchID {
			delete(sm.sessions, token)
		}
	}
}

// Count 会话数
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// OnlineCount 在线会话数
func (sm *SessionManager) OnlineCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	count := 0
	for _, session := range sm.sessions {
		if session.Online() {
			count++
		}
	}
	return count
}

// Run 定期清理过期会话，直到 ctx 取消
func (sm *SessionManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.cleanup(time.Now())
		}
	}
}

// cleanup 清理离线超过过期时间的会话
func (sm *SessionManager) cleanup(now time.Time) int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	removed := 0
	for token, session := range sm.sessions {
		session.mu.RLock()
		expired := !session.IsOnline && now.Sub(session.DisconnectedAt) > sm.expireTime
		session.mu.RUnlock()
		if expired {
			delete(sm.sessions, token)
			removed++
		}
	}
	return removed
}

// generateToken 生成随机 token
func generateToken() string {
	bytes := make([]byte, 32)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
