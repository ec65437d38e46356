package server

import (
	"context"
	"errors"
	"log"
	"runtime"
	"time"

	"github.com/palemoky/exploding-kittens/internal/apperrors"
	"github.com/palemoky/exploding-kittens/internal/game/engine"
	"github.com/palemoky/exploding-kittens/internal/game/match"
)

const abandonReason = "all players left"

// createMatch 创建对局，事件日志由 Manager 在失败时回收
func (s *Server) createMatch(players []engine.PlayerInfo) (*match.Match, error) {
	m, err := s.matches.Create(players)
	if err != nil {
		return nil, err
	}
	go s.watchMatch(m)
	s.scheduleAbandon(m.ID)
	return m, nil
}

// scheduleAbandon 对局没有任何在线连接时开始计时，宽限期内无人连接则中止
func (s *Server) scheduleAbandon(matchID string) {
	grace := s.config.Game.AbandonTimeoutDuration()
	if grace <= 0 || s.hub.seats(matchID) > 0 {
		return
	}

	s.abandonMu.Lock()
	defer s.abandonMu.Unlock()
	if t, ok := s.abandon[matchID]; ok {
		t.Stop()
	}
	s.abandon[matchID] = time.AfterFunc(grace, func() { s.abandonIfEmpty(matchID) })
}

func (s *Server) cancelAbandon(matchID string) {
	s.abandonMu.Lock()
	defer s.abandonMu.Unlock()
	if t, ok := s.abandon[matchID]; ok {
		t.Stop()
		delete(s.abandon, matchID)
	}
}

func (s *Server) abandonIfEmpty(matchID string) {
	s.abandonMu.Lock()
	delete(s.abandon, matchID)
	s.abandonMu.Unlock()

	if s.hub.seats(matchID) > 0 {
		return
	}
	err := s.matches.Abort(matchID, abandonReason)
	switch {
	case err == nil:
		log.Printf("🚪 对局 %s 无人在线超过 %s，已中止", matchID, s.config.Game.AbandonTimeoutDuration())
	case errors.Is(err, apperrors.ErrGameAlreadyOver), errors.Is(err, apperrors.ErrMatchNotFound):
	default:
		log.Printf("⚠️ 对局 %s 中止失败: %v", matchID, err)
	}
}

// watchMatch 对局结束后落库，保留期过后清理会话和连接
func (s *Server) watchMatch(m *match.Match) {
	<-m.Done()

	ctx, cancel := context.WithTimeout(context.Background(), eventWriteTimeout)
	if l := s.eventLogFor(m.ID); l != nil {
		l.Flush(ctx)
	}
	cancel()

	if retention := s.config.Game.RetentionDuration(); retention > 0 {
		timer := time.NewTimer(retention)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-s.ctx.Done():
		}
	}

	s.cancelAbandon(m.ID)
	s.limiter.forgetMatch(m.ID)
	s.closeEventLog(m.ID)
	s.sessions.DeleteMatch(m.ID)
	s.hub.drop(m.ID)
	log.Printf("🧹 对局 %s 已清理", m.ID)
}

// monitorStats 定期监控服务器状态
func (s *Server) monitorStats() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-s.ctx.Done():
			return
		}

		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		log.Printf("📊 [监控] 对局: %d/%d | 在线座位: %d | 会话: %d/%d | Goroutines: %d | 活跃连接: %d/%d | 内存: %.2f MB",
			s.matches.ActiveCount(),
			s.matches.Count(),
			s.hub.count(),
			s.sessions.OnlineCount(),
			s.sessions.Count(),
			runtime.NumGoroutine(),
			len(s.semaphore),
			s.maxConnections,
			float64(m.Alloc)/1024/1024)
	}
}

// Shutdown 中止所有对局并关闭存储连接
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		log.Println("🛑 正在关闭服务器...")
		s.cancel()

		s.abandonMu.Lock()
		for id, t := range s.abandon {
			t.Stop()
			delete(s.abandon, id)
		}
		s.abandonMu.Unlock()

		s.waitMatches(5 * time.Second)

		s.logsMu.Lock()
		ids := make([]string, 0, len(s.logs))
		for id := range s.logs {
			ids = append(ids, id)
		}
		s.logsMu.Unlock()
		for _, id := range ids {
			s.closeEventLog(id)
		}

		if err := s.redis.Close(); err != nil {
			log.Printf("关闭 Redis 连接失败: %v", err)
		}
		log.Println("✅ 服务器已关闭")
	})
}

// waitMatches 等待对局协程处理取消，最多等待 timeout
func (s *Server) waitMatches(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for s.matches.ActiveCount() > 0 {
		if time.Now().After(deadline) {
			log.Printf("⚠️ 仍有 %d 局未结束，强制关闭", s.matches.ActiveCount())
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}
