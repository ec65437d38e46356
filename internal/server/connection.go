package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/palemoky/exploding-kittens/internal/apperrors"
	"github.com/palemoky/exploding-kittens/internal/game/engine"
	"github.com/palemoky/exploding-kittens/internal/game/match"
	"github.com/palemoky/exploding-kittens/internal/protocol"
	"github.com/palemoky/exploding-kittens/internal/protocol/codec"
)

// handleWebSocket 座位连接：/ws?token=...&since=<seq>&encoding=json|binary
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// 获取真实客户端IP
	ip := clientIP(r)

	// 连接数限制检查，信号量在断开时释放
	select {
	case s.semaphore <- struct{}{}:
	default:
		log.Printf("🚫 达到最大连接数限制 (%d), IP: %s", s.maxConnections, ip)
		http.Error(w, "Server Full", http.StatusServiceUnavailable)
		return
	}
	upgraded := false
	defer func() {
		if !upgraded {
			<-s.semaphore
		}
	}()

	// 来源验证
	if !s.origins.allow(r) {
		log.Printf("🚫 来源验证失败: %s (IP: %s)", r.Header.Get("Origin"), ip)
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	q := r.URL.Query()
	sess, err := s.sessions.GetSessionByToken(r.Context(), q.Get("token"))
	if err != nil {
		log.Printf("⚠️ 会话查询失败: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if sess == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	m, err := s.matches.Get(sess.MatchID)
	if err != nil {
		http.Error(w, "Match not found", http.StatusNotFound)
		return
	}

	var since uint64
	if v := q.Get("since"); v != "" {
		since, err = strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
	}
	enc, err := codec.ParseEncoding(q.Get("encoding"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket 升级失败: %v", err)
		return
	}
	upgraded = true

	client := NewClient(s, conn, sess, enc)
	client.IP = ip
	if prev := s.hub.attach(client); prev != nil {
		log.Printf("🔁 对局 %s 座位 %d 的旧连接被顶替", sess.MatchID, sess.Seat)
		prev.Close()
	}
	s.cancelAbandon(sess.MatchID)
	go client.WritePump()

	s.sessions.SetOnline(s.ctx, sess.Token)
	client.SendMessage(codec.MustNewMessage(protocol.MsgConnected, protocol.ConnectedPayload{
		MatchID:  sess.MatchID,
		Seat:     sess.Seat,
		PlayerID: sess.PlayerID,
	}))

	if err := m.SetConnection(sess.Seat, engine.Connected); err != nil && !errors.Is(err, apperrors.ErrGameAlreadyOver) {
		log.Printf("⚠️ 对局 %s 座位 %d 恢复在线失败: %v", sess.MatchID, sess.Seat, err)
	}
	s.syncClient(client, m, since)

	log.Printf("✅ 玩家 %s 已连接对局 %s 座位 %d (%s)", sess.PlayerName, sess.MatchID, sess.Seat, enc)

	go client.ReadPump()
}

// syncClient 补发 since 之后对该座位可见的事件，再发送当前状态
func (s *Server) syncClient(c *Client, m *match.Match, since uint64) {
	ctx, cancel := context.WithTimeout(s.ctx, eventWriteTimeout)
	defer cancel()

	// 先把已发布的事件落库，之后发布的事件会进入连接的暂存区
	if l := s.eventLogFor(c.MatchID()); l != nil {
		l.Flush(ctx)
	}

	c.replayed(since)
	events, err := s.store.EventsSince(ctx, c.MatchID(), since, c.Seat())
	if err != nil {
		log.Printf("⚠️ 对局 %s 事件补发失败: %v", c.MatchID(), err)
	}
	for _, ev := range events {
		msg, err := eventMessage(ev.Seq, ev.Kind, ev.Data)
		if err != nil {
			continue
		}
		c.SendMessage(msg)
		c.replayed(ev.Seq)
	}

	snap, err := m.SnapshotFor(c.Seat())
	if err == nil {
		if state, err := json.Marshal(snap); err == nil {
			c.SendMessage(codec.MustNewMessage(protocol.MsgStateSync, protocol.StateSyncPayload{
				MatchID: c.MatchID(),
				Seat:    c.Seat(),
				State:   state,
			}))
		}
	}

	c.finishSync()
}

// handleDisconnect 连接断开后座位转为托管，手牌和座位保留
func (s *Server) handleDisconnect(c *Client) {
	defer func() { <-s.semaphore }()

	if s.hub.detach(c) {
		s.sessions.SetOffline(s.ctx, c.session.Token)
		err := s.matches.SetConnection(c.MatchID(), c.Seat(), engine.StandIn)
		if err != nil && !errors.Is(err, apperrors.ErrGameAlreadyOver) && !errors.Is(err, apperrors.ErrMatchNotFound) {
			log.Printf("⚠️ 对局 %s 座位 %d 转托管失败: %v", c.MatchID(), c.Seat(), err)
		}
		log.Printf("📴 对局 %s 座位 %d 已断开，转为托管", c.MatchID(), c.Seat())
		s.scheduleAbandon(c.MatchID())
	}
	c.Close()
}
