package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/palemoky/exploding-kittens/internal/apperrors"
	"github.com/palemoky/exploding-kittens/internal/game/engine"
	"github.com/palemoky/exploding-kittens/internal/protocol"
)

const maxRequestBody = 64 << 10

// handleCreateMatch 创建一局并为每个座位签发连接令牌
func (s *Server) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var req protocol.CreateMatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", apperrors.ErrInvalidMessage, err))
		return
	}

	players := make([]engine.PlayerInfo, len(req.Players))
	for i, p := range req.Players {
		players[i] = engine.PlayerInfo{ID: p.ID, Name: p.Name}
		if players[i].ID == "" {
			players[i].ID = uuid.NewString()
		}
		if players[i].Name == "" {
			players[i].Name = fmt.Sprintf("Player %d", i+1)
		}
	}

	m, err := s.createMatch(players)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, apperrors.ErrInsufficientPlayers) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}

	resp := protocol.CreateMatchResponse{MatchID: m.ID, Seats: make([]protocol.SeatToken, 0, len(players))}
	for seat, p := range players {
		sess, err := s.sessions.CreateSession(r.Context(), m.ID, seat, p.ID, p.Name)
		if err != nil {
			_ = m.Abort("session store unavailable")
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		resp.Seats = append(resp.Seats, protocol.SeatToken{Seat: seat, PlayerID: p.ID, Token: sess.Token})
	}

	writeJSON(w, http.StatusCreated, resp)
}

// handleGetMatch 返回公开状态。对局已从内存回收时读取 Redis 中的最后快照。
func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if m, err := s.matches.Get(id); err == nil {
		writeJSON(w, http.StatusOK, m.Snapshot())
		return
	}

	data, err := s.store.LoadSnapshot(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if data == nil {
		writeError(w, http.StatusNotFound, apperrors.ErrMatchNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleHealth 健康检查接口
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("响应编码错误: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, protocol.ErrorPayload{
		Code:    apperrors.Code(err),
		Message: err.Error(),
	})
}
