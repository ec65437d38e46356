package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis key 前缀
	eventKeyPrefix       = "match:events:"
	snapshotKeyPrefix    = "match:snapshot:"
	matchSessionsPrefix  = "match:sessions:"
	sessionKeyPrefix     = "session:"
	defaultDataRetention = 24 * time.Hour
)

// StoredEvent 事件日志中的一条记录。Recipients 为空表示所有座位可见。
type StoredEvent struct {
	Seq        uint64          `json:"seq"`
	Kind       string          `json:"kind"`
	Recipients []int           `json:"recipients,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// VisibleTo reports whether seat may receive the event. A negative seat sees everything.
func (e StoredEvent) VisibleTo(seat int) bool {
	return seat < 0 || len(e.Recipients) == 0 || slices.Contains(e.Recipients, seat)
}

// RedisStore Redis 存储：事件日志、重连会话、压缩快照
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore 创建 Redis 存储，ttl 为 0 时使用默认保留时间
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultDataRetention
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Ping 检查连接
func (rs *RedisStore) Ping(ctx context.Context) error {
	return rs.client.Ping(ctx).Err()
}

// --- 事件日志 ---

// AppendEvent 追加一条事件到对局日志
func (rs *RedisStore) AppendEvent(ctx context.Context, matchID string, ev StoredEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	key := eventKeyPrefix + matchID
	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.Expire(ctx, key, rs.ttl)
		return nil
	})
	return err
}

// EventsSince 返回 seq 大于 since 且 seat 可见的事件，按 seq 升序
func (rs *RedisStore) EventsSince(ctx context.Context, matchID string, since uint64, seat int) ([]StoredEvent, error) {
	raw, err := rs.client.LRange(ctx, eventKeyPrefix+matchID, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	events := make([]StoredEvent, 0, len(raw))
	for _, item := range raw {
		var ev StoredEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("反序列化事件失败: %w", err)
		}
		if ev.Seq > since && ev.VisibleTo(seat) {
			events = append(events, ev)
		}
	}
	return events, nil
}

// EventCount 对局日志中的事件数
func (rs *RedisStore) EventCount(ctx context.Context, matchID string) (int64, error) {
	return rs.client.LLen(ctx, eventKeyPrefix+matchID).Result()
}

// --- 快照 ---

// SaveSnapshot 压缩并保存对局的公开快照
func (rs *RedisStore) SaveSnapshot(ctx context.Context, matchID string, snapshot []byte) error {
	compressed, err := compress(snapshot)
	if err != nil {
		return err
	}
	return rs.client.Set(ctx, snapshotKeyPrefix+matchID, compressed, rs.ttl).Err()
}

// LoadSnapshot 读取并解压快照，不存在时返回 nil
func (rs *RedisStore) LoadSnapshot(ctx context.Context, matchID string) ([]byte, error) {
	data, err := rs.client.Get(ctx, snapshotKeyPrefix+matchID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return decompress(data)
}

// --- 会话存储 ---

// SessionData 座位会话（用于 Redis 序列化）
type SessionData struct {
	Token          string `json:"token"`
	MatchID        string `json:"match_id"`
	Seat           int    `json:"seat"`
	PlayerID       string `json:"player_id"`
	PlayerName     string `json:"player_name"`
	IsOnline       bool   `json:"is_online"`
	DisconnectedAt int64  `json:"disconnected_at,omitempty"`
}

// SaveSession 保存会话到 Redis，并登记到对局的会话集合
func (rs *RedisStore) SaveSession(ctx context.Context, session *SessionData) error {
	data := map[string]any{
		"match_id":    session.MatchID,
		"seat":        session.Seat,
		"player_id":   session.PlayerID,
		"player_name": session.PlayerName,
		"is_online":   session.IsOnline,
	}
	if session.DisconnectedAt != 0 {
		data["disconnected_at"] = session.DisconnectedAt
	}

	key := sessionKeyPrefix + session.Token
	setKey := matchSessionsPrefix + session.MatchID
	_, err := rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, data)
		pipe.Expire(ctx, key, rs.ttl)
		pipe.SAdd(ctx, setKey, session.Token)
		pipe.Expire(ctx, setKey, rs.ttl)
		return nil
	})
	return err
}

// LoadSession 从 Redis 加载会话，不存在时返回 nil
func (rs *RedisStore) LoadSession(ctx context.Context, token string) (*SessionData, error) {
	data, err := rs.client.HGetAll(ctx, sessionKeyPrefix+token).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	seat, err := strconv.Atoi(data["seat"])
	if err != nil {
		return nil, fmt.Errorf("会话 %s 座位无效: %w", token, err)
	}
	session := &SessionData{
		Token:      token,
		MatchID:    data["match_id"],
		Seat:       seat,
		PlayerID:   data["player_id"],
		PlayerName: data["player_name"],
		IsOnline:   data["is_online"] == "1",
	}
	if v, ok := data["disconnected_at"]; ok {
		session.DisconnectedAt, _ = strconv.ParseInt(v, 10, 64)
	}
	return session, nil
}

// SetSessionOnline 更新会话在线状态
func (rs *RedisStore) SetSessionOnline(ctx context.Context, token string, online bool) error {
	key := sessionKeyPrefix + token
	if online {
		_, err := rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "is_online", true)
			pipe.HDel(ctx, key, "disconnected_at")
			return nil
		})
		return err
	}
	return rs.client.HSet(ctx, key, "is_online", false, "disconnected_at", time.Now().Unix()).Err()
}

// DeleteMatch 删除对局的事件日志、快照和所有会话
func (rs *RedisStore) DeleteMatch(ctx context.Context, matchID string) error {
	setKey := matchSessionsPrefix + matchID
	tokens, err := rs.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return err
	}

	keys := []string{eventKeyPrefix + matchID, snapshotKeyPrefix + matchID, setKey}
	for _, token := range tokens {
		keys = append(keys, sessionKeyPrefix+token)
	}
	return rs.client.Del(ctx, keys...).Err()
}
