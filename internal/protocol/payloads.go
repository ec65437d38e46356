package protocol

import "encoding/json"

// 协议层只使用基础类型，卡牌种类用字符串表示（与 card.Kind 的文本形式一致）

// --- 客户端请求 Payloads ---

// PingPayload 心跳请求
type PingPayload struct {
	Timestamp int64 `json:"timestamp"` // 客户端时间戳（毫秒）
}

// PlayCardsPayload 出牌请求
type PlayCardsPayload struct {
	CardIDs     []int  `json:"card_ids"`
	Target      *int   `json:"target,omitempty"`       // Attack / Favor / 对子 / 三条的目标座位
	NamedKind   string `json:"named_kind,omitempty"`   // 三条点名的牌种
	InsertIndex int    `json:"insert_index,omitempty"` // Defuse 时炸弹放回的位置，0 为牌堆顶
}

// GiveCardPayload Favor 响应
type GiveCardPayload struct {
	CardID int `json:"card_id"`
}

// --- 服务端响应 Payloads ---

// ConnectedPayload 连接成功响应
type ConnectedPayload struct {
	MatchID  string `json:"match_id"`
	Seat     int    `json:"seat"`
	PlayerID string `json:"player_id"`
}

// PongPayload 心跳响应
type PongPayload struct {
	ClientTimestamp int64 `json:"client_timestamp"` // 客户端发送的时间戳
	ServerTimestamp int64 `json:"server_timestamp"` // 服务器时间戳（毫秒）
}

// EventPayload 一条对局事件。Data 是事件本身的 JSON，客户端按 Seq 去重。
type EventPayload struct {
	Seq  uint64          `json:"seq"`
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// StateSyncPayload 状态同步，State 只包含接收者自己的手牌
type StateSyncPayload struct {
	MatchID string          `json:"match_id"`
	Seat    int             `json:"seat"`
	State   json.RawMessage `json:"state"`
}

// ErrorPayload 错误响应
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// --- HTTP ---

// PlayerEntry 大厅已排好座位的玩家
type PlayerEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateMatchRequest POST /matches
type CreateMatchRequest struct {
	Players []PlayerEntry `json:"players"`
}

// SeatToken 每个座位的连接令牌
type SeatToken struct {
	Seat     int    `json:"seat"`
	PlayerID string `json:"player_id"`
	Token    string `json:"token"`
}

// CreateMatchResponse POST /matches 的响应
type CreateMatchResponse struct {
	MatchID string      `json:"match_id"`
	Seats   []SeatToken `json:"seats"`
}
