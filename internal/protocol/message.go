package protocol

import "encoding/json"

// Message 基础消息结构
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessageType 消息类型
type MessageType string

// 客户端 → 服务端 消息类型
const (
	MsgPing MessageType = "ping" // 心跳 ping

	// 游戏操作
	MsgPlayCards MessageType = "play_cards" // 出牌（含 Defuse 放回炸弹）
	MsgDraw      MessageType = "draw"       // 摸牌结束回合
	MsgPass      MessageType = "pass"       // 反应窗口内放弃 Nope
	MsgGiveCard  MessageType = "give_card"  // 响应 Favor
)

// 服务端 → 客户端 消息类型
const (
	MsgConnected MessageType = "connected"  // 连接成功
	MsgPong      MessageType = "pong"       // 心跳 pong
	MsgEvent     MessageType = "event"      // 对局事件
	MsgStateSync MessageType = "state_sync" // 当前状态（连接或重连后）

	// 错误
	MsgError MessageType = "error" // 错误消息
)

// IsAction reports whether t is a game action that must be routed to a match.
func (t MessageType) IsAction() bool {
	switch t {
	case MsgPlayCards, MsgDraw, MsgPass, MsgGiveCard:
		return true
	}
	return false
}
