package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/palemoky/exploding-kittens/internal/apperrors"
	"github.com/palemoky/exploding-kittens/internal/protocol"
)

// 二进制信封与 protobuf 消息兼容：
//
//	message Envelope {
//	  string type = 1;
//	  bytes payload = 2;
//	}
const (
	fieldType    protowire.Number = 1
	fieldPayload protowire.Number = 2
)

// EncodeBinary 将消息编码为 protobuf 信封
func EncodeBinary(m *protocol.Message) ([]byte, error) {
	if m.Type == "" {
		return nil, fmt.Errorf("%w: missing type", apperrors.ErrInvalidMessage)
	}
	buf := make([]byte, 0, len(m.Type)+len(m.Payload)+8)
	buf = protowire.AppendTag(buf, fieldType, protowire.BytesType)
	buf = protowire.AppendString(buf, string(m.Type))
	if len(m.Payload) > 0 {
		buf = protowire.AppendTag(buf, fieldPayload, protowire.BytesType)
		buf = protowire.AppendBytes(buf, m.Payload)
	}
	return buf, nil
}

// DecodeBinary 从 protobuf 信封解码消息，未知字段被跳过
func DecodeBinary(data []byte) (*protocol.Message, error) {
	msg := GetMessage()
	fail := func(reason string) (*protocol.Message, error) {
		PutMessage(msg)
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidMessage, reason)
	}

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fail(protowire.ParseError(n).Error())
		}
		data = data[n:]

		switch {
		case num == fieldType && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return fail(protowire.ParseError(n).Error())
			}
			msg.Type = protocol.MessageType(v)
			data = data[n:]
		case num == fieldPayload && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fail(protowire.ParseError(n).Error())
			}
			msg.Payload = append(json.RawMessage(nil), v...) // 复制 payload 避免引用
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fail(protowire.ParseError(n).Error())
			}
			data = data[n:]
		}
	}

	if msg.Type == "" {
		return fail("missing type")
	}
	return msg, nil
}

// Encoding 连接使用的帧编码
type Encoding int

const (
	EncodingJSON Encoding = iota
	EncodingBinary
)

// ParseEncoding 解析 ?encoding= 参数，空串表示 JSON
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "", "json":
		return EncodingJSON, nil
	case "binary", "protobuf":
		return EncodingBinary, nil
	}
	return 0, fmt.Errorf("%w: unknown encoding %q", apperrors.ErrInvalidMessage, s)
}

func (e Encoding) String() string {
	if e == EncodingBinary {
		return "binary"
	}
	return "json"
}

// Marshal 按连接编码序列化消息
func (e Encoding) Marshal(m *protocol.Message) ([]byte, error) {
	if e == EncodingBinary {
		return EncodeBinary(m)
	}
	return Encode(m)
}

// Unmarshal 按连接编码解析消息
func (e Encoding) Unmarshal(data []byte) (*protocol.Message, error) {
	if e == EncodingBinary {
		return DecodeBinary(data)
	}
	return Decode(data)
}
