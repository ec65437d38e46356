package apperrors

import (
	"errors"

	"github.com/palemoky/exploding-kittens/internal/protocol"
)

// GameError 游戏错误，Code 对应 protocol 中的错误码
type GameError struct {
	Code    int
	Message string
	Parent  *GameError // broader kind this error refines, matched by errors.Is
}

func (e *GameError) Error() string {
	return e.Message
}

func (e *GameError) Unwrap() error {
	if e.Parent == nil {
		return nil
	}
	return e.Parent
}

// 预定义错误
var (
	ErrIllegalAction       = &GameError{Code: protocol.ErrCodeIllegalAction, Message: "illegal action"}
	ErrNotYourTurn         = &GameError{Code: protocol.ErrCodeNotYourTurn, Message: "not your turn", Parent: ErrIllegalAction}
	ErrCardNotOwned        = &GameError{Code: protocol.ErrCodeCardNotOwned, Message: "card not owned"}
	ErrInvalidTarget       = &GameError{Code: protocol.ErrCodeInvalidTarget, Message: "invalid target"}
	ErrInsufficientCards   = &GameError{Code: protocol.ErrCodeInsufficientCards, Message: "insufficient cards"}
	ErrEmptyPile           = &GameError{Code: protocol.ErrCodeEmptyPile, Message: "empty pile"}
	ErrGameAlreadyOver     = &GameError{Code: protocol.ErrCodeGameAlreadyOver, Message: "game already over"}
	ErrInsufficientPlayers = &GameError{Code: protocol.ErrCodeInsufficientPlayers, Message: "need 2 to 8 players"}
	ErrDeckExhausted       = &GameError{Code: protocol.ErrCodeDeckExhausted, Message: "deck exhausted: card accounting violated"}
	ErrMatchNotFound       = &GameError{Code: protocol.ErrCodeMatchNotFound, Message: "match not found"}
	ErrSeatNotFound        = &GameError{Code: protocol.ErrCodeSeatNotFound, Message: "seat not found"}
	ErrInvalidMessage      = &GameError{Code: protocol.ErrCodeInvalidMsg, Message: "invalid message"}
)

// Code extracts the protocol error code from err, falling back to ErrCodeUnknown.
func Code(err error) int {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return protocol.ErrCodeUnknown
}

// IsFatal reports whether err signals a card-accounting bug rather than a player mistake.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDeckExhausted)
}
