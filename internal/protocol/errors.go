package protocol

// 错误码
const (
	ErrCodeUnknown    = 1000
	ErrCodeInvalidMsg = 1001
	ErrCodeRateLimit  = 1002

	ErrCodeMatchNotFound = 2001
	ErrCodeSeatNotFound  = 2002

	ErrCodeIllegalAction       = 3001
	ErrCodeNotYourTurn         = 3002
	ErrCodeCardNotOwned        = 3003
	ErrCodeInvalidTarget       = 3004
	ErrCodeInsufficientCards   = 3005
	ErrCodeEmptyPile           = 3006
	ErrCodeGameAlreadyOver     = 3007
	ErrCodeInsufficientPlayers = 3008

	ErrCodeDeckExhausted = 5001
)

// ErrorMessages 错误码对应的消息
var ErrorMessages = map[int]string{
	ErrCodeUnknown:             "unknown error",
	ErrCodeInvalidMsg:          "invalid message format",
	ErrCodeRateLimit:           "too many messages",
	ErrCodeMatchNotFound:       "match not found",
	ErrCodeSeatNotFound:        "seat not found",
	ErrCodeIllegalAction:       "illegal action",
	ErrCodeNotYourTurn:         "not your turn",
	ErrCodeCardNotOwned:        "card not owned",
	ErrCodeInvalidTarget:       "invalid target",
	ErrCodeInsufficientCards:   "insufficient cards",
	ErrCodeEmptyPile:           "empty pile",
	ErrCodeGameAlreadyOver:     "game already over",
	ErrCodeInsufficientPlayers: "need 2 to 8 players",
	ErrCodeDeckExhausted:       "deck exhausted",
}
