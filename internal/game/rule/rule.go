package rule

import (
	"fmt"

	"github.com/palemoky/exploding-kittens/internal/apperrors"
	"github.com/palemoky/exploding-kittens/internal/game/card"
)

// PlayType 出牌类型
type PlayType int

const (
	Invalid PlayType = iota
	Single           // 单张功能牌
	Pair             // 两张同种牌：随机抽对方一张
	Triple           // 三张同种牌：点名索要一种牌
)

var playTypeNames = map[PlayType]string{
	Single: "single",
	Pair:   "pair",
	Triple: "triple",
}

func (t PlayType) String() string {
	if name, ok := playTypeNames[t]; ok {
		return name
	}
	return "invalid"
}

// Play 解析后的一次出牌
type Play struct {
	Type  PlayType
	Kind  card.Kind // 单张时为该牌；对子/三条时为组成它的牌
	Cards []card.Card
}

// NeedsTarget reports whether the play must name a target seat.
func (p Play) NeedsTarget() bool {
	switch p.Type {
	case Pair, Triple:
		return true
	case Single:
		return p.Kind.Category() == card.Targeted
	default:
		return false
	}
}

// Classify 判断一组牌能否作为一次主动出牌
func Classify(cards []card.Card) (Play, error) {
	if len(cards) == 0 {
		return Play{}, fmt.Errorf("%w: no cards selected", apperrors.ErrIllegalAction)
	}
	kind := cards[0].Kind
	for _, c := range cards[1:] {
		if c.Kind != kind {
			return Play{}, fmt.Errorf("%w: mixed kinds %s and %s", apperrors.ErrIllegalAction, kind, c.Kind)
		}
	}

	switch len(cards) {
	case 1:
		return classifySingle(cards)
	case 2, 3:
		if kind == card.ExplodingKitten || kind == card.Defuse {
			return Play{}, fmt.Errorf("%w: %s cannot be combined", apperrors.ErrIllegalAction, kind)
		}
		t := Pair
		if len(cards) == 3 {
			t = Triple
		}
		return Play{Type: t, Kind: kind, Cards: cards}, nil
	default:
		return Play{}, fmt.Errorf("%w: %d cards is not a valid combination", apperrors.ErrIllegalAction, len(cards))
	}
}

func classifySingle(cards []card.Card) (Play, error) {
	kind := cards[0].Kind
	switch kind.Category() {
	case card.Immediate, card.Targeted, card.Counter:
		return Play{Type: Single, Kind: kind, Cards: cards}, nil
	case card.Save:
		// 只有在摸到炸弹后才能打出，由引擎在 AwaitingDefuse 阶段单独处理
		return Play{}, fmt.Errorf("%w: defuse only after drawing an exploding kitten", apperrors.ErrIllegalAction)
	case card.Lethal:
		return Play{}, fmt.Errorf("%w: exploding kitten cannot be played", apperrors.ErrIllegalAction)
	default:
		return Play{}, fmt.Errorf("%w: a single %s has no effect", apperrors.ErrIllegalAction, kind)
	}
}
