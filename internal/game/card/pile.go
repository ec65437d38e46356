package card

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/palemoky/exploding-kittens/internal/apperrors"
)

// Pile 有序牌堆，下标 0 为堆顶。摸牌堆与弃牌堆共用。
type Pile struct {
	cards []Card
}

// NewPile creates a pile whose first element is the top card.
func NewPile(cards []Card) *Pile {
	return &Pile{cards: slices.Clone(cards)}
}

// Len 牌堆张数
func (p *Pile) Len() int {
	return len(p.cards)
}

// Cards returns a copy of the pile, top first.
func (p *Pile) Cards() []Card {
	return slices.Clone(p.cards)
}

// Top returns the top card without removing it.
func (p *Pile) Top() (Card, bool) {
	if len(p.cards) == 0 {
		return Card{}, false
	}
	return p.cards[0], true
}

// Shuffle 均匀随机洗牌，0 或 1 张时不做任何事
func (p *Pile) Shuffle(rng *rand.Rand) {
	if len(p.cards) < 2 {
		return
	}
	shuffle := rand.Shuffle
	if rng != nil {
		shuffle = rng.Shuffle
	}
	shuffle(len(p.cards), func(i, j int) {
		p.cards[i], p.cards[j] = p.cards[j], p.cards[i]
	})
}

// Draw 摸走堆顶
func (p *Pile) Draw() (Card, error) {
	if len(p.cards) == 0 {
		return Card{}, apperrors.ErrEmptyPile
	}
	c := p.cards[0]
	p.cards = slices.Delete(p.cards, 0, 1)
	return c, nil
}

// PeekTop 查看堆顶 k 张，不改变牌堆
func (p *Pile) PeekTop(k int) ([]Card, error) {
	if k < 0 || k > len(p.cards) {
		return nil, fmt.Errorf("%w: want %d, have %d", apperrors.ErrInsufficientCards, k, len(p.cards))
	}
	return slices.Clone(p.cards[:k]), nil
}

// InsertAt 把牌插到距堆顶 index 的位置，越界时夹到 [0, Len()]
func (p *Pile) InsertAt(c Card, index int) {
	index = max(0, min(index, len(p.cards)))
	p.cards = slices.Insert(p.cards, index, c)
}

// PushTop places cards on top, the last argument ending up on top.
func (p *Pile) PushTop(cards ...Card) {
	for _, c := range cards {
		p.cards = slices.Insert(p.cards, 0, c)
	}
}

// TakeAllButTop removes and returns every card except the top one.
func (p *Pile) TakeAllButTop() []Card {
	if len(p.cards) < 2 {
		return nil
	}
	rest := slices.Clone(p.cards[1:])
	p.cards = p.cards[:1]
	return rest
}

// Append adds cards at the bottom.
func (p *Pile) Append(cards ...Card) {
	p.cards = append(p.cards, cards...)
}

// RemoveKind removes the first card of kind k, searching from the top.
func (p *Pile) RemoveKind(k Kind) (Card, bool) {
	i := slices.IndexFunc(p.cards, func(c Card) bool { return c.Kind == k })
	if i < 0 {
		return Card{}, false
	}
	c := p.cards[i]
	p.cards = slices.Delete(p.cards, i, i+1)
	return c, true
}
