package card

import (
	"fmt"
	"slices"

	"github.com/palemoky/exploding-kittens/internal/apperrors"
)

// Hand 玩家手牌。selection 是待出的一组牌（对子、三条等），出牌结算或放弃后清空。
type Hand struct {
	cards     []Card
	selection []Card
}

// NewHand creates a hand holding cards.
func NewHand(cards ...Card) *Hand {
	return &Hand{cards: slices.Clone(cards)}
}

// Len 手牌张数
func (h *Hand) Len() int {
	return len(h.cards)
}

// Cards returns a copy of the hand.
func (h *Hand) Cards() []Card {
	return slices.Clone(h.cards)
}

// Add 加入手牌
func (h *Hand) Add(cards ...Card) {
	h.cards = append(h.cards, cards...)
}

// Has reports whether the hand holds the card with the given id.
func (h *Hand) Has(id int) bool {
	return slices.ContainsFunc(h.cards, func(c Card) bool { return c.ID == id })
}

// Get returns the held card with the given id.
func (h *Hand) Get(id int) (Card, bool) {
	i := slices.IndexFunc(h.cards, func(c Card) bool { return c.ID == id })
	if i < 0 {
		return Card{}, false
	}
	return h.cards[i], true
}

// CountKind 统计某种牌的张数
func (h *Hand) CountKind(k Kind) int {
	n := 0
	for _, c := range h.cards {
		if c.Kind == k {
			n++
		}
	}
	return n
}

// FindKind returns the first held card of kind k.
func (h *Hand) FindKind(k Kind) (Card, bool) {
	i := slices.IndexFunc(h.cards, func(c Card) bool { return c.Kind == k })
	if i < 0 {
		return Card{}, false
	}
	return h.cards[i], true
}

// Remove 按 ID 移除一张牌
func (h *Hand) Remove(id int) (Card, error) {
	i := slices.IndexFunc(h.cards, func(c Card) bool { return c.ID == id })
	if i < 0 {
		return Card{}, fmt.Errorf("%w: card %d", apperrors.ErrCardNotOwned, id)
	}
	c := h.cards[i]
	h.cards = slices.Delete(h.cards, i, i+1)
	return c, nil
}

// RemoveAt removes the card at position i.
func (h *Hand) RemoveAt(i int) Card {
	c := h.cards[i]
	h.cards = slices.Delete(h.cards, i, i+1)
	return c
}

// TakeAll empties the hand and clears any selection.
func (h *Hand) TakeAll() []Card {
	cards := h.cards
	h.cards = nil
	h.selection = nil
	return cards
}

// Select 选中一组待出的牌。ID 必须都在手牌中且不重复，否则选择不变。
func (h *Hand) Select(ids []int) ([]Card, error) {
	selected := make([]Card, 0, len(ids))
	for i, id := range ids {
		if slices.Contains(ids[:i], id) {
			return nil, fmt.Errorf("%w: card %d selected twice", apperrors.ErrIllegalAction, id)
		}
		c, ok := h.Get(id)
		if !ok {
			return nil, fmt.Errorf("%w: card %d", apperrors.ErrCardNotOwned, id)
		}
		selected = append(selected, c)
	}
	h.selection = selected
	return slices.Clone(selected), nil
}

// Selection returns the current selection.
func (h *Hand) Selection() []Card {
	return slices.Clone(h.selection)
}

// ClearSelection 放弃当前选择
func (h *Hand) ClearSelection() {
	h.selection = nil
}

// CommitSelection removes the selected cards from the hand and returns them.
func (h *Hand) CommitSelection() []Card {
	played := h.selection
	for _, c := range played {
		if i := slices.IndexFunc(h.cards, func(x Card) bool { return x.ID == c.ID }); i >= 0 {
			h.cards = slices.Delete(h.cards, i, i+1)
		}
	}
	h.selection = nil
	return played
}
