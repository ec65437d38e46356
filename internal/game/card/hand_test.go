package card

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/exploding-kittens/internal/apperrors"
)

func testHand() *Hand {
	return NewHand(
		Card{ID: 1, Kind: Tacocat},
		Card{ID: 2, Kind: Tacocat},
		Card{ID: 3, Kind: Nope},
		Card{ID: 4, Kind: Defuse},
	)
}

func TestHandSelect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ids     []int
		wantErr error
		wantLen int
	}{
		{name: "Single card", ids: []int{3}, wantLen: 1},
		{name: "Pair", ids: []int{1, 2}, wantLen: 2},
		{name: "Card not held", ids: []int{1, 99}, wantErr: apperrors.ErrCardNotOwned},
		{name: "Same card twice", ids: []int{1, 1}, wantErr: apperrors.ErrIllegalAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := testHand()
			selected, err := h.Select(tt.ids)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, h.Selection())
				return
			}
			require.NoError(t, err)
			assert.Len(t, selected, tt.wantLen)
			assert.Equal(t, selected, h.Selection())
			assert.Equal(t, 4, h.Len(), "select does not remove cards")
		})
	}
}

func TestHandCommitSelection(t *testing.T) {
	t.Parallel()

	h := testHand()
	_, err := h.Select([]int{1, 2})
	require.NoError(t, err)

	played := h.CommitSelection()
	assert.Len(t, played, 2)
	assert.Equal(t, 2, h.Len())
	assert.False(t, h.Has(1))
	assert.False(t, h.Has(2))
	assert.Empty(t, h.Selection())
}

func TestHandFailedSelectKeepsPrevious(t *testing.T) {
	t.Parallel()

	h := testHand()
	_, err := h.Select([]int{3})
	require.NoError(t, err)

	_, err = h.Select([]int{42})
	require.Error(t, err)
	assert.Equal(t, []Card{{ID: 3, Kind: Nope}}, h.Selection())
}

func TestHandRemove(t *testing.T) {
	t.Parallel()

	h := testHand()
	c, err := h.Remove(4)
	require.NoError(t, err)
	assert.Equal(t, Defuse, c.Kind)
	assert.Equal(t, 0, h.CountKind(Defuse))

	_, err = h.Remove(4)
	assert.ErrorIs(t, err, apperrors.ErrCardNotOwned)
}

func TestHandQueries(t *testing.T) {
	t.Parallel()

	h := testHand()
	assert.Equal(t, 2, h.CountKind(Tacocat))

	c, ok := h.FindKind(Nope)
	require.True(t, ok)
	assert.Equal(t, 3, c.ID)

	_, ok = h.FindKind(Attack)
	assert.False(t, ok)

	cards := h.Cards()
	cards[0].Kind = Attack
	got, _ := h.Get(1)
	assert.Equal(t, Tacocat, got.Kind, "Cards returns a copy")

	all := h.TakeAll()
	assert.Len(t, all, 4)
	assert.Zero(t, h.Len())
}
