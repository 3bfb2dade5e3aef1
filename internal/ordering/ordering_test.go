package ordering

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/inkwell/internal/model"
)

func chapters(titles ...string) []model.Chapter {
	out := make([]model.Chapter, len(titles))
	for i, title := range titles {
		out[i] = model.Chapter{ID: int64(i + 1), Title: title, Order: i + 1}
	}
	return out
}

func titles(cs []model.Chapter) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Title
	}
	return out
}

func orders(cs []model.Chapter) []int {
	out := make([]int, len(cs))
	for i, c := range cs {
		out[i] = c.Order
	}
	return out
}

func TestMove_Forward(t *testing.T) {
	got, err := Move(chapters("a", "b", "c", "d"), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a", "d"}, titles(got))
	assert.Equal(t, []int{1, 2, 3, 4}, orders(got))
}

func TestMove_Backward(t *testing.T) {
	got, err := Move(chapters("a", "b", "c", "d"), 3, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "d", "b", "c"}, titles(got))
	assert.Equal(t, []int{1, 2, 3, 4}, orders(got))
}

func TestMove_SamePositionIsNoop(t *testing.T) {
	in := chapters("a", "b", "c")
	got, err := Move(in, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestMove_DoesNotModifyInput(t *testing.T) {
	in := chapters("a", "b", "c")
	_, err := Move(in, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, titles(in))
}

func TestMove_InvalidIndex(t *testing.T) {
	cases := []struct{ from, to int }{
		{-1, 0}, {0, -1}, {3, 0}, {0, 3}, {10, 10},
	}
	for _, tc := range cases {
		_, err := Move(chapters("a", "b", "c"), tc.from, tc.to)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidIndex), "move %d->%d", tc.from, tc.to)

		var ie *IndexError
		require.True(t, errors.As(err, &ie))
		assert.Equal(t, 3, ie.Len)
	}
}

func TestMove_EmptyAndSingle(t *testing.T) {
	got, err := Move([]model.Chapter{}, 0, 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	single := []model.Chapter{{ID: 9, Title: "only", Order: 7}}
	got, err = Move(single, 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Order)
}

// For every (from, to) pair the result is a dense permutation of 1..N.
func TestMove_AlwaysDense(t *testing.T) {
	const n = 6
	for from := 0; from < n; from++ {
		for to := 0; to < n; to++ {
			in := chapters("a", "b", "c", "d", "e", "f")
			// Start from a gapped sequence to make sure the result is recomputed.
			for i := range in {
				in[i].Order = (i + 1) * 10
			}
			got, err := Move(in, from, to)
			require.NoError(t, err)
			if from == to {
				continue
			}

			o := orders(got)
			sort.Ints(o)
			assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, o, "move %d->%d", from, to)
			assert.Equal(t, in[from].ID, got[to].ID, "moved item lands at target")

			// Untouched items keep their relative order.
			var rest []int64
			for i, c := range in {
				if i != from {
					rest = append(rest, c.ID)
				}
			}
			var gotRest []int64
			for i, c := range got {
				if i != to {
					gotRest = append(gotRest, c.ID)
				}
			}
			assert.Equal(t, rest, gotRest)
		}
	}
}

func TestMove_PlotEvents(t *testing.T) {
	events := []model.PlotEvent{{ID: 1, Title: "x"}, {ID: 2, Title: "y"}}
	got, err := Move(events, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, 1, got[0].Order)
	assert.Equal(t, 2, got[1].Order)
}

func TestArrange(t *testing.T) {
	got, err := Arrange(chapters("a", "b", "c"), []int64{3, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, titles(got))
	assert.Equal(t, []int{1, 2, 3}, orders(got))
}

func TestArrange_RejectsNonPermutation(t *testing.T) {
	cases := map[string][]int64{
		"too few":  {1, 2},
		"repeated": {1, 1, 2},
		"unknown":  {1, 2, 9},
	}
	for name, ids := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Arrange(chapters("a", "b", "c"), ids)
			assert.ErrorIs(t, err, ErrInvalidOrder)
		})
	}
}

func TestIsDense(t *testing.T) {
	assert.True(t, IsDense(nil))
	assert.True(t, IsDense([]int{2, 1, 3}))
	assert.False(t, IsDense([]int{1, 3}))
	assert.False(t, IsDense([]int{1, 1}))
	assert.False(t, IsDense([]int{0, 1}))
}

func TestGuard_SingleFlight(t *testing.T) {
	g := NewGuard()

	require.True(t, g.TryAcquire(1))
	assert.True(t, g.Busy(1))
	assert.False(t, g.TryAcquire(1), "second reorder of the same book is rejected")
	assert.True(t, g.TryAcquire(2), "other books are independent")

	g.Release(1)
	assert.False(t, g.Busy(1))
	assert.True(t, g.TryAcquire(1))
}
