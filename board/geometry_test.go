package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsDegenerateBoards(t *testing.T) {
	for _, dims := range [][2]int{{1, 5}, {5, 1}, {0, 0}, {-3, 4}} {
		_, err := New(dims[0], dims[1])
		assert.ErrorIs(t, err, ErrConfiguration, "width=%d height=%d", dims[0], dims[1])
	}
}

func TestRoundTripAllPerimeters(t *testing.T) {
	for w := 2; w <= 18; w++ {
		for h := 2; h <= 18; h++ {
			g, err := New(w, h)
			require.NoError(t, err)
			require.Equal(t, 2*w+2*h-4, g.Size())

			seen := make(map[Coordinate]bool, g.Size())
			for i := 0; i < g.Size(); i++ {
				c, err := g.ToCoordinate(i)
				require.NoError(t, err)
				require.False(t, seen[c], "w=%d h=%d index=%d 坐标重复 %v", w, h, i, c)
				seen[c] = true

				back, err := g.ToIndex(c)
				require.NoError(t, err)
				require.Equal(t, i, back, "w=%d h=%d", w, h)
			}
		}
	}
}

func TestLargeBoardCorners(t *testing.T) {
	g, err := FromDimensions(Large)
	require.NoError(t, err)
	assert.Equal(t, 58, g.Size())

	cases := map[int]Coordinate{
		0:  {X: 0, Y: 0},
		15: {X: 15, Y: 0},
		29: {X: 15, Y: 14},
		44: {X: 0, Y: 14},
		57: {X: 0, Y: 1},
	}
	for index, want := range cases {
		got, err := g.ToCoordinate(index)
		require.NoError(t, err)
		assert.Equal(t, want, got, "index=%d", index)
		assert.True(t, index == 57 || g.IsCorner(index))
	}
}

func TestPresetSizes(t *testing.T) {
	for dims, want := range map[Dimensions]int{Classic: 16, Large: 58, Square: 64} {
		g, err := FromDimensions(dims)
		require.NoError(t, err)
		assert.Equal(t, want, g.Size())
	}
}

func TestOutOfRange(t *testing.T) {
	g, err := New(5, 5)
	require.NoError(t, err)

	_, err = g.ToCoordinate(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = g.ToCoordinate(16)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = g.ToIndex(Coordinate{X: 2, Y: 2})
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = g.ToIndex(Coordinate{X: 5, Y: 0})
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestSideAndPath(t *testing.T) {
	g, err := New(5, 5)
	require.NoError(t, err)

	sides := map[int]Side{0: SideTop, 3: SideTop, 4: SideRight, 8: SideBottom, 12: SideLeft, 15: SideLeft}
	for index, want := range sides {
		got, err := g.Side(index)
		require.NoError(t, err)
		assert.Equal(t, want, got, "index=%d", index)
	}

	path, err := g.Path(14, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{15, 0, 1, 2}, path)
}
