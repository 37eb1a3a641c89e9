package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// almostEqual returns true if a and b differ by less than tol.
func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}

func newTestBlockTridiag(n int) *BlockSparse {
	var addrs [][2]int
	for i := 0; i < n; i++ {
		addrs = append(addrs, [2]int{i, i})
		if i > 0 {
			addrs = append(addrs, [2]int{i, i - 1})
		}
		if i < n-1 {
			addrs = append(addrs, [2]int{i, i + 1})
		}
	}
	return NewBlockSparse(n, n, 2, 2, addrs)
}

func TestNewBlockSparse(t *testing.T) {
	bs := newTestBlockTridiag(4)
	r, c := bs.Dims()
	if r != 8 || c != 8 {
		t.Errorf("Dims expected (8,8), got (%d,%d)", r, c)
	}
	assert.Equal(t, 10, bs.NumBlocks())
	assert.True(t, bs.HasBlock(1, 2))
	assert.False(t, bs.HasBlock(0, 3))
	assert.Panics(t, func() { bs.GetBlockView(0, 3) })
	assert.Panics(t, func() { NewBlockSparse(2, 2, 1, 1, [][2]int{{2, 0}}) })

	// Duplicate addresses collapse to one block
	dup := NewBlockSparse(2, 2, 1, 1, [][2]int{{0, 0}, {1, 1}, {0, 0}})
	assert.Equal(t, 2, dup.NumBlocks())
}

func TestBlockSparseAccumulate(t *testing.T) {
	bs := newTestBlockTridiag(3)
	B := [][]float64{{1, 2}, {3, 4}}
	bs.AddToBlock(1, 2, 1, B)
	bs.AddToBlock(1, 2, -0.5, B)
	// The view shares storage
	V := bs.GetBlockView(1, 2)
	expected := [][]float64{{0.5, 1}, {1.5, 2}}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if !almostEqual(V.At(i, j), expected[i][j], 1e-14) {
				t.Errorf("AddToBlock: at (%d,%d), got %v, want %v", i, j, V.At(i, j), expected[i][j])
			}
			assert.Equal(t, expected[i][j], bs.At(2+i, 4+j))
		}
	}
	V.Set(0, 0, 10)
	assert.Equal(t, 10., bs.At(2, 4))
	// Unallocated blocks read as zero
	assert.Equal(t, 0., bs.At(0, 5))

	bs.Zero()
	assert.Equal(t, 0., bs.FrobNorm())
	assert.Equal(t, 7, bs.NumBlocks())
}

func TestBlockSparseMulVec(t *testing.T) {
	// Block tridiagonal with [2,-1;-1,2] diagonal blocks and -I off diagonal blocks
	var (
		n  = 4
		bs = newTestBlockTridiag(n)
		D  = [][]float64{{2, -1}, {-1, 2}}
		I  = [][]float64{{1, 0}, {0, 1}}
	)
	for i := 0; i < n; i++ {
		bs.AddToBlock(i, i, 1, D)
		if i > 0 {
			bs.AddToBlock(i, i-1, -1, I)
		}
		if i < n-1 {
			bs.AddToBlock(i, i+1, -1, I)
		}
	}
	x := make([]float64, 2*n)
	for i := range x {
		x[i] = 1
	}
	y := make([]float64, 2*n)
	bs.MulVec(x, y)
	// Interior rows: 2-1-1-1 = -1, end rows: 2-1-1 = 0
	assert.Equal(t, []float64{0, 0, -1, -1, -1, -1, 0, 0}, y)
	assert.Panics(t, func() { bs.MulVec(x[:3], y) })

	cp := bs.Copy()
	cp.Zero()
	assert.NotEqual(t, 0., bs.FrobNorm())
	assert.InDelta(t, math.Sqrt(4*10+6*2), bs.FrobNorm(), 1e-12)
}

func TestBlockSparseToCSR(t *testing.T) {
	bs := newTestBlockTridiag(3)
	bs.AddToBlock(0, 0, 1, [][]float64{{1, 2}, {3, 4}})
	bs.AddToBlock(2, 1, 1, [][]float64{{5, 0}, {0, 6}})
	csr := bs.ToCSR()
	r, c := csr.Dims()
	require.Equal(t, 6, r)
	require.Equal(t, 6, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			assert.Equal(t, bs.At(i, j), csr.At(i, j))
		}
	}
	assert.Equal(t, 4., csr.At(1, 1))
	assert.Equal(t, 6., csr.At(5, 3))
}
