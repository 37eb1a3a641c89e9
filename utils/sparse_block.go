package utils

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// BlockSparse represents a sparse block matrix. Only blocks provided via addresses are allocated;
// all other blocks are implicitly zero.
type BlockSparse struct {
	// Global block-matrix dimensions (in block counts).
	NrBlocks, NcBlocks int

	// Each block has dimensions blockRows x blockCols.
	blockRows, blockCols int

	// Contiguous storage for all allocated (nonzero) blocks, each block row-major.
	data []float64

	// addresses maps a block coordinate [i,j] to the offset (in floats) within data.
	addresses map[[2]int]int
	// order keeps the allocation order of the blocks for deterministic traversal.
	order [][2]int
}

// NewBlockSparse creates a new BlockSparse for a sparse block matrix.
// The input parameter addresses is a slice of [2]int specifying the coordinates
// of each nonzero block. Duplicate addresses are allocated once.
func NewBlockSparse(nrBlocks, ncBlocks, blockRows, blockCols int, addresses [][2]int) *BlockSparse {
	addrMap := make(map[[2]int]int, len(addresses))
	order := make([][2]int, 0, len(addresses))
	bSize := blockRows * blockCols
	for _, addr := range addresses {
		if addr[0] < 0 || addr[0] >= nrBlocks || addr[1] < 0 || addr[1] >= ncBlocks {
			panic(fmt.Sprintf("block address (%d,%d) outside of %dx%d blocks",
				addr[0], addr[1], nrBlocks, ncBlocks))
		}
		if _, ok := addrMap[addr]; ok {
			continue
		}
		addrMap[addr] = len(order) * bSize
		order = append(order, addr)
	}
	return &BlockSparse{
		NrBlocks:  nrBlocks,
		NcBlocks:  ncBlocks,
		blockRows: blockRows,
		blockCols: blockCols,
		data:      make([]float64, len(order)*bSize),
		addresses: addrMap,
		order:     order,
	}
}

func (bs *BlockSparse) BlockDims() (r, c int) { return bs.blockRows, bs.blockCols }

// Dims returns the scalar dimensions of the matrix.
func (bs *BlockSparse) Dims() (r, c int) {
	return bs.NrBlocks * bs.blockRows, bs.NcBlocks * bs.blockCols
}

func (bs *BlockSparse) NumBlocks() int { return len(bs.order) }

func (bs *BlockSparse) Addresses() [][2]int { return bs.order }

func (bs *BlockSparse) HasBlock(i, j int) (ok bool) {
	_, ok = bs.addresses[[2]int{i, j}]
	return
}

func (bs *BlockSparse) blockData(i, j int) []float64 {
	offset, ok := bs.addresses[[2]int{i, j}]
	if !ok {
		panic(fmt.Sprintf("GetBlockView (%d,%d) not allocated", i, j))
	}
	return bs.data[offset : offset+bs.blockRows*bs.blockCols]
}

// GetBlockView returns a gonum view sharing storage with the block at (i, j).
// If (i,j) is not allocated in this sparse matrix, the function panics.
func (bs *BlockSparse) GetBlockView(i, j int) *mat.Dense {
	return mat.NewDense(bs.blockRows, bs.blockCols, bs.blockData(i, j))
}

// AddToBlock accumulates alpha*B into the block at (i, j). B is given as rows.
func (bs *BlockSparse) AddToBlock(i, j int, alpha float64, B [][]float64) {
	var (
		d  = bs.blockData(i, j)
		nc = bs.blockCols
	)
	for ii := 0; ii < bs.blockRows; ii++ {
		row := B[ii]
		for jj := 0; jj < nc; jj++ {
			d[ii*nc+jj] += alpha * row[jj]
		}
	}
}

// Zero resets all allocated blocks, keeping the sparsity pattern.
func (bs *BlockSparse) Zero() {
	for i := range bs.data {
		bs.data[i] = 0
	}
}

// At returns the scalar entry at (r, c), zero outside the allocated blocks.
func (bs *BlockSparse) At(r, c int) float64 {
	var (
		bi, bj = r / bs.blockRows, c / bs.blockCols
	)
	offset, ok := bs.addresses[[2]int{bi, bj}]
	if !ok {
		return 0
	}
	return bs.data[offset+(r-bi*bs.blockRows)*bs.blockCols+(c-bj*bs.blockCols)]
}

// MulVec computes y = A x on the scalar level. y is overwritten.
func (bs *BlockSparse) MulVec(x, y []float64) {
	nr, nc := bs.Dims()
	if len(x) != nc || len(y) != nr {
		panic(fmt.Sprintf("MulVec dimension mismatch: A is %dx%d, len(x) = %d, len(y) = %d",
			nr, nc, len(x), len(y)))
	}
	for i := range y {
		y[i] = 0
	}
	for _, addr := range bs.order {
		var (
			d    = bs.blockData(addr[0], addr[1])
			rOff = addr[0] * bs.blockRows
			cOff = addr[1] * bs.blockCols
		)
		for ii := 0; ii < bs.blockRows; ii++ {
			var sum float64
			for jj := 0; jj < bs.blockCols; jj++ {
				sum += d[ii*bs.blockCols+jj] * x[cOff+jj]
			}
			y[rOff+ii] += sum
		}
	}
}

// FrobNorm computes the Frobenius norm over all allocated blocks.
func (bs *BlockSparse) FrobNorm() (norm float64) {
	var sum float64
	for _, v := range bs.data {
		sum += v * v
	}
	norm = math.Sqrt(sum)
	return
}

// Copy makes a deep copy with the same sparsity pattern.
func (bs *BlockSparse) Copy() *BlockSparse {
	res := NewBlockSparse(bs.NrBlocks, bs.NcBlocks, bs.blockRows, bs.blockCols, bs.order)
	copy(res.data, bs.data)
	return res
}
