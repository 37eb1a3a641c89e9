package utils

import (
	"github.com/james-bowman/sparse"
)

// ToDOK expands the block matrix into a scalar dictionary-of-keys matrix. Entries that are
// exactly zero inside allocated blocks are still stored, so the pattern is structural.
func (bs *BlockSparse) ToDOK() (R *sparse.DOK) {
	nr, nc := bs.Dims()
	R = sparse.NewDOK(nr, nc)
	for _, addr := range bs.order {
		var (
			d    = bs.blockData(addr[0], addr[1])
			rOff = addr[0] * bs.blockRows
			cOff = addr[1] * bs.blockCols
		)
		for ii := 0; ii < bs.blockRows; ii++ {
			for jj := 0; jj < bs.blockCols; jj++ {
				R.Set(rOff+ii, cOff+jj, d[ii*bs.blockCols+jj])
			}
		}
	}
	return
}

// ToCSR converts the block matrix into compressed sparse row format for external solvers.
func (bs *BlockSparse) ToCSR() *sparse.CSR {
	return bs.ToDOK().ToCSR()
}
