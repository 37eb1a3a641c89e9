package readfiles

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/notargets/turbflux/types"
)

// ReadGrid picks the reader from the file extension: .neu is a Gambit neutral file, anything
// else is read as SU2.
func ReadGrid(filename string, verbose bool) (g *Grid, err error) {
	if strings.ToLower(filepath.Ext(filename)) == ".neu" {
		return ReadGambit2D(filename, verbose)
	}
	return ReadSU2(filename, verbose)
}

func ReadGambit2D(filename string, verbose bool) (g *Grid, err error) {
	var (
		file *os.File
	)
	if verbose {
		fmt.Printf("Reading Gambit Neutral file named: %s\n", filename)
	}
	if file, err = os.Open(filename); err != nil {
		return nil, fmt.Errorf("unable to open file %s: %w", filename, err)
	}
	defer file.Close()
	if g, err = ReadGambit2DFromReader(file); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	if verbose {
		fmt.Printf("Nv = %d, K = %d, %d boundary groups\n", g.NumPoints(), g.NumElements(), len(g.Markers))
	}
	return
}

func ReadGambit2DFromReader(r io.Reader) (g *Grid, err error) {
	var (
		reader                       = bufio.NewReader(r)
		Nv, K, Nmats, Nbcs, Nsd, dum int
		line                         string
	)
	// Skip first six lines
	if err = skipLines(6, reader); err != nil {
		return
	}
	if line, err = getLine(reader); err != nil {
		return
	}
	if _, err = fmt.Sscanf(line, "%d %d %d %d %d %d", &Nv, &K, &Nmats, &Nbcs, &Nsd, &dum); err != nil {
		return nil, fmt.Errorf("unable to read dimensions from [%s]: %w", line, err)
	}
	if Nsd != 2 {
		return nil, fmt.Errorf("only two dimensional meshes are supported, file has %d space dimensions", Nsd)
	}
	g = &Grid{Dim: Nsd}
	if err = skipLines(2, reader); err != nil {
		return
	}
	if g.Coords, err = readGambitVertices(Nv, reader); err != nil {
		return
	}
	if err = skipLines(2, reader); err != nil {
		return
	}
	if g.Tris, err = readGambitTris(K, Nv, reader); err != nil {
		return
	}
	if err = skipLines(2, reader); err != nil {
		return
	}
	for i := 0; i < Nmats; i++ {
		if err = skipMaterialGroup(reader); err != nil {
			return
		}
		if err = skipLines(2, reader); err != nil {
			return
		}
	}
	if g.Markers, err = readGambitBCs(Nbcs, g.Tris, reader); err != nil {
		return
	}
	return
}

func readGambitVertices(Nv int, reader *bufio.Reader) (X [][2]float64, err error) {
	var (
		line   string
		ind, n int
		x, y   float64
	)
	X = make([][2]float64, Nv)
	for i := 0; i < Nv; i++ {
		if line, err = getLine(reader); err != nil {
			return
		}
		if n, err = fmt.Sscanf(line, "%d %f %f", &ind, &x, &y); err != nil || n != 3 {
			return nil, fmt.Errorf("unable to read vertex from [%s]: %v", line, err)
		}
		if ind < 1 || ind > Nv {
			return nil, fmt.Errorf("vertex index %d outside of 1..%d", ind, Nv)
		}
		X[ind-1] = [2]float64{x, y}
	}
	return
}

func readGambitTris(K, Nv int, reader *bufio.Reader) (EToV [][3]int, err error) {
	//      1  3  3        1       2       3
	var (
		line                string
		n, ind, typ, nfaces int
		n1, n2, n3          int
	)
	EToV = make([][3]int, K)
	for i := 0; i < K; i++ {
		if line, err = getLine(reader); err != nil {
			return
		}
		if n, err = fmt.Sscanf(line, "%d %d %d %d %d %d", &ind, &typ, &nfaces, &n1, &n2, &n3); err != nil || n != 6 {
			return nil, fmt.Errorf("unable to read element from [%s]: %v", line, err)
		}
		if nfaces != 3 {
			return nil, fmt.Errorf("element %d has %d nodes, only triangles are supported", ind, nfaces)
		}
		if ind < 1 || ind > K {
			return nil, fmt.Errorf("element index %d outside of 1..%d", ind, K)
		}
		for _, v := range []int{n1, n2, n3} {
			if v < 1 || v > Nv {
				return nil, fmt.Errorf("element %d references vertex %d, have %d", ind, v, Nv)
			}
		}
		EToV[ind-1] = [3]int{n1 - 1, n2 - 1, n3 - 1}
	}
	return
}

// skipMaterialGroup reads past one element group, ten element numbers per line.
func skipMaterialGroup(reader *bufio.Reader) (err error) {
	/*
	   GROUP:           1 ELEMENTS:        977 MATERIAL:      1.000 NFLAGS:          0
	                     epsilon: 1.000
	          0
	*/
	var (
		line      string
		gn, elnum int
		matval    float64
	)
	if line, err = getLine(reader); err != nil {
		return
	}
	if _, err = fmt.Sscanf(line, "GROUP: %11d ELEMENTS:%11d MATERIAL:%11f", &gn, &elnum, &matval); err != nil {
		return fmt.Errorf("unable to read material group header [%s]: %w", line, err)
	}
	numLines := (elnum + 9) / 10
	return skipLines(2+numLines, reader)
}

func readGambitBCs(Nbcs int, EToV [][3]int, reader *bufio.Reader) (BCEdges map[string][]types.EdgeInt, err error) {
	var (
		line, bctyp string
		bcid        int
		paramf      float64
		numfaces    int
	)
	BCEdges = make(map[string][]types.EdgeInt, Nbcs)
	for i := 0; i < Nbcs; i++ {
		// Each group after the first is preceded by its section title
		if i != 0 {
			if err = skipLines(1, reader); err != nil {
				return
			}
		}
		if line, err = getLine(reader); err != nil {
			return
		}
		if _, err = fmt.Sscanf(line, "%32s", &bctyp); err != nil {
			return nil, fmt.Errorf("unable to read boundary name from [%s]: %w", line, err)
		}
		// A "cyl" boundary carries a float parameter in place of the id
		if strings.EqualFold(bctyp, "cyl") {
			_, err = fmt.Sscanf(line, "%32s%8f%8d", &bctyp, &paramf, &numfaces)
		} else {
			_, err = fmt.Sscanf(line, "%32s%8d%8d", &bctyp, &bcid, &numfaces)
		}
		if err != nil {
			return nil, fmt.Errorf("unable to read boundary group [%s]: %w", line, err)
		}
		bctyp = strings.ToLower(bctyp)
		for f := 0; f < numfaces; f++ {
			var kp1, typ, face int
			if line, err = getLine(reader); err != nil {
				return
			}
			if _, err = fmt.Sscanf(line, "%d %d %d", &kp1, &typ, &face); err != nil {
				return nil, fmt.Errorf("boundary %s, line [%s]: %w", bctyp, line, err)
			}
			if kp1 < 1 || kp1 > len(EToV) || face < 1 || face > 3 {
				return nil, fmt.Errorf("boundary %s references face %d of element %d", bctyp, face, kp1)
			}
			verts := EToV[kp1-1]
			BCEdges[bctyp] = append(BCEdges[bctyp],
				types.NewEdgeInt([2]int{verts[face-1], verts[face%3]}))
		}
		if err = skipLines(1, reader); err != nil {
			return
		}
	}
	return
}
