package readfiles

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/notargets/turbflux/types"
)

// From here: https://su2code.github.io/docs_v7/Mesh-File/
type SU2ElementType uint8

const (
	ELType_LINE          SU2ElementType = 3
	ELType_Triangle                     = 5
	ELType_Quadrilateral                = 9
	ELType_Tetrahedral                  = 10
	ELType_Hexahedral                   = 12
	ELType_Prism                        = 13
	ELType_Pyramid                      = 14
)

var ErrEarlyEOF = errors.New("early end of file")

// Grid is a two dimensional triangular mesh as read from an SU2 or Gambit neutral file.
type Grid struct {
	Dim     int
	Coords  [][2]float64
	Tris    [][3]int
	Markers map[string][]types.EdgeInt // Boundary segments keyed by marker or boundary group name
}

func (g *Grid) NumPoints() int { return len(g.Coords) }

func (g *Grid) NumElements() int { return len(g.Tris) }

func ReadSU2(filename string, verbose bool) (g *Grid, err error) {
	var (
		file *os.File
	)
	if verbose {
		fmt.Printf("Reading SU2 file named: %s\n", filename)
	}
	if file, err = os.Open(filename); err != nil {
		return nil, fmt.Errorf("unable to open file %s: %w", filename, err)
	}
	defer file.Close()
	if g, err = ReadSU2FromReader(file); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	if verbose {
		fmt.Printf("Read file with %d dimensional data, %d elements, %d points\n",
			g.Dim, g.NumElements(), g.NumPoints())
	}
	return
}

func ReadSU2FromReader(r io.Reader) (g *Grid, err error) {
	var (
		reader = bufio.NewReader(r)
	)
	g = &Grid{}
	if g.Dim, err = readNumber(reader); err != nil {
		return nil, err
	}
	if g.Dim != 2 {
		return nil, fmt.Errorf("only two dimensional meshes are supported, file has NDIME= %d", g.Dim)
	}
	if g.Tris, err = readElements(reader); err != nil {
		return nil, err
	}
	if g.Coords, err = readVertices(reader); err != nil {
		return nil, err
	}
	for k, tri := range g.Tris {
		for _, v := range tri {
			if v < 0 || v >= len(g.Coords) {
				return nil, fmt.Errorf("element %d references point %d, have %d points",
					k, v, len(g.Coords))
			}
		}
	}
	if g.Markers, err = readBCs(reader); err != nil {
		return nil, err
	}
	return
}

func readBCs(reader *bufio.Reader) (BCEdges map[string][]types.EdgeInt, err error) {
	var (
		nType, NBCs, nEdges int
		v1, v2              int
		label               string
	)
	BCEdges = make(map[string][]types.EdgeInt)
	if NBCs, err = readNumber(reader); err != nil {
		if errors.Is(err, ErrEarlyEOF) { // Markers are optional
			err = nil
		}
		return
	}
	for n := 0; n < NBCs; n++ {
		if label, err = readLabel(reader); err != nil {
			return
		}
		if nEdges, err = readNumber(reader); err != nil {
			return
		}
		// Duplicate tags append to a common slice, e.g. periodic pairs
		for i := 0; i < nEdges; i++ {
			var line string
			if line, err = getLine(reader); err != nil {
				return
			}
			if _, err = fmt.Sscanf(line, "%d %d %d", &nType, &v1, &v2); err != nil {
				return nil, fmt.Errorf("marker %s, line [%s]: %w", label, line, err)
			}
			if SU2ElementType(nType) != ELType_LINE {
				return nil, fmt.Errorf("marker %s: BCs should only contain line elements in 2D, have type %d",
					label, nType)
			}
			BCEdges[label] = append(BCEdges[label], types.NewEdgeInt([2]int{v1, v2}))
		}
	}
	return
}

func readVertices(reader *bufio.Reader) (X [][2]float64, err error) {
	var (
		n, Nv int
		x, y  float64
		line  string
	)
	if Nv, err = readNumber(reader); err != nil {
		return
	}
	X = make([][2]float64, Nv)
	for i := 0; i < Nv; i++ {
		if line, err = getLine(reader); err != nil {
			return
		}
		if n, err = fmt.Sscanf(line, "%f %f", &x, &y); err != nil || n != 2 {
			return nil, fmt.Errorf("unable to read coordinates of point %d from [%s]: %v", i, line, err)
		}
		X[i] = [2]float64{x, y}
	}
	return
}

func readElements(reader *bufio.Reader) (EToV [][3]int, err error) {
	var (
		n, K       int
		nType      int
		v1, v2, v3 int
		line       string
	)
	if K, err = readNumber(reader); err != nil {
		return
	}
	EToV = make([][3]int, K)
	for k := 0; k < K; k++ {
		if line, err = getLine(reader); err != nil {
			return
		}
		if n, err = fmt.Sscanf(line, "%d %d %d %d", &nType, &v1, &v2, &v3); err != nil || n != 4 {
			return nil, fmt.Errorf("unable to read vertices of element %d from [%s]: %v", k, line, err)
		}
		if SU2ElementType(nType) != ELType_Triangle {
			return nil, fmt.Errorf("unable to deal with non-triangular elements right now, element %d has type %d",
				k, nType)
		}
		EToV[k] = [3]int{v1, v2, v3}
	}
	return
}

func getToken(reader *bufio.Reader) (token string, err error) {
	var (
		line string
	)
	if line, err = getLineNoComments(reader); err != nil {
		return
	}
	ind := strings.Index(line, "=")
	if ind < 0 {
		err = fmt.Errorf("badly formed input line [%s], should have an =", line)
		return
	}
	token = line[ind+1:]
	return
}

func readLabel(reader *bufio.Reader) (label string, err error) {
	var (
		token string
	)
	if token, err = getToken(reader); err != nil {
		return
	}
	if _, err = fmt.Sscanf(token, "%s", &label); err != nil {
		err = fmt.Errorf("unable to read label from token: [%s]", token)
		return
	}
	label = strings.Trim(label, " ")
	return
}

func readNumber(reader *bufio.Reader) (num int, err error) {
	var (
		token string
	)
	if token, err = getToken(reader); err != nil {
		return
	}
	if _, err = fmt.Sscanf(token, "%d", &num); err != nil {
		err = fmt.Errorf("unable to read number from token: [%s]", token)
	}
	return
}

func getLineNoComments(reader *bufio.Reader) (line string, err error) {
	for {
		if line, err = getLine(reader); err != nil {
			return
		}
		line = strings.Trim(line, " \t")
		if len(line) != 0 && line[0] != '%' {
			return
		}
	}
}

func getLine(reader *bufio.Reader) (line string, err error) {
	line, err = reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && len(line) != 0 {
			err = nil
		} else {
			if err == io.EOF {
				err = ErrEarlyEOF
			}
			return
		}
	}
	line = strings.TrimRight(line, "\r\n") // Strip away the newline
	return
}

func skipLines(n int, reader *bufio.Reader) (err error) {
	for i := 0; i < n; i++ {
		if _, err = getLine(reader); err != nil {
			return
		}
	}
	return
}
