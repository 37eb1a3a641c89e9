package geometry2D

import (
	"math"
	"sort"

	"github.com/notargets/turbflux/types"
	"github.com/notargets/turbflux/utils"
)

/*
DualMesh is the median-dual (vertex centered) finite volume view of a triangulation.
Each control volume surrounds one mesh node and is bounded by segments joining edge midpoints
to the centroids of the adjacent triangles. Every mesh edge (i,j) carries the summed normal of
the dual faces separating the two control volumes, oriented from i to j.
*/
type DualMesh struct {
	NDim      int
	Coords    [][]float64     // NPoint x NDim
	Edges     []types.EdgeKey // Sorted ascending
	EdgeNodes [][2]int        // i < j for every edge
	Normals   [][]float64     // NEdge x NDim, not unit length
	Volumes   []float64       // Dual control volume per node
}

type edgeAccumulator struct {
	normal [2]float64
}

func NewDualMesh(coords [][2]float64, tris [][3]int) (dm *DualMesh) {
	var (
		Np     = len(coords)
		accums = make(map[types.EdgeKey]*edgeAccumulator, 3*len(tris)/2+1)
	)
	dm = &DualMesh{
		NDim:    2,
		Coords:  make([][]float64, Np),
		Volumes: make([]float64, Np),
	}
	// One backing array for all coordinates
	cData := make([]float64, 2*Np)
	for i, x := range coords {
		dm.Coords[i] = cData[2*i : 2*i+2]
		dm.Coords[i][0], dm.Coords[i][1] = x[0], x[1]
	}
	for _, tri := range tris {
		var (
			x0, x1, x2 = coords[tri[0]], coords[tri[1]], coords[tri[2]]
			area       = 0.5 * math.Abs((x1[0]-x0[0])*(x2[1]-x0[1])-(x2[0]-x0[0])*(x1[1]-x0[1]))
			centroid   = [2]float64{(x0[0] + x1[0] + x2[0]) / 3, (x0[1] + x1[1] + x2[1]) / 3}
		)
		if area < utils.NODETOL {
			continue
		}
		for n := 0; n < 3; n++ {
			dm.Volumes[tri[n]] += area / 3
		}
		for n := 0; n < 3; n++ {
			p, q := tri[n], tri[(n+1)%3]
			en := types.NewEdgeKey([2]int{p, q})
			acc, ok := accums[en]
			if !ok {
				acc = &edgeAccumulator{}
				accums[en] = acc
			}
			verts := en.GetVertices(false)
			acc.addDualFace(coords[verts[0]], coords[verts[1]], centroid)
		}
	}
	dm.Edges = make([]types.EdgeKey, 0, len(accums))
	for en := range accums {
		dm.Edges = append(dm.Edges, en)
	}
	sort.Slice(dm.Edges, func(i, j int) bool { return dm.Edges[i] < dm.Edges[j] })
	var (
		Ne    = len(dm.Edges)
		nData = make([]float64, 2*Ne)
	)
	dm.EdgeNodes = make([][2]int, Ne)
	dm.Normals = make([][]float64, Ne)
	for e, en := range dm.Edges {
		dm.EdgeNodes[e] = en.GetVertices(false)
		dm.Normals[e] = nData[2*e : 2*e+2]
		dm.Normals[e][0], dm.Normals[e][1] = accums[en].normal[0], accums[en].normal[1]
	}
	return
}

// addDualFace adds the normal of the segment from the edge midpoint to a triangle centroid,
// oriented along xj - xi.
func (acc *edgeAccumulator) addDualFace(xi, xj, centroid [2]float64) {
	var (
		mid = [2]float64{0.5 * (xi[0] + xj[0]), 0.5 * (xi[1] + xj[1])}
		s   = [2]float64{centroid[0] - mid[0], centroid[1] - mid[1]}
		n   = [2]float64{s[1], -s[0]}
		dx  = [2]float64{xj[0] - xi[0], xj[1] - xi[1]}
	)
	if n[0]*dx[0]+n[1]*dx[1] < 0 {
		n[0], n[1] = -n[0], -n[1]
	}
	acc.normal[0] += n[0]
	acc.normal[1] += n[1]
}

func (dm *DualMesh) NumPoints() int { return len(dm.Coords) }

func (dm *DualMesh) NumEdges() int { return len(dm.Edges) }

// EdgeCoords returns views of the endpoint coordinates and the face normal of edge e.
func (dm *DualMesh) EdgeCoords(e int) (xi, xj, normal []float64) {
	nodes := dm.EdgeNodes[e]
	return dm.Coords[nodes[0]], dm.Coords[nodes[1]], dm.Normals[e]
}

// NodeEdges lists, for every node, the indices of the edges touching it.
func (dm *DualMesh) NodeEdges() (ne [][]int) {
	ne = make([][]int, dm.NumPoints())
	for e, nodes := range dm.EdgeNodes {
		ne[nodes[0]] = append(ne[nodes[0]], e)
		ne[nodes[1]] = append(ne[nodes[1]], e)
	}
	return
}

func (dm *DualMesh) TotalVolume() (vol float64) {
	for _, v := range dm.Volumes {
		vol += v
	}
	return
}
