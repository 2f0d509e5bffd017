// Package physicsstep implements the fixed-tick-only Physics Step (spec
// §4.5): spatial hash broadphase with a quadtree density fallback, AABB
// narrowphase, and impulse-based contact resolution. Grounded on the
// teacher's physics.go, simplified from its voxel-aware contact generation
// down to generic box/sphere colliders.
package physicsstep

import "github.com/go-gl/mathgl/mgl32"

// AABB is an axis-aligned bounding box in world space.
type AABB struct {
	Min, Max mgl32.Vec3
}

func (a AABB) Overlaps(b AABB) bool {
	return a.Min.X() <= b.Max.X() && a.Max.X() >= b.Min.X() &&
		a.Min.Y() <= b.Max.Y() && a.Max.Y() >= b.Min.Y() &&
		a.Min.Z() <= b.Max.Z() && a.Max.Z() >= b.Min.Z()
}

type cellKey struct{ x, y, z int32 }

// SpatialHash buckets AABBs into fixed-size cells; a candidate pair shares
// at least one cell. Cheap to rebuild every tick since it never owns the
// body data, only an index (spec §4.5 "Broadphase is a spatial hash by
// configurable cell size").
type SpatialHash struct {
	cellSize float32
	cells    map[cellKey][]int
	counts   map[cellKey]int
}

func NewSpatialHash(cellSize float32) *SpatialHash {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &SpatialHash{cellSize: cellSize, cells: make(map[cellKey][]int)}
}

func (h *SpatialHash) Reset() {
	for k := range h.cells {
		delete(h.cells, k)
	}
}

func (h *SpatialHash) cellOf(v mgl32.Vec3) cellKey {
	return cellKey{
		x: int32(floorDiv(v.X(), h.cellSize)),
		y: int32(floorDiv(v.Y(), h.cellSize)),
		z: int32(floorDiv(v.Z(), h.cellSize)),
	}
}

func floorDiv(v, size float32) int32 {
	q := v / size
	iq := int32(q)
	if q < 0 && float32(iq) != q {
		iq--
	}
	return iq
}

// Insert registers body index i's AABB into every cell it spans.
func (h *SpatialHash) Insert(i int, box AABB) {
	min := h.cellOf(box.Min)
	max := h.cellOf(box.Max)
	for x := min.x; x <= max.x; x++ {
		for y := min.y; y <= max.y; y++ {
			for z := min.z; z <= max.z; z++ {
				k := cellKey{x, y, z}
				h.cells[k] = append(h.cells[k], i)
			}
		}
	}
}

// MaxCellDensity reports the largest number of bodies sharing a single
// cell, used to decide whether the quadtree fallback should engage this
// tick (spec §4.5 "fallback quadtree engages when measured density
// exceeds configurable threshold").
func (h *SpatialHash) MaxCellDensity() int {
	max := 0
	for _, bodies := range h.cells {
		if len(bodies) > max {
			max = len(bodies)
		}
	}
	return max
}

// CandidatePairs returns every (i, j) with i<j sharing at least one cell,
// deduplicated.
func (h *SpatialHash) CandidatePairs() [][2]int {
	seen := make(map[[2]int]bool)
	var pairs [][2]int
	for _, bodies := range h.cells {
		for a := 0; a < len(bodies); a++ {
			for b := a + 1; b < len(bodies); b++ {
				i, j := bodies[a], bodies[b]
				if i > j {
					i, j = j, i
				}
				key := [2]int{i, j}
				if seen[key] {
					continue
				}
				seen[key] = true
				pairs = append(pairs, key)
			}
		}
	}
	return pairs
}

// QuadTree is the broadphase fallback for dense scenes: it subdivides the
// XZ plane (the "ground" plane for both 2D and 3D content in this engine)
// recursively instead of relying on uniform cells, so a crowd clustered in
// one spatial-hash cell still gets split into tractable candidate sets.
type QuadTree struct {
	bounds   AABB
	maxDepth int
	maxItems int

	items    []quadItem
	children [4]*QuadTree
}

type quadItem struct {
	index int
	box   AABB
}

func NewQuadTree(bounds AABB, maxDepth, maxItems int) *QuadTree {
	if maxDepth <= 0 {
		maxDepth = 6
	}
	if maxItems <= 0 {
		maxItems = 8
	}
	return &QuadTree{bounds: bounds, maxDepth: maxDepth, maxItems: maxItems}
}

func (q *QuadTree) Insert(index int, box AABB) {
	if q.children[0] != nil {
		for _, c := range q.children {
			if quadOverlaps(c.bounds, box) {
				c.Insert(index, box)
			}
		}
		return
	}
	q.items = append(q.items, quadItem{index, box})
	if len(q.items) > q.maxItems && q.maxDepth > 0 {
		q.subdivide()
	}
}

func (q *QuadTree) subdivide() {
	midX := (q.bounds.Min.X() + q.bounds.Max.X()) / 2
	midZ := (q.bounds.Min.Z() + q.bounds.Max.Z()) / 2
	y0, y1 := q.bounds.Min.Y(), q.bounds.Max.Y()

	quadrants := [4]AABB{
		{mgl32.Vec3{q.bounds.Min.X(), y0, q.bounds.Min.Z()}, mgl32.Vec3{midX, y1, midZ}},
		{mgl32.Vec3{midX, y0, q.bounds.Min.Z()}, mgl32.Vec3{q.bounds.Max.X(), y1, midZ}},
		{mgl32.Vec3{q.bounds.Min.X(), y0, midZ}, mgl32.Vec3{midX, y1, q.bounds.Max.Z()}},
		{mgl32.Vec3{midX, y0, midZ}, mgl32.Vec3{q.bounds.Max.X(), y1, q.bounds.Max.Z()}},
	}
	for i, qb := range quadrants {
		q.children[i] = NewQuadTree(qb, q.maxDepth-1, q.maxItems)
	}
	for _, it := range q.items {
		for _, c := range q.children {
			if quadOverlaps(c.bounds, it.box) {
				c.Insert(it.index, it.box)
			}
		}
	}
	q.items = nil
}

func quadOverlaps(bounds, box AABB) bool {
	return bounds.Min.X() <= box.Max.X() && bounds.Max.X() >= box.Min.X() &&
		bounds.Min.Z() <= box.Max.Z() && bounds.Max.Z() >= box.Min.Z()
}

// CandidatePairs collects every (i,j) pair sharing a leaf, deduplicated.
func (q *QuadTree) CandidatePairs() [][2]int {
	seen := make(map[[2]int]bool)
	var pairs [][2]int
	q.collect(seen, &pairs)
	return pairs
}

func (q *QuadTree) collect(seen map[[2]int]bool, pairs *[][2]int) {
	if q.children[0] != nil {
		for _, c := range q.children {
			c.collect(seen, pairs)
		}
		return
	}
	for a := 0; a < len(q.items); a++ {
		for b := a + 1; b < len(q.items); b++ {
			i, j := q.items[a].index, q.items[b].index
			if i > j {
				i, j = j, i
			}
			key := [2]int{i, j}
			if seen[key] {
				continue
			}
			seen[key] = true
			*pairs = append(*pairs, key)
		}
	}
}
