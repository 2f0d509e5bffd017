package frameassembler

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/kestrel-engine/kestrel"
)

// ClusterDims is the view-space cluster grid resolution (x, y, depth
// slices).
type ClusterDims struct {
	X, Y, Z int
}

// DefaultClusterDims matches common tile sizes for 1080p-class targets.
func DefaultClusterDims() ClusterDims { return ClusterDims{X: 16, Y: 9, Z: 24} }

// PointLightView is a point light already transformed into view space,
// ready for clustering. ViewPos.Z is the positive distance in front of the
// camera, the depth convention ClusterLights slices between near and far.
type PointLightView struct {
	Entity     kestrel.EntityId
	ViewPos    mgl32.Vec3
	Range      float32
	Intensity  float32
	Color      [3]float32
}

// Cluster holds the indices (into the input slice) of every light that
// overlaps one view-space froxel.
type Cluster struct {
	X, Y, Z int
	Lights  []int
}

// LightingBudgetEvent is published on the Event Bus when the scene exceeds
// the configured light cap (spec §4.6 step 6 "raise a 'Lighting Budget'
// telemetry event").
type LightingBudgetEvent struct {
	TotalLights int
	Cap         int
	Culled      int
}

// ClusterLights bins point lights into dims view-space clusters across
// the camera's near/far range, and culls the lowest-contribution lights
// down to cap if the scene exceeds it (spec §4.6 step 6).
func ClusterLights(lights []PointLightView, dims ClusterDims, near, far float32, cap int) ([]Cluster, *LightingBudgetEvent) {
	var budgetEvent *LightingBudgetEvent
	active := lights
	if cap > 0 && len(lights) > cap {
		ranked := append([]PointLightView(nil), lights...)
		sort.Slice(ranked, func(i, j int) bool {
			return contribution(ranked[i]) > contribution(ranked[j])
		})
		active = ranked[:cap]
		budgetEvent = &LightingBudgetEvent{TotalLights: len(lights), Cap: cap, Culled: len(lights) - cap}
	}

	clusters := make(map[[3]int]*Cluster)
	depthSlice := (far - near) / float32(dims.Z)
	if depthSlice <= 0 {
		depthSlice = 1
	}

	for i, l := range active {
		zIdx := int((l.ViewPos.Z() - near) / depthSlice)
		if zIdx < 0 {
			zIdx = 0
		}
		if zIdx >= dims.Z {
			zIdx = dims.Z - 1
		}
		xIdx := clusterAxisIndex(l.ViewPos.X(), dims.X)
		yIdx := clusterAxisIndex(l.ViewPos.Y(), dims.Y)
		key := [3]int{xIdx, yIdx, zIdx}
		c, ok := clusters[key]
		if !ok {
			c = &Cluster{X: xIdx, Y: yIdx, Z: zIdx}
			clusters[key] = c
		}
		c.Lights = append(c.Lights, i)
	}

	out := make([]Cluster, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, *c)
	}
	return out, budgetEvent
}

func clusterAxisIndex(v float32, dim int) int {
	idx := int(v) % dim
	if idx < 0 {
		idx += dim
	}
	return idx
}

func contribution(l PointLightView) float32 {
	return l.Intensity * l.Range
}
