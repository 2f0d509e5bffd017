package frameassembler

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestClusterLights_BinsByViewPosition(t *testing.T) {
	lights := []PointLightView{
		{ViewPos: mgl32.Vec3{0, 0, 5}, Range: 1, Intensity: 1},
		{ViewPos: mgl32.Vec3{0, 0, 5}, Range: 1, Intensity: 1},
		{ViewPos: mgl32.Vec3{0, 0, 95}, Range: 1, Intensity: 1},
	}
	clusters, budget := ClusterLights(lights, ClusterDims{X: 4, Y: 4, Z: 4}, 0.1, 100, 0)
	if budget != nil {
		t.Fatalf("expected no budget event under the cap, got %v", budget)
	}
	total := 0
	for _, c := range clusters {
		total += len(c.Lights)
	}
	if total != 3 {
		t.Fatalf("expected all 3 lights distributed across clusters, got %d", total)
	}
	if len(clusters) < 2 {
		t.Fatalf("expected near and far lights to land in different depth clusters, got %d clusters", len(clusters))
	}
}

func TestClusterLights_CapCullsLowestContribution(t *testing.T) {
	lights := []PointLightView{
		{ViewPos: mgl32.Vec3{0, 0, 1}, Range: 10, Intensity: 10},
		{ViewPos: mgl32.Vec3{1, 0, 1}, Range: 1, Intensity: 1},
		{ViewPos: mgl32.Vec3{2, 0, 1}, Range: 1, Intensity: 1},
	}
	_, budget := ClusterLights(lights, DefaultClusterDims(), 0.1, 100, 1)
	if budget == nil {
		t.Fatal("expected a budget event when lights exceed the cap")
	}
	if budget.TotalLights != 3 || budget.Cap != 1 || budget.Culled != 2 {
		t.Fatalf("unexpected budget event %+v", budget)
	}
}
