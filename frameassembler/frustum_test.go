package frameassembler

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/kestrel-engine/kestrel"
)

func testCamera() *kestrel.Camera {
	return &kestrel.Camera{
		Position: mgl32.Vec3{0, 0, 10},
		Target:   mgl32.Vec3{0, 0, 0},
		Up:       mgl32.Vec3{0, 1, 0},
		Fov:      60,
		Aspect:   16.0 / 9.0,
		Near:     0.1,
		Far:      100,
		Zoom:     1,
	}
}

func TestExtractFrustum_CenterPointIsInside(t *testing.T) {
	cam := testCamera()
	frustum := ExtractFrustum(ViewProjection(cam))
	if !frustum.SphereInFrustum(mgl32.Vec3{0, 0, 0}, 0.1) {
		t.Fatal("expected the camera's look-at target to be inside its own frustum")
	}
}

func TestExtractFrustum_FarBehindCameraIsOutside(t *testing.T) {
	cam := testCamera()
	frustum := ExtractFrustum(ViewProjection(cam))
	if frustum.SphereInFrustum(mgl32.Vec3{0, 0, 1000}, 0.1) {
		t.Fatal("expected a point far behind the camera to be culled")
	}
}

func TestExtractFrustum_FarOffToTheSideIsOutside(t *testing.T) {
	cam := testCamera()
	frustum := ExtractFrustum(ViewProjection(cam))
	if frustum.SphereInFrustum(mgl32.Vec3{500, 0, 0}, 0.1) {
		t.Fatal("expected a point far outside the side planes to be culled")
	}
}
