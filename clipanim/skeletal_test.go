package clipanim

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/kestrel-engine/kestrel/asset"
)

func TestComposePalette_RootUsesIdentityParent(t *testing.T) {
	skeleton := &asset.Skeleton{
		JointNames:  []string{"root"},
		ParentIndex: []int{-1},
		InverseBind: []mgl32.Mat4{mgl32.Ident4()},
		RestLocal:   []mgl32.Mat4{mgl32.Ident4()},
	}
	sampled := map[string][4]float32{
		"root.translation": {1, 2, 3, 0},
	}
	palette := ComposePalette(skeleton, sampled)
	if len(palette) != 1 {
		t.Fatalf("expected one joint in palette, got %d", len(palette))
	}
	got := palette[0].Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if !approxEqual(got.X(), 1) || !approxEqual(got.Y(), 2) || !approxEqual(got.Z(), 3) {
		t.Fatalf("expected translated origin (1,2,3), got %v", got)
	}
}

func TestComposePalette_ChildComposesWithParent(t *testing.T) {
	skeleton := &asset.Skeleton{
		JointNames:  []string{"root", "child"},
		ParentIndex: []int{-1, 0},
		InverseBind: []mgl32.Mat4{mgl32.Ident4(), mgl32.Ident4()},
		RestLocal:   []mgl32.Mat4{mgl32.Ident4(), mgl32.Translate3D(1, 0, 0)},
	}
	sampled := map[string][4]float32{
		"root.translation": {5, 0, 0, 0},
	}
	palette := ComposePalette(skeleton, sampled)
	got := palette[1].Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if !approxEqual(got.X(), 6) {
		t.Fatalf("expected child world x = parent(5) + local(1) = 6, got %v", got.X())
	}
}
