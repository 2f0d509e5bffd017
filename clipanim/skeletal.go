package clipanim

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/kestrel-engine/kestrel/asset"
)

// jointTRS is one joint's local translation/rotation/scale for a single
// evaluated frame, defaulting to the skeleton's rest pose for any channel
// the clip doesn't drive.
type jointTRS struct {
	translation mgl32.Vec3
	rotation    mgl32.Quat
	scale       mgl32.Vec3
}

// Palette composes one skeleton's joint-local TRS into its palette buffer:
// local matrix per joint, parent-first hierarchy traversal, multiplied by
// inverse bind (spec §4.4 "Skeletal: evaluate per-joint local TRS →
// compose to local matrix → traverse hierarchy in parent-first order →
// multiply by inverse bind → write into joint palette buffer").
//
// skeleton.ParentIndex is required to list joints in parent-first order
// (ParentIndex[i] < i for every non-root i), matching how glTF-style
// skeletons are authored; a joint never needs its parent's world matrix
// before the parent's own slot in the loop has been written.
func ComposePalette(skeleton *asset.Skeleton, sampled map[string][4]float32) []mgl32.Mat4 {
	n := len(skeleton.JointNames)
	local := make([]mgl32.Mat4, n)
	world := make([]mgl32.Mat4, n)
	palette := make([]mgl32.Mat4, n)

	for i, name := range skeleton.JointNames {
		trs := restTRS(skeleton, i)
		applySampled(&trs, sampled, name)
		local[i] = composeTRS(trs)

		parent := skeleton.ParentIndex[i]
		if parent < 0 {
			world[i] = local[i]
		} else {
			world[i] = world[parent].Mul4(local[i])
		}
		palette[i] = world[i].Mul4(skeleton.InverseBind[i])
	}
	return palette
}

func restTRS(skeleton *asset.Skeleton, joint int) jointTRS {
	if joint >= len(skeleton.RestLocal) {
		return jointTRS{mgl32.Vec3{}, mgl32.QuatIdent(), mgl32.Vec3{1, 1, 1}}
	}
	rest := skeleton.RestLocal[joint]
	t, r, s := decomposeTRS(rest)
	return jointTRS{t, r, s}
}

func applySampled(trs *jointTRS, sampled map[string][4]float32, joint string) {
	if v, ok := sampled[joint+".translation"]; ok {
		trs.translation = mgl32.Vec3{v[0], v[1], v[2]}
	}
	if v, ok := sampled[joint+".rotation"]; ok {
		trs.rotation = mgl32.Quat{W: v[3], V: mgl32.Vec3{v[0], v[1], v[2]}}
	}
	if v, ok := sampled[joint+".scale"]; ok {
		trs.scale = mgl32.Vec3{v[0], v[1], v[2]}
	}
}

func composeTRS(trs jointTRS) mgl32.Mat4 {
	t := mgl32.Translate3D(trs.translation.X(), trs.translation.Y(), trs.translation.Z())
	r := trs.rotation.Normalize().Mat4()
	s := mgl32.Scale3D(trs.scale.X(), trs.scale.Y(), trs.scale.Z())
	return t.Mul4(r).Mul4(s)
}

// decomposeTRS extracts an approximate translation/rotation/scale from a
// rest-pose matrix; skeletons are authored with orthogonal TRS composition
// so this is exact up to floating point, never a general polar
// decomposition.
func decomposeTRS(m mgl32.Mat4) (mgl32.Vec3, mgl32.Quat, mgl32.Vec3) {
	t := mgl32.Vec3{m[12], m[13], m[14]}
	sx := mgl32.Vec3{m[0], m[1], m[2]}.Len()
	sy := mgl32.Vec3{m[4], m[5], m[6]}.Len()
	sz := mgl32.Vec3{m[8], m[9], m[10]}.Len()
	rot := mgl32.Mat4{
		m[0] / nz(sx), m[1] / nz(sx), m[2] / nz(sx), 0,
		m[4] / nz(sy), m[5] / nz(sy), m[6] / nz(sy), 0,
		m[8] / nz(sz), m[9] / nz(sz), m[10] / nz(sz), 0,
		0, 0, 0, 1,
	}
	return t, mgl32.Mat4ToQuat(rot), mgl32.Vec3{sx, sy, sz}
}

func nz(v float32) float32 {
	if v == 0 {
		return 1
	}
	return v
}
