package clipanim

import "github.com/go-gl/mathgl/mgl32"

func vec3(v [4]float32) mgl32.Vec3 { return mgl32.Vec3{v[0], v[1], v[2]} }
func quat(v [4]float32) mgl32.Quat { return mgl32.Quat{W: v[3], V: mgl32.Vec3{v[0], v[1], v[2]}} }
