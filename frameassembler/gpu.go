package frameassembler

// SurfaceStatus is the swapchain's acquire result (spec §4.6 "Surface loss
// recovery").
type SurfaceStatus int

const (
	SurfaceOK SurfaceStatus = iota
	SurfaceLost
	SurfaceOutdated
)

// PassKind names a GPU timestamp region (spec §4.6 step 8).
type PassKind int

const (
	PassShadow PassKind = iota
	PassMesh
	PassSprite
	PassUI
)

// FrameTarget is the acquired swapchain frame a backend hands the
// assembler for this frame's passes.
type FrameTarget interface {
	Present()
	Release()
}

// Backend is the seam between the assembler's CPU-side culling/batching
// logic and the GPU device. The production implementation wraps
// cogentcore/webgpu (see wgpu_backend.go); tests use a fake implementing
// the same interface, matching the asset.Server loader-registration
// pattern of keeping the hardware-specific bits behind a narrow contract.
type Backend interface {
	AcquireFrame() (FrameTarget, SurfaceStatus)
	Reconfigure(width, height int)
	UploadSpriteBatch(b SpriteBatch)
	UploadSkinPalette(paletteId int, joints []float32)
	BeginPass(kind PassKind) PassHandle
	EndPass(h PassHandle) (durationNanos uint64)
}

// PassHandle identifies an in-flight GPU timestamp query pair.
type PassHandle int

// SurfaceRecovery implements spec §4.6's "Surface loss recovery": on
// Lost/Outdated the current frame is abandoned and the surface
// reconfigured with the prior extent; the next AcquireFrame must succeed
// in a stable environment. It never panics.
type SurfaceRecovery struct {
	backend       Backend
	width, height int
}

func NewSurfaceRecovery(backend Backend, width, height int) *SurfaceRecovery {
	return &SurfaceRecovery{backend: backend, width: width, height: height}
}

// Resize updates the extent used for the next reconfiguration.
func (r *SurfaceRecovery) Resize(width, height int) {
	r.width, r.height = width, height
}

// AcquireFrame returns a usable FrameTarget, or nil if this frame must be
// abandoned (Lost/Outdated) — the caller skips all passes and tries again
// next frame.
func (r *SurfaceRecovery) AcquireFrame() FrameTarget {
	target, status := r.backend.AcquireFrame()
	switch status {
	case SurfaceOK:
		return target
	case SurfaceLost, SurfaceOutdated:
		r.backend.Reconfigure(r.width, r.height)
		return nil
	default:
		return nil
	}
}
