package frameassembler

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// WGPUBackend owns the device/queue/surface (teacher's gpu_operations.go
// createWindowState/createGpuState), adapted into the Backend seam so the
// assembler's culling/batching code never imports wgpu directly.
type WGPUBackend struct {
	window  *glfw.Window
	surface *wgpu.Surface
	adapter *wgpu.Adapter
	device  *wgpu.Device
	queue   *wgpu.Queue
	config  *wgpu.SurfaceConfiguration
}

// NewWGPUBackend brings up GLFW + a wgpu device bound to its surface, the
// way gekko's createWindowState/createGpuState do, generalized off a
// single window title/size pair rather than gekko's separate
// WindowState/GpuState split.
func NewWGPUBackend(width, height int, title string) (*WGPUBackend, error) {
	if err := glfw.Init(); err != nil {
		return nil, err
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, err
	}

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()
	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(win))

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, err
	}

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "kestrel device"})
	if err != nil {
		return nil, err
	}
	queue := device.GetQueue()

	caps := surface.GetCapabilities(adapter)
	cfg := wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(adapter, device, &cfg)

	return &WGPUBackend{
		window:  win,
		surface: surface,
		adapter: adapter,
		device:  device,
		queue:   queue,
		config:  &cfg,
	}, nil
}

// AcquireFrame mirrors gekko's nextTexture/CreateView sequence
// (mod_client.go), but converts an acquire failure into SurfaceLost
// instead of panicking — spec §4.6 "Surface loss recovery ... must not
// panic".
func (b *WGPUBackend) AcquireFrame() (FrameTarget, SurfaceStatus) {
	tex, err := b.surface.GetCurrentTexture()
	if err != nil {
		return nil, SurfaceLost
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		return nil, SurfaceLost
	}
	return &wgpuFrameTarget{surface: b.surface, texture: tex, view: view}, SurfaceOK
}

func (b *WGPUBackend) Reconfigure(width, height int) {
	b.config.Width = uint32(width)
	b.config.Height = uint32(height)
	b.surface.Configure(b.adapter, b.device, b.config)
}

func (b *WGPUBackend) UploadSpriteBatch(batch SpriteBatch) {
	if len(batch.Instances) == 0 {
		return
	}
	_, err := b.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "sprite instances: " + batch.AtlasKey,
		Contents: wgpu.ToBytes(batch.Instances),
		Usage:    wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return
	}
}

func (b *WGPUBackend) UploadSkinPalette(paletteId int, joints []float32) {
	if len(joints) == 0 {
		return
	}
	_, _ = b.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "skin palette",
		Contents: wgpu.ToBytes(joints),
		Usage:    wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
}

func (b *WGPUBackend) BeginPass(kind PassKind) PassHandle {
	return PassHandle(kind)
}

func (b *WGPUBackend) EndPass(h PassHandle) uint64 {
	// This backend records no GPU timestamp queries, so there is no pass
	// duration to report; nothing feeds pass timings into TimingHistory.
	return 0
}

type wgpuFrameTarget struct {
	surface *wgpu.Surface
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

func (f *wgpuFrameTarget) Present() {
	f.surface.Present()
}

func (f *wgpuFrameTarget) Release() {
	f.view.Release()
	f.texture.Release()
}
