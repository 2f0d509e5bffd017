// Package asset implements the reference-counted, string-keyed asset
// server shared by the animation, physics, and frame-assembler packages.
package asset

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"
	"sync"

	_ "golang.org/x/image/bmp"
	"golang.org/x/sync/errgroup"

	"github.com/go-gl/mathgl/mgl32"
)

// Kind distinguishes the asset catalogs the server tracks.
type Kind int

const (
	KindAtlas Kind = iota
	KindMesh
	KindMaterial
	KindEnvironment
	KindClip
	KindSkeleton
	KindScript
)

// Key identifies an asset within one Kind's catalog. Loads are idempotent:
// the same key always resolves to the same handle and the same refcount
// slot, matching every other example in this catalog's retain/release
// convention.
type Key string

// Handle is the value callers hold; it never owns the asset, only refers to
// it by key. Release must be called exactly once per Retain/Load.
type Handle struct {
	Kind Kind
	Key  Key
}

type record struct {
	kind    Kind
	refs    int
	version uint64
	value   any
}

// Server owns every asset catalog. Reference counts are plain ints guarded
// by a mutex — the asset watcher thread is the only other writer, and it
// only ever calls MarkChanged, never mutates refs directly.
type Server struct {
	mu      sync.Mutex
	records map[Key]*record
	loaders map[Kind]func(Key) (any, error)
}

// NewServer constructs an asset server with no catalogs registered yet;
// callers wire loaders with RegisterLoader before the first Load.
func NewServer() *Server {
	return &Server{
		records: make(map[Key]*record),
		loaders: make(map[Kind]func(Key) (any, error)),
	}
}

// RegisterLoader installs the function used to materialize a Key the first
// time it's loaded for a given Kind.
func (s *Server) RegisterLoader(kind Kind, fn func(Key) (any, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaders[kind] = fn
}

// Load retains an asset by key, loading it on first reference. Identical
// key ⇒ identical handle (spec §3 "Assets"). A load failure returns an
// AssetLoadError-shaped error; callers substitute a default asset and log
// once rather than propagating it further.
func (s *Server) Load(kind Kind, key Key) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[key]; ok {
		rec.refs++
		return Handle{Kind: kind, Key: key}, nil
	}

	loader, ok := s.loaders[kind]
	if !ok {
		return Handle{}, fmt.Errorf("asset: no loader registered for kind %d", kind)
	}
	value, err := loader(key)
	if err != nil {
		return Handle{}, err
	}
	s.records[key] = &record{kind: kind, refs: 1, version: 1, value: value}
	return Handle{Kind: kind, Key: key}, nil
}

// LoadAll preloads every key concurrently (decode/IO work for each key runs
// on its own goroutine via errgroup) then retains them under a single lock,
// so a scene's referenced atlases/meshes warm in parallel at startup instead
// of serially. Returns the handles in the same order as keys; any single
// failure aborts the whole batch.
func (s *Server) LoadAll(kind Kind, keys []Key) ([]Handle, error) {
	values := make([]any, len(keys))
	var g errgroup.Group
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			s.mu.Lock()
			if rec, ok := s.records[key]; ok {
				s.mu.Unlock()
				values[i] = rec.value
				return nil
			}
			loader, ok := s.loaders[kind]
			s.mu.Unlock()
			if !ok {
				return fmt.Errorf("asset: no loader registered for kind %d", kind)
			}
			value, err := loader(key)
			if err != nil {
				return err
			}
			values[i] = value
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	handles := make([]Handle, len(keys))
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, key := range keys {
		if rec, ok := s.records[key]; ok {
			rec.refs++
		} else {
			s.records[key] = &record{kind: kind, refs: 1, version: 1, value: values[i]}
		}
		handles[i] = Handle{Kind: kind, Key: key}
	}
	return handles, nil
}

// Retain increments the refcount of an already-loaded asset.
func (s *Server) Retain(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[h.Key]; ok {
		rec.refs++
	}
}

// Release decrements the refcount, dropping the asset at zero.
func (s *Server) Release(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[h.Key]
	if !ok {
		return
	}
	rec.refs--
	if rec.refs <= 0 {
		delete(s.records, h.Key)
	}
}

// Value returns the underlying asset value and its version, or false if the
// handle no longer resolves (dropped, or never loaded).
func (s *Server) Value(h Handle) (any, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[h.Key]
	if !ok {
		return nil, 0, false
	}
	return rec.value, rec.version, true
}

// RefCount reports the live refcount for a key, for tests and diagnostics.
func (s *Server) RefCount(key Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[key]; ok {
		return rec.refs
	}
	return 0
}

// MarkChanged bumps the version of a loaded asset in place (hot reload)
// without swapping its value. Replace bumps the version on its own, so a
// Replace followed by MarkChanged bumps it twice.
func (s *Server) MarkChanged(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[key]; ok {
		rec.version++
	}
}

// Replace swaps the live value for key without touching the refcount,
// leaving every outstanding Handle pointed at the same key valid.
func (s *Server) Replace(key Key, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[key]; ok {
		rec.value = value
		rec.version++
	}
}

// AtlasRegion is one named sub-rectangle of an atlas's source image.
type AtlasRegion struct {
	X, Y, W, H int
}

// TimelineFrame is one entry of a Sprite Animation Evaluator timeline.
type TimelineFrame struct {
	RegionId string
	Duration float32
	Events   []string
}

// Timeline is an ordered sequence of frames; it does not carry a loop mode.
// FastEligible is computed once at load and cached so the evaluator never
// recomputes it per frame.
type Timeline struct {
	Frames       []TimelineFrame
	FastEligible bool
}

// Atlas is a decoded image plus its named regions and timelines.
type Atlas struct {
	Image     image.Image
	Regions   map[string]AtlasRegion
	Timelines map[string]Timeline
}

// DecodeAtlasImage decodes PNG or BMP bytes into an image.Image; callers
// attach Regions/Timelines from the accompanying JSON descriptor (owned by
// the editor/importer, out of scope here per spec §1).
func DecodeAtlasImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("asset: decode atlas image: %w", err)
	}
	return img, nil
}

// ComputeFastEligible implements spec §3 "fast_loop_eligible iff durations
// are uniform, loop mode is Loop, and no events exist".
func ComputeFastEligible(frames []TimelineFrame, loopMode int) bool {
	if len(frames) == 0 || loopMode != 0 /* LoopForever */ {
		return false
	}
	first := frames[0].Duration
	for _, f := range frames {
		if f.Duration != first {
			return false
		}
		if len(f.Events) > 0 {
			return false
		}
	}
	return true
}

// Mesh is CPU-side geometry; GPU buffers are uploaded lazily by the frame
// assembler on first use and cached alongside.
type Mesh struct {
	Vertices []mgl32.Vec3
	Normals  []mgl32.Vec3
	UVs      []mgl32.Vec2
	Indices  []uint16
}

// Material names the shader and its parameters.
type Material struct {
	ShaderName string
	BaseColor  [4]float32
	Metallic   float32
	Roughness  float32
}

// Environment bundles an HDR source with its prefiltered IBL maps.
type Environment struct {
	HDRKey          string
	PrefilteredKeys []string
	BRDFLutKey      string
}

// Clip is a transform/skeletal animation clip (see package clipanim for the
// evaluator consuming it).
type Clip struct {
	Channels map[string]Channel
	Duration float64
}

// Channel is one ordered, strictly-time-increasing keyframe stream.
type Channel struct {
	Times         []float64
	Values        [][4]float32 // vec3/quat packed into the first 3/4 components
	Interpolation InterpolationMode
	Target        ChannelTarget
}

type InterpolationMode int

const (
	InterpStep InterpolationMode = iota
	InterpLinear
)

// ChannelTarget says how to interpret a Channel's packed [4]float32 values
// and how Linear interpolation combines two keyframes (spec §4.4 "lerp for
// vec/scalar, spherical-linear for quaternions").
type ChannelTarget int

const (
	TargetVec3 ChannelTarget = iota
	TargetQuat
	TargetScalar
)

// Skeleton is the joint hierarchy a SkinMesh is bound to.
type Skeleton struct {
	JointNames     []string
	ParentIndex    []int
	InverseBind    []mgl32.Mat4
	RestLocal      []mgl32.Mat4
}

// Script is a compiled AST, opaque to this package; the script host decides
// how to execute it.
type Script struct {
	Path string
	AST  any
}

// NormalizeChannel collapses runs of equal adjacent keyframe times to
// last-wins (spec §3 "Animation Clips"). It does not sort the times or
// check that they increase. Called once at clip load, never per frame.
func NormalizeChannel(c Channel) Channel {
	if len(c.Times) == 0 {
		return c
	}
	times := make([]float64, 0, len(c.Times))
	values := make([][4]float32, 0, len(c.Values))
	for i := range c.Times {
		if len(times) > 0 && c.Times[i] == times[len(times)-1] {
			values[len(values)-1] = c.Values[i]
			continue
		}
		times = append(times, c.Times[i])
		values = append(values, c.Values[i])
	}
	c.Times = times
	c.Values = values
	return c
}
