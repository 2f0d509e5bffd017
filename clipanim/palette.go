package clipanim

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// PaletteStore holds the joint-palette buffers the skeletal evaluator
// writes and the frame assembler uploads once per skin per frame (spec
// §4.4, §4.6 "Skinned meshes use the joint palette ... uploaded once per
// skin per frame"). Keyed by the small integer ids components.go's
// BoneTransforms/SkeletonInstance carry, not by skeleton key, since one
// skeleton asset can back many entity instances each with its own pose.
type PaletteStore struct {
	mu      sync.RWMutex
	buffers map[int][]mgl32.Mat4
	nextId  int
}

func NewPaletteStore() *PaletteStore {
	return &PaletteStore{buffers: make(map[int][]mgl32.Mat4)}
}

// Allocate reserves a fresh palette id for a newly-observed SkeletonInstance.
func (p *PaletteStore) Allocate() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextId++
	return p.nextId
}

func (p *PaletteStore) Set(id int, palette []mgl32.Mat4) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buffers[id] = palette
}

// Get returns the last-composed palette for id; consumers (the frame
// assembler) must not mutate the returned slice.
func (p *PaletteStore) Get(id int) ([]mgl32.Mat4, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.buffers[id]
	return b, ok
}

func (p *PaletteStore) Release(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.buffers, id)
}
