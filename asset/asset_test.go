package asset

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_LoadIsIdempotentAndRefcounts(t *testing.T) {
	s := NewServer()
	calls := 0
	s.RegisterLoader(KindMesh, func(k Key) (any, error) {
		calls++
		return &Mesh{}, nil
	})

	h1, err := s.Load(KindMesh, "cube")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h2, err := s.Load(KindMesh, "cube")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected identical handles for the same key, got %+v and %+v", h1, h2)
	}
	if calls != 1 {
		t.Fatalf("expected the loader to run exactly once, ran %d times", calls)
	}
	if s.RefCount("cube") != 2 {
		t.Fatalf("expected refcount 2 after two loads, got %d", s.RefCount("cube"))
	}

	s.Release(h1)
	if s.RefCount("cube") != 1 {
		t.Fatalf("expected refcount 1 after one release, got %d", s.RefCount("cube"))
	}
	s.Release(h2)
	if s.RefCount("cube") != 0 {
		t.Fatalf("expected the asset to be dropped at refcount 0, got %d", s.RefCount("cube"))
	}
}

func TestServer_LoadWithoutRegisteredLoaderFails(t *testing.T) {
	s := NewServer()
	if _, err := s.Load(KindMaterial, "missing"); err == nil {
		t.Fatal("expected an error when no loader is registered for the kind")
	}
}

func TestServer_ReplaceBumpsVersionWithoutTouchingRefs(t *testing.T) {
	s := NewServer()
	s.RegisterLoader(KindMaterial, func(k Key) (any, error) { return &Material{}, nil })
	h, _ := s.Load(KindMaterial, "metal")

	_, v1, _ := s.Value(h)
	s.Replace("metal", &Material{Metallic: 1})
	_, v2, ok := s.Value(h)
	if !ok {
		t.Fatal("expected the handle to remain valid after Replace")
	}
	if v2 != v1+1 {
		t.Fatalf("expected version to bump by exactly 1, got %d -> %d", v1, v2)
	}
	if s.RefCount("metal") != 1 {
		t.Fatalf("expected Replace to leave refcount untouched, got %d", s.RefCount("metal"))
	}
}

func TestServer_MarkChangedBumpsVersion(t *testing.T) {
	s := NewServer()
	s.RegisterLoader(KindAtlas, func(k Key) (any, error) { return &Atlas{}, nil })
	h, _ := s.Load(KindAtlas, "sheet")

	_, before, _ := s.Value(h)
	s.MarkChanged("sheet")
	_, after, _ := s.Value(h)
	if after != before+1 {
		t.Fatalf("expected MarkChanged to bump version by 1, got %d -> %d", before, after)
	}
}

func TestServer_LoadAllPreloadsConcurrentlyAndRetainsEachOnce(t *testing.T) {
	s := NewServer()
	var callsMu countingLoader
	s.RegisterLoader(KindAtlas, callsMu.load)

	handles, err := s.LoadAll(KindAtlas, []Key{"a", "b", "c", "a"})
	require.NoError(t, err)
	require.Len(t, handles, 4, "expected one handle back per requested key")
	assert.Equal(t, Handle{Kind: KindAtlas, Key: "a"}, handles[0])
	assert.Equal(t, 2, s.RefCount("a"), "key a was requested twice in the batch")
	assert.Equal(t, 1, s.RefCount("b"))
	assert.Equal(t, 1, s.RefCount("c"))
}

func TestServer_LoadAllPropagatesFirstError(t *testing.T) {
	s := NewServer()
	s.RegisterLoader(KindMesh, func(k Key) (any, error) {
		if k == "bad" {
			return nil, errors.New("boom")
		}
		return &Mesh{}, nil
	})

	if _, err := s.LoadAll(KindMesh, []Key{"good", "bad"}); err == nil {
		t.Fatal("expected LoadAll to propagate a loader failure")
	}
}

func TestComputeFastEligible(t *testing.T) {
	uniform := []TimelineFrame{{Duration: 0.1}, {Duration: 0.1}, {Duration: 0.1}}
	if !ComputeFastEligible(uniform, 0) {
		t.Fatal("expected uniform durations with no events under LoopForever to be fast-eligible")
	}

	nonUniform := []TimelineFrame{{Duration: 0.1}, {Duration: 0.2}}
	if ComputeFastEligible(nonUniform, 0) {
		t.Fatal("expected non-uniform durations to be ineligible")
	}

	withEvents := []TimelineFrame{{Duration: 0.1, Events: []string{"hit"}}, {Duration: 0.1}}
	if ComputeFastEligible(withEvents, 0) {
		t.Fatal("expected a frame with events to be ineligible")
	}

	if ComputeFastEligible(uniform, 1) {
		t.Fatal("expected a non-LoopForever mode to be ineligible")
	}
}

func TestDecodeAtlasImage_RejectsGarbageBytes(t *testing.T) {
	if _, err := DecodeAtlasImage([]byte("not an image")); err == nil {
		t.Fatal("expected decoding garbage bytes to fail")
	}
}

type countingLoader struct {
	n atomic.Int64
}

func (c *countingLoader) load(k Key) (any, error) {
	c.n.Add(1)
	return &Atlas{Regions: map[string]AtlasRegion{}}, nil
}
