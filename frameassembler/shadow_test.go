package frameassembler

import "testing"

func TestComputeCascadeSplits_CountAndMonotonic(t *testing.T) {
	cfg := ShadowConfig{CascadeCount: 4, SplitLambda: 0.5}
	splits := ComputeCascadeSplits(cfg, 0.1, 100)
	if len(splits) != 5 {
		t.Fatalf("expected cascadeCount+1 split boundaries, got %d", len(splits))
	}
	for i := 1; i < len(splits); i++ {
		if splits[i] <= splits[i-1] {
			t.Fatalf("expected strictly increasing splits, got %v at index %d <= %v at %d", splits[i], i, splits[i-1], i-1)
		}
	}
	if splits[0] != 0.1 {
		t.Fatalf("expected first split to equal near plane, got %v", splits[0])
	}
}

func TestComputeCascadeSplits_PureUniformIsLinear(t *testing.T) {
	cfg := ShadowConfig{CascadeCount: 2, SplitLambda: 0}
	splits := ComputeCascadeSplits(cfg, 0, 100)
	if splits[1] != 50 {
		t.Fatalf("expected a pure-uniform 2-cascade split to land exactly at the midpoint, got %v", splits[1])
	}
}

func TestComputeCascadeSplits_ZeroCascadesReturnsNil(t *testing.T) {
	cfg := ShadowConfig{CascadeCount: 0}
	if splits := ComputeCascadeSplits(cfg, 0.1, 100); splits != nil {
		t.Fatalf("expected no splits for zero cascades, got %v", splits)
	}
}
