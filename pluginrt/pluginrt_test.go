package pluginrt

import (
	"testing"
	"time"

	"github.com/kestrel-engine/kestrel"
)

type recordingPlugin struct {
	name      string
	builds    int
	updates   int
	fixedUps  int
	buildErr  error
	panicOn   string
}

func (p *recordingPlugin) Name() string { return p.name }
func (p *recordingPlugin) Build(ctx *Context) error {
	p.builds++
	if p.panicOn == "build" {
		panic("boom")
	}
	return p.buildErr
}
func (p *recordingPlugin) Update(ctx *Context, dt float64) error {
	p.updates++
	if p.panicOn == "update" {
		panic("boom")
	}
	return nil
}
func (p *recordingPlugin) FixedUpdate(ctx *Context, dt float64) error {
	p.fixedUps++
	return nil
}
func (p *recordingPlugin) OnEvents(ctx *Context, events []kestrel.Event) error { return nil }
func (p *recordingPlugin) Shutdown(ctx *Context) error                        { return nil }

func newTestApp() *kestrel.App {
	return kestrel.NewApp().Build()
}

func TestRuntime_BuildTransitionsToRunning(t *testing.T) {
	app := newTestApp()
	rt := NewRuntime(nil)
	p := &recordingPlugin{name: "alpha"}
	rt.Register(p, FullTrust)
	rt.Install(app, app.Commands())

	rt.buildAll(app)

	status, ok := rt.Status("alpha")
	if !ok || status != StatusRunning {
		t.Fatalf("expected alpha to be Running after a clean build, got %v (ok=%v)", status, ok)
	}
	if p.builds != 1 {
		t.Fatalf("expected exactly 1 build call, got %d", p.builds)
	}
}

func TestRuntime_PanicInBuildMarksFailedWithoutCrashing(t *testing.T) {
	app := newTestApp()
	rt := NewRuntime(nil)
	p := &recordingPlugin{name: "beta", panicOn: "build"}
	rt.Register(p, FullTrust)
	rt.Install(app, app.Commands())

	rt.buildAll(app)

	status, ok := rt.Status("beta")
	if !ok || status != StatusFailed {
		t.Fatalf("expected beta to be Failed after a panicking build, got %v (ok=%v)", status, ok)
	}
}

func TestRuntime_PanicInUpdateDoesNotStopOtherPlugins(t *testing.T) {
	app := newTestApp()
	rt := NewRuntime(nil)
	bad := &recordingPlugin{name: "bad", panicOn: "update"}
	good := &recordingPlugin{name: "good"}
	rt.Register(bad, FullTrust)
	rt.Register(good, FullTrust)
	rt.Install(app, app.Commands())

	rt.buildAll(app)
	rt.updateAll(app)

	if good.updates != 1 {
		t.Fatalf("expected the healthy plugin to still update once, got %d", good.updates)
	}
	status, _ := rt.Status("bad")
	if status != StatusFailed {
		t.Fatalf("expected the panicking plugin to be Failed, got %v", status)
	}
}

func TestContext_World_DeniedWithoutCapECS(t *testing.T) {
	app := newTestApp()
	reg := &registration{name: "gamma", capabilities: map[Capability]bool{}}
	ctx := &Context{app: app, plug: reg}

	if _, err := ctx.World(); err == nil {
		t.Fatal("expected World() to be denied without CapECS")
	}
	if len(reg.violations) != 1 {
		t.Fatalf("expected 1 recorded capability violation, got %d", len(reg.violations))
	}
}

func TestContext_World_AllowedWithCapECS(t *testing.T) {
	app := newTestApp()
	reg := &registration{name: "delta", capabilities: map[Capability]bool{CapECS: true}}
	ctx := &Context{app: app, plug: reg}

	if _, err := ctx.World(); err != nil {
		t.Fatalf("expected World() to succeed with CapECS declared, got %v", err)
	}
}

func TestResolveLoadOrder_MissingRequiredFeatureFailsLoad(t *testing.T) {
	m := &Manifest{Plugins: []ManifestEntry{
		{Name: "needs-physics", Path: "a.so", RequiresFeatures: []string{"physics-extras"}},
	}}
	results := ResolveLoadOrder(m, 1)
	if results[0].Loaded {
		t.Fatal("expected a plugin requiring an unprovided feature to fail loading")
	}
}

func TestResolveLoadOrder_LaterEntrySeesEarlierProvidedFeature(t *testing.T) {
	m := &Manifest{Plugins: []ManifestEntry{
		{Name: "provider", Path: "a.so", ProvidesFeatures: []string{"physics-extras"}},
		{Name: "consumer", Path: "b.so", RequiresFeatures: []string{"physics-extras"}},
	}}
	results := ResolveLoadOrder(m, 1)
	if !results[0].Loaded || !results[1].Loaded {
		t.Fatalf("expected both plugins to load, got %+v", results)
	}
}

func TestResolveLoadOrder_DisabledEntrySkipped(t *testing.T) {
	disabled := false
	m := &Manifest{Plugins: []ManifestEntry{{Name: "off", Path: "a.so", Enabled: &disabled}}}
	results := ResolveLoadOrder(m, 1)
	if results[0].Loaded || results[0].Reason != "disabled" {
		t.Fatalf("expected a disabled entry to be skipped, got %+v", results[0])
	}
}

func TestManifest_IsBuiltinDisabled(t *testing.T) {
	m := &Manifest{DisableBuiltins: []string{"particles"}}
	if !m.IsBuiltinDisabled("particles") {
		t.Fatal("expected particles to be reported as disabled")
	}
	if m.IsBuiltinDisabled("physics") {
		t.Fatal("expected physics to not be reported as disabled")
	}
}

func TestAssetReadbackQuota_EnforcesRequestAndByteLimits(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q := NewAssetReadbackQuota(func() time.Time { return fixed })

	for i := 0; i < quotaRequestLimit; i++ {
		if !q.Allow(1024) {
			t.Fatalf("expected request %d within the window to be allowed", i)
		}
	}
	if q.Allow(1) {
		t.Fatal("expected the request beyond the per-window limit to be denied")
	}
}

func TestAssetReadbackQuota_WindowResetsOverTime(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q := NewAssetReadbackQuota(func() time.Time { return now })

	for i := 0; i < quotaRequestLimit; i++ {
		q.Allow(1)
	}
	if q.Allow(1) {
		t.Fatal("expected the window to be exhausted before advancing time")
	}

	now = now.Add(quotaWindow + time.Millisecond)
	if !q.Allow(1) {
		t.Fatal("expected a fresh window to allow requests again")
	}
}

func TestAssetFilterAllows_WildcardAndExactMatch(t *testing.T) {
	if !AssetFilterAllows([]string{"atlas/*"}, "atlas/hero") {
		t.Fatal("expected a trailing wildcard filter to match a prefixed key")
	}
	if AssetFilterAllows([]string{"atlas/*"}, "mesh/hero") {
		t.Fatal("expected a non-matching prefix to be denied")
	}
	if !AssetFilterAllows([]string{"hero.atlas"}, "hero.atlas") {
		t.Fatal("expected an exact filter to match its exact key")
	}
	if AssetFilterAllows(nil, "hero.atlas") {
		t.Fatal("expected an empty filter list to deny everything")
	}
}
