package scripthost

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/kestrel-engine/kestrel"
)

type countingScript struct {
	readyCalls   int
	processCalls int
	persist      bool
}

func (s *countingScript) PersistState() bool { return s.persist }
func (s *countingScript) Ready(ctx *Context) { s.readyCalls++ }
func (s *countingScript) Process(ctx *Context, dt float64) {
	s.processCalls++
	ctx.Commands.SetPosition("move.script", ctx.Entity, mgl32.Vec3{1, 2, 3})
}

func newScriptedApp(t *testing.T, loader Loader) (*kestrel.App, *Host) {
	t.Helper()
	app := kestrel.NewApp().Build()
	host := NewHost(DefaultConfig(), loader)
	host.Install(app, app.Commands())
	return app, host
}

func TestHost_FirstObservationInvokesReadyOnce(t *testing.T) {
	script := &countingScript{}
	app, host := newScriptedApp(t, func(path string) (Script, error) { return script, nil })

	e := app.World().Spawn(kestrel.ScriptBehaviour{ScriptPath: "move.script"}, kestrel.Transform{})
	host.runProcess(app)
	host.runProcess(app)

	if script.readyCalls != 1 {
		t.Fatalf("expected ready exactly once, got %d", script.readyCalls)
	}
	if script.processCalls != 2 {
		t.Fatalf("expected process called once per frame, got %d", script.processCalls)
	}

	var instId uint64
	kestrel.Query1Of[kestrel.ScriptBehaviour](app.World()).Each(func(id kestrel.EntityId, sb *kestrel.ScriptBehaviour) bool {
		if id == e {
			instId = sb.InstanceId
		}
		return true
	})
	if instId == 0 {
		t.Fatal("expected InstanceId to be allocated on first observation")
	}
}

func TestHost_ProcessCommandAppliesPositionAfterPhase(t *testing.T) {
	script := &countingScript{}
	app, host := newScriptedApp(t, func(path string) (Script, error) { return script, nil })

	e := app.World().Spawn(kestrel.ScriptBehaviour{ScriptPath: "move.script"}, kestrel.Transform{})
	host.runProcess(app)

	var pos mgl32.Vec3
	kestrel.Query1Of[kestrel.Transform](app.World()).Each(func(id kestrel.EntityId, tr *kestrel.Transform) bool {
		if id == e {
			pos = tr.Translation
		}
		return true
	})
	if pos != (mgl32.Vec3{1, 2, 3}) {
		t.Fatalf("expected SetPosition to have applied, got %v", pos)
	}
}

type panickingScript struct{}

func (panickingScript) PersistState() bool { return false }
func (panickingScript) Process(ctx *Context, dt float64) { panic("boom") }

func TestHost_PanicInCallbackErrorsInstanceWithoutCrashing(t *testing.T) {
	app, host := newScriptedApp(t, func(path string) (Script, error) { return panickingScript{}, nil })
	app.World().Spawn(kestrel.ScriptBehaviour{ScriptPath: "bad.script"})

	host.runProcess(app)
	host.runProcess(app)

	h := host
	h.mu.Lock()
	defer h.mu.Unlock()
	found := false
	for _, inst := range h.instances {
		if inst.scriptPath == "bad.script" {
			found = true
			if !inst.errored {
				t.Fatal("expected instance to be marked errored after a panic")
			}
		}
	}
	if !found {
		t.Fatal("expected an instance to have been created")
	}
}

type slowScript struct{}

func (slowScript) PersistState() bool { return false }
func (slowScript) Process(ctx *Context, dt float64) {
	time.Sleep(20 * time.Millisecond)
}

func TestHost_CallbackOverBudgetIsRecordedAsBudgetExceeded(t *testing.T) {
	app := kestrel.NewApp().Build()
	host := NewHost(Config{CallbackBudget: time.Millisecond}, func(path string) (Script, error) { return slowScript{}, nil })
	host.Install(app, app.Commands())
	app.World().Spawn(kestrel.ScriptBehaviour{ScriptPath: "slow.script"})

	host.runProcess(app)

	host.mu.Lock()
	defer host.mu.Unlock()
	for _, inst := range host.instances {
		if inst.scriptPath == "slow.script" && !inst.errored {
			t.Fatal("expected the slow callback to be errored for exceeding its budget")
		}
	}
}

func TestCommandQueue_DeterministicOrderingSortsByScriptPathThenEntity(t *testing.T) {
	app := kestrel.NewApp().Build()
	q := newCommandQueue()

	e1 := app.World().Spawn(kestrel.Transform{})
	e2 := app.World().Spawn(kestrel.Transform{})

	q.SetPosition("b.script", e1, mgl32.Vec3{1, 0, 0})
	q.SetPosition("a.script", e2, mgl32.Vec3{2, 0, 0})
	q.SetPosition("a.script", e1, mgl32.Vec3{3, 0, 0})

	q.apply(app, true)

	results := map[kestrel.EntityId]mgl32.Vec3{}
	kestrel.Query1Of[kestrel.Transform](app.World()).Each(func(id kestrel.EntityId, tr *kestrel.Transform) bool {
		results[id] = tr.Translation
		return true
	})
	if results[e1] != (mgl32.Vec3{1, 0, 0}) {
		t.Fatalf("expected e1's b.script write to win (applied last in sorted order), got %v", results[e1])
	}
	if results[e2] != (mgl32.Vec3{2, 0, 0}) {
		t.Fatalf("expected e2 set by a.script, got %v", results[e2])
	}
}

func TestCommandQueue_StaleHandleDropped(t *testing.T) {
	app := kestrel.NewApp().Build()
	q := newCommandQueue()

	e := app.World().Spawn(kestrel.Transform{})
	app.World().Despawn(e)

	q.SetPosition("x.script", e, mgl32.Vec3{9, 9, 9})
	q.apply(app, false) // must not panic despite the stale handle
}

type reloadableScript struct {
	persist    bool
	readyCalls int
	exitCalls  int
}

func (s *reloadableScript) PersistState() bool    { return s.persist }
func (s *reloadableScript) Ready(ctx *Context)     { s.readyCalls++ }
func (s *reloadableScript) Exit(ctx *Context)      { s.exitCalls++ }
func (s *reloadableScript) Process(ctx *Context, dt float64) {}

func TestHost_ReloadReInvokesReadyWhenNotPersisting(t *testing.T) {
	current := &reloadableScript{}
	app, host := newScriptedApp(t, func(path string) (Script, error) { return current, nil })
	app.World().Spawn(kestrel.ScriptBehaviour{ScriptPath: "hot.script"})
	host.runProcess(app)

	if current.readyCalls != 1 {
		t.Fatalf("expected one ready call before reload, got %d", current.readyCalls)
	}

	replacement := &reloadableScript{}
	host.loader = func(path string) (Script, error) { return replacement, nil }
	if err := host.Reload(app.World(), app.Logger(), "hot.script"); err != nil {
		t.Fatalf("unexpected reload error: %v", err)
	}

	if current.exitCalls != 1 {
		t.Fatalf("expected the old instance's Exit to fire once, got %d", current.exitCalls)
	}
	if replacement.readyCalls != 1 {
		t.Fatalf("expected the fresh instance's Ready to fire once, got %d", replacement.readyCalls)
	}
}
