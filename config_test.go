package kestrel

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFile_ValidConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	const body = `{"window": {"title": "Demo", "width": 1920, "height": 1080}, "vsync": false}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Window.Width != 1920 || cfg.Window.Height != 1080 {
		t.Fatalf("expected window overrides to apply, got %+v", cfg.Window)
	}
	if cfg.VSync {
		t.Fatal("expected vsync false to override the default true")
	}
	if cfg.Particles.MaxTotal != DefaultConfig().Particles.MaxTotal {
		t.Fatalf("expected unspecified fields to keep their defaults, got %+v", cfg.Particles)
	}
}

func TestLoadConfigFile_SchemaViolationIsFatalInit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	const body = `{"editor": {"guardrail_mode": "Nonsense"}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadConfigFile(path)
	if err == nil {
		t.Fatal("expected an invalid guardrail_mode to fail schema validation")
	}
	if _, ok := err.(*FatalInitError); !ok {
		t.Fatalf("expected a FatalInitError, got %T: %v", err, err)
	}
}

func TestApplyCLIOverrides_OnlySetFieldsOverride(t *testing.T) {
	cfg := DefaultConfig()
	overrides := CLIOverrides{Width: 640}
	out := ApplyCLIOverrides(cfg, overrides, NewNopLogger())

	if out.Window.Width != 640 {
		t.Fatalf("expected width override to apply, got %d", out.Window.Width)
	}
	if out.Window.Height != cfg.Window.Height {
		t.Fatalf("expected height to remain at its default, got %d", out.Window.Height)
	}
}

func TestGuardrailPolicyFromString_UnknownDefaultsToWarn(t *testing.T) {
	if GuardrailPolicyFromString("garbage") != GuardrailWarn {
		t.Fatal("expected an unrecognized guardrail mode to default to Warn")
	}
	if GuardrailPolicyFromString("Strict") != GuardrailStrict {
		t.Fatal("expected Strict to map through")
	}
}
