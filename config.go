package kestrel

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// WindowConfig is the config file's "window" section (spec §6).
type WindowConfig struct {
	Title      string `json:"title" yaml:"title"`
	Width      int    `json:"width" yaml:"width"`
	Height     int    `json:"height" yaml:"height"`
	Fullscreen bool   `json:"fullscreen" yaml:"fullscreen"`
}

// EditorConfig is the config file's "editor" section: zoom bounds and the
// sprite pixel-footprint guardrail (spec §6).
type EditorConfig struct {
	ZoomMin                 float32 `json:"zoom_min" yaml:"zoom_min"`
	ZoomMax                 float32 `json:"zoom_max" yaml:"zoom_max"`
	GuardrailMode           string  `json:"guardrail_mode" yaml:"guardrail_mode"` // Off|Warn|Clamp|Strict
	GuardrailPixelThreshold float32 `json:"guardrail_pixel_threshold" yaml:"guardrail_pixel_threshold"`
}

// ShadowConfigFile is the config file's "shadow" section (spec §6).
type ShadowConfigFile struct {
	CascadeCount int     `json:"cascade_count" yaml:"cascade_count"`
	Resolution   int     `json:"resolution" yaml:"resolution"`
	SplitLambda  float32 `json:"split_lambda" yaml:"split_lambda"`
	PCFRadius    int     `json:"pcf_radius" yaml:"pcf_radius"`
}

// ParticleConfig is the config file's "particles" section: engine-wide caps
// (spec §6 "particle caps (max spawn per frame, max total, max backlog)").
type ParticleConfig struct {
	MaxSpawnPerFrame int `json:"max_spawn_per_frame" yaml:"max_spawn_per_frame"`
	MaxTotal         int `json:"max_total" yaml:"max_total"`
	MaxBacklog       int `json:"max_backlog" yaml:"max_backlog"`
}

// ScriptConfigFile is the config file's "scripts" section (spec §6).
type ScriptConfigFile struct {
	CallbackBudgetMs      int    `json:"callback_budget_ms" yaml:"callback_budget_ms"`
	CommandQuota          int    `json:"command_quota" yaml:"command_quota"`
	DeterministicOrdering bool   `json:"deterministic_ordering" yaml:"deterministic_ordering"`
	Seed                  uint64 `json:"seed" yaml:"seed"`
}

// Config is the fully-resolved engine configuration (spec §6
// "Configuration"). It is built by merging, field by field, CLI overrides
// over a loaded config file over built-in defaults (spec §6 "Overrides beat
// config which beats built-in defaults; precedence is logged at startup").
type Config struct {
	Window        WindowConfig       `json:"window" yaml:"window"`
	VSync         bool               `json:"vsync" yaml:"vsync"`
	PresentMode   string             `json:"present_mode" yaml:"present_mode"`
	InputBindings map[string]string  `json:"input_bindings" yaml:"input_bindings"`
	Editor        EditorConfig       `json:"editor" yaml:"editor"`
	Shadow        ShadowConfigFile   `json:"shadow" yaml:"shadow"`
	Particles     ParticleConfig     `json:"particles" yaml:"particles"`
	Scripts       ScriptConfigFile   `json:"scripts" yaml:"scripts"`
	Scene         string             `json:"scene" yaml:"scene"`
}

// DefaultConfig returns the engine's built-in defaults, the lowest-priority
// layer in the precedence chain.
func DefaultConfig() Config {
	return Config{
		Window:      WindowConfig{Title: "Kestrel", Width: 1280, Height: 720},
		VSync:       true,
		PresentMode: "fifo",
		Editor:      EditorConfig{ZoomMin: 0.25, ZoomMax: 4, GuardrailMode: "Warn", GuardrailPixelThreshold: 2},
		Shadow:      ShadowConfigFile{CascadeCount: 4, Resolution: 2048, SplitLambda: 0.6, PCFRadius: 1},
		Particles:   ParticleConfig{MaxSpawnPerFrame: 256, MaxTotal: 8192, MaxBacklog: 1024},
		Scripts:     ScriptConfigFile{CallbackBudgetMs: 8, CommandQuota: 256, DeterministicOrdering: false, Seed: 1},
	}
}

// configSchema is intentionally permissive on unknown fields (additionalProperties
// left unrestricted) so a kestrel.dev.yaml overlay carrying local-only keys
// doesn't fail validation of the shipped JSON config contract.
const configSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"window": {
			"type": "object",
			"properties": {
				"title": {"type": "string"},
				"width": {"type": "integer", "minimum": 1},
				"height": {"type": "integer", "minimum": 1},
				"fullscreen": {"type": "boolean"}
			}
		},
		"vsync": {"type": "boolean"},
		"present_mode": {"type": "string"},
		"editor": {
			"type": "object",
			"properties": {
				"zoom_min": {"type": "number"},
				"zoom_max": {"type": "number"},
				"guardrail_mode": {"enum": ["Off", "Warn", "Clamp", "Strict"]},
				"guardrail_pixel_threshold": {"type": "number"}
			}
		},
		"shadow": {
			"type": "object",
			"properties": {
				"cascade_count": {"type": "integer", "minimum": 0},
				"resolution": {"type": "integer", "minimum": 1},
				"split_lambda": {"type": "number", "minimum": 0, "maximum": 1},
				"pcf_radius": {"type": "integer", "minimum": 0}
			}
		},
		"particles": {
			"type": "object",
			"properties": {
				"max_spawn_per_frame": {"type": "integer", "minimum": 0},
				"max_total": {"type": "integer", "minimum": 0},
				"max_backlog": {"type": "integer", "minimum": 0}
			}
		},
		"scripts": {
			"type": "object",
			"properties": {
				"callback_budget_ms": {"type": "integer", "minimum": 1},
				"command_quota": {"type": "integer", "minimum": 0},
				"deterministic_ordering": {"type": "boolean"},
				"seed": {"type": "integer"}
			}
		}
	}
}`

func compileConfigSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("kestrel-config.schema.json", strings.NewReader(configSchema)); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	schema, err := compiler.Compile("kestrel-config.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	return schema, nil
}

// LoadConfigFile reads and validates a JSON config file against the schema,
// returning FatalInit on any structural or schema violation (spec §6, §7
// "FatalInit — unrecoverable; process exits nonzero" applies to config that
// cannot even be parsed or validated).
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, NewFatalInit(fmt.Sprintf("reading config %q: %v", path, err))
	}

	schema, err := compileConfigSchema()
	if err != nil {
		return cfg, NewFatalInit(err.Error())
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return cfg, NewFatalInit(fmt.Sprintf("parsing config %q: %v", path, err))
	}
	if err := schema.Validate(doc); err != nil {
		return cfg, NewFatalInit(fmt.Sprintf("config %q failed validation: %v", path, err))
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, NewFatalInit(fmt.Sprintf("decoding config %q: %v", path, err))
	}
	return cfg, nil
}

// LoadDevOverlay merges a local, unvalidated kestrel.dev.yaml on top of cfg
// for developer-only tweaks outside the shipped JSON config contract (spec
// SPEC_FULL.md A.3); a missing overlay file is not an error.
func LoadDevOverlay(cfg Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading dev overlay %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing dev overlay %q: %w", path, err)
	}
	return cfg, nil
}

// CLIOverrides carries the subset of Config the command line can override
// (spec §6 "--width, --height, --vsync, --scene"); zero/empty fields mean
// "not specified on the command line" and do not override the layer below.
type CLIOverrides struct {
	Width     int
	Height    int
	VSyncSet  bool
	VSync     bool
	Scene     string
}

// ApplyCLIOverrides merges CLI flags over cfg, logging each field whose
// value changed at this layer (spec §6 "precedence is logged at startup").
func ApplyCLIOverrides(cfg Config, overrides CLIOverrides, logger Logger) Config {
	if overrides.Width > 0 && overrides.Width != cfg.Window.Width {
		logger.Infof("config: --width overrides window.width (%d -> %d)", cfg.Window.Width, overrides.Width)
		cfg.Window.Width = overrides.Width
	}
	if overrides.Height > 0 && overrides.Height != cfg.Window.Height {
		logger.Infof("config: --height overrides window.height (%d -> %d)", cfg.Window.Height, overrides.Height)
		cfg.Window.Height = overrides.Height
	}
	if overrides.VSyncSet && overrides.VSync != cfg.VSync {
		logger.Infof("config: --vsync overrides vsync (%v -> %v)", cfg.VSync, overrides.VSync)
		cfg.VSync = overrides.VSync
	}
	if overrides.Scene != "" && overrides.Scene != cfg.Scene {
		logger.Infof("config: --scene overrides scene (%q -> %q)", cfg.Scene, overrides.Scene)
		cfg.Scene = overrides.Scene
	}
	return cfg
}

// GuardrailPolicyFromString maps the config file's string enum to the
// runtime GuardrailPolicy value, defaulting to GuardrailWarn on an unknown
// or empty string.
func GuardrailPolicyFromString(s string) GuardrailPolicy {
	switch s {
	case "Off":
		return GuardrailOff
	case "Clamp":
		return GuardrailClamp
	case "Strict":
		return GuardrailStrict
	default:
		return GuardrailWarn
	}
}
