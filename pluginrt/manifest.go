package pluginrt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ManifestEntry is one plugin's declaration in the plugin manifest (spec §6
// "Plugin manifest").
type ManifestEntry struct {
	Name             string       `json:"name"`
	Version          string       `json:"version,omitempty"`
	Path             string       `json:"path"`
	Enabled          *bool        `json:"enabled,omitempty"`
	MinEngineAPI     int          `json:"min_engine_api,omitempty"`
	TrustName        string       `json:"trust,omitempty"` // "full" | "isolated"
	Capabilities     []Capability `json:"capabilities,omitempty"`
	RequiresFeatures []string     `json:"requires_features,omitempty"`
	ProvidesFeatures []string     `json:"provides_features,omitempty"`
	AssetFilters     []string     `json:"asset_filters,omitempty"`
}

// Trust resolves the entry's trust string to a Trust value, defaulting to
// FullTrust.
func (e ManifestEntry) Trust() Trust {
	if strings.EqualFold(e.TrustName, "isolated") {
		return Isolated
	}
	return FullTrust
}

// IsEnabled reports whether the entry should load; unset (nil) means
// enabled (spec §6 "enabled?").
func (e ManifestEntry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// ResolvedPath returns Path resolved against the manifest's directory when
// relative (spec §4.7 "Relative paths resolve against the manifest
// directory").
func (e ManifestEntry) ResolvedPath(manifestDir string) string {
	if filepath.IsAbs(e.Path) {
		return e.Path
	}
	return filepath.Join(manifestDir, e.Path)
}

// Manifest is the plugin manifest document (spec §6 "Plugin manifest").
type Manifest struct {
	DisableBuiltins []string        `json:"disable_builtins,omitempty"`
	Plugins         []ManifestEntry `json:"plugins"`
}

const manifestSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"disable_builtins": {"type": "array", "items": {"type": "string"}},
		"plugins": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "path"],
				"properties": {
					"name": {"type": "string"},
					"version": {"type": "string"},
					"path": {"type": "string"},
					"enabled": {"type": "boolean"},
					"min_engine_api": {"type": "integer"},
					"trust": {"enum": ["full", "isolated"]},
					"capabilities": {"type": "array", "items": {"type": "string"}},
					"requires_features": {"type": "array", "items": {"type": "string"}},
					"provides_features": {"type": "array", "items": {"type": "string"}},
					"asset_filters": {"type": "array", "items": {"type": "string"}}
				}
			}
		}
	},
	"required": ["plugins"]
}`

func compileManifestSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("kestrel-plugin-manifest.schema.json", strings.NewReader(manifestSchema)); err != nil {
		return nil, err
	}
	return c.Compile("kestrel-plugin-manifest.schema.json")
}

// LoadManifest reads and schema-validates a plugin manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pluginrt: reading manifest %q: %w", path, err)
	}

	schema, err := compileManifestSchema()
	if err != nil {
		return nil, fmt.Errorf("pluginrt: compiling manifest schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("pluginrt: parsing manifest %q: %w", path, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("pluginrt: manifest %q failed validation: %w", path, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("pluginrt: decoding manifest %q: %w", path, err)
	}
	return &m, nil
}

// LoadResult is the outcome of evaluating one manifest entry against the
// engine's API version and the set of features already provided by
// previously-loaded plugins.
type LoadResult struct {
	Entry  ManifestEntry
	Loaded bool
	Reason string
}

// ResolveLoadOrder evaluates every entry's min_engine_api and
// requires_features against engineAPI and the running provided-feature set,
// in manifest order, so later entries see features earlier ones provide
// (spec §4.7 "Missing required features fail the load; provided features
// register only on successful build").
func ResolveLoadOrder(m *Manifest, engineAPI int) []LoadResult {
	provided := make(map[string]bool)
	var results []LoadResult

	for _, e := range m.Plugins {
		if !e.IsEnabled() {
			results = append(results, LoadResult{Entry: e, Loaded: false, Reason: "disabled"})
			continue
		}
		if e.MinEngineAPI > engineAPI {
			results = append(results, LoadResult{Entry: e, Loaded: false, Reason: fmt.Sprintf("requires engine API >= %d, have %d", e.MinEngineAPI, engineAPI)})
			continue
		}
		missing := ""
		for _, feat := range e.RequiresFeatures {
			if !provided[feat] {
				missing = feat
				break
			}
		}
		if missing != "" {
			results = append(results, LoadResult{Entry: e, Loaded: false, Reason: fmt.Sprintf("missing required feature %q", missing)})
			continue
		}

		results = append(results, LoadResult{Entry: e, Loaded: true})
		for _, feat := range e.ProvidesFeatures {
			provided[feat] = true
		}
	}
	return results
}

// IsBuiltinDisabled reports whether name appears in the manifest's
// disable_builtins list.
func (m *Manifest) IsBuiltinDisabled(name string) bool {
	for _, n := range m.DisableBuiltins {
		if n == name {
			return true
		}
	}
	return false
}
