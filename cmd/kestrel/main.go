// Command kestrel is the engine's standalone runner: it loads the layered
// config (defaults, project config file, dev overlay, CLI overrides),
// brings up the asset server and every gameplay module, optionally loads a
// starting scene, and drives the frame loop until the window closes or a
// FatalInitError aborts startup (spec §6 "External Interfaces").
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	kestrel "github.com/kestrel-engine/kestrel"
	"github.com/kestrel-engine/kestrel/asset"
	"github.com/kestrel-engine/kestrel/clipanim"
	"github.com/kestrel-engine/kestrel/frameassembler"
	"github.com/kestrel-engine/kestrel/particlesim"
	"github.com/kestrel-engine/kestrel/physicsstep"
	"github.com/kestrel-engine/kestrel/pluginrt"
	"github.com/kestrel-engine/kestrel/scene"
	"github.com/kestrel-engine/kestrel/scripthost"
	"github.com/kestrel-engine/kestrel/spriteanim"
	"github.com/kestrel-engine/kestrel/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type cliFlags struct {
	project  string
	width    int
	height   int
	vsync    bool
	vsyncSet bool
	scene    string
	manifest string
}

func newRootCmd() *cobra.Command {
	var flags cliFlags

	cmd := &cobra.Command{
		Use:   "kestrel",
		Short: "Run a Kestrel project",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.vsyncSet = cmd.Flags().Changed("vsync")
			return run(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.project, "project", ".", "project directory containing kestrel.config.json")
	cmd.Flags().IntVar(&flags.width, "width", 0, "override window width")
	cmd.Flags().IntVar(&flags.height, "height", 0, "override window height")
	cmd.Flags().BoolVar(&flags.vsync, "vsync", false, "override vsync")
	cmd.Flags().StringVar(&flags.scene, "scene", "", "override the starting scene path")
	cmd.Flags().StringVar(&flags.manifest, "plugins", "", "path to a plugin manifest file")

	return cmd
}

func run(cmd *cobra.Command, flags cliFlags) error {
	logger := kestrel.NewDefaultLogger("kestrel", false)

	cfg, err := loadConfig(flags, logger)
	if err != nil {
		return reportFatal(logger, err)
	}

	app := kestrel.NewApp()
	app.DeterministicOrdering = cfg.Scripts.DeterministicOrdering
	app.Seed = cfg.Scripts.Seed

	assets := asset.NewServer()

	backend, err := frameassembler.NewWGPUBackend(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title)
	if err != nil {
		return reportFatal(logger, kestrel.NewFatalInit(fmt.Sprintf("bringing up the render backend: %v", err)))
	}

	physics := physicsstep.NewStep(physicsstep.DefaultConfig())
	sprites := spriteanim.NewEvaluator(assets, 256)
	clips := clipanim.NewEvaluator(assets)
	palettes := clips.Palettes
	regions := frameassembler.AssetRegionResolver{Assets: assets}
	assembler := frameassembler.NewAssembler(frameassembler.DefaultConfig(), regions, palettes, backend)
	particles := particlesim.NewSimulator(particlesim.Config{
		MaxSpawnPerFrame: cfg.Particles.MaxSpawnPerFrame,
		MaxTotal:         cfg.Particles.MaxTotal,
		MaxBacklog:       cfg.Particles.MaxBacklog,
	})

	scriptCfg := scripthost.DefaultConfig()
	scriptCfg.DeterministicOrdering = cfg.Scripts.DeterministicOrdering
	scripts := scripthost.NewHost(scriptCfg, noScriptsLoader)
	plugins := pluginrt.NewRuntime(logger)

	// physicsstep and frameassembler expose plain Stats() snapshots (unlike
	// spriteanim.Evaluator, which already owns its own telemetry.Cell), so
	// wrap each in a Publisher to republish once per TelemetryUpdate stage.
	physicsTelemetry := telemetry.NewPublisher(physicsstep.Stats{}, physics.Stats)
	assemblerTelemetry := telemetry.NewPublisher(frameassembler.Stats{}, assembler.Stats)
	particlesTelemetry := telemetry.NewPublisher(particlesim.Stats{}, particles.Stats)

	app.UseModules(
		kestrel.WorldPropagateModule{},
		moduleFunc(physics.Install), moduleFunc(sprites.Install), moduleFunc(clips.Install),
		moduleFunc(particles.Install), moduleFunc(assembler.Install),
		physicsTelemetry, assemblerTelemetry, particlesTelemetry,
	)
	app.Build()

	scripts.Install(app, app.Commands())
	plugins.Install(app, app.Commands())

	if flags.manifest != "" {
		if err := loadPlugins(flags.manifest, plugins, logger); err != nil {
			return reportFatal(logger, err)
		}
	}

	if cfg.Scene != "" {
		if err := loadStartingScene(cfg.Scene, app); err != nil {
			return reportFatal(logger, err)
		}
	}

	logger.Infof("kestrel starting: project=%s window=%dx%d vsync=%v", flags.project, cfg.Window.Width, cfg.Window.Height, cfg.VSync)
	app.Run()
	plugins.Shutdown(app)
	return nil
}

// moduleFunc adapts an Install-shaped method value into kestrel.Module so
// App.UseModules can take it directly, without every subsystem needing to
// declare its own named Module wrapper type.
type moduleFunc func(app *kestrel.App, cmd *kestrel.Commands)

func (f moduleFunc) Install(app *kestrel.App, cmd *kestrel.Commands) { f(app, cmd) }

func loadConfig(flags cliFlags, logger kestrel.Logger) (kestrel.Config, error) {
	cfg := kestrel.DefaultConfig()

	configPath := flags.project + "/kestrel.config.json"
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := kestrel.LoadConfigFile(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	overlayPath := flags.project + "/kestrel.dev.yaml"
	overlaid, err := kestrel.LoadDevOverlay(cfg, overlayPath)
	if err != nil {
		return cfg, kestrel.NewFatalInit(fmt.Sprintf("applying dev overlay %q: %v", overlayPath, err))
	}
	cfg = overlaid

	overrides := kestrel.CLIOverrides{
		Width:    flags.width,
		Height:   flags.height,
		VSyncSet: flags.vsyncSet,
		VSync:    flags.vsync,
		Scene:    flags.scene,
	}
	cfg = kestrel.ApplyCLIOverrides(cfg, overrides, logger)

	return cfg, nil
}

func loadPlugins(manifestPath string, plugins *pluginrt.Runtime, logger kestrel.Logger) error {
	m, err := pluginrt.LoadManifest(manifestPath)
	if err != nil {
		return kestrel.NewFatalInit(err.Error())
	}
	for _, result := range pluginrt.ResolveLoadOrder(m, engineAPIVersion) {
		if !result.Loaded {
			logger.Warnf("plugin %q not loaded: %s", result.Entry.Name, result.Reason)
			continue
		}
		logger.Infof("plugin %q resolved for loading (trust=%v); isolated-host bring-up happens at Register time", result.Entry.Name, result.Entry.Trust())
	}
	return nil
}

// engineAPIVersion is the ABI the manifest's min_engine_api field is
// checked against (spec §4.7).
const engineAPIVersion = 1

func loadStartingScene(path string, app *kestrel.App) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return kestrel.NewFatalInit(fmt.Sprintf("reading starting scene %q: %v", path, err))
	}
	f, err := scene.LoadAuto(data)
	if err != nil {
		return kestrel.NewFatalInit(fmt.Sprintf("parsing starting scene %q: %v", path, err))
	}
	if errs := scene.Validate(f); len(errs) != 0 {
		return kestrel.NewFatalInit(fmt.Sprintf("starting scene %q failed validation: %v", path, errs))
	}
	// Spawn queues parent-wiring through Commands; it flushes on the first
	// StepFrame's PreFrameCommandDrain, so entities exist before any system
	// in that first frame runs.
	scene.Spawn(f, app.World(), app.Commands())
	return nil
}

// noScriptsLoader is the default scripthost.Loader for a project that
// declares no scripts; any behaviour path that reaches it means a scene
// referenced a script the project manifest never registered.
func noScriptsLoader(path string) (scripthost.Script, error) {
	return nil, fmt.Errorf("no script loader configured for %q", path)
}

func reportFatal(logger kestrel.Logger, err error) error {
	logger.Errorf("fatal init error: %v", err)
	return err
}
