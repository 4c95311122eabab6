package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/patchbay/patchbay/internal/api"
	"github.com/patchbay/patchbay/internal/compositor"
	"github.com/patchbay/patchbay/internal/config"
	"github.com/patchbay/patchbay/internal/events"
	"github.com/patchbay/patchbay/internal/logging"
	"github.com/patchbay/patchbay/internal/registry"
	"github.com/patchbay/patchbay/internal/router"
	"github.com/patchbay/patchbay/internal/updater"
)

// Options for the CLI - flat structure with toml mapping, same shape the
// teacher uses for its own Options.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	BindAddr string `help:"Control plane listen address" short:"p" default:":8080" toml:"server.bind_addr" env:"SERVER_BIND_ADDR"`

	// Seed routing graph
	ConnectionsFile string `help:"Seed connection graph file" default:"connections.toml" toml:"connections.config_file" env:"CONNECTIONS_CONFIG_FILE"`

	// Compositor settings - the two behavioural deviations §9 leaves open
	CanonicalAlpha bool `help:"Use the canonical 255-A alpha-over factor instead of the default off-by-one 256-A" default:"false" toml:"compositor.canonical_alpha" env:"COMPOSITOR_CANONICAL_ALPHA"`
	AudioSaturate  bool `help:"Saturate audio summation instead of wrapping two's-complement" default:"false" toml:"compositor.audio_saturate" env:"COMPOSITOR_AUDIO_SATURATE"`

	// Update checking
	UpdateEnabled    bool   `help:"Check for a newer release at startup" default:"true" toml:"update.enabled" env:"UPDATE_ENABLED"`
	UpdateRepository string `help:"GitHub repo slug checked for newer releases" default:"patchbay/patchbay" toml:"update.repository" env:"UPDATE_REPOSITORY"`

	// Logging settings
	LoggingLevel        string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat       string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingRouter       string `help:"Router tick loop logging level" default:"info" toml:"logging.router" env:"LOGGING_ROUTER"`
	LoggingRegistry     string `help:"Device registry logging level" default:"info" toml:"logging.registry" env:"LOGGING_REGISTRY"`
	LoggingAPI          string `help:"Control plane logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingShmregion    string `help:"Shared-memory region logging level" default:"info" toml:"logging.shmregion" env:"LOGGING_SHMREGION"`
	LoggingWorkerclient string `help:"Worker client logging level" default:"info" toml:"logging.workerclient" env:"LOGGING_WORKERCLIENT"`
	LoggingUpdater      string `help:"Updater logging level" default:"info" toml:"logging.updater" env:"LOGGING_UPDATER"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		loggingConfig := logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"router":       opts.LoggingRouter,
				"registry":     opts.LoggingRegistry,
				"api":          opts.LoggingAPI,
				"shmregion":    opts.LoggingShmregion,
				"workerclient": opts.LoggingWorkerclient,
				"updater":      opts.LoggingUpdater,
			},
		}
		logging.Initialize(loggingConfig)

		logger := logging.GetLogger("main")

		// Event bus for in-process pub/sub: registry mutations drive the
		// control plane's reload broadcast independently of the tick loop.
		bus := events.New()

		matrix := registry.NewMatrix()
		sessions := registry.NewRegistry()

		compositorOpts := compositor.Options{
			CanonicalAlpha: opts.CanonicalAlpha,
			SaturateAudio:  opts.AudioSaturate,
		}
		rtr := router.New(matrix, bus, compositorOpts)

		server := api.NewServer(matrix, sessions, bus)

		// Seed routing graph: apply connections.toml once at startup, and
		// again on every edit (§1 non-goals exclude persistence, so this
		// file is an operator-edited seed, not a database).
		connManager := config.NewConnectionManager(opts.ConnectionsFile)
		if loadErr := connManager.Load(); loadErr != nil {
			logger.Warn("failed to load connections seed file", "error", loadErr)
		}
		applySeedGraph(matrix, connManager.Config(), logger)

		var seedWatcher *config.Watcher[*config.ConnectionsConfig]
		if _, statErr := os.Stat(opts.ConnectionsFile); statErr == nil {
			seedWatcher = config.NewConfigWatcher(opts.ConnectionsFile, loadConnectionsConfig, logging.GetLogger("config"))
			seedWatcher.OnReload(func(cfg *config.ConnectionsConfig) {
				applySeedGraph(matrix, cfg, logger)
				server.BroadcastReload()
			})
		}

		// Update checking: a read-only "is something newer available"
		// check logged at startup, never an in-place binary swap.
		var updateSvc updater.Service
		if opts.UpdateEnabled {
			svc, err := updater.NewService(&updater.Options{Repository: opts.UpdateRepository})
			if err != nil {
				logger.Warn("failed to create update service", "error", err)
			} else {
				updateSvc = svc
			}
		}

		hooks.OnStart(func() {
			if seedWatcher != nil {
				if startErr := seedWatcher.Start(); startErr != nil {
					logger.Warn("failed to start connections seed watcher", "error", startErr)
				}
			}

			go rtr.Run()

			if updateSvc != nil {
				go func() {
					info, err := updateSvc.CheckForUpdate(context.Background())
					if err != nil {
						logger.Warn("update check failed", "error", err)
						return
					}
					if info.UpdateAvailable {
						logger.Info("a newer release is available", "current", info.CurrentVersion, "latest", info.LatestVersion, "url", info.ReleaseURL)
					}
				}()
			}

			logger.Info("starting control plane", "addr", opts.BindAddr)
			if startErr := server.Start(opts.BindAddr); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("failed to start control plane", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("shutting down")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("error stopping control plane", "error", stopErr)
			}
			rtr.Stop()
			if seedWatcher != nil {
				if stopErr := seedWatcher.Stop(); stopErr != nil {
					logger.Error("error stopping connections seed watcher", "error", stopErr)
				}
			}
			sessions.CloseAll()
		})
	})

	cli.Run()
}

// loadConnectionsConfig adapts ConnectionManager to the generic watcher's
// loader signature.
func loadConnectionsConfig(path string) (*config.ConnectionsConfig, error) {
	cm := config.NewConnectionManager(path)
	if err := cm.Load(); err != nil {
		return nil, err
	}
	return cm.Config(), nil
}

// applySeedGraph reorders live inputs to match cfg's recorded display
// order and applies every recorded edge. Names the seed mentions that have
// no live device yet (or any longer) are skipped, not errors: the seed
// describes intent, workers connect independently and on their own
// schedule.
func applySeedGraph(matrix *registry.Matrix, cfg *config.ConnectionsConfig, logger *slog.Logger) {
	if cfg == nil {
		return
	}

	for i, name := range cfg.InputOrder {
		idx := inputIndex(matrix, name)
		if idx < 0 {
			continue
		}
		for idx > i {
			if err := matrix.BringBackward(name); err != nil {
				break
			}
			idx--
		}
		for idx < i {
			if err := matrix.BringForward(name); err != nil {
				break
			}
			idx++
		}
	}

	for _, edge := range cfg.Connections {
		if err := matrix.Connect(edge.Input, edge.Output, edge.Enabled); err != nil {
			logger.Warn("seed graph edge skipped", "input", edge.Input, "output", edge.Output, "error", err)
		}
	}
}

func inputIndex(matrix *registry.Matrix, name string) int {
	for i, in := range matrix.Inputs() {
		if in.Name == name {
			return i
		}
	}
	return -1
}
