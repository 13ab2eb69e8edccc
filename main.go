package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/viewfinder/cmd"
	"github.com/smazurov/viewfinder/internal/api"
	"github.com/smazurov/viewfinder/internal/capture"
	"github.com/smazurov/viewfinder/internal/config"
	"github.com/smazurov/viewfinder/internal/controls"
	"github.com/smazurov/viewfinder/internal/devices"
	"github.com/smazurov/viewfinder/internal/display"
	"github.com/smazurov/viewfinder/internal/events"
	"github.com/smazurov/viewfinder/internal/logging"
	"github.com/smazurov/viewfinder/internal/obs"
	"github.com/smazurov/viewfinder/internal/version"
	"github.com/smazurov/viewfinder/pkg/linuxav/v4l2"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" default:"viewfinder.toml"`

	// Capture settings
	Device       string `help:"Capture device path or stable identifier" short:"d" default:"/dev/video3" toml:"capture.device" env:"DEVICE"`
	Subdevice    string `help:"Sensor sub-device for focus and test pattern controls (empty disables them)" short:"s" default:"/dev/v4l-subdev10" toml:"capture.subdevice" env:"SUBDEVICE"`
	Width        int    `help:"Frame width" default:"1920" toml:"capture.width" env:"WIDTH"`
	Height       int    `help:"Frame height" default:"1080" toml:"capture.height" env:"HEIGHT"`
	Buffers      int    `help:"Kernel buffers to request" short:"n" default:"4" toml:"capture.buffers" env:"BUFFERS"`
	DMAExport    bool   `help:"Export a dmabuf descriptor for each mapped plane" default:"false" toml:"capture.dma_export" env:"DMA_EXPORT"`
	CaptureCount int    `help:"Stop after this many frames, 0 runs until interrupted" short:"c" default:"0" toml:"capture.count" env:"CAPTURE_COUNT"`
	TestPattern  int    `help:"Sensor test pattern to select at startup, -1 leaves the sensor alone" short:"t" default:"-1" toml:"capture.test_pattern" env:"TEST_PATTERN"`

	// Preview settings
	FPS    int    `help:"Preview pacing in frames per second" default:"30" toml:"preview.fps" env:"FPS"`
	Record string `help:"Record preview frames to this AVI file" short:"r" default:"" toml:"preview.record" env:"RECORD"`

	// Server settings
	Host  string `help:"API listen address" default:"127.0.0.1" toml:"server.host" env:"SERVER_HOST"`
	Port  int    `help:"API listen port" short:"p" default:"8080" toml:"server.port" env:"SERVER_PORT"`
	NoAPI bool   `help:"Run the capture pipeline without the HTTP API" default:"false" toml:"server.disabled" env:"NO_API"`

	// Logging settings
	LogLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOG_LEVEL"`
	LogFormat string `help:"Logging format (auto, text, json)" default:"auto" toml:"logging.format" env:"LOG_FORMAT"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.Load(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system; per-module levels come from the
		// [logging] table of the config file.
		logCfg := config.Logging(opts.Config)
		logCfg.Level = opts.LogLevel
		logCfg.Format = opts.LogFormat
		logging.Initialize(logCfg)

		logger := logging.GetLogger("main")

		if opts.CaptureCount < 0 {
			logger.Error("Capture count cannot be negative", "capture_count", opts.CaptureCount)
			os.Exit(1)
		}
		if opts.Buffers < 1 {
			logger.Error("At least one kernel buffer is required", "buffers", opts.Buffers)
			os.Exit(1)
		}

		// Create event bus for in-process event handling
		eventBus := events.New()

		if !opts.NoAPI {
			// Mirror every log line onto the bus for the SSE log stream.
			logging.SetLogCallback(func(entry logging.LogEntry) {
				eventBus.Publish(events.LogEntryEvent{
					Seq:        entry.Seq,
					Timestamp:  entry.Timestamp.UTC().Format(time.RFC3339Nano),
					Level:      entry.Level,
					Module:     entry.Module,
					Message:    entry.Message,
					Attributes: entry.Attributes,
				})
			})
		}

		// Resolve the device spec against /dev/v4l/by-id before opening.
		devicePath, resolveErr := devices.Resolve(opts.Device)
		if resolveErr != nil {
			logger.Error("Capture device not found", "device", opts.Device, "error", resolveErr)
			os.Exit(1)
		}

		dev, openErr := capture.OpenDevice(devicePath)
		if openErr != nil {
			logger.Error("Failed to open capture device", "path", devicePath, "error", openErr)
			os.Exit(1)
		}

		session := capture.NewSession(dev, capture.Config{
			Width:     uint32(opts.Width),
			Height:    uint32(opts.Height),
			Buffers:   uint32(opts.Buffers),
			DMAExport: opts.DMAExport,
		}, eventBus)

		// The sub-device carries the sensor controls. An empty path runs
		// the pipeline without them; a path that fails to open is fatal.
		var sub *v4l2.Subdevice
		var ctrl *controls.Controller
		if opts.Subdevice != "" {
			var subErr error
			sub, subErr = capture.OpenSubdevice(opts.Subdevice)
			if subErr != nil {
				logger.Error("Failed to open sensor sub-device", "path", opts.Subdevice, "error", subErr)
				os.Exit(1)
			}
			ctrl = controls.NewController(sub, eventBus)
		} else {
			logger.Info("No sub-device configured, focus and test pattern controls disabled")
		}

		// Keyboard needs a terminal; running under systemd or a pipe just
		// loses the hotkeys, not the pipeline.
		kb, kbErr := display.OpenKeyboard()
		if kbErr != nil {
			logger.Info("Keyboard controls disabled", "reason", kbErr)
		}

		preview := display.NewPreview(display.Config{
			FPS:        opts.FPS,
			RecordPath: opts.Record,
		}, ctrl, kb, eventBus)

		monitor := devices.NewMonitor(eventBus)

		// Hot-reload logging levels when the config file changes.
		var watcher *config.Watcher[logging.Config]
		if opts.Config != "" {
			watcher = config.NewWatcher(opts.Config, func(path string) (logging.Config, error) {
				return config.Logging(path), nil
			})
			watcher.OnReload(func(cfg logging.Config) {
				logging.UpdateLevels(cfg)
			})
		}

		var obsManager *obs.Manager
		var server *api.Server
		if !opts.NoAPI {
			obsManager = obs.NewManager(eventBus)
			if opts.Record != "" {
				obsManager.ObserveRecording(opts.Record, preview.RecordedFrames)
			}

			store := preview.Store()
			server = api.NewServer(&api.Options{
				Bus:        eventBus,
				Stats:      session.Stats,
				Controller: ctrl,
				Recording: func() (api.RecordingStatus, bool) {
					if !preview.Recording() {
						return api.RecordingStatus{}, false
					}
					return api.RecordingStatus{Path: opts.Record, Frames: preview.RecordedFrames()}, true
				},
				PrometheusHandler: obsManager.Handler(),
				PreviewStream:     http.HandlerFunc(store.ServeMJPEG),
				PreviewSnapshot:   http.HandlerFunc(store.ServeSnapshot),
			})
		}

		// OnStop must not return while the loop still owns kernel buffers.
		pipelineDone := make(chan struct{})

		hooks.OnStart(func() {
			defer close(pipelineDone)

			if server != nil {
				addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
				go func() {
					if serveErr := server.Start(addr); serveErr != nil {
						logger.Error("HTTP server failed", "error", serveErr)
					}
				}()
			}

			if monErr := monitor.Start(context.Background()); monErr != nil {
				logger.Warn("Device monitor disabled", "error", monErr)
			}
			if watcher != nil {
				if watchErr := watcher.Start(); watchErr != nil {
					logger.Debug("Config file watch disabled", "error", watchErr)
				}
			}

			if setupErr := session.Setup(); setupErr != nil {
				logger.Error("Capture setup failed", "error", setupErr)
				preview.Close()
				session.Shutdown()
				os.Exit(1)
			}

			// Register after Setup so the info gauge labels carry the
			// negotiated geometry.
			if obsManager != nil {
				obsManager.ObserveCapture(session.Stats)
			}

			if ctrl != nil && opts.TestPattern >= 0 {
				if patErr := ctrl.SetPattern(opts.TestPattern); patErr != nil {
					logger.Warn("Startup test pattern rejected", "value", opts.TestPattern, "error", patErr)
				}
			}
			if ctrl != nil && kb != nil {
				// Queued help prints the key map once the loop starts.
				ctrl.Enqueue(controls.ReqHelp)
			}

			runErr := session.Run(preview, uint64(opts.CaptureCount))

			if closeErr := preview.Close(); closeErr != nil {
				logger.Warn("Renderer close failed", "error", closeErr)
			}
			if shutErr := session.Shutdown(); shutErr != nil {
				logger.Warn("Capture teardown incomplete", "error", shutErr)
			}
			monitor.Stop()
			if watcher != nil {
				watcher.Stop()
			}
			if obsManager != nil {
				obsManager.Close()
			}
			if sub != nil {
				sub.Close()
			}

			if runErr != nil {
				logger.Error("Capture loop failed", "error", runErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			session.RequestStop()
			if server != nil {
				if stopErr := server.Stop(); stopErr != nil {
					logger.Error("Error stopping HTTP server", "error", stopErr)
				}
			}
			<-pipelineDone
		})
	})

	cli.Root().Version = version.String()

	// Add devices command
	devicesCmd := cmd.CreateDevicesCmd()
	cli.Root().AddCommand(devicesCmd)

	// Add update command
	updateCmd := cmd.CreateUpdateCmd()
	cli.Root().AddCommand(updateCmd)

	// Run the CLI
	cli.Run()
}
