// Package main provides the player entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/tome/internal/api/connect"
	"github.com/osa030/tome/internal/app/filter"
	"github.com/osa030/tome/internal/app/host"
	"github.com/osa030/tome/internal/app/hostsync"
	"github.com/osa030/tome/internal/app/playback"
	"github.com/osa030/tome/internal/app/state"
	"github.com/osa030/tome/internal/infra/audio"
	"github.com/osa030/tome/internal/infra/config"
	"github.com/osa030/tome/internal/infra/hostrpc"
	"github.com/osa030/tome/internal/infra/library"
	"github.com/osa030/tome/internal/infra/logger"
	"github.com/osa030/tome/internal/infra/settings"
	"github.com/osa030/tome/internal/infra/storage"
)

const defaultConfigPath = "config/tome.yaml"

var (
	app        = kingpin.New("tome", "tome music player")
	configPath = app.Flag("config", "Path to config file (default: "+defaultConfigPath+" when present)").Envar("TOME_CONFIG").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()

	// play command (default)
	playCmd   = app.Command("play", "Run the player, queueing the given files or directories").Default()
	playPaths = playCmd.Arg("paths", "Files or directories to queue (default: library.paths)").Strings()

	// scan command
	scanCmd   = app.Command("scan", "Print the tracks the library would queue and exit")
	scanPaths = scanCmd.Arg("paths", "Files or directories to scan (default: library.paths)").Strings()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Bootstrap logger until the config is read
	bootstrap := logger.Config{Output: "stderr", Level: "info"}
	if *verbose {
		bootstrap.Level = "debug"
	}
	if _, err := logger.Init(bootstrap); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	// Load config
	path := resolveConfigPath(*configPath)
	if path != "" {
		zlog.Info().Msgf("Loading config from %s", path)
	}
	cfg, err := config.Load(path)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	closer, err := logger.Init(overrideLog(cfg.Log))
	if err != nil {
		zlog.Fatal().Msgf("Failed to initialize logger: %v", err)
	}
	defer closer.Close()

	switch command {
	case scanCmd.FullCommand():
		err = scan(cfg, pathsOr(*scanPaths, cfg.Library.Paths))
	default:
		err = run(cfg, pathsOr(*playPaths, cfg.Library.Paths))
	}
	if err != nil {
		zlog.Error().Msgf("tome: %v", err)
		closer.Close()
		os.Exit(1)
	}
}

// overrideLog applies the command-line logging flags.
func overrideLog(cfg logger.Config) logger.Config {
	if *verbose {
		cfg.Level = "debug"
	}
	if *logfile != "" {
		cfg.Output = "file"
		cfg.File = *logfile
	}
	return cfg
}

// resolveConfigPath returns the explicit path, or the default path when that
// file exists, or "" for built-in defaults.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

func pathsOr(paths, fallback []string) []string {
	if len(paths) > 0 {
		return paths
	}
	return fallback
}

func newScanner(cfg *config.Config) (*library.Scanner, error) {
	cacheDir, err := cfg.ArtworkCacheDir()
	if err != nil {
		return nil, err
	}
	return library.NewScanner(library.Config{
		Extensions: cfg.Library.Extensions,
		CacheDir:   cacheDir,
	}), nil
}

// scan prints the tracks found under paths.
func scan(cfg *config.Config, paths []string) error {
	if len(paths) == 0 {
		return errors.New("no paths given and library.paths is empty")
	}
	scanner, err := newScanner(cfg)
	if err != nil {
		return err
	}

	tracks, err := scanner.Scan(context.Background(), paths...)
	if err != nil {
		return err
	}
	for i, t := range tracks {
		fmt.Printf("%3d  %s  %-40s  %s\n", i+1, formatDuration(t.Duration), t.String(), t.Metadata.Album)
	}
	fmt.Printf("\n%d tracks\n", len(tracks))
	return nil
}

func formatDuration(d time.Duration) string {
	s := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%2d:%02d", s/60, s%60)
}

// run executes the main player logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config, paths []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Preferences
	settingsPath, err := cfg.SettingsPath()
	if err != nil {
		return err
	}
	prefs := settings.Open(settingsPath)
	store := state.New(prefs.Load().Initial())
	unbind := prefs.Bind(store)
	defer unbind()

	// Audio output and engine
	out, err := audio.NewOutput(audio.Config{
		SampleRate:      cfg.Audio.SampleRate,
		BufferSize:      cfg.Audio.BufferSize(),
		ResampleQuality: cfg.Audio.ResampleQuality,
	})
	if err != nil {
		return errors.Wrap(err, "failed to open audio output")
	}
	engine := playback.NewEngine(playback.Config{EventBuffer: cfg.Playback.EventBuffer}, out, storage.NewFiles(0), store)
	defer engine.Close()

	scanner, err := newScanner(cfg)
	if err != nil {
		return err
	}
	filters, err := filter.NewChainFromConfig(cfg.Filters)
	if err != nil {
		return errors.Wrap(err, "failed to create filters")
	}

	// Host bridge
	hub := host.NewHub()
	bridge, err := host.NewFromConfig(cfg.Hosts, hub)
	if err != nil {
		return errors.Wrap(err, "failed to create host bridge")
	}
	defer func() {
		if err := bridge.Close(); err != nil {
			zlog.Warn().Err(err).Msg("Failed to close host bridge")
		}
	}()

	syncer := hostsync.New(hostsync.Config{
		Interval:    cfg.Playback.SyncInterval(),
		PushTimeout: cfg.Playback.PushTimeout(),
	}, engine, store, bridge)

	// Create RPC service
	playerService := apiconnect.NewPlayerService(engine, store, scanner, filters, hub)

	// Create HTTP mux
	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewPlayerServiceHandler(
		playerService,
		connect.WithInterceptors(hostrpc.NewTokenInterceptor(cfg.Server.Token)),
	))

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	// Channel to capture server startup errors
	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	go func() {
		if err := syncer.Run(ctx); err != nil {
			zlog.Error().Msgf("Host sync stopped: %v", err)
		}
	}()

	if !cfg.Settings.DisableWatch {
		go func() {
			if err := prefs.Watch(ctx, store); err != nil {
				zlog.Warn().Msgf("Preferences watch stopped: %v", err)
			}
		}()
	}

	// Start server
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	<-serverStartedCh

	// Queue the initial tracks and start playing
	if len(paths) > 0 {
		tracks, err := scanner.Scan(ctx, paths...)
		if err != nil {
			return errors.Wrap(err, "failed to scan")
		}
		admitted, rejected := filters.Admit(ctx, tracks, nil)
		engine.EnqueueAll(admitted)
		zlog.Info().Msgf("Queued %d tracks (rejected: %v)", len(admitted), rejected)

		if len(admitted) > 0 {
			go func() {
				if err := engine.PlayNext(ctx); err != nil && !errors.Is(err, playback.ErrLoadSuperseded) {
					zlog.Warn().Msgf("Failed to start playback: %v", err)
				}
			}()
		}
	}

	// Execute startup hook if configured (after server is running)
	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	// Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return errors.Wrap(err, "server error")
	}

	// Graceful shutdown
	cancel()
	engine.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Player stopped")

	// Execute shutdown hook if configured
	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
