// Package main provides the narrator entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/narrator/internal/app/console"
	"github.com/osa030/narrator/internal/app/session"
	"github.com/osa030/narrator/internal/app/speech"
	"github.com/osa030/narrator/internal/domain/lines"
	"github.com/osa030/narrator/internal/infra/config"
	"github.com/osa030/narrator/internal/infra/logger"
)

var (
	app         = kingpin.New("narrator", "Reads text aloud line by line with a pause between lines")
	configPath  = app.Flag("config", "Path to config file").Default("config/narrator.yaml").String()
	verbose     = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile     = app.Flag("logfile", "Path to log file (default: stderr)").String()
	engineType  = app.Flag("engine", "Speech engine type, overrides the configured engines").String()
	metricsAddr = app.Flag("metrics-addr", "Serve Prometheus metrics on this address").String()

	narrateCmd  = app.Command("narrate", "Narrate a text file interactively (default)").Default()
	narrateFile = narrateCmd.Arg("file", "Text file to narrate").Required().ExistingFile()

	linesCmd  = app.Command("lines", "Print the lines that would be narrated and exit")
	linesFile = linesCmd.Arg("file", "Text file to split").Required().ExistingFile()

	listEnginesCmd = app.Command("list-engines", "List available speech engines and exit")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	switch command {
	case listEnginesCmd.FullCommand():
		printEngines()
		return
	case linesCmd.FullCommand():
		if err := printLines(*linesFile); err != nil {
			fmt.Fprintf(os.Stderr, "narrator: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "narrator: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := logger.Init(logger.Config{
		Output: cfg.Logging.Output,
		Level:  cfg.Logging.Level,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "narrator: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Close the log file only after run has torn everything down
	err = run(cfg, *narrateFile)
	_ = closeLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "narrator: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file, falling back to defaults when it does
// not exist, and applies command-line overrides.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = config.Default()
	}
	if err != nil {
		return nil, err
	}

	if *verbose {
		cfg.Logging.Level = "debug"
	}
	if *logfile != "" {
		cfg.Logging.Output = *logfile
	}
	if *engineType != "" {
		cfg.Speech.Engines = []config.EngineConfig{{Type: *engineType}}
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid command-line overrides")
	}
	return cfg, nil
}

// run executes the interactive narration. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config, file string) error {
	text, err := os.ReadFile(file)
	if err != nil {
		return errors.Wrap(err, "failed to read text")
	}

	zlog.Info().Msgf("Configured speech engines: %v", cfg.EngineTypes())
	engine, err := speech.NewFromConfig(cfg.Speech.Engines, speech.Options{Output: os.Stdout})
	if err != nil {
		return errors.Wrap(err, "failed to create speech engine")
	}

	sessionMgr := session.NewManager(engine, session.Config{})
	defer sessionMgr.Close()
	sessionMgr.Start()

	if err := sessionMgr.Load(file, string(text)); err != nil {
		return errors.Wrap(err, "failed to load text")
	}

	if cfg.Metrics.Addr != "" {
		server := startMetricsServer(cfg.Metrics.Addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				zlog.Error().Msgf("Failed to shutdown metrics server: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ui := console.New(sessionMgr, console.Config{
		NoColor:        cfg.Console.NoColor,
		HideTranscript: cfg.Console.HideTranscript,
	})

	consoleErrCh := make(chan error, 1)
	go func() {
		consoleErrCh <- ui.Run(ctx)
	}()

	if cfg.Console.AutoPlay {
		if err := sessionMgr.Play(); err != nil {
			return errors.Wrap(err, "failed to start narration")
		}
	}

	select {
	case <-ctx.Done():
		zlog.Info().Msg("Received shutdown signal...")
	case <-sessionMgr.Done():
		zlog.Info().Msg("Session closed, shutting down...")
	case err := <-consoleErrCh:
		if err != nil {
			return err
		}
	}

	zlog.Info().Msg("Narrator stopped")
	return nil
}

// startMetricsServer serves Prometheus metrics in the background.
func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zlog.Info().Msgf("Starting metrics server: addr=%s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Error().Msgf("Metrics server error: %v", err)
		}
	}()

	return server
}

// printEngines prints available speech engines.
func printEngines() {
	fmt.Println("Available Speech Engines:")
	for _, r := range speech.Registered() {
		fmt.Printf("  %-12s - %s\n", r.Name, r.Description)
	}
}

// printLines prints the line sequence of a text file.
func printLines(file string) error {
	text, err := os.ReadFile(file)
	if err != nil {
		return errors.Wrap(err, "failed to read text")
	}

	seq := lines.Split(string(text))
	if seq.IsEmpty() {
		fmt.Println("No lines to narrate.")
		return nil
	}
	for i, line := range seq {
		fmt.Printf("%4d  %s\n", i+1, line)
	}
	return nil
}
