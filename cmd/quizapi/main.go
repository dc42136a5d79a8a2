package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GokulKGit/quiz-API/config"
	"github.com/GokulKGit/quiz-API/errors"
	"github.com/GokulKGit/quiz-API/server"
	"github.com/GokulKGit/quiz-API/server/tracing"
)

var (
	configFile = flag.String("config", "", "Path to configuration file (default: $QUIZ_API_CONFIG, then quiz-api.yaml if present)")
	validate   = flag.Bool("validate", false, "Validate configuration and exit")
	version    = flag.Bool("version", false, "Print version and exit")
)

const Version = "v0.1.0"

const defaultConfigFile = "quiz-api.yaml"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("quiz-api %s\n", Version)
		os.Exit(0)
	}

	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	path := resolveConfigPath(*configFile)

	if *validate {
		if _, err := loadConfig(path); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	if err := run(path); err != nil {
		fmt.Fprintf(os.Stderr, "quiz-api: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	errors.SetLogger(logger)

	watcher, err := newWatcher(path, cfg, logger)
	if err != nil {
		return err
	}
	defer watcher.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	srv, err := server.NewServer(ctx, watcher, logger)
	if err != nil {
		logger.Error("Server initialization failed",
			zap.Error(err),
			zap.String("config_path", path),
		)
		return err
	}

	logger.Info("Starting quiz-api",
		zap.String("version", Version),
		zap.Int("port", cfg.Server.Port),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
	)
	if err := srv.Start(ctx); err != nil {
		logger.Error("Server error", zap.Error(err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// resolveConfigPath picks the config file: the -config flag, then
// QUIZ_API_CONFIG, then quiz-api.yaml in the working directory if it
// exists. An empty result means defaults plus environment.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("QUIZ_API_CONFIG"); env != "" {
		return env
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	return ""
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg, err := config.LoadDefault()
		if err != nil {
			return nil, fmt.Errorf("load default config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func newWatcher(path string, cfg *config.Config, logger *zap.Logger) (config.Watcher, error) {
	if path == "" {
		return config.NewStaticWatcher(cfg), nil
	}
	w, err := config.NewConfigWatcher(path, logger)
	if err != nil {
		return nil, fmt.Errorf("watch config %s: %w", path, err)
	}
	return w, nil
}

// newLogger builds a zap logger: json selects the production encoder,
// text the development console encoder.
func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	if cfg.Format == "text" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
