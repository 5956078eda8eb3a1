// redistools-examples runs small programs against a Redis server through the
// resilient store client.
//
// Usage:
//
//	redistools-examples [flags] [map|queue|mailbox]
//
// Flags:
//
//	-config string
//	    Path to a TOML or YAML configuration file (default "redistools.toml")
//	-metrics string
//	    Prometheus listen address (overrides config)
//	-n int
//	    Number of items the queue demo produces (default 100)
//	-v
//	    Enable verbose logging
//	-version
//	    Print version and exit
//
// Settings can also come from REDIS_* environment variables or a .env file
// in the working directory. LOG_LEVEL (or -v) applies to the library logs as
// well, unless DEBUG_I2P is set, in which case that variable controls them.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-i2p/logger"
	"github.com/joho/godotenv"

	"github.com/go-i2p/redistools/lib/config"
	"github.com/go-i2p/redistools/lib/metrics"
	"github.com/go-i2p/redistools/lib/store"
	"github.com/go-i2p/redistools/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "redistools.toml", "Path to configuration file")
	metricsAddr := flag.String("metrics", "", "Prometheus listen address (overrides config)")
	items := flag.Int("n", 100, "Number of items the queue demo produces")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "redistools-examples - demos for the resilient Redis client\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  redistools-examples [flags] map       Page view counters in a hash\n")
		fmt.Fprintf(os.Stderr, "  redistools-examples [flags] queue     Producer/consumer over a list\n")
		fmt.Fprintf(os.Stderr, "  redistools-examples [flags] mailbox   Folders of conversations in sorted sets\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("redistools-examples version %s\n", version.Full())
		return 0
	}

	// A missing .env file is fine.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	if *metricsAddr != "" {
		cfg.Metrics.Listen = *metricsAddr
	}

	levelName := cfg.Logging.Level
	if *verbose {
		levelName = "debug"
	}
	level := parseLevel(levelName)
	configureLibraryLogging(levelName)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	demo := "map"
	if args := flag.Args(); len(args) > 0 {
		demo = args[0]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Listen != "" {
		metrics.RecordStartTime()
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("serving metrics", "addr", cfg.Metrics.Listen)
	}

	client, err := store.New(*cfg)
	if err != nil {
		logger.Error("failed to create store client", "error", err)
		return 1
	}
	defer client.Close()

	logger.Info("running demo", "demo", demo, "redis", cfg.Redis.Addr(), "version", version.Version)

	if err := runDemo(ctx, demo, client, os.Stdout, *items); err != nil {
		logger.Error("demo failed", "demo", demo, "error", err)
		return 1
	}

	stats := client.Stats()
	logger.Info("demo finished",
		"generation", stats.Generation,
		"escalations", stats.Escalations,
		"rebuildRounds", stats.RebuildRounds)
	return 0
}

func runDemo(ctx context.Context, name string, client *store.Client, out io.Writer, items int) error {
	switch name {
	case "map":
		return runMapDemo(ctx, client, out)
	case "queue":
		return runQueueDemo(ctx, client, out, items)
	case "mailbox":
		return runMailboxDemo(ctx, client, out)
	default:
		return fmt.Errorf("unknown demo %q", name)
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// configureLibraryLogging sends the lib packages' logger to stderr at the
// given level. The logger reads DEBUG_I2P itself; when it is set, it wins.
func configureLibraryLogging(level string) {
	if os.Getenv("DEBUG_I2P") != "" {
		return
	}
	l := logger.GetGoI2PLogger()
	l.SetOutput(os.Stderr)
	l.SetLevel(libraryLevel(level))
}

func libraryLevel(s string) logger.Level {
	switch strings.ToLower(s) {
	case "debug":
		return logger.DebugLevel
	case "warn", "warning":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}
