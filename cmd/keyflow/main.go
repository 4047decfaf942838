// Package main runs the keyflow firmware core on a host machine with a
// terminal-based keyboard simulator in place of real switch hardware.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/keyflow/internal/config"
	"github.com/dshills/keyflow/internal/logging"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

// demoTOML is the built-in keymap used when no config file is given: two
// plain keys, a shift-or-C hold-tap, a momentary layer and an A+B chord.
const demoTOML = `
[keyboard]
name = "keyflow-demo"

[scanner]
type = "direct"
transform = [[0, 1, 2, 3]]

[debounce]
press = { mode = "defer", duration = "5ms" }
release = { mode = "defer", duration = "5ms" }

[[layers]]
name = "base"
keys = ["A", "B", "HT(LSHIFT, C, 200ms)", "MO(1)"]

[[layers]]
name = "num"
keys = ["1", "2", "TRNS", "TRNS"]

[[combos]]
keys = ["A", "B"]
send = "ESC"
`

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath string
		logLevel   string
		logPath    string
		check      bool
		watch      bool
		showVer    bool
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&logPath, "log-file", "keyflow.log", "Log file while the simulator owns the terminal")
	flag.BoolVar(&check, "check", false, "Validate and compile the configuration, then exit")
	flag.BoolVar(&watch, "watch", false, "Reload the keymap when the config file changes")
	flag.BoolVar(&showVer, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Keyflow - keyboard firmware core simulator\n\n")
		fmt.Fprintf(os.Stderr, "Usage: keyflow [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  keyflow                     Run the built-in demo keymap\n")
		fmt.Fprintf(os.Stderr, "  keyflow -c board.toml       Run a keymap\n")
		fmt.Fprintf(os.Stderr, "  keyflow -c board.toml -check  Compile-check a keymap\n")
	}
	flag.Parse()

	if showVer {
		fmt.Printf("keyflow %s (%s)\n", version, commit)
		return 0
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if check {
		if err := compileCheck(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("%s: ok (%d keys, %d layers)\n", cfg.Keyboard.Name, cfg.NumKeys(), len(cfg.Layers))
		return 0
	}

	if logLevel == "" {
		logLevel = cfg.Keyboard.LogLevel
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: opening log file: %v\n", err)
		return 1
	}
	defer func() { _ = logFile.Close() }()
	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(logLevel),
		Output: logFile,
		Prefix: cfg.Keyboard.Name,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()

	if err := runSimulator(ctx, cfg, configPath, watch, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Parse([]byte(demoTOML))
	}
	return config.Load(path)
}

// compileCheck runs every compilation step the firmware would, so -check
// catches expression and combo errors, not just schema ones.
func compileCheck(cfg *config.Config) error {
	if _, err := cfg.BuildLayout(); err != nil {
		return err
	}
	if _, err := cfg.BuildCombos(); err != nil {
		return err
	}
	if _, err := cfg.BuildDebounce(); err != nil {
		return err
	}
	return nil
}
