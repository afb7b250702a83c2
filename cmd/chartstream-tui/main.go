package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/chartstream/internal/duckdb"
	"github.com/tinytelemetry/chartstream/internal/model"
	"github.com/tinytelemetry/chartstream/internal/player"
	"github.com/tinytelemetry/chartstream/internal/session"
	"github.com/tinytelemetry/chartstream/internal/tui"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/chartstream/config.yml)")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] recording.jsonl\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("Chartstream TUI - Recorded Stream Viewer\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	recording := flag.Arg(0)
	if recording == "" || recording == "-" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadTUIConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := runTUI(cfg, recording); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(cfg tuiConfig, recording string) error {
	cleanupLogger := configureLogger()
	defer cleanupLogger()

	var runs model.RunQuerier
	sessCfg := session.Config{
		Player: player.Config{
			Delay: player.RandomDelay(cfg.MinDelay, cfg.MaxDelay),
			Speed: model.PlaybackSpeed(cfg.Speed),
		},
	}
	if cfg.HistoryEnabled {
		store, err := duckdb.NewStore(cfg.DBPath, cfg.QueryTimeout)
		if err != nil {
			// The viewer still works without history, e.g. when the headless
			// player holds the database lock.
			log.Printf("history disabled: %v", err)
		} else {
			defer store.Close()
			runs = store
			sessCfg.Recorder = store
		}
	}

	bridge := &tui.Bridge{}
	sess := session.New(bridge.Observer(), sessCfg)
	defer sess.Close()

	if err := sess.LoadFile(recording, cfg.MaxLineSize); err != nil {
		return fmt.Errorf("cannot load %s: %w", recording, err)
	}

	app := tui.NewApp(
		tui.NewPlayerPage(sess, cfg.Autoplay),
		tui.NewHistoryPage(runs, cfg.RunsLimit),
	)

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())
	bridge.Attach(p)
	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("TUI requires a real terminal")
		}
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// configureLogger sends log output to a file; anything written to stderr
// would corrupt the alternate screen.
func configureLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(io.Discard)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "chartstream")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(io.Discard)
		return func() {}
	}

	f, err := os.OpenFile(filepath.Join(logDir, "chartstream-tui.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(io.Discard)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}
