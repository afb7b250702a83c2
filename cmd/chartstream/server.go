package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/chartstream/internal/backup"
	"github.com/tinytelemetry/chartstream/internal/duckdb"
	"github.com/tinytelemetry/chartstream/internal/httpserver"
	"github.com/tinytelemetry/chartstream/internal/model"
	"github.com/tinytelemetry/chartstream/internal/player"
	"github.com/tinytelemetry/chartstream/internal/session"
)

// runServer replays a recording headlessly, echoing output to stdout, and
// serves the HTTP control API when enabled.
func runServer(cfg appConfig, recording string) error {
	if !cfg.APIEnabled && recording == "" {
		return errors.New("nothing to do: no recording given and the HTTP API is disabled")
	}

	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	var store *duckdb.Store
	if cfg.HistoryEnabled {
		var err error
		store, err = duckdb.NewStore(cfg.DBPath, cfg.QueryTimeout)
		if err != nil {
			return fmt.Errorf("failed to initialize DuckDB: %w", err)
		}
		defer store.Close()

		retentionCleaner := duckdb.NewRetentionCleaner(store, duckdb.RetentionConfig{
			RetentionDays: cfg.RetentionDays,
		})
		if retentionCleaner != nil {
			defer retentionCleaner.Stop()
		}

		backupManager, err := backup.NewManager(store, backup.Config{
			Enabled:        cfg.BackupEnabled,
			Interval:       cfg.BackupInterval,
			LocalDir:       cfg.BackupLocalDir,
			KeepLast:       cfg.BackupKeepLast,
			BucketURL:      cfg.BackupBucketURL,
			S3Endpoint:     cfg.BackupS3Endpoint,
			S3Region:       cfg.BackupS3Region,
			S3AccessKey:    cfg.BackupS3AccessKey,
			S3SecretKey:    cfg.BackupS3SecretKey,
			S3SessionToken: cfg.BackupS3SessionToken,
			S3UseSSL:       cfg.BackupS3UseSSL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize history exports: %w", err)
		}
		if backupManager != nil {
			defer backupManager.Stop()
		}
	}

	// finished is signalled on the first terminal state when there is no API
	// to keep the process alive.
	finished := make(chan struct{}, 1)
	observer := session.Observer{}
	var echo *echoWriter
	if cfg.Echo {
		echo = newEchoWriter(os.Stdout)
		observer.OnText = echo.OnText
	}
	observer.OnStatus = func(state model.PlaybackState, message string) {
		if echo != nil {
			echo.OnStatus(state, message)
		}
		if state == model.StateError {
			log.Printf("session: stream error: %s", message)
		}
		if state.Terminal() {
			select {
			case finished <- struct{}{}:
			default:
			}
		}
	}

	sessCfg := session.Config{
		Player: player.Config{
			Delay: player.RandomDelay(cfg.MinDelay, cfg.MaxDelay),
			Speed: model.PlaybackSpeed(cfg.Speed),
		},
	}
	if store != nil {
		sessCfg.Recorder = store
	}
	sess := session.New(observer, sessCfg)
	defer sess.Close()

	if recording != "" {
		if err := sess.LoadFile(recording, cfg.MaxLineSize); err != nil {
			return fmt.Errorf("failed to load recording: %w", err)
		}
	}

	if cfg.APIEnabled {
		srvCfg := httpserver.Config{MaxLineSize: cfg.MaxLineSize}
		if store != nil {
			srvCfg.Runs = store
		}
		apiServer := httpserver.NewServer(cfg.APIAddr, sess, srvCfg)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	printStartupBanner(cfg, recording)

	if recording != "" && cfg.Autoplay {
		if err := sess.Play(); err != nil {
			log.Printf("session: autoplay failed: %v", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	// Without the API the process lives only as long as the replay.
	if !cfg.APIEnabled {
		g.Go(func() error {
			select {
			case <-finished:
				cancel()
			case <-gctx.Done():
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: errgroup exited with error: %v", err)
	}

	signal.Stop(sigCh)

	if st := sess.Status(); st.State == model.StateError && !cfg.APIEnabled {
		return fmt.Errorf("stream ended with error: %s", st.LastError)
	}
	return nil
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "chartstream")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "chartstream.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig, recording string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╔═╗╦ ╦╔═╗╦═╗╔╦╗╔═╗╔╦╗╦═╗╔═╗╔═╗╔╦╗
    ║  ╠═╣╠═╣╠╦╝ ║ ╚═╗ ║ ╠╦╝║╣ ╠═╣║║║
    ╚═╝╩ ╩╩ ╩╩╚═ ╩ ╚═╝ ╩ ╩╚═╚═╝╩ ╩╩ ╩`)

	ver := dim.Render("v" + version)

	var lines []string
	lines = append(lines, "")
	lines = append(lines, logo)
	lines = append(lines, "    "+ver)
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Playback"))
	lines = append(lines, "")

	if recording != "" {
		name := recording
		if name == "-" {
			name = "stdin"
		}
		lines = append(lines, fmt.Sprintf("    %s  Recording      %s", check, cyan.Render(shortenPath(name))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Recording      %s", dot, dim.Render("none (load via API)")))
	}
	lines = append(lines, fmt.Sprintf("    %s  Speed          %s", check, dim.Render(model.PlaybackSpeed(cfg.Speed).String())))
	lines = append(lines, fmt.Sprintf("    %s  Delay          %s", check, dim.Render(cfg.MinDelay.String()+" - "+cfg.MaxDelay.String())))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Gateway"))
	lines = append(lines, "")

	if cfg.APIEnabled {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Storage"))
	lines = append(lines, "")

	if cfg.HistoryEnabled {
		lines = append(lines, fmt.Sprintf("    %s  Run History    %s", check, dim.Render(shortenPath(cfg.DBPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Run History    %s", dot, dim.Render("disabled")))
	}
	if cfg.BackupEnabled {
		lines = append(lines, fmt.Sprintf("    %s  Exports        %s", check, dim.Render(shortenPath(cfg.BackupLocalDir))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Exports        %s", dot, dim.Render("disabled")))
	}

	lines = append(lines, "")
	lines = append(lines, bold.Render("    Config"))
	lines = append(lines, "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
