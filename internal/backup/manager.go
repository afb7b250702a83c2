package backup

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	defaultInterval = 6 * time.Hour
	defaultKeepLast = 24

	filePrefix = "runs-"
	fileExt    = ".parquet"
	// Fixed width so lexical order is chronological.
	stampLayout = "20060102-150405.000000000"
)

// Manager runs periodic exports and optional remote uploads.
type Manager struct {
	exporter Exporter
	cfg      Config
	uploader Uploader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewManager validates cfg, writes one export immediately and starts the
// periodic loop. It returns nil when exports are disabled.
func NewManager(exporter Exporter, cfg Config) (*Manager, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if exporter == nil {
		return nil, fmt.Errorf("backup: nil exporter")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if strings.TrimSpace(cfg.LocalDir) == "" {
		return nil, fmt.Errorf("backup: local-dir is required when backup is enabled")
	}
	if cfg.KeepLast <= 0 {
		cfg.KeepLast = defaultKeepLast
	}
	if err := os.MkdirAll(cfg.LocalDir, 0755); err != nil {
		return nil, fmt.Errorf("backup: create local-dir: %w", err)
	}

	var uploader Uploader
	if strings.TrimSpace(cfg.BucketURL) != "" {
		s3u, err := NewS3Uploader(S3Config{
			BucketURL:    cfg.BucketURL,
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			SessionToken: cfg.S3SessionToken,
			UseSSL:       cfg.S3UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("backup: init s3 uploader: %w", err)
		}
		uploader = s3u
	}

	m := newManager(exporter, uploader, cfg)

	if err := m.RunOnce(m.ctx); err != nil {
		log.Printf("backup: startup export failed: %v", err)
	}

	m.wg.Add(1)
	go m.loop()
	return m, nil
}

func newManager(exporter Exporter, uploader Uploader, cfg Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		exporter: exporter,
		cfg:      cfg,
		uploader: uploader,
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
	}
}

func (m *Manager) loop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.RunOnce(m.ctx); err != nil && m.ctx.Err() == nil {
				log.Printf("backup: periodic export failed: %v", err)
			}
		case <-m.ctx.Done():
			return
		}
	}
}

// RunOnce writes one export, uploads it when configured, and prunes old
// local copies.
func (m *Manager) RunOnce(ctx context.Context) error {
	name := filePrefix + m.now().UTC().Format(stampLayout) + fileExt
	localPath := filepath.Join(m.cfg.LocalDir, name)

	n, err := m.exporter.ExportRuns(ctx, localPath)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	log.Printf("backup: exported %d runs to %s", n, localPath)

	if m.uploader != nil {
		if err := m.uploader.UploadFile(ctx, localPath); err != nil {
			return fmt.Errorf("upload: %w", err)
		}
		log.Printf("backup: uploaded %s", name)
	}

	if err := pruneLocalExports(m.cfg.LocalDir, m.cfg.KeepLast); err != nil {
		return fmt.Errorf("prune local exports: %w", err)
	}
	return nil
}

// Stop cancels any in-flight export or upload and waits for the loop to exit.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
}

func pruneLocalExports(localDir string, keepLast int) error {
	if keepLast <= 0 {
		return nil
	}

	matches, err := filepath.Glob(filepath.Join(localDir, filePrefix+"*"+fileExt))
	if err != nil {
		return err
	}
	if len(matches) <= keepLast {
		return nil
	}

	slices.Sort(matches)
	for _, old := range matches[:len(matches)-keepLast] {
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
