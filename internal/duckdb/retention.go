package duckdb

import (
	"log"
	"sync"
	"time"

	"github.com/tinytelemetry/chartstream/internal/model"
)

// RetentionConfig holds configuration for the retention cleaner.
type RetentionConfig struct {
	RetentionDays int
	Interval      time.Duration    // defaults to 1h
	Now           func() time.Time // defaults to time.Now
}

// RetentionCleaner deletes runs that ended before the retention window,
// once at construction and then every Interval.
type RetentionCleaner struct {
	store    *Store
	window   time.Duration
	interval time.Duration
	now      func() time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewRetentionCleaner starts a cleaner after one immediate pass.
// Returns nil when retention is 0 (disabled).
func NewRetentionCleaner(store *Store, conf ...RetentionConfig) *RetentionCleaner {
	cfg := RetentionConfig{RetentionDays: model.DefaultRetentionDays}
	if len(conf) > 0 {
		cfg = conf[0]
	}
	if cfg.RetentionDays <= 0 {
		return nil
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	rc := &RetentionCleaner{
		store:    store,
		window:   time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval: cfg.Interval,
		now:      cfg.Now,
		done:     make(chan struct{}),
	}
	rc.prune()

	rc.wg.Add(1)
	go rc.loop()
	return rc
}

// Prune deletes expired runs now and returns how many were removed.
func (rc *RetentionCleaner) Prune() (int64, error) {
	return rc.store.DeleteBefore(rc.now().Add(-rc.window))
}

func (rc *RetentionCleaner) prune() {
	n, err := rc.Prune()
	switch {
	case err != nil:
		log.Printf("duckdb: retention cleanup error: %v", err)
	case n > 0:
		log.Printf("duckdb: pruned %d runs older than %s", n, rc.window)
	}
}

func (rc *RetentionCleaner) loop() {
	defer rc.wg.Done()
	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rc.prune()
		case <-rc.done:
			return
		}
	}
}

// Stop ends the periodic loop. Safe to call more than once.
func (rc *RetentionCleaner) Stop() {
	rc.stopOnce.Do(func() {
		close(rc.done)
		rc.wg.Wait()
	})
}
