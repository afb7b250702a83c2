package model

import "time"

// Shared defaults used by both the service and TUI binaries.
const (
	DefaultSpeed         PlaybackSpeed = 1
	DefaultMinDelay                    = 50 * time.Millisecond
	DefaultMaxDelay                    = 150 * time.Millisecond
	DefaultMaxLineSize                 = 1024 * 1024 // 1MB
	DefaultRunsLimit                   = 20
	DefaultRetentionDays               = 30
)
