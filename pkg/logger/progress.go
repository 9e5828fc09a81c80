package logger

import (
	"sync"
	"time"
)

// ProgressTracker reports periodic progress for long-running batch
// operations such as assigning documents across many transactions.
type ProgressTracker struct {
	mu        sync.Mutex
	logger    Logger
	operation string
	total     int
	processed int
	started   time.Time
	lastLog   time.Time
	interval  time.Duration
}

// NewProgressTracker creates a tracker that logs at most once per
// interval. A zero total disables percentage reporting.
func NewProgressTracker(logger Logger, operation string, total int, interval time.Duration) *ProgressTracker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	now := time.Now()
	return &ProgressTracker{
		logger:    logger.WithComponent("progress"),
		operation: operation,
		total:     total,
		started:   now,
		lastLog:   now,
		interval:  interval,
	}
}

// Increment records n more completed items and logs if the reporting
// interval has elapsed.
func (p *ProgressTracker) Increment(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processed += n
	if time.Since(p.lastLog) < p.interval {
		return
	}
	p.lastLog = time.Now()
	p.log()
}

// Finish logs a final summary with the total elapsed time.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.started)
	fields := Fields{
		"operation": p.operation,
		"processed": p.processed,
		"elapsed":   elapsed.Round(time.Millisecond).String(),
	}
	if elapsed > 0 && p.processed > 0 {
		fields["rate_per_sec"] = float64(p.processed) / elapsed.Seconds()
	}
	p.logger.WithFields(fields).Infof("%s completed", p.operation)
}

func (p *ProgressTracker) log() {
	fields := Fields{
		"operation": p.operation,
		"processed": p.processed,
	}
	if p.total > 0 {
		fields["total"] = p.total
		fields["percent"] = float64(p.processed) * 100 / float64(p.total)
	}
	p.logger.WithFields(fields).Infof("%s in progress", p.operation)
}
