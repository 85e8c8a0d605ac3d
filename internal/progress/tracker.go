// Package progress reports pipeline stage transitions and poll attempts to
// the console.
package progress

import (
	"time"

	"github.com/rs/zerolog"
)

// Tracker receives notifications as the fork pipeline advances
type Tracker interface {
	// StartStage marks the beginning of a named stage (fork, wait, release, mirror)
	StartStage(stage, subject string)
	// CompleteStage marks the current stage as finished
	CompleteStage(stage string)
	// FailStage marks the current stage as failed
	FailStage(stage string, err error)
	// Attempt reports one poll attempt while waiting for a resource
	Attempt(handle string, attempt, maxAttempts int)
}

// LogTracker writes progress to a zerolog logger
type LogTracker struct {
	log     zerolog.Logger
	started map[string]time.Time
}

// NewLogTracker creates a tracker backed by the given logger
func NewLogTracker(log zerolog.Logger) *LogTracker {
	return &LogTracker{
		log:     log,
		started: make(map[string]time.Time),
	}
}

// StartStage implements Tracker.StartStage
func (t *LogTracker) StartStage(stage, subject string) {
	t.started[stage] = time.Now()
	t.log.Info().Str("stage", stage).Str("subject", subject).Msg("starting")
}

// CompleteStage implements Tracker.CompleteStage
func (t *LogTracker) CompleteStage(stage string) {
	event := t.log.Info().Str("stage", stage)
	if start, ok := t.started[stage]; ok {
		event = event.Dur("took", time.Since(start))
		delete(t.started, stage)
	}
	event.Msg("completed")
}

// FailStage implements Tracker.FailStage
func (t *LogTracker) FailStage(stage string, err error) {
	t.log.Error().Str("stage", stage).Err(err).Msg("failed")
	delete(t.started, stage)
}

// Attempt implements Tracker.Attempt
func (t *LogTracker) Attempt(handle string, attempt, maxAttempts int) {
	t.log.Debug().
		Str("handle", handle).
		Int("attempt", attempt).
		Int("max_attempts", maxAttempts).
		Msg("checking resource visibility")
}

// NopTracker discards all progress notifications. Used in tests.
type NopTracker struct{}

func (NopTracker) StartStage(string, string) {}

func (NopTracker) CompleteStage(string) {}

func (NopTracker) FailStage(string, error) {}

func (NopTracker) Attempt(string, int, int) {}
