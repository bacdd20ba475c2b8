// Package quota implements the per-owner daily upload cap.
//
// The counter lives in the owner document (entity.UploadCounter). The gate only
// mutates it in memory; callers persist the result. Rollover happens whenever
// the window has elapsed since LastDailyReset, before the cap is evaluated.
package quota

import (
	"fmt"
	"invisifeed/entity"
	"invisifeed/lib/clock"
	"time"
)

const (
	DefaultDailyLimit = 3
	DefaultWindow     = 24 * time.Hour
)

// Policy selects how concurrent uploads of one owner are coordinated
type Policy string

const (
	// PolicyBestEffort relies on the store's document-level last-write-wins
	PolicyBestEffort Policy = "best-effort"
	// PolicySerialized locks per owner and compare-and-sets the counter
	PolicySerialized Policy = "serialized"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyBestEffort:
		return PolicyBestEffort, nil
	case PolicySerialized:
		return PolicySerialized, nil
	}
	return "", fmt.Errorf("unknown quota policy: %q", s)
}

type Gate struct {
	limit  int
	window time.Duration
}

func New(limit int, window time.Duration) *Gate {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Gate{limit: limit, window: window}
}

func (g *Gate) Limit() int {
	return g.limit
}

// Rollover resets the daily count when the window has elapsed and reports whether it did
func (g *Gate) Rollover(c *entity.UploadCounter, now time.Time) bool {
	if now.Sub(c.LastDailyReset) < g.window {
		return false
	}
	c.DailyUploads = 0
	c.LastDailyReset = now
	return true
}

// Allow returns a *entity.RateLimitError when the cap is reached.
// Call Rollover first.
func (g *Gate) Allow(c *entity.UploadCounter, now time.Time) error {
	if c.DailyUploads < g.limit {
		return nil
	}
	return &entity.RateLimitError{TimeLeft: g.TimeLeft(c, now)}
}

// Accept records one accepted upload
func (g *Gate) Accept(c *entity.UploadCounter, now time.Time) {
	c.DailyUploads++
	c.Count++
	c.LastUpdated = now
}

// TimeLeft is the number of hours, rounded up, until the next rollover
func (g *Gate) TimeLeft(c *entity.UploadCounter, now time.Time) int {
	return clock.CeilHours(c.LastDailyReset.Add(g.window).Sub(now))
}

// Status describes the counter after rollover; TimeLeft is set only when the cap is reached
func (g *Gate) Status(c *entity.UploadCounter, now time.Time) *entity.UploadStatus {
	status := &entity.UploadStatus{
		DailyUploads: c.DailyUploads,
		Count:        c.Count,
		DailyLimit:   g.limit,
	}
	if c.DailyUploads >= g.limit {
		left := g.TimeLeft(c, now)
		status.TimeLeft = &left
	}
	return status
}
