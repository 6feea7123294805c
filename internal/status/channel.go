// Package status implements the status channel the mediator polls while a
// service runs: an append-only file of (percent, time, message) lines.
package status

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Event is one sequenced status report.
type Event struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Percent   int       `json:"percent"`
}

// Line renders the event in the mediator's status file format.
func (e Event) Line() string {
	ts := float64(e.Timestamp.UnixNano()) / 1e9
	if e.Percent > 0 {
		return fmt.Sprintf("%d%%\t%.3f\t%s\n", e.Percent, ts, e.Message)
	}
	return fmt.Sprintf("%.3f\t%s\n", ts, e.Message)
}

// Channel appends status lines to a file and keeps a bounded history.
type Channel struct {
	mu        sync.Mutex
	path      string
	now       func() time.Time
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewChannel creates a channel writing to path. An empty path keeps the
// history in memory only.
func NewChannel(path string, maxEvents int) *Channel {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &Channel{
		path:      path,
		now:       time.Now,
		maxEvents: maxEvents,
		events:    make([]Event, 0, 16),
	}
}

// Write records one status message with a completion percentage. The
// percentage is clamped to 0..100.
func (c *Channel) Write(message string, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSeq++
	event := Event{
		Seq:       c.nextSeq,
		Timestamp: c.now().UTC(),
		Message:   message,
		Percent:   percent,
	}

	c.events = append(c.events, event)
	if len(c.events) > c.maxEvents {
		trim := len(c.events) - c.maxEvents
		c.events = append([]Event(nil), c.events[trim:]...)
	}

	if c.path == "" {
		return nil
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open status file: %w", err)
	}
	if _, err := f.WriteString(event.Line()); err != nil {
		_ = f.Close()
		return fmt.Errorf("write status file: %w", err)
	}
	return f.Close()
}

// Since returns events with sequence strictly greater than seq.
func (c *Channel) Since(seq int64) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(c.events))
	for _, event := range c.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// Last returns the most recent event and whether one exists.
func (c *Channel) Last() (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return Event{}, false
	}
	return c.events[len(c.events)-1], true
}
