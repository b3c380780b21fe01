// Package events reads captured key-event logs for offline regrading.
package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/verte-zerg/typegrade/internal/model"
)

// Timed is one captured key event with its offset from attempt start.
type Timed struct {
	Key   string `json:"key"`
	Shift bool   `json:"shift"`
	AtMs  int64  `json:"at_ms"`
}

// KeyEvent converts the captured event to the controller input shape.
func (t Timed) KeyEvent() model.KeyEvent {
	return model.KeyEvent{Key: t.Key, Shift: t.Shift}
}

// Load reads a JSON-lines event log, one event per line. Offsets must
// be non-negative and non-decreasing so a replay is reproducible.
func Load(path string) ([]Timed, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only log.
			_ = cerr
		}
	}()

	var out []Timed
	scanner := bufio.NewScanner(file)
	lineNo := 0
	prev := int64(0)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev Timed
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if ev.Key == "" {
			return nil, fmt.Errorf("line %d: empty key", lineNo)
		}
		if ev.AtMs < prev {
			return nil, fmt.Errorf("line %d: offset %dms precedes %dms", lineNo, ev.AtMs, prev)
		}
		prev = ev.AtMs
		out = append(out, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("event log is empty")
	}
	return out, nil
}

// Clock is a synthetic time source stepped through an event log.
type Clock struct {
	base   time.Time
	offset time.Duration
}

// NewClock returns a clock at the epoch of an attempt replay.
func NewClock() *Clock {
	return &Clock{base: time.Unix(0, 0)}
}

// Now implements the controller clock contract.
func (c *Clock) Now() time.Time {
	return c.base.Add(c.offset)
}

// SetMs positions the clock at an event's offset.
func (c *Clock) SetMs(ms int64) {
	c.offset = time.Duration(ms) * time.Millisecond
}
