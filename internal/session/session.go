// Package session owns the per-attempt typing state machine.
package session

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/verte-zerg/typegrade/internal/align"
	"github.com/verte-zerg/typegrade/internal/grapheme"
	"github.com/verte-zerg/typegrade/internal/model"
	"github.com/verte-zerg/typegrade/internal/rules"
)

// KeyBackspace is the key name the host UI sends for deletion events.
const KeyBackspace = "backspace"

// State is the lifecycle phase of one attempt.
type State int

// Attempt states. Finished is terminal.
const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateFinished
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock injects the time source. Used by replay and tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithLayout supplies an external layout map. When set, raw keys are
// never inserted directly; unmapped keys are suppressed.
func WithLayout(layout model.LayoutMap) Option {
	return func(c *Controller) {
		c.layout = layout
	}
}

// WithAutoStart starts the timer at session creation instead of on the
// first accepted input event.
func WithAutoStart() Option {
	return func(c *Controller) {
		c.autoStart = true
	}
}

// Controller advances one attempt through discrete external events. It
// is the single owner of the attempt's mutable state; callers must
// serialize events before handing them over.
type Controller struct {
	profile   model.ExamProfile
	reference string
	refRunes  []rune
	layout    model.LayoutMap
	now       func() time.Time
	autoStart bool

	state       State
	buffer      []rune
	startedAt   time.Time
	pausedAt    time.Time
	pausedTotal time.Duration

	totalKeystrokes   int
	correctKeystrokes int
	backspaceCount    int
	liveErrors        int

	finalElapsed time.Duration
	entries      []align.Entry
	result       model.ExamResult
	finalized    bool
}

// New validates the profile and builds an idle controller for one
// attempt over the given reference passage.
func New(profile model.ExamProfile, reference string, opts ...Option) (*Controller, error) {
	if err := rules.Validate(profile); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reference) == "" {
		return nil, fmt.Errorf("reference text is empty")
	}
	c := &Controller{
		profile:   profile,
		reference: reference,
		refRunes:  []rune(reference),
		now:       time.Now,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.autoStart {
		c.start()
	}
	return c, nil
}

// Profile returns the attempt's rulebook.
func (c *Controller) Profile() model.ExamProfile {
	return c.profile
}

// Reference returns the reference passage.
func (c *Controller) Reference() string {
	return c.reference
}

// State returns the current lifecycle phase.
func (c *Controller) State() State {
	return c.state
}

// TypedText returns the current input buffer.
func (c *Controller) TypedText() string {
	return string(c.buffer)
}

// LiveErrors returns the advisory per-character mismatch count. The
// authoritative error classification is produced at finalization.
func (c *Controller) LiveErrors() int {
	return c.liveErrors
}

// Elapsed returns the running time excluding paused intervals.
func (c *Controller) Elapsed() time.Duration {
	switch c.state {
	case StateIdle:
		return 0
	case StateFinished:
		return c.finalElapsed
	case StatePaused:
		return c.pausedAt.Sub(c.startedAt) - c.pausedTotal
	default:
		return c.now().Sub(c.startedAt) - c.pausedTotal
	}
}

// Remaining returns the countdown left, zero when no limit is set or
// the limit is exhausted.
func (c *Controller) Remaining() time.Duration {
	limit := time.Duration(c.profile.DurationSeconds) * time.Second
	if limit <= 0 {
		return 0
	}
	left := limit - c.Elapsed()
	if left < 0 {
		return 0
	}
	return left
}

// HandleKey applies one key event. Invalid or blocked keystrokes are
// silent no-ops; the controller always has a defined transition.
func (c *Controller) HandleKey(ev model.KeyEvent) {
	if c.state == StateFinished || c.state == StatePaused {
		return
	}
	if c.expired() {
		c.finish()
		return
	}
	if ev.Key == KeyBackspace {
		c.handleBackspace()
		return
	}
	r, ok := c.resolve(ev)
	if !ok {
		return
	}
	if c.state == StateIdle {
		c.start()
	}
	pos := len(c.buffer)
	expected, inRange := c.expectedAt(pos)
	if c.profile.CompulsoryCorrect && inRange && r != expected {
		// Block-and-retry mode: the rejected attempt is not a mistake.
		return
	}
	c.totalKeystrokes++
	if inRange && r == expected {
		c.correctKeystrokes++
	}
	c.buffer = append(c.buffer, r)
	c.recountLiveErrors()
	if len(c.buffer) >= len(c.refRunes) {
		c.finish()
	}
}

// Pause freezes the timer. Only an external signal enters this state.
func (c *Controller) Pause() {
	if c.state != StateRunning {
		return
	}
	c.pausedAt = c.now()
	c.state = StatePaused
}

// Resume restarts the timer with no drift from the paused interval.
func (c *Controller) Resume() {
	if c.state != StatePaused {
		return
	}
	c.pausedTotal += c.now().Sub(c.pausedAt)
	c.state = StateRunning
}

// Tick checks the countdown and finalizes once it is exhausted. The
// host calls this on timer events; a concurrent explicit finish signal
// is safe because finalization is idempotent.
func (c *Controller) Tick() {
	if c.state != StateRunning {
		return
	}
	if c.expired() {
		c.finish()
	}
}

// Finalize stops the attempt and computes the authoritative result.
// Idempotent: repeated calls return the same result with no further
// mutation.
func (c *Controller) Finalize() (model.ExamResult, error) {
	if c.finalized {
		return c.result, nil
	}
	c.finish()
	return c.result, nil
}

// Entries returns the word alignment produced at finalization, nil
// before the attempt finishes.
func (c *Controller) Entries() []align.Entry {
	return c.entries
}

// Stats returns a snapshot of the attempt counters. Before finalization
// the mistake fields are zero; the live mismatch count is advisory only.
func (c *Controller) Stats() model.RawStats {
	return c.rawStats()
}

func (c *Controller) start() {
	c.startedAt = c.now()
	c.state = StateRunning
}

func (c *Controller) expired() bool {
	limit := time.Duration(c.profile.DurationSeconds) * time.Second
	return limit > 0 && c.state == StateRunning && c.Elapsed() >= limit
}

func (c *Controller) finish() {
	if c.finalized {
		return
	}
	elapsed := c.Elapsed()
	limit := time.Duration(c.profile.DurationSeconds) * time.Second
	if limit > 0 && elapsed > limit {
		elapsed = limit
	}
	c.finalElapsed = elapsed
	c.state = StateFinished

	typedWords := strings.Fields(string(c.buffer))
	refWords := strings.Fields(c.reference)
	c.entries = align.Words(refWords, typedWords)
	c.finalized = true
	stats := c.rawStats()

	result, err := rules.Calculate(c.profile, stats)
	if err != nil {
		// The profile was validated at construction and the counters
		// are internally consistent, so this cannot fire for a live
		// attempt; keep the zero result rather than panicking.
		return
	}
	c.result = result
}

func (c *Controller) rawStats() model.RawStats {
	full, half := 0, 0
	if c.finalized {
		full, half = align.Tally(c.entries)
	}
	return model.RawStats{
		TotalKeystrokes:   c.totalKeystrokes,
		CorrectKeystrokes: c.correctKeystrokes,
		BackspaceCount:    c.backspaceCount,
		TotalWordsTyped:   len(strings.Fields(string(c.buffer))),
		FullMistakes:      full,
		HalfMistakes:      half,
		TimeTakenSeconds:  c.Elapsed().Seconds(),
	}
}

func (c *Controller) handleBackspace() {
	if c.state != StateRunning || len(c.buffer) == 0 {
		return
	}
	switch c.profile.Backspace {
	case model.BackspaceOff:
		return
	case model.BackspaceOneWord:
		// Word-boundary lock: deletion stops at the last typed space.
		if unicode.IsSpace(c.buffer[len(c.buffer)-1]) {
			return
		}
	}
	c.buffer = c.buffer[:len(c.buffer)-1]
	c.backspaceCount++
	c.recountLiveErrors()
}

func (c *Controller) resolve(ev model.KeyEvent) (rune, bool) {
	if c.layout != nil {
		mapping, ok := c.layout[ev.Key]
		if !ok {
			return 0, false
		}
		ch := mapping.Normal
		if ev.Shift && mapping.Shift != "" {
			ch = mapping.Shift
		}
		return firstRune(ch)
	}
	return firstRune(ev.Key)
}

func (c *Controller) expectedAt(pos int) (rune, bool) {
	if pos < 0 || pos >= len(c.refRunes) {
		return 0, false
	}
	return c.refRunes[pos], true
}

func (c *Controller) recountLiveErrors() {
	c.liveErrors = grapheme.Mismatches(c.reference, string(c.buffer), c.profile.Lang)
}

// firstRune accepts only single-character keys; named keys like "enter"
// are suppressed at this boundary.
func firstRune(key string) (rune, bool) {
	if key == "" {
		return 0, false
	}
	r, size := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError || size != len(key) {
		return 0, false
	}
	return r, true
}
