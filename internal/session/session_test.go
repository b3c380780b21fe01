package session

import (
	"testing"
	"time"

	"github.com/verte-zerg/typegrade/internal/align"
	"github.com/verte-zerg/typegrade/internal/model"
)

type fakeClock struct {
	at time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{at: time.Unix(0, 0)}
}

func (f *fakeClock) now() time.Time {
	return f.at
}

func (f *fakeClock) advance(d time.Duration) {
	f.at = f.at.Add(d)
}

func testProfile() model.ExamProfile {
	return model.ExamProfile{
		ID:                   "test",
		CalculationParam:     model.CalcNetWPM,
		WordMethod:           model.WordFiveChar,
		ErrorClassification:  model.ErrorsFullHalf,
		IgnoredErrorLimitPct: 0,
		Penalty:              model.Penalty{Method: model.PenaltyNone},
		ScoreMode:            model.ScoreDirect,
		Backspace:            model.BackspaceFull,
		Highlight:            model.HighlightChar,
		DurationSeconds:      60,
		Lang:                 "en",
	}
}

func typeText(c *Controller, text string) {
	for _, r := range text {
		c.HandleKey(model.KeyEvent{Key: string(r)})
	}
}

func TestStartsOnFirstAcceptedInput(t *testing.T) {
	clock := newFakeClock()
	c, err := New(testProfile(), "ab cd", WithClock(clock.now))
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	if c.State() != StateIdle {
		t.Fatalf("state = %v, want idle", c.State())
	}
	c.HandleKey(model.KeyEvent{Key: "a"})
	if c.State() != StateRunning {
		t.Fatalf("state = %v, want running", c.State())
	}
	if c.TypedText() != "a" {
		t.Fatalf("typed = %q, want \"a\"", c.TypedText())
	}
}

func TestAutoStart(t *testing.T) {
	clock := newFakeClock()
	c, err := New(testProfile(), "ab", WithClock(clock.now), WithAutoStart())
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	if c.State() != StateRunning {
		t.Fatalf("state = %v, want running at creation", c.State())
	}
}

func TestCompletionFinalizes(t *testing.T) {
	clock := newFakeClock()
	c, err := New(testProfile(), "ab", WithClock(clock.now))
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	c.HandleKey(model.KeyEvent{Key: "a"})
	clock.advance(2 * time.Second)
	c.HandleKey(model.KeyEvent{Key: "b"})
	if c.State() != StateFinished {
		t.Fatalf("state = %v, want finished after full reference", c.State())
	}
	stats := c.Stats()
	if stats.TotalKeystrokes != 2 || stats.CorrectKeystrokes != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.TimeTakenSeconds != 2 {
		t.Fatalf("time taken = %.2f, want 2", stats.TimeTakenSeconds)
	}
}

func TestTimerExpiryFinalizes(t *testing.T) {
	clock := newFakeClock()
	c, err := New(testProfile(), "some long reference text", WithClock(clock.now))
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	c.HandleKey(model.KeyEvent{Key: "s"})
	clock.advance(61 * time.Second)
	c.Tick()
	if c.State() != StateFinished {
		t.Fatalf("state = %v, want finished after expiry", c.State())
	}
	if got := c.Stats().TimeTakenSeconds; got != 60 {
		t.Fatalf("time taken = %.2f, want clamped 60", got)
	}
}

func TestFinalizeIdempotent(t *testing.T) {
	clock := newFakeClock()
	c, err := New(testProfile(), "ab cd", WithClock(clock.now))
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	typeText(c, "ab cd")
	first, err := c.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	clock.advance(10 * time.Second)
	c.HandleKey(model.KeyEvent{Key: "x"})
	second, err := c.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if first != second {
		t.Fatalf("finalize not idempotent: %+v vs %+v", first, second)
	}
	if c.TypedText() != "ab cd" {
		t.Fatalf("buffer mutated after finish: %q", c.TypedText())
	}
}

func TestPauseFreezesTimer(t *testing.T) {
	clock := newFakeClock()
	c, err := New(testProfile(), "abcdef", WithClock(clock.now))
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	c.HandleKey(model.KeyEvent{Key: "a"})
	clock.advance(5 * time.Second)
	c.Pause()
	if c.State() != StatePaused {
		t.Fatalf("state = %v, want paused", c.State())
	}
	clock.advance(30 * time.Second)
	c.HandleKey(model.KeyEvent{Key: "b"})
	if c.TypedText() != "a" {
		t.Fatalf("paused controller accepted input: %q", c.TypedText())
	}
	c.Resume()
	clock.advance(5 * time.Second)
	if got := c.Elapsed(); got != 10*time.Second {
		t.Fatalf("elapsed = %v, want 10s with paused interval excluded", got)
	}
}

func TestBackspacePolicies(t *testing.T) {
	t.Run("full", func(t *testing.T) {
		c := mustController(t, testProfile(), "ab cd")
		typeText(c, "ab x")
		c.HandleKey(model.KeyEvent{Key: KeyBackspace})
		c.HandleKey(model.KeyEvent{Key: KeyBackspace})
		if c.TypedText() != "ab" {
			t.Fatalf("typed = %q, want \"ab\"", c.TypedText())
		}
		if got := c.Stats().BackspaceCount; got != 2 {
			t.Fatalf("backspace count = %d, want 2", got)
		}
	})
	t.Run("one word locks at boundary", func(t *testing.T) {
		profile := testProfile()
		profile.Backspace = model.BackspaceOneWord
		c := mustController(t, profile, "ab cd")
		typeText(c, "ab x")
		c.HandleKey(model.KeyEvent{Key: KeyBackspace})
		if c.TypedText() != "ab " {
			t.Fatalf("typed = %q, want \"ab \"", c.TypedText())
		}
		c.HandleKey(model.KeyEvent{Key: KeyBackspace})
		if c.TypedText() != "ab " {
			t.Fatalf("word-boundary lock breached: %q", c.TypedText())
		}
		if got := c.Stats().BackspaceCount; got != 1 {
			t.Fatalf("backspace count = %d, want 1", got)
		}
	})
	t.Run("off suppresses", func(t *testing.T) {
		profile := testProfile()
		profile.Backspace = model.BackspaceOff
		c := mustController(t, profile, "ab cd")
		typeText(c, "ax")
		c.HandleKey(model.KeyEvent{Key: KeyBackspace})
		if c.TypedText() != "ax" {
			t.Fatalf("typed = %q, want \"ax\"", c.TypedText())
		}
		if got := c.Stats().BackspaceCount; got != 0 {
			t.Fatalf("suppressed backspace was counted: %d", got)
		}
	})
}

func TestCompulsoryCorrectBlocksWrongInput(t *testing.T) {
	profile := testProfile()
	profile.CompulsoryCorrect = true
	c := mustController(t, profile, "abc")
	c.HandleKey(model.KeyEvent{Key: "a"})
	c.HandleKey(model.KeyEvent{Key: "x"})
	if c.TypedText() != "a" {
		t.Fatalf("wrong input accepted: %q", c.TypedText())
	}
	stats := c.Stats()
	if stats.TotalKeystrokes != 1 {
		t.Fatalf("blocked attempt was counted: %+v", stats)
	}
	c.HandleKey(model.KeyEvent{Key: "b"})
	if c.TypedText() != "ab" {
		t.Fatalf("correct retry rejected: %q", c.TypedText())
	}
}

func TestLayoutRemapping(t *testing.T) {
	layout := model.LayoutMap{
		"k": {Normal: "क", Shift: "ख"},
		"i": {Normal: "ि"},
	}
	c := mustController(t, testProfile(), "कि ख", WithLayout(layout))
	c.HandleKey(model.KeyEvent{Key: "k"})
	c.HandleKey(model.KeyEvent{Key: "i"})
	if c.TypedText() != "कि" {
		t.Fatalf("typed = %q, want \"कि\"", c.TypedText())
	}
	c.HandleKey(model.KeyEvent{Key: "z"})
	if c.TypedText() != "कि" {
		t.Fatalf("unmapped key inserted: %q", c.TypedText())
	}
	c.HandleKey(model.KeyEvent{Key: " "})
	if c.TypedText() != "कि" {
		t.Fatalf("space must go through the map when a layout is configured: %q", c.TypedText())
	}
}

func TestLiveErrorsAdvisory(t *testing.T) {
	c := mustController(t, testProfile(), "abcd")
	typeText(c, "abx")
	if got := c.LiveErrors(); got != 1 {
		t.Fatalf("live errors = %d, want 1", got)
	}
	c.HandleKey(model.KeyEvent{Key: KeyBackspace})
	if got := c.LiveErrors(); got != 0 {
		t.Fatalf("live errors after correction = %d, want 0", got)
	}
}

func TestFinalizationAlignsWords(t *testing.T) {
	clock := newFakeClock()
	c, err := New(testProfile(), "the quick fox", WithClock(clock.now))
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	typeText(c, "the brown fox")
	result, err := c.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	entries := c.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %+v", entries)
	}
	if entries[1].Status != align.StatusMismatch {
		t.Fatalf("entry 1 = %+v, want mismatch", entries[1])
	}
	if result.TotalErrors != 1 {
		t.Fatalf("total errors = %.2f, want 1", result.TotalErrors)
	}
	stats := c.Stats()
	if stats.FullMistakes != 1 || stats.HalfMistakes != 0 {
		t.Fatalf("unexpected mistakes: %+v", stats)
	}
	if stats.TotalWordsTyped != 3 {
		t.Fatalf("words typed = %d, want 3", stats.TotalWordsTyped)
	}
}

func TestRejectsEmptyReference(t *testing.T) {
	if _, err := New(testProfile(), "   "); err == nil {
		t.Fatalf("expected error for empty reference")
	}
}

func TestRejectsInvalidProfile(t *testing.T) {
	profile := testProfile()
	profile.CalculationParam = "bogus"
	if _, err := New(profile, "abc"); err == nil {
		t.Fatalf("expected error for invalid profile")
	}
}

func mustController(t *testing.T, profile model.ExamProfile, reference string, opts ...Option) *Controller {
	t.Helper()
	clock := newFakeClock()
	opts = append([]Option{WithClock(clock.now)}, opts...)
	c, err := New(profile, reference, opts...)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return c
}
