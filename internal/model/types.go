// Package model defines shared data structures.
package model

import "time"

// CalculationParam selects the primary reported metric and its unit.
type CalculationParam string

// Calculation parameters.
const (
	CalcNetWPM    CalculationParam = "net_wpm"
	CalcGrossKDPH CalculationParam = "gross_kdph"
	CalcGrossKPH  CalculationParam = "gross_kph"
)

// WordMethod defines what counts as one word.
type WordMethod string

// Word calculation methods. FiveChar equates one word with 5 keystrokes.
const (
	WordFiveChar WordMethod = "five_char"
	WordActual   WordMethod = "actual"
)

// ErrorClassification controls how raw mismatches are weighted.
type ErrorClassification string

// Error classification schemes.
const (
	ErrorsSimple   ErrorClassification = "simple"
	ErrorsFullHalf ErrorClassification = "full_half"
	ErrorsAdvanced ErrorClassification = "advanced"
)

// PenaltyMethod selects how chargeable errors reduce speed.
type PenaltyMethod string

// Penalty methods.
const (
	PenaltyNone       PenaltyMethod = "none"
	PenaltyPerMistake PenaltyMethod = "per_mistake"
	PenaltyPerFull    PenaltyMethod = "per_full_mistake"
	PenaltyFactor     PenaltyMethod = "penalty_factor"
)

// Penalty pairs a method with its deduction value. Deduction is only
// meaningful when Method is not PenaltyNone.
type Penalty struct {
	Method    PenaltyMethod
	Deduction float64
}

// EligibilityType selects the unit a minimum-eligibility threshold uses.
type EligibilityType string

// Eligibility threshold units.
const (
	EligibilityWPM  EligibilityType = "fixed_wpm"
	EligibilityKDPH EligibilityType = "fixed_kdph"
)

// Eligibility is a minimum speed threshold in a fixed unit.
type Eligibility struct {
	Type  EligibilityType
	Value float64
}

// ScoreMode selects how the final displayed score is derived.
type ScoreMode string

// Final score modes.
const (
	ScoreDirect     ScoreMode = "direct"
	ScoreQualifying ScoreMode = "qualifying"
	ScoreMarks      ScoreMode = "marks"
)

// BackspacePolicy restricts deletion during an attempt.
type BackspacePolicy string

// Backspace policies. OneWord locks deletion at the last word boundary.
const (
	BackspaceOff     BackspacePolicy = "off"
	BackspaceOneWord BackspacePolicy = "one_word"
	BackspaceFull    BackspacePolicy = "full"
)

// HighlightMode selects the live highlight granularity in the UI.
type HighlightMode string

// Highlight modes.
const (
	HighlightChar HighlightMode = "char"
	HighlightWord HighlightMode = "word"
	HighlightOff  HighlightMode = "off"
)

// ExamProfile is the immutable per-exam rulebook. It is created by an
// exam author, referenced by ID, and never mutated during an attempt.
type ExamProfile struct {
	ID   string
	Name string

	CalculationParam     CalculationParam
	WordMethod           WordMethod
	ErrorClassification  ErrorClassification
	IgnoredErrorLimitPct float64
	Penalty              Penalty
	MinEligibility       *Eligibility
	MinKeystrokes        int
	ScoreMode            ScoreMode
	// HalfMistakeWeight is the half-mistake weight used by the advanced
	// classification. Zero means the default of 0.5.
	HalfMistakeWeight float64

	Backspace         BackspacePolicy
	CompulsoryCorrect bool
	Highlight         HighlightMode
	DurationSeconds   int
	Lang              string
	Layout            string
}

// RawStats is the frozen telemetry of one attempt, handed to the rules
// engine at finalization.
type RawStats struct {
	TotalKeystrokes   int
	CorrectKeystrokes int
	BackspaceCount    int
	TotalWordsTyped   int
	FullMistakes      int
	HalfMistakes      int
	TimeTakenSeconds  float64
}

// ExamResult is the authoritative verdict for one attempt. Computed once
// at finalization and never mutated afterward.
type ExamResult struct {
	GrossSpeed  float64
	NetSpeed    float64
	NetWPM      float64
	AccuracyPct float64

	TotalErrors      float64
	IgnoredErrors    float64
	ChargeableErrors float64
	PenaltyAmount    float64

	Qualified          bool
	BelowMinKeystrokes bool
	BelowEligibility   bool

	Score          float64
	FormattedScore string
}

// KeyEvent is one discrete key input from the host UI.
type KeyEvent struct {
	Key   string
	Shift bool
}

// KeyMapping resolves one physical key for a non-Latin layout.
type KeyMapping struct {
	Normal string
	Shift  string
}

// LayoutMap maps physical keys to characters for one script/layout pair.
// The core never hard-codes these tables; they are supplied externally.
type LayoutMap map[string]KeyMapping

// AttemptRecord is one persisted attempt row.
type AttemptRecord struct {
	AttemptID  int64
	ProfileID  string
	Lang       string
	StartedAt  time.Time
	EndedAt    time.Time
	Keystrokes int
	Backspaces int
	DurationMs int64
	Result     ExamResult
}

// WordError is one persisted non-match alignment entry of an attempt.
type WordError struct {
	Position  int
	Reference string
	Typed     string
	Status    string
}

// WordErrorAggregate aggregates a reference word's error counts across
// attempts.
type WordErrorAggregate struct {
	Reference  string
	Mismatches int
	Missing    int
}

// ResultsFilter defines filters and options for results output.
type ResultsFilter struct {
	ProfileID   string
	Lang        string
	Since       *time.Time
	Last        int
	CurveWindow int
}
