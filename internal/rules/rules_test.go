package rules

import (
	"math"
	"testing"

	"github.com/verte-zerg/typegrade/internal/model"
)

func sscProfile() model.ExamProfile {
	return model.ExamProfile{
		ID:                   "ssc",
		Name:                 "SSC-style 15 minute test",
		CalculationParam:     model.CalcNetWPM,
		WordMethod:           model.WordFiveChar,
		ErrorClassification:  model.ErrorsFullHalf,
		IgnoredErrorLimitPct: 5,
		Penalty:              model.Penalty{Method: model.PenaltyNone},
		ScoreMode:            model.ScoreMarks,
		Backspace:            model.BackspaceFull,
		Highlight:            model.HighlightChar,
		DurationSeconds:      900,
		Lang:                 "en",
	}
}

func approx(got, want float64) bool {
	return math.Abs(got-want) < 0.005
}

func TestCalculateIgnoredErrorsAbsorbAll(t *testing.T) {
	stats := model.RawStats{
		TotalKeystrokes:  2000,
		FullMistakes:     2,
		HalfMistakes:     4,
		TimeTakenSeconds: 900,
	}
	result, err := Calculate(sscProfile(), stats)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !approx(result.GrossSpeed, 26.67) {
		t.Fatalf("gross speed = %.2f, want 26.67", result.GrossSpeed)
	}
	if result.TotalErrors != 4 {
		t.Fatalf("total errors = %.2f, want 4", result.TotalErrors)
	}
	if result.IgnoredErrors != 4 {
		t.Fatalf("ignored errors = %.2f, want 4", result.IgnoredErrors)
	}
	if result.ChargeableErrors != 0 {
		t.Fatalf("chargeable errors = %.2f, want 0", result.ChargeableErrors)
	}
	if !approx(result.NetWPM, 26.67) {
		t.Fatalf("net wpm = %.2f, want 26.67", result.NetWPM)
	}
	if !result.Qualified {
		t.Fatalf("expected qualified result")
	}
}

func TestCalculatePerMistakePenalty(t *testing.T) {
	profile := sscProfile()
	profile.Penalty = model.Penalty{Method: model.PenaltyPerMistake, Deduction: 10}
	stats := model.RawStats{
		TotalKeystrokes:  2000,
		FullMistakes:     30,
		TimeTakenSeconds: 900,
	}
	result, err := Calculate(profile, stats)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if result.TotalErrors != 30 {
		t.Fatalf("total errors = %.2f, want 30", result.TotalErrors)
	}
	if result.ChargeableErrors != 10 {
		t.Fatalf("chargeable errors = %.2f, want 10", result.ChargeableErrors)
	}
	if !approx(result.PenaltyAmount, 6.67) {
		t.Fatalf("penalty = %.2f, want 6.67", result.PenaltyAmount)
	}
	if !approx(result.NetWPM, 20.00) {
		t.Fatalf("net wpm = %.2f, want 20.00", result.NetWPM)
	}
}

func TestCalculateMinKeystrokesDisqualifies(t *testing.T) {
	profile := sscProfile()
	profile.MinKeystrokes = 500
	stats := model.RawStats{
		TotalKeystrokes:  300,
		TimeTakenSeconds: 120,
	}
	result, err := Calculate(profile, stats)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if result.Qualified {
		t.Fatalf("expected disqualification below minimum keystrokes")
	}
	if !result.BelowMinKeystrokes {
		t.Fatalf("expected hard disqualification flag")
	}
	if result.BelowEligibility {
		t.Fatalf("eligibility flag should not be set")
	}
}

func TestCalculateEligibilityThreshold(t *testing.T) {
	profile := sscProfile()
	profile.MinEligibility = &model.Eligibility{Type: model.EligibilityWPM, Value: 35}
	stats := model.RawStats{
		TotalKeystrokes:  2000,
		TimeTakenSeconds: 900,
	}
	result, err := Calculate(profile, stats)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if result.Qualified || !result.BelowEligibility {
		t.Fatalf("expected eligibility failure at %.2f wpm vs 35 wpm threshold", result.NetWPM)
	}

	profile.MinEligibility.Value = 25
	result, err = Calculate(profile, stats)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !result.Qualified {
		t.Fatalf("expected qualification above threshold")
	}
}

func TestCalculateStrokeRateUnits(t *testing.T) {
	profile := sscProfile()
	profile.CalculationParam = model.CalcGrossKDPH
	stats := model.RawStats{
		TotalKeystrokes:  9000,
		TimeTakenSeconds: 600,
	}
	result, err := Calculate(profile, stats)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	// 9000 strokes in 10 minutes is 54000 strokes/hour, i.e. 180 wpm.
	if !approx(result.GrossSpeed, 54000) {
		t.Fatalf("gross speed = %.2f, want 54000", result.GrossSpeed)
	}
	if !approx(result.NetWPM, 180) {
		t.Fatalf("net wpm = %.2f, want 180", result.NetWPM)
	}
}

func TestCalculateDegenerateTelemetry(t *testing.T) {
	result, err := Calculate(sscProfile(), model.RawStats{})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if result.AccuracyPct != 100 {
		t.Fatalf("accuracy = %.2f, want 100 on zero keystrokes", result.AccuracyPct)
	}
	if result.GrossSpeed != 0 || result.NetSpeed != 0 {
		t.Fatalf("expected zero speeds, got %+v", result)
	}
}

func TestCalculateNonNegativity(t *testing.T) {
	profile := sscProfile()
	profile.Penalty = model.Penalty{Method: model.PenaltyFactor, Deduction: 50}
	stats := model.RawStats{
		TotalKeystrokes:  100,
		FullMistakes:     40,
		TimeTakenSeconds: 60,
	}
	result, err := Calculate(profile, stats)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if result.NetSpeed < 0 {
		t.Fatalf("net speed must not be negative, got %.2f", result.NetSpeed)
	}
	if result.AccuracyPct < 0 || result.AccuracyPct > 100 {
		t.Fatalf("accuracy out of range: %.2f", result.AccuracyPct)
	}
}

func TestCalculateIgnoredCapIdentity(t *testing.T) {
	profile := sscProfile()
	stats := model.RawStats{
		TotalKeystrokes:  1500,
		FullMistakes:     25,
		HalfMistakes:     6,
		TimeTakenSeconds: 600,
	}
	result, err := Calculate(profile, stats)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !approx(result.ChargeableErrors+result.IgnoredErrors, result.TotalErrors) {
		t.Fatalf("chargeable %.2f + ignored %.2f != total %.2f",
			result.ChargeableErrors, result.IgnoredErrors, result.TotalErrors)
	}
	maxIgnored := math.Floor(1500.0 / 5 * profile.IgnoredErrorLimitPct / 100)
	if result.IgnoredErrors > maxIgnored {
		t.Fatalf("ignored %.2f exceeds allowance %.2f", result.IgnoredErrors, maxIgnored)
	}
}

func TestCalculateClassificationMonotonic(t *testing.T) {
	stats := model.RawStats{
		TotalKeystrokes:  2000,
		FullMistakes:     8,
		HalfMistakes:     6,
		TimeTakenSeconds: 900,
	}
	simple := sscProfile()
	simple.ErrorClassification = model.ErrorsSimple
	fullHalf := sscProfile()

	simpleResult, err := Calculate(simple, stats)
	if err != nil {
		t.Fatalf("calculate simple: %v", err)
	}
	fullHalfResult, err := Calculate(fullHalf, stats)
	if err != nil {
		t.Fatalf("calculate full_half: %v", err)
	}
	if simpleResult.TotalErrors != 14 {
		t.Fatalf("simple total errors = %.2f, want 14", simpleResult.TotalErrors)
	}
	if fullHalfResult.TotalErrors != 11 {
		t.Fatalf("full_half total errors = %.2f, want 11", fullHalfResult.TotalErrors)
	}
	if fullHalfResult.TotalErrors > simpleResult.TotalErrors {
		t.Fatalf("full_half %.2f must not exceed simple %.2f", fullHalfResult.TotalErrors, simpleResult.TotalErrors)
	}
}

func TestCalculateAdvancedWeight(t *testing.T) {
	profile := sscProfile()
	profile.ErrorClassification = model.ErrorsAdvanced
	profile.HalfMistakeWeight = 0.25
	stats := model.RawStats{
		TotalKeystrokes:  2000,
		FullMistakes:     4,
		HalfMistakes:     8,
		TimeTakenSeconds: 900,
	}
	result, err := Calculate(profile, stats)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if result.TotalErrors != 6 {
		t.Fatalf("advanced total errors = %.2f, want 6", result.TotalErrors)
	}
}

func TestCalculateScoreModes(t *testing.T) {
	stats := model.RawStats{
		TotalKeystrokes:  2000,
		TimeTakenSeconds: 900,
	}
	marks := sscProfile()
	result, err := Calculate(marks, stats)
	if err != nil {
		t.Fatalf("calculate marks: %v", err)
	}
	if !approx(result.Score, result.NetWPM) {
		t.Fatalf("marks score = %.2f, want net wpm %.2f", result.Score, result.NetWPM)
	}

	qualifying := sscProfile()
	qualifying.ScoreMode = model.ScoreQualifying
	result, err = Calculate(qualifying, stats)
	if err != nil {
		t.Fatalf("calculate qualifying: %v", err)
	}
	if result.Score != 100 {
		t.Fatalf("qualifying score = %.2f, want 100", result.Score)
	}
	if result.FormattedScore != "100.00" {
		t.Fatalf("formatted score = %q, want \"100.00\"", result.FormattedScore)
	}

	qualifying.MinKeystrokes = 5000
	result, err = Calculate(qualifying, stats)
	if err != nil {
		t.Fatalf("calculate failed qualifying: %v", err)
	}
	if result.Score != 0 {
		t.Fatalf("disqualified qualifying score = %.2f, want 0", result.Score)
	}
}

func TestCalculateReproducible(t *testing.T) {
	profile := sscProfile()
	profile.Penalty = model.Penalty{Method: model.PenaltyPerMistake, Deduction: 3}
	stats := model.RawStats{
		TotalKeystrokes:  1234,
		FullMistakes:     17,
		HalfMistakes:     5,
		TimeTakenSeconds: 555,
	}
	first, err := Calculate(profile, stats)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	second, err := Calculate(profile, stats)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if first != second {
		t.Fatalf("results differ: %+v vs %+v", first, second)
	}
}

func TestValidateRejectsMalformedProfiles(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*model.ExamProfile)
	}{
		{name: "calc param", mutate: func(p *model.ExamProfile) { p.CalculationParam = "net_cps" }},
		{name: "word method", mutate: func(p *model.ExamProfile) { p.WordMethod = "six_char" }},
		{name: "classification", mutate: func(p *model.ExamProfile) { p.ErrorClassification = "strict" }},
		{name: "penalty method", mutate: func(p *model.ExamProfile) { p.Penalty.Method = "double" }},
		{name: "negative deduction", mutate: func(p *model.ExamProfile) {
			p.Penalty = model.Penalty{Method: model.PenaltyPerMistake, Deduction: -1}
		}},
		{name: "score mode", mutate: func(p *model.ExamProfile) { p.ScoreMode = "curved" }},
		{name: "ignored limit", mutate: func(p *model.ExamProfile) { p.IgnoredErrorLimitPct = 120 }},
		{name: "eligibility type", mutate: func(p *model.ExamProfile) {
			p.MinEligibility = &model.Eligibility{Type: "fixed_cps", Value: 10}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			profile := sscProfile()
			tc.mutate(&profile)
			if err := Validate(profile); err == nil {
				t.Fatalf("expected validation error")
			}
			if _, err := Calculate(profile, model.RawStats{}); err == nil {
				t.Fatalf("expected calculate to fail fast")
			}
		})
	}
}

func TestCalculateRejectsInvalidStats(t *testing.T) {
	stats := model.RawStats{TotalKeystrokes: 10, CorrectKeystrokes: 20, TimeTakenSeconds: 5}
	if _, err := Calculate(sscProfile(), stats); err == nil {
		t.Fatalf("expected error for correct > total keystrokes")
	}
}
