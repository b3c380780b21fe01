// Package rules converts attempt telemetry into an exam verdict.
package rules

import (
	"fmt"
	"math"

	"github.com/verte-zerg/typegrade/internal/model"
)

const (
	// Duration floor in minutes, applied so an instantly finished
	// attempt divides by a small positive value instead of zero.
	minDurationMinutes = 0.001

	strokesPerWord      = 5.0
	defaultHalfWeight   = 0.5
	minutesPerHour      = 60.0
	qualifyingFullMarks = 100.0
)

// Validate checks an exam profile for malformed configuration. A wrong
// default would silently change every candidate's score, so unknown or
// inconsistent values fail fast instead of falling back.
func Validate(p model.ExamProfile) error {
	switch p.CalculationParam {
	case model.CalcNetWPM, model.CalcGrossKDPH, model.CalcGrossKPH:
	default:
		return fmt.Errorf("profile %q: unknown calculation param %q", p.ID, p.CalculationParam)
	}
	switch p.WordMethod {
	case model.WordFiveChar, model.WordActual:
	default:
		return fmt.Errorf("profile %q: unknown word calculation method %q", p.ID, p.WordMethod)
	}
	switch p.ErrorClassification {
	case model.ErrorsSimple, model.ErrorsFullHalf, model.ErrorsAdvanced:
	default:
		return fmt.Errorf("profile %q: unknown error classification %q", p.ID, p.ErrorClassification)
	}
	switch p.Penalty.Method {
	case model.PenaltyNone:
	case model.PenaltyPerMistake, model.PenaltyPerFull, model.PenaltyFactor:
		if p.Penalty.Deduction < 0 {
			return fmt.Errorf("profile %q: negative deduction value", p.ID)
		}
	default:
		return fmt.Errorf("profile %q: unknown penalty method %q", p.ID, p.Penalty.Method)
	}
	switch p.ScoreMode {
	case model.ScoreDirect, model.ScoreQualifying, model.ScoreMarks:
	default:
		return fmt.Errorf("profile %q: unknown score mode %q", p.ID, p.ScoreMode)
	}
	if p.MinEligibility != nil {
		switch p.MinEligibility.Type {
		case model.EligibilityWPM, model.EligibilityKDPH:
		default:
			return fmt.Errorf("profile %q: unknown eligibility type %q", p.ID, p.MinEligibility.Type)
		}
		if p.MinEligibility.Value < 0 {
			return fmt.Errorf("profile %q: negative eligibility value", p.ID)
		}
	}
	if p.IgnoredErrorLimitPct < 0 || p.IgnoredErrorLimitPct > 100 {
		return fmt.Errorf("profile %q: ignored error limit %.2f out of range [0,100]", p.ID, p.IgnoredErrorLimitPct)
	}
	if p.MinKeystrokes < 0 {
		return fmt.Errorf("profile %q: negative minimum keystrokes", p.ID)
	}
	if p.HalfMistakeWeight < 0 {
		return fmt.Errorf("profile %q: negative half-mistake weight", p.ID)
	}
	return nil
}

// Calculate applies an exam profile to frozen attempt telemetry and
// produces the authoritative result. Pure and exactly reproducible for
// the same inputs; internal math keeps full float precision and rounds
// only at the output boundary. Degenerate telemetry (zero duration, zero
// keystrokes) yields defined neutral values, never an error.
func Calculate(p model.ExamProfile, s model.RawStats) (model.ExamResult, error) {
	if err := Validate(p); err != nil {
		return model.ExamResult{}, err
	}
	if err := validateStats(s); err != nil {
		return model.ExamResult{}, err
	}

	durationMinutes := s.TimeTakenSeconds / 60.0
	if durationMinutes < minDurationMinutes {
		durationMinutes = minDurationMinutes
	}

	grossWords := float64(s.TotalWordsTyped)
	if p.WordMethod == model.WordFiveChar {
		grossWords = float64(s.TotalKeystrokes) / strokesPerWord
	}

	grossSpeed := grossWords / durationMinutes
	if strokeRate(p.CalculationParam) {
		grossSpeed = float64(s.TotalKeystrokes) / durationMinutes * minutesPerHour
	}

	totalErrors := weightedErrors(p, s)

	maxIgnored := math.Floor(grossWords * p.IgnoredErrorLimitPct / 100.0)
	ignored := math.Min(totalErrors, maxIgnored)
	chargeable := totalErrors - ignored
	if chargeable < 0 {
		chargeable = 0
	}

	penalty := penaltyAmount(p, chargeable, durationMinutes)

	netSpeed := grossSpeed - penalty
	if netSpeed < 0 {
		netSpeed = 0
	}
	netWPM := netSpeed
	if strokeRate(p.CalculationParam) {
		netWPM = netSpeed / strokesPerWord / minutesPerHour
	}

	accuracy := 100.0
	if s.TotalKeystrokes > 0 {
		accuracy = (float64(s.TotalKeystrokes) - totalErrors*strokesPerWord) / float64(s.TotalKeystrokes) * 100.0
		if accuracy < 0 {
			accuracy = 0
		}
	}

	qualified := true
	belowKeystrokes := false
	belowEligibility := false
	if p.MinEligibility != nil && !meetsEligibility(*p.MinEligibility, netSpeed, netWPM, p.CalculationParam) {
		qualified = false
		belowEligibility = true
	}
	if p.MinKeystrokes > 0 && s.TotalKeystrokes < p.MinKeystrokes {
		qualified = false
		belowKeystrokes = true
	}

	var score float64
	switch p.ScoreMode {
	case model.ScoreMarks:
		score = netWPM
	case model.ScoreQualifying:
		if qualified {
			score = qualifyingFullMarks
		}
	default:
		score = netSpeed
	}

	result := model.ExamResult{
		GrossSpeed:         round2(grossSpeed),
		NetSpeed:           round2(netSpeed),
		NetWPM:             round2(netWPM),
		AccuracyPct:        round2(accuracy),
		TotalErrors:        round2(totalErrors),
		IgnoredErrors:      round2(ignored),
		ChargeableErrors:   round2(chargeable),
		PenaltyAmount:      round2(penalty),
		Qualified:          qualified,
		BelowMinKeystrokes: belowKeystrokes,
		BelowEligibility:   belowEligibility,
		Score:              round2(score),
	}
	result.FormattedScore = fmt.Sprintf("%.2f", result.Score)
	return result, nil
}

func validateStats(s model.RawStats) error {
	if s.TotalKeystrokes < 0 || s.CorrectKeystrokes < 0 || s.BackspaceCount < 0 ||
		s.TotalWordsTyped < 0 || s.FullMistakes < 0 || s.HalfMistakes < 0 {
		return fmt.Errorf("raw stats contain negative counts: %+v", s)
	}
	if s.CorrectKeystrokes > s.TotalKeystrokes {
		return fmt.Errorf("correct keystrokes %d exceed total %d", s.CorrectKeystrokes, s.TotalKeystrokes)
	}
	if s.TimeTakenSeconds < 0 {
		return fmt.Errorf("negative time taken: %f", s.TimeTakenSeconds)
	}
	return nil
}

func weightedErrors(p model.ExamProfile, s model.RawStats) float64 {
	switch p.ErrorClassification {
	case model.ErrorsSimple:
		// Every mistake weighs 1, so full_half never exceeds simple.
		return float64(s.FullMistakes + s.HalfMistakes)
	case model.ErrorsAdvanced:
		weight := p.HalfMistakeWeight
		if weight == 0 {
			weight = defaultHalfWeight
		}
		return float64(s.FullMistakes) + weight*float64(s.HalfMistakes)
	default:
		return float64(s.FullMistakes) + defaultHalfWeight*float64(s.HalfMistakes)
	}
}

// penaltyAmount converts chargeable errors into the gross-speed unit.
// Per-mistake methods deduct word-equivalents normalized by duration,
// scaled stroke-side by the 5:1 ratio when operating in stroke rates.
// The factor method deducts directly with no time normalization.
func penaltyAmount(p model.ExamProfile, chargeable, durationMinutes float64) float64 {
	switch p.Penalty.Method {
	case model.PenaltyPerMistake, model.PenaltyPerFull:
		deducted := chargeable * p.Penalty.Deduction / durationMinutes
		if strokeRate(p.CalculationParam) {
			deducted = chargeable * p.Penalty.Deduction * strokesPerWord / durationMinutes * minutesPerHour
		}
		return deducted
	case model.PenaltyFactor:
		return chargeable * p.Penalty.Deduction
	default:
		return 0
	}
}

func meetsEligibility(e model.Eligibility, netSpeed, netWPM float64, param model.CalculationParam) bool {
	switch e.Type {
	case model.EligibilityWPM:
		return netWPM >= e.Value
	default:
		netStrokeRate := netSpeed
		if !strokeRate(param) {
			netStrokeRate = netWPM * strokesPerWord * minutesPerHour
		}
		return netStrokeRate >= e.Value
	}
}

func strokeRate(param model.CalculationParam) bool {
	return param == model.CalcGrossKDPH || param == model.CalcGrossKPH
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
