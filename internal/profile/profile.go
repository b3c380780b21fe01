// Package profile loads exam profile definitions.
package profile

import (
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/typegrade/internal/model"
	"github.com/verte-zerg/typegrade/internal/rules"
)

// File is the TOML shape of a profile definitions file.
type File struct {
	Profiles map[string]Entry `toml:"profiles"`
}

// Entry is one exam profile definition. Optional fields fall back to
// the defaults applied in toProfile.
type Entry struct {
	Name                 string        `toml:"name"`
	CalculationParam     string        `toml:"calculation_param"`
	WordMethod           string        `toml:"word_method"`
	ErrorClassification  string        `toml:"error_classification"`
	IgnoredErrorLimitPct float64       `toml:"ignored_error_limit_pct"`
	Penalty              *PenaltyEntry `toml:"penalty"`
	Eligibility          *EligEntry    `toml:"eligibility"`
	MinKeystrokes        int           `toml:"min_keystrokes"`
	ScoreMode            string        `toml:"score_mode"`
	HalfMistakeWeight    float64       `toml:"half_mistake_weight"`
	Backspace            string        `toml:"backspace"`
	CompulsoryCorrect    bool          `toml:"compulsory_correct"`
	Highlight            string        `toml:"highlight"`
	DurationSeconds      int           `toml:"duration_seconds"`
	Lang                 string        `toml:"lang"`
	Layout               string        `toml:"layout"`
}

// PenaltyEntry maps the penalty table.
type PenaltyEntry struct {
	Method    string  `toml:"method"`
	Deduction float64 `toml:"deduction"`
}

// EligEntry maps the minimum-eligibility table.
type EligEntry struct {
	Type  string  `toml:"type"`
	Value float64 `toml:"value"`
}

// Load reads and validates profiles from a TOML file. A missing file is
// not an error; the built-in presets remain available.
func Load(path string) (map[string]model.ExamProfile, error) {
	profiles := Presets()
	if path == "" {
		return profiles, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return profiles, nil
		}
		return nil, fmt.Errorf("failed to stat profiles: %w", err)
	}
	var file File
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("failed to decode profiles: %w", err)
	}
	for id, entry := range file.Profiles {
		p := entry.toProfile(id)
		if err := rules.Validate(p); err != nil {
			return nil, err
		}
		profiles[id] = p
	}
	return profiles, nil
}

// IDs returns the sorted profile identifiers.
func IDs(profiles map[string]model.ExamProfile) []string {
	ids := make([]string, 0, len(profiles))
	for id := range profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Presets returns the built-in exam profiles keyed by ID.
func Presets() map[string]model.ExamProfile {
	presets := []model.ExamProfile{
		{
			ID:                   "ssc",
			Name:                 "SSC-style net WPM test",
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
		},
		{
			ID:                   "kdph",
			Name:                 "Key-depressions-per-hour qualifier",
			CalculationParam:     model.CalcGrossKDPH,
			WordMethod:           model.WordFiveChar,
			ErrorClassification:  model.ErrorsSimple,
			IgnoredErrorLimitPct: 3,
			Penalty:              model.Penalty{Method: model.PenaltyPerMistake, Deduction: 1},
			MinEligibility:       &model.Eligibility{Type: model.EligibilityKDPH, Value: 8000},
			MinKeystrokes:        1000,
			ScoreMode:            model.ScoreQualifying,
			Backspace:            model.BackspaceOneWord,
			Highlight:            model.HighlightWord,
			DurationSeconds:      600,
			Lang:                 "en",
		},
		{
			ID:                   "drill",
			Name:                 "Practice drill",
			CalculationParam:     model.CalcNetWPM,
			WordMethod:           model.WordActual,
			ErrorClassification:  model.ErrorsFullHalf,
			IgnoredErrorLimitPct: 0,
			Penalty:              model.Penalty{Method: model.PenaltyNone},
			ScoreMode:            model.ScoreDirect,
			Backspace:            model.BackspaceFull,
			Highlight:            model.HighlightChar,
			DurationSeconds:      60,
			Lang:                 "en",
		},
	}
	out := make(map[string]model.ExamProfile, len(presets))
	for _, p := range presets {
		out[p.ID] = p
	}
	return out
}

func (e Entry) toProfile(id string) model.ExamProfile {
	p := model.ExamProfile{
		ID:                   id,
		Name:                 e.Name,
		CalculationParam:     model.CalculationParam(e.CalculationParam),
		WordMethod:           model.WordMethod(e.WordMethod),
		ErrorClassification:  model.ErrorClassification(e.ErrorClassification),
		IgnoredErrorLimitPct: e.IgnoredErrorLimitPct,
		Penalty:              model.Penalty{Method: model.PenaltyNone},
		MinKeystrokes:        e.MinKeystrokes,
		ScoreMode:            model.ScoreMode(e.ScoreMode),
		HalfMistakeWeight:    e.HalfMistakeWeight,
		Backspace:            model.BackspacePolicy(e.Backspace),
		CompulsoryCorrect:    e.CompulsoryCorrect,
		Highlight:            model.HighlightMode(e.Highlight),
		DurationSeconds:      e.DurationSeconds,
		Lang:                 e.Lang,
		Layout:               e.Layout,
	}
	if e.Penalty != nil {
		p.Penalty = model.Penalty{Method: model.PenaltyMethod(e.Penalty.Method), Deduction: e.Penalty.Deduction}
	}
	if e.Eligibility != nil {
		p.MinEligibility = &model.Eligibility{Type: model.EligibilityType(e.Eligibility.Type), Value: e.Eligibility.Value}
	}
	if p.Name == "" {
		p.Name = id
	}
	if p.WordMethod == "" {
		p.WordMethod = model.WordFiveChar
	}
	if p.ErrorClassification == "" {
		p.ErrorClassification = model.ErrorsFullHalf
	}
	if p.ScoreMode == "" {
		p.ScoreMode = model.ScoreDirect
	}
	if p.Backspace == "" {
		p.Backspace = model.BackspaceFull
	}
	if p.Highlight == "" {
		p.Highlight = model.HighlightChar
	}
	if p.Lang == "" {
		p.Lang = "en"
	}
	return p
}
