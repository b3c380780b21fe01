// Package report renders attempt statistics and summaries.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/verte-zerg/typegrade/internal/align"
	"github.com/verte-zerg/typegrade/internal/model"
)

// RenderResult prints one attempt verdict.
func RenderResult(w io.Writer, profile model.ExamProfile, stats model.RawStats, result model.ExamResult) error {
	unit := "wpm"
	if profile.CalculationParam != model.CalcNetWPM {
		unit = "strokes/hour"
	}
	lines := []string{
		fmt.Sprintf("Profile: %s (%s)", profile.Name, profile.ID),
		fmt.Sprintf("Gross speed: %.2f %s", result.GrossSpeed, unit),
		fmt.Sprintf("Net speed: %.2f %s", result.NetSpeed, unit),
		fmt.Sprintf("Net WPM: %.2f", result.NetWPM),
		fmt.Sprintf("Accuracy: %.2f%%", result.AccuracyPct),
		fmt.Sprintf("Errors: %.2f total, %.2f ignored, %.2f chargeable", result.TotalErrors, result.IgnoredErrors, result.ChargeableErrors),
		fmt.Sprintf("Penalty: %.2f", result.PenaltyAmount),
		fmt.Sprintf("Keystrokes: %d (%d backspaces)", stats.TotalKeystrokes, stats.BackspaceCount),
		fmt.Sprintf("Time: %.1fs", stats.TimeTakenSeconds),
		fmt.Sprintf("Qualified: %s", qualificationLabel(result)),
		fmt.Sprintf("Score: %s", result.FormattedScore),
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func qualificationLabel(result model.ExamResult) string {
	if result.Qualified {
		return "yes"
	}
	switch {
	case result.BelowMinKeystrokes:
		return "no (below minimum keystrokes)"
	case result.BelowEligibility:
		return "no (below eligibility threshold)"
	default:
		return "no"
	}
}

// RenderSummary prints a summary block for attempts.
func RenderSummary(w io.Writer, attempts []model.AttemptRecord) error {
	if len(attempts) == 0 {
		_, err := fmt.Fprintln(w, "No attempts found.")
		return err
	}
	var totalWPM, totalAcc float64
	bestWPM := 0.0
	qualified := 0
	for _, a := range attempts {
		totalWPM += a.Result.NetWPM
		totalAcc += a.Result.AccuracyPct
		if a.Result.NetWPM > bestWPM {
			bestWPM = a.Result.NetWPM
		}
		if a.Result.Qualified {
			qualified++
		}
	}
	count := float64(len(attempts))
	if _, err := fmt.Fprintln(w, "Summary"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Attempts: %d\n", len(attempts)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Avg net WPM: %.2f\n", totalWPM/count); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Best net WPM: %.2f\n", bestWPM); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Avg accuracy: %.2f%%\n", totalAcc/count); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Qualified: %d/%d\n", qualified, len(attempts)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}
	return nil
}

// RenderCurves prints net WPM and accuracy trends as sparklines over a
// moving-average window.
func RenderCurves(w io.Writer, attempts []model.AttemptRecord, window, totalWidth int) error {
	if len(attempts) < 2 {
		return nil
	}
	wpms := make([]float64, len(attempts))
	accs := make([]float64, len(attempts))
	for i, a := range attempts {
		wpms[i] = a.Result.NetWPM
		accs[i] = a.Result.AccuracyPct
	}
	wpms = MovingAverage(wpms, window)
	accs = MovingAverage(accs, window)
	if totalWidth > 0 && len(wpms) > totalWidth-12 {
		keep := totalWidth - 12
		if keep < 1 {
			keep = 1
		}
		wpms = wpms[len(wpms)-keep:]
		accs = accs[len(accs)-keep:]
	}
	if _, err := fmt.Fprintln(w, "Trends"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Net WPM  %s (%.2f..%.2f)\n", Sparkline(wpms), minOf(wpms), maxOf(wpms)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Accuracy %s (%.2f..%.2f)\n", Sparkline(accs), minOf(accs), maxOf(accs)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}
	return nil
}

// RenderAttemptTable prints one row per attempt.
func RenderAttemptTable(w io.Writer, attempts []model.AttemptRecord) error {
	if len(attempts) == 0 {
		return nil
	}
	headers := []string{"ID", "Profile", "Ended", "Net WPM", "Accuracy", "Errors", "Qualified", "Score"}
	rows := make([][]string, 0, len(attempts))
	for _, a := range attempts {
		rows = append(rows, []string{
			fmt.Sprintf("%d", a.AttemptID),
			a.ProfileID,
			a.EndedAt.Format("2006-01-02 15:04"),
			fmt.Sprintf("%.2f", a.Result.NetWPM),
			fmt.Sprintf("%.2f%%", a.Result.AccuracyPct),
			fmt.Sprintf("%.2f", a.Result.TotalErrors),
			qualifiedShort(a.Result.Qualified),
			a.Result.FormattedScore,
		})
	}
	rightAlign := map[int]bool{0: true, 3: true, 4: true, 5: true, 7: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func qualifiedShort(q bool) string {
	if q {
		return "yes"
	}
	return "no"
}

// RenderWordErrorTable prints reference words sorted by how often they
// were mistyped or skipped.
func RenderWordErrorTable(w io.Writer, aggs []model.WordErrorAggregate) error {
	if len(aggs) == 0 {
		_, err := fmt.Fprintln(w, "No word errors found.")
		return err
	}
	sorted := make([]model.WordErrorAggregate, len(aggs))
	copy(sorted, aggs)
	sort.Slice(sorted, func(i, j int) bool {
		ti := sorted[i].Mismatches + sorted[i].Missing
		tj := sorted[j].Mismatches + sorted[j].Missing
		if ti == tj {
			return sorted[i].Reference < sorted[j].Reference
		}
		return ti > tj
	})

	if _, err := fmt.Fprintln(w, "Most Missed Words"); err != nil {
		return err
	}
	headers := []string{"Word", "Mistyped", "Skipped"}
	rows := make([][]string, 0, len(sorted))
	for _, agg := range sorted {
		rows = append(rows, []string{
			agg.Reference,
			fmt.Sprintf("%d", agg.Mismatches),
			fmt.Sprintf("%d", agg.Missing),
		})
	}
	rightAlign := map[int]bool{1: true, 2: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderAlignment prints the word-level comparison of one attempt.
func RenderAlignment(w io.Writer, entries []align.Entry) error {
	headers := []string{"#", "Status", "Expected", "Typed"}
	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			string(e.Status),
			e.Reference,
			e.Typed,
		})
	}
	rightAlign := map[int]bool{0: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func minOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	out := values[0]
	for _, v := range values[1:] {
		if v < out {
			out = v
		}
	}
	return out
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	out := values[0]
	for _, v := range values[1:] {
		if v > out {
			out = v
		}
	}
	return out
}
