// Package main provides the CLI entrypoint for typegrade.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/typegrade/internal/align"
	"github.com/verte-zerg/typegrade/internal/config"
	"github.com/verte-zerg/typegrade/internal/events"
	"github.com/verte-zerg/typegrade/internal/generator"
	"github.com/verte-zerg/typegrade/internal/layout"
	"github.com/verte-zerg/typegrade/internal/model"
	"github.com/verte-zerg/typegrade/internal/profile"
	"github.com/verte-zerg/typegrade/internal/report"
	"github.com/verte-zerg/typegrade/internal/resultsui"
	"github.com/verte-zerg/typegrade/internal/rules"
	"github.com/verte-zerg/typegrade/internal/session"
	"github.com/verte-zerg/typegrade/internal/store"
	"github.com/verte-zerg/typegrade/internal/tui"
	"github.com/verte-zerg/typegrade/internal/wordlist"
)

const (
	defaultProfile     = "drill"
	defaultLang        = "en"
	defaultWords       = 50
	defaultCaps        = 0.0
	defaultPunct       = 0.0
	defaultMissedTop   = 10
	defaultMissedBoost = 2.0
	defaultCurveWindow = 20
)

const defaultPunctSet = ".,!?;:\"'()-"

var (
	attemptProfile     string
	attemptLang        string
	attemptLayout      string
	attemptReference   string
	attemptWords       int
	attemptCaps        float64
	attemptPunct       float64
	attemptPunctSet    string
	attemptFocusMissed bool
	attemptMissedTop   int
	attemptMissedBoost float64

	gradeProfile    string
	gradeReference  string
	gradeTyped      string
	gradeDuration   float64
	gradeKeystrokes int
	gradeBackspaces int

	alignReference string
	alignTyped     string

	replayProfile   string
	replayReference string
	replayLayout    string
	replaySave      bool

	resultsProfile     string
	resultsLang        string
	resultsSince       string
	resultsLast        int
	resultsCurveWindow int
	resultsPlain       bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "typegrade",
		Short:         "Typing exam trainer and grader",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runAttemptCmd,
	}

	rootCmd.Flags().StringVar(&attemptProfile, "profile", defaultProfile, "exam profile id")
	rootCmd.Flags().StringVar(&attemptLang, "lang", defaultLang, "language code")
	rootCmd.Flags().StringVar(&attemptLayout, "layout", "", "keyboard layout name")
	rootCmd.Flags().StringVar(&attemptReference, "reference", "", "reference passage file (default: generated)")
	rootCmd.Flags().IntVar(&attemptWords, "words", defaultWords, "words per generated passage")
	rootCmd.Flags().Float64Var(&attemptCaps, "caps", defaultCaps, "probability of capitalized first letter (0-1)")
	rootCmd.Flags().Float64Var(&attemptPunct, "punct", defaultPunct, "punctuation probability per word (0-1)")
	rootCmd.Flags().StringVar(&attemptPunctSet, "punct-set", defaultPunctSet, "punctuation set")
	rootCmd.Flags().BoolVar(&attemptFocusMissed, "focus-missed", false, "bias generated passages toward recently missed words")
	rootCmd.Flags().IntVar(&attemptMissedTop, "missed-top", defaultMissedTop, "number of missed words to focus on")
	rootCmd.Flags().Float64Var(&attemptMissedBoost, "missed-boost", defaultMissedBoost, "weight factor for missed words")

	rootCmd.AddCommand(newGradeCmd())
	rootCmd.AddCommand(newAlignCmd())
	rootCmd.AddCommand(newReplayCmd())
	rootCmd.AddCommand(newResultsCmd())
	rootCmd.AddCommand(newProfilesCmd())
	rootCmd.AddCommand(newLayoutsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func runAttemptCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "profile", &attemptProfile, fileCfg.Exam.Profile)
	applyStringConfig(cmd, "lang", &attemptLang, fileCfg.Exam.Lang)
	applyStringConfig(cmd, "layout", &attemptLayout, fileCfg.Exam.Layout)
	applyStringConfig(cmd, "reference", &attemptReference, fileCfg.Exam.Reference)
	applyIntConfig(cmd, "words", &attemptWords, fileCfg.Exam.Words)

	if err := validateAttemptFlags(); err != nil {
		return err
	}

	prof, err := selectProfile(attemptProfile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("lang") || fileCfg.Exam.Lang != nil || prof.Lang == "" {
		prof.Lang = attemptLang
	}
	if cmd.Flags().Changed("layout") || fileCfg.Exam.Layout != nil {
		prof.Layout = attemptLayout
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	reference, err := resolveReference(context.Background(), st, prof)
	if err != nil {
		return err
	}

	opts, err := sessionOptions(prof)
	if err != nil {
		return err
	}
	ctrl, err := session.New(prof, reference, opts...)
	if err != nil {
		return err
	}

	program := tea.NewProgram(tui.NewModel(ctrl, st), tea.WithAltScreen(), tea.WithReportFocus())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func validateAttemptFlags() error {
	if attemptWords <= 0 {
		return fmt.Errorf("--words must be > 0")
	}
	if attemptCaps < 0 || attemptCaps > 1 {
		return fmt.Errorf("--caps must be between 0 and 1")
	}
	if attemptPunct < 0 || attemptPunct > 1 {
		return fmt.Errorf("--punct must be between 0 and 1")
	}
	if attemptMissedTop < 0 {
		return fmt.Errorf("--missed-top must be >= 0")
	}
	if attemptMissedBoost < 0 {
		return fmt.Errorf("--missed-boost must be >= 0")
	}
	return nil
}

func selectProfile(id string) (model.ExamProfile, error) {
	profiles, err := profile.Load(config.DefaultProfilesPath())
	if err != nil {
		return model.ExamProfile{}, fmt.Errorf("failed to load profiles: %w", err)
	}
	prof, ok := profiles[id]
	if !ok {
		return model.ExamProfile{}, fmt.Errorf("unknown profile %q (available: %s)", id, strings.Join(profile.IDs(profiles), ", "))
	}
	return prof, nil
}

func sessionOptions(prof model.ExamProfile) ([]session.Option, error) {
	if prof.Layout == "" {
		return nil, nil
	}
	layoutMap, err := layout.Load(layout.PathFor(config.DefaultLayoutDir(), prof.Layout))
	if err != nil {
		return nil, fmt.Errorf("failed to load layout %q: %w", prof.Layout, err)
	}
	return []session.Option{session.WithLayout(layoutMap)}, nil
}

// resolveReference reads the configured passage file, or generates one
// from the language word list, biased toward missed words on request.
func resolveReference(ctx context.Context, st *store.Store, prof model.ExamProfile) (string, error) {
	if attemptReference != "" {
		data, err := os.ReadFile(attemptReference)
		if err != nil {
			return "", fmt.Errorf("failed to read reference file: %w", err)
		}
		reference := normalizeReference(string(data))
		if reference == "" {
			return "", fmt.Errorf("reference file %s is empty", attemptReference)
		}
		return reference, nil
	}

	wordPath := config.DefaultWordListPath(prof.Lang)
	words, err := wordlist.LoadWords(wordPath)
	if err != nil {
		return "", wordListLoadError(prof.Lang, wordPath, err)
	}

	gen := generator.New()
	punctRunes := []rune(attemptPunctSet)
	if !attemptFocusMissed {
		return gen.Passage(words, attemptWords, attemptCaps, attemptPunct, punctRunes), nil
	}

	aggs, err := st.AggregateWordErrors(ctx, defaultCurveWindow, prof.ID)
	if err != nil {
		logErrf("failed to load missed words: %v\n", err)
		return gen.Passage(words, attemptWords, attemptCaps, attemptPunct, punctRunes), nil
	}
	missed := wordlist.MissedWords(aggs, attemptMissedTop)
	if len(missed) == 0 {
		logErrln("no missed-word stats yet; using normal generator")
		return gen.Passage(words, attemptWords, attemptCaps, attemptPunct, punctRunes), nil
	}
	return gen.WeightedPassage(words, attemptWords, attemptCaps, attemptPunct, punctRunes, missed, attemptMissedBoost), nil
}

func normalizeReference(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func newGradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade a typed transcript against a reference passage",
		Args:  cobra.NoArgs,
		RunE:  runGradeCmd,
	}
	cmd.Flags().StringVar(&gradeProfile, "profile", defaultProfile, "exam profile id")
	cmd.Flags().StringVar(&gradeReference, "reference", "", "reference passage file (required)")
	cmd.Flags().StringVar(&gradeTyped, "typed", "", "typed transcript file (required)")
	cmd.Flags().Float64Var(&gradeDuration, "duration", 0, "time taken in seconds (required)")
	cmd.Flags().IntVar(&gradeKeystrokes, "keystrokes", 0, "total keystrokes (default: typed length)")
	cmd.Flags().IntVar(&gradeBackspaces, "backspaces", 0, "backspace count")
	return cmd
}

func runGradeCmd(cmd *cobra.Command, _ []string) error {
	if gradeReference == "" || gradeTyped == "" {
		return fmt.Errorf("--reference and --typed are required")
	}
	if gradeDuration <= 0 {
		return fmt.Errorf("--duration must be > 0")
	}
	prof, err := selectProfile(gradeProfile)
	if err != nil {
		return err
	}
	reference, err := readPassage(gradeReference)
	if err != nil {
		return err
	}
	typed, err := readPassage(gradeTyped)
	if err != nil {
		return err
	}

	entries := align.Words(strings.Fields(reference), strings.Fields(typed))
	full, half := align.Tally(entries)
	keystrokes := gradeKeystrokes
	if keystrokes <= 0 {
		keystrokes = len([]rune(typed))
	}
	stats := model.RawStats{
		TotalKeystrokes:  keystrokes,
		BackspaceCount:   gradeBackspaces,
		TotalWordsTyped:  len(strings.Fields(typed)),
		FullMistakes:     full,
		HalfMistakes:     half,
		TimeTakenSeconds: gradeDuration,
	}
	result, err := rules.Calculate(prof, stats)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := report.RenderResult(out, prof, stats, result); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(out); err != nil {
		return err
	}
	return report.RenderAlignment(out, entries)
}

func newAlignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "align",
		Short: "Show the word alignment of a typed transcript",
		Args:  cobra.NoArgs,
		RunE:  runAlignCmd,
	}
	cmd.Flags().StringVar(&alignReference, "reference", "", "reference passage file (required)")
	cmd.Flags().StringVar(&alignTyped, "typed", "", "typed transcript file (required)")
	return cmd
}

func runAlignCmd(cmd *cobra.Command, _ []string) error {
	if alignReference == "" || alignTyped == "" {
		return fmt.Errorf("--reference and --typed are required")
	}
	reference, err := readPassage(alignReference)
	if err != nil {
		return err
	}
	typed, err := readPassage(alignTyped)
	if err != nil {
		return err
	}
	entries := align.Words(strings.Fields(reference), strings.Fields(typed))
	return report.RenderAlignment(cmd.OutOrStdout(), entries)
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <events.jsonl>",
		Short: "Replay a recorded key event log and grade it",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplayCmd,
	}
	cmd.Flags().StringVar(&replayProfile, "profile", defaultProfile, "exam profile id")
	cmd.Flags().StringVar(&replayReference, "reference", "", "reference passage file (required)")
	cmd.Flags().StringVar(&replayLayout, "layout", "", "keyboard layout name")
	cmd.Flags().BoolVar(&replaySave, "save", false, "store the replayed attempt")
	return cmd
}

func runReplayCmd(cmd *cobra.Command, args []string) error {
	if replayReference == "" {
		return fmt.Errorf("--reference is required")
	}
	prof, err := selectProfile(replayProfile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("layout") {
		prof.Layout = replayLayout
	}
	reference, err := readPassage(replayReference)
	if err != nil {
		return err
	}
	timed, err := events.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load event log: %w", err)
	}

	clock := events.NewClock()
	opts := []session.Option{session.WithClock(clock.Now)}
	layoutOpts, err := sessionOptions(prof)
	if err != nil {
		return err
	}
	opts = append(opts, layoutOpts...)
	ctrl, err := session.New(prof, reference, opts...)
	if err != nil {
		return err
	}

	for _, ev := range timed {
		clock.SetMs(ev.AtMs)
		ctrl.HandleKey(ev.KeyEvent())
	}
	result, err := ctrl.Finalize()
	if err != nil {
		return err
	}
	stats := ctrl.Stats()

	if replaySave {
		if err := saveReplay(context.Background(), prof, ctrl, result, stats); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if err := report.RenderResult(out, prof, stats, result); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(out); err != nil {
		return err
	}
	return report.RenderAlignment(out, ctrl.Entries())
}

func saveReplay(ctx context.Context, prof model.ExamProfile, ctrl *session.Controller, result model.ExamResult, stats model.RawStats) error {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	endedAt := time.Now()
	rec := model.AttemptRecord{
		ProfileID:  prof.ID,
		Lang:       prof.Lang,
		StartedAt:  endedAt.Add(-time.Duration(stats.TimeTakenSeconds * float64(time.Second))),
		EndedAt:    endedAt,
		Keystrokes: stats.TotalKeystrokes,
		Backspaces: stats.BackspaceCount,
		DurationMs: int64(stats.TimeTakenSeconds * 1000),
		Result:     result,
	}
	if _, err := st.InsertAttempt(ctx, rec, tui.WordErrors(ctrl.Entries())); err != nil {
		return fmt.Errorf("failed to save attempt: %w", err)
	}
	return nil
}

func newResultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Browse stored attempt results",
		RunE:  runResultsCmd,
	}
	cmd.Flags().StringVar(&resultsProfile, "profile", "", "profile filter")
	cmd.Flags().StringVar(&resultsLang, "lang", "", "language filter")
	cmd.Flags().StringVar(&resultsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&resultsLast, "last", 0, "limit to last N attempts")
	cmd.Flags().IntVar(&resultsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().BoolVar(&resultsPlain, "plain", false, "print a plain report instead of the TUI")
	return cmd
}

func runResultsCmd(cmd *cobra.Command, _ []string) error {
	var sinceTime *time.Time
	if resultsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", resultsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	filter := model.ResultsFilter{
		ProfileID:   resultsProfile,
		Lang:        resultsLang,
		Since:       sinceTime,
		Last:        resultsLast,
		CurveWindow: resultsCurveWindow,
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	if resultsPlain {
		return printPlainResults(cmd, st, filter)
	}

	program := tea.NewProgram(resultsui.NewModel(st, filter), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run results TUI: %w", err)
	}
	return nil
}

func printPlainResults(cmd *cobra.Command, st *store.Store, filter model.ResultsFilter) error {
	rep, err := report.Build(cmd.Context(), st, filter)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := report.RenderSummary(out, rep.Attempts); err != nil {
		return err
	}
	if len(rep.Attempts) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(out); err != nil {
		return err
	}
	if err := report.RenderCurves(out, rep.Attempts, filter.CurveWindow, report.TerminalWidth()); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(out); err != nil {
		return err
	}
	if err := report.RenderAttemptTable(out, rep.Attempts); err != nil {
		return err
	}
	if len(rep.WordErrors) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(out); err != nil {
		return err
	}
	return report.RenderWordErrorTable(out, rep.WordErrors)
}

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List available exam profiles",
		Args:  cobra.NoArgs,
		RunE:  runProfilesCmd,
	}
}

func runProfilesCmd(cmd *cobra.Command, _ []string) error {
	profiles, err := profile.Load(config.DefaultProfilesPath())
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}
	ids := profile.IDs(profiles)
	sort.Strings(ids)
	out := cmd.OutOrStdout()
	for _, id := range ids {
		prof := profiles[id]
		line := fmt.Sprintf("%s\t%s\t%s/%s\tbackspace=%s\t%ds",
			id, prof.Name, prof.CalculationParam, prof.ScoreMode, prof.Backspace, prof.DurationSeconds)
		if _, err := fmt.Fprintln(out, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newLayoutsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layouts",
		Short: "List installed keyboard layouts",
		Args:  cobra.NoArgs,
		RunE:  runLayoutsCmd,
	}
}

func runLayoutsCmd(cmd *cobra.Command, _ []string) error {
	names, err := layout.List(config.DefaultLayoutDir())
	if err != nil {
		return fmt.Errorf("failed to read layout directory: %w", err)
	}
	if len(names) == 0 {
		logErrf("No layouts found. Add TOML layouts under %s\n", config.DefaultLayoutDir())
		return fmt.Errorf("no layouts found")
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func readPassage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	text := normalizeReference(string(data))
	if text == "" {
		return "", fmt.Errorf("file %s is empty", path)
	}
	return text, nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# typegrade configuration
# Uncomment a value to enable it. CLI flags override config values.

[exam]
# profile = %q          # Exam profile id (see: typegrade profiles)
# lang = %q                # Language code
# layout = "inscript"      # Keyboard layout name (see: typegrade layouts)
# reference = ""           # Reference passage file (default: generated)
# words = %d               # Words per generated passage
`,
		defaultProfile,
		defaultLang,
		defaultWords,
	)
}

func wordListLoadError(lang, path string, err error) error {
	lines := []string{
		fmt.Sprintf("failed to load word list: %v", err),
		fmt.Sprintf("expected word list at: %s", path),
		fmt.Sprintf("language %q not found", lang),
		fmt.Sprintf("Put one word per line at %s, or pass --reference <file>", path),
	}
	return fmt.Errorf("%s", strings.Join(lines, "\n"))
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
