package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/typegrade/internal/model"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "typegrade.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func sampleRecord(i int) model.AttemptRecord {
	start := time.Unix(0, 0).Add(time.Duration(i) * time.Hour)
	end := start.Add(15 * time.Minute)
	return model.AttemptRecord{
		ProfileID:  "ssc",
		Lang:       "en",
		StartedAt:  start,
		EndedAt:    end,
		Keystrokes: 2000 + i,
		Backspaces: 3,
		DurationMs: end.Sub(start).Milliseconds(),
		Result: model.ExamResult{
			GrossSpeed:     26.67,
			NetSpeed:       26.67,
			NetWPM:         26.67,
			AccuracyPct:    99.0,
			TotalErrors:    4,
			IgnoredErrors:  4,
			Qualified:      true,
			Score:          26.67,
			FormattedScore: "26.67",
		},
	}
}

func TestInsertAndListAttempts(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := st.InsertAttempt(ctx, sampleRecord(i), []model.WordError{
			{Position: 1, Reference: "quick", Typed: "quack", Status: "mismatch"},
			{Position: 4, Reference: "lazy", Status: "missing"},
		})
		if err != nil {
			t.Fatalf("insert attempt: %v", err)
		}
		ids = append(ids, id)
	}

	attempts, err := st.ListAttempts(ctx, model.ResultsFilter{ProfileID: "ssc"})
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(attempts))
	}
	if attempts[0].AttemptID != ids[0] || attempts[2].AttemptID != ids[2] {
		t.Fatalf("unexpected ordering: %+v", attempts)
	}
	got := attempts[0]
	if got.Result.NetWPM != 26.67 || !got.Result.Qualified {
		t.Fatalf("result round trip failed: %+v", got.Result)
	}
	if !got.StartedAt.Equal(time.Unix(0, 0)) {
		t.Fatalf("started at = %v", got.StartedAt)
	}
	if got.Result.FormattedScore != "26.67" {
		t.Fatalf("formatted score = %q", got.Result.FormattedScore)
	}
}

func TestListAttemptsFilters(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	rec := sampleRecord(0)
	if _, err := st.InsertAttempt(ctx, rec, nil); err != nil {
		t.Fatalf("insert attempt: %v", err)
	}
	other := sampleRecord(1)
	other.ProfileID = "kdph"
	other.Lang = "hi"
	if _, err := st.InsertAttempt(ctx, other, nil); err != nil {
		t.Fatalf("insert attempt: %v", err)
	}

	byProfile, err := st.ListAttempts(ctx, model.ResultsFilter{ProfileID: "kdph"})
	if err != nil {
		t.Fatalf("list by profile: %v", err)
	}
	if len(byProfile) != 1 || byProfile[0].Lang != "hi" {
		t.Fatalf("profile filter failed: %+v", byProfile)
	}

	since := time.Unix(0, 0).Add(30 * time.Minute)
	recent, err := st.ListAttempts(ctx, model.ResultsFilter{Since: &since})
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(recent) != 1 || recent[0].ProfileID != "kdph" {
		t.Fatalf("since filter failed: %+v", recent)
	}
}

func TestWordErrors(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	id, err := st.InsertAttempt(ctx, sampleRecord(0), []model.WordError{
		{Position: 0, Reference: "the", Typed: "teh", Status: "mismatch"},
		{Position: 2, Reference: "fox", Status: "missing"},
	})
	if err != nil {
		t.Fatalf("insert attempt: %v", err)
	}
	if _, err := st.InsertAttempt(ctx, sampleRecord(1), []model.WordError{
		{Position: 0, Reference: "the", Typed: "th", Status: "mismatch"},
	}); err != nil {
		t.Fatalf("insert attempt: %v", err)
	}

	wordErrors, err := st.ListWordErrors(ctx, id)
	if err != nil {
		t.Fatalf("list word errors: %v", err)
	}
	if len(wordErrors) != 2 || wordErrors[0].Typed != "teh" {
		t.Fatalf("unexpected word errors: %+v", wordErrors)
	}

	aggs, err := st.AggregateWordErrors(ctx, 10, "")
	if err != nil {
		t.Fatalf("aggregate word errors: %v", err)
	}
	byWord := map[string]model.WordErrorAggregate{}
	for _, agg := range aggs {
		byWord[agg.Reference] = agg
	}
	if byWord["the"].Mismatches != 2 {
		t.Fatalf("mismatch aggregate = %+v", byWord["the"])
	}
	if byWord["fox"].Missing != 1 {
		t.Fatalf("missing aggregate = %+v", byWord["fox"])
	}
}
