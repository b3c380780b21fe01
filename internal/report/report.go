// Package report renders attempt statistics and summaries.
package report

import (
	"context"

	"github.com/verte-zerg/typegrade/internal/model"
	"github.com/verte-zerg/typegrade/internal/store"
)

// Report contains precomputed data for results rendering.
type Report struct {
	Attempts   []model.AttemptRecord
	WordErrors []model.WordErrorAggregate
}

// Build loads and prepares data for results rendering.
func Build(ctx context.Context, st *store.Store, filter model.ResultsFilter) (Report, error) {
	attempts, err := st.ListAttempts(ctx, filter)
	if err != nil {
		return Report{}, err
	}
	if filter.Last > 0 && len(attempts) > filter.Last {
		attempts = attempts[len(attempts)-filter.Last:]
	}
	window := filter.CurveWindow
	if window <= 0 {
		window = len(attempts)
	}
	wordErrors, err := st.AggregateWordErrors(ctx, window, filter.ProfileID)
	if err != nil {
		return Report{}, err
	}
	return Report{Attempts: attempts, WordErrors: wordErrors}, nil
}
