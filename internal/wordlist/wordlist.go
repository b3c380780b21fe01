// Package wordlist loads word lists from files.
package wordlist

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/verte-zerg/typegrade/internal/model"
)

// LoadWords reads one word per line from the provided file path.
func LoadWords(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only word list.
			_ = cerr
		}
	}()

	var words []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("word list is empty")
	}
	return words, nil
}

// MissedWords selects the most frequently missed reference words from
// aggregates, lowercased for generator weighting. Top limits the set
// size; zero or negative keeps every missed word.
func MissedWords(aggs []model.WordErrorAggregate, top int) map[string]struct{} {
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
	out := map[string]struct{}{}
	for _, agg := range sorted {
		if agg.Mismatches+agg.Missing == 0 {
			continue
		}
		out[strings.ToLower(agg.Reference)] = struct{}{}
		if top > 0 && len(out) >= top {
			break
		}
	}
	return out
}
