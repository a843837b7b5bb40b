// Package scoring turns a completed questionnaire into a total score and a
// severity interpretation.
//
// ComputeTotal and LookupInterpretation are pure functions over immutable
// instrument definitions. Scorer wraps both behind a context-aware contract
// for the service layer.
package scoring

import (
	"fmt"
	"sort"

	"github.com/okian/moodscale/internal/domain/instrument"
)

// Responses maps an item id to the raw answer given by the respondent.
type Responses map[string]int

// Effective returns the contribution of raw once the reverse flag is applied.
func Effective(item instrument.Item, raw int) int {
	return item.Effective(raw)
}

// Validate checks that responses answers every declared item exactly once,
// names no undeclared item, and stays inside each item's range.
// Missing answers are never defaulted and out-of-range answers are never
// clamped. Only the first failing check is reported: missing, then
// undeclared, then out of range.
func Validate(in instrument.Instrument, responses Responses) error {
	var missing, outOfRange []string
	for _, it := range in.Items {
		raw, ok := responses[it.ID]
		if !ok {
			missing = append(missing, it.ID)
			continue
		}
		if !it.InRange(raw) {
			outOfRange = append(outOfRange, it.ID)
		}
	}
	if len(missing) > 0 {
		return &ResponseError{Instrument: in.Code, Items: missing, Err: ErrIncompleteResponses}
	}

	var unknown []string
	for id := range responses {
		if _, ok := in.Item(id); !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &ResponseError{Instrument: in.Code, Items: unknown, Err: ErrUnknownItem}
	}

	if len(outOfRange) > 0 {
		return &ResponseError{Instrument: in.Code, Items: outOfRange, Err: ErrValueOutOfRange}
	}
	return nil
}

// ComputeTotal sums the effective values of every declared item in declared
// order. The response set is validated first; any violation is returned as a
// *ResponseError and no partial total is produced.
func ComputeTotal(in instrument.Instrument, responses Responses) (int, error) {
	if err := Validate(in, responses); err != nil {
		return 0, err
	}
	total := 0
	for _, it := range in.Items {
		total += it.Effective(responses[it.ID])
	}
	return total, nil
}

// Interpretation is the band a total falls into, with its display label.
type Interpretation struct {
	Score  int             `json:"score"`
	Band   instrument.Band `json:"band"`
	Label  string          `json:"label"`
	Locale string          `json:"locale"`
}

// LookupInterpretation resolves score against the instrument's bands using
// its default locale.
func LookupInterpretation(in instrument.Instrument, score int) (Interpretation, error) {
	return LookupInterpretationIn(in, score, in.Locale)
}

// LookupInterpretationIn resolves score and picks the label for locale,
// falling back to the instrument default when locale has no label.
//
// A score outside [MinPossible, MaxPossible] is a caller error. A score inside
// that range with no matching band means the registry is misconfigured and is
// reported as ErrUncoveredScore.
func LookupInterpretationIn(in instrument.Instrument, score int, locale string) (Interpretation, error) {
	lo, hi := in.MinPossible(), in.MaxPossible()
	if score < lo || score > hi {
		return Interpretation{}, fmt.Errorf("%w: %s score %d not in [%d,%d]", ErrScoreOutOfRange, in.Code, score, lo, hi)
	}
	for _, b := range in.Bands {
		if b.Contains(score) {
			label, used := b.Label(locale, in.Locale)
			return Interpretation{Score: score, Band: b, Label: label, Locale: used}, nil
		}
	}
	return Interpretation{}, fmt.Errorf("%w: %s score %d", ErrUncoveredScore, in.Code, score)
}
