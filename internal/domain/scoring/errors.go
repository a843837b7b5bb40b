package scoring

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds for scoring.
var (
	ErrIncompleteResponses = errors.New("incomplete responses")
	ErrUnknownItem         = errors.New("unknown item")
	ErrValueOutOfRange     = errors.New("response value out of range")
	ErrScoreOutOfRange     = errors.New("score out of range")
	// ErrUncoveredScore signals a registry defect: a reachable score has no band.
	ErrUncoveredScore = errors.New("score not covered by any band")
)

// ResponseError reports which items of a response set were rejected.
type ResponseError struct {
	Instrument string
	Items      []string
	Err        error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %v: items [%s]", e.Instrument, e.Err, strings.Join(e.Items, ", "))
}

func (e *ResponseError) Unwrap() error { return e.Err }

// RejectedItems returns the item ids carried by err, if it is a ResponseError.
func RejectedItems(err error) []string {
	var re *ResponseError
	if errors.As(err, &re) {
		return re.Items
	}
	return nil
}

// Reason maps a scoring error to a short label suitable for metrics.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrIncompleteResponses):
		return "incomplete"
	case errors.Is(err, ErrUnknownItem):
		return "unknown_item"
	case errors.Is(err, ErrValueOutOfRange):
		return "value_out_of_range"
	case errors.Is(err, ErrScoreOutOfRange):
		return "score_out_of_range"
	case errors.Is(err, ErrUncoveredScore):
		return "uncovered_score"
	default:
		return "other"
	}
}
