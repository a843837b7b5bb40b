package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/moodscale/internal/adapters/repository"
	service "github.com/okian/moodscale/internal/app"
	"github.com/okian/moodscale/internal/domain/instrument"
	"github.com/okian/moodscale/internal/domain/scoring"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("route not found")
)

// opError attaches the failing handler operation to an error and optionally
// classifies it with a sentinel kind.
type opError struct {
	Op   string
	Kind error
	Err  error
}

func (e *opError) Error() string {
	switch {
	case e.Kind != nil && e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *opError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Wrap annotates err with op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &opError{Op: op, Err: err}
}

// WrapKind annotates err with op and classifies it as kind.
func WrapKind(op string, kind, err error) error {
	return &opError{Op: op, Kind: kind, Err: err}
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &opError{Op: op, Kind: kind}
}

// errorStatus maps a domain error to an HTTP status and a stable error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, scoring.ErrIncompleteResponses):
		return http.StatusUnprocessableEntity, "incomplete_responses"
	case errors.Is(err, scoring.ErrUnknownItem):
		return http.StatusUnprocessableEntity, "unknown_item"
	case errors.Is(err, scoring.ErrValueOutOfRange):
		return http.StatusUnprocessableEntity, "value_out_of_range"
	case errors.Is(err, scoring.ErrScoreOutOfRange):
		return http.StatusUnprocessableEntity, "score_out_of_range"
	case errors.Is(err, scoring.ErrUncoveredScore):
		return http.StatusInternalServerError, "configuration_defect"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidSubmission),
		errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, instrument.ErrUnknownInstrument):
		return http.StatusNotFound, "unknown_instrument"
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// respondError writes err with the status its kind maps to. Rejected item
// ids of a scoring error are echoed back. Server errors are handed to the
// request logger instead of the client.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		if h, ok := r.Context().Value(failureKey{}).(*failure); ok {
			h.err = err
		}
	}
	writeError(w, status, code, err, scoring.RejectedItems(err)...)
}

type failureKey struct{}

// failure carries a handler's server error up to RequestLogger.
type failure struct {
	err error
}
