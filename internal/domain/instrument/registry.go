package instrument

import (
	"fmt"
	"strings"
)

// Registry is a read-only lookup table of validated instruments.
type Registry struct {
	byCode map[string]Instrument
	order  []string
}

// NewRegistry validates each instrument and indexes it by normalized code.
func NewRegistry(instruments ...Instrument) (*Registry, error) {
	r := &Registry{
		byCode: make(map[string]Instrument, len(instruments)),
		order:  make([]string, 0, len(instruments)),
	}
	for _, in := range instruments {
		if err := in.Validate(); err != nil {
			return nil, err
		}
		key := normalize(in.Code)
		if _, dup := r.byCode[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCode, in.Code)
		}
		r.byCode[key] = in.clone()
		r.order = append(r.order, key)
	}
	return r, nil
}

// Lookup returns a copy of the instrument registered under code.
// Matching ignores case, dashes, underscores and spaces.
func (r *Registry) Lookup(code string) (Instrument, error) {
	in, ok := r.byCode[normalize(code)]
	if !ok {
		return Instrument{}, fmt.Errorf("%w: %q", ErrUnknownInstrument, code)
	}
	return in.clone(), nil
}

// All returns copies of every instrument in registration order.
func (r *Registry) All() []Instrument {
	out := make([]Instrument, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.byCode[key].clone())
	}
	return out
}

// Codes returns the canonical codes in registration order.
func (r *Registry) Codes() []string {
	out := make([]string, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.byCode[key].Code)
	}
	return out
}

// Len returns the number of registered instruments.
func (r *Registry) Len() int { return len(r.order) }

func normalize(code string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ':
			return -1
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(code)))
}

var defaultRegistry = mustRegistry(Catalog()...) //nolint:gochecknoglobals // immutable built-in catalog

// Default returns the registry of built-in instruments.
func Default() *Registry { return defaultRegistry }

func mustRegistry(instruments ...Instrument) *Registry {
	r, err := NewRegistry(instruments...)
	if err != nil {
		panic("instrument catalog: " + err.Error())
	}
	return r
}
