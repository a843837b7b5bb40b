package scoring

import (
	"context"
	"fmt"

	"github.com/okian/moodscale/internal/domain/instrument"
)

// Option applies a configuration option to the RegistryScorer.
type Option func(*RegistryScorer)

// WithRegistry sets the instrument registry used to resolve codes.
func WithRegistry(r *instrument.Registry) Option {
	return func(s *RegistryScorer) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithDefaultLocale sets the label locale used when the input names none.
// An empty value keeps each instrument's own default.
func WithDefaultLocale(locale string) Option {
	return func(s *RegistryScorer) {
		s.defaultLocale = locale
	}
}

// Input is one completed questionnaire.
type Input struct {
	Instrument string
	Responses  Responses
	Locale     string
}

// Result is the scored and interpreted questionnaire.
type Result struct {
	Instrument  string `json:"instrument"`
	Total       int    `json:"total"`
	MinPossible int    `json:"min_possible"`
	MaxPossible int    `json:"max_possible"`
	BandKey     string `json:"band"`
	Label       string `json:"label"`
	Locale      string `json:"locale"`
}

// Scorer computes and interprets a total for a completed questionnaire.
type Scorer interface {
	// Score validates, totals and interprets in, honoring ctx for cancellation.
	Score(ctx context.Context, in Input) (Result, error)
}

// RegistryScorer implements Scorer on top of an instrument registry.
type RegistryScorer struct {
	registry      *instrument.Registry
	defaultLocale string
}

// NewRegistryScorer creates a scorer over the built-in catalog unless
// WithRegistry says otherwise.
func NewRegistryScorer(opts ...Option) *RegistryScorer {
	s := &RegistryScorer{
		registry: instrument.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score implements Scorer.
func (s *RegistryScorer) Score(ctx context.Context, in Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("context cancelled: %w", err)
	}
	inst, err := s.registry.Lookup(in.Instrument)
	if err != nil {
		return Result{}, err
	}
	total, err := ComputeTotal(inst, in.Responses)
	if err != nil {
		return Result{}, err
	}

	locale := in.Locale
	if locale == "" {
		locale = s.defaultLocale
	}
	interp, err := LookupInterpretationIn(inst, total, locale)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Instrument:  inst.Code,
		Total:       total,
		MinPossible: inst.MinPossible(),
		MaxPossible: inst.MaxPossible(),
		BandKey:     interp.Band.Key,
		Label:       interp.Label,
		Locale:      interp.Locale,
	}, nil
}

// Interpret resolves a bare score for the named instrument.
func (s *RegistryScorer) Interpret(ctx context.Context, code string, score int, locale string) (Interpretation, error) {
	if err := ctx.Err(); err != nil {
		return Interpretation{}, fmt.Errorf("context cancelled: %w", err)
	}
	inst, err := s.registry.Lookup(code)
	if err != nil {
		return Interpretation{}, err
	}
	if locale == "" {
		locale = s.defaultLocale
	}
	return LookupInterpretationIn(inst, score, locale)
}

// Registry exposes the registry the scorer resolves codes against.
func (s *RegistryScorer) Registry() *instrument.Registry { return s.registry }
