// Package instrument holds the definitions of the clinical self-report
// questionnaires the service can score.
//
// Instruments are immutable configuration. They are declared once in the
// built-in catalog, validated when the registry is built, and handed out as
// copies so callers cannot alter the shared table.
package instrument

import (
	"fmt"
)

// Item is one question of an instrument.
type Item struct {
	// ID is the key used to look the answer up in a response set.
	ID string `json:"id"`
	// Min and Max bound the raw answer, both inclusive.
	Min int `json:"min"`
	Max int `json:"max"`
	// Reverse marks items worded in the opposite valence; their raw
	// answer is inverted before summation.
	Reverse bool `json:"reverse,omitempty"`
}

// Effective returns the contribution of raw to the total.
// For a reversed item the value is mirrored inside [Min, Max], which on a
// zero-based scale is Max - raw.
func (it Item) Effective(raw int) int {
	if !it.Reverse {
		return raw
	}
	return it.Min + it.Max - raw
}

// InRange reports whether raw is an admissible answer for the item.
func (it Item) InRange(raw int) bool {
	return raw >= it.Min && raw <= it.Max
}

// Band maps a contiguous range of totals to a severity label.
type Band struct {
	Low  int `json:"low"`
	High int `json:"high"`
	// Key is a stable, locale-independent identifier (e.g. "moderate").
	Key string `json:"key"`
	// Labels maps a locale tag to the display text.
	Labels map[string]string `json:"labels"`
}

// Contains reports whether score lies in the band.
func (b Band) Contains(score int) bool {
	return score >= b.Low && score <= b.High
}

// Label returns the text for locale, or for fallback when locale has none.
func (b Band) Label(locale, fallback string) (string, string) {
	if l, ok := b.Labels[locale]; ok && locale != "" {
		return l, locale
	}
	return b.Labels[fallback], fallback
}

// Instrument is a scored questionnaire.
type Instrument struct {
	Code string `json:"code"`
	Name string `json:"name"`
	// Locale is the tag used when the caller does not ask for one.
	Locale string `json:"locale"`
	Items  []Item `json:"items"`
	Bands  []Band `json:"bands"`
}

// MinPossible is the lowest achievable total.
func (in Instrument) MinPossible() int {
	total := 0
	for _, it := range in.Items {
		total += it.Min
	}
	return total
}

// MaxPossible is the highest achievable total.
func (in Instrument) MaxPossible() int {
	total := 0
	for _, it := range in.Items {
		total += it.Max
	}
	return total
}

// Item returns the declared item with the given id.
func (in Instrument) Item(id string) (Item, bool) {
	for _, it := range in.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// ReverseItems lists the ids of reverse-scored items in declared order.
func (in Instrument) ReverseItems() []string {
	var ids []string
	for _, it := range in.Items {
		if it.Reverse {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

// Validate checks the structural invariants: unique items with sane ranges,
// and bands that partition [MinPossible, MaxPossible] in ascending order.
func (in Instrument) Validate() error {
	if in.Code == "" {
		return fmt.Errorf("%w: empty code", ErrInvalidInstrument)
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: %s has no items", ErrInvalidInstrument, in.Code)
	}
	seen := make(map[string]struct{}, len(in.Items))
	for _, it := range in.Items {
		if it.ID == "" {
			return fmt.Errorf("%w: %s has an item without id", ErrInvalidInstrument, in.Code)
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("%w: %s declares item %q twice", ErrInvalidInstrument, in.Code, it.ID)
		}
		seen[it.ID] = struct{}{}
		if it.Min > it.Max {
			return fmt.Errorf("%w: %s item %q has range [%d,%d]", ErrInvalidInstrument, in.Code, it.ID, it.Min, it.Max)
		}
	}
	if len(in.Bands) == 0 {
		return fmt.Errorf("%w: %s has no bands", ErrInvalidInstrument, in.Code)
	}

	lo, hi := in.MinPossible(), in.MaxPossible()
	if in.Bands[0].Low != lo {
		return fmt.Errorf("%w: %s first band starts at %d, want %d", ErrInvalidInstrument, in.Code, in.Bands[0].Low, lo)
	}
	for i, b := range in.Bands {
		if b.Low > b.High {
			return fmt.Errorf("%w: %s band %q is inverted [%d,%d]", ErrInvalidInstrument, in.Code, b.Key, b.Low, b.High)
		}
		if _, ok := b.Labels[in.Locale]; !ok {
			return fmt.Errorf("%w: %s band %q has no %q label", ErrInvalidInstrument, in.Code, b.Key, in.Locale)
		}
		if i == 0 {
			continue
		}
		prev := in.Bands[i-1]
		switch {
		case b.Low <= prev.High:
			return fmt.Errorf("%w: %s bands %q and %q overlap", ErrInvalidInstrument, in.Code, prev.Key, b.Key)
		case b.Low > prev.High+1:
			return fmt.Errorf("%w: %s gap between bands %q and %q", ErrInvalidInstrument, in.Code, prev.Key, b.Key)
		}
	}
	if last := in.Bands[len(in.Bands)-1]; last.High != hi {
		return fmt.Errorf("%w: %s last band ends at %d, want %d", ErrInvalidInstrument, in.Code, last.High, hi)
	}
	return nil
}

// clone deep-copies the instrument so the caller owns every slice and map.
func (in Instrument) clone() Instrument {
	out := in
	out.Items = append([]Item(nil), in.Items...)
	out.Bands = make([]Band, len(in.Bands))
	for i, b := range in.Bands {
		labels := make(map[string]string, len(b.Labels))
		for k, v := range b.Labels {
			labels[k] = v
		}
		b.Labels = labels
		out.Bands[i] = b
	}
	return out
}
