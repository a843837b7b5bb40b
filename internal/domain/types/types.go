// Package types contains the read shapes returned by the HTTP API.
package types

import (
	"time"

	"github.com/okian/moodscale/internal/domain/instrument"
	"github.com/okian/moodscale/internal/domain/model"
	"github.com/okian/moodscale/internal/domain/scoring"
)

// InstrumentSummary is the list view of an instrument.
type InstrumentSummary struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Items       int    `json:"items"`
	MinPossible int    `json:"min_possible"`
	MaxPossible int    `json:"max_possible"`
	Locale      string `json:"locale"`
}

// InstrumentDetail is the full definition of an instrument.
type InstrumentDetail struct {
	InstrumentSummary
	ReverseItems []string          `json:"reverse_items"`
	ItemList     []instrument.Item `json:"item_list"`
	Bands        []instrument.Band `json:"bands"`
}

// Interpretation is the answer to an interpretation query.
type Interpretation struct {
	Instrument string `json:"instrument"`
	Score      int    `json:"score"`
	Band       string `json:"band"`
	Low        int    `json:"low"`
	High       int    `json:"high"`
	Label      string `json:"label"`
	Locale     string `json:"locale"`
}

// Receipt acknowledges a submission.
type Receipt struct {
	ID           string `json:"id,omitempty"`
	SubmissionID string `json:"submission_id"`
	Status       string `json:"status"`
	Instrument   string `json:"instrument,omitempty"`
	Total        int    `json:"total"`
	Band         string `json:"band,omitempty"`
	Label        string `json:"label,omitempty"`
	Locale       string `json:"locale,omitempty"`
}

// Receipt statuses.
const (
	StatusAccepted  = "accepted"
	StatusDuplicate = "duplicate"
)

// Assessment is the stored view of a scored questionnaire.
type Assessment struct {
	ID           string         `json:"id"`
	SubmissionID string         `json:"submission_id"`
	SubjectID    string         `json:"subject_id"`
	Instrument   string         `json:"instrument"`
	Responses    map[string]int `json:"responses,omitempty"`
	Total        int            `json:"total"`
	Band         string         `json:"band"`
	Label        string         `json:"label"`
	Locale       string         `json:"locale"`
	TakenAt      time.Time      `json:"taken_at"`
	ScoredAt     time.Time      `json:"scored_at"`
}

// SummaryOf builds the list view of in.
func SummaryOf(in instrument.Instrument) InstrumentSummary {
	return InstrumentSummary{
		Code:        in.Code,
		Name:        in.Name,
		Items:       len(in.Items),
		MinPossible: in.MinPossible(),
		MaxPossible: in.MaxPossible(),
		Locale:      in.Locale,
	}
}

// DetailOf builds the full view of in.
func DetailOf(in instrument.Instrument) InstrumentDetail {
	rev := in.ReverseItems()
	if rev == nil {
		rev = []string{}
	}
	return InstrumentDetail{
		InstrumentSummary: SummaryOf(in),
		ReverseItems:      rev,
		ItemList:          in.Items,
		Bands:             in.Bands,
	}
}

// InterpretationOf flattens a scoring interpretation for code.
func InterpretationOf(code string, it scoring.Interpretation) Interpretation {
	return Interpretation{
		Instrument: code,
		Score:      it.Score,
		Band:       it.Band.Key,
		Low:        it.Band.Low,
		High:       it.Band.High,
		Label:      it.Label,
		Locale:     it.Locale,
	}
}

// AssessmentOf converts a domain assessment to its API view.
func AssessmentOf(a model.Assessment) Assessment { //nolint:gocritic // hugeParam: value semantics match the store
	return Assessment{
		ID:           a.ID,
		SubmissionID: a.SubmissionID,
		SubjectID:    a.SubjectID,
		Instrument:   a.Instrument,
		Responses:    a.Responses,
		Total:        a.Total,
		Band:         a.BandKey,
		Label:        a.Label,
		Locale:       a.Locale,
		TakenAt:      a.TakenAt,
		ScoredAt:     a.ScoredAt,
	}
}
