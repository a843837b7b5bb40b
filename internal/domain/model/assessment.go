// Package model contains domain models passed between layers.
package model

import "time"

// Assessment is a scored questionnaire ready to be persisted.
type Assessment struct {
	ID           string         // server-assigned id
	SubmissionID string         // client id used for idempotency
	SubjectID    string         // respondent identifier
	Instrument   string         // canonical instrument code, e.g. "GAD-7"
	Responses    map[string]int // raw answers keyed by item id
	Total        int
	BandKey      string // stable severity key, e.g. "moderate"
	Label        string // label in Locale
	Locale       string
	TakenAt      time.Time // when the respondent completed it
	ScoredAt     time.Time // when the service scored it
}

// Submission is a completed questionnaire as received from a client.
type Submission struct {
	SubmissionID string
	SubjectID    string
	Instrument   string
	Responses    map[string]int
	Locale       string
	TakenAt      time.Time
}
