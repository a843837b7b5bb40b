// Package repository persists scored assessments.
package repository

import (
	"context"

	"github.com/okian/moodscale/internal/domain/model"
)

// Store provides read/write access to scored assessments.
type Store interface {
	// Save inserts a new assessment. Returns ErrDuplicate if the assessment id
	// or its submission id is already stored.
	Save(ctx context.Context, a model.Assessment) error

	// Get returns the assessment with the given id.
	// Returns ErrNotFound if the id is unknown.
	Get(ctx context.Context, id string) (model.Assessment, error)

	// ListBySubject returns up to limit assessments of a subject, newest first.
	// An empty instrument matches every instrument.
	ListBySubject(ctx context.Context, subjectID, instrument string, limit int) ([]model.Assessment, error)

	// Count returns the number of stored assessments.
	Count(ctx context.Context) (int, error)

	// Close releases the underlying resources.
	Close() error
}
