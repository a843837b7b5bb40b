// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/moodscale/internal/adapters/mq/queue"
	"github.com/okian/moodscale/internal/adapters/mq/worker"
	"github.com/okian/moodscale/internal/adapters/repository"
	"github.com/okian/moodscale/internal/domain/dedupe"
	"github.com/okian/moodscale/internal/domain/instrument"
	"github.com/okian/moodscale/internal/domain/model"
	"github.com/okian/moodscale/internal/domain/scoring"
	"github.com/okian/moodscale/internal/domain/types"
	"github.com/okian/moodscale/pkg/logger"
	"github.com/okian/moodscale/pkg/metrics"
)

// Service scores submissions on the request path and persists them through
// a bounded queue drained by a worker pool.
type Service struct {
	mu sync.RWMutex

	// Core components
	registry *instrument.Registry
	scorer   *scoring.RegistryScorer
	store    repository.Store
	deduper  dedupe.Deduper
	queue    *queue.InMemoryQueue
	pool     *worker.Pool

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	maxHistoryLimit int
	defaultLocale   string
	now             func() time.Time

	// State
	started   bool
	ownsStore bool
	cancel    context.CancelFunc

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		registry:        instrument.Default(),
		workerCount:     runtime.NumCPU(),
		queueSize:       10_000,
		dedupeSize:      50_000,
		maxHistoryLimit: 100,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.scorer = scoring.NewRegistryScorer(
		scoring.WithRegistry(s.registry),
		scoring.WithDefaultLocale(s.defaultLocale),
	)
	return s
}

// Start initializes and starts the service components. The workers outlive
// ctx so that Stop can drain the queue after a shutdown signal. Without WithStore an in-memory SQLite store is
// opened and owned by the service.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting assessment service...")

	if s.store == nil {
		store, err := repository.Open(ctx, repository.DriverSQLite, ":memory:")
		if err != nil {
			return fmt.Errorf("open in-memory store: %w", err)
		}
		s.store = store
		s.ownsStore = true
		s.logger.Warn(ctx, "no store configured, assessments are kept in memory only")
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.store)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "assessment service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Strings("instruments", s.registry.Codes()),
	)
	return nil
}

// Stop drains queued assessments into the store and shuts the service down.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping assessment service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	s.cancel()
	if s.ownsStore {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		s.store = nil
		s.ownsStore = false
	}

	s.started = false
	s.logger.Info(ctx, "assessment service stopped")
	return errors.Join(errs...)
}

// Instruments lists the catalog in registration order.
func (s *Service) Instruments() []types.InstrumentSummary {
	all := s.registry.All()
	out := make([]types.InstrumentSummary, len(all))
	for i, in := range all {
		out[i] = types.SummaryOf(in)
	}
	return out
}

// Instrument returns the full definition of the instrument named by code.
func (s *Service) Instrument(code string) (types.InstrumentDetail, error) {
	in, err := s.registry.Lookup(code)
	if err != nil {
		return types.InstrumentDetail{}, err
	}
	return types.DetailOf(in), nil
}

// Interpret resolves the band of a bare score.
func (s *Service) Interpret(ctx context.Context, code string, score int, locale string) (types.Interpretation, error) {
	it, err := s.scorer.Interpret(ctx, code, score, locale)
	if err != nil {
		s.reportDefect(ctx, code, score, err)
		return types.Interpretation{}, err
	}
	in, _ := s.registry.Lookup(code)
	return types.InterpretationOf(in.Code, it), nil
}

// Submit scores a submission and queues it for persistence.
// A submission id seen before yields a duplicate receipt and no new work.
func (s *Service) Submit(ctx context.Context, sub model.Submission) (types.Receipt, error) {
	if err := validateSubmission(sub); err != nil {
		return types.Receipt{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return types.Receipt{}, ErrNotStarted
	}

	if s.deduper.SeenAndRecord(ctx, sub.SubmissionID) {
		metrics.RecordAssessmentDuplicate()
		s.logger.Debug(ctx, "duplicate submission",
			logger.String("submission_id", sub.SubmissionID),
		)
		return types.Receipt{
			ID:           assessmentID(sub.SubmissionID),
			SubmissionID: sub.SubmissionID,
			Status:       types.StatusDuplicate,
		}, nil
	}

	start := time.Now()
	res, err := s.scorer.Score(ctx, scoring.Input{
		Instrument: sub.Instrument,
		Responses:  sub.Responses,
		Locale:     sub.Locale,
	})
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		s.deduper.Unrecord(ctx, sub.SubmissionID)
		metrics.RecordAssessmentRejected(sub.Instrument, scoring.Reason(err))
		s.reportDefect(ctx, sub.Instrument, -1, err)
		return types.Receipt{}, err
	}

	now := s.now().UTC()
	takenAt := sub.TakenAt
	if takenAt.IsZero() {
		takenAt = now
	}
	a := model.Assessment{
		ID:           assessmentID(sub.SubmissionID),
		SubmissionID: sub.SubmissionID,
		SubjectID:    sub.SubjectID,
		Instrument:   res.Instrument,
		Responses:    copyResponses(sub.Responses),
		Total:        res.Total,
		BandKey:      res.BandKey,
		Label:        res.Label,
		Locale:       res.Locale,
		TakenAt:      takenAt.UTC(),
		ScoredAt:     now,
	}

	if err := s.queue.Enqueue(ctx, a); err != nil {
		s.deduper.Unrecord(ctx, sub.SubmissionID)
		switch {
		case errors.Is(err, queue.ErrFull):
			s.logger.Warn(ctx, "assessment queue full",
				logger.String("submission_id", sub.SubmissionID),
				logger.Int("capacity", s.queue.Cap()),
			)
			return types.Receipt{}, fmt.Errorf("%w: %w", ErrBackpressure, err)
		case errors.Is(err, queue.ErrClosed):
			return types.Receipt{}, fmt.Errorf("%w: %w", ErrNotStarted, err)
		default:
			return types.Receipt{}, err
		}
	}

	metrics.RecordAssessmentScored(res.Instrument, res.BandKey)
	s.logger.Debug(ctx, "assessment scored",
		logger.String("assessment_id", a.ID),
		logger.String("instrument", a.Instrument),
		logger.Int("total", a.Total),
		logger.String("band", a.BandKey),
	)

	return types.Receipt{
		ID:           a.ID,
		SubmissionID: a.SubmissionID,
		Status:       types.StatusAccepted,
		Instrument:   a.Instrument,
		Total:        a.Total,
		Band:         a.BandKey,
		Label:        a.Label,
		Locale:       a.Locale,
	}, nil
}

// Assessment returns a stored assessment.
func (s *Service) Assessment(ctx context.Context, id string) (types.Assessment, error) {
	store, err := s.currentStore()
	if err != nil {
		return types.Assessment{}, err
	}
	a, err := store.Get(ctx, id)
	if err != nil {
		return types.Assessment{}, err
	}
	return types.AssessmentOf(a), nil
}

// History returns a subject's assessments, newest first. A zero limit means
// the configured maximum; larger limits are capped to it. A non-empty code
// restricts the result to one instrument.
func (s *Service) History(ctx context.Context, subjectID, code string, limit int) ([]types.Assessment, error) {
	if strings.TrimSpace(subjectID) == "" {
		return nil, fmt.Errorf("%w: subject_id is required", ErrInvalidSubmission)
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: %d", repository.ErrInvalidLimit, limit)
	}
	if limit == 0 || limit > s.maxHistoryLimit {
		limit = s.maxHistoryLimit
	}
	if code != "" {
		in, err := s.registry.Lookup(code)
		if err != nil {
			return nil, err
		}
		code = in.Code
	}

	store, err := s.currentStore()
	if err != nil {
		return nil, err
	}
	list, err := store.ListBySubject(ctx, subjectID, code, limit)
	if err != nil {
		return nil, err
	}
	out := make([]types.Assessment, len(list))
	for i, a := range list {
		out[i] = types.AssessmentOf(a)
	}
	return out, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"dedupeSize":      s.dedupeSize,
		"maxHistoryLimit": s.maxHistoryLimit,
		"instruments":     s.registry.Codes(),
	}

	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["dedupeEntries"] = s.deduper.Size()
		stats["persisted"] = s.pool.Persisted()
		stats["persistFailures"] = s.pool.Failed()
		if n, err := s.store.Count(ctx); err == nil {
			stats["totalAssessments"] = n
			metrics.UpdateRepositoryRecordsTotal(n)
		}
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}

func (s *Service) currentStore() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// reportDefect logs registry defects. Caller errors are left to the caller.
func (s *Service) reportDefect(ctx context.Context, code string, score int, err error) {
	if !errors.Is(err, scoring.ErrUncoveredScore) {
		return
	}
	metrics.RecordConfigurationDefect(code)
	l := s.logger
	if l == nil {
		l = logger.Get().Named("service")
	}
	fields := []logger.Field{logger.String("instrument", code), logger.Error(err)}
	if score >= 0 {
		fields = append(fields, logger.Int("score", score))
	}
	l.Error(ctx, "instrument bands do not cover a reachable score", fields...)
}

func validateSubmission(sub model.Submission) error {
	var missing []string
	if strings.TrimSpace(sub.SubmissionID) == "" {
		missing = append(missing, "submission_id")
	}
	if strings.TrimSpace(sub.SubjectID) == "" {
		missing = append(missing, "subject_id")
	}
	if strings.TrimSpace(sub.Instrument) == "" {
		missing = append(missing, "instrument")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidSubmission, strings.Join(missing, ", "))
	}
	return nil
}

// assessmentNamespace scopes the name-based ids derived from submission ids.
var assessmentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:moodscale:assessment"))

// assessmentID is stable per submission id, so a resubmission the deduper
// no longer remembers still resolves to the stored assessment.
func assessmentID(submissionID string) string {
	return uuid.NewSHA1(assessmentNamespace, []byte(submissionID)).String()
}

func copyResponses(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
