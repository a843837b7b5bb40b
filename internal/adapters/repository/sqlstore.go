package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite

	"github.com/okian/moodscale/internal/domain/model"
	"github.com/okian/moodscale/pkg/metrics"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const defaultMetricsUpdateInterval = 5 * time.Second

// SQLStore is a Store on database/sql. It runs on SQLite (modernc, pure Go)
// or PostgreSQL (pgx stdlib). Both dialects accept $N placeholders.
type SQLStore struct {
	db     *sql.DB
	driver string

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

var _ Store = (*SQLStore)(nil)

// Open connects to the database, ensures the schema exists and returns a store.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	var drvName, schema string
	switch driver {
	case DriverSQLite:
		drvName, schema = "sqlite", schemaSQLite
		if dsn == "" {
			dsn = "file:moodscale.db?_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName, schema = "pgx", schemaPostgres
		if dsn == "" {
			dsn = "postgres://localhost:5432/moodscale?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// Every pooled connection to ":memory:" would see its own database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return newSQLStore(ctx, db, driver, opts...), nil
}

func newSQLStore(ctx context.Context, db *sql.DB, driver string, opts ...Option) *SQLStore {
	s := &SQLStore{
		db:                    db,
		driver:                driver,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.updateMetrics(ctx)
	s.startMetricsUpdater(ctx)
	return s
}

// Driver returns the configured driver name.
func (s *SQLStore) Driver() string { return s.driver }

// Save implements Store.Save.
func (s *SQLStore) Save(ctx context.Context, a model.Assessment) error {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryWriteLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	responses, err := json.Marshal(a.Responses)
	if err != nil {
		return fmt.Errorf("encode responses: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO assessments
		(id,submission_id,subject_id,instrument,responses_json,total,band,label,locale,taken_at,scored_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT DO NOTHING`,
		a.ID, a.SubmissionID, a.SubjectID, a.Instrument, string(responses),
		a.Total, a.BandKey, a.Label, a.Locale, a.TakenAt.UnixMilli(), a.ScoredAt.UnixMilli())
	if err != nil {
		metrics.RecordErrorByComponent("repository", "write")
		return fmt.Errorf("insert assessment %s: %w", a.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert assessment %s: %w", a.ID, err)
	}
	if n == 0 {
		metrics.RecordErrorByComponent("repository", "duplicate")
		return fmt.Errorf("%w: %s", ErrDuplicate, a.ID)
	}
	return nil
}

const selectColumns = `SELECT id,submission_id,subject_id,instrument,responses_json,total,band,label,locale,taken_at,scored_at FROM assessments`

// Get implements Store.Get.
func (s *SQLStore) Get(ctx context.Context, id string) (model.Assessment, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	a, err := scanAssessment(s.db.QueryRowContext(ctx, selectColumns+` WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			metrics.RecordErrorByComponent("repository", "not_found")
			return model.Assessment{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return model.Assessment{}, fmt.Errorf("get assessment %s: %w", id, err)
	}
	return a, nil
}

// ListBySubject implements Store.ListBySubject.
func (s *SQLStore) ListBySubject(ctx context.Context, subjectID, instrument string, limit int) ([]model.Assessment, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if limit <= 0 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	var (
		rows *sql.Rows
		err  error
	)
	if instrument == "" {
		rows, err = s.db.QueryContext(ctx, selectColumns+
			` WHERE subject_id=$1 ORDER BY taken_at DESC, id ASC LIMIT $2`, subjectID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, selectColumns+
			` WHERE subject_id=$1 AND instrument=$2 ORDER BY taken_at DESC, id ASC LIMIT $3`, subjectID, instrument, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list assessments of %s: %w", subjectID, err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]model.Assessment, 0, limit)
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("list assessments of %s: %w", subjectID, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list assessments of %s: %w", subjectID, err)
	}
	return out, nil
}

// Count implements Store.Count.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assessments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count assessments: %w", err)
	}
	return n, nil
}

// Close stops the metrics updater and closes the database.
func (s *SQLStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(r rowScanner) (model.Assessment, error) {
	var (
		a                 model.Assessment
		responses         string
		takenAt, scoredAt int64
	)
	if err := r.Scan(&a.ID, &a.SubmissionID, &a.SubjectID, &a.Instrument, &responses,
		&a.Total, &a.BandKey, &a.Label, &a.Locale, &takenAt, &scoredAt); err != nil {
		return model.Assessment{}, err
	}
	if err := json.Unmarshal([]byte(responses), &a.Responses); err != nil {
		return model.Assessment{}, fmt.Errorf("decode responses of %s: %w", a.ID, err)
	}
	a.TakenAt = time.UnixMilli(takenAt).UTC()
	a.ScoredAt = time.UnixMilli(scoredAt).UTC()
	return a, nil
}

// startMetricsUpdater periodically publishes the stored record count.
func (s *SQLStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics(ctx)
			}
		}
	}()
}

func (s *SQLStore) updateMetrics(ctx context.Context) {
	n, err := s.Count(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "count")
		return
	}
	metrics.UpdateRepositoryRecordsTotal(n)
}
