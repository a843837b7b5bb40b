package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/moodscale/internal/adapters/repository"
	service "github.com/okian/moodscale/internal/app"
	"github.com/okian/moodscale/internal/domain/instrument"
	"github.com/okian/moodscale/internal/domain/model"
	"github.com/okian/moodscale/internal/domain/scoring"
	"github.com/okian/moodscale/internal/domain/types"
	"github.com/okian/moodscale/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func gadSubmission(id string) model.Submission {
	return model.Submission{
		SubmissionID: id,
		SubjectID:    "patient-1",
		Instrument:   "GAD-7",
		Responses:    map[string]int{"1": 2, "2": 2, "3": 2, "4": 1, "5": 1, "6": 1, "7": 1},
	}
}

func startService(opts ...service.Option) (*service.Service, func()) {
	svc := service.New(opts...)
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	return svc, func() { _ = svc.Stop(context.Background()) }
}

// waitForAssessment polls until the worker pool has persisted id.
func waitForAssessment(svc *service.Service, id string) (types.Assessment, error) {
	deadline := time.Now().Add(2 * time.Second)
	for {
		a, err := svc.Assessment(context.Background(), id)
		if err == nil || time.Now().After(deadline) {
			return a, err
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should report sensible defaults", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["maxHistoryLimit"], ShouldEqual, 100)
			So(stats["instruments"], ShouldResemble, instrument.Default().Codes())
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(2),
			service.WithQueueSize(500),
			service.WithDedupeSize(250),
			service.WithMaxHistoryLimit(10),
		)

		Convey("Then the options should be applied", func() {
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 2)
			So(stats["queueSize"], ShouldEqual, 500)
			So(stats["dedupeSize"], ShouldEqual, 250)
			So(stats["maxHistoryLimit"], ShouldEqual, 10)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithWorkerCount(1))

		Convey("When submitting before start", func() {
			_, err := svc.Submit(context.Background(), gadSubmission("s-0"))

			Convey("Then it should be refused", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})

		Convey("When starting and stopping the service", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.Start(context.Background()), ShouldBeNil)
			started := svc.GetStats()["started"]
			So(svc.Stop(context.Background()), ShouldBeNil)

			Convey("Then it should toggle its started flag", func() {
				So(started, ShouldEqual, true)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})

			Convey("And a second stop should be a no-op", func() {
				So(svc.Stop(context.Background()), ShouldBeNil)
			})
		})
	})
}

func TestService_Catalog(t *testing.T) {
	Convey("Given a service over the built-in catalog", t, func() {
		svc := service.New()

		Convey("When listing instruments", func() {
			list := svc.Instruments()

			Convey("Then every catalog entry should be listed", func() {
				So(len(list), ShouldEqual, instrument.Default().Len())
				So(list[0].Code, ShouldEqual, "GAD-7")
			})
		})

		Convey("When fetching an instrument with a loose code", func() {
			d, err := svc.Instrument("phq9")

			Convey("Then the canonical definition should be returned", func() {
				So(err, ShouldBeNil)
				So(d.Code, ShouldEqual, "PHQ-9")
				So(len(d.ItemList), ShouldEqual, 9)
				So(len(d.Bands), ShouldEqual, 5)
			})
		})

		Convey("When fetching an unknown instrument", func() {
			_, err := svc.Instrument("POMS")

			Convey("Then it should fail with ErrUnknownInstrument", func() {
				So(errors.Is(err, instrument.ErrUnknownInstrument), ShouldBeTrue)
			})
		})

		Convey("When interpreting bare scores", func() {
			moderate, err1 := svc.Interpret(context.Background(), "GAD-7", 10, "")
			minimal, err2 := svc.Interpret(context.Background(), "PHQ-9", 2, "")
			english, err3 := svc.Interpret(context.Background(), "GAD-7", 18, "en")
			_, errRange := svc.Interpret(context.Background(), "GAD-7", 22, "")

			Convey("Then labels should follow the instrument bands", func() {
				So(err1, ShouldBeNil)
				So(moderate.Label, ShouldEqual, "Anxiété modérée")
				So(moderate.Low, ShouldEqual, 10)
				So(moderate.High, ShouldEqual, 14)
				So(err2, ShouldBeNil)
				So(minimal.Label, ShouldEqual, "Dépression minimale")
				So(err3, ShouldBeNil)
				So(english.Locale, ShouldEqual, "en")
				So(english.Band, ShouldEqual, "severe")
				So(errors.Is(errRange, scoring.ErrScoreOutOfRange), ShouldBeTrue)
			})
		})
	})
}

func TestService_Submit(t *testing.T) {
	Convey("Given a started service", t, func() {
		fixed := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
		svc, stop := startService(
			service.WithWorkerCount(2),
			service.WithClock(func() time.Time { return fixed }),
		)
		defer stop()
		ctx := context.Background()

		Convey("When submitting a complete GAD-7", func() {
			receipt, err := svc.Submit(ctx, gadSubmission("s-1"))

			Convey("Then it should be scored synchronously", func() {
				So(err, ShouldBeNil)
				So(receipt.Status, ShouldEqual, types.StatusAccepted)
				So(receipt.ID, ShouldNotBeEmpty)
				So(receipt.Total, ShouldEqual, 10)
				So(receipt.Band, ShouldEqual, "moderate")
				So(receipt.Label, ShouldEqual, "Anxiété modérée")
			})

			Convey("And it should be persisted by the workers", func() {
				a, err := waitForAssessment(svc, receipt.ID)
				So(err, ShouldBeNil)
				So(a.SubmissionID, ShouldEqual, "s-1")
				So(a.Total, ShouldEqual, 10)
				So(a.Responses["1"], ShouldEqual, 2)
				So(a.ScoredAt.Equal(fixed), ShouldBeTrue)
				So(a.TakenAt.Equal(fixed), ShouldBeTrue)
			})

			Convey("And a resubmission should be reported as duplicate", func() {
				again, err := svc.Submit(ctx, gadSubmission("s-1"))
				So(err, ShouldBeNil)
				So(again.Status, ShouldEqual, types.StatusDuplicate)
				So(again.ID, ShouldEqual, receipt.ID)
			})
		})

		Convey("When submitting with a loose instrument code and English locale", func() {
			sub := gadSubmission("s-2")
			sub.Instrument = "gad7"
			sub.Locale = "en"
			receipt, err := svc.Submit(ctx, sub)

			Convey("Then the canonical code and English label should be used", func() {
				So(err, ShouldBeNil)
				So(receipt.Instrument, ShouldEqual, "GAD-7")
				So(receipt.Locale, ShouldEqual, "en")
				So(receipt.Label, ShouldNotEqual, "Anxiété modérée")
			})
		})

		Convey("When submitting an incomplete response set", func() {
			sub := gadSubmission("s-3")
			delete(sub.Responses, "7")
			_, err := svc.Submit(ctx, sub)

			Convey("Then it should be rejected with the missing item", func() {
				So(errors.Is(err, scoring.ErrIncompleteResponses), ShouldBeTrue)
				So(scoring.RejectedItems(err), ShouldResemble, []string{"7"})
			})

			Convey("And the corrected submission should be accepted under the same id", func() {
				receipt, err := svc.Submit(ctx, gadSubmission("s-3"))
				So(err, ShouldBeNil)
				So(receipt.Status, ShouldEqual, types.StatusAccepted)
			})
		})

		Convey("When submitting an out of range value", func() {
			sub := gadSubmission("s-4")
			sub.Responses["2"] = 4
			_, err := svc.Submit(ctx, sub)

			Convey("Then it should be rejected, not clamped", func() {
				So(errors.Is(err, scoring.ErrValueOutOfRange), ShouldBeTrue)
				So(scoring.RejectedItems(err), ShouldResemble, []string{"2"})
			})
		})

		Convey("When submitting without identifiers", func() {
			_, err := svc.Submit(ctx, model.Submission{Instrument: "GAD-7"})

			Convey("Then it should be an invalid submission", func() {
				So(errors.Is(err, service.ErrInvalidSubmission), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "submission_id")
				So(err.Error(), ShouldContainSubstring, "subject_id")
			})
		})

		Convey("When submitting an unknown instrument", func() {
			sub := gadSubmission("s-5")
			sub.Instrument = "POMS"
			_, err := svc.Submit(ctx, sub)

			Convey("Then it should fail with ErrUnknownInstrument", func() {
				So(errors.Is(err, instrument.ErrUnknownInstrument), ShouldBeTrue)
			})
		})
	})
}

func TestService_History(t *testing.T) {
	Convey("Given a service with several stored assessments", t, func() {
		svc, stop := startService(service.WithWorkerCount(1), service.WithMaxHistoryLimit(3))
		defer stop()
		ctx := context.Background()

		base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
		var last string
		for i := range 4 {
			sub := gadSubmission(fmt.Sprintf("h-%d", i))
			sub.TakenAt = base.Add(time.Duration(i) * 24 * time.Hour)
			r, err := svc.Submit(ctx, sub)
			So(err, ShouldBeNil)
			last = r.ID
		}
		phq := model.Submission{
			SubmissionID: "h-phq",
			SubjectID:    "patient-1",
			Instrument:   "PHQ-9",
			Responses:    map[string]int{"1": 1, "2": 1, "3": 2, "4": 2, "5": 1, "6": 0, "7": 1, "8": 0, "9": 0},
			TakenAt:      base.Add(-24 * time.Hour),
		}
		r, err := svc.Submit(ctx, phq)
		So(err, ShouldBeNil)
		So(r.Total, ShouldEqual, 8)
		_, err = waitForAssessment(svc, r.ID)
		So(err, ShouldBeNil)
		_, err = waitForAssessment(svc, last)
		So(err, ShouldBeNil)

		Convey("When listing without a limit", func() {
			list, err := svc.History(ctx, "patient-1", "", 0)

			Convey("Then the configured maximum should apply, newest first", func() {
				So(err, ShouldBeNil)
				So(len(list), ShouldEqual, 3)
				So(list[0].SubmissionID, ShouldEqual, "h-3")
				So(list[2].SubmissionID, ShouldEqual, "h-1")
			})
		})

		Convey("When filtering by a loose instrument code", func() {
			list, err := svc.History(ctx, "patient-1", "phq-9", 10)

			Convey("Then only that instrument should be returned", func() {
				So(err, ShouldBeNil)
				So(len(list), ShouldEqual, 1)
				So(list[0].Instrument, ShouldEqual, "PHQ-9")
			})
		})

		Convey("When using a negative limit", func() {
			_, err := svc.History(ctx, "patient-1", "", -1)

			Convey("Then it should fail with ErrInvalidLimit", func() {
				So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
			})
		})

		Convey("When filtering by an unknown instrument", func() {
			_, err := svc.History(ctx, "patient-1", "nope", 10)

			Convey("Then it should fail with ErrUnknownInstrument", func() {
				So(errors.Is(err, instrument.ErrUnknownInstrument), ShouldBeTrue)
			})
		})

		Convey("When fetching an unknown assessment", func() {
			_, err := svc.Assessment(ctx, "missing")

			Convey("Then it should fail with ErrNotFound", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When reading stats", func() {
			stats := svc.GetStats()

			Convey("Then they should include the stored count", func() {
				So(stats["totalAssessments"], ShouldEqual, 5)
				So(stats["queueLength"], ShouldEqual, 0)
			})
		})
	})
}

// blockingStore holds every Save until release is closed.
type blockingStore struct {
	repository.Store
	release chan struct{}
	once    sync.Once
}

func (b *blockingStore) Save(ctx context.Context, a model.Assessment) error { //nolint:gocritic // hugeParam: mirrors Store
	<-b.release
	return b.Store.Save(ctx, a)
}

func (b *blockingStore) unblock() { b.once.Do(func() { close(b.release) }) }

func TestService_Backpressure(t *testing.T) {
	Convey("Given a service whose store is stalled", t, func() {
		ctx := context.Background()
		inner, err := repository.Open(ctx, repository.DriverSQLite, ":memory:")
		So(err, ShouldBeNil)
		defer func() { _ = inner.Close() }()

		store := &blockingStore{Store: inner, release: make(chan struct{})}
		svc, stop := startService(
			service.WithStore(store),
			service.WithWorkerCount(1),
			service.WithQueueSize(1),
		)
		defer stop()
		defer store.unblock()

		Convey("When submissions keep arriving", func() {
			var rejected string
			for i := 0; i < 50 && rejected == ""; i++ {
				id := fmt.Sprintf("bp-%d", i)
				_, err := svc.Submit(ctx, gadSubmission(id))
				if errors.Is(err, service.ErrBackpressure) {
					rejected = id
					break
				}
				So(err, ShouldBeNil)
				time.Sleep(5 * time.Millisecond)
			}

			Convey("Then the queue should push back", func() {
				So(rejected, ShouldNotBeEmpty)
			})

			Convey("And the rejected id should be accepted once the store recovers", func() {
				store.unblock()
				var receipt types.Receipt
				var err error
				for range 100 {
					receipt, err = svc.Submit(ctx, gadSubmission(rejected))
					if !errors.Is(err, service.ErrBackpressure) {
						break
					}
					time.Sleep(5 * time.Millisecond)
				}
				So(err, ShouldBeNil)
				So(receipt.Status, ShouldEqual, types.StatusAccepted)
			})
		})
	})
}

// slowStore delays every Save.
type slowStore struct {
	repository.Store
	delay time.Duration
}

func (s *slowStore) Save(ctx context.Context, a model.Assessment) error { //nolint:gocritic // hugeParam: mirrors Store
	time.Sleep(s.delay)
	return s.Store.Save(ctx, a)
}

func TestService_StopAfterSignal(t *testing.T) {
	Convey("Given a service with a slow store and a backlog", t, func() {
		inner, err := repository.Open(context.Background(), repository.DriverSQLite, ":memory:")
		So(err, ShouldBeNil)
		defer func() { _ = inner.Close() }()

		runCtx, cancel := context.WithCancel(context.Background())
		svc := service.New(
			service.WithStore(&slowStore{Store: inner, delay: 20 * time.Millisecond}),
			service.WithWorkerCount(1),
		)
		So(svc.Start(runCtx), ShouldBeNil)

		for i := range 20 {
			_, err := svc.Submit(runCtx, gadSubmission(fmt.Sprintf("sig-%d", i)))
			So(err, ShouldBeNil)
		}

		Convey("When the start context is cancelled before Stop", func() {
			cancel()
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			err := svc.Stop(stopCtx)

			Convey("Then every queued assessment should still be persisted", func() {
				So(err, ShouldBeNil)
				n, err := inner.Count(context.Background())
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 20)
			})
		})
	})
}

func TestService_ResubmitAfterEviction(t *testing.T) {
	Convey("Given a service that remembers a single submission id", t, func() {
		svc, stop := startService(service.WithDedupeSize(1), service.WithWorkerCount(1))
		defer stop()
		ctx := context.Background()

		first, err := svc.Submit(ctx, gadSubmission("ev-a"))
		So(err, ShouldBeNil)
		_, err = waitForAssessment(svc, first.ID)
		So(err, ShouldBeNil)
		_, err = svc.Submit(ctx, gadSubmission("ev-b"))
		So(err, ShouldBeNil)

		Convey("When the evicted id is submitted again", func() {
			again, err := svc.Submit(ctx, gadSubmission("ev-a"))

			Convey("Then the receipt should point at the stored assessment", func() {
				So(err, ShouldBeNil)
				So(again.ID, ShouldEqual, first.ID)
				a, err := waitForAssessment(svc, again.ID)
				So(err, ShouldBeNil)
				So(a.SubmissionID, ShouldEqual, "ev-a")
			})
		})
	})
}
