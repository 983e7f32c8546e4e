// Package driver runs the briefing pipeline over a whole dataset.
//
// Reservations are flattened into an ordered task list, processed by a
// bounded pool of goroutines, and merged back into the dataset by their
// original position. Only the goroutine that called Run writes to the
// dataset.
package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/scttfrdmn/agenkit/huddle-go/dataset"
	"github.com/scttfrdmn/agenkit/huddle-go/middleware"
	"github.com/scttfrdmn/agenkit/huddle-go/patterns"
)

// DefaultWorkers is the default number of reservations processed at once.
const DefaultWorkers = 8

// Processor analyzes one reservation. *patterns.Pipeline satisfies it.
type Processor interface {
	Process(ctx context.Context, diner, reservation json.RawMessage) patterns.Analysis
}

// Policy selects the reservations to analyze.
type Policy func(r *dataset.Reservation, today dataset.Date) bool

// AllReservations schedules every reservation.
func AllReservations(*dataset.Reservation, dataset.Date) bool {
	return true
}

// UpcomingOnly schedules reservations dated today or later.
func UpcomingOnly(r *dataset.Reservation, today dataset.Date) bool {
	return !r.Date.Before(today)
}

// Task addresses one reservation together with the snapshots the pipeline
// reads.
type Task struct {
	DinerIndex       int
	ReservationIndex int
	Diner            string
	Date             dataset.Date

	diner       json.RawMessage
	reservation json.RawMessage
}

// Driver dispatches reservation tasks.
type Driver struct {
	processor Processor
	workers   int
	policy    Policy
	logger    *slog.Logger
	tracer    trace.Tracer
	registry  *middleware.Registry
	now       func() time.Time
	newID     func() string
}

// Option configures a Driver.
type Option func(*Driver)

// WithWorkers sets the maximum number of concurrent reservations.
func WithWorkers(n int) Option {
	return func(d *Driver) {
		d.workers = n
	}
}

// WithPolicy sets the scheduling policy.
func WithPolicy(p Policy) Option {
	return func(d *Driver) {
		d.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = l
	}
}

// WithTracer sets the tracer. Defaults to the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(d *Driver) {
		d.tracer = t
	}
}

// WithRegistry sets the registry whose snapshot is attached to the report.
func WithRegistry(r *middleware.Registry) Option {
	return func(d *Driver) {
		d.registry = r
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		d.now = now
	}
}

// New creates a driver around processor.
func New(processor Processor, opts ...Option) *Driver {
	d := &Driver{
		processor: processor,
		workers:   DefaultWorkers,
		policy:    AllReservations,
		logger:    slog.Default(),
		tracer:    otel.Tracer("huddle/driver"),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.workers <= 0 {
		d.workers = DefaultWorkers
	}
	if d.policy == nil {
		d.policy = AllReservations
	}
	return d
}

// Plan lists the scheduled reservations in dataset order and snapshots
// each diner and reservation.
func (d *Driver) Plan(ds *dataset.Dataset) ([]Task, error) {
	t := d.now().UTC()
	today := dataset.NewDate(t.Year(), t.Month(), t.Day())

	var tasks []Task
	for i := range ds.Diners {
		diner := &ds.Diners[i]
		var dinerSnap json.RawMessage
		for j := range diner.Reservations {
			res := &diner.Reservations[j]
			if !d.policy(res, today) {
				continue
			}
			if dinerSnap == nil {
				snap, err := diner.Snapshot()
				if err != nil {
					return nil, err
				}
				dinerSnap = snap
			}
			resSnap, err := res.Snapshot()
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, Task{
				DinerIndex:       i,
				ReservationIndex: j,
				Diner:            diner.Name,
				Date:             res.Date,
				diner:            dinerSnap,
				reservation:      resSnap,
			})
		}
	}
	return tasks, nil
}

// event is sent by task goroutines to the draining goroutine.
type event struct {
	index    int
	started  bool
	analysis patterns.Analysis
	err      error
}

// Run analyzes every planned reservation and merges the results into ds.
//
// A failing task never stops its siblings. When ctx is cancelled, tasks
// that have not started are reported Failed and Run returns the context
// error alongside the report.
func (d *Driver) Run(ctx context.Context, ds *dataset.Dataset) (*Report, error) {
	report := &Report{RunID: d.newID(), Started: d.now()}
	logger := d.logger.With("run_id", report.RunID)

	ctx, span := d.tracer.Start(ctx, "huddle.run", trace.WithAttributes(
		attribute.String("run.id", report.RunID),
		attribute.Int("run.workers", d.workers),
	))
	defer span.End()

	tasks, err := d.Plan(ds)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("plan run: %w", err)
	}
	span.SetAttributes(attribute.Int("run.reservations", len(tasks)))
	logger.InfoContext(ctx, "found reservations to process", "count", len(tasks), "workers", d.workers)

	report.Tasks = make([]TaskReport, len(tasks))
	for i, t := range tasks {
		report.Tasks[i] = TaskReport{
			DinerIndex:       t.DinerIndex,
			ReservationIndex: t.ReservationIndex,
			Diner:            t.Diner,
			Date:             t.Date,
			State:            Pending,
		}
	}

	events := make(chan event)
	go d.dispatch(ctx, tasks, events)

	done := 0
	for ev := range events {
		tr := &report.Tasks[ev.index]
		if ev.started {
			tr.State = InFlight
			continue
		}

		done++
		if ev.err != nil {
			tr.State = Failed
			tr.Err = &OrchestrationError{Diner: tr.Diner, Date: tr.Date, Err: ev.err}
			report.Failed++
			logger.ErrorContext(ctx, "error processing reservation",
				"diner", tr.Diner, "date", tr.Date.String(), "error", ev.err)
			continue
		}

		ds.Diners[tr.DinerIndex].Reservations[tr.ReservationIndex].AgentAnalysis = toAnalysis(ev.analysis)
		if ev.analysis.Partial() {
			tr.State = Partial
			report.Partial++
		} else {
			tr.State = Analyzed
			report.Analyzed++
		}
		logger.InfoContext(ctx, "processed reservation",
			"progress", fmt.Sprintf("%d/%d", done, len(tasks)),
			"diner", tr.Diner, "date", tr.Date.String(), "state", tr.State.String())
	}

	report.Elapsed = d.now().Sub(report.Started)
	if d.registry != nil {
		report.Metrics = d.registry.Snapshot()
	}
	span.SetAttributes(
		attribute.Int("run.analyzed", report.Analyzed),
		attribute.Int("run.partial", report.Partial),
		attribute.Int("run.failed", report.Failed),
	)
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return report, fmt.Errorf("run %s interrupted: %w", report.RunID, err)
	}
	return report, nil
}

// dispatch starts tasks on a bounded group and closes events once every
// task has reported.
func (d *Driver) dispatch(ctx context.Context, tasks []Task, events chan<- event) {
	defer close(events)

	g := new(errgroup.Group)
	g.SetLimit(d.workers)
	for i, t := range tasks {
		if err := ctx.Err(); err != nil {
			events <- event{index: i, err: fmt.Errorf("not started: %w", err)}
			continue
		}
		g.Go(func() error {
			// Cancellation may arrive while waiting for a free worker.
			if err := ctx.Err(); err != nil {
				events <- event{index: i, err: fmt.Errorf("not started: %w", err)}
				return nil
			}
			events <- event{index: i, started: true}
			events <- d.runTask(ctx, i, t)
			return nil
		})
	}
	_ = g.Wait()
}

// runTask processes one reservation, converting a panic into an error.
func (d *Driver) runTask(ctx context.Context, i int, t Task) (ev event) {
	ev.index = i

	ctx, span := d.tracer.Start(ctx, "huddle.reservation", trace.WithAttributes(
		attribute.String("diner.name", t.Diner),
		attribute.String("reservation.date", t.Date.String()),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			ev.err = fmt.Errorf("panic: %v", r)
			d.logger.ErrorContext(ctx, "reservation task panicked", "diner", t.Diner, "panic", r, "stack", string(debug.Stack()))
			span.RecordError(ev.err)
			span.SetStatus(codes.Error, ev.err.Error())
		}
	}()

	ev.analysis = d.processor.Process(ctx, t.diner, t.reservation)
	if ev.analysis.Partial() {
		span.SetAttributes(attribute.Bool("reservation.partial", true))
	}
	return ev
}

func toAnalysis(a patterns.Analysis) *dataset.Analysis {
	bundle := make(map[string]map[string]any, len(a.Bundle))
	for name, r := range a.Bundle {
		bundle[name] = r
	}
	return &dataset.Analysis{
		AgentAnalysis:      bundle,
		CoordinatorSummary: a.Briefing,
	}
}
