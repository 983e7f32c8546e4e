package driver

import (
	"fmt"
	"time"

	"github.com/scttfrdmn/agenkit/huddle-go/dataset"
	"github.com/scttfrdmn/agenkit/huddle-go/middleware"
)

// State is the lifecycle state of one reservation in a run.
type State int

const (
	// Pending tasks have not started.
	Pending State = iota
	// InFlight tasks are being analyzed.
	InFlight
	// Analyzed tasks have a briefing with no error results.
	Analyzed
	// Partial tasks have a briefing in which at least one result is an
	// error placeholder.
	Partial
	// Failed tasks have no briefing.
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case InFlight:
		return "in_flight"
	case Analyzed:
		return "analyzed"
	case Partial:
		return "partial"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Analyzed || s == Partial || s == Failed
}

// OrchestrationError is a failure of one reservation task as a whole. The
// reservation is left without analysis; the run continues.
type OrchestrationError struct {
	Diner string
	Date  dataset.Date
	Err   error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("error processing reservation for %s on %s: %v", e.Diner, e.Date, e.Err)
}

func (e *OrchestrationError) Unwrap() error {
	return e.Err
}

// TaskReport is the outcome of one reservation.
type TaskReport struct {
	DinerIndex       int
	ReservationIndex int
	Diner            string
	Date             dataset.Date
	State            State
	Err              error
}

// Report summarizes a run.
type Report struct {
	RunID    string
	Started  time.Time
	Elapsed  time.Duration
	Tasks    []TaskReport
	Analyzed int
	Partial  int
	Failed   int
	Metrics  middleware.Snapshot
}

// Total returns the number of planned reservations.
func (r *Report) Total() int {
	return len(r.Tasks)
}

// Errors returns the task errors in plan order.
func (r *Report) Errors() []error {
	var errs []error
	for _, t := range r.Tasks {
		if t.Err != nil {
			errs = append(errs, t.Err)
		}
	}
	return errs
}

// PerReservation returns the mean elapsed time per planned reservation.
func (r *Report) PerReservation() time.Duration {
	if len(r.Tasks) == 0 {
		return 0
	}
	return r.Elapsed / time.Duration(len(r.Tasks))
}
