package observability

import (
	"fmt"
	"io"
	"slices"

	"github.com/fatih/color"
	"gonum.org/v1/gonum/stat"

	"github.com/scttfrdmn/agenkit/huddle-go/budget"
	"github.com/scttfrdmn/agenkit/huddle-go/driver"
)

// Summary is the numeric content of the end-of-run report.
type Summary struct {
	Seconds        float64
	Reservations   int
	PerReservation float64
	Analyzed       int
	Partial        int
	Failed         int

	Calls     int64
	Errors    int64
	Retries   int64
	CacheHits int64

	LatencyAvg float64
	LatencyMin float64
	LatencyMax float64
	LatencyStd float64
	LatencyP50 float64
	LatencyP95 float64

	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	Cost             budget.Cost
}

// Summarize derives the report numbers from a run. Latency statistics are in
// seconds and are zero when no call succeeded.
func Summarize(r *driver.Report, pricing *budget.ModelPricing, model string) Summary {
	m := r.Metrics
	s := Summary{
		Seconds:          r.Elapsed.Seconds(),
		Reservations:     r.Total(),
		PerReservation:   r.PerReservation().Seconds(),
		Analyzed:         r.Analyzed,
		Partial:          r.Partial,
		Failed:           r.Failed,
		Calls:            m.Calls,
		Errors:           m.Errors,
		Retries:          m.Retries,
		CacheHits:        m.CacheHits,
		PromptTokens:     m.PromptTokens,
		CompletionTokens: m.CompletionTokens,
		TotalTokens:      m.TotalTokens,
	}
	if pricing != nil {
		s.Cost = pricing.Estimate(model, m.Usage())
	}

	if len(m.Latencies) == 0 {
		return s
	}
	secs := make([]float64, len(m.Latencies))
	for i, d := range m.Latencies {
		secs[i] = d.Seconds()
	}
	slices.Sort(secs)

	s.LatencyAvg = stat.Mean(secs, nil)
	s.LatencyMin = secs[0]
	s.LatencyMax = secs[len(secs)-1]
	if len(secs) > 1 {
		s.LatencyStd = stat.StdDev(secs, nil)
	}
	s.LatencyP50 = stat.Quantile(0.50, stat.Empirical, secs, nil)
	s.LatencyP95 = stat.Quantile(0.95, stat.Empirical, secs, nil)
	return s
}

// WriteSummary prints the end-of-run report to w.
func WriteSummary(w io.Writer, r *driver.Report, pricing *budget.ModelPricing, model string) {
	s := Summarize(r, pricing, model)
	heading := color.New(color.FgCyan, color.Bold)
	warn := color.New(color.FgYellow)
	bad := color.New(color.FgRed)

	heading.Fprintln(w, "\n===== Performance Summary =====")
	fmt.Fprintf(w, "Run ID: %s\n", r.RunID)
	fmt.Fprintf(w, "Total processing time: %.2f seconds\n", s.Seconds)
	fmt.Fprintf(w, "Reservations processed: %d\n", s.Reservations)
	fmt.Fprintf(w, "Average time per reservation: %.2f seconds\n", s.PerReservation)
	fmt.Fprintf(w, "Analyzed: %d\n", s.Analyzed)
	if s.Partial > 0 {
		warn.Fprintf(w, "Partial: %d\n", s.Partial)
	} else {
		fmt.Fprintf(w, "Partial: %d\n", s.Partial)
	}
	if s.Failed > 0 {
		bad.Fprintf(w, "Failed: %d\n", s.Failed)
	} else {
		fmt.Fprintf(w, "Failed: %d\n", s.Failed)
	}

	heading.Fprintln(w, "\n===== API Calls =====")
	fmt.Fprintf(w, "Total API calls: %d\n", s.Calls)
	fmt.Fprintf(w, "Failed attempts: %d\n", s.Errors)
	fmt.Fprintf(w, "Retries: %d\n", s.Retries)
	if s.CacheHits > 0 {
		fmt.Fprintf(w, "Cache hits: %d\n", s.CacheHits)
	}
	fmt.Fprintf(w, "Average API call time: %.2f seconds\n", s.LatencyAvg)
	fmt.Fprintf(w, "Min API call time: %.2f seconds\n", s.LatencyMin)
	fmt.Fprintf(w, "Max API call time: %.2f seconds\n", s.LatencyMax)
	fmt.Fprintf(w, "p50 / p95 API call time: %.2f / %.2f seconds (stddev %.2f)\n", s.LatencyP50, s.LatencyP95, s.LatencyStd)

	heading.Fprintln(w, "\n===== Token Usage =====")
	fmt.Fprintf(w, "Prompt tokens: %d\n", s.PromptTokens)
	fmt.Fprintf(w, "Completion tokens: %d\n", s.CompletionTokens)
	fmt.Fprintf(w, "Total tokens: %d\n", s.TotalTokens)
	if pricing != nil {
		fmt.Fprintf(w, "Estimated cost: $%.2f\n", s.Cost.Total())
	}
}
