// Package dataset holds the guest records that briefings are built from:
// diners with their reviews, emails and reservations.
//
// The analysis pipeline never looks inside these types. It consumes JSON
// snapshots taken with Snapshot and writes results back through
// Reservation.AgentAnalysis.
package dataset

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format of every date in the dataset.
const DateLayout = "2006-01-02"

// DefaultTime is assigned to reservations without a time.
const DefaultTime = "19:00"

// Date is a calendar day encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate returns the Date for y-m-d in UTC.
func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Before reports whether d is an earlier day than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// Review is a published review by the diner.
type Review struct {
	RestaurantName string `json:"restaurant_name"`
	Date           Date   `json:"date"`
	Rating         int    `json:"rating"`
	Content        string `json:"content"`
}

// Order is one ordered item.
type Order struct {
	Item        string   `json:"item"`
	DietaryTags []string `json:"dietary_tags"`
	Price       float64  `json:"price"`
}

// Analysis is the briefing attached to a processed reservation.
type Analysis struct {
	AgentAnalysis      map[string]map[string]any `json:"agent_analysis"`
	CoordinatorSummary map[string]any            `json:"coordinator_summary"`
}

// Reservation is a booking. AgentAnalysis is nil until the reservation has
// been processed.
type Reservation struct {
	Date           Date      `json:"date"`
	NumberOfPeople int       `json:"number_of_people"`
	Orders         []Order   `json:"orders"`
	Time           string    `json:"time"`
	AgentAnalysis  *Analysis `json:"agent_analysis,omitempty"`
}

// Email is one email thread with the diner.
type Email struct {
	Date           Date   `json:"date"`
	Subject        string `json:"subject"`
	CombinedThread string `json:"combined_thread"`
}

// Diner is one guest.
type Diner struct {
	Name         string        `json:"name"`
	Reviews      []Review      `json:"reviews"`
	Reservations []Reservation `json:"reservations"`
	Emails       []Email       `json:"emails"`
}

// Dataset is the root document.
type Dataset struct {
	Diners []Diner `json:"diners"`
}

// Snapshot returns the diner as JSON.
func (d *Diner) Snapshot() (json.RawMessage, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("snapshot diner %q: %w", d.Name, err)
	}
	return data, nil
}

// Snapshot returns the reservation as JSON.
func (r *Reservation) Snapshot() (json.RawMessage, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("snapshot reservation %s: %w", r.Date, err)
	}
	return data, nil
}

// ReservationCount returns the number of reservations across all diners.
func (ds *Dataset) ReservationCount() int {
	n := 0
	for i := range ds.Diners {
		n += len(ds.Diners[i].Reservations)
	}
	return n
}
