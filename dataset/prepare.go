package dataset

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"sort"
	"strings"
)

// TastingMenu is the item that marks a tasting-menu reservation. It also
// counts as a main course.
const TastingMenu = "Chef's Tasting Menu"

// SlotCapacity is the number of covers a single time slot can seat.
const SlotCapacity = 15

// Time slots run every 30 minutes from 18:00 to 22:00. Prime slots are
// offered to tasting-menu reservations first.
var (
	timeSlots  = []string{"18:00", "18:30", "19:00", "19:30", "20:00", "20:30", "21:00", "21:30", "22:00"}
	primeSlots = []string{"19:00", "19:30", "20:00"}
)

// Menu lists the dishes of the restaurant by course.
type Menu struct {
	Appetizers []string
	Mains      []string
	Desserts   []string
}

// DefaultMenu is used when no menu file is given.
func DefaultMenu() Menu {
	return Menu{
		Appetizers: []string{"Escargots", "Foie Gras", "Salmon Tartare", "Lobster Bisque", "Salade Niçoise"},
		Mains:      []string{"Beef Bourguignon", "Boeuf Bourguignon", "Coq au Vin", "Duck Confit", "Rabbit Roulade", "Salmon en Papillote"},
		Desserts:   []string{"Chocolate Soufflé", "Crème Brûlée"},
	}
}

// ParseMenu reads a menu listing of the form
//
//	Appetizers/Starters:
//	- Escargots (garlic butter)
//	Main Courses:
//	- Coq au Vin
//	Desserts:
//	- Crème Brûlée
//
// Anything in parentheses after an item name is ignored.
func ParseMenu(r io.Reader) (Menu, error) {
	var m Menu
	var current *[]string

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.Contains(line, "Appetizers/Starters:"):
			current = &m.Appetizers
		case strings.Contains(line, "Main Courses:"):
			current = &m.Mains
		case strings.Contains(line, "Desserts:"):
			current = &m.Desserts
		case strings.HasPrefix(line, "- ") && current != nil:
			item, _, _ := strings.Cut(line[2:], " (")
			if item = strings.TrimSpace(item); item != "" {
				*current = append(*current, item)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return Menu{}, fmt.Errorf("read menu: %w", err)
	}
	if len(m.Mains) == 0 {
		return Menu{}, fmt.Errorf("%w: menu has no main courses", ErrInvalid)
	}
	return m, nil
}

// IsMain reports whether item is a main course or the tasting menu.
func (m Menu) IsMain(item string) bool {
	return item == TastingMenu || slices.Contains(m.Mains, item)
}

// Prices used when a main course has never been ordered before.
var defaultPrices = map[string]float64{
	"Beef Bourguignon":    58.0,
	"Boeuf Bourguignon":   58.0,
	"Coq au Vin":          46.0,
	"Duck Confit":         45.0,
	"Rabbit Roulade":      62.0,
	"Salmon en Papillote": 42.0,
}

const fallbackPrice = 50.0

// Preparer fills in the parts of a raw dataset that briefings rely on:
// a main course for every ordering reservation and a seating time.
type Preparer struct {
	Menu   Menu
	Rand   *rand.Rand
	Logger *slog.Logger
}

// NewPreparer returns a Preparer seeded with seed.
func NewPreparer(menu Menu, seed uint64, logger *slog.Logger) *Preparer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Preparer{
		Menu:   menu,
		Rand:   rand.New(rand.NewPCG(seed, seed)),
		Logger: logger,
	}
}

// EnsureMainCourse adds a random main course to every reservation that has
// orders but none of them is a main. The added order carries the union of
// the reservation's dietary tags and the mean historical price of the dish.
// It returns the number of orders added.
func (p *Preparer) EnsureMainCourse(ds *Dataset) int {
	if len(p.Menu.Mains) == 0 {
		return 0
	}
	prices := historicalPrices(ds)

	added := 0
	for i := range ds.Diners {
		for j := range ds.Diners[i].Reservations {
			res := &ds.Diners[i].Reservations[j]
			if len(res.Orders) == 0 || slices.ContainsFunc(res.Orders, func(o Order) bool { return p.Menu.IsMain(o.Item) }) {
				continue
			}

			dish := p.Menu.Mains[p.Rand.IntN(len(p.Menu.Mains))]
			res.Orders = append(res.Orders, Order{
				Item:        dish,
				DietaryTags: mergeTags(res.Orders),
				Price:       p.price(prices, dish),
			})
			added++
		}
	}
	return added
}

func (p *Preparer) price(prices map[string][]float64, item string) float64 {
	if seen := prices[item]; len(seen) > 0 {
		var sum float64
		for _, v := range seen {
			sum += v
		}
		return math.Round(sum/float64(len(seen))*100) / 100
	}
	if v, ok := defaultPrices[item]; ok {
		p.Logger.Warn("no order history for main course, using list price", "item", item, "price", v)
		return v
	}
	p.Logger.Warn("no order history or list price for main course, using fallback", "item", item, "price", fallbackPrice)
	return fallbackPrice
}

func historicalPrices(ds *Dataset) map[string][]float64 {
	prices := make(map[string][]float64)
	for _, d := range ds.Diners {
		for _, r := range d.Reservations {
			for _, o := range r.Orders {
				prices[o.Item] = append(prices[o.Item], o.Price)
			}
		}
	}
	return prices
}

func mergeTags(orders []Order) []string {
	tags := []string{}
	for _, o := range orders {
		for _, t := range o.DietaryTags {
			if !slices.Contains(tags, t) {
				tags = append(tags, t)
			}
		}
	}
	sort.Strings(tags)
	return tags
}

func hasTastingMenu(r *Reservation) bool {
	return slices.ContainsFunc(r.Orders, func(o Order) bool { return o.Item == TastingMenu })
}

// SlotUsage is the load of one time slot after assignment.
type SlotUsage struct {
	Slot         string
	Reservations int
	People       int
}

// AssignTimeSlots gives every reservation a seating time.
//
// Tasting-menu reservations are placed first, into a prime slot with room
// if there is one. The rest follow from the largest party down, into the
// earliest slot with room. A party that fits nowhere goes to the least
// occupied slot. The result lists the used slots in time order.
func (p *Preparer) AssignTimeSlots(ds *Dataset) []SlotUsage {
	var all []*Reservation
	for i := range ds.Diners {
		for j := range ds.Diners[i].Reservations {
			all = append(all, &ds.Diners[i].Reservations[j])
		}
	}
	sort.SliceStable(all, func(a, b int) bool {
		ta, tb := hasTastingMenu(all[a]), hasTastingMenu(all[b])
		if ta != tb {
			return ta
		}
		return all[a].NumberOfPeople > all[b].NumberOfPeople
	})

	occupancy := make(map[string]int, len(timeSlots))
	place := func(r *Reservation, slot string) {
		r.Time = slot
		occupancy[slot] += r.NumberOfPeople
	}
	fits := func(r *Reservation, slot string) bool {
		return occupancy[slot]+r.NumberOfPeople <= SlotCapacity
	}

	prime := slices.Clone(primeSlots)
	for _, r := range all {
		if hasTastingMenu(r) {
			p.Rand.Shuffle(len(prime), func(i, j int) { prime[i], prime[j] = prime[j], prime[i] })
			if i := slices.IndexFunc(prime, func(s string) bool { return fits(r, s) }); i >= 0 {
				place(r, prime[i])
				continue
			}
		}
		if i := slices.IndexFunc(timeSlots, func(s string) bool { return fits(r, s) }); i >= 0 {
			place(r, timeSlots[i])
			continue
		}
		least := timeSlots[0]
		for _, s := range timeSlots[1:] {
			if occupancy[s] < occupancy[least] {
				least = s
			}
		}
		place(r, least)
	}

	return SlotSummary(ds)
}

// SlotSummary reports reservations and covers per time.
func SlotSummary(ds *Dataset) []SlotUsage {
	bySlot := make(map[string]*SlotUsage)
	for _, d := range ds.Diners {
		for _, r := range d.Reservations {
			if r.Time == "" {
				continue
			}
			u, ok := bySlot[r.Time]
			if !ok {
				u = &SlotUsage{Slot: r.Time}
				bySlot[r.Time] = u
			}
			u.Reservations++
			u.People += r.NumberOfPeople
		}
	}

	out := make([]SlotUsage, 0, len(bySlot))
	for _, u := range bySlot {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}
