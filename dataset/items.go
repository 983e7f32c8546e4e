package dataset

import (
	"sort"
	"strings"
)

// itemAliases maps alternate spellings to the canonical item name. Longer
// aliases come first so a combined name is replaced as a whole.
var itemAliases = []struct{ from, to string }{
	{"Beef Bourguignon/Boeuf Bourguignon", "Beef Bourguignon"},
	{"Boeuf Bourguignon", "Beef Bourguignon"},
}

// NormalizeItems rewrites known alternate item names in every order and
// returns the number of orders changed.
func NormalizeItems(ds *Dataset) int {
	changed := 0
	for i := range ds.Diners {
		for j := range ds.Diners[i].Reservations {
			orders := ds.Diners[i].Reservations[j].Orders
			for k := range orders {
				item := orders[k].Item
				for _, a := range itemAliases {
					item = strings.ReplaceAll(item, a.from, a.to)
				}
				if item != orders[k].Item {
					orders[k].Item = item
					changed++
				}
			}
		}
	}
	return changed
}

// ItemCount is the number of times an item was ordered.
type ItemCount struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// CountItems tallies ordered items, sorted by item name.
func CountItems(ds *Dataset) []ItemCount {
	counts := make(map[string]int)
	for _, d := range ds.Diners {
		for _, r := range d.Reservations {
			for _, o := range r.Orders {
				counts[o.Item]++
			}
		}
	}

	out := make([]ItemCount, 0, len(counts))
	for item, n := range counts {
		out = append(out, ItemCount{Item: item, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	return out
}
