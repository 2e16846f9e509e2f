package purchase

import (
	"iter"

	"github.com/shopspring/decimal"
)

// Groups maps business ids to their purchases. Iteration follows the order in
// which businesses were first added.
type Groups struct {
	keys   []string
	groups map[string][]CalculatedPurchase
}

func newGroups() *Groups {
	return &Groups{groups: make(map[string][]CalculatedPurchase)}
}

func (g *Groups) add(businessID string, p CalculatedPurchase) {
	if _, ok := g.groups[businessID]; !ok {
		g.keys = append(g.keys, businessID)
	}
	g.groups[businessID] = append(g.groups[businessID], p)
}

// Len returns the number of businesses.
func (g *Groups) Len() int {
	return len(g.keys)
}

// Keys returns the business ids in first-seen order.
func (g *Groups) Keys() []string {
	out := make([]string, len(g.keys))
	copy(out, g.keys)
	return out
}

// Get returns the purchases of a business.
func (g *Groups) Get(businessID string) []CalculatedPurchase {
	return g.groups[businessID]
}

// All iterates over the groups in first-seen order.
func (g *Groups) All() iter.Seq2[string, []CalculatedPurchase] {
	return func(yield func(string, []CalculatedPurchase) bool) {
		for _, k := range g.keys {
			if !yield(k, g.groups[k]) {
				return
			}
		}
	}
}

// Count returns the total number of purchases across all businesses.
func (g *Groups) Count() int {
	n := 0
	for _, ps := range g.groups {
		n += len(ps)
	}
	return n
}

// Subtotal sums the discounted prices of all purchases.
func (g *Groups) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, ps := range g.groups {
		for _, p := range ps {
			sum = sum.Add(p.DiscountPrice)
		}
	}
	return sum
}
