// Package checkout combines purchase aggregation and delivery quoting into a
// single checkout quote.
package checkout
