// Package reorder computes purchase recommendations from sales velocity
// and current batch stock, and turns them into draft purchase orders.
package reorder

import (
	"fmt"
	"sort"
	"time"

	"pharmstock/internal/core/id"
	"pharmstock/internal/core/types"
)

// Priority classifies how urgently a product needs replenishment.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
)

// Rank returns the sort rank of the priority, lower is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	default:
		return 2
	}
}

// ABCClass is the revenue-based product classification.
type ABCClass string

const (
	ClassA ABCClass = "A"
	ClassB ABCClass = "B"
	ClassC ABCClass = "C"
)

// Status tracks the lifecycle of a logged recommendation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPOCreated Status = "po_created"
	StatusOrdered   Status = "ordered"
	StatusReceived  Status = "received"
)

// DaysOfSupplySentinel is reported when a product has stock but no
// measurable sales velocity, meaning supply effectively never runs out.
const DaysOfSupplySentinel = 999.0

// Basis explains which calculation path produced a recommendation.
// Exactly one of the two concrete types is set on every Recommendation.
type Basis interface {
	isBasis()
	Reason() string
}

// NoHistoryBasis marks a recommendation derived from the minimum stock
// level because the product had no sales in the analysis window.
type NoHistoryBasis struct {
	MinLevel types.Quantity
}

func (NoHistoryBasis) isBasis() {}

func (NoHistoryBasis) Reason() string {
	return "No sales history - based on min stock level"
}

// HistoricalBasis marks a recommendation derived from measured velocity.
type HistoricalBasis struct {
	AvgDailySales float64
	Class         ABCClass
}

func (HistoricalBasis) isBasis() {}

func (b HistoricalBasis) Reason() string {
	return fmt.Sprintf("Selling %.2f units/day (class %s)", b.AvgDailySales, b.Class)
}

// Recommendation is a single product that should be reordered.
type Recommendation struct {
	ID          id.ID
	RunID       id.ID
	ProductID   id.ID
	SKU         string
	ProductName string
	SupplierID  *id.ID

	CurrentStock   types.Quantity
	ReorderPoint   int64
	RecommendedQty int64
	DaysOfSupply   float64
	Priority       Priority
	ABCClass       ABCClass
	EstimatedCost  types.Money
	Basis          Basis

	Status      Status
	GeneratedAt time.Time
}

// Reason is a human-readable explanation of why the product was flagged.
func (r Recommendation) Reason() string {
	if r.Basis == nil {
		return ""
	}
	return r.Basis.Reason()
}

// SortByUrgency orders recommendations most urgent first: by priority rank,
// then by days of supply ascending.
func SortByUrgency(recs []Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		ri, rj := recs[i], recs[j]
		if ri.Priority.Rank() != rj.Priority.Rank() {
			return ri.Priority.Rank() < rj.Priority.Rank()
		}
		return ri.DaysOfSupply < rj.DaysOfSupply
	})
}
