package checker

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Report aggregates the counters of one check run. All methods are safe for
// concurrent use.
type Report struct {
	AllProcessed atomic.Int64
	NonesNew     atomic.Int64
	StockNew     atomic.Int64
	NewPrice     atomic.Int64
	NewShipPrice atomic.Int64

	errors [numErrorKinds]atomic.Int64
}

// ReportSnapshot is a point-in-time copy of a Report.
type ReportSnapshot struct {
	AllProcessed int64            `json:"all_processed"`
	NonesNew     int64            `json:"nones_new"`
	StockNew     int64            `json:"stock_new"`
	NewPrice     int64            `json:"new_price"`
	NewShipPrice int64            `json:"new_ship_price"`
	Errors       map[string]int64 `json:"errors"`
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{}
}

// AddError increments the counter of the given kind.
func (r *Report) AddError(kind ErrorKind) {
	if kind <= ErrNone || kind >= numErrorKinds {
		kind = ErrUnknown
	}
	r.errors[kind].Add(1)
}

// Errors returns the count recorded for one error kind.
func (r *Report) Errors(kind ErrorKind) int64 {
	if kind <= ErrNone || kind >= numErrorKinds {
		return 0
	}
	return r.errors[kind].Load()
}

// ApplyDelta compares the commercial fields of a row before and after a
// check and increments the change counters.
func (r *Report) ApplyDelta(prev, next Commercial) {
	if prev.Price != next.Price {
		r.NewPrice.Add(1)
	}
	if prev.Shipping != next.Shipping {
		r.NewShipPrice.Add(1)
	}
	if prev.Qty < 1 && next.Qty > 0 {
		r.StockNew.Add(1)
	}
	if prev.Qty > 0 && next.Qty < 1 {
		r.NonesNew.Add(1)
	}
}

// Merge adds every counter of other into r.
func (r *Report) Merge(other *Report) {
	r.AllProcessed.Add(other.AllProcessed.Load())
	r.NonesNew.Add(other.NonesNew.Load())
	r.StockNew.Add(other.StockNew.Load())
	r.NewPrice.Add(other.NewPrice.Load())
	r.NewShipPrice.Add(other.NewShipPrice.Load())
	for i := range r.errors {
		r.errors[i].Add(other.errors[i].Load())
	}
}

// Snapshot copies the current counter values. Every error counter is present
// in the map, including zero ones.
func (r *Report) Snapshot() ReportSnapshot {
	s := ReportSnapshot{
		AllProcessed: r.AllProcessed.Load(),
		NonesNew:     r.NonesNew.Load(),
		StockNew:     r.StockNew.Load(),
		NewPrice:     r.NewPrice.Load(),
		NewShipPrice: r.NewShipPrice.Load(),
		Errors:       make(map[string]int64, numErrorKinds-1),
	}
	for k := ErrNone + 1; k < numErrorKinds; k++ {
		s.Errors[k.CounterKey()] = r.errors[k].Load()
	}
	return s
}

// TotalErrors sums every error counter.
func (s ReportSnapshot) TotalErrors() int64 {
	var total int64
	for _, n := range s.Errors {
		total += n
	}
	return total
}

// BadInfoRatio is the share of processed rows that failed at the proxy,
// rounded to two decimals.
func (s ReportSnapshot) BadInfoRatio() float64 {
	if s.AllProcessed == 0 {
		return 0
	}
	ratio := float64(s.Errors[ErrProxy.CounterKey()]) / float64(s.AllProcessed)
	return math.Round(ratio*100) / 100
}

func (s ReportSnapshot) String() string {
	return fmt.Sprintf("processed=%d new_price=%d new_ship_price=%d stock_new=%d nones_new=%d errors=%d",
		s.AllProcessed, s.NewPrice, s.NewShipPrice, s.StockNew, s.NonesNew, s.TotalErrors())
}
