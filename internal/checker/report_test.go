package checker

import (
	"encoding/json"
	"sync"
	"testing"
)

func TestReportStockTransitions(t *testing.T) {
	tests := []struct {
		name         string
		oldQty       int
		newQty       int
		wantStockNew int64
		wantNonesNew int64
	}{
		{"back in stock", 0, 5, 1, 0},
		{"went out of stock", 5, 0, 0, 1},
		{"still out of stock", 0, 0, 0, 0},
		{"still in stock", 3, 7, 0, 0},
		{"negative legacy value counts as out of stock", -1, 2, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReport()
			r.ApplyDelta(Commercial{Qty: tt.oldQty}, Commercial{Qty: tt.newQty})

			if got := r.StockNew.Load(); got != tt.wantStockNew {
				t.Errorf("StockNew = %d, want %d", got, tt.wantStockNew)
			}
			if got := r.NonesNew.Load(); got != tt.wantNonesNew {
				t.Errorf("NonesNew = %d, want %d", got, tt.wantNonesNew)
			}
		})
	}
}

func TestReportPriceDeltas(t *testing.T) {
	r := NewReport()

	r.ApplyDelta(Commercial{Price: 10, Shipping: 2}, Commercial{Price: 12, Shipping: 2})
	r.ApplyDelta(Commercial{Price: 10, Shipping: 2}, Commercial{Price: 10, Shipping: 0})
	r.ApplyDelta(Commercial{Price: 10, Shipping: 2}, Commercial{Price: 10, Shipping: 2})

	if got := r.NewPrice.Load(); got != 1 {
		t.Errorf("NewPrice = %d, want 1", got)
	}
	if got := r.NewShipPrice.Load(); got != 1 {
		t.Errorf("NewShipPrice = %d, want 1", got)
	}
}

func TestReportConcurrentIncrements(t *testing.T) {
	r := NewReport()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.AllProcessed.Add(1)
			r.AddError(ErrNotFound)
			r.ApplyDelta(Commercial{Qty: 0}, Commercial{Qty: 1})
		}()
	}
	wg.Wait()

	s := r.Snapshot()
	if s.AllProcessed != 100 || s.StockNew != 100 || s.Errors["404"] != 100 {
		t.Errorf("unexpected snapshot after concurrent updates: %+v", s)
	}
}

func TestReportMergeAndSnapshot(t *testing.T) {
	a := NewReport()
	a.AllProcessed.Add(2)
	a.AddError(ErrProxy)

	b := NewReport()
	b.AllProcessed.Add(3)
	b.NewPrice.Add(1)
	b.AddError(ErrProxy)
	b.AddError(ErrTimeout)

	a.Merge(b)
	s := a.Snapshot()

	if s.AllProcessed != 5 {
		t.Errorf("AllProcessed = %d, want 5", s.AllProcessed)
	}
	if s.NewPrice != 1 {
		t.Errorf("NewPrice = %d, want 1", s.NewPrice)
	}
	if s.Errors["proxy_errors"] != 2 {
		t.Errorf("proxy_errors = %d, want 2", s.Errors["proxy_errors"])
	}
	if s.Errors["time_out_errors"] != 1 {
		t.Errorf("time_out_errors = %d, want 1", s.Errors["time_out_errors"])
	}
	if _, ok := s.Errors["404"]; !ok {
		t.Errorf("zero counters should still be present in the snapshot")
	}
	if s.TotalErrors() != 3 {
		t.Errorf("TotalErrors() = %d, want 3", s.TotalErrors())
	}
	if got := s.BadInfoRatio(); got != 0.4 {
		t.Errorf("BadInfoRatio() = %v, want 0.4", got)
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	for _, key := range []string{"all_processed", "nones_new", "stock_new", "new_price", "new_ship_price", "errors"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("snapshot JSON lacks %q", key)
		}
	}
}

func TestReportAddErrorOutOfRange(t *testing.T) {
	r := NewReport()
	r.AddError(ErrNone)
	r.AddError(ErrorKind(99))

	if got := r.Errors(ErrUnknown); got != 2 {
		t.Errorf("unknown = %d, want 2", got)
	}
}
