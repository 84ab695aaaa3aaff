package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/masahif/supplycheck/internal/checker"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "supplycheck.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	store := newTestStore(t)

	t.Run("SaveBeforeBeginRun", func(t *testing.T) {
		if err := store.SaveRows([]*checker.Row{{SKU: "A"}}); !errors.Is(err, ErrNoRun) {
			t.Errorf("SaveRows before BeginRun error = %v, want ErrNoRun", err)
		}
		if err := store.SaveErrors([]checker.ErrorRecord{{SKU: "A"}}); !errors.Is(err, ErrNoRun) {
			t.Errorf("SaveErrors before BeginRun error = %v, want ErrNoRun", err)
		}
	})

	runID, err := store.BeginRun("demo-shop")
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if runID == "" {
		t.Fatal("BeginRun returned an empty run id")
	}

	t.Run("SaveAndReadRows", func(t *testing.T) {
		rows := []*checker.Row{
			{
				SKU:              "SKU-2",
				SupplierLink:     "https://www.ebay.com/itm/2",
				Variation:        checker.False,
				SupplierPrice:    19.99,
				SupplierShipping: 4.5,
				SupplierQty:      3,
				SupplierName:     "seller",
				SupplierDays:     "4days",
				Extra:            map[string]string{"asin": "B000TEST"},
			},
			{SKU: "SKU-1", SupplierLink: "https://www.ebay.com/itm/1", SupplierName: "{out_of_stock}"},
		}
		if err := store.SaveRows(rows); err != nil {
			t.Fatalf("SaveRows failed: %v", err)
		}

		got, err := store.Rows(runID)
		if err != nil {
			t.Fatalf("Rows failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("Rows returned %d rows, want 2", len(got))
		}
		if got[0].SKU != "SKU-1" || got[1].SKU != "SKU-2" {
			t.Errorf("rows not ordered by SKU: %s, %s", got[0].SKU, got[1].SKU)
		}

		r := got[1]
		if r.SupplierPrice != 19.99 || r.SupplierShipping != 4.5 || r.SupplierQty != 3 {
			t.Errorf("commercial fields = %v/%v/%d", r.SupplierPrice, r.SupplierShipping, r.SupplierQty)
		}
		if r.Variation != checker.False {
			t.Errorf("Variation = %v, want FALSE", r.Variation)
		}
		if r.Extra["asin"] != "B000TEST" {
			t.Errorf("Extra = %v", r.Extra)
		}
		if got[0].Extra != nil {
			t.Errorf("row without extra columns decoded Extra = %v", got[0].Extra)
		}
	})

	t.Run("UpsertBySKU", func(t *testing.T) {
		if err := store.SaveRows([]*checker.Row{{SKU: "SKU-1", SupplierQty: 7}}); err != nil {
			t.Fatalf("SaveRows failed: %v", err)
		}
		got, err := store.Rows(runID)
		if err != nil {
			t.Fatalf("Rows failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("Rows returned %d rows after upsert, want 2", len(got))
		}
		if got[0].SupplierQty != 7 {
			t.Errorf("SKU-1 qty = %d, want the later write", got[0].SupplierQty)
		}
	})

	t.Run("SaveErrors", func(t *testing.T) {
		records := []checker.ErrorRecord{
			{SKU: "SKU-1", ErrorType: "Item is out of stock"},
			{SKU: "SKU-3", ErrorType: "Supplier does not ship to USA"},
		}
		if err := store.SaveErrors(records); err != nil {
			t.Fatalf("SaveErrors failed: %v", err)
		}
		got, err := store.Errors(runID)
		if err != nil {
			t.Fatalf("Errors failed: %v", err)
		}
		if len(got) != 2 || got[0] != records[0] || got[1] != records[1] {
			t.Errorf("Errors = %v, want %v", got, records)
		}
	})

	t.Run("FinishRunAndReport", func(t *testing.T) {
		if _, err := store.Report(runID); !errors.Is(err, ErrRunNotFinished) {
			t.Errorf("Report before FinishRun error = %v, want ErrRunNotFinished", err)
		}

		report := checker.NewReport()
		report.AllProcessed.Add(10)
		report.NonesNew.Add(2)
		report.AddError(checker.ErrProxy)
		if err := store.FinishRun(report.Snapshot()); err != nil {
			t.Fatalf("FinishRun failed: %v", err)
		}

		snap, err := store.Report(runID)
		if err != nil {
			t.Fatalf("Report failed: %v", err)
		}
		if snap.AllProcessed != 10 || snap.NonesNew != 2 {
			t.Errorf("report counters = %+v", snap)
		}
		if snap.Errors[checker.ErrProxy.CounterKey()] != 1 {
			t.Errorf("proxy errors = %d, want 1", snap.Errors[checker.ErrProxy.CounterKey()])
		}
	})

	t.Run("UnknownRun", func(t *testing.T) {
		if _, err := store.Report("missing"); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("Report(missing) error = %v, want ErrRunNotFound", err)
		}
	})

	t.Run("LastRunID", func(t *testing.T) {
		last, err := store.LastRunID()
		if err != nil {
			t.Fatalf("LastRunID failed: %v", err)
		}
		if last != runID {
			t.Errorf("LastRunID = %q, want %q", last, runID)
		}
	})
}

func TestSQLiteStoreRunsAreSeparate(t *testing.T) {
	store := newTestStore(t)

	first, err := store.BeginRun("shop")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SaveRows([]*checker.Row{{SKU: "A", SupplierQty: 1}}); err != nil {
		t.Fatal(err)
	}

	second, err := store.BeginRun("shop")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatalf("BeginRun returned the same id twice: %s", first)
	}
	if err := store.SaveRows([]*checker.Row{{SKU: "A", SupplierQty: 0}}); err != nil {
		t.Fatal(err)
	}

	rows, err := store.Rows(first)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].SupplierQty != 1 {
		t.Errorf("first run rows = %+v, want the first write untouched", rows)
	}
}

func TestMetaOperations(t *testing.T) {
	store := newTestStore(t)

	value, err := store.GetMeta("missing")
	if err != nil {
		t.Fatalf("GetMeta failed: %v", err)
	}
	if value != "" {
		t.Errorf("GetMeta(missing) = %q, want empty", value)
	}

	if err := store.SetMeta("k", "v1"); err != nil {
		t.Fatalf("SetMeta failed: %v", err)
	}
	if err := store.SetMeta("k", "v2"); err != nil {
		t.Fatalf("SetMeta overwrite failed: %v", err)
	}
	value, err = store.GetMeta("k")
	if err != nil {
		t.Fatalf("GetMeta failed: %v", err)
	}
	if value != "v2" {
		t.Errorf("GetMeta(k) = %q, want v2", value)
	}
}
