package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/masahif/supplycheck/internal/checker"
	"github.com/masahif/supplycheck/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

var sheetColumns = []config.Column{
	{Key: "sku", Header: "SKU"},
	{Key: "supplier_link", Header: "Supplier link"},
	{Key: "variation", Header: "Variation"},
	{Key: "supplier_price", Header: "Price"},
	{Key: "supplier_qty", Header: "Qty"},
}

func TestReadInventory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.csv")
	writeFile(t, path, "SKU,Supplier link,Variation,Price,Qty,ASIN\n"+
		"A1,https://www.ebay.com/itm/1,FALSE,12.50,3,B0001\n"+
		"A2,https://www.ebay.com/itm/2,TRUE,n/a,3.0,B0002\n"+
		"A3,,,,\n")

	rows, err := ReadInventory(path, sheetColumns)
	if err != nil {
		t.Fatalf("ReadInventory failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("ReadInventory returned %d rows, want 3", len(rows))
	}

	tests := []struct {
		name      string
		row       *checker.Row
		sku       string
		variation checker.Tristate
		price     float64
		qty       int
		asin      string
	}{
		{"plain row", rows[0], "A1", checker.False, 12.5, 3, "B0001"},
		{"legacy numbers", rows[1], "A2", checker.True, 0, 3, "B0002"},
		{"short record", rows[2], "A3", checker.Unknown, 0, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.row.SKU != tt.sku {
				t.Errorf("SKU = %q, want %q", tt.row.SKU, tt.sku)
			}
			if tt.row.Variation != tt.variation {
				t.Errorf("Variation = %v, want %v", tt.row.Variation, tt.variation)
			}
			if tt.row.SupplierPrice != tt.price {
				t.Errorf("SupplierPrice = %v, want %v", tt.row.SupplierPrice, tt.price)
			}
			if tt.row.SupplierQty != tt.qty {
				t.Errorf("SupplierQty = %d, want %d", tt.row.SupplierQty, tt.qty)
			}
			if got := tt.row.Get("ASIN"); got != tt.asin {
				t.Errorf("unmapped column ASIN = %q, want %q", got, tt.asin)
			}
		})
	}
}

func TestReadInventoryErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing link column", func(t *testing.T) {
		path := filepath.Join(dir, "nolink.csv")
		writeFile(t, path, "SKU,Price\nA1,1.00\n")
		if _, err := ReadInventory(path, sheetColumns); !errors.Is(err, ErrMissingHeader) {
			t.Errorf("error = %v, want ErrMissingHeader", err)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.csv")
		writeFile(t, path, "")
		if _, err := ReadInventory(path, sheetColumns); !errors.Is(err, ErrEmptyInventory) {
			t.Errorf("error = %v, want ErrEmptyInventory", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := ReadInventory(filepath.Join(dir, "absent.csv"), sheetColumns); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("error = %v, want os.ErrNotExist", err)
		}
	})
}

func TestCSVSinkCreatesFiles(t *testing.T) {
	dir := t.TempDir()
	cache := filepath.Join(dir, "processing", "process.csv")
	errorsFile := filepath.Join(dir, "processing", "errors.csv")
	sink := NewCSVSink(cache, errorsFile, sheetColumns)

	rows := []*checker.Row{
		{SKU: "A1", SupplierLink: "https://www.ebay.com/itm/1", Variation: checker.False, SupplierPrice: 9.5, SupplierQty: 2},
		{SKU: "A2", SupplierName: "{no_link}"},
	}
	if err := sink.SaveRows(rows); err != nil {
		t.Fatalf("SaveRows failed: %v", err)
	}
	if err := sink.SaveErrors([]checker.ErrorRecord{{SKU: "A3", ErrorType: "Item is out of stock"}}); err != nil {
		t.Fatalf("SaveErrors failed: %v", err)
	}

	wantCache := "SKU,Supplier link,Variation,Price,Qty\n" +
		"A1,https://www.ebay.com/itm/1,FALSE,9.50,2\n" +
		"A2,,,0.00,0\n"
	if got := readFile(t, cache); got != wantCache {
		t.Errorf("cache file =\n%s\nwant\n%s", got, wantCache)
	}

	wantErrors := "sku,error_type\nA3,Item is out of stock\n"
	if got := readFile(t, errorsFile); got != wantErrors {
		t.Errorf("errors file =\n%s\nwant\n%s", got, wantErrors)
	}
}

func TestCSVSinkKeepsExistingHeaderOrder(t *testing.T) {
	dir := t.TempDir()
	cache := filepath.Join(dir, "process.csv")
	writeFile(t, cache, "Qty,SKU,Notes\n")

	sink := NewCSVSink(cache, filepath.Join(dir, "errors.csv"), sheetColumns)
	row := &checker.Row{SKU: "A1", SupplierQty: 4, Extra: map[string]string{"Notes": "keep"}}
	if err := sink.SaveRows([]*checker.Row{row}); err != nil {
		t.Fatalf("SaveRows failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(readFile(t, cache)), "\n")
	if len(lines) != 2 {
		t.Fatalf("cache has %d lines, want 2", len(lines))
	}
	if lines[1] != "4,A1,keep" {
		t.Errorf("appended line = %q, want columns in existing header order", lines[1])
	}
}

func TestCSVFileAppendAcrossCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.csv")
	f := NewCSVFile(path, ErrorColumns)

	for _, sku := range []string{"A", "B"} {
		sku := sku
		err := f.Append(1, func(_ int, column string) string {
			if column == "sku" {
				return sku
			}
			return "note, with comma"
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	want := "sku,error_type\nA,\"note, with comma\"\nB,\"note, with comma\"\n"
	if got := readFile(t, path); got != want {
		t.Errorf("file =\n%s\nwant\n%s", got, want)
	}
}

func TestCSVFileRejectsEmptyExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "process.csv")
	writeFile(t, path, "")

	f := NewCSVFile(path, ErrorColumns)
	if err := f.Append(1, func(int, string) string { return "x" }); err == nil {
		t.Error("Append to a file without header succeeded")
	}
}
