package feed

import (
	"encoding/json"
	"testing"

	"github.com/masahif/supplycheck/internal/checker"
)

func feedRow(sku string, qty int, price, handling, shipping string) *checker.Row {
	r := &checker.Row{SKU: sku, SupplierQty: qty}
	r.Set(KeyOurPrice, price)
	r.Set(KeyHandlingTime, handling)
	r.Set(KeyMerchantShipping, shipping)
	return r
}

func TestBuilderQuantity(t *testing.T) {
	b := NewBuilder(5, nil, nil)

	tests := []struct {
		qty  int
		want int
	}{
		{1, 1},
		{5, 5},
		{6, 5},
		{40, 5},
	}
	for _, tt := range tests {
		msgs := b.Messages([]*checker.Row{feedRow("A", tt.qty, "10.00", "3", "Standard")})
		if len(msgs) != 1 {
			t.Fatalf("qty %d: got %d messages", tt.qty, len(msgs))
		}
		avail := msgs[0].Patches[0].Value[0].(Availability)
		if avail.Quantity != tt.want {
			t.Errorf("qty %d: feed quantity = %d, want %d", tt.qty, avail.Quantity, tt.want)
		}
	}
}

func TestBuilderInStockMessage(t *testing.T) {
	b := NewBuilder(5, map[string]string{"standard": "uuid-standard"}, nil)
	msgs := b.Messages([]*checker.Row{feedRow("SKU-1", 2, "24.99", "4", "Standard")})
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}

	data, err := json.Marshal(msgs[0])
	if err != nil {
		t.Fatal(err)
	}
	want := `{"messageId":1,"sku":"SKU-1","operationType":"PATCH","productType":"PRODUCT","patches":[` +
		`{"op":"replace","path":"/attributes/fulfillment_availability","value":[{"fulfillment_channel_code":"DEFAULT","quantity":2,"lead_time_to_ship_max_days":4}]},` +
		`{"op":"replace","path":"/attributes/purchasable_offer","value":[{"currency":"USD","our_price":[{"schedule":[{"value_with_tax":24.99}]}]}]},` +
		`{"op":"replace","path":"/attributes/merchant_shipping_group","value":[{"value":"uuid-standard"}]}]}`
	if string(data) != want {
		t.Errorf("message =\n%s\nwant\n%s", data, want)
	}
}

func TestBuilderOutOfStockMessage(t *testing.T) {
	b := NewBuilder(5, nil, nil)
	msgs := b.Messages([]*checker.Row{feedRow("SKU-0", 0, "", "", "")})
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}

	data, err := json.Marshal(msgs[0].Patches)
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"op":"replace","path":"/attributes/fulfillment_availability","value":[{"fulfillment_channel_code":"DEFAULT","quantity":0}]}]`
	if string(data) != want {
		t.Errorf("patches = %s, want %s", data, want)
	}
}

func TestBuilderSkipsRows(t *testing.T) {
	b := NewBuilder(5, nil, []string{"REPRICED"})
	rows := []*checker.Row{
		feedRow("", 3, "1.00", "1", "g"),
		feedRow("REPRICED", 3, "1.00", "1", "g"),
		feedRow("NO-PRICE", 3, "", "1", "g"),
		feedRow("NO-HANDLING", 3, "1.00", "soon", "g"),
		feedRow("KEEP", 3, "1.00", "1", "g"),
	}

	msgs := b.Messages(rows)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].SKU != "KEEP" || msgs[0].MessageID != 5 {
		t.Errorf("message = %s/%d, want KEEP/5", msgs[0].SKU, msgs[0].MessageID)
	}
}

func TestShippingGroupLookup(t *testing.T) {
	b := NewBuilder(5, map[string]string{"Exact": "id-exact", "lower case": "id-lower"}, nil)

	tests := []struct {
		name string
		want string
	}{
		{"Exact", "id-exact"},
		{"Lower Case", "id-lower"},
		{"Unmapped", "Unmapped"},
	}
	for _, tt := range tests {
		if got := b.shippingGroup(tt.name); got != tt.want {
			t.Errorf("shippingGroup(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestLatestBySKU(t *testing.T) {
	rows := []*checker.Row{
		{SKU: "A", SupplierQty: 1},
		{SKU: "B", SupplierQty: 1},
		{SKU: ""},
		{SKU: "A", SupplierQty: 0},
	}

	got := LatestBySKU(rows)
	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3", len(got))
	}
	if got[0].SKU != "A" || got[0].SupplierQty != 0 {
		t.Errorf("first row = %+v, want the later A in first position", got[0])
	}
	if got[1].SKU != "B" || got[2].SKU != "" {
		t.Errorf("order = %s,%s", got[1].SKU, got[2].SKU)
	}
}
