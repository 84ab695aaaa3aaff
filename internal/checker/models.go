package checker

import (
	"strconv"
	"strings"

	"github.com/masahif/supplycheck/internal/parser"
)

// Column keys of the core row fields. Supplier attribute keys are shared
// with the parser field keys.
const (
	KeySKU          = "sku"
	KeySupplierLink = "supplier_link"
	KeyVariation    = "variation"
)

// Tristate is a boolean that may be unknown.
type Tristate int

const (
	Unknown Tristate = iota
	False
	True
)

// ParseTristate reads "TRUE"/"FALSE" in any case; anything else is Unknown.
func ParseTristate(s string) Tristate {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRUE":
		return True
	case "FALSE":
		return False
	default:
		return Unknown
	}
}

func (t Tristate) String() string {
	switch t {
	case True:
		return "TRUE"
	case False:
		return "FALSE"
	default:
		return ""
	}
}

// Row is one inventory item under check.
type Row struct {
	SKU          string
	SupplierLink string
	// Variation rows are never fetched or parsed again once True.
	Variation Tristate

	SupplierPrice    float64
	SupplierShipping float64
	SupplierQty      int

	SupplierName       string
	SupplierDays       string
	PartNumber         string
	ProductDimensions  string
	Color              string
	PowerSource        string
	Voltage            string
	Wattage            string
	IncludedComponents string
	Title              string

	// Extra carries columns the checker does not interpret.
	Extra map[string]string
}

// Commercial is the price, shipping and quantity triple compared between
// the previous and the new state of a row.
type Commercial struct {
	Price    float64
	Shipping float64
	Qty      int
}

func (r *Row) commercial() Commercial {
	return Commercial{Price: r.SupplierPrice, Shipping: r.SupplierShipping, Qty: r.SupplierQty}
}

func (r *Row) zeroCommercial(supplierName string) {
	r.SupplierPrice = 0
	r.SupplierShipping = 0
	r.SupplierQty = 0
	r.SupplierName = supplierName
}

// Get returns the value of a column key in its serialized form.
func (r *Row) Get(key string) string {
	switch key {
	case KeySKU:
		return r.SKU
	case KeySupplierLink:
		return r.SupplierLink
	case KeyVariation:
		return r.Variation.String()
	case parser.FieldPrice:
		return formatFloat(r.SupplierPrice)
	case parser.FieldShipping:
		return formatFloat(r.SupplierShipping)
	case parser.FieldQuantity:
		return strconv.Itoa(r.SupplierQty)
	}
	if p := r.textField(key); p != nil {
		return *p
	}
	return r.Extra[key]
}

// Set assigns a column value. Numeric fields that fail to parse become zero.
func (r *Row) Set(key, value string) {
	switch key {
	case KeySKU:
		r.SKU = strings.TrimSpace(value)
		return
	case KeySupplierLink:
		r.SupplierLink = strings.TrimSpace(value)
		return
	case KeyVariation:
		r.Variation = ParseTristate(value)
		return
	case parser.FieldPrice:
		r.SupplierPrice = parseFloat(value)
		return
	case parser.FieldShipping:
		r.SupplierShipping = parseFloat(value)
		return
	case parser.FieldQuantity:
		r.SupplierQty = parseInt(value)
		return
	}
	if p := r.textField(key); p != nil {
		*p = value
		return
	}
	if r.Extra == nil {
		r.Extra = make(map[string]string)
	}
	r.Extra[key] = value
}

func (r *Row) textField(key string) *string {
	switch key {
	case parser.FieldSupplierName:
		return &r.SupplierName
	case parser.FieldDays:
		return &r.SupplierDays
	case parser.FieldPartNumber:
		return &r.PartNumber
	case parser.FieldDimensions:
		return &r.ProductDimensions
	case parser.FieldColor:
		return &r.Color
	case parser.FieldPowerSource:
		return &r.PowerSource
	case parser.FieldVoltage:
		return &r.Voltage
	case parser.FieldWattage:
		return &r.Wattage
	case parser.FieldIncludedComponents:
		return &r.IncludedComponents
	case parser.FieldTitle:
		return &r.Title
	}
	return nil
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// parseInt accepts "3" as well as legacy "3.0" values.
func parseInt(s string) int {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
