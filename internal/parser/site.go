package parser

// Field keys understood by Site.Extract. They match the inventory column keys.
const (
	FieldPrice              = "supplier_price"
	FieldShipping           = "supplier_shipping"
	FieldQuantity           = "supplier_qty"
	FieldDays               = "supplier_days"
	FieldSupplierName       = "supplier_name"
	FieldPartNumber         = "part_number"
	FieldDimensions         = "product_dimensions"
	FieldColor              = "color"
	FieldPowerSource        = "power_source"
	FieldVoltage            = "voltage"
	FieldWattage            = "wattage"
	FieldIncludedComponents = "included_components"
	FieldTitle              = "title"
)

// Fields lists every extractable field in extraction order.
var Fields = []string{
	FieldPrice,
	FieldShipping,
	FieldQuantity,
	FieldDays,
	FieldSupplierName,
	FieldPartNumber,
	FieldDimensions,
	FieldColor,
	FieldPowerSource,
	FieldVoltage,
	FieldWattage,
	FieldIncludedComponents,
	FieldTitle,
}

// IsField reports whether key names an extractable field.
func IsField(key string) bool {
	for _, f := range Fields {
		if f == key {
			return true
		}
	}
	return false
}

// Triggers holds the pattern lists that classify a page.
type Triggers struct {
	OutOfStock PatternList
	Variation  PatternList
	Catalog    PatternList
	PickUp     PatternList
	// NotShipTo must capture the region the site refuses to ship to.
	NotShipTo PatternList
}

// Site is the extraction strategy for one supplier marketplace.
// A Site is immutable after construction and safe for concurrent use.
type Site struct {
	Name     string
	Triggers Triggers
	Patterns map[string]PatternList

	// TitleSuffix marks a genuine product title; titles without it are dropped.
	TitleSuffix string
}

// Ebay returns the pattern set for ebay.com product pages.
func Ebay() *Site {
	return &Site{
		Name: "ebay",
		Triggers: Triggers{
			OutOfStock: Compile(
				`CURRENTLY SOLD OUT`,
				`We looked everywhere\.`,
				`Looks like this page is missing\.`,
				`The item you selected is unavailable`,
				`The item you selected has ended`,
				`This listing was ended`,
				`The listing you're looking for has ended`,
				`Service Unavailable - Zero size object`,
				`This item is out of stock\.`,
				`This listing sold`,
				`This listing ended`,
			),
			Variation: Compile(`<option value=-1`),
			Catalog: Compile(
				`class="cat-wrapper"`,
				`class="s-item s-item__pl-on-bottom"`,
			),
			PickUp: Compile(`Local pickup only`),
			NotShipTo: Compile(
				`does not ship to (.*?)</span>`,
				`does not ship to ([^<\n]+)`,
			),
		},
		Patterns: map[string]PatternList{
			FieldPrice:    Compile(`"price":"([0-9]+\.[0-9]+)"`),
			FieldShipping: Compile(`"shippingRate":.*"value":"([0-9]+\.[0-9]+)"`),
			FieldQuantity: Compile(`"maxValue":"([0-9]+)"`),
			FieldDays: Compile(
				`and "},{"_type":"TextSpan","text":"(.*?)"`,
				`Get it by\s+(.*?)<`,
				`Estimated on or before\s+(.*?)<`,
			),
			FieldSupplierName: Compile(
				`class="vim x-sellercard-atf".*?"_ssn":"(.*?)",`,
				`<div class=x-sellercard-atf__info__about-seller title="(.*?)">`,
				`<div class=x-sellercard-atf__info__about-seller title=(.*?)>`,
			),
			FieldPartNumber: Compile(
				`<span class=ux-textspans>MPN.*?<span class=ux-textspans>(.*?)</span>`,
				`<span class=ux-textspans>Manufacturer Part Number.*?<span class=ux-textspans>(.*?)</span>`,
			),
			FieldColor:              Compile(`<span class=ux-textspans>Color.*?<span class=ux-textspans>(.*?)</span>`),
			FieldPowerSource:        Compile(`<span class=ux-textspans>Power Source.*?<span class=ux-textspans>(.*?)</span>`),
			FieldVoltage:            Compile(`<span class=ux-textspans>Voltage.*?<span class=ux-textspans>(.*?)</span>`),
			FieldWattage:            Compile(`<span class=ux-textspans>Wattage.*?<span class=ux-textspans>(.*?)</span>`),
			FieldIncludedComponents: Compile(`<span class=ux-textspans>Battery Included.*?<span class=ux-textspans>(.*?)</span>`),
			FieldTitle:              Compile(`<title>(.*?)</title>`),
			"length":                Compile(`<span class=ux-textspans>Item Length.*?<span class=ux-textspans>(.*?)</span>`),
			"width":                 Compile(`<span class=ux-textspans>Item Width.*?<span class=ux-textspans>(.*?)</span>`),
			"height":                Compile(`<span class=ux-textspans>Item Height.*?<span class=ux-textspans>(.*?)</span>`),
		},
		TitleSuffix: "| eBay",
	}
}
