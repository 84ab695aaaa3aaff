// Package feed builds marketplace listings feed documents from checked
// inventory rows. Each row becomes one PATCH message; documents are written
// as JSON files of at most ChunkSize messages for upload.
package feed

import (
	"strconv"
	"strings"

	"github.com/masahif/supplycheck/internal/checker"
	"github.com/masahif/supplycheck/internal/logging"
)

// Row keys read by the builder in addition to sku and supplier_qty.
const (
	KeyOurPrice         = "our_price"
	KeyHandlingTime     = "handling_time"
	KeyMerchantShipping = "merchant_shipping"
)

const (
	// QtyCap is the first supplier quantity replaced by the standard quantity.
	QtyCap = 6

	channelDefault = "DEFAULT"
	currencyUSD    = "USD"
)

// Builder turns rows into feed messages.
type Builder struct {
	StandardQty    int
	ShippingGroups map[string]string
	exclude        map[string]bool
}

// NewBuilder returns a Builder. Rows whose SKU is in exclude are left out of
// the feed so the repricer keeps control of them.
func NewBuilder(standardQty int, shippingGroups map[string]string, exclude []string) *Builder {
	b := &Builder{
		StandardQty:    standardQty,
		ShippingGroups: shippingGroups,
		exclude:        make(map[string]bool, len(exclude)),
	}
	for _, sku := range exclude {
		b.exclude[strings.TrimSpace(sku)] = true
	}
	return b
}

// Messages builds one message per row with a SKU. Message ids are the
// 1-based row positions, so skipped rows leave gaps.
func (b *Builder) Messages(rows []*checker.Row) []Message {
	logger := logging.For("feed")

	var msgs []Message
	for i, row := range rows {
		if row.SKU == "" || b.exclude[row.SKU] {
			continue
		}
		msg := Message{
			MessageID:     i + 1,
			SKU:           row.SKU,
			OperationType: "PATCH",
			ProductType:   "PRODUCT",
		}

		if row.SupplierQty < 1 {
			msg.Patches = []Patch{availabilityPatch(Availability{
				FulfillmentChannelCode: channelDefault,
				Quantity:               0,
			})}
			msgs = append(msgs, msg)
			continue
		}

		price, err := strconv.ParseFloat(strings.TrimSpace(row.Get(KeyOurPrice)), 64)
		if err != nil {
			logger.Warn("Skipping row without price", "sku", row.SKU, "our_price", row.Get(KeyOurPrice))
			continue
		}
		handling, err := strconv.Atoi(strings.TrimSpace(row.Get(KeyHandlingTime)))
		if err != nil {
			logger.Warn("Skipping row without handling time", "sku", row.SKU, "handling_time", row.Get(KeyHandlingTime))
			continue
		}

		msg.Patches = []Patch{
			availabilityPatch(Availability{
				FulfillmentChannelCode: channelDefault,
				Quantity:               b.quantity(row.SupplierQty),
				LeadTimeToShipMaxDays:  &handling,
			}),
			{
				Op:   "replace",
				Path: "/attributes/purchasable_offer",
				Value: []any{Offer{
					Currency: currencyUSD,
					OurPrice: []PriceSchedule{{Schedule: []ScheduleValue{{ValueWithTax: price}}}},
				}},
			},
			{
				Op:    "replace",
				Path:  "/attributes/merchant_shipping_group",
				Value: []any{ShippingGroup{Value: b.shippingGroup(row.Get(KeyMerchantShipping))}},
			},
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func (b *Builder) quantity(qty int) int {
	if qty < QtyCap {
		return qty
	}
	return b.StandardQty
}

// shippingGroup maps a group name to its marketplace id. Config keys may
// have been lowercased, so the lowercase name is tried too. Unknown names
// are sent as they are.
func (b *Builder) shippingGroup(name string) string {
	if id, ok := b.ShippingGroups[name]; ok {
		return id
	}
	if id, ok := b.ShippingGroups[strings.ToLower(name)]; ok {
		return id
	}
	return name
}

func availabilityPatch(a Availability) Patch {
	return Patch{
		Op:    "replace",
		Path:  "/attributes/fulfillment_availability",
		Value: []any{a},
	}
}

// LatestBySKU collapses repeated SKUs to their last occurrence, keeping the
// position of the first one. Rows without a SKU are kept as they are.
func LatestBySKU(rows []*checker.Row) []*checker.Row {
	index := make(map[string]int, len(rows))
	out := make([]*checker.Row, 0, len(rows))
	for _, row := range rows {
		if row.SKU == "" {
			out = append(out, row)
			continue
		}
		if i, ok := index[row.SKU]; ok {
			out[i] = row
			continue
		}
		index[row.SKU] = len(out)
		out = append(out, row)
	}
	return out
}
