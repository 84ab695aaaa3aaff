package feed

// Document is one feed file.
type Document struct {
	Header   Header    `json:"header"`
	Messages []Message `json:"messages"`
}

type Header struct {
	SellerID    string `json:"sellerId"`
	Version     string `json:"version"`
	IssueLocale string `json:"issueLocale"`
}

// Message updates the attributes of one listing.
type Message struct {
	MessageID     int     `json:"messageId"`
	SKU           string  `json:"sku"`
	OperationType string  `json:"operationType"`
	ProductType   string  `json:"productType"`
	Patches       []Patch `json:"patches"`
}

type Patch struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value []any  `json:"value"`
}

type Availability struct {
	FulfillmentChannelCode string `json:"fulfillment_channel_code"`
	Quantity               int    `json:"quantity"`
	LeadTimeToShipMaxDays  *int   `json:"lead_time_to_ship_max_days,omitempty"`
}

type Offer struct {
	Currency string          `json:"currency"`
	OurPrice []PriceSchedule `json:"our_price"`
}

type PriceSchedule struct {
	Schedule []ScheduleValue `json:"schedule"`
}

type ScheduleValue struct {
	ValueWithTax float64 `json:"value_with_tax"`
}

type ShippingGroup struct {
	Value string `json:"value"`
}
