package parser

import (
	"strings"
	"sync"
)

// Strategy is the shop's selling strategy. It changes how shipping
// restrictions are interpreted.
type Strategy string

const (
	StrategyDrop     Strategy = "drop"
	StrategyListings Strategy = "listings"
)

// Exception tags written into the supplier name of a row.
const (
	TagOutOfStock   = "{out_of_stock}"
	TagCatalogLink  = "{link_on_catalog}"
	TagProxyBan     = "{proxy_ban}"
	TagNotSendToUSA = "{supplier_not_in_usa}"
	TagPickUpOnly   = "{pick_up_only}"
)

// Signals is the classification of one fetched page.
type Signals struct {
	OutOfStock   bool
	Variation    bool
	CatalogLink  bool
	ProxyBan     bool // the site thinks the request came from outside the US
	NotSendToUSA bool
	PickUp       bool
}

// Exception is a terminal business classification of a row.
type Exception struct {
	Tag string
	// Diagnostic is the operator-facing text for the errors sink.
	// Empty when the exception does not need operator attention.
	Diagnostic string
}

// Exception resolves the signals to a single exception in fixed priority
// order: out of stock, catalog link, proxy ban, not shipping to the USA,
// pick-up only. The variation signal is not an exception and is ignored here.
func (s Signals) Exception() (Exception, bool) {
	switch {
	case s.OutOfStock:
		return Exception{Tag: TagOutOfStock, Diagnostic: "Item is out of stock."}, true
	case s.CatalogLink:
		return Exception{Tag: TagCatalogLink, Diagnostic: "Link points to a catalog page, not a product card."}, true
	case s.ProxyBan:
		return Exception{Tag: TagProxyBan}, true
	case s.NotSendToUSA:
		return Exception{Tag: TagNotSendToUSA, Diagnostic: "Supplier does not ship to the USA."}, true
	case s.PickUp:
		return Exception{Tag: TagPickUpOnly, Diagnostic: "Supplier offers local pickup only."}, true
	}
	return Exception{}, false
}

// Classify runs every trigger of the site against page concurrently.
// Each trigger only writes its own signal.
func (s *Site) Classify(page string, strategy Strategy) Signals {
	var (
		sig Signals
		wg  sync.WaitGroup
	)

	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	run(func() { sig.OutOfStock = s.Triggers.OutOfStock.Contains(page) })
	run(func() { sig.Variation = s.Triggers.Variation.Contains(page) })
	run(func() { sig.CatalogLink = s.Triggers.Catalog.Contains(page) })
	run(func() { sig.PickUp = s.Triggers.PickUp.Contains(page) })
	run(func() { sig.ProxyBan, sig.NotSendToUSA = s.shippingRestriction(page, strategy) })

	wg.Wait()
	return sig
}

// shippingRestriction inspects the "does not ship to <region>" phrase.
// A region other than the US means the site geolocated the proxy outside the
// US. A US region is a genuine supplier restriction, which only matters for
// the drop strategy.
func (s *Site) shippingRestriction(page string, strategy Strategy) (proxyBan, notSendToUSA bool) {
	region, found := s.Triggers.NotShipTo.Find(page)
	if !found {
		return false, false
	}
	if !mentionsUSA(region) {
		return true, false
	}
	return false, strategy == StrategyDrop
}

func mentionsUSA(region string) bool {
	lower := strings.ToLower(region)
	return strings.Contains(lower, "united states") || strings.Contains(lower, "usa")
}
