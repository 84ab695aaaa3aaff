// Package checker runs batched, proxied checks of supplier product pages and
// folds the observed price, stock and attributes back into inventory rows.
package checker

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/masahif/supplycheck/internal/logging"
	"github.com/masahif/supplycheck/internal/parser"
)

// Supplier name markers of rows that produced no page.
const (
	MarkerNoLink = "{no_link}"
	MarkerNoPage = "{no_page}"
)

// DefaultBatchSize is the number of rows fetched concurrently.
const DefaultBatchSize = 5

// Options tunes a Checker.
type Options struct {
	Strategy parser.Strategy
	// Fields lists the parser field keys to extract from normal pages.
	Fields []string
	// Exceptions are SKUs never fetched.
	Exceptions []string
	BatchSize  int
}

// Checker orchestrates one check run. Create a new Checker per run.
type Checker struct {
	fetcher    PageFetcher
	extractor  PageExtractor
	proxies    *ProxyPool
	userAgents UserAgents
	sink       Sink
	opts       Options
	exceptions map[string]struct{}
	report     *Report
	logger     *slog.Logger

	diagMu sync.Mutex
	diags  []ErrorRecord
}

// New validates the collaborators and returns a ready checker. A nil sink
// discards output.
func New(fetcher PageFetcher, extractor PageExtractor, proxies *ProxyPool, userAgents UserAgents, sink Sink, opts Options) (*Checker, error) {
	if proxies == nil || proxies.Len() == 0 {
		return nil, ErrNoProxies
	}
	if fetcher == nil || extractor == nil {
		return nil, fmt.Errorf("checker needs a fetcher and an extractor")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Strategy == "" {
		opts.Strategy = parser.StrategyDrop
	}

	exceptions := make(map[string]struct{}, len(opts.Exceptions))
	for _, sku := range opts.Exceptions {
		if sku = strings.TrimSpace(sku); sku != "" {
			exceptions[sku] = struct{}{}
		}
	}

	return &Checker{
		fetcher:    fetcher,
		extractor:  extractor,
		proxies:    proxies,
		userAgents: userAgents,
		sink:       sink,
		opts:       opts,
		exceptions: exceptions,
		report:     NewReport(),
		logger:     logging.For("checker"),
	}, nil
}

// Report returns the run's live report.
func (c *Checker) Report() *Report {
	return c.report
}

// Run checks every row, flushing each finished chunk to the sink. Rows are
// mutated in place; the returned slice holds them in processing order.
func (c *Checker) Run(ctx context.Context, rows []*Row) ([]*Row, error) {
	c.logger.Info("Start checking", "rows", len(rows), "batch_size", c.opts.BatchSize, "proxies", c.proxies.Len())

	s := &Scheduler[*Row, *Row]{
		BatchSize: c.opts.BatchSize,
		Work:      c.checkRow,
		Flush:     c.flush,
	}
	out, err := s.Run(ctx, rows)

	c.logger.Info("Check finished", "report", c.report.Snapshot().String())
	return out, err
}

func (c *Checker) flush(_ int, rows []*Row) error {
	c.diagMu.Lock()
	diags := c.diags
	c.diags = nil
	c.diagMu.Unlock()

	if c.sink == nil {
		return nil
	}
	if err := c.sink.SaveRows(rows); err != nil {
		return fmt.Errorf("save rows: %w", err)
	}
	if len(diags) > 0 {
		if err := c.sink.SaveErrors(diags); err != nil {
			return fmt.Errorf("save errors: %w", err)
		}
	}
	return nil
}

// checkRow fetches and processes one row.
func (c *Checker) checkRow(ctx context.Context, row *Row) *Row {
	if row.Variation == True {
		c.report.AllProcessed.Add(1)
		return row
	}

	if marker := c.skipMarker(row); marker != "" {
		c.report.AllProcessed.Add(1)
		row.zeroCommercial(marker)
		return row
	}

	proxy := c.proxies.Pick()
	res := c.fetcher.Fetch(ctx, row.SupplierLink, &proxy, c.userAgents.Pick())
	if !res.OK() {
		c.report.AddError(res.Err)
		c.logger.Warn("Fetch failed", "sku", row.SKU, "url", row.SupplierLink, "error", res.Err.Tag(), "proxy", proxy.String())
	}

	if diag, ok := c.Process(row, res); ok {
		c.diagMu.Lock()
		c.diags = append(c.diags, diag)
		c.diagMu.Unlock()
	}
	return row
}

// skipMarker decides before any network call whether a row is exempt from
// fetching. It returns the supplier name marker, or "" to fetch.
func (c *Checker) skipMarker(row *Row) string {
	if _, ok := c.exceptions[row.SKU]; ok && row.SKU != "" {
		return MarkerNoPage
	}
	if strings.TrimSpace(row.SKU) == "" || !validLink(row.SupplierLink) {
		return MarkerNoLink
	}
	return ""
}

func validLink(link string) bool {
	link = strings.TrimSpace(link)
	if link == "" {
		return false
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Process folds a fetch result into row. It returns a diagnostic record when
// the page resolved to a business exception that carries one.
func (c *Checker) Process(row *Row, res FetchResult) (ErrorRecord, bool) {
	c.report.AllProcessed.Add(1)

	if !res.OK() || res.Page == "" {
		marker := MarkerNoPage
		if !res.OK() {
			marker = "{" + res.Err.Tag() + "}"
		}
		row.zeroCommercial(marker)
		return ErrorRecord{}, false
	}

	if row.Variation == True {
		return ErrorRecord{}, false
	}

	prev := row.commercial()
	signals := c.extractor.Classify(res.Page, c.opts.Strategy)

	if signals.Variation {
		row.Variation = True
		c.logger.Debug("Variation listing", "sku", row.SKU)
		return ErrorRecord{}, false
	}

	if exc, ok := signals.Exception(); ok {
		row.zeroCommercial(exc.Tag)
		c.report.ApplyDelta(prev, row.commercial())
		c.logger.Debug("Business exception", "sku", row.SKU, "tag", exc.Tag)
		if exc.Diagnostic == "" {
			return ErrorRecord{}, false
		}
		return ErrorRecord{SKU: row.SKU, ErrorType: exc.Diagnostic}, true
	}

	for key, value := range c.extractor.Extract(res.Page, c.opts.Fields) {
		row.Set(key, value)
	}
	c.report.ApplyDelta(prev, row.commercial())
	return ErrorRecord{}, false
}
