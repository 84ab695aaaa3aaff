package checker

import (
	"context"

	"github.com/masahif/supplycheck/internal/parser"
)

// PageFetcher downloads one supplier page.
type PageFetcher interface {
	Fetch(ctx context.Context, link string, proxy *AuthenticatedProxy, userAgent string) FetchResult
}

// PageExtractor classifies a page and extracts fields from it.
// *parser.Site implements it.
type PageExtractor interface {
	Classify(page string, strategy parser.Strategy) parser.Signals
	Extract(page string, fields []string) map[string]string
}

// Sink receives processed rows and diagnostic records. Rows within a call
// are in completion order; implementations must key by SKU.
type Sink interface {
	SaveRows(rows []*Row) error
	SaveErrors(records []ErrorRecord) error
}

// ErrorRecord is a business exception worth an operator's attention.
type ErrorRecord struct {
	SKU       string `json:"sku"`
	ErrorType string `json:"error_type"`
}

// MultiSink fans out to several sinks and stops at the first error.
type MultiSink []Sink

func (m MultiSink) SaveRows(rows []*Row) error {
	for _, s := range m {
		if err := s.SaveRows(rows); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) SaveErrors(records []ErrorRecord) error {
	for _, s := range m {
		if err := s.SaveErrors(records); err != nil {
			return err
		}
	}
	return nil
}
