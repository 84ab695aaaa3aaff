// Package config provides configuration management for supplycheck.
// It defines the shop configuration consumed by the checker, default values
// and validation.
package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/masahif/supplycheck/internal/parser"
)

// Column maps an inventory column key to its header in the CSV files.
type Column struct {
	Key    string `mapstructure:"key" yaml:"key"`       // Row field key, e.g. supplier_price
	Header string `mapstructure:"header" yaml:"header"` // Header text in the inventory file
}

// ProxyAPI configures the vendor proxy list endpoint.
type ProxyAPI struct {
	URL       string `mapstructure:"url" yaml:"url"`                 // Base URL, e.g. https://panel.spaceproxy.net/api/
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`         // API key
	APIKeyEnv string `mapstructure:"api_key_env" yaml:"api_key_env"` // Environment variable holding the API key
}

// HostDelay paces requests to one supplier host.
type HostDelay struct {
	Host  string        `mapstructure:"host" yaml:"host"`   // e.g. www.ebay.com
	Delay time.Duration `mapstructure:"delay" yaml:"delay"` // Minimum gap between requests
}

// Notify configures end-of-run report publication.
type Notify struct {
	URL     string        `mapstructure:"url" yaml:"url"`         // Websocket URL, e.g. ws://host:port
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"` // Dial and round trip timeout
	Proxies bool          `mapstructure:"proxies" yaml:"proxies"` // Also ask the service for ISP proxies
}

// Feed configures the marketplace listings feed builder.
type Feed struct {
	SellerID       string            `mapstructure:"seller_id" yaml:"seller_id"`
	StandardQty    int               `mapstructure:"standard_qty" yaml:"standard_qty"`       // Quantity sent when supplier qty is 6 or more
	ChunkSize      int               `mapstructure:"chunk_size" yaml:"chunk_size"`           // Messages per feed file
	OutputDir      string            `mapstructure:"output_dir" yaml:"output_dir"`           // Directory for feed files
	FilePrefix     string            `mapstructure:"file_prefix" yaml:"file_prefix"`         // Feed file name prefix
	ShippingGroups map[string]string `mapstructure:"shipping_groups" yaml:"shipping_groups"` // Shipping group name to marketplace id
}

// Log configures logging.
type Log struct {
	Level      string `mapstructure:"level" yaml:"level"`             // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"`           // json or text
	File       string `mapstructure:"file" yaml:"file"`               // Optional log file
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"` // Rotate the log file after this size
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"` // Rotated files to keep
}

// CheckConfig holds the configuration of a check run
type CheckConfig struct {
	// Shop
	ShopName        string          `mapstructure:"shop_name" yaml:"shop_name"`
	Strategy        string          `mapstructure:"strategy" yaml:"strategy"`                     // drop or listings
	WhatNeedToParse map[string]bool `mapstructure:"what_need_to_parse" yaml:"what_need_to_parse"` // Field key -> extract it
	Columns         []Column        `mapstructure:"columns" yaml:"columns"`

	// SKU lists
	Exceptions             []string `mapstructure:"exceptions" yaml:"exceptions"`                             // SKUs never fetched
	ExceptionsFile         string   `mapstructure:"exceptions_file" yaml:"exceptions_file"`                   // One SKU per line
	RepricerExceptions     []string `mapstructure:"repricer_exceptions" yaml:"repricer_exceptions"`           // SKUs left out of the feed
	RepricerExceptionsFile string   `mapstructure:"repricer_exceptions_file" yaml:"repricer_exceptions_file"` // One SKU per line

	// Egress
	Proxies        []string          `mapstructure:"proxies" yaml:"proxies"`                   // login:password@host:port
	ProxiesFile    string            `mapstructure:"proxies_file" yaml:"proxies_file"`         // One descriptor per line
	ProxyAPI       ProxyAPI          `mapstructure:"proxy_api" yaml:"proxy_api"`               // Vendor proxy list
	UserAgents     []string          `mapstructure:"user_agents" yaml:"user_agents"`           // Rotated User-Agent values
	UserAgentsFile string            `mapstructure:"user_agents_file" yaml:"user_agents_file"` // JSON array or one per line
	Headers        map[string]string `mapstructure:"headers" yaml:"headers"`                   // Request header overrides

	// Fetching
	BatchSize         int           `mapstructure:"batch_size" yaml:"batch_size"`                   // Rows fetched concurrently
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`         // Per request timeout
	RequestDelay      time.Duration `mapstructure:"request_delay" yaml:"request_delay"`             // Per host pacing, 0 disables
	ServerBusyBackoff time.Duration `mapstructure:"server_busy_backoff" yaml:"server_busy_backoff"` // Sleep after 429/503, 0 disables
	HostDelays        []HostDelay   `mapstructure:"host_delays" yaml:"host_delays"`                 // Per host pacing overrides

	// Files
	InventoryPath string `mapstructure:"inventory_path" yaml:"inventory_path"` // Input CSV
	CachePath     string `mapstructure:"cache_path" yaml:"cache_path"`         // Processed rows CSV
	ErrorsPath    string `mapstructure:"errors_path" yaml:"errors_path"`       // Diagnostic records CSV
	DatabasePath  string `mapstructure:"database_path" yaml:"database_path"`   // Optional SQLite run store

	Notify Notify `mapstructure:"notify" yaml:"notify"`
	Feed   Feed   `mapstructure:"feed" yaml:"feed"`
	Log    Log    `mapstructure:"log" yaml:"log"`
}

// DefaultColumns is the inventory layout used when none is configured.
func DefaultColumns() []Column {
	keys := []string{
		"sku", "supplier_link", "variation",
		parser.FieldPrice, parser.FieldShipping, parser.FieldQuantity,
		parser.FieldSupplierName, parser.FieldDays,
	}
	cols := make([]Column, 0, len(keys))
	for _, k := range keys {
		cols = append(cols, Column{Key: k, Header: k})
	}
	return cols
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *CheckConfig {
	return &CheckConfig{
		Strategy: string(parser.StrategyDrop),
		WhatNeedToParse: map[string]bool{
			parser.FieldPrice:    true,
			parser.FieldShipping: true,
			parser.FieldQuantity: true,
		},
		Columns:        DefaultColumns(),
		BatchSize:      5,
		RequestTimeout: 30 * time.Second,
		InventoryPath:  "inventory.csv",
		CachePath:      "processing/process.csv",
		ErrorsPath:     "processing/errors.csv",
		Notify: Notify{
			Timeout: 10 * time.Second,
		},
		Feed: Feed{
			StandardQty: 5,
			ChunkSize:   10000,
			OutputDir:   "uploads",
			FilePrefix:  "feed",
		},
		Log: Log{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Validate checks if the configuration is valid
func (c *CheckConfig) Validate() error {
	switch parser.Strategy(c.Strategy) {
	case parser.StrategyDrop, parser.StrategyListings:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStrategy, c.Strategy)
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.RequestDelay < 0 || c.ServerBusyBackoff < 0 {
		return ErrNegativeDelay
	}

	for _, hd := range c.HostDelays {
		if strings.TrimSpace(hd.Host) == "" {
			return ErrEmptyHost
		}
		if hd.Delay < 0 {
			return fmt.Errorf("%w: host %s", ErrNegativeDelay, hd.Host)
		}
	}

	if err := c.validateColumns(); err != nil {
		return err
	}

	for field := range c.WhatNeedToParse {
		if !parser.IsField(field) {
			return fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
	}

	return nil
}

func (c *CheckConfig) validateColumns() error {
	if len(c.Columns) == 0 {
		return ErrNoColumns
	}

	keys := make(map[string]bool, len(c.Columns))
	headers := make(map[string]bool, len(c.Columns))
	for _, col := range c.Columns {
		if col.Key == "" || col.Header == "" {
			return fmt.Errorf("%w: key %q header %q", ErrEmptyColumn, col.Key, col.Header)
		}
		if keys[col.Key] || headers[col.Header] {
			return fmt.Errorf("%w: %q", ErrDuplicateColumn, col.Key)
		}
		keys[col.Key] = true
		headers[col.Header] = true
	}

	for _, required := range []string{"sku", "supplier_link"} {
		if !keys[required] {
			return fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}
	return nil
}

// HostDelayMap returns the per host pacing overrides keyed by host.
func (c *CheckConfig) HostDelayMap() map[string]time.Duration {
	if len(c.HostDelays) == 0 {
		return nil
	}
	m := make(map[string]time.Duration, len(c.HostDelays))
	for _, hd := range c.HostDelays {
		m[strings.TrimSpace(hd.Host)] = hd.Delay
	}
	return m
}

// ParseFields returns the enabled field keys in extraction order.
func (c *CheckConfig) ParseFields() []string {
	var fields []string
	for _, f := range parser.Fields {
		if c.WhatNeedToParse[f] {
			fields = append(fields, f)
		}
	}
	return fields
}

// ProxyAPIKey returns the vendor API key, resolving the environment
// variable if specified
func (c *CheckConfig) ProxyAPIKey() string {
	if c.ProxyAPI.APIKeyEnv != "" {
		return os.Getenv(c.ProxyAPI.APIKeyEnv)
	}
	return c.ProxyAPI.APIKey
}

// LoadHeadersFromEnv adds request headers from SC_HEADER_<NAME> variables.
// Underscores in NAME become dashes, so SC_HEADER_ACCEPT_LANGUAGE sets
// Accept-Language. Headers from the config file win.
func (c *CheckConfig) LoadHeadersFromEnv() {
	const prefix = "SC_HEADER_"
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) || value == "" {
			continue
		}
		header := canonicalHeader(strings.TrimPrefix(name, prefix))
		if header == "" {
			continue
		}
		if c.Headers == nil {
			c.Headers = make(map[string]string)
		}
		if _, exists := c.Headers[header]; !exists {
			c.Headers[header] = value
		}
	}
}

func canonicalHeader(envName string) string {
	parts := strings.Split(strings.ToLower(envName), "_")
	for i, p := range parts {
		if p == "" {
			return ""
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "-")
}

// LoadLists merges the SKU and user agent files into their inline lists.
func (c *CheckConfig) LoadLists() error {
	lists := []struct {
		path string
		dst  *[]string
	}{
		{c.ExceptionsFile, &c.Exceptions},
		{c.RepricerExceptionsFile, &c.RepricerExceptions},
		{c.UserAgentsFile, &c.UserAgents},
	}

	for _, l := range lists {
		if l.path == "" {
			continue
		}
		items, err := ReadList(l.path)
		if err != nil {
			return err
		}
		*l.dst = append(*l.dst, items...)
	}
	return nil
}

// ReadList reads a list file. A file starting with '[' is decoded as a JSON
// array of strings; otherwise every non-blank line not starting with '#' is
// one entry.
func ReadList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read list %s: %w", path, err)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var items []string
		if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
			return nil, fmt.Errorf("failed to decode list %s: %w", path, err)
		}
		return items, nil
	}

	var items []string
	scanner := bufio.NewScanner(strings.NewReader(trimmed))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		items = append(items, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan list %s: %w", path, err)
	}
	return items, nil
}
