// Package notify publishes run results to the operator notification
// service over a websocket. Every call opens a connection, sends one JSON
// message, reads one JSON reply and closes.
package notify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"

	"github.com/masahif/supplycheck/internal/checker"
)

// Message types understood by the notification service.
const (
	TypeReport      = "send_report_text"
	TypeError       = "error"
	TypeCustomError = "send_custom_error"
	TypeGetProxies  = "get_proxy_all_isp"
	TypeFile        = "send_file"
)

// DefaultTimeout bounds the dial and the reply wait of one call.
const DefaultTimeout = 10 * time.Second

// ErrNoURL is returned when the client has no service URL
var ErrNoURL = errors.New("notify url is not configured")

// Client talks to the notification service.
type Client struct {
	url     string
	timeout time.Duration
	dialer  *websocket.Dialer
}

// NewClient returns a client for a ws:// or wss:// URL.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:     url,
		timeout: timeout,
		dialer: &websocket.Dialer{
			HandshakeTimeout: timeout,
		},
	}
}

// ReportMessage is the end-of-run summary.
type ReportMessage struct {
	MessageType          string           `json:"message_type"`
	ShopName             string           `json:"shop_name"`
	AllProcessed         int64            `json:"all_processed"`
	NonesNew             int64            `json:"nones_new"`
	StockNew             int64            `json:"stock_new"`
	NewPrice             int64            `json:"new_price"`
	NewShipping          int64            `json:"new_shipping"`
	Errors               map[string]int64 `json:"errors"`
	BadInfoPerc          float64          `json:"bad_info_perc"`
	AverageTimePerLink   float64          `json:"average_time_for_processing_link"`
	TimeOfCodeProcessing float64          `json:"time_of_code_processing"`
	Proxies              int              `json:"proxies"`
}

// NewReportMessage builds the summary of a run. Durations are sent in
// seconds with two decimals.
func NewReportMessage(shop string, snap checker.ReportSnapshot, elapsed time.Duration, proxies int) ReportMessage {
	var perLink float64
	if snap.AllProcessed > 0 {
		perLink = elapsed.Seconds() / float64(snap.AllProcessed)
	}
	return ReportMessage{
		MessageType:          TypeReport,
		ShopName:             shop,
		AllProcessed:         snap.AllProcessed,
		NonesNew:             snap.NonesNew,
		StockNew:             snap.StockNew,
		NewPrice:             snap.NewPrice,
		NewShipping:          snap.NewShipPrice,
		Errors:               snap.Errors,
		BadInfoPerc:          snap.BadInfoRatio(),
		AverageTimePerLink:   round2(perLink),
		TimeOfCodeProcessing: round2(elapsed.Seconds()),
		Proxies:              proxies,
	}
}

type textMessage struct {
	MessageType string `json:"message_type"`
	ShopName    string `json:"shop_name,omitempty"`
	ErrorText   string `json:"error_text,omitempty"`
	MessageText string `json:"message_text,omitempty"`
}

type fileMessage struct {
	MessageType string `json:"message_type"`
	Caption     string `json:"caption"`
	FileName    string `json:"file_name"`
	File        string `json:"file"`
}

// PostReport sends the run summary and returns the service reply.
func (c *Client) PostReport(ctx context.Context, msg ReportMessage) (json.RawMessage, error) {
	return c.roundTrip(ctx, msg)
}

// PostError reports a run failure.
func (c *Client) PostError(ctx context.Context, shop string, cause error) (json.RawMessage, error) {
	return c.roundTrip(ctx, textMessage{MessageType: TypeError, ShopName: shop, ErrorText: cause.Error()})
}

// SendMessage sends a free-form operator message.
func (c *Client) SendMessage(ctx context.Context, shop, text string) (json.RawMessage, error) {
	return c.roundTrip(ctx, textMessage{MessageType: TypeCustomError, ShopName: shop, MessageText: text})
}

// SendFile uploads a file base64 encoded.
func (c *Client) SendFile(ctx context.Context, caption, path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return c.roundTrip(ctx, fileMessage{
		MessageType: TypeFile,
		Caption:     caption,
		FileName:    filepath.Base(path),
		File:        base64.StdEncoding.EncodeToString(data),
	})
}

// Proxies asks the service for its ISP proxy descriptors. The reply is a
// JSON array of login:password@host:port strings.
func (c *Client) Proxies(ctx context.Context) ([]string, error) {
	reply, err := c.roundTrip(ctx, textMessage{MessageType: TypeGetProxies})
	if err != nil {
		return nil, err
	}
	var descriptors []string
	if err := json.Unmarshal(reply, &descriptors); err != nil {
		return nil, fmt.Errorf("failed to decode proxy list: %w", err)
	}
	return descriptors, nil
}

func (c *Client) roundTrip(ctx context.Context, msg any) (json.RawMessage, error) {
	if c.url == "" {
		return nil, ErrNoURL
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("notify dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	deadline, _ := ctx.Deadline()
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)

	if err := conn.WriteJSON(msg); err != nil {
		return nil, fmt.Errorf("notify send failed: %w", err)
	}

	_, reply, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("notify reply failed: %w", err)
	}
	if !json.Valid(reply) {
		return nil, fmt.Errorf("notify reply is not JSON: %q", reply)
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, closeMsg, deadline); err != nil {
		slog.Debug("Notify close handshake failed", "error", err)
	}
	return reply, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
