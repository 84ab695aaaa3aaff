package proxysource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultSpaceProxyURL is the vendor API base.
const DefaultSpaceProxyURL = "https://panel.spaceproxy.net/api/"

// SpaceProxy lists the proxies bought from the SpaceProxy panel.
type SpaceProxy struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewSpaceProxy returns a client for the vendor API. An empty baseURL
// selects DefaultSpaceProxyURL.
func NewSpaceProxy(baseURL, apiKey string) *SpaceProxy {
	if baseURL == "" {
		baseURL = DefaultSpaceProxyURL
	}
	return &SpaceProxy{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// vendorProxy is one entry of the proxies listing.
type vendorProxy struct {
	Login    string          `json:"login"`
	Password string          `json:"password"`
	IP       string          `json:"ip"`
	Port     json.RawMessage `json:"port"`
}

func (p vendorProxy) descriptor() (string, error) {
	port := strings.Trim(string(p.Port), `"`)
	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("invalid port %s for %s", p.Port, p.IP)
	}
	if p.Login == "" || p.IP == "" {
		return "", fmt.Errorf("incomplete proxy entry for %q", p.IP)
	}
	return p.Login + ":" + p.Password + "@" + net.JoinHostPort(p.IP, port), nil
}

func (s *SpaceProxy) Name() string { return "spaceproxy" }

// Descriptors fetches GET {BaseURL}proxies/?api_key=KEY.
func (s *SpaceProxy) Descriptors(ctx context.Context) ([]string, error) {
	endpoint, err := s.endpoint()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list proxies: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("proxy API returned status %d", resp.StatusCode)
	}

	var entries []vendorProxy
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode proxy list: %w", err)
	}

	descriptors := make([]string, 0, len(entries))
	for _, e := range entries {
		d, err := e.descriptor()
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

func (s *SpaceProxy) endpoint() (string, error) {
	base := s.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base + "proxies/")
	if err != nil {
		return "", fmt.Errorf("invalid proxy API url %q: %w", s.BaseURL, err)
	}
	q := u.Query()
	q.Set("api_key", s.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
