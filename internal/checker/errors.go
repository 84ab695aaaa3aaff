package checker

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"
)

var (
	// ErrNoProxies is returned when checking would start with an empty proxy pool.
	ErrNoProxies = errors.New("proxy pool is empty")

	// ErrMalformedProxy is returned for a descriptor that is not login:password@host:port.
	ErrMalformedProxy = errors.New("malformed proxy descriptor")

	// ErrNoUserAgents is returned when an empty user agent list is supplied.
	ErrNoUserAgents = errors.New("user agent list is empty")
)

// ErrorKind classifies a failed fetch. The zero value means no error.
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	ErrTimeout
	ErrProxy
	ErrRequest
	ErrServerClosed
	ErrSiteClosed
	ErrBadRequest
	ErrForbidden
	ErrNotFound
	ErrServer
	ErrUnknownStatus
	ErrUnknown

	numErrorKinds
)

var errorKindTags = [numErrorKinds]string{
	ErrNone:          "",
	ErrTimeout:       "timeout",
	ErrProxy:         "proxy_error",
	ErrRequest:       "request_error",
	ErrServerClosed:  "server_closed",
	ErrSiteClosed:    "site_closed",
	ErrBadRequest:    "400",
	ErrForbidden:     "403",
	ErrNotFound:      "404",
	ErrServer:        "server_error",
	ErrUnknownStatus: "unknown_status",
	ErrUnknown:       "unknown",
}

var errorKindCounters = [numErrorKinds]string{
	ErrNone:          "",
	ErrTimeout:       "time_out_errors",
	ErrProxy:         "proxy_errors",
	ErrRequest:       "request_errors",
	ErrServerClosed:  "server_close_connection",
	ErrSiteClosed:    "site_close_connection",
	ErrBadRequest:    "400",
	ErrForbidden:     "403",
	ErrNotFound:      "404",
	ErrServer:        "server_errors",
	ErrUnknownStatus: "unknown_status",
	ErrUnknown:       "unknown",
}

// Tag is the short name written into a row's supplier name, e.g. "404".
func (k ErrorKind) Tag() string {
	if k < 0 || k >= numErrorKinds {
		return errorKindTags[ErrUnknown]
	}
	return errorKindTags[k]
}

// CounterKey is the name of the report counter incremented for this kind.
func (k ErrorKind) CounterKey() string {
	if k < 0 || k >= numErrorKinds {
		return errorKindCounters[ErrUnknown]
	}
	return errorKindCounters[k]
}

// ErrorKinds lists every failure kind in declaration order.
func ErrorKinds() []ErrorKind {
	kinds := make([]ErrorKind, 0, numErrorKinds-1)
	for k := ErrNone + 1; k < numErrorKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

func (k ErrorKind) String() string {
	if k == ErrNone {
		return "none"
	}
	return k.Tag()
}

// statusKind maps a non-200 HTTP status code to its error kind. A 407 comes
// from the proxy rejecting its credentials.
func statusKind(code int) ErrorKind {
	switch {
	case code == 400:
		return ErrBadRequest
	case code == 403:
		return ErrForbidden
	case code == 404:
		return ErrNotFound
	case code == 407:
		return ErrProxy
	case code >= 500 && code < 600:
		return ErrServer
	default:
		return ErrUnknownStatus
	}
}

// classifyError maps a transport error returned by the HTTP client.
func classifyError(err error) ErrorKind {
	if err == nil {
		return ErrNone
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "proxyconnect" {
		return ErrProxy
	}
	if strings.Contains(err.Error(), "proxyconnect") {
		return ErrProxy
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) {
		return ErrServerClosed
	}

	if opErr != nil {
		return ErrRequest
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ErrRequest
	}
	return ErrUnknown
}
