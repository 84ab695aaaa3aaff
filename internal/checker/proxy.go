package checker

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
)

// AuthenticatedProxy is a parsed egress proxy with its credentials.
type AuthenticatedProxy struct {
	URL      string
	Login    string
	Password string
}

// ProxyURL returns the proxy address with the credentials embedded as userinfo.
func (p AuthenticatedProxy) ProxyURL() (*url.URL, error) {
	u, err := url.Parse(p.URL)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url %q: %w", p.URL, err)
	}
	u.User = url.UserPassword(p.Login, p.Password)
	return u, nil
}

// String hides the password.
func (p AuthenticatedProxy) String() string {
	return p.Login + "@" + strings.TrimPrefix(p.URL, "http://")
}

// ParseProxy parses a login:password@host:port descriptor.
func ParseProxy(descriptor string) (AuthenticatedProxy, error) {
	descriptor = strings.TrimSpace(descriptor)

	if strings.Count(descriptor, "@") != 1 {
		return AuthenticatedProxy{}, fmt.Errorf("%w: %q: want exactly one '@'", ErrMalformedProxy, descriptor)
	}
	creds, host, _ := strings.Cut(descriptor, "@")

	login, password, ok := strings.Cut(creds, ":")
	if !ok {
		return AuthenticatedProxy{}, fmt.Errorf("%w: %q: credentials need login:password", ErrMalformedProxy, descriptor)
	}
	if login == "" || host == "" {
		return AuthenticatedProxy{}, fmt.Errorf("%w: %q: empty login or host", ErrMalformedProxy, descriptor)
	}

	return AuthenticatedProxy{
		URL:      "http://" + host,
		Login:    login,
		Password: password,
	}, nil
}

// ProxyPool is a read-only set of proxies. Pick is safe for concurrent use.
type ProxyPool struct {
	proxies []AuthenticatedProxy
}

// NewProxyPool parses every descriptor and fails on the first malformed one.
func NewProxyPool(descriptors []string) (*ProxyPool, error) {
	if len(descriptors) == 0 {
		return nil, ErrNoProxies
	}

	proxies := make([]AuthenticatedProxy, 0, len(descriptors))
	for _, d := range descriptors {
		p, err := ParseProxy(d)
		if err != nil {
			return nil, err
		}
		proxies = append(proxies, p)
	}
	return &ProxyPool{proxies: proxies}, nil
}

// Len returns the number of proxies.
func (p *ProxyPool) Len() int {
	return len(p.proxies)
}

// Pick returns a uniformly random proxy, with replacement.
func (p *ProxyPool) Pick() AuthenticatedProxy {
	return p.proxies[rand.IntN(len(p.proxies))]
}

// UserAgents is a read-only list of user agent strings.
type UserAgents []string

// NewUserAgents drops blank entries and fails if none remain.
func NewUserAgents(agents []string) (UserAgents, error) {
	out := make(UserAgents, 0, len(agents))
	for _, a := range agents {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoUserAgents
	}
	return out, nil
}

// Pick returns a uniformly random user agent, independent of proxy selection.
// An empty list yields "".
func (u UserAgents) Pick() string {
	if len(u) == 0 {
		return ""
	}
	return u[rand.IntN(len(u))]
}
