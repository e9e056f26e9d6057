package capture

import (
	"net/url"
	"strings"
)

// ValidateURL reports whether raw parses to a URL with both a scheme and a
// host.
func ValidateURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// NormalizeURL adds an https scheme when none is present and strips a single
// trailing slash.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	return strings.TrimSuffix(raw, "/")
}

// ExtractDomain returns the lowercased host (port kept) of raw without a
// leading "www.". Unparseable input is returned unchanged.
func ExtractDomain(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return raw
	}
	host := strings.ToLower(u.Host)
	return strings.TrimPrefix(host, "www.")
}

// BaseURL returns scheme://host for raw, or raw itself when it cannot be
// parsed.
func BaseURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host
}
