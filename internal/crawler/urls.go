package crawler

import (
	"net/url"
	"strings"
)

// LinkClass partitions every syntactically resolvable reference.
type LinkClass int

const (
	// LinkInternal is a page on the audited domain or one of its subdomains.
	LinkInternal LinkClass = iota
	// LinkExternal is any other reference reachable over HTTP(S).
	LinkExternal
	// LinkMailto and LinkTel are the functional link classes, tracked by
	// address rather than fetched.
	LinkMailto
	LinkTel
	// LinkNonFetchable covers javascript:, data:, empty anchors and other
	// void references that cannot be fetched.
	LinkNonFetchable
)

// Classifier resolves raw references against the page they were found on and
// classifies them relative to the audited domain.
type Classifier struct {
	domain    string // lowercase, no scheme, may carry a port
	exactHost bool   // domain includes a port, match host:port exactly
}

// NewClassifier creates a classifier for the given audit domain. The domain
// is expected in CLI-cleaned form (no scheme, no trailing slash).
func NewClassifier(domain string) *Classifier {
	domain = strings.ToLower(strings.TrimSuffix(domain, "/"))
	return &Classifier{
		domain:    domain,
		exactHost: strings.Contains(domain, ":"),
	}
}

// Classify resolves ref against base and returns the canonical URL (or the
// bare address for functional links) together with its class. ok is false
// for malformed references, which are dropped silently.
func (c *Classifier) Classify(base *url.URL, ref string) (string, LinkClass, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return "", LinkNonFetchable, true
	}

	lower := strings.ToLower(ref)
	switch {
	case strings.HasPrefix(lower, "mailto:"):
		address := strings.TrimSpace(ref[len("mailto:"):])
		if address == "" {
			return "", LinkNonFetchable, true
		}
		return address, LinkMailto, true
	case strings.HasPrefix(lower, "tel:"):
		address := strings.TrimSpace(ref[len("tel:"):])
		if address == "" {
			return "", LinkNonFetchable, true
		}
		return address, LinkTel, true
	case strings.HasPrefix(lower, "javascript:"), strings.HasPrefix(lower, "data:"):
		return "", LinkNonFetchable, true
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return "", LinkNonFetchable, false
	}

	resolved := parsed
	if base != nil {
		resolved = base.ResolveReference(parsed)
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", LinkNonFetchable, true
	}
	if resolved.Host == "" {
		return "", LinkNonFetchable, false
	}

	normalized := Normalize(resolved)
	if c.isInternalHost(resolved) {
		return normalized, LinkInternal, true
	}
	return normalized, LinkExternal, true
}

func (c *Classifier) isInternalHost(u *url.URL) bool {
	if c.exactHost {
		return strings.ToLower(u.Host) == c.domain
	}
	host := strings.ToLower(u.Hostname())
	return host == c.domain || strings.HasSuffix(host, "."+c.domain)
}

// Normalize canonicalizes a URL so syntactically equivalent URLs compare
// equal: lowercase scheme and host, fragment removed, default port stripped,
// empty path rewritten to "/", trailing slash stripped from non-root paths.
// Normalizing an already-normalized URL is a no-op.
func Normalize(u *url.URL) string {
	out := *u
	out.Scheme = strings.ToLower(out.Scheme)
	out.Host = strings.ToLower(out.Host)
	out.Fragment = ""

	if port := out.Port(); port != "" {
		if (out.Scheme == "http" && port == "80") || (out.Scheme == "https" && port == "443") {
			out.Host = out.Hostname()
		}
	}

	switch out.Path {
	case "", "/":
		out.Path = "/"
	default:
		out.Path = strings.TrimSuffix(out.Path, "/")
	}

	return out.String()
}

// NormalizeString parses and normalizes a raw absolute URL.
func NormalizeString(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return Normalize(u), nil
}
