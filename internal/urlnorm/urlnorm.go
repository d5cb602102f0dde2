// Package urlnorm turns scraped links into the canonical form used as the
// deduplication key of scraped news.
package urlnorm

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"path"
	"slices"
	"strings"
)

var (
	ErrEmpty       = errors.New("urlnorm: empty url")
	ErrNotAbsolute = errors.New("urlnorm: url must be absolute http(s)")
)

var trackingParams = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"gclsrc":  {},
	"dclid":   {},
	"msclkid": {},
	"yclid":   {},
	"mc_cid":  {},
	"mc_eid":  {},
	"ref_src": {},
	"_ga":     {},
}

var defaultPorts = map[string]string{"http": "80", "https": "443"}

// Normalize returns the canonical form of an absolute http(s) URL.
// Equivalent spellings of the same page produce the same string.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmpty
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("urlnorm: parse %q: %w", raw, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Hostname() == "" {
		return "", ErrNotAbsolute
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimSuffix(host, ".")
	if port := u.Port(); port != "" && port != defaultPorts[scheme] {
		host = host + ":" + port
	}

	out := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     cleanPath(u.Path),
		RawQuery: cleanQuery(u.Query()),
	}
	return out.String(), nil
}

// Resolve makes href absolute against base and normalizes it.
func Resolve(base, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", ErrEmpty
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("urlnorm: parse base %q: %w", base, err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("urlnorm: parse %q: %w", href, err)
	}
	return Normalize(b.ResolveReference(ref).String())
}

// Absolute resolves href against base without normalizing it, so the
// original spelling can be stored next to the canonical one.
func Absolute(base, href string) string {
	href = strings.TrimSpace(href)
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

// Hash returns the hex sha256 of the normalized URL.
func Hash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func cleanPath(p string) string {
	if p == "" || p == "/" {
		return ""
	}
	p = path.Clean(p)
	return strings.TrimRight(p, "/")
}

func isTracking(key string) bool {
	k := strings.ToLower(key)
	if strings.HasPrefix(k, "utm_") {
		return true
	}
	_, ok := trackingParams[k]
	return ok
}

func cleanQuery(values url.Values) string {
	for key := range values {
		if isTracking(key) {
			values.Del(key)
		}
	}
	if len(values) == 0 {
		return ""
	}
	for key := range values {
		slices.Sort(values[key])
	}
	// Encode sorts by key.
	return values.Encode()
}
