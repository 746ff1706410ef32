// Package urlutil holds the URL canonicalization that exact dedup and
// platform labeling are built on. Normalize is idempotent:
// Normalize(Normalize(u)) == Normalize(u).
package urlutil

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Tracking parameters stripped during normalization. Anything prefixed with
// "utm_" is dropped as well.
var trackingParams = map[string]bool{
	"fbclid":      true,
	"gclid":       true,
	"msclkid":     true,
	"mc_cid":      true,
	"mc_eid":      true,
	"ref":         true,
	"ref_src":     true,
	"igshid":      true,
	"cmpid":       true,
	"sref":        true,
	"ocid":        true,
	"smid":        true,
	"share_type":  true,
	"source":      true,
	"_hsenc":      true,
	"_hsmi":       true,
	"spm":         true,
	"partner":     true,
	"ftag":        true,
	"guce_referrer": true,
}

// Normalize canonicalizes a URL for dedup: lowercase scheme and host, default
// ports and fragments removed, tracking query parameters stripped, remaining
// parameters sorted, trailing slash trimmed on non-root paths.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.User = nil

	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Host[:strings.LastIndex(u.Host, ":")]
	}

	q := u.Query()
	for name := range q {
		if trackingParams[strings.ToLower(name)] || strings.HasPrefix(strings.ToLower(name), "utm_") {
			q.Del(name)
		}
	}
	u.RawQuery = encodeSorted(q)

	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	if u.Path == "" && u.RawQuery == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

// encodeSorted is url.Values.Encode with deterministic key order (Encode
// already sorts keys, but values within a key keep insertion order, which is
// what we want for idempotence).
func encodeSorted(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		vs := q[k]
		sort.Strings(vs)
		for _, v := range vs {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// RegistrableDomain returns the domain plus public suffix ("example.co.uk")
// for a host or absolute URL. Falls back to the bare host when the public
// suffix list cannot resolve it (IPs, single-label hosts).
func RegistrableDomain(hostOrURL string) string {
	host := hostOrURL
	if strings.Contains(hostOrURL, "/") {
		if u, err := url.Parse(hostOrURL); err == nil && u.Host != "" {
			host = u.Host
		}
	}
	host = strings.ToLower(host)
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.Contains(host, "]") {
		host = host[:i]
	}
	host = strings.TrimPrefix(host, "www.")
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}

// SameSite reports whether host belongs to the given registrable domain,
// either exactly or as a subdomain.
func SameSite(hostOrURL, apex string) bool {
	return RegistrableDomain(hostOrURL) == apex
}

// PlatformLabel derives a platform name from a mention URL, used when the
// provider did not supply one.
func PlatformLabel(rawURL string) string {
	return RegistrableDomain(rawURL)
}
