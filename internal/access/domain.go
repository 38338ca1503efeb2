// Package access decides whether an embedding page may play a resource, based on
// the domain named by the request's Referer or Origin header.
//
// The gate fails open: requests without a determinable origin, domains without a
// policy record, and lookups that error are all allowed. Only an existing record
// marked deny blocks playback. This is a deliberate business trade-off: an
// unreliable client header or a flaky policy store must never take down ad
// delivery for legitimate publishers. Do not tighten it to fail-closed without
// revisiting that decision.
package access

import (
	"net/url"
	"strings"
)

// Direct is the sentinel header value meaning the request has no embedding page.
const Direct = "direct"

// ExtractDomain returns the normalized domain of referrer, or of origin when referrer
// is empty. Empty, "direct" and unparseable values yield "" (no determinable origin).
// Normalization lower-cases the host, drops the port and strips a leading "www.".
func ExtractDomain(referrer, origin string) string {
	raw := strings.TrimSpace(referrer)
	if raw == "" {
		raw = strings.TrimSpace(origin)
	}
	if raw == "" || strings.EqualFold(raw, Direct) {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}
	return strings.TrimPrefix(host, "www.")
}
