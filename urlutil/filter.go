// Package urlutil holds small URL helpers shared by extraction and probing.
package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// trailingPunctuation is stripped from the end of bare URLs found in prose.
const trailingPunctuation = ".,;!?)"

// IsHTTPURL reports whether rawURL starts with "http://" or "https://".
// The check is case-sensitive and does not parse the URL.
func IsHTTPURL(rawURL string) bool {
	return strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://")
}

// TrimTrailingPunctuation removes sentence punctuation that commonly follows
// a bare URL in running text, e.g. "see http://example.com)." -> "http://example.com".
func TrimTrailingPunctuation(rawURL string) string {
	return strings.TrimRight(rawURL, trailingPunctuation)
}

// ResolveReference resolves a possibly-relative ref URL against a base URL.
// If ref is absolute, it is returned as-is. Otherwise it is resolved
// relative to base using net/url.URL.ResolveReference.
func ResolveReference(base string, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base URL %q: %w", base, err)
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse ref URL %q: %w", ref, err)
	}

	if refURL.IsAbs() {
		return ref, nil
	}
	return baseURL.ResolveReference(refURL).String(), nil
}
