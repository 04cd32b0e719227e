package imagesource

import (
	"net/url"
	"strings"
)

// ProxyEndpoint is a URL-prefix template for a third-party service that
// re-serves a target URL's bytes under its own origin. Templates ending in a
// query-assignment character receive the percent-encoded target; others
// receive the raw target appended verbatim.
type ProxyEndpoint string

// Wrap rewrites target into the proxied URL according to the template rule.
func (p ProxyEndpoint) Wrap(target string) string {
	prefix := string(p)
	if strings.HasSuffix(prefix, "=") {
		return prefix + url.QueryEscape(target)
	}
	return prefix + target
}

// ProxyList is an ordered sequence of proxy endpoints tried in order after a
// failed direct load. Fixed at configuration time; never mutated at runtime.
type ProxyList []ProxyEndpoint

// DefaultProxyList returns the built-in fallback endpoints. The order is part
// of the contract: earlier entries are attempted first.
func DefaultProxyList() ProxyList {
	return ProxyList{
		"https://api.allorigins.win/raw?url=",
		"https://cors.isomorphic-git.org/",
	}
}

// Clone returns a copy so callers can hold the list without aliasing the
// fetcher's configuration.
func (l ProxyList) Clone() ProxyList {
	if len(l) == 0 {
		return nil
	}
	return append(ProxyList(nil), l...)
}
