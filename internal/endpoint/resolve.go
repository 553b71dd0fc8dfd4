// Package endpoint builds candidate URLs for remote functions.
//
// Hosted backends route serverless functions either under the API host
// (/functions/v1/<name>) or on a dedicated "functions" subdomain; callers try
// every shape in order instead of guessing which mode is active.
package endpoint

import (
	"net"
	"net/url"
	"regexp"
	"strings"
)

var hostRe = regexp.MustCompile(`^https://([^./]+)\.([^/]+)$`)

// Resolve returns unique candidate URLs for functionName, primary form first.
// An empty baseURL yields no candidates.
func Resolve(baseURL, functionName, projectID string) []string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	fn := strings.Trim(strings.TrimSpace(functionName), "/")
	if base == "" || fn == "" {
		return nil
	}

	var out []string
	seen := map[string]bool{}
	add := func(u string) {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}

	add(base + "/functions/v1/" + fn)

	m := hostRe.FindStringSubmatch(base)
	if m == nil {
		return out
	}
	sub, host := m[1], m[2]
	// IP-literal hosts have no functions subdomain.
	if u, err := url.Parse(base); err == nil && net.ParseIP(u.Hostname()) != nil {
		return out
	}
	add("https://" + sub + ".functions." + host + "/" + fn)

	if p := strings.TrimSpace(projectID); p != "" && p != sub {
		add("https://" + p + ".functions." + host + "/" + fn)
	}
	return out
}
