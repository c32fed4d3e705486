package knowledge

import "strings"

// HostPolicy decides which hosts website sources may come from. Entries match
// the host itself and its subdomains. Disallow wins over allow; an empty allow
// list admits any host.
type HostPolicy struct {
	Allow    []string
	Disallow []string
}

// Permits reports whether host (optionally with port) may be fetched.
func (p HostPolicy) Permits(host string) bool {
	host = strings.ToLower(host)
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	host = strings.TrimPrefix(host, "www.")
	for _, d := range p.Disallow {
		if matchHost(host, d) {
			return false
		}
	}
	if len(p.Allow) == 0 {
		return true
	}
	for _, a := range p.Allow {
		if matchHost(host, a) {
			return true
		}
	}
	return false
}

func matchHost(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
