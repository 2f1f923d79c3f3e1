// ABOUTME: Well-known service types and name validation
// ABOUTME: Normalizes DNS-SD service types and browse domains
package discovery

import (
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// Well-known service types
const (
	ServiceHTTP    = "_http._tcp."
	ServicePrinter = "_printer._tcp."
)

// LocalDomain is the multicast DNS browse domain
const LocalDomain = "local."

// NormalizeServiceType validates a DNS-SD service type of the form
// "_name._tcp" or "_name._udp" and returns it fully qualified.
func NormalizeServiceType(serviceType string) (string, error) {
	t := dns.Fqdn(strings.TrimSpace(serviceType))
	if _, ok := dns.IsDomainName(t); !ok || t == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidServiceType, serviceType)
	}

	labels := dns.SplitDomainName(t)
	if len(labels) != 2 {
		return "", fmt.Errorf("%w: %q must have two labels", ErrInvalidServiceType, serviceType)
	}
	if len(labels[0]) < 2 || !strings.HasPrefix(labels[0], "_") {
		return "", fmt.Errorf("%w: %q service label must start with '_'", ErrInvalidServiceType, serviceType)
	}
	proto := strings.ToLower(labels[1])
	if proto != "_tcp" && proto != "_udp" {
		return "", fmt.Errorf("%w: %q protocol must be _tcp or _udp", ErrInvalidServiceType, serviceType)
	}

	return t, nil
}

// NormalizeDomain returns domain fully qualified, defaulting to LocalDomain
func NormalizeDomain(domain string) (string, error) {
	d := strings.TrimSpace(domain)
	if d == "" {
		return LocalDomain, nil
	}

	d = dns.Fqdn(d)
	if _, ok := dns.IsDomainName(d); !ok || d == "." {
		return "", fmt.Errorf("%w: domain %q", ErrInvalidServiceType, domain)
	}
	return d, nil
}
