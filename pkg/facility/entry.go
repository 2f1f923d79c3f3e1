// ABOUTME: Discovered service instance shared by all backends
// ABOUTME: Implements discovery.Handle with address updates from resolution
package facility

import (
	"net"
	"strings"
	"sync"

	"github.com/Resonate-Protocol/bonjour-go/pkg/discovery"
)

// Entry is one advertised service instance. Entries are pointers so they
// can be used as handles.
type Entry struct {
	instance string
	service  string
	domain   string
	events   discovery.Events // session the entry was discovered for

	mu   sync.RWMutex
	host string
	ipv4 net.IP
	port int
	text []string
}

var _ discovery.Handle = (*Entry)(nil)

// NewEntry creates an entry for instance of service in domain
func NewEntry(instance, service, domain string) *Entry {
	return &Entry{
		instance: instance,
		service:  service,
		domain:   domain,
	}
}

// Name returns the service instance name
func (e *Entry) Name() string {
	return e.instance
}

// Service returns the service type the entry was found under
func (e *Entry) Service() string {
	return e.service
}

// Domain returns the browse domain
func (e *Entry) Domain() string {
	return e.domain
}

// Host returns the advertised target host name
func (e *Entry) Host() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.host
}

// RawAddress returns the IPv4 address bytes, nil when unresolved
func (e *Entry) RawAddress() []byte {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.ipv4 == nil {
		return nil
	}
	return e.ipv4.To4()
}

// Port returns the advertised port
func (e *Entry) Port() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.port
}

// Text returns a copy of the TXT record strings
func (e *Entry) Text() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.text...)
}

// String implements fmt.Stringer
func (e *Entry) String() string {
	return e.instance + "." + trimDot(e.service) + "." + trimDot(e.domain)
}

// update merges resolved target data into the entry. Non-IPv4 addresses
// and zero values leave the current data in place.
func (e *Entry) update(host string, ip net.IP, port int, text []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if host != "" {
		e.host = host
	}
	if v4 := ip.To4(); v4 != nil {
		e.ipv4 = v4
	}
	if port != 0 {
		e.port = port
	}
	if len(text) > 0 {
		e.text = append([]string(nil), text...)
	}
}

func (e *Entry) hasIPv4() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ipv4 != nil
}

func trimDot(s string) string {
	return strings.Trim(s, ".")
}

// instanceName strips the "<service>.<domain>." suffix from a full service
// instance name.
func instanceName(full, service, domain string) string {
	suffix := "." + trimDot(service) + "." + trimDot(domain)
	name := strings.TrimSuffix(trimDot(full), suffix)
	return strings.ReplaceAll(name, `\ `, " ")
}
