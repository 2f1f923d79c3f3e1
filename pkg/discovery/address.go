// ABOUTME: Service record model and IPv4 address encoding
// ABOUTME: Converts resolved handles into caller-visible host:port records
package discovery

import (
	"fmt"
	"net"
)

// ServiceRecord is a resolved service as seen by callers
type ServiceRecord struct {
	Name    string
	Address string // "a.b.c.d:port", empty when no IPv4 address was resolved
	Port    int
}

// HasAddress reports whether the record carries a usable address
func (r ServiceRecord) HasAddress() bool {
	return r.Address != ""
}

// NewServiceRecord builds a record from a resolved handle
func NewServiceRecord(h Handle) ServiceRecord {
	rec := ServiceRecord{
		Name: h.Name(),
		Port: h.Port(),
	}

	raw := h.RawAddress()
	if HasAddress(raw) {
		rec.Address = EncodeAddress(AddressOctets(raw), rec.Port)
	}

	return rec
}

// EncodeAddress formats four IPv4 octets and a port as "o1.o2.o3.o4:port"
func EncodeAddress(octets [4]byte, port int) string {
	return fmt.Sprintf("%d.%d.%d.%d:%d", octets[0], octets[1], octets[2], octets[3], port)
}

// HasAddress reports whether raw holds enough bytes to extract an IPv4 payload
func HasAddress(raw []byte) bool {
	return raw != nil && len(raw) >= net.IPv4len
}

// AddressOctets extracts the IPv4 payload from raw. IPv4-mapped 16 byte
// addresses yield their trailing four bytes, anything else its leading four.
// Callers must check HasAddress first.
func AddressOctets(raw []byte) [4]byte {
	var octets [4]byte
	if len(raw) == net.IPv6len {
		if v4 := net.IP(raw).To4(); v4 != nil {
			copy(octets[:], v4)
			return octets
		}
	}
	copy(octets[:], raw[:net.IPv4len])
	return octets
}
