// ABOUTME: Build and product identification
// ABOUTME: Reported by the version command and the gateway hello message
package version

import "fmt"

const (
	// Version is the release of this build
	Version = "0.3.0"

	// Product is the name shown to users and gateway clients
	Product = "Bonjour Browser"

	// Manufacturer identifies who ships the binary
	Manufacturer = "Resonate"
)

// String returns "Product Version"
func String() string {
	return fmt.Sprintf("%s %s", Product, Version)
}
