// ABOUTME: Product and version constants
// ABOUTME: Reported in logs and the server status API
package version

const (
	// Version is the release version
	Version = "0.3.0"

	// Product is the player product name
	Product = "SyncStream Player"

	// Manufacturer identifies the publisher
	Manufacturer = "Resonate Protocol"
)
