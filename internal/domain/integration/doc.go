// Package integration defines the port through which the BOM engine talks to
// the external commerce platform that owns customer-facing stock.
//
// The platform is the system of record for product and variant stock. The
// engine reads component stock from it, writes computed composite stock back
// to it, and relies on a distinguishable not-found error class to detect
// references that were deleted upstream.
package integration
