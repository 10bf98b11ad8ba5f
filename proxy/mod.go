// Package proxy defines the HTTP endpoint of the executor that operators use
// to scrape the metrics and inspect the journal.
package proxy

import (
	"net"
	"net/http"
)

// Proxy defines the primitives of the HTTP server of the executor.
type Proxy interface {
	// Listen opens the socket and starts to serve the requests in the
	// background.
	Listen() error

	// Stop gracefully shuts the server down.
	Stop() error

	// GetAddr returns the address of the socket, or nil if the server is not
	// listening.
	GetAddr() net.Addr

	// RegisterHandler registers a new handler.
	RegisterHandler(path string, handler func(http.ResponseWriter, *http.Request))
}
