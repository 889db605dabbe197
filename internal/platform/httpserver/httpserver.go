// Package httpserver builds the ledger's HTTP server.
package httpserver

import (
	"net/http"
	"time"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 60 * time.Second
	// writeSlack covers encoding the response after the handler deadline.
	writeSlack = 5 * time.Second
)

// New returns a server whose read and write deadlines outlast handlers
// bounded by requestTimeout, so a timed-out request still gets its error body.
func New(addr string, handler http.Handler, requestTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       requestTimeout + readHeaderTimeout,
		WriteTimeout:      requestTimeout + writeSlack,
		IdleTimeout:       idleTimeout,
	}
}
