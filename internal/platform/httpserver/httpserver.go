// Package httpserver builds the punchgate API server.
package httpserver

import (
	"net/http"
	"time"
)

// Attendance queries run under a 5s datastore timeout; the write timeout
// must leave room for that plus response encoding. The header timeout bounds
// slow clients before the pipeline does any work.
const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 10 * time.Second
	writeTimeout      = 15 * time.Second
	idleTimeout       = 60 * time.Second
)

// New builds the API server for the given router.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}
