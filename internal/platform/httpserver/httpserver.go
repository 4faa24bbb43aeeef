package httpserver

import (
	"net/http"
	"time"
)

// maxHeaderBytes is well above any vCon request; bodies are bounded separately
// by the handlers.
const maxHeaderBytes = 64 << 10

// New builds the gateway's HTTP server. The write timeout leaves room for a
// full verification batch.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    maxHeaderBytes,
	}
}
