package commands

import (
	stdlog "log"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

type Globals struct {
	Debug   bool
	Version string
}

// newHTTPServer applies the timeouts shared by the website and API. Writeup
// uploads and generation calls can take a while, so reads and writes get
// minutes rather than seconds.
func newHTTPServer(addr string, handler http.Handler, logger zerolog.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    16 << 10,
		ErrorLog:          stdlog.New(logger.With().Str("component", "http").Logger(), "", 0),
	}
}
