package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/agentdesk/workdir/internal/config"
	"github.com/agentdesk/workdir/internal/logging"
)

// CreateTransferClient creates the client used for uploads and downloads.
//
// It starts from ConfigureHTTPClient so transfers share the proxy settings of
// API calls, then tunes the transport for streaming bodies:
//   - compression off (archives gain nothing)
//   - HTTP/2 negotiated where possible, off through a proxy unless FORCE_HTTP2=true
//   - DISABLE_HTTP2=true forces HTTP/1.1
//
// There is no client timeout; a transfer is bounded only by its context.
func CreateTransferClient(cfg *config.Config, logger *logging.Logger) (*nethttp.Client, error) {
	baseClient, err := ConfigureHTTPClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	tr, ok := baseClient.Transport.(*nethttp.Transport)
	if !ok {
		// NTLM wraps the transport in a negotiator; leave it as configured
		return baseClient, nil
	}

	tr = tr.Clone()
	tr.DisableCompression = true
	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	if os.Getenv("DISABLE_HTTP2") == "true" ||
		(ProxyActive(cfg, os.Getenv) && os.Getenv("FORCE_HTTP2") != "true") {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	return &nethttp.Client{Transport: tr}, nil
}
