package http_client

import (
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/publicsuffix"
)

// NewTransport returns the pooled transport shared by every visitor session,
// wrapped so each backend call becomes a client span.
func NewTransport() http.RoundTripper {
	tr := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   50,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       30 * time.Second,
		DisableCompression:    false,
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	return otelhttp.NewTransport(tr)
}

// CreateHTTPClient builds a client with its own cookie jar on top of a shared
// transport. Each visitor gets one so backend session and anti-forgery cookies
// never leak between them.
func CreateHTTPClient(rt http.RoundTripper, timeout time.Duration) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
		Jar:       jar,
	}, nil
}
