package transcriber

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"
)

type TracedClient struct {
	client *http.Client
}

func NewTracedClient() *TracedClient {
	return &TracedClient{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

// HTTPClient exposes the pooled client for SDKs that issue their own
// requests. Pair it with Trace to collect metrics.
func (c *TracedClient) HTTPClient() *http.Client { return c.client }

type TracedResponse struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Metrics    *NetworkMetrics
}

// requestTrace accumulates timings for one request.
type requestTrace struct {
	metrics *NetworkMetrics
	start   time.Time

	getConnStart, dnsStart, tcpStart, tlsStart time.Time
	gotConn, wroteHeaders, wroteRequest        time.Time
	firstByte                                  time.Time
}

// Trace attaches an httptrace.ClientTrace to ctx. Call the returned func once
// the response body has been read; it fills Download and Total.
func (c *TracedClient) Trace(ctx context.Context) (context.Context, *NetworkMetrics, func()) {
	t := &requestTrace{metrics: &NetworkMetrics{}, start: time.Now()}
	m := t.metrics
	trace := &httptrace.ClientTrace{
		GetConn: func(_ string) { t.getConnStart = time.Now() },
		GotConn: func(info httptrace.GotConnInfo) {
			t.gotConn = time.Now()
			m.ConnWait = t.gotConn.Sub(t.getConnStart)
			m.ConnReused = info.Reused
		},
		DNSStart:          func(_ httptrace.DNSStartInfo) { t.dnsStart = time.Now() },
		DNSDone:           func(_ httptrace.DNSDoneInfo) { m.DNS = time.Since(t.dnsStart) },
		ConnectStart:      func(_, _ string) { t.tcpStart = time.Now() },
		ConnectDone:       func(_, _ string, _ error) { m.TCP = time.Since(t.tcpStart) },
		TLSHandshakeStart: func() { t.tlsStart = time.Now() },
		TLSHandshakeDone: func(cs tls.ConnectionState, _ error) {
			m.TLS = time.Since(t.tlsStart)
			m.TLSProtocol = tls.VersionName(cs.Version)
		},
		WroteHeaders: func() {
			t.wroteHeaders = time.Now()
			m.ReqHeaders = t.wroteHeaders.Sub(t.gotConn)
		},
		WroteRequest: func(_ httptrace.WroteRequestInfo) {
			t.wroteRequest = time.Now()
			m.ReqBody = t.wroteRequest.Sub(t.wroteHeaders)
		},
		GotFirstResponseByte: func() {
			t.firstByte = time.Now()
			m.TTFB = t.firstByte.Sub(t.wroteRequest)
		},
	}
	done := func() {
		if !t.firstByte.IsZero() {
			m.Download = time.Since(t.firstByte)
		}
		m.Total = time.Since(t.start)
	}
	return httptrace.WithClientTrace(ctx, trace), m, done
}

func (c *TracedClient) Do(req *http.Request) (*TracedResponse, error) {
	ctx, metrics, done := c.Trace(req.Context())
	req = req.WithContext(ctx)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	done()

	return &TracedResponse{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Metrics:    metrics,
	}, nil
}

func (c *TracedClient) WarmConnection(url string) time.Duration {
	if url == "" {
		return 0
	}
	var tlsStart time.Time
	var tlsDuration time.Duration

	trace := &httptrace.ClientTrace{
		TLSHandshakeStart: func() { tlsStart = time.Now() },
		TLSHandshakeDone:  func(_ tls.ConnectionState, _ error) { tlsDuration = time.Since(tlsStart) },
	}

	req, err := http.NewRequest("HEAD", url, nil)
	if err != nil {
		return 0
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))
	resp, err := c.client.Do(req)
	if err != nil {
		return 0
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return tlsDuration
}
