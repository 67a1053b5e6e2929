// Package transport implements the single-attempt HTTP POST contract of
// spec.md §4.4: one network attempt per call, a progress callback wired to
// the interrupt bus for ESC-triggered abort, transparent response
// decompression, and the retryability taxonomy that downstream providers
// consult before deciding whether to retry or hand off to the credential
// refresh protocol.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/nmnduy/claude-c-sub001/internal/interrupt"
)

// Result is the outcome of one POST attempt. RawResponseText and
// RequestJSON are always populated, even on error, so the call log (C6)
// retains full fidelity per spec.md §4.4.
type Result struct {
	StatusCode      int
	RawResponseText string
	RequestJSON     []byte
	DurationMS      int64
	ErrorMessage    string
	IsRetryable     bool
	Interrupted     bool
}

// Client performs single-attempt, interruptible POSTs.
type Client struct {
	httpClient *http.Client
	bus        *interrupt.Bus
}

// NewClient builds a transport Client. bus may be nil, in which case the
// transport is never interruptible (used in tests / non-interactive runs).
func NewClient(bus *interrupt.Bus) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 0}, // cancellation is context-driven, not a blanket timeout
		bus:        bus,
	}
}

// Post performs exactly one POST of body to url with the given headers.
// It polls the interrupt bus while the body is being read; an interrupt
// mid-transfer surfaces as Result.Interrupted with IsRetryable=false.
func (c *Client) Post(ctx context.Context, url string, headers http.Header, body []byte) Result {
	start := time.Now()
	result := Result{RequestJSON: body}

	if c.bus != nil && c.bus.IsSet() {
		result.ErrorMessage = "interrupted by user"
		result.Interrupted = true
		result.IsRetryable = false
		result.DurationMS = time.Since(start).Milliseconds()
		return result
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if c.bus != nil {
		reqCtx, cancel = context.WithCancel(ctx)
		defer cancel()
		go c.watchInterrupt(reqCtx, cancel)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("build request: %v", err)
		result.IsRetryable = false
		result.DurationMS = time.Since(start).Milliseconds()
		return result
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "gzip, br")
	}

	resp, err := c.httpClient.Do(req)
	result.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		if c.bus != nil && c.bus.IsSet() {
			result.ErrorMessage = "interrupted by user"
			result.Interrupted = true
			result.IsRetryable = false
			return result
		}
		result.ErrorMessage = err.Error()
		result.IsRetryable = classifyTransportError(err)
		return result
	}
	defer resp.Body.Close()

	reader, err := decompress(resp)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("decompress response: %v", err)
		result.IsRetryable = false
		result.StatusCode = resp.StatusCode
		return result
	}

	raw, err := io.ReadAll(reader)
	result.DurationMS = time.Since(start).Milliseconds()
	result.StatusCode = resp.StatusCode
	if err != nil {
		if c.bus != nil && c.bus.IsSet() {
			result.ErrorMessage = "interrupted by user"
			result.Interrupted = true
			result.IsRetryable = false
			return result
		}
		result.ErrorMessage = err.Error()
		result.IsRetryable = true // recv error mid-stream
		return result
	}

	result.RawResponseText = string(raw)
	if len(raw) == 0 {
		result.ErrorMessage = "empty response"
		result.IsRetryable = true
		return result
	}
	result.IsRetryable = classifyHTTPStatus(resp.StatusCode)
	return result
}

// watchInterrupt polls the bus (the HTTP transport's equivalent of the
// progress callback in spec.md §4.4) and cancels reqCtx the moment an
// interrupt is observed.
func (c *Client) watchInterrupt(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.bus.IsSet() {
				cancel()
				return
			}
		}
	}
}

func decompress(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

// classifyTransportError implements the transport-level retryability rules
// of spec.md §4.4: connect/timeout/recv/send/SSL errors are retryable.
func classifyTransportError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	return true // any other Do() error is treated as a connect/send failure
}

// classifyHTTPStatus implements the HTTP-status retryability rules of
// spec.md §4.4: 429, 408, and 5xx are retryable; other 4xx are not
// (they're instead routed through the credential-refresh protocol).
func classifyHTTPStatus(status int) bool {
	switch {
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
		return true
	case status >= 500:
		return true
	case status >= 400:
		return false
	default:
		return false
	}
}
