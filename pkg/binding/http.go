package binding

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/artpar/channelgen/domain/address"
	"github.com/artpar/channelgen/domain/param"
	"golang.org/x/oauth2"
)

// StatusError is returned for a non-2xx response that was not retried away.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("http status %d", e.StatusCode)
	}
	return fmt.Sprintf("http status %d: %s", e.StatusCode, body)
}

// Hooks let callers observe and adjust the exchanges of an HTTPClient.
type Hooks struct {
	// BeforeRequest runs before every attempt is sent and may modify req.
	BeforeRequest func(req *http.Request) error
	// AfterResponse runs on every response before its status is checked and
	// may replace the body.
	AfterResponse func(resp *http.Response, body []byte) ([]byte, error)
	// OnError may replace the error that ends an exchange.
	OnError func(err error, out Outbound) error
}

// HTTPClient performs request/reply exchanges for generated HTTP bindings.
// With OAuth2 auth, a 401 reply triggers one token refresh and an immediate
// resend that does not count as a retry.
type HTTPClient struct {
	Client     *http.Client
	BaseURL    string
	Method     string
	Header     http.Header
	Auth       Auth
	Retry      RetryPolicy
	Pagination *Pagination
	Hooks      Hooks
}

func (c HTTPClient) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

// Do sends out and returns the response body as a delivery. It satisfies Requester.
func (c HTTPClient) Do(ctx context.Context, out Outbound) (Delivery, error) {
	d, _, err := c.do(ctx, out, c.Pagination)
	return d, err
}

// Pages fetches consecutive pages starting at the client's Pagination until
// the last page, calling visit with each reply. count reports how many items
// a page carried.
func (c HTTPClient) Pages(ctx context.Context, out Outbound, count func(Delivery) (int, error), visit func(Delivery) error) error {
	if c.Pagination == nil {
		return errors.New("pagination is not configured")
	}
	page := *c.Pagination
	for {
		d, resp, err := c.do(ctx, out, &page)
		if err != nil {
			return err
		}
		if err := visit(d); err != nil {
			return err
		}
		n, err := count(d)
		if err != nil {
			return err
		}
		next, ok := page.Next(resp, n)
		if !ok {
			return nil
		}
		page = next
	}
}

func (c HTTPClient) do(ctx context.Context, out Outbound, page *Pagination) (Delivery, *http.Response, error) {
	d, resp, err := c.exchange(ctx, out, page)
	if err != nil && c.Hooks.OnError != nil {
		err = c.Hooks.OnError(err, out)
	}
	return d, resp, err
}

func (c HTTPClient) exchange(ctx context.Context, out Outbound, page *Pagination) (Delivery, *http.Response, error) {
	method := c.Method
	if method == "" {
		method = http.MethodPost
	}
	if c.Auth.refreshable() {
		// token requests go through the same transport
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient())
	}

	var (
		lastErr   error
		refreshed bool
		resend    bool
	)
	for attempt := 0; ; attempt++ {
		if attempt > 0 && !resend {
			if err := sleep(ctx, c.Retry.Backoff(attempt)); err != nil {
				return Delivery{}, nil, err
			}
		}
		resend = false

		req, err := c.newRequest(ctx, method, out, page)
		if err != nil {
			return Delivery{}, nil, err
		}
		if c.Hooks.BeforeRequest != nil {
			if err := c.Hooks.BeforeRequest(req); err != nil {
				return Delivery{}, nil, err
			}
		}

		resp, err := c.httpClient().Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return Delivery{}, nil, ctx.Err()
			}
			lastErr = err
			if c.Retry.RetryOnNetworkError && attempt < c.Retry.MaxRetries {
				continue
			}
			return Delivery{}, nil, lastErr
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return Delivery{}, nil, fmt.Errorf("read response: %w", err)
		}
		if c.Hooks.AfterResponse != nil {
			if body, err = c.Hooks.AfterResponse(resp, body); err != nil {
				return Delivery{}, resp, err
			}
		}

		if resp.StatusCode == http.StatusUnauthorized && !refreshed && c.Auth.refreshable() {
			refreshed = true
			if err := c.Auth.OAuth2.refresh(ctx, c.Auth); err != nil {
				return Delivery{}, resp, errors.Join(&StatusError{StatusCode: resp.StatusCode, Body: body}, err)
			}
			resend = true
			attempt--
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			lastErr = &StatusError{StatusCode: resp.StatusCode, Body: body}
			if c.Retry.Retryable(resp.StatusCode) && attempt < c.Retry.MaxRetries {
				continue
			}
			return Delivery{}, resp, lastErr
		}

		return Delivery{
			Address: out.Address,
			Query:   out.Query,
			Payload: body,
			Headers: flattenHeader(resp.Header),
		}, resp, nil
	}
}

func (c HTTPClient) newRequest(ctx context.Context, method string, out Outbound, page *Pagination) (*http.Request, error) {
	url := strings.TrimSuffix(c.BaseURL, "/") + out.Address
	if out.Query != "" {
		url += "?" + out.Query
	}

	var body io.Reader
	if len(out.Payload) > 0 && method != http.MethodGet && method != http.MethodHead {
		body = bytes.NewReader(out.Payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range c.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, v := range out.Headers {
		req.Header.Set(k, v)
	}
	if err := c.Auth.Apply(req); err != nil {
		return nil, err
	}
	if page != nil {
		page.Apply(req)
	}
	return req, nil
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}

// HTTPHandler adapts a reply binding to net/http. serve receives the request
// as a delivery whose Respond writes the response; an error returned by serve
// becomes a 400 for parameter, decode and validation failures and a 500
// otherwise.
func HTTPHandler(serve func(ctx context.Context, d Delivery) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read request body", http.StatusBadRequest)
			return
		}

		written := false
		d := Delivery{
			Address: r.URL.EscapedPath(),
			Query:   r.URL.RawQuery,
			Payload: body,
			Headers: flattenHeader(r.Header),
			Respond: func(_ context.Context, payload []byte, headers map[string]string) error {
				for k, v := range headers {
					w.Header().Set(k, v)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				written = true
				_, err := w.Write(payload)
				return err
			},
			RespondError: func(_ context.Context, err error) error {
				written = true
				http.Error(w, err.Error(), statusFor(err))
				return nil
			},
		}

		if err := serve(r.Context(), d); err != nil && !written {
			http.Error(w, err.Error(), statusFor(err))
		}
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrDecode), errors.Is(err, ErrValidation),
		errors.Is(err, address.ErrNoMatch), errors.Is(err, address.ErrInvalidParameterValue),
		errors.Is(err, address.ErrMissingParameter),
		errors.Is(err, param.ErrParse), errors.Is(err, param.ErrDecode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
