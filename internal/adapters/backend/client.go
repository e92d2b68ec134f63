package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/mapnav/navclient/internal/core/domain"
	"github.com/mapnav/navclient/internal/pkg/authtoken"
	"github.com/mapnav/navclient/internal/pkg/metrics"
)

// Client talks to the navigation REST backend. One Client serves every
// backend port: directions, favorites, area preferences, pharmacies, taxi
// stations and traffic.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *fasthttp.Client
}

// New creates a backend client. timeout bounds each call unless the context
// carries an earlier deadline.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http: &fasthttp.Client{
			Name:                "navclient",
			MaxConnsPerHost:     32,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
		},
	}
}

// call describes one backend request.
type call struct {
	service string
	method  string
	path    string
	token   string
	query   url.Values
	body    any
}

// do executes c and decodes a JSON response into out (when non-nil). Status
// codes map onto domain errors: 401/403 ErrUnauthorized, 404 ErrNotFound,
// 5xx and network failures ErrUnavailable, undecodable bodies
// ErrMalformedResponse.
func (cl *Client) do(ctx context.Context, c call, out any) error {
	start := time.Now()
	defer metrics.ObserveBackend(c.service, start)

	status, body, err := cl.roundTrip(ctx, c)
	if err != nil {
		metrics.BackendErrors.WithLabelValues(c.service, string(domain.Classify(err))).Inc()
		return err
	}
	if err := statusError(c, status, body); err != nil {
		metrics.BackendErrors.WithLabelValues(c.service, string(domain.Classify(err))).Inc()
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		metrics.BackendErrors.WithLabelValues(c.service, string(domain.KindMalformed)).Inc()
		return fmt.Errorf("%s: %w: %v", c.service, domain.ErrMalformedResponse, err)
	}
	return nil
}

func (cl *Client) roundTrip(ctx context.Context, c call) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	uri := cl.baseURL + c.path
	if len(c.query) > 0 {
		uri += "?" + c.query.Encode()
	}
	req.SetRequestURI(uri)
	req.Header.SetMethod(c.method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if c.token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, authtoken.Header(c.token))
	}
	if c.body != nil {
		data, err := json.Marshal(c.body)
		if err != nil {
			return 0, nil, fmt.Errorf("%s: encode request: %w", c.service, err)
		}
		req.Header.SetContentType("application/json")
		req.SetBodyRaw(data)
	}

	deadline := time.Now().Add(cl.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := cl.http.DoDeadline(req, resp, deadline); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, ctxErr
		}
		return 0, nil, fmt.Errorf("%s: %w: %v", c.service, domain.ErrUnavailable, err)
	}
	return resp.StatusCode(), append([]byte(nil), resp.Body()...), nil
}

func statusError(c call, status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == fasthttp.StatusUnauthorized, status == fasthttp.StatusForbidden:
		return fmt.Errorf("%s: %w", c.service, domain.ErrUnauthorized)
	case status == fasthttp.StatusNotFound:
		return fmt.Errorf("%s: %w", c.service, domain.ErrNotFound)
	case status >= 500:
		return fmt.Errorf("%s: %w: status %d", c.service, domain.ErrUnavailable, status)
	}
	return &StatusError{Service: c.service, Status: status, Detail: detail(body)}
}

// StatusError is a 4xx rejection other than auth and not-found.
type StatusError struct {
	Service string
	Status  int
	Detail  string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: status %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.Status, e.Detail)
}

// detail pulls a human-readable message out of a DRF style error body.
func detail(body []byte) string {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return strings.TrimSpace(string(body))
	}
	for _, key := range []string{"detail", "error", "message", "name", "non_field_errors"} {
		switch v := m[key].(type) {
		case string:
			return v
		case []any:
			if len(v) > 0 {
				return fmt.Sprint(v[0])
			}
		}
	}
	return ""
}

// isDuplicate recognizes the backend's unique-name rejection.
func isDuplicate(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	if se.Status == fasthttp.StatusConflict {
		return true
	}
	d := strings.ToLower(se.Detail)
	return se.Status == fasthttp.StatusBadRequest && (strings.Contains(d, "unique") || strings.Contains(d, "already exists"))
}

// wireID accepts both numeric and string ids.
type wireID string

func (id *wireID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = wireID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = wireID(n.String())
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}
