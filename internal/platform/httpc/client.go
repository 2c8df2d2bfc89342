// Package httpc wraps a shared resty client for provider adapters: JSON via
// sonic, context-bound requests, and a uniform error for non-2xx replies.
package httpc

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultTimeout = 30 * time.Second
	// maxErrorBody bounds how much of a failed response body is kept in StatusError.
	maxErrorBody = 500
)

// StatusError is returned when the remote side answers outside 2xx.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	status := e.Status
	if status == "" {
		status = strconv.Itoa(e.StatusCode)
	}
	return fmt.Sprintf("HTTP %s :: %s", status, e.Body)
}

// File is one multipart attachment.
type File struct {
	Param    string
	FileName string
	Data     []byte
}

// Request describes one outbound call. JSON, Form/Files and Body are mutually exclusive.
type Request struct {
	Method    string
	URL       string
	Headers   map[string]string
	Query     map[string]string
	JSON      any
	Form      map[string]string
	Files     []File
	Body      []byte
	BasicUser string
	BasicPass string
}

// Response is a fully read reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client issues provider requests.
type Client struct {
	rc *resty.Client
}

// Option customises a Client.
type Option func(*resty.Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// New builds a client with sonic JSON codecs and a 30s timeout.
func New(opts ...Option) *Client {
	rc := resty.New().
		SetTimeout(DefaultTimeout).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	for _, opt := range opts {
		opt(rc)
	}
	return &Client{rc: rc}
}

// Default is shared by adapters constructed without an explicit client.
var Default = New()

// Do executes req and returns the reply; non-2xx becomes *StatusError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	r := c.rc.R().SetContext(ctx)
	if len(req.Headers) > 0 {
		r.SetHeaders(req.Headers)
	}
	if len(req.Query) > 0 {
		r.SetQueryParams(req.Query)
	}
	if req.BasicUser != "" || req.BasicPass != "" {
		r.SetBasicAuth(req.BasicUser, req.BasicPass)
	}
	switch {
	case req.JSON != nil:
		r.SetHeader("Content-Type", "application/json").SetBody(req.JSON)
	case len(req.Files) > 0:
		if len(req.Form) > 0 {
			r.SetFormData(req.Form)
		}
		for _, f := range req.Files {
			r.SetFileReader(f.Param, f.FileName, bytes.NewReader(f.Data))
		}
	case len(req.Form) > 0:
		r.SetFormData(req.Form)
	case req.Body != nil:
		r.SetBody(req.Body)
	}

	resp, err := r.Execute(method, req.URL)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.URL, err)
	}

	code := resp.StatusCode()
	if code < 200 || code >= 300 {
		body := resp.Body()
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: code, Status: resp.Status(), Body: string(body)}
	}

	return &Response{
		StatusCode: code,
		Header:     resp.Header(),
		Body:       resp.Body(),
	}, nil
}

// Object decodes the body as a JSON object. Empty or non-object bodies yield an empty map.
func (r *Response) Object() map[string]any {
	out := map[string]any{}
	if r == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return out
	}
	if err := sonic.Unmarshal(r.Body, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

// Decode unmarshals the body into out.
func (r *Response) Decode(out any) error {
	return sonic.Unmarshal(r.Body, out)
}

// ContentType returns the reply's Content-Type header.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// JSON is Do followed by Object.
func (c *Client) JSON(ctx context.Context, req Request) (map[string]any, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Object(), nil
}
